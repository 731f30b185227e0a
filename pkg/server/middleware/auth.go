/* Copyright 2025 Matsync Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/matfinder/matsync/pkg/log"
)

// APIKeyAuth is an authentication middleware that requires the given key as a
// bearer token. An empty key disables the check.
func APIKeyAuth(apiKey string, next http.HandlerFunc) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if apiKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		credential, err := GetCredential(r)
		if err != nil {
			log.WithFields(log.Fields{"path": r.URL.Path}).WarnWrap(err, "authenticating request")
			RespondUnauthorized(w)
			return
		}

		if subtle.ConstantTimeCompare([]byte(credential), []byte(apiKey)) != 1 {
			RespondUnauthorized(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}
