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
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matfinder/matsync/pkg/log"
	"github.com/matfinder/matsync/pkg/server/app"
	"github.com/matfinder/matsync/pkg/server/context"
	"github.com/pkg/errors"
)

// Middleware is a middleware for request handlers
type Middleware func(h http.Handler, app *app.App, rateLimit bool) http.Handler

// ErrorResp is the body of an error response
type ErrorResp struct {
	Message string `json:"message"`
}

// RespondJSON encodes v as the JSON body of the response
func RespondJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.ErrorWrap(err, "encoding response")
	}
}

// RespondError writes an error response with the given message
func RespondError(w http.ResponseWriter, statusCode int, msg string) {
	RespondJSON(w, statusCode, ErrorResp{Message: msg})
}

// DoError logs the error and responds with the given status code
func DoError(w http.ResponseWriter, msg string, err error, statusCode int) {
	if err != nil {
		log.WithFields(log.Fields{
			"statusCode": statusCode,
		}).ErrorWrap(err, msg)
	}

	RespondError(w, statusCode, http.StatusText(statusCode))
}

// RespondUnauthorized responds with unauthorized
func RespondUnauthorized(w http.ResponseWriter) {
	w.Header().Add("WWW-Authenticate", `Bearer realm="matserver"`)
	RespondError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
}

// RespondNotFound responds with not found
func RespondNotFound(w http.ResponseWriter) {
	RespondError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
}

// GetCredential extracts the bearer credential from the Authorization header
func GetCredential(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", nil
	}

	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("malformed authorization header")
	}

	return strings.TrimSpace(parts[1]), nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		id := uuid.NewString()
		rec.Header().Set("X-Request-Id", id)
		ctx := context.WithRequestID(r.Context(), id)

		next.ServeHTTP(rec, r.WithContext(ctx))

		log.WithFields(log.Fields{
			"requestId": id,
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    rec.status,
			"duration":  time.Since(start).String(),
		}).Info("request")
	})
}

// Global is the middleware applied to every request
func Global(h http.Handler) http.Handler {
	return logRequest(h)
}

// APIMw is the middleware for the API routes
func APIMw(h http.Handler, a *app.App, rateLimit bool) http.Handler {
	ret := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v := r.Header.Get("Client-Version"); v != "" {
			r = r.WithContext(context.WithClient(r.Context(), v))
		}

		h.ServeHTTP(w, r)
	})

	return ApplyLimit(ret, rateLimit && !a.DisableRateLimit)
}
