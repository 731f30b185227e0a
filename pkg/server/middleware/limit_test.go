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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matfinder/matsync/pkg/assert"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestLimit(t *testing.T) {
	limiter := NewRateLimiter(1, 3)
	handler := limiter.Limit(http.HandlerFunc(okHandler))

	blocked := 0
	for range 5 {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "192.168.1.1:1234"
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code == http.StatusTooManyRequests {
			blocked++
		}
	}

	assert.Equal(t, blocked >= 1, true, "requests after the burst should be limited")
}

func TestLimit_differentClients(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	handler := limiter.Limit(http.HandlerFunc(okHandler))

	for range 4 {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "192.168.1.1:1234"
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "192.168.1.2:5678"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, w.Code, http.StatusOK, "other client should not be limited")
}

func TestLookupClient(t *testing.T) {
	testCases := []struct {
		name     string
		header   map[string]string
		remote   string
		expected string
	}{
		{name: "remote addr", remote: "10.0.0.1:999", expected: "10.0.0.1"},
		{name: "forwarded for", header: map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2"}, remote: "10.0.0.1:999", expected: "1.1.1.1"},
		{name: "real ip", header: map[string]string{"X-Real-IP": "3.3.3.3"}, remote: "10.0.0.1:999", expected: "3.3.3.3"},
		{name: "no port", remote: "pipe", expected: "pipe"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}

			assert.Equal(t, lookupClient(req), tc.expected, "client mismatch")
		})
	}
}

func TestCleanup(t *testing.T) {
	limiter := NewRateLimiter(10, 10)
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

	limiter.getVisitor("a", now)
	limiter.getVisitor("b", now.Add(2*time.Minute))

	removed := limiter.cleanup(now.Add(4*time.Minute), visitorTTL)
	assert.Equal(t, removed, 1, "removed count mismatch")
	assert.Equal(t, len(limiter.visitors), 1, "remaining visitors mismatch")
}
