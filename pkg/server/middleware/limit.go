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
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/matfinder/matsync/pkg/log"
	"golang.org/x/time/rate"
)

const (
	// defaultRatePerSecond is the max requests per second accepted from one client
	defaultRatePerSecond = 50
	// defaultBurst is the burst capacity of a client
	defaultBurst = 100
	// visitorTTL is how long an idle client keeps its limiter
	visitorTTL = 3 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds the per-client rate limiting state
type RateLimiter struct {
	perSecond int
	burst     int
	visitors  map[string]*visitor
	mtx       sync.Mutex
}

// NewRateLimiter creates a rate limiter that admits perSecond requests per
// client with the given burst
func NewRateLimiter(perSecond, burst int) *RateLimiter {
	return &RateLimiter{
		perSecond: perSecond,
		burst:     burst,
		visitors:  make(map[string]*visitor),
	}
}

var (
	defaultLimiter     *RateLimiter
	defaultLimiterOnce sync.Once
)

func getDefaultLimiter() *RateLimiter {
	defaultLimiterOnce.Do(func() {
		defaultLimiter = NewRateLimiter(defaultRatePerSecond, defaultBurst)
		go defaultLimiter.cleanupLoop(time.Minute)
	})

	return defaultLimiter
}

// getVisitor returns the limiter of the client with the given identifier,
// creating one on first sight
func (rl *RateLimiter) getVisitor(identifier string, now time.Time) *rate.Limiter {
	rl.mtx.Lock()
	defer rl.mtx.Unlock()

	v, ok := rl.visitors[identifier]
	if !ok {
		interval := time.Second / time.Duration(rl.perSecond)
		v = &visitor{limiter: rate.NewLimiter(rate.Every(interval), rl.burst)}
		rl.visitors[identifier] = v
	}
	v.lastSeen = now

	return v.limiter
}

// cleanup forgets clients idle for longer than the ttl and returns how many
// were removed
func (rl *RateLimiter) cleanup(now time.Time, ttl time.Duration) int {
	rl.mtx.Lock()
	defer rl.mtx.Unlock()

	removed := 0
	for identifier, v := range rl.visitors {
		if now.Sub(v.lastSeen) > ttl {
			delete(rl.visitors, identifier)
			removed++
		}
	}

	return removed
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for now := range ticker.C {
		rl.cleanup(now, visitorTTL)
	}
}

// lookupClient identifies the caller by forwarded address, falling back to
// the remote host
func lookupClient(r *http.Request) string {
	if forwardedFor := r.Header.Get("X-Forwarded-For"); forwardedFor != "" {
		parts := strings.Split(forwardedFor, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

// Limit is a middleware to rate limit the handler
func (rl *RateLimiter) Limit(next http.Handler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identifier := lookupClient(r)
		limiter := rl.getVisitor(identifier, time.Now())

		if !limiter.Allow() {
			log.WithFields(log.Fields{
				"client": identifier,
			}).Warn("too many requests")
			RespondError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ApplyLimit applies the shared rate limiter when rateLimit is set
func ApplyLimit(h http.HandlerFunc, rateLimit bool) http.Handler {
	if !rateLimit {
		return h
	}

	return getDefaultLimiter().Limit(h)
}
