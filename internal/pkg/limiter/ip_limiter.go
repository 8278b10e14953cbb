/*
Package limiter provides the two admission controls used by the server: a
token-bucket limiter keyed by client IP for the HTTP/WebSocket upgrade path,
and a sliding-window limiter keyed by user for room-join attempts.

The IP limiter uses rate.Limiter and runs a cleanup goroutine that drops
limiters whose buckets have refilled, preventing unbounded growth.
*/
package limiter

import (
	"net"
	"net/http"
	"sync"
	"time"

	"geochat/internal/pkg/errs"
	"geochat/internal/pkg/logx"
	"geochat/internal/pkg/resp"

	"golang.org/x/time/rate"
)

// IPRateLimiter implements a token-bucket rate limiter per client IP address.
type IPRateLimiter struct {
	// mu protects concurrent access to the limits map.
	mu *sync.RWMutex

	// limits maps client IP address to its *rate.Limiter instance.
	limits map[string]*rate.Limiter

	// r is the sustained event rate allowed per IP.
	r rate.Limit

	// b is the burst size of each bucket.
	b int
}

// NewIPRateLimiter creates an IPRateLimiter with rate r and burst b, and
// starts the background cleanup goroutine.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	i := &IPRateLimiter{
		mu:     &sync.RWMutex{},
		limits: make(map[string]*rate.Limiter),
		r:      r,
		b:      b,
	}

	go i.cleanUpVisitors()

	return i
}

// GetLimiter returns the limiter for the given IP, creating it on first use.
// Double-checked locking keeps creation concurrent-safe without serializing
// every lookup.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.RLock()
	limiter, exists := i.limits[ip]
	i.mu.RUnlock()

	if !exists {
		i.mu.Lock()
		limiter, exists = i.limits[ip]
		if !exists {
			limiter = rate.NewLimiter(i.r, i.b)
			i.limits[ip] = limiter
		}
		i.mu.Unlock()
	}

	return limiter
}

// cleanUpVisitors periodically removes limiters whose token buckets are full,
// i.e. IPs that have been idle long enough to not matter anymore.
func (i *IPRateLimiter) cleanUpVisitors() {
	ticker := time.NewTicker(3 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		i.mu.Lock()
		count := 0
		for ip, limiter := range i.limits {
			if limiter.TokensAt(time.Now()) >= float64(limiter.Burst()) {
				delete(i.limits, ip)
				count++
			}
		}
		i.mu.Unlock()
		logx.Info("Rate limiter cleanup finished.", "removed", count, "active", len(i.limits))
	}
}

// Middleware returns an HTTP middleware that rejects requests over the limit
// with a 429 response.
func (i *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		limiter := i.GetLimiter(ip)

		if !limiter.Allow() {
			rateLimitErr := errs.NewError(errs.ErrTooManyJoinAttempts)
			resp.RespondError(w, r, rateLimitErr)
			return
		}

		next.ServeHTTP(w, r)
	})
}
