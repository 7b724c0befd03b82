package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// errRateLimited feeds core.MapError's RATE001 pattern.
var errRateLimited = errors.New("rate limit exceeded")

// rateLimiter keeps one token bucket per client IP. perMinute <= 0 disables
// it.
type rateLimiter struct {
	name     string
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter creates a limiter allowing perMinute requests per minute,
// with bursts up to perMinute. Stale visitors are dropped until ctx ends.
func newRateLimiter(ctx context.Context, name string, perMinute int) *rateLimiter {
	rl := &rateLimiter{
		name:     name,
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    perMinute,
	}
	if perMinute > 0 {
		go rl.cleanup(ctx)
	}
	return rl
}

// cleanup removes visitors not seen for three minutes.
func (rl *rateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastSeen) > 3*time.Minute {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

func (rl *rateLimiter) disabled() bool {
	return rl.burst <= 0
}

// allow consumes a token for ip.
func (rl *rateLimiter) allow(ip string) bool {
	if rl.disabled() {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow()
}

// retryAfter is the wait before the next token, in whole seconds.
func (rl *rateLimiter) retryAfter() int {
	if rl.limit <= 0 {
		return 60
	}
	secs := int(1/float64(rl.limit)) + 1
	return secs
}

// rateLimit rejects requests over rl's budget with 429. The client IP is
// RemoteAddr as rewritten by TrustedRealIP.
func (s *Server) rateLimit(rl *rateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !s.cfg.Rate.Enabled || rl.allow(clientIP(r)) {
				next.ServeHTTP(w, r)
				return
			}
			s.metrics.RecordRateLimitHit(rl.name)
			w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
			s.respondError(w, r, errRateLimited, http.StatusTooManyRequests)
		})
	}
}

// clientIP strips the port from RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
