/*
Package limiter provides per-IP rate limiting based on token buckets (rate.Limiter).

Idle limiters are evicted by a sweep loop so that the map does not grow without bound.
*/
package limiter

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"planpoker/internal/pkg/errs"
	"planpoker/internal/pkg/logx"
	"planpoker/internal/pkg/resp"
)

// sweepInterval is how often full (idle) buckets are evicted.
const sweepInterval = 3 * time.Minute

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	mu     sync.RWMutex
	limits map[string]*rate.Limiter
	r      rate.Limit
	b      int
	clock  clockwork.Clock
}

// Option configures an IPRateLimiter.
type Option func(*IPRateLimiter)

// WithClock replaces the wall clock used for token accounting and sweeping.
func WithClock(c clockwork.Clock) Option {
	return func(i *IPRateLimiter) { i.clock = c }
}

// NewIPRateLimiter creates a limiter allowing r events per second with burst b per IP.
// Call Run to enable idle-bucket eviction.
func NewIPRateLimiter(r rate.Limit, b int, opts ...Option) *IPRateLimiter {
	i := &IPRateLimiter{
		limits: make(map[string]*rate.Limiter),
		r:      r,
		b:      b,
		clock:  clockwork.NewRealClock(),
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// GetLimiter returns the bucket for ip, creating it with double-checked locking.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.RLock()
	limiter, exists := i.limits[ip]
	i.mu.RUnlock()

	if exists {
		return limiter
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	limiter, exists = i.limits[ip]
	if !exists {
		limiter = rate.NewLimiter(i.r, i.b)
		i.limits[ip] = limiter
	}

	return limiter
}

// Allow reports whether a request from r may proceed.
func (i *IPRateLimiter) Allow(r *http.Request) bool {
	return i.GetLimiter(ClientIP(r)).AllowN(i.clock.Now(), 1)
}

// Sweep removes buckets that have refilled completely and returns how many were removed.
func (i *IPRateLimiter) Sweep(now time.Time) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	removed := 0
	for ip, limiter := range i.limits {
		if limiter.TokensAt(now) >= float64(limiter.Burst()) {
			delete(i.limits, ip)
			removed++
		}
	}

	return removed
}

// Len returns the number of tracked IPs.
func (i *IPRateLimiter) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.limits)
}

// Run sweeps idle buckets until ctx is cancelled.
func (i *IPRateLimiter) Run(ctx context.Context) error {
	ticker := i.clock.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.Chan():
			removed := i.Sweep(now)
			logx.Debug("Rate limiter sweep finished", "removed", removed, "remaining", i.Len())
		}
	}
}

// Middleware rejects requests over the limit with ErrRateLimitExceeded (HTTP 429).
func (i *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !i.Allow(r) {
			resp.RespondError(w, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP extracts the host part of r.RemoteAddr; middleware.RealIP may already have
// replaced it with a forwarded address.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}

	if ip == "" {
		ip = "unknown_ip"
	}

	return ip
}
