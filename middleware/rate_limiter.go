package middleware

import (
	"sync"
	"time"

	"webmail/utils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*rateClient
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

type rateClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows requests per window for each IP
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	return &RateLimiter{
		clients: make(map[string]*rateClient),
		limit:   rate.Every(window / time.Duration(requests)),
		burst:   requests,
		now:     time.Now,
	}
}

// Allow reports whether ip may make another request now
func (r *RateLimiter) Allow(ip string) bool {
	r.mu.Lock()
	cl, exists := r.clients[ip]
	if !exists {
		cl = &rateClient{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.clients[ip] = cl
	}
	now := r.now()
	cl.lastSeen = now
	r.mu.Unlock()

	return cl.limiter.AllowN(now, 1)
}

// Cleanup forgets clients idle for longer than maxIdle and returns how many
// were dropped
func (r *RateLimiter) Cleanup(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	removed := 0
	for ip, cl := range r.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(r.clients, ip)
			removed++
		}
	}
	return removed
}

// Handler returns the middleware. Requests for which skip returns true are
// not counted.
func (r *RateLimiter) Handler(skip func(*fiber.Ctx) bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if skip != nil && skip(c) {
			return c.Next()
		}
		if !r.Allow(c.IP()) {
			utils.Log.Warn("Rate limit exceeded for %s on %s", c.IP(), c.Path())
			return utils.TooManyRequestsError(utils.T(Localizer(c), "error_rate_limited"), nil)
		}
		return c.Next()
	}
}
