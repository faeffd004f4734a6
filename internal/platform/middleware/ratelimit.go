package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
	}
}

// Buckets idle longer than staleAfter are dropped whenever the client table
// grows past sweepThreshold, keeping memory bounded under churning IPs.
const (
	staleAfter     = 10 * time.Minute
	sweepThreshold = 4096
)

// bucket tracks the token level for one client key.
type bucket struct {
	level float64
	seen  time.Time
}

// limiter hands out tokens per client key. now is swappable in tests.
type limiter struct {
	mu      sync.Mutex
	cfg     RateLimitConfig
	clients map[string]*bucket
	now     func() time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	return &limiter{
		cfg:     cfg,
		clients: make(map[string]*bucket),
		now:     time.Now,
	}
}

// take refills the client's bucket for the elapsed time and consumes one
// token. The second return value is the number of whole tokens left.
func (l *limiter) take(key string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.clients[key]
	if !ok {
		if len(l.clients) >= sweepThreshold {
			l.sweep(now)
		}
		b = &bucket{level: float64(l.cfg.BurstSize)}
		l.clients[key] = b
	} else {
		b.level += now.Sub(b.seen).Seconds() * l.cfg.RequestsPerSecond
		if full := float64(l.cfg.BurstSize); b.level > full {
			b.level = full
		}
	}
	b.seen = now

	if b.level < 1 {
		return false, 0
	}
	b.level--
	return true, int(b.level)
}

// retryAfter reports whole seconds until the client's next token.
func (l *limiter) retryAfter(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg.RequestsPerSecond <= 0 {
		return 1
	}
	b, ok := l.clients[key]
	if !ok {
		return 1
	}
	return int((1-b.level)/l.cfg.RequestsPerSecond) + 1
}

// sweep drops buckets not seen within staleAfter. Caller holds mu.
func (l *limiter) sweep(now time.Time) {
	for key, b := range l.clients {
		if now.Sub(b.seen) > staleAfter {
			delete(l.clients, key)
		}
	}
}

// RateLimit returns a token bucket rate limiter keyed by client IP. Rejected
// requests get 429 with a Retry-After hint; accepted ones carry the number
// of tokens left in X-RateLimit-Remaining.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	lim := newLimiter(cfg)
	limitValue := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP()
			ok, left := lim.take(key)

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limitValue)
			if !ok {
				h.Set("X-RateLimit-Remaining", "0")
				h.Set("Retry-After", strconv.Itoa(lim.retryAfter(key)))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			h.Set("X-RateLimit-Remaining", strconv.Itoa(left))
			return next(c)
		}
	}
}
