package http

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apperrors "github.com/asistlabs/asist-service/pkg/util/errorutil"
)

const limiterCleanupInterval = 5 * time.Minute

// ipRateLimiter hands out one token bucket per client IP.
type ipRateLimiter struct {
	limiters    sync.Map // map[string]*rate.Limiter
	limit       rate.Limit
	burst       int
	mu          sync.Mutex
	lastCleanup time.Time
}

func newIPRateLimiter(perMinute, burst int) *ipRateLimiter {
	if burst <= 0 {
		burst = perMinute
	}
	return &ipRateLimiter{
		limit:       rate.Limit(float64(perMinute) / time.Minute.Seconds()),
		burst:       burst,
		lastCleanup: time.Now(),
	}
}

func (rl *ipRateLimiter) get(key string) *rate.Limiter {
	if l, ok := rl.limiters.Load(key); ok {
		return l.(*rate.Limiter)
	}
	actual, _ := rl.limiters.LoadOrStore(key, rate.NewLimiter(rl.limit, rl.burst))
	rl.maybeCleanup()
	return actual.(*rate.Limiter)
}

// maybeCleanup drops buckets that have refilled completely, i.e. idle clients.
func (rl *ipRateLimiter) maybeCleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if time.Since(rl.lastCleanup) < limiterCleanupInterval {
		return
	}
	rl.lastCleanup = time.Now()
	rl.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(rl.burst) {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// RateLimit throttles requests per client IP. perMinute <= 0 disables it.
func RateLimit(perMinute, burst int, logger *zap.Logger) fiber.Handler {
	if perMinute <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	rl := newIPRateLimiter(perMinute, burst)

	return func(c *fiber.Ctx) error {
		limiter := rl.get(c.IP())
		if limiter.Allow() {
			return c.Next()
		}

		reservation := limiter.Reserve()
		delay := reservation.Delay()
		reservation.Cancel()
		retryAfter := int(math.Max(1, math.Ceil(delay.Seconds())))

		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
		logger.Warn("rate limit exceeded",
			zap.String("ip", c.IP()),
			zap.String("path", c.Path()),
			zap.Int("retry_after", retryAfter))
		return apperrors.NewTooManyRequests("too many requests, try again later")
	}
}
