package middleware

import (
	"context"
	"math"
	"strconv"
	"time"

	"importer_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Limiter decides whether one more request under key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration)
}

// RateLimit limits requests per authenticated user, or per IP before
// authentication.
func RateLimit(limiter Limiter, prefix string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := prefix + ":ip:" + c.IP()
		if uid, ok := c.Locals(LocalUserID).(uuid.UUID); ok {
			key = prefix + ":user:" + uid.String()
		}

		allowed, retryAfter := limiter.Allow(c.Context(), key)
		if !allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			return apperr.New("RATE_LIMITED", "rate limit exceeded", fiber.StatusTooManyRequests).
				WithDetail("retry_after", int(math.Ceil(retryAfter.Seconds())))
		}
		return c.Next()
	}
}

// SecurityHeaders adds security headers to all responses
func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		return c.Next()
	}
}
