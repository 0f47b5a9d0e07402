package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// WithdrawRateLimit limits withdrawals per verified caller using Redis if available. It must
// run after CallerAuth so a request naming someone else's account cannot spend their quota;
// without an authenticated caller it counts per IP.
func WithdrawRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next() // no-op without Redis
		}
		subject := "ip:" + c.IP()
		if caller, ok := Caller(c); ok {
			subject = "acct:" + caller.Hex()
		}
		key := "rl:withdraw:" + subject
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(fiber.StatusTooManyRequests, "too many withdrawal attempts, try again later")
		}
		return c.Next()
	}
}
