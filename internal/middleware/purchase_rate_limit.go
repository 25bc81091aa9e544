package middleware

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// PurchaseRateLimit caps purchase attempts per authenticated subject (or IP
// when no identity is present) using a one-minute Redis counter.
func PurchaseRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 10
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next() // no-op without Redis
		}
		who := Identity(c).Subject
		if who == "" {
			who = c.IP()
		}
		key := "rl:purchase:" + who
		// EXPIRE NX also repairs a counter that lost its TTL on an earlier failure.
		pipe := cache.TxPipeline()
		cnt := pipe.Incr(c.UserContext(), key)
		pipe.ExpireNX(c.UserContext(), key, time.Minute)
		if _, err := pipe.Exec(c.UserContext()); err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt.Val() > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many purchase attempts, try again later")
		}
		return c.Next()
	}
}
