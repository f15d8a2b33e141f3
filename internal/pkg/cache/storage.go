package cache

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/storage/redis"

	"github.com/rendeza/rendeza/internal/pkg/config"
)

// limiterDatabaseOffset keeps rate limiter keys out of the cache database.
const limiterDatabaseOffset = 1

// NewLimiterStorage returns a Redis backed fiber.Storage for the rate limiter,
// or nil when Redis is unreachable. The limiter then keeps its counters in memory.
func NewLimiterStorage(cfg config.CacheConfig) fiber.Storage {
	if client == nil {
		return nil
	}
	// redis.New panics on a failed ping, so check with the shared client first.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warnf("[Cache] Redis unavailable, rate limiting falls back to memory: %v", err)
		return nil
	}

	return redis.New(redis.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		Database: cfg.DB + limiterDatabaseOffset,
		Reset:    false,
	})
}
