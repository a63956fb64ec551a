package cache

import (
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// NewResponseCache selects a backend from config. "redis" requires a
// connected client, "db" requires an open database; anything else falls
// back to the in-memory cache.
func NewResponseCache(cfg Config, redisClient *redis.Client, db *gorm.DB) ResponseCache {
	switch cfg.Backend {
	case "redis":
		return NewRedisCache(redisClient, cfg.Prefix, cfg.TTL)
	case "db":
		return NewDBCache(db)
	default:
		return NewMemoryCache(cfg.TTL)
	}
}
