package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"nkelo-gateway/internal/metrics"
	"nkelo-gateway/pkg/logging"
)

// LoggingCache wraps a ResponseCache with logging + metrics.
type LoggingCache struct {
	inner ResponseCache
}

// NewLoggingCache returns a cache that logs and records metrics.
func NewLoggingCache(inner ResponseCache) ResponseCache {
	return &LoggingCache{inner: inner}
}

func (c *LoggingCache) Get(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()
	value, ok, err := c.inner.Get(ctx, key)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	logger := logging.L(ctx)

	result := "miss"
	if err != nil {
		result = "error"
	} else if ok {
		result = "hit"
		metrics.CacheHitsTotal.Inc()
	}

	fields := []zap.Field{
		zap.String("fingerprint", key),
		zap.String("cache_result", result), // hit | miss | error
		zap.Float64("latency_ms", latencyMs),
	}

	if err != nil {
		logger.Warn("response_cache_get", append(fields, zap.Error(err))...)
	} else {
		logger.Info("response_cache_get", fields...)
	}

	return value, ok, err
}

func (c *LoggingCache) Put(ctx context.Context, key, value string, meta Entry) error {
	start := time.Now()
	err := c.inner.Put(ctx, key, value, meta)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	logger := logging.L(ctx)

	fields := []zap.Field{
		zap.String("fingerprint", key),
		zap.String("user_id", meta.UserID),
		zap.String("action_type", meta.ActionType),
		zap.Float64("latency_ms", latencyMs),
	}

	if err != nil {
		metrics.CacheWriteFailuresTotal.Inc()
		logger.Warn("response_cache_put", append(fields, zap.Error(err))...)
	} else {
		logger.Info("response_cache_put", fields...)
	}

	return err
}
