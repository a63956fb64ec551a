// Package cache implements the content-addressed AI response cache.
//
// Keys are SHA-256 fingerprints of the request material (see fingerprint.go).
// Three backends implement ResponseCache: an in-memory TTL map for
// development, Redis, and a durable database row cache. The orchestrator
// treats every backend the same way: read errors are a miss, write errors
// are best-effort.
package cache

import (
	"context"
	"time"
)

// Entry carries the audit metadata stored alongside a cached response.
type Entry struct {
	UserID     string
	ActionType string
}

// ResponseCache is the interface used by the orchestrator.
type ResponseCache interface {
	// Get returns the cached response text for key, or ok=false on a miss.
	// An error means the lookup itself failed; callers treat it as a miss.
	Get(ctx context.Context, key string) (string, bool, error)

	// Put upserts the response text under key. Failures must not abort an
	// otherwise-successful request.
	Put(ctx context.Context, key, value string, meta Entry) error
}

// Config selects and configures the cache backend.
type Config struct {
	Backend string // "memory", "redis" or "db"
	TTL     time.Duration
	Prefix  string
}
