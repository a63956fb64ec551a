package cache

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nkelo-gateway/internal/store"
)

// DBCache implements ResponseCache on the durable ai_cache table. This is
// the backend matching the client app's schema: rows are upserted by
// fingerprint and never expire.
type DBCache struct {
	db *gorm.DB
}

// NewDBCache creates a database-backed cache.
func NewDBCache(db *gorm.DB) *DBCache {
	return &DBCache{db: db}
}

func (c *DBCache) Get(ctx context.Context, key string) (string, bool, error) {
	var entry store.CacheEntry
	err := c.db.WithContext(ctx).
		Select("response").
		Where("hash = ?", key).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache lookup failed: %w", err)
	}
	return entry.Response, true, nil
}

// Put upserts the row for key. A recurring key carries identical semantic
// content by construction, so last-write-wins is safe.
func (c *DBCache) Put(ctx context.Context, key, value string, meta Entry) error {
	entry := store.CacheEntry{
		Hash:       key,
		Response:   value,
		UserID:     meta.UserID,
		ActionType: meta.ActionType,
	}

	err := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hash"}},
			DoUpdates: clause.AssignmentColumns([]string{"response", "user_id", "action_type", "updated_at"}),
		}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("cache upsert failed: %w", err)
	}
	return nil
}
