// Package progress issues experience-point rewards against the user
// progress table. Increments are best-effort from the orchestrator's
// perspective: a failure never fails the enclosing request.
package progress

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nkelo-gateway/internal/store"
)

// XPStore grants experience points to a user.
type XPStore interface {
	IncrementXP(ctx context.Context, userID string, amount int) error
}

// DBXPStore implements XPStore with an atomic upsert-increment on the
// user_progress row.
type DBXPStore struct {
	db *gorm.DB
}

// NewDBXPStore creates a database-backed XP store.
func NewDBXPStore(db *gorm.DB) *DBXPStore {
	return &DBXPStore{db: db}
}

func (s *DBXPStore) IncrementXP(ctx context.Context, userID string, amount int) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"xp": gorm.Expr("xp + ?", amount),
			}),
		}).
		Create(&store.UserProgress{UserID: userID, XP: amount}).Error
	if err != nil {
		return fmt.Errorf("incrementing xp for %s: %w", userID, err)
	}
	return nil
}
