// Package store opens the durable row store shared by the response cache
// and the user-progress tables. Two drivers are supported: SQLite
// (default, zero-config, pure Go) and PostgreSQL (production).
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects and configures the storage driver.
type Config struct {
	Driver string // "sqlite" (default) or "postgres"
	Path   string // sqlite file path
	DSN    string // postgres DSN
}

// CacheEntry is one row of the AI response cache, keyed by fingerprint.
// Rows are upserted on conflict and never deleted by the gateway.
type CacheEntry struct {
	Hash       string `gorm:"primaryKey;size:64"`
	Response   string
	UserID     string `gorm:"index"`
	ActionType string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName keeps the table name aligned with the client app's schema.
func (CacheEntry) TableName() string { return "ai_cache" }

// UserProgress tracks a user's accumulated experience points.
type UserProgress struct {
	UserID    string `gorm:"primaryKey"`
	XP        int
	UpdatedAt time.Time
}

func (UserProgress) TableName() string { return "user_progress" }

// Open connects to the configured database and migrates the schema.
func Open(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	var (
		db  *gorm.DB
		err error
	)

	switch cfg.Driver {
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres DSN is required")
		}
		db, err = gorm.Open(postgres.Open(cfg.DSN), gormCfg)
	case DriverSQLite, "":
		path := cfg.Path
		if path == "" {
			path = "data/nkelo.db"
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		dsn := fmt.Sprintf("%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)", path)
		db, err = gorm.Open(sqlite.Open(dsn), gormCfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driverName(cfg.Driver), err)
	}

	if err := db.AutoMigrate(&CacheEntry{}, &UserProgress{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	logger.Info("store opened", zap.String("driver", driverName(cfg.Driver)))
	return db, nil
}

func driverName(d string) string {
	if d == "" {
		return DriverSQLite
	}
	return d
}
