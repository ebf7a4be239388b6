package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds the settings needed to open the relational store.
type Config struct {
	Driver      string
	DSN         string
	AutoMigrate bool
	Pool        PoolConfig
}

// PoolConfig controls database connection pooling.
type PoolConfig struct {
	MaxOpenConns      int
	MaxIdleConns      int
	ConnMaxLifetimeMS int64
	ConnMaxIdleTimeMS int64
}

// Open connects to the configured database and applies pool limits.
func Open(cfg Config) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("storage dsn is required")
	}
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := ApplyPoolConfig(db, cfg.Pool); err != nil {
		return nil, err
	}
	// An in-memory sqlite database exists per connection; more than one
	// pooled connection would each see an empty database.
	if strings.Contains(cfg.DSN, ":memory:") {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	return db, nil
}

// ApplyPoolConfig applies connection pool limits to a GORM database handle.
func ApplyPoolConfig(db *gorm.DB, cfg PoolConfig) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMS > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMS) * time.Millisecond)
	}
	if cfg.ConnMaxIdleTimeMS > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMS) * time.Millisecond)
	}
	return nil
}
