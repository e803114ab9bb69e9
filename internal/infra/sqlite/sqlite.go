package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const busyTimeoutMillis = 10000

// New opens the shared SQLite handle used by every writer in the process.
// The DSN enables foreign keys, sets the write-lock wait ceiling, and makes
// every transaction BEGIN IMMEDIATE so contention fails fast instead of
// deadlocking on a mid-transaction lock upgrade.
//
// Pragma hardening beyond the DSN is best effort: failures are logged as
// warnings and the handle is still returned. Only the open itself is fatal.
func New(path string, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o775); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_fk=1&_busy_timeout=%d&_txlock=immediate", path, busyTimeoutMillis)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Warn),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// WAL allows concurrent readers alongside the single writer; the pool
	// stays small because one writer holds the lock at a time anyway.
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	for _, warning := range configure(db) {
		log.Warn("sqlite pragma setup", zap.String("detail", warning))
	}

	return db, nil
}

// configure applies resilience pragmas and returns non-fatal warnings for
// anything that could not be applied or verified.
func configure(db *gorm.DB) []string {
	var warnings []string

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMillis),
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA wal_autocheckpoint=1000",
		"PRAGMA journal_size_limit=67108864",
	}

	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			warnings = append(warnings, fmt.Sprintf("%s failed: %v", pragma, err))
		}
	}

	mode, err := journalMode(db)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("journal_mode query failed: %v", err))
		return warnings
	}
	if mode != "wal" {
		if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
			warnings = append(warnings, fmt.Sprintf("journal_mode=WAL failed: %v", err))
			return warnings
		}
		mode, err = journalMode(db)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("journal_mode verify failed: %v", err))
			return warnings
		}
		if mode != "wal" {
			warnings = append(warnings, fmt.Sprintf("journal_mode is %q, wanted wal", mode))
		}
	}

	return warnings
}

func journalMode(db *gorm.DB) (string, error) {
	var mode string
	if err := db.Raw("PRAGMA journal_mode").Scan(&mode).Error; err != nil {
		return "", err
	}
	return strings.ToLower(mode), nil
}
