package database

import (
	"fmt"
	"os"
	"path/filepath"

	"focusguard/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	stateFileName = "focusguard.db"
	stateDirName  = ".config/focusguard"

	// busyTimeoutMs covers the CLI "clear" and "categorize" commands writing
	// while a serve process holds the file.
	busyTimeoutMs = 5000
)

// DB is the sqlite file holding usage blobs, their backups, focus session
// history and recorded errors.
type DB struct {
	*gorm.DB
}

// StatePath returns ~/.config/focusguard/focusguard.db, creating the directory.
func StatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, stateDirName, stateFileName), nil
}

// Connect opens the state file at path, or at StatePath when path is empty.
// The file runs in WAL mode so report and status readers never block the
// periodic flush.
func Connect(path string) (*DB, error) {
	if path == "" {
		var err error
		if path, err = StatePath(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL", path, busyTimeoutMs)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// One writer keeps Save's upsert and backup rotation serialized.
	sqlDB.SetMaxOpenConns(1)

	return &DB{db}, nil
}

// JournalMode reports the sqlite journal mode in effect.
func (db *DB) JournalMode() (string, error) {
	var mode string
	if err := db.Raw("PRAGMA journal_mode").Scan(&mode).Error; err != nil {
		return "", fmt.Errorf("failed to read journal mode: %w", err)
	}
	return mode, nil
}

// Initialize migrates the blob, backup, error and session tables.
func (db *DB) Initialize() error {
	err := db.AutoMigrate(&models.Blob{}, &models.BlobBackup{}, &models.ErrorLog{}, &models.FocusSession{})
	if err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}
	return nil
}

func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
