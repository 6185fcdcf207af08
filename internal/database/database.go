package database

import (
	"errors"
	"fmt"
	"sync"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mx-space/mdx-core/internal/config"
	"github.com/mx-space/mdx-core/internal/models"
	"github.com/mx-space/mdx-core/internal/pkg/apperr"
)

var (
	mu sync.RWMutex
	db *gorm.DB
)

// Connect opens the MySQL connection, optionally migrates, and registers it
// as the handle returned by Require.
func Connect(cfg *config.AppConfig, autoMigrate bool) (*gorm.DB, error) {
	if !cfg.Database.Enabled {
		return nil, apperr.NotConfigured("db")
	}
	conn, err := gorm.Open(mysql.New(mysql.Config{
		DSN:               cfg.DSN,
		DefaultStringSize: 191,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(resolveLogLevel(cfg)),
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if autoMigrate {
		if err := Migrate(conn); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}

	Set(conn)
	return conn, nil
}

// Set registers conn as the process database. Tests use it with sqlite.
func Set(conn *gorm.DB) {
	mu.Lock()
	db = conn
	mu.Unlock()
}

// Require returns the database handle, or an internal error wrapping
// apperr.ErrNotConfigured when no database was connected.
func Require() (*gorm.DB, error) {
	mu.RLock()
	defer mu.RUnlock()
	if db == nil {
		return nil, apperr.NotConfigured("db")
	}
	return db, nil
}

// Close closes the registered connection, if any.
func Close() error {
	mu.Lock()
	conn := db
	db = nil
	mu.Unlock()
	if conn == nil {
		return nil
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func resolveLogLevel(cfg *config.AppConfig) logger.LogLevel {
	if cfg.IsDev() {
		return logger.Info
	}
	return logger.Warn
}

// Migrate creates or updates every table.
func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(models.All()...)
}

// IsNotConfigured reports whether err came from Require without a database.
func IsNotConfigured(err error) bool {
	return errors.Is(err, apperr.ErrNotConfigured)
}
