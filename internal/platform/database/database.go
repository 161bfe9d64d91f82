package database

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/seproj/chatbackend/internal/platform/logging"
)

// Config holds DB configuration
type Config struct {
	Path     string
	LogLevel logger.LogLevel
	Log      logging.Logger

	// Models are auto-migrated on open.
	Models []any
}

// Open opens a SQLite DB and runs migrations
func Open(cfg Config) (*gorm.DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database: path is required")
	}
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Warn
	}
	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("database: create dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", cfg.Path)

	logw := cfg.Log.Writer("warn")
	gormLogger := logger.New(
		log.New(logw, "", 0),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  cfg.LogLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		_ = logw.Close()
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Use(logSink{w: logw}); err != nil {
		_ = logw.Close()
		return nil, fmt.Errorf("register log sink: %w", err)
	}

	// SQLite serialises writers; one connection avoids "database is locked".
	sqlDB, err := db.DB()
	if err != nil {
		_ = Close(db)
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if len(cfg.Models) > 0 {
		if err := db.AutoMigrate(cfg.Models...); err != nil {
			_ = Close(db)
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}
	return db, nil
}

const logSinkName = "chatbackend:logsink"

// logSink is registered as a gorm plugin so Close can find and release the
// log writer that backs the gorm logger.
type logSink struct {
	w io.Closer
}

func (logSink) Name() string              { return logSinkName }
func (logSink) Initialize(*gorm.DB) error { return nil }

// Close releases the connection pool and the gorm log writer.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	var errs []error
	if sqlDB, err := db.DB(); err != nil {
		errs = append(errs, err)
	} else {
		errs = append(errs, sqlDB.Close())
	}
	if p, ok := db.Config.Plugins[logSinkName]; ok {
		if sink, ok := p.(logSink); ok {
			errs = append(errs, sink.w.Close())
		}
		delete(db.Config.Plugins, logSinkName)
	}
	return errors.Join(errs...)
}
