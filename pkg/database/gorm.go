package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finance-rag-be/internal/model"
	applogger "finance-rag-be/internal/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQueryThreshold = time.Second

func configureConnectionPool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return nil
}

// NewGormDBFromDSN opens a postgres connection whose SQL log goes to log.
func NewGormDBFromDSN(dsn string, log applogger.ILogger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("database DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newGormLogger(log, logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := configureConnectionPool(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate prepares the pgvector extension and the index tables.
func Migrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS vector;`).Error; err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	if err := db.AutoMigrate(&model.IndexGeneration{}, &model.IndexChunk{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_index_chunks_generation ON index_chunks (generation_id, chunk_index);`).Error; err != nil {
		return fmt.Errorf("create chunk index: %w", err)
	}
	return nil
}

// gormLogger forwards gorm's SQL log to the application logger.
type gormLogger struct {
	log   applogger.ILogger
	level logger.LogLevel
}

func newGormLogger(log applogger.ILogger, level logger.LogLevel) logger.Interface {
	return &gormLogger{log: log, level: level}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &gormLogger{log: l.log, level: level}
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Info {
		l.log.Info("GORM", fmt.Sprintf(msg, args...), nil)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Warn {
		l.log.Warn("GORM", fmt.Sprintf(msg, args...), nil)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Error {
		l.log.Error("GORM", fmt.Sprintf(msg, args...), nil)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && l.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.log.Error("GORM", "Query failed", map[string]interface{}{
			"sql":      sql,
			"rows":     rows,
			"duration": elapsed.String(),
			"error":    err.Error(),
		})
	case elapsed > slowQueryThreshold && l.level >= logger.Warn:
		sql, rows := fc()
		l.log.Warn("GORM", "Slow query", map[string]interface{}{
			"sql":      sql,
			"rows":     rows,
			"duration": elapsed.String(),
		})
	case l.level >= logger.Info:
		sql, rows := fc()
		l.log.Debug("GORM", "Query", map[string]interface{}{
			"sql":      sql,
			"rows":     rows,
			"duration": elapsed.String(),
		})
	}
}
