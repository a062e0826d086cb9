package database

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	cgosqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frogteam/frogteam/config"
)

// Dialector maps a configured driver name onto a GORM dialector.
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	dsn := cfg.DSN()
	switch strings.ToLower(cfg.Driver) {
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlite":
		if dsn == "" {
			return nil, fmt.Errorf("sqlite database name (file path) is required")
		}
		return sqlite.Open(dsn), nil
	case "sqlite3":
		if dsn == "" {
			return nil, fmt.Errorf("sqlite database name (file path) is required")
		}
		return cgosqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
}

// Open connects to the configured database and wraps it in a PoolManager.
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*PoolManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger(logger)})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}
	pool := DefaultPoolConfig()
	if cfg.MaxOpenConns > 0 {
		pool.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		pool.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.ConnMaxLifetime > 0 {
		pool.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	return NewPoolManager(db, pool, logger)
}

// newGormLogger routes gorm's SQL logging through zap at warn level so slow
// queries and errors show up without echoing every statement.
func newGormLogger(logger *zap.Logger) gormlogger.Interface {
	level := gormlogger.Warn
	if logger.Core().Enabled(zapcore.DebugLevel) {
		level = gormlogger.Info
	}
	w := zap.NewStdLog(logger.With(zap.String("component", "gorm")))
	return gormlogger.New(w, gormlogger.Config{
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}
