package dataprovider

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig describes the store connection.
type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogQueries      bool
	SlowThreshold   time.Duration
}

// Open connects to the configured store, pings it and returns a bun handle.
func Open(ctx context.Context, cfg DatabaseConfig, l *zap.Logger) (*bun.DB, error) {
	if l == nil {
		l = zap.NewNop()
	}
	l = l.With(zap.String("driver", cfg.Driver))

	var (
		sqldb *sql.DB
		err   error
		db    *bun.DB
	)

	switch strings.ToLower(cfg.Driver) {
	case DriverPostgres, "pg":
		if sqldb, err = sql.Open("postgres", cfg.DSN); err != nil {
			return nil, err
		}
		configurePool(sqldb, cfg)
		db = bun.NewDB(sqldb, pgdialect.New())
	case DriverSQLite, "sqlite3":
		if sqldb, err = sql.Open("sqlite3", cfg.DSN); err != nil {
			return nil, err
		}
		if cfg.MaxOpenConns == 0 {
			// every :memory: connection is a separate database
			cfg.MaxOpenConns = 1
		}
		configurePool(sqldb, cfg)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	default:
		return nil, fmt.Errorf("dataprovider: unsupported driver %q", cfg.Driver)
	}

	if err := sqldb.PingContext(ctx); err != nil {
		l.Error("DB/CONN FAILED", zap.Error(err))
		_ = sqldb.Close()
		return nil, err
	}

	if cfg.LogQueries {
		hook := NewQueryHook(l)
		hook.SlowThreshold = cfg.SlowThreshold
		db.AddQueryHook(hook)
	}

	l.Info("DB/CONN CONNECTED", zap.String("action", "connection"))

	return db, nil
}

func configurePool(db *sql.DB, cfg DatabaseConfig) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}
