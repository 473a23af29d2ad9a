package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Sandy01030103/gold-price-etl/internal/config"
	"github.com/Sandy01030103/gold-price-etl/internal/extractor"
)

var (
	// ErrUnsupportedDriver is returned for drivers other than sqlite and postgres.
	ErrUnsupportedDriver = errors.New("storage: unsupported driver")
	// ErrShapeMismatch is returned when a reading's shape differs from the table's.
	ErrShapeMismatch = errors.New("storage: reading shape does not match table")
	// ErrNotConfigured indicates the store was not opened.
	ErrNotConfigured = errors.New("storage: database not configured")

	tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

const (
	defaultDualTable   = "gold_prices"
	defaultSingleTable = "gold_price_quotes"
)

// DefaultTable returns the table used for a shape when none is configured.
func DefaultTable(shape extractor.Shape) string {
	if shape == extractor.ShapeSingle {
		return defaultSingleTable
	}
	return defaultDualTable
}

// Open prepares a database handle for one run. No connection is made until
// Initialize or a query runs, so a missing sqlite directory is not an error yet.
func Open(ctx context.Context, cfg config.DatabaseConfig, shape extractor.Shape) (*Store, error) {
	if shape != extractor.ShapeSingle && shape != extractor.ShapeDual {
		return nil, fmt.Errorf("storage: unknown shape %q", shape)
	}

	table := cfg.Table
	if table == "" {
		table = DefaultTable(shape)
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("storage: invalid table name %q", table)
	}

	var (
		d   dialect
		dsn string
	)
	switch cfg.Driver {
	case config.DriverSQLite, "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("database.path is required")
		}
		d = sqliteDialect
		dsn = cfg.Path + "?_busy_timeout=5000&_txlock=immediate"
	case config.DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("database.dsn is required")
		}
		d = postgresDialect
		dsn = cfg.DSN
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}

	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d.name, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return &Store{
		db:      db,
		dialect: d,
		shape:   shape,
		table:   table,
		path:    sqlitePath(cfg),
		queries: buildQueries(d, shape, table),
	}, nil
}

func sqlitePath(cfg config.DatabaseConfig) string {
	if cfg.Driver == config.DriverPostgres {
		return ""
	}
	return cfg.Path
}

// Initialize ensures the table exists, creating the sqlite file's directory
// first. Running it repeatedly is a no-op.
func (s *Store) Initialize(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}

	if s.path != "" && s.path != ":memory:" {
		if dir := filepath.Dir(s.path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	for _, stmt := range s.queries.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}
	}
	return nil
}
