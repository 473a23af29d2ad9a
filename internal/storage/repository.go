package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Sandy01030103/gold-price-etl/internal/extractor"
	"github.com/Sandy01030103/gold-price-etl/internal/normalizer"
)

type dialect struct {
	name        string
	driverName  string
	idColumn    string
	timeColumn  string
	priceColumn string
	tableLookup string
	placeholder func(n int) string
}

var (
	sqliteDialect = dialect{
		name:        "sqlite",
		driverName:  "sqlite3",
		idColumn:    "INTEGER PRIMARY KEY AUTOINCREMENT",
		timeColumn:  "DATETIME",
		priceColumn: "REAL",
		tableLookup: "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
		placeholder: func(int) string { return "?" },
	}
	postgresDialect = dialect{
		name:        "postgres",
		driverName:  "pgx",
		idColumn:    "BIGSERIAL PRIMARY KEY",
		timeColumn:  "TIMESTAMPTZ",
		priceColumn: "DOUBLE PRECISION",
		tableLookup: "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1",
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	}
)

type queries struct {
	schema      []string
	insert      string
	listRecent  string
	listBetween string
	count       string
	tableExists string
}

func priceColumns(shape extractor.Shape) []string {
	if shape == extractor.ShapeSingle {
		return []string{"price"}
	}
	return []string{"bank_selling_price", "bank_buying_price"}
}

func buildQueries(d dialect, shape extractor.Shape, table string) queries {
	cols := priceColumns(shape)

	var ddl strings.Builder
	fmt.Fprintf(&ddl, "CREATE TABLE IF NOT EXISTS %s (\n", table)
	fmt.Fprintf(&ddl, "    id %s,\n", d.idColumn)
	fmt.Fprintf(&ddl, "    fetch_time %s NOT NULL,\n", d.timeColumn)
	for _, c := range cols {
		fmt.Fprintf(&ddl, "    %s %s NOT NULL CHECK (%s > 0),\n", c, d.priceColumn, c)
	}
	ddl.WriteString("    status TEXT NOT NULL CHECK (status = 'OK')\n)")

	index := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_fetch_time ON %s (fetch_time)", table, table)

	insertCols := append([]string{"fetch_time"}, cols...)
	insertCols = append(insertCols, "status")
	marks := make([]string, len(insertCols))
	for i := range marks {
		marks[i] = d.placeholder(i + 1)
	}

	selectCols := "id, fetch_time, " + strings.Join(cols, ", ") + ", status"

	return queries{
		schema: []string{ddl.String(), index},
		insert: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
			table, strings.Join(insertCols, ", "), strings.Join(marks, ", ")),
		listRecent: fmt.Sprintf("SELECT %s FROM %s WHERE status = 'OK' ORDER BY fetch_time DESC LIMIT %s",
			selectCols, table, d.placeholder(1)),
		listBetween: fmt.Sprintf("SELECT %s FROM %s WHERE status = 'OK' AND fetch_time >= %s AND fetch_time < %s ORDER BY fetch_time",
			selectCols, table, d.placeholder(1), d.placeholder(2)),
		count:       fmt.Sprintf("SELECT COUNT(*) FROM %s", table),
		tableExists: d.tableLookup,
	}
}

// ReadingStore persists validated readings.
type ReadingStore interface {
	Insert(ctx context.Context, fetchTime time.Time, reading normalizer.Reading) (int64, error)
}

// HistoryReader is the read-only side used by the chart, show and export.
type HistoryReader interface {
	ListRecent(ctx context.Context, limit int) ([]PriceRecord, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]PriceRecord, error)
	Count(ctx context.Context) (int64, error)
}

// Store is an append-only price table. There are no update or delete paths.
type Store struct {
	db      *sql.DB
	dialect dialect
	shape   extractor.Shape
	table   string
	path    string
	queries queries

	// beforeCommit runs inside the insert transaction; tests use it to fail
	// a write midway.
	beforeCommit func(ctx context.Context, tx *sql.Tx) error
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Shape reports which price columns the table holds.
func (s *Store) Shape() extractor.Shape { return s.shape }

// Table reports the table name in use.
func (s *Store) Table() string { return s.table }

func (s *Store) getDB() (*sql.DB, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	return s.db, nil
}

// Insert appends one OK row in a single transaction and returns its id. The
// store assigns the id; fetchTime is stored in UTC.
func (s *Store) Insert(ctx context.Context, fetchTime time.Time, reading normalizer.Reading) (int64, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	if reading.Shape() != s.shape {
		return 0, fmt.Errorf("%w: got %q, table %s holds %q", ErrShapeMismatch, reading.Shape(), s.table, s.shape)
	}

	args := []any{fetchTime.UTC()}
	if s.shape == extractor.ShapeSingle {
		args = append(args, reading.Price())
	} else {
		args = append(args, reading.Selling(), reading.Buying())
	}
	args = append(args, string(normalizer.StatusOK))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	var id int64
	if err := tx.QueryRowContext(ctx, s.queries.insert, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert reading: %w", err)
	}

	if s.beforeCommit != nil {
		if err := s.beforeCommit(ctx, tx); err != nil {
			return 0, fmt.Errorf("insert reading: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit reading: %w", err)
	}
	return id, nil
}

// ListRecent lists the most recent OK rows ordered by descending fetch time.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]PriceRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, queryErr := db.QueryContext(ctx, s.queries.listRecent, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent readings: %w", queryErr)
	}
	defer rows.Close()

	return s.scanRecords(rows, limit)
}

// ListBetween lists OK rows with from <= fetch_time < to in ascending order.
func (s *Store) ListBetween(ctx context.Context, from, to time.Time) ([]PriceRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, queryErr := db.QueryContext(ctx, s.queries.listBetween, from.UTC(), to.UTC())
	if queryErr != nil {
		return nil, fmt.Errorf("list readings between: %w", queryErr)
	}
	defer rows.Close()

	return s.scanRecords(rows, 0)
}

// Count counts stored rows.
func (s *Store) Count(ctx context.Context) (int64, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := db.QueryRowContext(ctx, s.queries.count).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count readings: %w", scanErr)
	}
	return count, nil
}

// TableExists reports whether the price table has been created. It never
// creates anything, so read-only commands can call it on a fresh database.
func (s *Store) TableExists(ctx context.Context) (bool, error) {
	db, err := s.getDB()
	if err != nil {
		return false, err
	}
	var n int
	if scanErr := db.QueryRowContext(ctx, s.queries.tableExists, s.table).Scan(&n); scanErr != nil {
		return false, fmt.Errorf("look up table %s: %w", s.table, scanErr)
	}
	return n > 0, nil
}

func (s *Store) scanRecords(rows *sql.Rows, capacity int) ([]PriceRecord, error) {
	records := make([]PriceRecord, 0, capacity)
	for rows.Next() {
		rec := PriceRecord{Shape: s.shape}
		var scanErr error
		if s.shape == extractor.ShapeSingle {
			scanErr = rows.Scan(&rec.ID, &rec.FetchTime, &rec.Price, &rec.Status)
		} else {
			scanErr = rows.Scan(&rec.ID, &rec.FetchTime, &rec.Selling, &rec.Buying, &rec.Status)
		}
		if scanErr != nil {
			return nil, fmt.Errorf("scan reading: %w", scanErr)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

var (
	_ ReadingStore  = (*Store)(nil)
	_ HistoryReader = (*Store)(nil)
)
