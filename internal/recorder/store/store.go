// Package store persists the messages VENs publish into SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/autopeer-io/vensim/pkg/options"
)

// Table names a recorded message stream.
type Table string

const (
	TableTelemetry Table = "telemetry"
	TableLoads     Table = "loads"
	TableAcks      Table = "acks"
	TableEvents    Table = "events"
)

// Tables lists every table, in purge order.
var Tables = []Table{TableTelemetry, TableLoads, TableAcks, TableEvents}

// DB wraps the SQLite connection.
type DB struct {
	*sql.DB
	path string
}

// Open opens (or creates) the database described by opts and runs migrations.
func Open(opts *options.SQLiteOptions) (*DB, error) {
	path := opts.Path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		path, opts.BusyTimeout.Milliseconds())
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer; also keeps ":memory:" on a single shared database.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, path: path}
	if err := db.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (db *DB) migrate() error {
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Purge deletes rows received before cutoff from every table and returns the
// number of rows removed.
func (db *DB) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	var total int64
	for _, t := range Tables {
		res, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE received_at < ?", t), cutoff.UnixMilli())
		if err != nil {
			return 0, fmt.Errorf("purge %s: %w", t, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

// Count returns the number of rows in t, optionally limited to one VEN.
func (db *DB) Count(ctx context.Context, t Table, venID string) (int, error) {
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s", t)
	args := []any{}
	if venID != "" {
		q += " WHERE ven_id = ?"
		args = append(args, venID)
	}
	var n int
	err := db.QueryRowContext(ctx, q, args...).Scan(&n)
	return n, err
}
