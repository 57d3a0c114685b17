//go:build !(rp2040 || rp2350)

// Package feedstore keeps channel feed entries in a local SQLite database,
// one row per upstream entry id.
package feedstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"envnode-go/errcode"
)

const schema = `
CREATE TABLE IF NOT EXISTS sensor_readings (
	entry_id    INTEGER PRIMARY KEY,
	created_at  TEXT    NOT NULL,
	temperature REAL    NOT NULL,
	humidity    REAL,
	stored_at   TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS sensor_readings_created ON sensor_readings(created_at);
`

// Reading is one stored feed entry. Humidity is nil for nodes without a
// humidity channel.
type Reading struct {
	EntryID     int64     `json:"entry_id"`
	CreatedAt   time.Time `json:"created_at"`
	Temperature float64   `json:"temperature_c"`
	Humidity    *float64  `json:"humidity_pct,omitempty"`
}

// Store wraps the database handle.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (creating when needed) the database at path and applies the
// schema. ":memory:" is accepted for tests.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errcode.Wrap(errcode.StorageOpen, "mkdir "+dir, err)
			}
		}
		dsn = "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errcode.Wrap(errcode.StorageOpen, "db open", err)
	}
	// One writer; sqlite serialises anyway and :memory: is per connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errcode.Wrap(errcode.StorageOpen, "db ping", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errcode.Wrap(errcode.StorageOpen, "db schema", err)
	}
	return &Store{db: db, log: log.With("svc", "feedstore")}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Insert stores r unless its entry id is already present. It reports
// whether a row was added.
func (s *Store) Insert(ctx context.Context, r Reading) (bool, error) {
	var hum sql.NullFloat64
	if r.Humidity != nil {
		hum = sql.NullFloat64{Float64: *r.Humidity, Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sensor_readings (entry_id, created_at, temperature, humidity, stored_at)
		 VALUES (?, ?, ?, ?, ?)`,
		r.EntryID, r.CreatedAt.UTC().Format(time.RFC3339), r.Temperature, hum, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return false, errcode.Wrap(errcode.StorageWrite, "insert", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errcode.Wrap(errcode.StorageWrite, "insert", err)
	}
	if n > 0 {
		s.log.Debug("stored", "entry_id", r.EntryID, "t", r.Temperature)
	}
	return n > 0, nil
}

// Latest returns the entry with the highest id, or errcode.NotFound.
func (s *Store) Latest(ctx context.Context) (Reading, error) {
	rs, err := s.Recent(ctx, 1)
	if err != nil {
		return Reading{}, err
	}
	if len(rs) == 0 {
		return Reading{}, errcode.Wrap(errcode.NotFound, "latest", nil)
	}
	return rs[0], nil
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Reading, error) {
	if n <= 0 {
		n = 1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT entry_id, created_at, temperature, humidity
		   FROM sensor_readings ORDER BY entry_id DESC LIMIT ?`, n)
	if err != nil {
		return nil, errcode.Wrap(errcode.StorageRead, "query", err)
	}
	defer rows.Close()

	out := make([]Reading, 0, n)
	for rows.Next() {
		var (
			r       Reading
			created string
			hum     sql.NullFloat64
		)
		if err := rows.Scan(&r.EntryID, &created, &r.Temperature, &hum); err != nil {
			return nil, errcode.Wrap(errcode.StorageRead, "scan", err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, errcode.Wrap(errcode.StorageRead, "scan", fmt.Errorf("created_at %q: %w", created, err))
		}
		if hum.Valid {
			h := hum.Float64
			r.Humidity = &h
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errcode.Wrap(errcode.StorageRead, "rows", err)
	}
	return out, nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sensor_readings`).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errcode.Wrap(errcode.StorageRead, "count", err)
	}
	return n, nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
