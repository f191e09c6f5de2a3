package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS events (
    seq    INTEGER PRIMARY KEY AUTOINCREMENT,
    id     TEXT NOT NULL UNIQUE,
    at     TEXT NOT NULL,
    kind   TEXT NOT NULL,
    key    TEXT NOT NULL,
    from_v TEXT,
    to_v   TEXT,
    detail TEXT
);
CREATE INDEX IF NOT EXISTS events_at ON events(at);`

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is an SQLite-backed event table.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventlog: create schema in %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert stores one event. A missing ID or timestamp is filled in.
func (s *Store) Insert(ctx context.Context, e Event) (Event, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events(id, at, kind, key, from_v, to_v, detail) VALUES(?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.At.UTC().Format(timeLayout), string(e.Kind), e.Key, e.From, e.To, e.Detail,
	)
	if err != nil {
		return e, fmt.Errorf("eventlog: insert: %w", err)
	}
	return e, nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, at, kind, key, from_v, to_v, detail FROM events ORDER BY seq DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("eventlog: query: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e                Event
			at, kind         string
			from, to, detail sql.NullString
		)
		if err := rows.Scan(&e.ID, &at, &kind, &e.Key, &from, &to, &detail); err != nil {
			return nil, fmt.Errorf("eventlog: scan: %w", err)
		}
		t, err := time.Parse(timeLayout, at)
		if err != nil {
			return nil, fmt.Errorf("eventlog: bad timestamp %q: %w", at, err)
		}
		e.At = t
		e.Kind = Kind(kind)
		e.From, e.To, e.Detail = from.String, to.String, detail.String
		out = append(out, e)
	}
	return out, rows.Err()
}
