// Package sqlite is the embedded view record store, backed by modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/djlord-it/easy-views/internal/domain"
	"github.com/djlord-it/easy-views/internal/store"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS views (
	id           TEXT PRIMARY KEY,
	subject_type TEXT NOT NULL,
	subject_id   TEXT,
	visitor      TEXT,
	collection   TEXT,
	viewed_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_views_subject ON views(subject_type, subject_id, viewed_at);
CREATE INDEX IF NOT EXISTS idx_views_viewed_at ON views(viewed_at);
`

// Store keeps view records in a SQLite database file (or in memory).
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// DB exposes the handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

// InsertView stores one record.
// Returns store.ErrDuplicateView if the id already exists.
func (s *Store) InsertView(ctx context.Context, rec domain.ViewRecord) error {
	_, err := s.db.ExecContext(ctx, store.InsertQuery(store.SQLite), store.InsertArgs(rec, store.SQLite)...)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrDuplicateView
	}
	return err
}

// CountViews counts records (or distinct visitors) matching q.
func (s *Store) CountViews(ctx context.Context, q domain.ViewQuery) (int, error) {
	query, args := store.CountQuery(q, store.SQLite)
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// DeleteViews removes records matching q and returns how many went.
func (s *Store) DeleteViews(ctx context.Context, q domain.ViewQuery) (int64, error) {
	query, args := store.DeleteQuery(q, store.SQLite)
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// TopSubjects ranks subjects of q.SubjectType by view count.
func (s *Store) TopSubjects(ctx context.Context, q domain.ViewQuery, limit int) ([]domain.SubjectCount, error) {
	query, args := store.TopQuery(q, store.SQLite, limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SubjectCount
	for rows.Next() {
		var sc domain.SubjectCount
		if err := rows.Scan(&sc.SubjectID, &sc.Count); err != nil {
			return nil, err
		}
		result = append(result, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
