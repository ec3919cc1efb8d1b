// Package postgres stores view records in PostgreSQL via lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/djlord-it/easy-views/internal/domain"
	"github.com/djlord-it/easy-views/internal/store"
)

// Store implements views.Store using PostgreSQL. The views table is created
// by the operator from schema/views.sql.
type Store struct {
	db        *sql.DB
	opTimeout time.Duration
}

// New creates a new PostgreSQL store with the given database connection.
// opTimeout bounds each statement; zero disables the bound.
func New(db *sql.DB, opTimeout time.Duration) *Store {
	return &Store{db: db, opTimeout: opTimeout}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// InsertView inserts a new view record.
// Returns store.ErrDuplicateView if the id already exists.
func (s *Store) InsertView(ctx context.Context, rec domain.ViewRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, store.InsertQuery(store.Postgres), store.InsertArgs(rec, store.Postgres)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return store.ErrDuplicateView
		}
		return err
	}
	return nil
}

// CountViews counts records (or distinct visitors) matching q.
func (s *Store) CountViews(ctx context.Context, q domain.ViewQuery) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query, args := store.CountQuery(q, store.Postgres)
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// DeleteViews removes records matching q and returns the number removed.
func (s *Store) DeleteViews(ctx context.Context, q domain.ViewQuery) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query, args := store.DeleteQuery(q, store.Postgres)
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// TopSubjects ranks the subjects of q.SubjectType by view count.
func (s *Store) TopSubjects(ctx context.Context, q domain.ViewQuery, limit int) ([]domain.SubjectCount, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query, args := store.TopQuery(q, store.Postgres, limit)
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

// isDuplicateKeyError checks if the error is a PostgreSQL unique violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	// Fall back to the message for wrapped driver errors.
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "23505")
}
