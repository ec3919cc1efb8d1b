package leaderelection

import (
	"context"
	"database/sql"
	"fmt"
)

// AdvisoryLock is a postgres session-scoped advisory lock.
type AdvisoryLock struct {
	db  *sql.DB
	key int64
}

func NewAdvisoryLock(db *sql.DB, key int64) *AdvisoryLock {
	return &AdvisoryLock{db: db, key: key}
}

func (l *AdvisoryLock) String() string {
	return fmt.Sprintf("advisory lock %d", l.key)
}

// TryAcquire takes a dedicated connection and tries the lock without blocking.
// The connection is returned to the pool when the lock is not acquired.
func (l *AdvisoryLock) TryAcquire(ctx context.Context) (Held, bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("dedicated connection: %w", err)
	}

	var acquired bool
	err = conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&acquired)
	if err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("pg_try_advisory_lock(%d): %w", l.key, err)
	}
	if !acquired {
		conn.Close()
		return nil, false, nil
	}
	return &heldConn{conn: conn, key: l.key}, true, nil
}

type heldConn struct {
	conn *sql.Conn
	key  int64
}

func (h *heldConn) Ping(ctx context.Context) error {
	return h.conn.PingContext(ctx)
}

// Release unlocks explicitly, then closes the connection. Closing alone would
// leave the lock on the pooled server session.
func (h *heldConn) Release() error {
	_, unlockErr := h.conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", h.key)
	if err := h.conn.Close(); err != nil {
		return err
	}
	if unlockErr != nil {
		return fmt.Errorf("pg_advisory_unlock(%d): %w", h.key, unlockErr)
	}
	return nil
}
