package lock

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/lib/pq"
)

// PgAdvisoryLocker holds PostgreSQL session advisory locks. Each held lock
// pins its own connection, since the lock lives as long as the session.
type PgAdvisoryLocker struct {
	db    *sql.DB
	mu    sync.Mutex
	conns map[string]*sql.Conn
}

// NewPgAdvisoryLocker opens a lib/pq pool dedicated to locking.
func NewPgAdvisoryLocker(dsn string) (*PgAdvisoryLocker, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock connection: %w", err)
	}
	db.SetMaxOpenConns(4)
	return NewPgAdvisoryLockerFromDB(db), nil
}

func NewPgAdvisoryLockerFromDB(db *sql.DB) *PgAdvisoryLocker {
	return &PgAdvisoryLocker{db: db, conns: make(map[string]*sql.Conn)}
}

func (l *PgAdvisoryLocker) Acquire(ctx context.Context, name string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.conns[name]; held {
		return false, nil
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get lock connection: %w", err)
	}

	var ok bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock(hashtext($1))", name).Scan(&ok); err != nil {
		conn.Close()
		return false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if !ok {
		conn.Close()
		return false, nil
	}

	l.conns[name] = conn
	return true, nil
}

func (l *PgAdvisoryLocker) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	conn, held := l.conns[name]
	delete(l.conns, name)
	l.mu.Unlock()

	if !held {
		return nil
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock(hashtext($1))", name); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", name, err)
	}
	return nil
}

func (l *PgAdvisoryLocker) Close() error {
	return l.db.Close()
}
