// Package engine provides the remote session the workflow executes statements on.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"pii-tagger/internal/domain"
)

// Compile-time check.
var _ domain.Session = (*Session)(nil)

// Session pins one connection from a *sql.DB for the lifetime of a run.
// Every statement goes through that connection, so session state such as
// USE ROLE carries across calls.
type Session struct {
	db     *sql.DB
	conn   *sql.Conn
	logger *slog.Logger
}

// NewSession acquires a pinned connection from db. Close releases both the
// connection and db.
func NewSession(ctx context.Context, db *sql.DB, logger *slog.Logger) (*Session, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &Session{db: db, conn: conn, logger: logger}, nil
}

// Exec runs a statement that returns no rows.
func (s *Session) Exec(ctx context.Context, stmt string, args ...any) error {
	s.logger.Debug("exec", "sql", stmt)
	_, err := s.conn.ExecContext(ctx, stmt, args...)
	return err
}

// Query runs a statement and buffers every row. Result sets here are small
// (a table listing or one classification document).
func (s *Session) Query(ctx context.Context, stmt string, args ...any) ([]string, []domain.Row, error) {
	s.logger.Debug("query", "sql", stmt)
	rows, err := s.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out []domain.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		out = append(out, domain.Row(vals))
	}
	return cols, out, rows.Err()
}

// Close releases the pinned connection and the pool.
func (s *Session) Close() error {
	return errors.Join(s.conn.Close(), s.db.Close())
}

// Opener opens a database/sql pool for a driver and pins a Session on it.
type Opener struct {
	DriverName string
	DSN        string
	Logger     *slog.Logger
}

// Compile-time check.
var _ domain.SessionOpener = (*Opener)(nil)

// Open connects, verifies the connection, and returns the run's session.
func (o *Opener) Open(ctx context.Context) (domain.Session, error) {
	db, err := sql.Open(o.DriverName, o.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", o.DriverName, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", o.DriverName, err)
	}
	sess, err := NewSession(ctx, db, o.Logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return sess, nil
}
