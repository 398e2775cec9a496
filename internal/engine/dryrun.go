package engine

import (
	"context"
	"log/slog"

	"pii-tagger/internal/domain"
)

// Compile-time checks.
var (
	_ domain.Session       = (*DryRunSession)(nil)
	_ domain.SessionOpener = (*DryRunOpener)(nil)
)

// DryRunSession passes reads through to the wrapped session and logs writes
// without executing them. Table listing and classification still run, so
// the logged plan is the one a real run would execute.
type DryRunSession struct {
	inner      domain.Session
	logger     *slog.Logger
	Statements []string
}

// NewDryRunSession wraps inner.
func NewDryRunSession(inner domain.Session, logger *slog.Logger) *DryRunSession {
	return &DryRunSession{inner: inner, logger: logger}
}

// Exec records the statement instead of running it.
func (s *DryRunSession) Exec(_ context.Context, stmt string, _ ...any) error {
	s.Statements = append(s.Statements, stmt)
	s.logger.Info("dry run: not executed", "sql", stmt)
	return nil
}

// Query delegates to the wrapped session.
func (s *DryRunSession) Query(ctx context.Context, stmt string, args ...any) ([]string, []domain.Row, error) {
	return s.inner.Query(ctx, stmt, args...)
}

// Close closes the wrapped session.
func (s *DryRunSession) Close() error {
	return s.inner.Close()
}

// DryRunOpener opens the wrapped opener's session and wraps it in a DryRunSession.
type DryRunOpener struct {
	Inner  domain.SessionOpener
	Logger *slog.Logger
}

// Open implements domain.SessionOpener.
func (o *DryRunOpener) Open(ctx context.Context) (domain.Session, error) {
	sess, err := o.Inner.Open(ctx)
	if err != nil {
		return nil, err
	}
	return NewDryRunSession(sess, o.Logger), nil
}
