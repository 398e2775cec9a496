package security

import (
	"context"

	"pii-tagger/internal/domain"
)

// execStep builds a statement and executes it, mapping both build and
// execution failures to a DDLExecutionError.
func execStep(ctx context.Context, sess domain.Session, e domain.DDLExecutionError, build func() (string, error)) error {
	stmt, err := build()
	if err != nil {
		e.Err = err
		return &e
	}
	if err := sess.Exec(ctx, stmt); err != nil {
		e.Statement = stmt
		e.Err = err
		return &e
	}
	return nil
}
