package domain

import "context"

// Row is one result row, in column order.
type Row []any

// Text returns column i as a string when the driver returned text.
func (r Row) Text(i int) (string, bool) {
	if i < 0 || i >= len(r) {
		return "", false
	}
	switch v := r[i].(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}

// Session is the single remote session a run executes every statement on.
// Implemented by engine.Session and engine.DryRunSession.
type Session interface {
	// Exec runs a statement that returns no rows (DDL, GRANT, USE).
	Exec(ctx context.Context, stmt string, args ...any) error
	// Query runs a statement and returns its column names and rows.
	Query(ctx context.Context, stmt string, args ...any) ([]string, []Row, error)
	// Close releases the session.
	Close() error
}

// SessionOpener acquires the run's session.
// Implemented by engine.Opener.
type SessionOpener interface {
	Open(ctx context.Context) (Session, error)
}

// ClassificationOracle recommends which columns of a table hold PII.
// Implemented by classification.SemanticOracle.
type ClassificationOracle interface {
	Classify(ctx context.Context, sess Session, table TableRef) (map[string]ColumnCategory, error)
}

// RunLedger records runs, state transitions, and table outcomes.
// Implemented by repository.RunLedgerRepo; writes are best-effort.
type RunLedger interface {
	StartRun(ctx context.Context, run *Run) error
	RecordTransition(ctx context.Context, runID string, state RunState) error
	RecordTable(ctx context.Context, runID string, result TableResult) error
	FinishRun(ctx context.Context, runID string, state RunState, errMsg *string) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	ListTableResults(ctx context.Context, runID string) ([]TableResult, error)
}
