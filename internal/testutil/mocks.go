// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase. This follows the Go convention of a
// shared test utility package (like net/http/httptest).
package testutil

import (
	"context"
	"sync"

	"pii-tagger/internal/domain"
)

// === Session Mock ===

// MockSession implements domain.Session for testing. Every Exec statement is
// recorded in order, including ones that fail.
type MockSession struct {
	ExecFn  func(ctx context.Context, stmt string, args ...any) error
	QueryFn func(ctx context.Context, stmt string, args ...any) ([]string, []domain.Row, error)
	CloseFn func() error

	Execs   []string
	Queries []string
	Closed  int
}

// Exec implements the interface method for testing.
func (m *MockSession) Exec(ctx context.Context, stmt string, args ...any) error {
	m.Execs = append(m.Execs, stmt)
	if m.ExecFn != nil {
		return m.ExecFn(ctx, stmt, args...)
	}
	return nil
}

// Query implements the interface method for testing.
func (m *MockSession) Query(ctx context.Context, stmt string, args ...any) ([]string, []domain.Row, error) {
	m.Queries = append(m.Queries, stmt)
	if m.QueryFn != nil {
		return m.QueryFn(ctx, stmt, args...)
	}
	panic("unexpected call to MockSession.Query: " + stmt)
}

// Close implements the interface method for testing.
func (m *MockSession) Close() error {
	m.Closed++
	if m.CloseFn != nil {
		return m.CloseFn()
	}
	return nil
}

var _ domain.Session = (*MockSession)(nil)

// === Session Opener Mock ===

// MockOpener implements domain.SessionOpener for testing.
type MockOpener struct {
	Session *MockSession
	OpenErr error
	Opened  int
}

// Open implements the interface method for testing.
func (m *MockOpener) Open(_ context.Context) (domain.Session, error) {
	m.Opened++
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	return m.Session, nil
}

var _ domain.SessionOpener = (*MockOpener)(nil)

// === Classification Oracle Mock ===

// MockOracle implements domain.ClassificationOracle for testing.
type MockOracle struct {
	ClassifyFn func(ctx context.Context, sess domain.Session, table domain.TableRef) (map[string]domain.ColumnCategory, error)
	Calls      []domain.TableRef
}

// Classify implements the interface method for testing.
func (m *MockOracle) Classify(ctx context.Context, sess domain.Session, table domain.TableRef) (map[string]domain.ColumnCategory, error) {
	m.Calls = append(m.Calls, table)
	if m.ClassifyFn != nil {
		return m.ClassifyFn(ctx, sess, table)
	}
	panic("unexpected call to MockOracle.Classify")
}

// CalledFor returns true if Classify was called for the table name.
func (m *MockOracle) CalledFor(name string) bool {
	for _, c := range m.Calls {
		if c.Name == name {
			return true
		}
	}
	return false
}

var _ domain.ClassificationOracle = (*MockOracle)(nil)

// === Run Ledger Mock ===

// MockLedger implements domain.RunLedger in memory for testing.
type MockLedger struct {
	mu          sync.Mutex
	Runs        map[string]*domain.Run
	Transitions map[string][]domain.RunState
	Tables      map[string][]domain.TableResult
	Err         error // returned from every write when set
}

// NewMockLedger creates an empty MockLedger.
func NewMockLedger() *MockLedger {
	return &MockLedger{
		Runs:        map[string]*domain.Run{},
		Transitions: map[string][]domain.RunState{},
		Tables:      map[string][]domain.TableResult{},
	}
}

// StartRun implements the interface method for testing.
func (m *MockLedger) StartRun(_ context.Context, run *domain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	cp := *run
	m.Runs[run.ID] = &cp
	return nil
}

// RecordTransition implements the interface method for testing.
func (m *MockLedger) RecordTransition(_ context.Context, runID string, state domain.RunState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Transitions[runID] = append(m.Transitions[runID], state)
	return nil
}

// RecordTable implements the interface method for testing.
func (m *MockLedger) RecordTable(_ context.Context, runID string, result domain.TableResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Tables[runID] = append(m.Tables[runID], result)
	return nil
}

// FinishRun implements the interface method for testing.
func (m *MockLedger) FinishRun(_ context.Context, runID string, state domain.RunState, errMsg *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if r, ok := m.Runs[runID]; ok {
		r.State = state
		r.Error = errMsg
	}
	return nil
}

// ListRuns implements the interface method for testing.
func (m *MockLedger) ListRuns(_ context.Context, _ int) ([]domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Run, 0, len(m.Runs))
	for _, r := range m.Runs {
		out = append(out, *r)
	}
	return out, nil
}

// ListTableResults implements the interface method for testing.
func (m *MockLedger) ListTableResults(_ context.Context, runID string) ([]domain.TableResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TableResult(nil), m.Tables[runID]...), nil
}

var _ domain.RunLedger = (*MockLedger)(nil)
