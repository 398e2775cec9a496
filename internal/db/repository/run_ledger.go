package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"pii-tagger/internal/domain"
)

// RunLedgerRepo implements domain.RunLedger using SQLite.
type RunLedgerRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewRunLedgerRepo creates a new RunLedgerRepo.
func NewRunLedgerRepo(db *sql.DB) *RunLedgerRepo {
	return &RunLedgerRepo{db: db, now: time.Now}
}

// StartRun inserts a run. A zero StartedAt is set to the current time.
func (r *RunLedgerRepo) StartRun(ctx context.Context, run *domain.Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, database_name, schema_name, warehouse_name, state, dry_run, classify, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Target.Database, run.Target.Schema, run.Target.Warehouse,
		string(run.State), boolToInt(run.DryRun), boolToInt(run.Classify), formatTime(run.StartedAt))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordTransition appends a state transition and moves the run to state.
func (r *RunLedgerRepo) RecordTransition(ctx context.Context, runID string, state domain.RunState) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `UPDATE runs SET state = ? WHERE id = ?`, string(state), runID)
	if err != nil {
		return fmt.Errorf("update run state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapDBError(sql.ErrNoRows)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO run_transitions (run_id, state, entered_at) VALUES (?, ?, ?)`,
		runID, string(state), formatTime(r.now())); err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return tx.Commit()
}

// RecordTable upserts the outcome for one table of a run.
func (r *RunLedgerRepo) RecordTable(ctx context.Context, runID string, result domain.TableResult) error {
	cols := result.TaggedColumns
	if cols == nil {
		cols = []string{}
	}
	colsJSON, err := json.Marshal(cols)
	if err != nil {
		return fmt.Errorf("encode tagged columns: %w", err)
	}
	recordedAt := result.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = r.now()
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO run_tables (run_id, database_name, schema_name, table_name, outcome, tagged_columns, granted, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, database_name, schema_name, table_name) DO UPDATE SET
			outcome = excluded.outcome,
			tagged_columns = excluded.tagged_columns,
			granted = excluded.granted,
			error = excluded.error,
			recorded_at = excluded.recorded_at`,
		runID, result.Table.Database, result.Table.Schema, result.Table.Name,
		string(result.Outcome), string(colsJSON), boolToInt(result.Granted),
		nullString(result.Error), formatTime(recordedAt))
	if err != nil {
		return fmt.Errorf("upsert table result: %w", err)
	}
	return nil
}

// FinishRun sets the terminal state, error, and finish time of a run.
func (r *RunLedgerRepo) FinishRun(ctx context.Context, runID string, state domain.RunState, errMsg *string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE runs SET state = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(state), nullString(errMsg), formatTime(r.now()), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapDBError(sql.ErrNoRows)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (r *RunLedgerRepo) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, database_name, schema_name, warehouse_name, state, dry_run, classify, error, started_at, finished_at
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var runs []domain.Run
	for rows.Next() {
		var (
			run              domain.Run
			state, startedAt string
			dryRun, classify int64
			errMsg, finished sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Target.Database, &run.Target.Schema, &run.Target.Warehouse,
			&state, &dryRun, &classify, &errMsg, &startedAt, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.State = domain.RunState(state)
		run.DryRun = dryRun != 0
		run.Classify = classify != 0
		run.Error = stringPtr(errMsg)
		run.StartedAt = parseTime(startedAt)
		if finished.Valid {
			t := parseTime(finished.String)
			run.FinishedAt = &t
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListTransitions returns the states a run entered, in order.
func (r *RunLedgerRepo) ListTransitions(ctx context.Context, runID string) ([]domain.RunState, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT state FROM run_transitions WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var states []domain.RunState
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		states = append(states, domain.RunState(s))
	}
	return states, rows.Err()
}

// ListTableResults returns the table outcomes of a run in table name order.
func (r *RunLedgerRepo) ListTableResults(ctx context.Context, runID string) ([]domain.TableResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT database_name, schema_name, table_name, outcome, tagged_columns, granted, error, recorded_at
		FROM run_tables WHERE run_id = ? ORDER BY table_name`, runID)
	if err != nil {
		return nil, fmt.Errorf("list table results: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var results []domain.TableResult
	for rows.Next() {
		var (
			res                         domain.TableResult
			outcome, colsJSON, recorded string
			granted                     int64
			errMsg                      sql.NullString
		)
		if err := rows.Scan(&res.Table.Database, &res.Table.Schema, &res.Table.Name,
			&outcome, &colsJSON, &granted, &errMsg, &recorded); err != nil {
			return nil, fmt.Errorf("scan table result: %w", err)
		}
		if err := json.Unmarshal([]byte(colsJSON), &res.TaggedColumns); err != nil {
			return nil, fmt.Errorf("decode tagged columns for %s: %w", res.Table.Name, err)
		}
		res.Outcome = domain.TableOutcome(outcome)
		res.Granted = granted != 0
		res.Error = stringPtr(errMsg)
		res.RecordedAt = parseTime(recorded)
		results = append(results, res)
	}
	return results, rows.Err()
}
