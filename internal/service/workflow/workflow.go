// Package workflow drives one PII tagging run through its state machine:
//
//	INIT → ROLE_SETUP → TAG_SETUP → TABLE_RESOLUTION → CLASSIFICATION → POLICY_BIND → GRANT_PASS → DONE
//
// Any failure moves the run to ABORTED. There are no retries and no back edges.
// SELECT grants are only issued in GRANT_PASS, so an abort in an earlier state
// leaves every table without new read access.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"pii-tagger/internal/config"
	"pii-tagger/internal/domain"
	"pii-tagger/internal/service/catalog"
	"pii-tagger/internal/service/governance"
	"pii-tagger/internal/service/security"
)

// Options are the per-run settings the workflow reads. They are fixed for a run.
type Options struct {
	Target          domain.Target
	AdminRole       string
	TagName         string
	PolicyName      string
	UnmaskedRole    string
	MaskedRole      string
	GrantMaskedRole bool
	Tables          []string
	Excludes        []string
	NoClassify      bool
	DryRun          bool
}

// OptionsFromConfig copies the run settings out of a finalized Config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Target:          cfg.Target,
		AdminRole:       cfg.Role,
		TagName:         cfg.TagName,
		PolicyName:      cfg.PolicyName,
		UnmaskedRole:    cfg.UnmaskedRole,
		MaskedRole:      cfg.MaskedRole,
		GrantMaskedRole: cfg.GrantMaskedRole,
		Tables:          cfg.Tables,
		Excludes:        cfg.Excludes,
		NoClassify:      cfg.NoClassify,
		DryRun:          cfg.DryRun,
	}
}

// Report is the observable outcome of a run.
type Report struct {
	RunID       string
	State       domain.RunState   // DONE or ABORTED once Run returns
	Transitions []domain.RunState // every state entered, in order
	Tables      []domain.TableResult
	Err         error // abort reason; nil when State is DONE
	TeardownErr error // set when releasing the session failed
}

// Table returns the result recorded for the named table.
func (r *Report) Table(name string) (domain.TableResult, bool) {
	for _, t := range r.Tables {
		if t.Table.Name == name {
			return t, true
		}
	}
	return domain.TableResult{}, false
}

// Workflow runs the tagging state machine against one target.
type Workflow struct {
	opener   domain.SessionOpener
	oracle   domain.ClassificationOracle
	catalog  *catalog.CatalogService
	tags     *governance.TagService
	policies *governance.PolicyService
	grants   *security.GrantService
	ledger   domain.RunLedger
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Workflow. A nil ledger disables run recording.
func New(opener domain.SessionOpener, oracle domain.ClassificationOracle, ledger domain.RunLedger, opts Options, logger *slog.Logger) *Workflow {
	if ledger == nil {
		ledger = nopLedger{}
	}
	return &Workflow{
		opener:   opener,
		oracle:   oracle,
		catalog:  catalog.NewCatalogService(logger),
		tags:     governance.NewTagService(logger),
		policies: governance.NewPolicyService(logger),
		grants:   security.NewGrantService(logger),
		ledger:   ledger,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// run carries the state of one execution.
type run struct {
	*Workflow
	ctx    context.Context
	sess   domain.Session
	report *Report
	logger *slog.Logger
	tables []domain.TableRef
}

// Run executes the workflow once. The returned Report is never nil. The error
// is the abort reason and is nil exactly when the run reached DONE.
func (w *Workflow) Run(ctx context.Context) (*Report, error) {
	runID := domain.NewID()
	r := &run{
		Workflow: w,
		ctx:      ctx,
		report:   &Report{RunID: runID},
		logger:   w.logger.With("run_id", runID),
	}

	if err := w.ledger.StartRun(ctx, &domain.Run{
		ID:        r.report.RunID,
		Target:    w.opts.Target,
		State:     domain.StateInit,
		DryRun:    w.opts.DryRun,
		Classify:  !w.opts.NoClassify,
		StartedAt: w.now(),
	}); err != nil {
		r.logger.Warn("run ledger unavailable", "error", err)
	}

	r.enter(domain.StateInit)
	sess, err := w.opener.Open(ctx)
	if err != nil {
		return r.abort(err)
	}
	r.sess = sess
	defer r.closeSession()

	steps := []struct {
		state domain.RunState
		fn    func() error
		skip  bool
	}{
		{domain.StateInit, r.switchRole, false},
		{domain.StateRoleSetup, r.roleSetup, false},
		{domain.StateTagSetup, r.tagSetup, false},
		{domain.StateTableResolution, r.resolveTables, false},
		{domain.StateClassification, r.classify, w.opts.NoClassify},
		{domain.StatePolicyBind, r.bindPolicy, false},
		{domain.StateGrantPass, r.grantPass, false},
	}
	for _, st := range steps {
		if st.skip {
			r.logger.Info("skipping state", "state", st.state)
			continue
		}
		if st.state != domain.StateInit {
			r.enter(st.state)
		}
		if err := st.fn(); err != nil {
			return r.abort(err)
		}
	}

	r.enter(domain.StateDone)
	r.report.State = domain.StateDone
	r.finish(nil)
	r.logger.Info("run complete", "tables", len(r.tables))
	return r.report, nil
}

func (r *run) enter(state domain.RunState) {
	r.report.State = state
	r.report.Transitions = append(r.report.Transitions, state)
	r.logger.Debug("entering state", "state", state)
	if err := r.ledger.RecordTransition(r.ctx, r.report.RunID, state); err != nil {
		r.logger.Warn("record transition failed", "state", state, "error", err)
	}
}

func (r *run) abort(err error) (*Report, error) {
	failed := r.report.State
	r.enter(domain.StateAborted)
	r.report.Err = err
	msg := err.Error()
	r.finish(&msg)
	r.logger.Error("run aborted", "state", failed, "error", err)
	return r.report, err
}

func (r *run) finish(errMsg *string) {
	if err := r.ledger.FinishRun(r.ctx, r.report.RunID, r.report.State, errMsg); err != nil {
		r.logger.Warn("record run finish failed", "error", err)
	}
}

// closeSession releases the session. A failure is recorded on the report and
// logged but leaves the run's outcome unchanged.
func (r *run) closeSession() {
	if err := r.sess.Close(); err != nil {
		te := &domain.SessionTeardownError{Err: err}
		r.report.TeardownErr = te
		r.logger.Warn("session teardown failed", "error", te)
	}
}

func (r *run) record(result domain.TableResult) {
	result.RecordedAt = r.now()
	replaced := false
	for i := range r.report.Tables {
		if r.report.Tables[i].Table == result.Table {
			r.report.Tables[i] = result
			replaced = true
			break
		}
	}
	if !replaced {
		r.report.Tables = append(r.report.Tables, result)
	}
	if err := r.ledger.RecordTable(r.ctx, r.report.RunID, result); err != nil {
		r.logger.Warn("record table result failed", "table", result.Table.Qualified(), "error", err)
	}
}

func (r *run) switchRole() error {
	t := r.opts.Target
	r.logger.Info("operating on", "warehouse", t.Warehouse, "database", t.Database, "schema", t.Schema, "dry_run", r.opts.DryRun)
	if len(r.opts.Excludes) > 0 {
		r.logger.Info("excluding tables", "tables", r.opts.Excludes)
	}
	return r.grants.UseRole(r.ctx, r.sess, r.opts.AdminRole)
}

func (r *run) accessRoles() []domain.AccessRole {
	roles := []domain.AccessRole{domain.UnmaskedReadRole(r.opts.UnmaskedRole)}
	if r.opts.GrantMaskedRole {
		roles = append(roles, domain.MaskedReadRole(r.opts.MaskedRole))
	}
	return roles
}

func (r *run) roleSetup() error {
	for _, role := range r.accessRoles() {
		if err := r.grants.EnsureRole(r.ctx, r.sess, role); err != nil {
			return err
		}
		if err := r.grants.GrantUsage(r.ctx, r.sess, role.Name, r.opts.Target); err != nil {
			return err
		}
		if role.Tier == domain.TierUnmasked {
			if err := r.grants.GrantCreateSchema(r.ctx, r.sess, role.Name, r.opts.Target.Database); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *run) tagSetup() error {
	r.logger.Info("creating tag (if not exists)", "tag", r.opts.TagName)
	return r.tags.EnsureTag(r.ctx, r.sess, r.opts.Target, r.opts.TagName)
}

func (r *run) resolveTables() error {
	tables, err := r.catalog.ResolveTables(r.ctx, r.sess, r.opts.Target, r.opts.Tables)
	if err != nil {
		return err
	}
	r.tables = tables
	r.logger.Info("resolved tables", "count", len(tables))
	if r.opts.NoClassify {
		for _, t := range tables {
			r.record(domain.TableResult{Table: t, Outcome: domain.OutcomeNotClassified})
		}
	}
	return nil
}

func (r *run) classify() error {
	excluded := domain.NewExclusionSet(r.opts.Excludes)
	for _, table := range r.tables {
		if excluded.Contains(table.Name) {
			r.logger.Info("skipping excluded table", "table", table.Name)
			r.record(domain.TableResult{Table: table, Outcome: domain.OutcomeExcluded})
			continue
		}

		r.logger.Info("processing table", "table", table.Name)
		categories, err := r.oracle.Classify(r.ctx, r.sess, table)
		if err != nil {
			var ce *domain.ClassificationError
			if !errors.As(err, &ce) {
				ce = &domain.ClassificationError{Table: table, Err: err}
			}
			r.recordFailure(table, nil, ce)
			return ce
		}

		cc := domain.NewColumnClassification(table, categories)
		tagged, err := r.tags.ClassifyAndTag(r.ctx, r.sess, r.opts.TagName, cc)
		if err != nil {
			r.recordFailure(table, tagged, err)
			return err
		}
		r.record(domain.TableResult{Table: table, Outcome: domain.OutcomeProcessed, TaggedColumns: tagged})
	}
	return nil
}

func (r *run) recordFailure(table domain.TableRef, tagged []string, err error) {
	msg := err.Error()
	r.record(domain.TableResult{Table: table, Outcome: domain.OutcomeFailed, TaggedColumns: tagged, Error: &msg})
}

func (r *run) bindPolicy() error {
	r.logger.Info("creating masking policy (if not exists)", "policy", r.opts.PolicyName)
	if err := r.policies.EnsureMaskingPolicy(r.ctx, r.sess, r.opts.Target, r.opts.PolicyName, r.opts.UnmaskedRole); err != nil {
		return err
	}
	r.logger.Info("setting masking policy on tag", "policy", r.opts.PolicyName, "tag", r.opts.TagName)
	return r.policies.BindPolicyToTag(r.ctx, r.sess, r.opts.Target, r.opts.PolicyName, r.opts.TagName)
}

func (r *run) grantPass() error {
	roles := r.accessRoles()
	r.logger.Info("granting read access", "tables", len(r.tables), "roles", len(roles))
	for _, table := range r.tables {
		for _, role := range roles {
			if err := r.grants.GrantSelect(r.ctx, r.sess, role.Name, table); err != nil {
				return err
			}
		}
		result, ok := r.report.Table(table.Name)
		if !ok {
			result = domain.TableResult{Table: table, Outcome: domain.OutcomeNotClassified}
		}
		result.Granted = true
		r.record(result)
	}
	return nil
}

// nopLedger discards every record.
type nopLedger struct{}

func (nopLedger) StartRun(context.Context, *domain.Run) error { return nil }
func (nopLedger) RecordTransition(context.Context, string, domain.RunState) error { return nil }
func (nopLedger) RecordTable(context.Context, string, domain.TableResult) error { return nil }
func (nopLedger) FinishRun(context.Context, string, domain.RunState, *string) error { return nil }
func (nopLedger) ListRuns(context.Context, int) ([]domain.Run, error) { return nil, nil }
func (nopLedger) ListTableResults(context.Context, string) ([]domain.TableResult, error) {
	return nil, nil
}
