package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pii-tagger/internal/domain"
	"pii-tagger/internal/testutil"
)

var errTest = errors.New("test error")

var testTarget = domain.Target{Database: "TESTDB", Schema: "PUBLIC", Warehouse: "TESTWH"}

func testOptions() Options {
	return Options{
		Target:       testTarget,
		AdminRole:    "ACCOUNTADMIN",
		TagName:      domain.DefaultTagName,
		PolicyName:   domain.DefaultPolicyName,
		UnmaskedRole: domain.DefaultUnmaskedRole,
		MaskedRole:   domain.DefaultMaskedRole,
	}
}

func recommended() domain.ColumnCategory {
	return domain.ColumnCategory{
		domain.RecommendationKey: map[string]any{"privacy_category": "IDENTIFIER", "semantic_category": "EMAIL"},
	}
}

// catalogSession answers SHOW TABLES with the given table names.
func catalogSession(tables ...string) *testutil.MockSession {
	return &testutil.MockSession{
		QueryFn: func(_ context.Context, stmt string, _ ...any) ([]string, []domain.Row, error) {
			if !strings.HasPrefix(stmt, "SHOW TABLES") {
				return nil, nil, errTest
			}
			rows := make([]domain.Row, len(tables))
			for i, t := range tables {
				rows[i] = domain.Row{"2026-01-01", t}
			}
			return []string{"created_on", "name"}, rows, nil
		},
	}
}

// abcOracle recommends EMAIL on A and PHONE on C. B has no PII.
func abcOracle() *testutil.MockOracle {
	return &testutil.MockOracle{
		ClassifyFn: func(_ context.Context, _ domain.Session, table domain.TableRef) (map[string]domain.ColumnCategory, error) {
			switch table.Name {
			case "A":
				return map[string]domain.ColumnCategory{"EMAIL": recommended(), "ID": {}}, nil
			case "B":
				return map[string]domain.ColumnCategory{"NOTE": {}}, nil
			case "C":
				return map[string]domain.ColumnCategory{"PHONE": recommended()}, nil
			}
			return nil, errTest
		},
	}
}

func newWorkflow(sess *testutil.MockSession, oracle domain.ClassificationOracle, ledger domain.RunLedger, opts Options) (*Workflow, *testutil.MockOpener) {
	opener := &testutil.MockOpener{Session: sess}
	return New(opener, oracle, ledger, opts, slog.New(slog.NewTextHandler(io.Discard, nil))), opener
}

func tagStmt(table, column string) string {
	return `ALTER TABLE "TESTDB"."PUBLIC"."` + table + `" MODIFY COLUMN "` + column + `" SET TAG "TESTDB"."PUBLIC"."PII_DETECTED" = 'true'`
}

func grantStmt(table, role string) string {
	return `GRANT SELECT ON TABLE "TESTDB"."PUBLIC"."` + table + `" TO ROLE "` + role + `"`
}

func indexOf(stmts []string, want string) int {
	for i, s := range stmts {
		if s == want {
			return i
		}
	}
	return -1
}

func countPrefix(stmts []string, prefix string) int {
	n := 0
	for _, s := range stmts {
		if strings.HasPrefix(s, prefix) {
			n++
		}
	}
	return n
}

func TestRun_FullPass(t *testing.T) {
	sess := catalogSession("A", "B", "C")
	oracle := abcOracle()
	opts := testOptions()
	opts.Excludes = []string{"B"}
	wf, opener := newWorkflow(sess, oracle, nil, opts)

	report, err := wf.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.StateDone, report.State)
	assert.Equal(t, []domain.RunState{
		domain.StateInit,
		domain.StateRoleSetup,
		domain.StateTagSetup,
		domain.StateTableResolution,
		domain.StateClassification,
		domain.StatePolicyBind,
		domain.StateGrantPass,
		domain.StateDone,
	}, report.Transitions)
	assert.Equal(t, 1, opener.Opened)
	assert.Equal(t, 1, sess.Closed)

	assert.Equal(t, `USE ROLE "ACCOUNTADMIN"`, sess.Execs[0])

	t.Run("excluded table is never classified", func(t *testing.T) {
		assert.True(t, oracle.CalledFor("A"))
		assert.False(t, oracle.CalledFor("B"))
		assert.True(t, oracle.CalledFor("C"))
	})

	t.Run("only recommended columns are tagged", func(t *testing.T) {
		assert.Equal(t, 2, countPrefix(sess.Execs, "ALTER TABLE"))
		assert.NotEqual(t, -1, indexOf(sess.Execs, tagStmt("A", "EMAIL")))
		assert.NotEqual(t, -1, indexOf(sess.Execs, tagStmt("C", "PHONE")))
	})

	t.Run("grants follow policy binding and all tagging", func(t *testing.T) {
		bind := -1
		for i, s := range sess.Execs {
			if strings.HasPrefix(s, "ALTER TAG") {
				bind = i
			}
		}
		require.NotEqual(t, -1, bind)
		lastTag := indexOf(sess.Execs, tagStmt("C", "PHONE"))
		for _, table := range []string{"A", "B", "C"} {
			g := indexOf(sess.Execs, grantStmt(table, domain.DefaultUnmaskedRole))
			require.NotEqual(t, -1, g, "grant for %s", table)
			assert.Greater(t, g, bind)
			assert.Greater(t, g, lastTag)
		}
	})

	t.Run("report carries each table outcome", func(t *testing.T) {
		a, ok := report.Table("A")
		require.True(t, ok)
		assert.Equal(t, domain.OutcomeProcessed, a.Outcome)
		assert.Equal(t, []string{"EMAIL"}, a.TaggedColumns)
		assert.True(t, a.Granted)

		b, ok := report.Table("B")
		require.True(t, ok)
		assert.Equal(t, domain.OutcomeExcluded, b.Outcome)
		assert.True(t, b.Granted, "excluded tables still receive read access")

		c, ok := report.Table("C")
		require.True(t, ok)
		assert.Equal(t, []string{"PHONE"}, c.TaggedColumns)
	})

	t.Run("masked role untouched by default", func(t *testing.T) {
		for _, s := range sess.Execs {
			assert.NotContains(t, s, domain.DefaultMaskedRole)
		}
	})
}

func TestRun_RoleSetupStatements(t *testing.T) {
	sess := catalogSession()
	wf, _ := newWorkflow(sess, abcOracle(), nil, testOptions())

	_, err := wf.Run(context.Background())
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(sess.Execs), 7)
	assert.True(t, strings.HasPrefix(sess.Execs[1], `CREATE ROLE IF NOT EXISTS "SANDBOX_UNMASKED_READ_ROLE"`))
	assert.Equal(t, []string{
		`GRANT USAGE ON DATABASE "TESTDB" TO ROLE "SANDBOX_UNMASKED_READ_ROLE"`,
		`GRANT USAGE ON SCHEMA "TESTDB"."PUBLIC" TO ROLE "SANDBOX_UNMASKED_READ_ROLE"`,
		`GRANT USAGE ON WAREHOUSE "TESTWH" TO ROLE "SANDBOX_UNMASKED_READ_ROLE"`,
		`GRANT CREATE SCHEMA ON DATABASE "TESTDB" TO ROLE "SANDBOX_UNMASKED_READ_ROLE"`,
		`CREATE TAG IF NOT EXISTS "TESTDB"."PUBLIC"."PII_DETECTED"`,
	}, sess.Execs[2:7])
}

func TestRun_Idempotent(t *testing.T) {
	first := catalogSession("A", "B", "C")
	wf1, _ := newWorkflow(first, abcOracle(), nil, testOptions())
	_, err := wf1.Run(context.Background())
	require.NoError(t, err)

	second := catalogSession("A", "B", "C")
	wf2, _ := newWorkflow(second, abcOracle(), nil, testOptions())
	report, err := wf2.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.StateDone, report.State)
	assert.Equal(t, first.Execs, second.Execs, "a repeat run issues the same create-if-absent statement plan")
	for _, s := range second.Execs {
		if strings.HasPrefix(s, "CREATE") {
			assert.Contains(t, s, "IF NOT EXISTS")
		}
	}
}

func TestRun_NoClassify(t *testing.T) {
	sess := catalogSession("A", "B", "C")
	oracle := abcOracle()
	opts := testOptions()
	opts.NoClassify = true
	wf, _ := newWorkflow(sess, oracle, nil, opts)

	report, err := wf.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, oracle.Calls)
	assert.Zero(t, countPrefix(sess.Execs, "ALTER TABLE"))
	assert.NotContains(t, report.Transitions, domain.StateClassification)
	assert.Contains(t, report.Transitions, domain.StatePolicyBind)
	assert.Equal(t, 3, countPrefix(sess.Execs, "GRANT SELECT"))

	for _, name := range []string{"A", "B", "C"} {
		res, ok := report.Table(name)
		require.True(t, ok)
		assert.Equal(t, domain.OutcomeNotClassified, res.Outcome)
		assert.True(t, res.Granted)
	}
}

func TestRun_OracleFailureAbortsBeforeGrants(t *testing.T) {
	sess := catalogSession("A", "B", "C")
	oracle := &testutil.MockOracle{
		ClassifyFn: func(ctx context.Context, s domain.Session, table domain.TableRef) (map[string]domain.ColumnCategory, error) {
			if table.Name == "C" {
				return nil, errTest
			}
			return abcOracle().ClassifyFn(ctx, s, table)
		},
	}
	ledger := testutil.NewMockLedger()
	wf, _ := newWorkflow(sess, oracle, ledger, testOptions())

	report, err := wf.Run(context.Background())

	var ce *domain.ClassificationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "C", ce.Table.Name)
	assert.ErrorIs(t, err, errTest)

	assert.Equal(t, domain.StateAborted, report.State)
	assert.Equal(t, err, report.Err)
	assert.NotContains(t, report.Transitions, domain.StatePolicyBind)
	assert.Zero(t, countPrefix(sess.Execs, "GRANT SELECT"), "no table is granted after an abort")
	assert.Zero(t, countPrefix(sess.Execs, "ALTER TAG"))
	assert.NotEqual(t, -1, indexOf(sess.Execs, tagStmt("A", "EMAIL")), "earlier tags stay in place")
	assert.Equal(t, 1, sess.Closed)

	c, ok := report.Table("C")
	require.True(t, ok)
	assert.Equal(t, domain.OutcomeFailed, c.Outcome)
	require.NotNil(t, c.Error)

	run := ledger.Runs[report.RunID]
	require.NotNil(t, run)
	assert.Equal(t, domain.StateAborted, run.State)
	require.NotNil(t, run.Error)
	assert.Contains(t, *run.Error, "classify TESTDB.PUBLIC.C")
}

func TestRun_TagFailureNamesTableAndColumn(t *testing.T) {
	sess := catalogSession("A", "C")
	sess.ExecFn = func(_ context.Context, stmt string, _ ...any) error {
		if stmt == tagStmt("C", "PHONE") {
			return errTest
		}
		return nil
	}
	wf, _ := newWorkflow(sess, abcOracle(), nil, testOptions())

	report, err := wf.Run(context.Background())

	var ddlErr *domain.DDLExecutionError
	require.ErrorAs(t, err, &ddlErr)
	assert.Equal(t, "TESTDB.PUBLIC.C", ddlErr.Table)
	assert.Equal(t, "PHONE", ddlErr.Column)
	assert.Equal(t, domain.StateAborted, report.State)
	assert.Zero(t, countPrefix(sess.Execs, "GRANT SELECT"))
	assert.Equal(t, 1, sess.Closed)
}

func TestRun_CatalogUnavailable(t *testing.T) {
	sess := &testutil.MockSession{
		QueryFn: func(_ context.Context, _ string, _ ...any) ([]string, []domain.Row, error) {
			return nil, nil, errTest
		},
	}
	oracle := abcOracle()
	wf, _ := newWorkflow(sess, oracle, nil, testOptions())

	report, err := wf.Run(context.Background())

	var cu *domain.CatalogUnavailableError
	require.ErrorAs(t, err, &cu)
	assert.Equal(t, domain.StateAborted, report.State)
	assert.Equal(t, domain.StateTableResolution, report.Transitions[len(report.Transitions)-2])
	assert.Empty(t, oracle.Calls)
	assert.Zero(t, countPrefix(sess.Execs, "GRANT SELECT"))
	assert.Equal(t, 1, sess.Closed)
}

func TestRun_TableOverrides(t *testing.T) {
	sess := &testutil.MockSession{}
	oracle := abcOracle()
	opts := testOptions()
	opts.Tables = []string{"C", "A"}
	wf, _ := newWorkflow(sess, oracle, nil, opts)

	report, err := wf.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, sess.Queries, "override list skips the catalog")
	require.Len(t, oracle.Calls, 2)
	assert.Equal(t, "C", oracle.Calls[0].Name, "override order is preserved")
	assert.Equal(t, "A", oracle.Calls[1].Name)
	assert.Less(t,
		indexOf(sess.Execs, grantStmt("C", domain.DefaultUnmaskedRole)),
		indexOf(sess.Execs, grantStmt("A", domain.DefaultUnmaskedRole)))
	assert.Equal(t, domain.StateDone, report.State)
}

func TestRun_GrantMaskedRole(t *testing.T) {
	sess := catalogSession("A")
	opts := testOptions()
	opts.GrantMaskedRole = true
	wf, _ := newWorkflow(sess, abcOracle(), nil, opts)

	_, err := wf.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, countPrefix(sess.Execs, "CREATE ROLE IF NOT EXISTS"))
	assert.NotEqual(t, -1, indexOf(sess.Execs, `GRANT USAGE ON DATABASE "TESTDB" TO ROLE "SANDBOX_MASKED_READ_ROLE"`))
	assert.Equal(t, -1, indexOf(sess.Execs, `GRANT CREATE SCHEMA ON DATABASE "TESTDB" TO ROLE "SANDBOX_MASKED_READ_ROLE"`))
	assert.NotEqual(t, -1, indexOf(sess.Execs, grantStmt("A", domain.DefaultUnmaskedRole)))
	assert.NotEqual(t, -1, indexOf(sess.Execs, grantStmt("A", domain.DefaultMaskedRole)))
}

func TestRun_GrantFailure(t *testing.T) {
	sess := catalogSession("A", "B")
	sess.ExecFn = func(_ context.Context, stmt string, _ ...any) error {
		if stmt == grantStmt("B", domain.DefaultUnmaskedRole) {
			return errTest
		}
		return nil
	}
	wf, _ := newWorkflow(sess, abcOracle(), nil, testOptions())

	report, err := wf.Run(context.Background())

	var ddlErr *domain.DDLExecutionError
	require.ErrorAs(t, err, &ddlErr)
	assert.Equal(t, "TESTDB.PUBLIC.B", ddlErr.Table)
	assert.Equal(t, domain.StateAborted, report.State)

	a, _ := report.Table("A")
	assert.True(t, a.Granted)
	b, _ := report.Table("B")
	assert.False(t, b.Granted)
	assert.Equal(t, 1, sess.Closed)
}

func TestRun_OpenFailure(t *testing.T) {
	opener := &testutil.MockOpener{OpenErr: errTest}
	wf := New(opener, abcOracle(), nil, testOptions(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	report, err := wf.Run(context.Background())

	require.ErrorIs(t, err, errTest)
	assert.Equal(t, domain.StateAborted, report.State)
	assert.Equal(t, []domain.RunState{domain.StateInit, domain.StateAborted}, report.Transitions)
}

func TestRun_UseRoleFailure(t *testing.T) {
	sess := catalogSession("A")
	sess.ExecFn = func(_ context.Context, stmt string, _ ...any) error {
		if strings.HasPrefix(stmt, "USE ROLE") {
			return errTest
		}
		return nil
	}
	wf, _ := newWorkflow(sess, abcOracle(), nil, testOptions())

	report, err := wf.Run(context.Background())

	require.ErrorIs(t, err, errTest)
	assert.Equal(t, []domain.RunState{domain.StateInit, domain.StateAborted}, report.Transitions)
	assert.Len(t, sess.Execs, 1)
	assert.Equal(t, 1, sess.Closed)
}

func TestRun_TeardownFailureKeepsOutcome(t *testing.T) {
	sess := catalogSession("A")
	sess.CloseFn = func() error { return errTest }
	wf, _ := newWorkflow(sess, abcOracle(), nil, testOptions())

	report, err := wf.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.StateDone, report.State)
	var te *domain.SessionTeardownError
	require.ErrorAs(t, report.TeardownErr, &te)
	assert.ErrorIs(t, te, errTest)
}

func TestRun_TeardownFailureAfterAbort(t *testing.T) {
	sess := &testutil.MockSession{
		QueryFn: func(_ context.Context, _ string, _ ...any) ([]string, []domain.Row, error) {
			return nil, nil, errTest
		},
		CloseFn: func() error { return errors.New("close failed") },
	}
	wf, _ := newWorkflow(sess, abcOracle(), nil, testOptions())

	report, err := wf.Run(context.Background())

	var cu *domain.CatalogUnavailableError
	require.ErrorAs(t, err, &cu, "primary error survives teardown failure")
	assert.NotNil(t, report.TeardownErr)
}

func TestRun_RecordsLedger(t *testing.T) {
	sess := catalogSession("A", "B")
	ledger := testutil.NewMockLedger()
	opts := testOptions()
	opts.DryRun = true
	wf, _ := newWorkflow(sess, abcOracle(), ledger, opts)

	report, err := wf.Run(context.Background())
	require.NoError(t, err)

	run := ledger.Runs[report.RunID]
	require.NotNil(t, run)
	assert.Equal(t, domain.StateDone, run.State)
	assert.True(t, run.DryRun)
	assert.True(t, run.Classify)
	assert.Nil(t, run.Error)
	assert.Equal(t, report.Transitions, ledger.Transitions[report.RunID])

	// Each table is recorded after classification and again after its grant.
	recorded := ledger.Tables[report.RunID]
	require.Len(t, recorded, 4)
	assert.False(t, recorded[0].Granted)
	assert.True(t, recorded[3].Granted)
}

func TestRun_LedgerErrorsAreIgnored(t *testing.T) {
	sess := catalogSession("A")
	ledger := testutil.NewMockLedger()
	ledger.Err = errTest
	wf, _ := newWorkflow(sess, abcOracle(), ledger, testOptions())

	report, err := wf.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StateDone, report.State)
}
