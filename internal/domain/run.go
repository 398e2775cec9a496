package domain

import "time"

// RunState is a state of the workflow state machine.
type RunState string

// Workflow states, in the order they are entered. Aborted is terminal and
// reachable from any state.
const (
	StateInit            RunState = "INIT"
	StateRoleSetup       RunState = "ROLE_SETUP"
	StateTagSetup        RunState = "TAG_SETUP"
	StateTableResolution RunState = "TABLE_RESOLUTION"
	StateClassification  RunState = "CLASSIFICATION"
	StatePolicyBind      RunState = "POLICY_BIND"
	StateGrantPass       RunState = "GRANT_PASS"
	StateDone            RunState = "DONE"
	StateAborted         RunState = "ABORTED"
)

// TableOutcome is what happened to a table during Classification.
type TableOutcome string

// Table outcomes.
const (
	OutcomeProcessed     TableOutcome = "PROCESSED"
	OutcomeExcluded      TableOutcome = "EXCLUDED"
	OutcomeFailed        TableOutcome = "FAILED"
	OutcomeNotClassified TableOutcome = "NOT_CLASSIFIED"
)

// TableResult is the auditable outcome for one table in a run.
type TableResult struct {
	Table         TableRef
	Outcome       TableOutcome
	TaggedColumns []string
	Granted       bool
	Error         *string
	RecordedAt    time.Time
}

// Run is one execution of the workflow against a target.
type Run struct {
	ID         string
	Target     Target
	State      RunState
	DryRun     bool
	Classify   bool
	Error      *string
	StartedAt  time.Time
	FinishedAt *time.Time
}
