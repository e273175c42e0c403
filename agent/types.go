// Package agent implements the multi-agent workflow core: a router that
// classifies intent, specialist agents that generate SQL or chart code, an
// execution sandbox, and the state machine that sequences them with bounded
// retries.
package agent

import (
	"time"

	"github.com/google/uuid"
)

// Intent is the router's classification of a question.
type Intent string

const (
	IntentQuery       Intent = "query"
	IntentVisualize   Intent = "visualize"
	IntentUnsupported Intent = "unsupported"
)

// FailureKind categorizes an execution failure. Unsupported and budget
// exhaustion are fatal for a turn; every other kind is retryable.
type FailureKind string

const (
	FailureSchemaViolation  FailureKind = "SchemaViolation"
	FailureUnsafeStatement  FailureKind = "UnsafeStatement"
	FailureTimeout          FailureKind = "Timeout"
	FailureModelUnavailable FailureKind = "ModelUnavailable"
	FailureRuntime          FailureKind = "RuntimeExecutionError"
	FailureUnsupported      FailureKind = "Unsupported"
)

// ExecutionResult is the tagged outcome of running a candidate. It is one of
// *TabularResult, *ChartResult or *ExecutionFailure and nothing else.
type ExecutionResult interface {
	isExecutionResult()
}

// TabularResult carries query output. Truncation is always signaled.
type TabularResult struct {
	Columns   []string
	Rows      [][]string
	Truncated bool
}

// ChartResult references a rendered chart artifact. The core does not
// interpret the artifact's contents.
type ChartResult struct {
	ArtifactPath string
	Description  string
}

// ExecutionFailure describes why a candidate failed. Code holds the
// offending SQL or chart code, if any.
type ExecutionFailure struct {
	Kind    FailureKind
	Message string
	Code    string
}

func (*TabularResult) isExecutionResult()    {}
func (*ChartResult) isExecutionResult()      {}
func (*ExecutionFailure) isExecutionResult() {}

func (f *ExecutionFailure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

// Candidate is a generated, not-yet-executed artifact: a SQL statement or a
// chart code fragment.
type Candidate interface {
	// Artifact returns the generated text for logging and the error trail.
	Artifact() string
}

// SQLCandidate is a generated SQL statement.
type SQLCandidate struct {
	Text string
}

func (c *SQLCandidate) Artifact() string { return c.Text }

// ChartCandidate is generated chart code together with the table and columns
// the sandbox must materialize for it.
type ChartCandidate struct {
	Code          string
	Table         string
	TargetColumns []string
}

func (c *ChartCandidate) Artifact() string { return c.Code }

// TurnStatus is the final status of a turn.
type TurnStatus string

const (
	StatusSuccess TurnStatus = "success"
	StatusPartial TurnStatus = "partial"
	StatusFailed  TurnStatus = "failed"
)

// Attempt records one failed execution for the error trail.
type Attempt struct {
	Kind      FailureKind
	Message   string
	Candidate string // the discarded artifact
}

// Turn is one question-to-answer cycle. It is mutated only by the workflow
// that owns it and is immutable once finalized.
type Turn struct {
	ID        string
	SessionID string
	Question  string
	AskedAt   time.Time

	Intent   Intent
	Artifact string // final generated SQL or chart code
	Result   ExecutionResult
	Trail    []Attempt
	Status   TurnStatus

	Attempts  int
	Elapsed   time.Duration
	StepTimes map[string]time.Duration
}

// NewTurn creates a turn at the start of the workflow.
func NewTurn(sessionID, question string) *Turn {
	return &Turn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Question:  question,
		AskedAt:   time.Now(),
		StepTimes: make(map[string]time.Duration),
	}
}

// LastError returns the most recent trail entry, if any.
func (t *Turn) LastError() (Attempt, bool) {
	if len(t.Trail) == 0 {
		return Attempt{}, false
	}
	return t.Trail[len(t.Trail)-1], true
}
