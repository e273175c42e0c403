package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/razim-manzoor/AI-Data-Analyst/database"
)

// Classifier decides the intent of a question.
type Classifier interface {
	Classify(ctx context.Context, question string, snap *database.SchemaSnapshot) Intent
}

// SQLGenerator produces SQL candidates with repair feedback.
type SQLGenerator interface {
	Generate(ctx context.Context, question string, snap *database.SchemaSnapshot, priorErrors []string) (*SQLCandidate, error)
}

// ChartGenerator produces chart-code candidates with repair feedback.
type ChartGenerator interface {
	Generate(ctx context.Context, question string, snap *database.SchemaSnapshot, priorErrors []string) (*ChartCandidate, error)
}

// CandidateRunner executes candidates under resource limits.
type CandidateRunner interface {
	Run(ctx context.Context, c Candidate) ExecutionResult
}

// SchemaProvider supplies the schema snapshot a turn is pinned to.
type SchemaProvider interface {
	Schema(ctx context.Context) (*database.SchemaSnapshot, error)
}

// validatable is implemented by candidates that can be checked against the
// snapshot before any execution is spent on them.
type validatable interface {
	Validate(snap *database.SchemaSnapshot) *ExecutionFailure
}

// workflowState enumerates the machine's states. Succeeded and Failed are
// absorbing.
type workflowState int

const (
	stateRouting workflowState = iota
	stateGenerating
	stateExecuting
	stateRetrying
	stateFinalizing
	stateSucceeded
	stateFailed
)

func (s workflowState) String() string {
	switch s {
	case stateRouting:
		return "routing"
	case stateGenerating:
		return "generating"
	case stateExecuting:
		return "executing"
	case stateRetrying:
		return "retrying"
	case stateFinalizing:
		return "finalizing"
	case stateSucceeded:
		return "succeeded"
	default:
		return "failed"
	}
}

// Workflow sequences router, specialist agents and sandbox for one turn at a
// time. A Workflow value holds no per-turn state, so concurrent Run calls for
// different sessions are safe: they share only the snapshot cache and the
// agent handle cache behind the injected collaborators.
type Workflow struct {
	schemas     SchemaProvider
	classifier  Classifier
	sqlAgent    SQLGenerator
	chartAgent  ChartGenerator
	sandbox     CandidateRunner
	retryBudget int
	logger      func(string)
}

// NewWorkflow wires the workflow. retryBudget below 1 is clamped to 1.
func NewWorkflow(schemas SchemaProvider, classifier Classifier, sqlAgent SQLGenerator, chartAgent ChartGenerator, sandbox CandidateRunner, retryBudget int, logFunc func(string)) *Workflow {
	if retryBudget < 1 {
		retryBudget = 1
	}
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &Workflow{
		schemas:     schemas,
		classifier:  classifier,
		sqlAgent:    sqlAgent,
		chartAgent:  chartAgent,
		sandbox:     sandbox,
		retryBudget: retryBudget,
		logger:      logFunc,
	}
}

// Run processes one question to a finalized Turn and appends it to the
// session. The turn is pinned to a single schema snapshot for its whole
// lifetime. Cancellation is honored before every state transition; a
// cancelled turn finalizes failed without committing any in-flight result.
func (w *Workflow) Run(ctx context.Context, session *Session, question string) *Turn {
	turn := NewTurn(session.ID, question)
	start := time.Now()
	defer func() {
		turn.Elapsed = time.Since(start)
		session.append(turn)
		w.logger(fmt.Sprintf("[WORKFLOW] Turn %s finalized: status=%s intent=%s attempts=%d elapsed=%v",
			turn.ID, turn.Status, turn.Intent, turn.Attempts, turn.Elapsed))
	}()

	snap, err := w.schemas.Schema(ctx)
	if err != nil {
		w.logger(fmt.Sprintf("[WORKFLOW] Schema unavailable: %v", err))
		turn.Status = StatusFailed
		turn.Result = &ExecutionFailure{Kind: FailureRuntime, Message: "schema unavailable: " + err.Error()}
		return turn
	}

	budget := w.retryBudget
	var priorErrors []string
	var candidate Candidate
	var lastFailure *ExecutionFailure
	var result ExecutionResult

	state := stateRouting
	for {
		if ctx.Err() != nil {
			w.logger(fmt.Sprintf("[WORKFLOW] Turn %s abandoned in %s: %v", turn.ID, state, ctx.Err()))
			turn.Status = StatusFailed
			turn.Result = &ExecutionFailure{Kind: FailureTimeout, Message: "turn abandoned: " + ctx.Err().Error()}
			return turn
		}

		switch state {
		case stateRouting:
			stepStart := time.Now()
			turn.Intent = w.classifier.Classify(ctx, question, snap)
			turn.StepTimes["routing"] += time.Since(stepStart)
			w.logger(fmt.Sprintf("[WORKFLOW] Turn %s routed: %s", turn.ID, turn.Intent))
			if turn.Intent == IntentUnsupported {
				turn.Status = StatusFailed
				turn.Result = &ExecutionFailure{Kind: FailureUnsupported, Message: "question is outside the supported query/visualize scope"}
				return turn
			}
			state = stateGenerating

		case stateGenerating:
			stepStart := time.Now()
			var genErr error
			candidate, genErr = w.generate(ctx, turn.Intent, question, snap, priorErrors)
			turn.StepTimes["generating"] += time.Since(stepStart)
			if genErr != nil {
				lastFailure = asExecutionFailure(genErr)
				state = stateRetrying
				break
			}
			turn.Artifact = candidate.Artifact()

			// Local checks run before the sandbox so schema violations and
			// unsafe statements never spend an execution.
			if v, ok := candidate.(validatable); ok {
				if f := v.Validate(snap); f != nil {
					lastFailure = f
					state = stateRetrying
					break
				}
			}
			state = stateExecuting

		case stateExecuting:
			stepStart := time.Now()
			res := w.sandbox.Run(ctx, candidate)
			turn.StepTimes["executing"] += time.Since(stepStart)
			if f, ok := res.(*ExecutionFailure); ok {
				lastFailure = f
				state = stateRetrying
				break
			}
			if ctx.Err() != nil {
				// Do not commit a result produced for an abandoned turn.
				continue
			}
			result = res
			state = stateFinalizing

		case stateRetrying:
			turn.Attempts++
			turn.Trail = append(turn.Trail, Attempt{
				Kind:      lastFailure.Kind,
				Message:   lastFailure.Message,
				Candidate: lastFailure.Code,
			})
			priorErrors = append(priorErrors, lastFailure.Message)
			budget--
			w.logger(fmt.Sprintf("[WORKFLOW] Turn %s attempt %d failed (%s): %s; budget left %d; discarded candidate: %s",
				turn.ID, turn.Attempts, lastFailure.Kind, lastFailure.Message, budget, truncateForLog(lastFailure.Code, 300)))
			if budget <= 0 {
				turn.Status = StatusFailed
				turn.Result = lastFailure
				return turn
			}
			state = stateGenerating

		case stateFinalizing:
			turn.Result = result
			turn.Status = StatusSuccess
			if t, ok := result.(*TabularResult); ok && t.Truncated {
				turn.Status = StatusPartial
			}
			return turn
		}
	}
}

// generate dispatches to the specialist for the routed intent. Any generation
// error is normalized to an ExecutionFailure so it consumes one retry.
func (w *Workflow) generate(ctx context.Context, intent Intent, question string, snap *database.SchemaSnapshot, priorErrors []string) (Candidate, error) {
	switch intent {
	case IntentQuery:
		return w.sqlAgent.Generate(ctx, question, snap, priorErrors)
	case IntentVisualize:
		return w.chartAgent.Generate(ctx, question, snap, priorErrors)
	default:
		return nil, &ExecutionFailure{Kind: FailureUnsupported, Message: "no specialist for intent " + string(intent)}
	}
}

// asExecutionFailure coerces a generation error to the failure taxonomy.
func asExecutionFailure(err error) *ExecutionFailure {
	var f *ExecutionFailure
	if errors.As(err, &f) {
		return f
	}
	kind := FailureModelUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		kind = FailureTimeout
	}
	return &ExecutionFailure{Kind: kind, Message: err.Error()}
}
