package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/razim-manzoor/AI-Data-Analyst/database"
)

// SQLAgent turns a natural-language question into a SQL statement grounded
// on the schema snapshot. On retries the most recent execution failure is
// fed back so the agent repairs its prior candidate instead of starting over.
type SQLAgent struct {
	completer Completer
	logger    func(string)
}

// NewSQLAgent creates a SQL agent backed by the given completion handle.
func NewSQLAgent(completer Completer, logFunc func(string)) *SQLAgent {
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &SQLAgent{completer: completer, logger: logFunc}
}

const sqlSystemPrompt = "You are an expert at querying a SQL database. " +
	"Based on the user question and the database schema, write a single SQL query " +
	"to retrieve the requested information. Only respond with the SQL query, nothing else. " +
	"The query must be a read-only SELECT statement, syntactically correct for SQLite, " +
	"and must only reference tables and columns present in the schema."

// Generate produces a SQL candidate. priorErrors is empty on the first
// attempt; on retries it carries the failure messages of every discarded
// candidate, most recent last.
func (a *SQLAgent) Generate(ctx context.Context, question string, snap *database.SchemaSnapshot, priorErrors []string) (*SQLCandidate, error) {
	start := time.Now()

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nDatabase schema:\n%s", question, snap.PromptText())
	if len(priorErrors) > 0 {
		last := priorErrors[len(priorErrors)-1]
		fmt.Fprintf(&b, "\nYour previous query failed with this error:\n%s\n"+
			"Repair the previous query to fix this exact error. Do not start over from scratch.", last)
	}

	content, err := a.completer.Complete(ctx, sqlSystemPrompt, b.String())
	if err != nil {
		return nil, &ExecutionFailure{
			Kind:    FailureModelUnavailable,
			Message: fmt.Sprintf("SQL generation failed: %v", err),
		}
	}

	text := extractSQL(content)
	if text == "" {
		return nil, &ExecutionFailure{
			Kind:    FailureModelUnavailable,
			Message: "SQL agent returned an empty query",
		}
	}

	a.logger(fmt.Sprintf("[SQL-AGENT] Generated query in %v (attempt %d): %s",
		time.Since(start), len(priorErrors)+1, truncateForLog(text, 120)))
	return &SQLCandidate{Text: text}, nil
}

// Validate runs the local pre-execution checks: read-only enforcement, then
// identifier resolution against the snapshot. A non-nil result means the
// candidate must not be dispatched to the sandbox.
func (c *SQLCandidate) Validate(snap *database.SchemaSnapshot) *ExecutionFailure {
	if fail := ValidateReadOnly(c.Text); fail != nil {
		return fail
	}
	return ValidateSQLAgainstSchema(c.Text, snap)
}
