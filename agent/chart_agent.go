package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/razim-manzoor/AI-Data-Analyst/database"
)

// ChartAgent turns a natural-language question into Python chart code plus
// the table and columns the sandbox must materialize for it. The code is
// constrained to a declared safe subset; the sandbox enforces the allow-list
// rather than trusting this agent.
type ChartAgent struct {
	completer Completer
	logger    func(string)
}

// NewChartAgent creates a chart agent backed by the given completion handle.
func NewChartAgent(completer Completer, logFunc func(string)) *ChartAgent {
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &ChartAgent{completer: completer, logger: logFunc}
}

const chartSystemPrompt = "You are an expert at writing Python visualization code. " +
	"Based on the user question and the database schema, decide which table and columns to chart " +
	"and write matplotlib code against a pandas DataFrame named df that will already contain those " +
	"columns. Use only pandas, numpy, matplotlib and seaborn. Do not read or write files, access " +
	"the network, or start processes. Save the chart with plt.savefig('chart.png'). " +
	"Respond with JSON only, in this exact shape:\n" +
	`{"table": "<table name>", "columns": ["<column>", ...], "code": "<python code>"}`

// chartResponse is the strict output contract for chart generation.
type chartResponse struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
	Code    string   `json:"code"`
}

// Generate produces a chart candidate, repairing the prior candidate when
// priorErrors is non-empty.
func (a *ChartAgent) Generate(ctx context.Context, question string, snap *database.SchemaSnapshot, priorErrors []string) (*ChartCandidate, error) {
	start := time.Now()

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nDatabase schema:\n%s", question, snap.PromptText())
	if len(priorErrors) > 0 {
		last := priorErrors[len(priorErrors)-1]
		fmt.Fprintf(&b, "\nYour previous chart code failed with this error:\n%s\n"+
			"Repair the previous code to fix this exact error. Do not start over from scratch.", last)
	}

	content, err := a.completer.Complete(ctx, chartSystemPrompt, b.String())
	if err != nil {
		return nil, &ExecutionFailure{
			Kind:    FailureModelUnavailable,
			Message: fmt.Sprintf("chart generation failed: %v", err),
		}
	}

	var resp chartResponse
	if err := json.Unmarshal([]byte(extractJSON(content)), &resp); err != nil {
		// Some models ignore the JSON contract and emit bare code. Fall
		// back to treating the whole response as code; the schema check
		// in Validate will catch a missing table.
		resp = chartResponse{Code: extractPythonCode(content)}
	}

	if strings.TrimSpace(resp.Code) == "" {
		return nil, &ExecutionFailure{
			Kind:    FailureModelUnavailable,
			Message: "chart agent returned no code",
		}
	}

	a.logger(fmt.Sprintf("[CHART-AGENT] Generated chart code in %v (attempt %d): table=%s columns=%v",
		time.Since(start), len(priorErrors)+1, resp.Table, resp.Columns))
	return &ChartCandidate{Code: resp.Code, Table: resp.Table, TargetColumns: resp.Columns}, nil
}

// Validate checks the candidate's data references against the snapshot.
// Unknown tables or columns short-circuit to SchemaViolation without
// spending an execution attempt.
func (c *ChartCandidate) Validate(snap *database.SchemaSnapshot) *ExecutionFailure {
	if c.Table == "" {
		return &ExecutionFailure{
			Kind:    FailureSchemaViolation,
			Message: "chart candidate names no table to chart",
			Code:    c.Code,
		}
	}
	if !snap.HasTable(c.Table) {
		return &ExecutionFailure{
			Kind:    FailureSchemaViolation,
			Message: fmt.Sprintf("chart candidate references unknown table %q", c.Table),
			Code:    c.Code,
		}
	}
	for _, col := range c.TargetColumns {
		if !snap.TableHasColumn(c.Table, col) {
			return &ExecutionFailure{
				Kind:    FailureSchemaViolation,
				Message: fmt.Sprintf("chart candidate references unknown column %q in table %q", col, c.Table),
				Code:    c.Code,
			}
		}
	}
	return nil
}
