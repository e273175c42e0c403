package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/razim-manzoor/AI-Data-Analyst/agent"
	"github.com/razim-manzoor/AI-Data-Analyst/database"
)

func TestRenderMarkdownTable(t *testing.T) {
	out := renderMarkdownTable(
		[]string{"region", "total"},
		[][]string{{"EMEA", "1200"}, {"APAC", "85"}},
	)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header + separator + 2 rows:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "| region") {
		t.Errorf("header row = %q", lines[0])
	}
	if !strings.Contains(lines[1], "---") {
		t.Errorf("separator row = %q", lines[1])
	}
	if !strings.Contains(lines[2], "EMEA") || !strings.Contains(lines[3], "APAC") {
		t.Errorf("data rows wrong:\n%s", out)
	}
}

func TestRenderMarkdownTableEmpty(t *testing.T) {
	out := renderMarkdownTable([]string{"region"}, nil)
	if !strings.Contains(out, "(no rows)") {
		t.Fatalf("empty result not signaled:\n%s", out)
	}
}

func TestFormatResultVariants(t *testing.T) {
	base := agent.Turn{Intent: agent.IntentQuery, Elapsed: 120 * time.Millisecond}

	tab := base
	tab.Status = agent.StatusPartial
	tab.Result = &agent.TabularResult{Columns: []string{"n"}, Rows: [][]string{{"1"}}, Truncated: true}
	if out := formatResult(&tab); !strings.Contains(out, "truncated") {
		t.Errorf("truncation not surfaced:\n%s", out)
	}

	chart := base
	chart.Intent = agent.IntentVisualize
	chart.Status = agent.StatusSuccess
	chart.Result = &agent.ChartResult{ArtifactPath: "/tmp/chart_1.png"}
	if out := formatResult(&chart); !strings.Contains(out, "/tmp/chart_1.png") {
		t.Errorf("chart path not surfaced:\n%s", out)
	}

	failed := base
	failed.Status = agent.StatusFailed
	failed.Attempts = 2
	failed.Result = &agent.ExecutionFailure{Kind: agent.FailureRuntime, Message: "disk I/O error"}
	failed.Trail = []agent.Attempt{
		{Kind: agent.FailureSchemaViolation, Message: "unknown identifier \"orders\""},
		{Kind: agent.FailureRuntime, Message: "disk I/O error"},
	}
	out := formatResult(&failed)
	if !strings.Contains(out, "Attempt history") {
		t.Errorf("error trail not rendered:\n%s", out)
	}
	if !strings.Contains(out, "SchemaViolation") || !strings.Contains(out, "disk I/O error") {
		t.Errorf("trail entries incomplete:\n%s", out)
	}
}

func TestFormatSessionStats(t *testing.T) {
	s := agent.NewSession()
	out := formatSessionStats(s)
	if !strings.Contains(out, "0 turns") {
		t.Fatalf("stats = %q", out)
	}
}

type staticClassifier struct{ intent agent.Intent }

func (c staticClassifier) Classify(context.Context, string, *database.SchemaSnapshot) agent.Intent {
	return c.intent
}

type staticSQLGen struct{ text string }

func (g staticSQLGen) Generate(context.Context, string, *database.SchemaSnapshot, []string) (*agent.SQLCandidate, error) {
	return &agent.SQLCandidate{Text: g.text}, nil
}

type staticChartGen struct{}

func (staticChartGen) Generate(context.Context, string, *database.SchemaSnapshot, []string) (*agent.ChartCandidate, error) {
	return nil, &agent.ExecutionFailure{Kind: agent.FailureModelUnavailable, Message: "unused"}
}

type staticRunner struct{ result agent.ExecutionResult }

func (r staticRunner) Run(context.Context, agent.Candidate) agent.ExecutionResult {
	return r.result
}

type staticSchemas struct{ snap *database.SchemaSnapshot }

func (s staticSchemas) Schema(context.Context) (*database.SchemaSnapshot, error) {
	return s.snap, nil
}

// The exit banner must count turns that ran before the session ended, not
// the state of the session at wiring time.
func TestFormatSessionStatsCountsCompletedTurns(t *testing.T) {
	snap := &database.SchemaSnapshot{
		Tables: []database.TableSchema{{
			Name: "sales",
			Columns: []database.ColumnSchema{
				{Name: "region", Type: database.TypeCategorical},
				{Name: "amount", Type: database.TypeNumeric},
			},
		}},
	}
	wf := agent.NewWorkflow(
		staticSchemas{snap: snap},
		staticClassifier{intent: agent.IntentQuery},
		staticSQLGen{text: "SELECT region, SUM(amount) FROM sales GROUP BY region"},
		staticChartGen{},
		staticRunner{result: &agent.TabularResult{Columns: []string{"region"}}},
		3,
		nil,
	)

	session := agent.NewSession()
	wf.Run(context.Background(), session, "total sales by region")
	wf.Run(context.Background(), session, "sales for EMEA")

	out := formatSessionStats(session)
	if !strings.Contains(out, "2 turns") {
		t.Fatalf("banner = %q, want it to count 2 turns", out)
	}
	if !strings.Contains(out, "2 answered") {
		t.Fatalf("banner = %q, want 2 answered", out)
	}
}
