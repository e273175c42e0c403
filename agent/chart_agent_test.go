package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestChartAgentParsesJSONContract(t *testing.T) {
	reply := "```json\n" +
		`{"table": "sales", "columns": ["region", "amount"], "code": "df.plot()\nplt.savefig('chart.png')"}` +
		"\n```"
	agent := NewChartAgent(&fakeCompleter{reply: reply}, nil)

	cand, err := agent.Generate(context.Background(), "chart sales by region", salesSnapshot(), nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if cand.Table != "sales" {
		t.Errorf("table = %q, want sales", cand.Table)
	}
	if len(cand.TargetColumns) != 2 {
		t.Errorf("columns = %v, want [region amount]", cand.TargetColumns)
	}
	if fail := cand.Validate(salesSnapshot()); fail != nil {
		t.Errorf("valid candidate rejected: %v", fail)
	}
}

func TestChartAgentBareCodeFallback(t *testing.T) {
	reply := "```python\ndf.plot()\nplt.savefig('chart.png')\n```"
	agent := NewChartAgent(&fakeCompleter{reply: reply}, nil)

	cand, err := agent.Generate(context.Background(), "chart it", salesSnapshot(), nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	// Without the JSON contract the table is unknown; validation must stop
	// the candidate before execution.
	fail := cand.Validate(salesSnapshot())
	if fail == nil || fail.Kind != FailureSchemaViolation {
		t.Fatalf("Validate = %v, want SchemaViolation for missing table", fail)
	}
}

func TestChartAgentModelFailure(t *testing.T) {
	agent := NewChartAgent(&fakeCompleter{err: errors.New("dial tcp: timeout")}, nil)

	_, err := agent.Generate(context.Background(), "chart it", salesSnapshot(), nil)
	var fail *ExecutionFailure
	if !errors.As(err, &fail) || fail.Kind != FailureModelUnavailable {
		t.Fatalf("err = %v, want ExecutionFailure{ModelUnavailable}", err)
	}
}

func TestChartAgentRepairPromptCarriesLastError(t *testing.T) {
	fc := &fakeCompleter{reply: `{"table": "sales", "columns": ["amount"], "code": "plt.savefig('chart.png')"}`}
	agent := NewChartAgent(fc, nil)

	prior := []string{"first failure", "KeyError: 'amont'"}
	if _, err := agent.Generate(context.Background(), "chart it", salesSnapshot(), prior); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !strings.Contains(fc.lastPrompt, "KeyError: 'amont'") {
		t.Fatal("repair prompt does not carry the most recent failure")
	}
	if !strings.Contains(fc.lastPrompt, "Repair the previous code") {
		t.Fatal("repair prompt does not instruct repair over regeneration")
	}
}

func TestChartCandidateValidateUnknownReferences(t *testing.T) {
	snap := salesSnapshot()

	c := &ChartCandidate{Code: "plt.savefig('chart.png')", Table: "orders", TargetColumns: []string{"amount"}}
	if fail := c.Validate(snap); fail == nil || fail.Kind != FailureSchemaViolation {
		t.Fatalf("unknown table: Validate = %v, want SchemaViolation", fail)
	}

	c = &ChartCandidate{Code: "plt.savefig('chart.png')", Table: "sales", TargetColumns: []string{"price"}}
	if fail := c.Validate(snap); fail == nil || fail.Kind != FailureSchemaViolation {
		t.Fatalf("unknown column: Validate = %v, want SchemaViolation", fail)
	}
}
