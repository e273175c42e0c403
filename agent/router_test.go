package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/razim-manzoor/AI-Data-Analyst/database"
)

// fakeCompleter is a hand-written Completer double.
type fakeCompleter struct {
	reply      string
	err        error
	lastSystem string
	lastPrompt string
	calls      int
}

func (f *fakeCompleter) Complete(_ context.Context, system, prompt string) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastPrompt = prompt
	return f.reply, f.err
}

func salesSnapshot() *database.SchemaSnapshot {
	return &database.SchemaSnapshot{
		Tables: []database.TableSchema{
			{
				Name: "sales",
				Columns: []database.ColumnSchema{
					{Name: "region", Type: database.TypeCategorical},
					{Name: "amount", Type: database.TypeNumeric},
					{Name: "sold_at", Type: database.TypeDatetime},
				},
			},
		},
	}
}

func TestParseIntentKnownLabels(t *testing.T) {
	tests := []struct {
		raw  string
		want Intent
	}{
		{"query", IntentQuery},
		{"  Query.  ", IntentQuery},
		{"SQL", IntentQuery},
		{"visualize", IntentVisualize},
		{"Visualise", IntentVisualize},
		{"chart", IntentVisualize},
		{"'visualize'", IntentVisualize},
		{"unsupported", IntentUnsupported},
		{"", IntentUnsupported},
		{"I think query is the best choice here", IntentUnsupported},
		{"query or maybe visualize", IntentUnsupported},
	}
	for _, tt := range tests {
		if got := parseIntent(tt.raw); got != tt.want {
			t.Errorf("parseIntent(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

// Whatever the model emits, Classify yields exactly one of the three defined
// intents and never an error.
func TestClassifyTotalOverArbitraryModelOutput(t *testing.T) {
	snap := salesSnapshot()
	rapid.Check(t, func(t *rapid.T) {
		reply := rapid.String().Draw(t, "reply")
		router := NewRouterAgent(&fakeCompleter{reply: reply}, nil)

		intent := router.Classify(context.Background(), "show me sales", snap)
		switch intent {
		case IntentQuery, IntentVisualize, IntentUnsupported:
		default:
			t.Fatalf("Classify returned undefined intent %q for model output %q", intent, reply)
		}
	})
}

func TestClassifyFallbackWhenModelFails(t *testing.T) {
	snap := salesSnapshot()
	down := &fakeCompleter{err: errors.New("connection refused")}
	router := NewRouterAgent(down, nil)

	tests := []struct {
		question string
		want     Intent
	}{
		{"plot sales by region", IntentVisualize},
		{"draw a pie of regions", IntentVisualize},
		{"what is the total amount per region", IntentQuery},
		{"show the trend of amount", IntentVisualize}, // sold_at is a time column
		{"", IntentUnsupported},
	}
	for _, tt := range tests {
		if got := router.Classify(context.Background(), tt.question, snap); got != tt.want {
			t.Errorf("fallback Classify(%q) = %s, want %s", tt.question, got, tt.want)
		}
	}
}

func TestClassifyTrendWithoutTimeColumnIsQuery(t *testing.T) {
	snap := &database.SchemaSnapshot{
		Tables: []database.TableSchema{
			{Name: "sales", Columns: []database.ColumnSchema{
				{Name: "region", Type: database.TypeCategorical},
				{Name: "amount", Type: database.TypeNumeric},
			}},
		},
	}
	router := NewRouterAgent(&fakeCompleter{err: errors.New("down")}, nil)
	if got := router.Classify(context.Background(), "show the trend of amount", snap); got != IntentQuery {
		t.Fatalf("trend question without time columns routed to %s, want query", got)
	}
}

func TestClassifyPromptCarriesSchema(t *testing.T) {
	fc := &fakeCompleter{reply: "query"}
	router := NewRouterAgent(fc, nil)
	router.Classify(context.Background(), "how many rows", salesSnapshot())

	if fc.calls != 1 {
		t.Fatalf("expected one completion call, got %d", fc.calls)
	}
	for _, want := range []string{"sales", "region", "sold_at"} {
		if !strings.Contains(fc.lastPrompt, want) {
			t.Errorf("router prompt missing schema term %q", want)
		}
	}
}
