package agent

import (
	"strings"
	"testing"
	"unicode"

	"github.com/razim-manzoor/AI-Data-Analyst/database"
	"pgregory.net/rapid"
)

func TestValidateReadOnlyAllowsSelects(t *testing.T) {
	queries := []string{
		"SELECT region, SUM(amount) FROM sales GROUP BY region",
		"select count(*) from sales where region = 'EMEA'",
		"SELECT * FROM sales WHERE region = 'dropzone'", // keyword inside literal
		"SELECT updates FROM sales",                     // identifier containing a keyword
	}
	for _, q := range queries {
		if fail := ValidateReadOnly(q); fail != nil {
			t.Errorf("ValidateReadOnly(%q) rejected a read-only query: %v", q, fail)
		}
	}
}

func TestValidateReadOnlyRejectsMutations(t *testing.T) {
	queries := []string{
		"INSERT INTO sales VALUES (1)",
		"insert into sales values (1)",
		"  DeLeTe   FROM sales",
		"DROP TABLE sales",
		"UPDATE sales SET amount = 0",
		"SELECT 1; TRUNCATE sales",
		"CREATE TABLE x (id INTEGER)",
	}
	for _, q := range queries {
		fail := ValidateReadOnly(q)
		if fail == nil {
			t.Errorf("ValidateReadOnly(%q) allowed a mutating statement", q)
			continue
		}
		if fail.Kind != FailureUnsafeStatement {
			t.Errorf("ValidateReadOnly(%q) kind = %s, want %s", q, fail.Kind, FailureUnsafeStatement)
		}
	}
}

// Mutating keywords must be rejected in every casing and with arbitrary
// surrounding whitespace.
func TestMutatingKeywordRejectedAllCasings(t *testing.T) {
	keywords := []string{"insert", "update", "delete", "drop", "alter", "create", "truncate"}
	rapid.Check(t, func(t *rapid.T) {
		kw := rapid.SampledFrom(keywords).Draw(t, "keyword")

		var cased strings.Builder
		for _, r := range kw {
			if rapid.Bool().Draw(t, "upper") {
				cased.WriteRune(unicode.ToUpper(r))
			} else {
				cased.WriteRune(r)
			}
		}
		pad := strings.Repeat(" ", rapid.IntRange(0, 5).Draw(t, "pad"))
		tail := strings.Repeat("\t", rapid.IntRange(0, 3).Draw(t, "tail"))
		stmt := pad + cased.String() + tail + " sales"

		fail := ValidateReadOnly(stmt)
		if fail == nil {
			t.Fatalf("statement %q with mutating keyword was not rejected", stmt)
		}
		if fail.Kind != FailureUnsafeStatement {
			t.Fatalf("statement %q rejected with kind %s, want %s", stmt, fail.Kind, FailureUnsafeStatement)
		}
	})
}

func TestValidateSQLAgainstSchema(t *testing.T) {
	snap := salesSnapshot()

	tests := []struct {
		name    string
		sql     string
		wantErr bool
	}{
		{"known table and columns", "SELECT region, SUM(amount) FROM sales GROUP BY region", false},
		{"table alias", "SELECT s.amount FROM sales AS s WHERE s.region = 'EMEA'", false},
		{"bare alias", "SELECT s.amount FROM sales s", false},
		{"functions and keywords only", "SELECT COUNT(*), MAX(amount) FROM sales", false},
		{"case-insensitive identifiers", "SELECT REGION FROM SALES", false},
		{"subquery", "SELECT region FROM (SELECT region FROM sales)", false},
		{"unknown table", "SELECT region FROM orders", true},
		{"unknown column", "SELECT price FROM sales", true},
		{"comma join with unknown table", "SELECT region FROM sales, orders", true},
		{"comma join with aliased unknown table", "SELECT region FROM sales s, orders o", true},
		{"join on unknown table", "SELECT region FROM sales JOIN orders ON sales.region = orders.region", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fail := ValidateSQLAgainstSchema(tt.sql, snap)
			if tt.wantErr && fail == nil {
				t.Fatalf("expected schema violation for %q", tt.sql)
			}
			if !tt.wantErr && fail != nil {
				t.Fatalf("unexpected violation for %q: %v", tt.sql, fail)
			}
			if fail != nil && fail.Kind != FailureSchemaViolation {
				t.Fatalf("kind = %s, want %s", fail.Kind, FailureSchemaViolation)
			}
		})
	}
}

// A comma join of tables that all exist must still pass, aliases included.
func TestValidateSQLAgainstSchemaCommaJoinKnownTables(t *testing.T) {
	snap := &database.SchemaSnapshot{
		Tables: []database.TableSchema{
			{
				Name: "sales",
				Columns: []database.ColumnSchema{
					{Name: "region", Type: database.TypeCategorical},
					{Name: "amount", Type: database.TypeNumeric},
				},
			},
			{
				Name: "notes",
				Columns: []database.ColumnSchema{
					{Name: "region", Type: database.TypeCategorical},
					{Name: "body", Type: database.TypeCategorical},
				},
			},
		},
	}

	queries := []string{
		"SELECT s.amount, n.body FROM sales s, notes n WHERE s.region = n.region",
		"SELECT sales.amount FROM sales, notes",
		"SELECT s.amount FROM sales AS s, notes AS n WHERE s.region = n.region",
		"SELECT s.amount FROM sales s JOIN notes n ON s.region = n.region",
	}
	for _, q := range queries {
		if fail := ValidateSQLAgainstSchema(q, snap); fail != nil {
			t.Errorf("ValidateSQLAgainstSchema(%q) rejected a valid join: %v", q, fail)
		}
	}
}

func TestSQLCandidateValidateOrder(t *testing.T) {
	snap := salesSnapshot()

	// Unsafe wins over schema resolution: the statement must never execute.
	c := &SQLCandidate{Text: "DROP TABLE orders"}
	fail := c.Validate(snap)
	if fail == nil || fail.Kind != FailureUnsafeStatement {
		t.Fatalf("Validate(DROP) = %v, want UnsafeStatement", fail)
	}

	c = &SQLCandidate{Text: "SELECT price FROM sales"}
	fail = c.Validate(snap)
	if fail == nil || fail.Kind != FailureSchemaViolation {
		t.Fatalf("Validate(unknown column) = %v, want SchemaViolation", fail)
	}

	c = &SQLCandidate{Text: "SELECT region FROM sales"}
	if fail = c.Validate(snap); fail != nil {
		t.Fatalf("Validate(valid query) = %v, want nil", fail)
	}
}
