package agent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/razim-manzoor/AI-Data-Analyst/database"
)

// mutatingKeywordRegex matches any mutating SQL keyword in any casing, with
// word boundaries so identifiers like "updates" don't trip it.
var mutatingKeywordRegex = regexp.MustCompile(
	`(?i)\b(insert|update|delete|drop|alter|create|truncate|replace|merge|grant|revoke)\b`)

// ValidateReadOnly rejects any statement containing a mutating keyword
// before it can reach the sandbox. Only SELECT-style queries are allowed.
func ValidateReadOnly(sqlText string) *ExecutionFailure {
	if match := mutatingKeywordRegex.FindString(stripStringLiterals(sqlText)); match != "" {
		return &ExecutionFailure{
			Kind:    FailureUnsafeStatement,
			Message: fmt.Sprintf("non-read-only SQL operation detected: %s (only SELECT queries are allowed)", strings.ToUpper(match)),
			Code:    sqlText,
		}
	}
	return nil
}

// ValidateSQLAgainstSchema checks that every identifier the statement
// references exists in the schema snapshot. A violation short-circuits the
// candidate to SchemaViolation without spending an execution attempt.
func ValidateSQLAgainstSchema(sqlText string, snap *database.SchemaSnapshot) *ExecutionFailure {
	stripped := stripStringLiterals(sqlText)
	tokens := sqlTokenRegex.FindAllString(stripped, -1)

	knownTables := make(map[string]bool)
	known := make(map[string]bool)
	for _, t := range snap.Tables {
		knownTables[strings.ToLower(t.Name)] = true
		known[strings.ToLower(t.Name)] = true
		for _, c := range t.Columns {
			known[strings.ToLower(c.Name)] = true
		}
	}

	violation := func(tok string) *ExecutionFailure {
		return &ExecutionFailure{
			Kind:    FailureSchemaViolation,
			Message: fmt.Sprintf("statement references unknown identifier %q (not a table or column in the current schema)", tok),
			Code:    sqlText,
		}
	}

	// Aliases introduced by AS (select-list and table aliases).
	aliases := make(map[string]bool)
	for i, tok := range tokens {
		if strings.ToLower(tok) == "as" && i+1 < len(tokens) && tokens[i+1] != "," {
			aliases[strings.ToLower(tokens[i+1])] = true
		}
	}

	// Walk the FROM/JOIN clauses. Every name in table position must resolve
	// to a known table, with commas keeping the FROM list in table position
	// so a comma join cannot smuggle an unknown table through as a bare
	// alias. A name directly after a table is that table's alias.
	for i := 0; i < len(tokens); i++ {
		word := strings.ToLower(tokens[i])
		if word != "from" && word != "join" {
			continue
		}
		j := i + 1
		for j < len(tokens) {
			name := strings.ToLower(tokens[j])
			if name == "select" {
				// Subquery; its own FROM clause is checked when the
				// outer walk reaches it.
				break
			}
			if !knownTables[name] {
				return violation(tokens[j])
			}
			j++
			if j < len(tokens) && strings.ToLower(tokens[j]) == "as" && j+1 < len(tokens) {
				aliases[strings.ToLower(tokens[j+1])] = true
				j += 2
			} else if j < len(tokens) && tokens[j] != "," &&
				!sqlVocabulary[strings.ToLower(tokens[j])] && !known[strings.ToLower(tokens[j])] {
				aliases[strings.ToLower(tokens[j])] = true
				j++
			}
			if word == "from" && j < len(tokens) && tokens[j] == "," {
				j++
				continue
			}
			break
		}
	}

	for _, tok := range tokens {
		if tok == "," {
			continue
		}
		lower := strings.ToLower(tok)
		if sqlVocabulary[lower] || known[lower] || aliases[lower] {
			continue
		}
		return violation(tok)
	}
	return nil
}

// sqlTokenRegex captures identifiers and the commas that separate tables in
// a FROM list.
var sqlTokenRegex = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*|,`)

// stripStringLiterals blanks out quoted literals so their contents are never
// mistaken for keywords or identifiers.
func stripStringLiterals(sqlText string) string {
	var b strings.Builder
	inQuote := byte(0)
	for i := 0; i < len(sqlText); i++ {
		ch := sqlText[i]
		switch {
		case inQuote != 0:
			if ch == inQuote {
				inQuote = 0
			}
		case ch == '\'' || ch == '"':
			inQuote = ch
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// sqlVocabulary lists the SQL keywords and builtin functions a read-only
// analytical query may contain. Anything outside this set must resolve to a
// table, column, or alias from the schema snapshot.
var sqlVocabulary = map[string]bool{
	// Keywords
	"select": true, "from": true, "where": true, "group": true, "by": true,
	"order": true, "having": true, "limit": true, "offset": true, "as": true,
	"and": true, "or": true, "not": true, "in": true, "on": true, "join": true,
	"left": true, "right": true, "inner": true, "outer": true, "full": true,
	"cross": true, "distinct": true, "case": true, "when": true, "then": true,
	"else": true, "end": true, "like": true, "between": true, "is": true,
	"null": true, "asc": true, "desc": true, "union": true, "all": true,
	"exists": true, "with": true, "using": true, "escape": true, "glob": true,
	"collate": true, "nocase": true, "true": true, "false": true,

	// Aggregates and scalar functions
	"count": true, "sum": true, "avg": true, "min": true, "max": true,
	"total": true, "group_concat": true, "abs": true, "round": true,
	"coalesce": true, "ifnull": true, "nullif": true, "lower": true,
	"upper": true, "length": true, "trim": true, "ltrim": true, "rtrim": true,
	"substr": true, "substring": true, "instr": true, "cast": true,
	"integer": true, "real": true, "text": true, "numeric": true,
	"date": true, "time": true, "datetime": true, "strftime": true,
	"julianday": true, "current_date": true, "current_timestamp": true,
	"printf": true, "random": true,
}
