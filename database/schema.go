package database

import (
	"fmt"
	"strings"
	"time"
)

// SemanticType classifies a column for prompt grounding and chart selection.
// The type is decided once when the snapshot is built and carried immutably.
type SemanticType string

const (
	TypeNumeric     SemanticType = "numeric"
	TypeText        SemanticType = "text"
	TypeDatetime    SemanticType = "datetime"
	TypeCategorical SemanticType = "categorical"
)

// ColumnSchema describes one column of a table.
type ColumnSchema struct {
	Name string
	Type SemanticType
}

// TableSchema describes one table with its columns in declaration order.
type TableSchema struct {
	Name    string
	Columns []ColumnSchema
}

// SchemaSnapshot is an immutable view of the data source's tables and
// inferred column types. A turn holds exactly one snapshot for its whole
// lifetime; the snapshot is never swapped mid-execution.
type SchemaSnapshot struct {
	Tables  []TableSchema
	TakenAt time.Time
}

// HasTable reports whether the snapshot contains the named table.
// Matching is case-insensitive, like SQL identifiers.
func (s *SchemaSnapshot) HasTable(name string) bool {
	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, name) {
			return true
		}
	}
	return false
}

// Table returns the schema for the named table.
func (s *SchemaSnapshot) Table(name string) (TableSchema, bool) {
	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return TableSchema{}, false
}

// HasColumn reports whether any table contains the named column.
func (s *SchemaSnapshot) HasColumn(name string) bool {
	for _, t := range s.Tables {
		for _, c := range t.Columns {
			if strings.EqualFold(c.Name, name) {
				return true
			}
		}
	}
	return false
}

// TableHasColumn reports whether the named table contains the named column.
func (s *SchemaSnapshot) TableHasColumn(table, column string) bool {
	t, ok := s.Table(table)
	if !ok {
		return false
	}
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, column) {
			return true
		}
	}
	return false
}

// TimeColumns returns the names of all datetime columns across tables.
// The router uses these to bias trend questions toward visualization.
func (s *SchemaSnapshot) TimeColumns() []string {
	var cols []string
	for _, t := range s.Tables {
		for _, c := range t.Columns {
			if c.Type == TypeDatetime {
				cols = append(cols, fmt.Sprintf("%s.%s", t.Name, c.Name))
			}
		}
	}
	return cols
}

// PromptText renders the snapshot in a compact form suitable for grounding
// an LLM prompt.
func (s *SchemaSnapshot) PromptText() string {
	if len(s.Tables) == 0 {
		return "No tables found in database."
	}

	var b strings.Builder
	for _, t := range s.Tables {
		b.WriteString("Table ")
		b.WriteString(t.Name)
		b.WriteString(":\n")
		for _, c := range t.Columns {
			fmt.Fprintf(&b, "  - %s (%s)\n", c.Name, c.Type)
		}
	}
	return b.String()
}

// inferBaseType maps a declared SQL column type to a semantic type.
// Text columns may later be refined to categorical or datetime by sampling.
func inferBaseType(declared string) SemanticType {
	d := strings.ToUpper(declared)
	switch {
	case strings.Contains(d, "INT"),
		strings.Contains(d, "REAL"),
		strings.Contains(d, "FLOA"),
		strings.Contains(d, "DOUB"),
		strings.Contains(d, "DEC"),
		strings.Contains(d, "NUM"):
		return TypeNumeric
	case strings.Contains(d, "DATE"),
		strings.Contains(d, "TIME"):
		return TypeDatetime
	default:
		return TypeText
	}
}

// datetimeLayouts are the value shapes accepted when refining a text column
// to datetime by sampling.
var datetimeLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
}

func looksLikeDatetime(value string) bool {
	v := strings.TrimSpace(value)
	if v == "" {
		return false
	}
	for _, layout := range datetimeLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}
