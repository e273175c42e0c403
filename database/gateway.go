// Package database implements the data access gateway: schema introspection
// with semantic-type inference, and bounded read-only query execution on top
// of dbpool.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/razim-manzoor/AI-Data-Analyst/dbpool"
)

// categoricalMaxDistinct is the distinct-value ceiling below which a sampled
// text column is refined to categorical.
const categoricalMaxDistinct = 20

// sampleLimit caps how many rows are examined when refining text columns.
const sampleLimit = 500

// Gateway executes validated SQL against the tabular store and exposes
// schema introspection used to ground prompts. It owns a bounded connection
// pool; a connection is held only for the duration of one call.
type Gateway struct {
	db      *sql.DB
	dialect *dbpool.Dialect
	logger  func(string)

	mu          sync.Mutex
	snapshot    *SchemaSnapshot
	dataVersion int64 // SQLite data_version at snapshot time; 0 for other engines
}

// Open opens the data source described by opts through the manager and wraps
// it in a Gateway.
func Open(mgr *dbpool.DBManager, opts dbpool.OpenOptions, logFunc func(string)) (*Gateway, error) {
	db, err := mgr.Open(opts)
	if err != nil {
		return nil, err
	}
	eng := opts.Engine
	if eng == "" {
		eng = mgr.DefaultEngine()
	}
	return NewGateway(db, eng, logFunc), nil
}

// NewGateway wraps an already-open *sql.DB. The caller keeps ownership of
// nothing; Close releases the handle.
func NewGateway(db *sql.DB, engine dbpool.Engine, logFunc func(string)) *Gateway {
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &Gateway{
		db:      db,
		dialect: dbpool.NewDialect(engine),
		logger:  logFunc,
	}
}

// Close releases the underlying connection pool.
func (g *Gateway) Close() error {
	return g.db.Close()
}

// Quote returns the identifier quoted for the gateway's engine.
func (g *Gateway) Quote(ident string) string {
	return g.dialect.QuoteIdent(ident)
}

// HealthCheck verifies the data source is reachable.
func (g *Gateway) HealthCheck(ctx context.Context) error {
	var one int
	if err := g.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Invalidate drops the cached schema snapshot. The next Schema call
// re-introspects the store.
func (g *Gateway) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.snapshot = nil
	g.logger("[GATEWAY] Schema cache invalidated")
}

// Schema returns the current schema snapshot, introspecting lazily. For
// SQLite the snapshot is refreshed automatically when another connection has
// modified the database (PRAGMA data_version); other engines refresh only
// through Invalidate.
func (g *Gateway) Schema(ctx context.Context) (*SchemaSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.snapshot != nil && !g.storeChanged(ctx) {
		return g.snapshot, nil
	}

	start := time.Now()
	snap, version, err := g.buildSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("schema introspection failed: %w", err)
	}

	g.snapshot = snap
	g.dataVersion = version
	g.logger(fmt.Sprintf("[GATEWAY] Schema snapshot built: %d tables in %v", len(snap.Tables), time.Since(start)))
	return snap, nil
}

// storeChanged reports whether the underlying store changed since the cached
// snapshot was taken. Must be called with g.mu held.
func (g *Gateway) storeChanged(ctx context.Context) bool {
	if g.dialect.Engine != dbpool.EngineSQLite {
		return false
	}
	var version int64
	if err := g.db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&version); err != nil {
		return false
	}
	return version != g.dataVersion
}

func (g *Gateway) buildSnapshot(ctx context.Context) (*SchemaSnapshot, int64, error) {
	rows, err := g.db.QueryContext(ctx, g.dialect.ListTablesQuery())
	if err != nil {
		return nil, 0, err
	}
	var tableNames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, 0, err
		}
		tableNames = append(tableNames, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	snap := &SchemaSnapshot{TakenAt: time.Now()}
	for _, name := range tableNames {
		table, err := g.introspectTable(ctx, name)
		if err != nil {
			return nil, 0, err
		}
		snap.Tables = append(snap.Tables, table)
	}

	var version int64
	if g.dialect.Engine == dbpool.EngineSQLite {
		g.db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&version)
	}
	return snap, version, nil
}

func (g *Gateway) introspectTable(ctx context.Context, name string) (TableSchema, error) {
	table := TableSchema{Name: name}

	rows, err := g.db.QueryContext(ctx, g.dialect.DescribeColumnsQuery(name))
	if err != nil {
		return table, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return table, err
	}

	for rows.Next() {
		colName, declared, err := scanColumnRow(rows, g.dialect.Engine, len(cols))
		if err != nil {
			return table, err
		}
		table.Columns = append(table.Columns, ColumnSchema{Name: colName, Type: inferBaseType(declared)})
	}
	if err := rows.Err(); err != nil {
		return table, err
	}

	// Refine text columns via value sampling.
	for i, c := range table.Columns {
		if c.Type != TypeText {
			continue
		}
		table.Columns[i].Type = g.refineTextColumn(ctx, name, c.Name)
	}

	return table, nil
}

// scanColumnRow extracts (name, declared type) from one row of the
// engine-specific column description query.
func scanColumnRow(rows *sql.Rows, engine dbpool.Engine, colCount int) (string, string, error) {
	vals := make([]interface{}, colCount)
	ptrs := make([]interface{}, colCount)
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return "", "", err
	}

	asString := func(v interface{}) string {
		switch x := v.(type) {
		case nil:
			return ""
		case []byte:
			return string(x)
		case string:
			return x
		default:
			return fmt.Sprintf("%v", x)
		}
	}

	switch engine {
	case dbpool.EngineSQLite:
		// PRAGMA table_info: cid, name, type, notnull, dflt_value, pk
		if colCount < 3 {
			return "", "", errors.New("unexpected PRAGMA table_info shape")
		}
		return asString(vals[1]), asString(vals[2]), nil
	default:
		// DESCRIBE: Field, Type, ...
		if colCount < 2 {
			return "", "", errors.New("unexpected DESCRIBE shape")
		}
		return asString(vals[0]), asString(vals[1]), nil
	}
}

// refineTextColumn samples values to decide whether a declared-text column is
// really datetime or categorical.
func (g *Gateway) refineTextColumn(ctx context.Context, table, column string) SemanticType {
	qc := g.dialect.QuoteIdent(column)
	qt := g.dialect.QuoteIdent(table)

	// Datetime check: a handful of non-null values all parse as dates.
	sampleQ := fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL LIMIT 5", qc, qt, qc)
	rows, err := g.db.QueryContext(ctx, sampleQ)
	if err == nil {
		sampled, allDates := 0, true
		for rows.Next() {
			var v sql.NullString
			if rows.Scan(&v) != nil {
				allDates = false
				break
			}
			sampled++
			if !v.Valid || !looksLikeDatetime(v.String) {
				allDates = false
				break
			}
		}
		rows.Close()
		if sampled > 0 && allDates {
			return TypeDatetime
		}
	}

	// Categorical check: few distinct values over a bounded sample.
	countQ := fmt.Sprintf(
		"SELECT COUNT(*), COUNT(DISTINCT %s) FROM (SELECT %s FROM %s WHERE %s IS NOT NULL LIMIT %d) sample",
		qc, qc, qt, qc, sampleLimit)
	var total, distinct int
	if err := g.db.QueryRowContext(ctx, countQ).Scan(&total, &distinct); err == nil {
		if total >= categoricalMaxDistinct && distinct <= categoricalMaxDistinct {
			return TypeCategorical
		}
	}

	return TypeText
}

// ResultSet is the outcome of one query execution. Truncation is signaled,
// never silently dropped.
type ResultSet struct {
	Columns   []string
	Rows      [][]string
	Truncated bool
}

// Execute runs a query with a row cap and wall-clock timeout. Rows beyond
// rowLimit are discarded and the result is marked Truncated.
func (g *Gateway) Execute(ctx context.Context, sqlText string, rowLimit int, timeout time.Duration) (*ResultSet, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := g.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &ResultSet{Columns: cols}
	vals := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	for rows.Next() {
		if rowLimit > 0 && len(result.Rows) >= rowLimit {
			result.Truncated = true
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = formatValue(v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	g.logger(fmt.Sprintf("[GATEWAY] Query returned %d rows (truncated=%v) in %v",
		len(result.Rows), result.Truncated, time.Since(start)))
	return result, nil
}

// formatValue renders a scanned SQL value as display text.
func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	case float64:
		// Trim trailing zeros the way SQLite prints them.
		s := fmt.Sprintf("%g", x)
		return s
	default:
		return fmt.Sprintf("%v", x)
	}
}
