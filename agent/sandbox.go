package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/razim-manzoor/AI-Data-Analyst/database"
)

// QueryExecutor is the slice of the data access gateway the sandbox needs:
// bounded query execution plus engine-aware identifier quoting.
type QueryExecutor interface {
	Execute(ctx context.Context, sqlText string, rowLimit int, timeout time.Duration) (*database.ResultSet, error)
	Quote(ident string) string
}

// SandboxOptions configures execution limits and the chart pipeline.
type SandboxOptions struct {
	RowLimit     int
	QueryTimeout time.Duration
	ExecTimeout  time.Duration
	PythonPath   string
	ChartDir     string
}

// Sandbox runs candidates under resource limits. SQL candidates get a row cap
// and a query timeout; chart candidates additionally pass the code safety
// check and run in a throwaway working directory under a wall-clock limit.
// Run never returns an untyped error: every failure is an ExecutionFailure.
type Sandbox struct {
	gateway   QueryExecutor
	validator *CodeValidator
	runner    ScriptRunner
	opts      SandboxOptions
	logger    func(string)
}

// NewSandbox creates a sandbox. runner may be nil, in which case a local
// Python runner is used. logFunc may be nil.
func NewSandbox(gateway QueryExecutor, runner ScriptRunner, opts SandboxOptions, logFunc func(string)) *Sandbox {
	if logFunc == nil {
		logFunc = func(string) {}
	}
	if runner == nil {
		runner = NewPythonRunner(logFunc)
	}
	return &Sandbox{
		gateway:   gateway,
		validator: NewCodeValidator(),
		runner:    runner,
		opts:      opts,
		logger:    logFunc,
	}
}

// Run executes one candidate and returns its tagged result.
func (s *Sandbox) Run(ctx context.Context, c Candidate) (result ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger(fmt.Sprintf("[SANDBOX] Recovered from panic: %v", r))
			result = &ExecutionFailure{
				Kind:    FailureRuntime,
				Message: fmt.Sprintf("internal execution error: %v", r),
				Code:    c.Artifact(),
			}
		}
	}()

	switch cand := c.(type) {
	case *SQLCandidate:
		return s.runSQL(ctx, cand)
	case *ChartCandidate:
		return s.runChart(ctx, cand)
	default:
		return &ExecutionFailure{
			Kind:    FailureRuntime,
			Message: fmt.Sprintf("unknown candidate type %T", c),
		}
	}
}

func (s *Sandbox) runSQL(ctx context.Context, c *SQLCandidate) ExecutionResult {
	res, err := s.gateway.Execute(ctx, c.Text, s.opts.RowLimit, s.opts.QueryTimeout)
	if err != nil {
		return s.classifyError(err, c.Text, "query")
	}
	return &TabularResult{
		Columns:   res.Columns,
		Rows:      res.Rows,
		Truncated: res.Truncated,
	}
}

func (s *Sandbox) runChart(ctx context.Context, c *ChartCandidate) ExecutionResult {
	// Safety check before any interpreter is spawned.
	vr := s.validator.ValidateCode(c.Code)
	if !vr.Valid {
		s.logger(fmt.Sprintf("[SANDBOX] Chart code rejected: %s", strings.Join(vr.Errors, "; ")))
		return &ExecutionFailure{
			Kind:    FailureUnsafeStatement,
			Message: strings.Join(vr.Errors, "; "),
			Code:    c.Code,
		}
	}

	data, err := s.materialize(ctx, c)
	if err != nil {
		return s.classifyError(err, c.Code, "chart data")
	}

	workDir, err := os.MkdirTemp("", "analyst_chart_*")
	if err != nil {
		return &ExecutionFailure{Kind: FailureRuntime, Message: fmt.Sprintf("failed to create work dir: %v", err), Code: c.Code}
	}
	defer os.RemoveAll(workDir)

	if err := os.WriteFile(filepath.Join(workDir, "data.json"), data, 0o600); err != nil {
		return &ExecutionFailure{Kind: FailureRuntime, Message: fmt.Sprintf("failed to stage data: %v", err), Code: c.Code}
	}

	execCtx := ctx
	if s.opts.ExecTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, s.opts.ExecTimeout)
		defer cancel()
	}

	output, runErr := s.runner.RunScript(execCtx, s.opts.PythonPath, workDir, wrapChartCode(c.Code))
	if runErr != nil {
		// A nonzero exit means the user code raised, even if a partial
		// chart.png was flushed before the failure.
		return s.classifyError(runErr, c.Code, truncateForLog(output, 800))
	}

	chartFile := filepath.Join(workDir, "chart.png")
	if _, statErr := os.Stat(chartFile); statErr != nil {
		return &ExecutionFailure{
			Kind:    FailureRuntime,
			Message: "chart code ran but produced no chart.png: " + truncateForLog(output, 800),
			Code:    c.Code,
		}
	}

	dest, err := s.publishChart(chartFile)
	if err != nil {
		return &ExecutionFailure{Kind: FailureRuntime, Message: err.Error(), Code: c.Code}
	}
	s.logger(fmt.Sprintf("[SANDBOX] Chart saved: %s", dest))
	return &ChartResult{
		ArtifactPath: dest,
		Description:  fmt.Sprintf("chart over %s (%s)", c.Table, strings.Join(c.TargetColumns, ", ")),
	}
}

// materialize runs a bounded projection of the candidate's target columns and
// encodes the rows as a JSON array of records for the chart script.
func (s *Sandbox) materialize(ctx context.Context, c *ChartCandidate) ([]byte, error) {
	projection := "*"
	if len(c.TargetColumns) > 0 {
		quoted := make([]string, len(c.TargetColumns))
		for i, col := range c.TargetColumns {
			quoted[i] = s.gateway.Quote(col)
		}
		projection = strings.Join(quoted, ", ")
	}
	q := fmt.Sprintf("SELECT %s FROM %s", projection, s.gateway.Quote(c.Table))

	res, err := s.gateway.Execute(ctx, q, s.opts.RowLimit, s.opts.QueryTimeout)
	if err != nil {
		return nil, err
	}
	if res.Truncated {
		s.logger(fmt.Sprintf("[SANDBOX] Chart data truncated at %d rows", s.opts.RowLimit))
	}

	records := make([]map[string]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		rec := make(map[string]string, len(res.Columns))
		for i, col := range res.Columns {
			rec[col] = row[i]
		}
		records = append(records, rec)
	}
	return json.Marshal(records)
}

// publishChart moves the rendered chart into the configured output directory
// under a unique name.
func (s *Sandbox) publishChart(src string) (string, error) {
	if err := os.MkdirAll(s.opts.ChartDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create chart dir: %w", err)
	}
	dest := filepath.Join(s.opts.ChartDir, fmt.Sprintf("chart_%s.png", uuid.NewString()))
	if err := os.Rename(src, dest); err == nil {
		return dest, nil
	}
	// Temp dirs can live on a different filesystem; fall back to a copy.
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to read chart: %w", err)
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to save chart: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return "", fmt.Errorf("failed to save chart: %w", err)
	}
	return dest, nil
}

// CleanupCharts removes old chart files from the output directory, keeping
// the keep most recent ones. Errors are logged, not returned: housekeeping
// must never fail a turn.
func (s *Sandbox) CleanupCharts(keep int) {
	entries, err := os.ReadDir(s.opts.ChartDir)
	if err != nil {
		return
	}

	type chartFile struct {
		path    string
		modTime time.Time
	}
	var charts []chartFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".png") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		charts = append(charts, chartFile{filepath.Join(s.opts.ChartDir, e.Name()), info.ModTime()})
	}
	if len(charts) <= keep {
		return
	}

	sort.Slice(charts, func(i, j int) bool { return charts[i].modTime.After(charts[j].modTime) })
	for _, c := range charts[keep:] {
		if err := os.Remove(c.path); err != nil {
			s.logger(fmt.Sprintf("[SANDBOX] Failed to remove old chart %s: %v", c.path, err))
			continue
		}
		s.logger(fmt.Sprintf("[SANDBOX] Removed old chart %s", c.path))
	}
}

// classifyError maps a raw execution error to a failure kind.
func (s *Sandbox) classifyError(err error, artifact, detail string) *ExecutionFailure {
	kind := FailureRuntime
	if errors.Is(err, context.DeadlineExceeded) {
		kind = FailureTimeout
	}
	msg := err.Error()
	if detail != "" && detail != msg {
		msg = msg + ": " + detail
	}
	s.logger(fmt.Sprintf("[SANDBOX] Execution failed (%s): %s", kind, truncateForLog(msg, 500)))
	return &ExecutionFailure{Kind: kind, Message: msg, Code: artifact}
}

// wrapChartCode embeds the generated code in a harness that forces the Agg
// backend, preloads the staged data as df, and reports any exception on
// stderr. The user code travels base64-encoded so quoting inside it cannot
// break the harness.
func wrapChartCode(code string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(code))
	return fmt.Sprintf(`import sys
import json
import base64
import traceback
import matplotlib
matplotlib.use('Agg')
import matplotlib.pyplot as plt
import pandas as pd
import numpy as np

with open('data.json', 'r', encoding='utf-8') as f:
    df = pd.DataFrame(json.load(f))
for _col in df.columns:
    try:
        df[_col] = pd.to_numeric(df[_col])
    except (ValueError, TypeError):
        pass

user_code = base64.b64decode('%s').decode('utf-8')
try:
    exec(user_code)
except Exception as e:
    print(f"Error: {e}", file=sys.stderr)
    traceback.print_exc()
    sys.exit(1)
`, encoded)
}
