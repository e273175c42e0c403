package agent

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ScriptRunner executes a Python script inside a working directory and
// returns its combined stdout/stderr. Implementations must respect ctx
// cancellation by killing the interpreter process.
type ScriptRunner interface {
	RunScript(ctx context.Context, pythonPath, workDir, script string) (string, error)
}

// PythonRunner runs scripts through a local Python interpreter.
type PythonRunner struct {
	logger func(string)
}

// NewPythonRunner creates a runner. logFunc may be nil.
func NewPythonRunner(logFunc func(string)) *PythonRunner {
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &PythonRunner{logger: logFunc}
}

// RunScript writes the script to a temp file inside workDir and executes it
// with the given interpreter. The process is killed when ctx expires; the
// partial output collected so far is returned alongside ctx.Err().
func (r *PythonRunner) RunScript(ctx context.Context, pythonPath, workDir, script string) (string, error) {
	if pythonPath == "" {
		return "", fmt.Errorf("python path is not configured")
	}

	scriptFile := filepath.Join(workDir, "script.py")
	if err := os.WriteFile(scriptFile, []byte(script), 0o600); err != nil {
		return "", fmt.Errorf("failed to write script: %w", err)
	}

	cmd := exec.CommandContext(ctx, pythonPath, scriptFile)
	cmd.Dir = workDir
	cmd.SysProcAttr = hiddenProcAttr()
	// Force UTF-8 so Unicode in chart labels does not break output capture.
	cmd.Env = append(os.Environ(), "PYTHONIOENCODING=utf-8")

	out, err := cmd.CombinedOutput()
	output := string(out)
	if ctxErr := ctx.Err(); ctxErr != nil {
		r.logger(fmt.Sprintf("[PYTHON] script killed: %v", ctxErr))
		return output, ctxErr
	}
	if err != nil {
		r.logger(fmt.Sprintf("[PYTHON] script failed: %v; output: %s", err, truncateForLog(output, 500)))
		return output, err
	}
	if strings.TrimSpace(output) != "" {
		r.logger(fmt.Sprintf("[PYTHON] script output: %s", truncateForLog(output, 500)))
	}
	return output, nil
}
