package agent

import (
	"regexp"
	"strings"
)

// CodeValidator statically checks generated chart code against a declared
// safe subset before it is allowed anywhere near an interpreter: an
// allow-list over imports plus forbidden call patterns. The sandbox enforces
// this; the chart agent is never trusted.
type CodeValidator struct {
	allowedImports    []string
	forbiddenPatterns []*regexp.Regexp
	maxCodeLength     int
}

// ValidationResult represents the result of code validation.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
	HasChart bool
}

// NewCodeValidator creates a code validator with the default safe subset:
// dataframe and plotting libraries only, no filesystem, network, or
// process-control access.
func NewCodeValidator() *CodeValidator {
	patterns := []string{
		// System command execution
		`os\.system\s*\(`,
		`subprocess\.`,
		`os\.popen\s*\(`,
		`os\.exec`,
		// File removal
		`os\.remove\s*\(`,
		`os\.unlink\s*\(`,
		`os\.rmdir\s*\(`,
		`shutil\.`,
		`pathlib\.`,
		// Network operations
		`requests\.`,
		`urllib\.`,
		`http\.client`,
		`socket\.`,
		`ftplib\.`,
		`smtplib\.`,
		// Dynamic code execution
		`exec\s*\(`,
		`eval\s*\(`,
		`compile\s*\(`,
		`__import__\s*\(`,
		`open\s*\(`,
		// Dangerous deserialization
		`pickle\.`,
		`marshal\.`,
	}
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}

	return &CodeValidator{
		allowedImports: []string{
			"pandas", "numpy", "matplotlib", "seaborn",
			"math", "datetime", "collections", "itertools", "json",
		},
		forbiddenPatterns: compiled,
		maxCodeLength:     50000,
	}
}

// ValidateCode checks the generated code for safety. Any error means the
// code must not be executed.
func (v *CodeValidator) ValidateCode(code string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if strings.TrimSpace(code) == "" {
		result.Valid = false
		result.Errors = append(result.Errors, "code is empty")
		return result
	}

	if len(code) > v.maxCodeLength {
		result.Valid = false
		result.Errors = append(result.Errors, "code length exceeds limit")
		return result
	}

	for _, re := range v.forbiddenPatterns {
		if re.MatchString(code) {
			result.Valid = false
			result.Errors = append(result.Errors, "unsafe code pattern detected: "+re.String())
		}
	}

	for _, module := range v.DisallowedImports(code) {
		result.Valid = false
		result.Errors = append(result.Errors, "disallowed import: "+module)
	}

	result.HasChart = hasChartSave(code)
	if !result.HasChart {
		result.Warnings = append(result.Warnings, "code does not save a chart (expected plt.savefig)")
	}

	return result
}

var importRegex = regexp.MustCompile(`(?m)^\s*(?:import|from)\s+(\w+)`)

// DisallowedImports returns every imported module that is not on the
// allow-list.
func (v *CodeValidator) DisallowedImports(code string) []string {
	var disallowed []string
	for _, match := range importRegex.FindAllStringSubmatch(code, -1) {
		module := match[1]
		allowed := false
		for _, a := range v.allowedImports {
			if module == a {
				allowed = true
				break
			}
		}
		if !allowed {
			disallowed = append(disallowed, module)
		}
	}
	return disallowed
}

// hasChartSave reports whether the code actually saves a chart file.
// plt.show() alone produces no artifact.
func hasChartSave(code string) bool {
	return strings.Contains(code, "savefig(")
}
