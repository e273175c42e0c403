package agent

import (
	"regexp"
	"strings"
)

// extractJSON extracts JSON from markdown code blocks.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	// Try json code block
	if idx := strings.Index(content, "```json"); idx >= 0 {
		content = content[idx+7:]
		if endIdx := strings.Index(content, "```"); endIdx >= 0 {
			content = content[:endIdx]
		}
	} else if idx := strings.Index(content, "```"); idx >= 0 {
		// Try generic code block
		content = content[idx+3:]
		if endIdx := strings.Index(content, "```"); endIdx >= 0 {
			content = content[:endIdx]
		}
	}

	return strings.TrimSpace(content)
}

var sqlFenceRegex = regexp.MustCompile("(?s)```(?:sql)?\\s*(.+?)\\s*```")

// extractSQL strips a markdown code fence from a generated SQL statement.
func extractSQL(content string) string {
	if matches := sqlFenceRegex.FindStringSubmatch(content); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	return strings.TrimSpace(content)
}

var pythonFenceRegex = regexp.MustCompile("(?s)```(?:python)?\\s*(.+?)\\s*```")

// extractPythonCode extracts Python code from markdown code blocks.
func extractPythonCode(content string) string {
	if matches := pythonFenceRegex.FindStringSubmatch(content); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	return strings.TrimSpace(content)
}

// containsAny checks if s contains any of the substrings.
func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// truncateForLog shortens long artifacts in log messages.
func truncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
