package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/razim-manzoor/AI-Data-Analyst/database"
)

// RouterAgent classifies a question into exactly one intent. It never
// returns an error: unparsable model output fails closed to
// IntentUnsupported, and a failed model call falls back to a deterministic
// keyword heuristic.
type RouterAgent struct {
	completer Completer
	logger    func(string)
}

// NewRouterAgent creates a router backed by the given completion handle.
func NewRouterAgent(completer Completer, logFunc func(string)) *RouterAgent {
	if logFunc == nil {
		logFunc = func(string) {}
	}
	return &RouterAgent{completer: completer, logger: logFunc}
}

const routerSystemPrompt = "You are an expert at routing a user question about a tabular dataset " +
	"to a specialist agent. Respond with exactly one word: 'query' if the question asks for data, " +
	"statistics, counts, or anything answerable with a database query; 'visualize' if the question " +
	"asks for a chart, graph, plot, or visualization; 'unsupported' if the question cannot be " +
	"answered from the dataset at all. Do not respond with any other words. When in doubt between " +
	"query and visualize, default to 'query'."

// Classify routes the question. The schema grounds the decision: datetime
// columns bias trend questions toward visualization.
func (r *RouterAgent) Classify(ctx context.Context, question string, snap *database.SchemaSnapshot) Intent {
	start := time.Now()

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nDataset schema:\n%s", question, snap.PromptText())
	if timeCols := snap.TimeColumns(); len(timeCols) > 0 {
		fmt.Fprintf(&b, "\nThe dataset has time columns (%s); questions about trends over time "+
			"are usually best answered with a visualization.", strings.Join(timeCols, ", "))
	}

	content, err := r.completer.Complete(ctx, routerSystemPrompt, b.String())
	if err != nil {
		r.logger(fmt.Sprintf("[ROUTER] Model call failed: %v, using keyword fallback", err))
		return r.fallbackClassify(question, snap)
	}

	intent := parseIntent(content)
	r.logger(fmt.Sprintf("[ROUTER] Classified %q as %s in %v", truncateForLog(question, 60), intent, time.Since(start)))
	return intent
}

// parseIntent maps raw model output onto an intent. Anything that is not one
// of the defined labels maps to IntentUnsupported, never to an error.
func parseIntent(content string) Intent {
	label := strings.ToLower(strings.TrimSpace(content))
	label = strings.Trim(label, ".'\"` ")

	switch label {
	case "query", "sql":
		return IntentQuery
	case "visualize", "visualise", "chart":
		return IntentVisualize
	case "unsupported":
		return IntentUnsupported
	default:
		return IntentUnsupported
	}
}

// visualizationTerms are the explicit verbs and nouns that make a question a
// visualization request. This is the fixed tie-break: without one of these
// (or a trend question over a time column), a question routes to query.
var visualizationTerms = []string{
	"chart", "plot", "graph", "draw", "visualize", "visualise",
	"pie", "histogram", "heatmap", "scatter",
}

// fallbackClassify is the deterministic heuristic used when the model is
// unreachable, so a model outage alone never makes a turn unsupported.
func (r *RouterAgent) fallbackClassify(question string, snap *database.SchemaSnapshot) Intent {
	q := strings.ToLower(question)
	if strings.TrimSpace(q) == "" {
		return IntentUnsupported
	}

	if containsAny(q, visualizationTerms) {
		return IntentVisualize
	}
	if strings.Contains(q, "trend") && len(snap.TimeColumns()) > 0 {
		return IntentVisualize
	}
	return IntentQuery
}
