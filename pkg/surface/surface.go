// Package surface renders scoring results for people and machines:
// colored terminal output, Markdown summaries and JSON.
package surface

import (
	"fmt"
	"io"
	"sort"

	"github.com/riskframe/riskframe/pkg/scoring"
)

// Renderer produces formatted output from a Result.
type Renderer interface {
	// Render writes the formatted result to the writer.
	Render(w io.Writer, result *scoring.Result) error
}

// ForFormat returns the renderer for "text", "markdown" or "json".
func ForFormat(format string) (Renderer, error) {
	switch format {
	case "", "text":
		return &TerminalRenderer{}, nil
	case "markdown", "md":
		return &MarkdownRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	}
	return nil, fmt.Errorf("unknown output format %q (want text, markdown or json)", format)
}

func sortedPillars(scores map[string]float64) []string {
	names := make([]string, 0, len(scores))
	for n := range scores {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
