package surface

import (
	"fmt"
	"io"
	"strings"

	"github.com/riskframe/riskframe/pkg/scoring"
)

// MarkdownRenderer produces a Markdown summary, suitable for reports and
// ticket comments.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(w io.Writer, result *scoring.Result) error {
	_, err := io.WriteString(w, buildMarkdownSummary(result))
	return err
}

func buildMarkdownSummary(result *scoring.Result) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "## Risk profile: %s (decision %.2f)\n\n", result.Bucket, result.Decision)

	sb.WriteString("| Pillar | Score |\n|--------|-------|\n")
	for _, name := range sortedPillars(result.PillarScores) {
		fmt.Fprintf(&sb, "| %s | %.2f |\n", name, result.PillarScores[name])
	}
	sb.WriteString("\n")

	if len(result.Warnings) > 0 {
		sb.WriteString("### Warnings\n\n")
		for _, msg := range result.Warnings {
			fmt.Fprintf(&sb, "- %s\n", msg)
		}
		sb.WriteString("\n")
	}

	if len(result.Unscored) > 0 {
		sb.WriteString("<details><summary>Inputs scored as 0</summary>\n\n")
		for _, u := range result.Unscored {
			fmt.Fprintf(&sb, "- `%s/%s`: %s", u.Pillar, u.Question, u.Reason)
			if u.Value != "" {
				fmt.Fprintf(&sb, " (`%s`)", u.Value)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n</details>\n")
	}

	return sb.String()
}
