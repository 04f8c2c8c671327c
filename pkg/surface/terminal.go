package surface

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/riskframe/riskframe/pkg/scoring"
)

// TerminalRenderer renders a Result as colored terminal output. Colors are
// dropped automatically when w is not a terminal or NO_COLOR is set.
type TerminalRenderer struct{}

type termStyles struct {
	header lipgloss.Style
	bucket lipgloss.Style
	warn   lipgloss.Style
	dim    lipgloss.Style
	bar    lipgloss.Style
}

func newTermStyles(w io.Writer) termStyles {
	r := lipgloss.NewRenderer(w)
	return termStyles{
		header: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		bucket: r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		warn:   r.NewStyle().Foreground(lipgloss.Color("3")),
		dim:    r.NewStyle().Foreground(lipgloss.Color("8")),
		bar:    r.NewStyle().Foreground(lipgloss.Color("6")),
	}
}

const barWidth = 20

// scoreBar draws a 0..100 score as a fixed-width bar.
func scoreBar(score float64) string {
	filled := int(score/100*barWidth + 0.5)
	if filled < 0 {
		filled = 0
	}
	if filled > barWidth {
		filled = barWidth
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

func (r *TerminalRenderer) Render(w io.Writer, result *scoring.Result) error {
	st := newTermStyles(w)

	fmt.Fprintf(w, "%s %s  %s\n\n",
		st.header.Render("Risk profile:"),
		st.bucket.Render(result.Bucket),
		st.dim.Render(fmt.Sprintf("(decision %.2f)", result.Decision)))

	fmt.Fprintln(w, "Pillars:")
	for _, name := range sortedPillars(result.PillarScores) {
		score := result.PillarScores[name]
		fmt.Fprintf(w, "  %-12s %s %6.2f\n", name, st.bar.Render(scoreBar(score)), score)
	}
	fmt.Fprintln(w)

	if len(result.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, msg := range result.Warnings {
			lines := wrapText(msg, 70)
			fmt.Fprintf(w, "  %s %s\n", st.warn.Render("!"), lines[0])
			for _, line := range lines[1:] {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
		fmt.Fprintln(w)
	}

	if len(result.Unscored) > 0 {
		fmt.Fprintln(w, st.dim.Render("Scored as 0:"))
		for _, u := range result.Unscored {
			detail := string(u.Reason)
			if u.Value != "" {
				detail += fmt.Sprintf(" %q", u.Value)
			}
			fmt.Fprintf(w, "  %s\n", st.dim.Render(fmt.Sprintf("%s/%s: %s", u.Pillar, u.Question, detail)))
		}
		fmt.Fprintln(w)
	}

	return nil
}

// wrapText wraps a string at the given width, returning lines.
func wrapText(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	current := words[0]

	for _, word := range words[1:] {
		if len(current)+1+len(word) > width {
			lines = append(lines, current)
			current = word
		} else {
			current += " " + word
		}
	}
	lines = append(lines, current)
	return lines
}
