package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/riskframe/riskframe/pkg/questionnaire"
	"github.com/riskframe/riskframe/pkg/surface"
)

func newScoreCmd() *cobra.Command {
	var (
		dir         string
		framework   string
		answersPath string
		outputFmt   string
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a set of answers offline",
		Long: `Loads the seed directory into memory, resolves the framework's active
version, normalizes the answers file (YAML or JSON) and renders the result.
Nothing is stored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd.Context(), cmd.OutOrStdout(), scoreOpts{
				dir:         dir,
				framework:   framework,
				answersPath: answersPath,
				outputFmt:   outputFmt,
			})
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "seed", "Seed directory containing questions/ and frameworks/")
	cmd.Flags().StringVar(&framework, "framework", "investor-risk", "Framework code")
	cmd.Flags().StringVar(&answersPath, "answers", "", "Answers file keyed by question alias (required)")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text, markdown or json")
	_ = cmd.MarkFlagRequired("answers")

	return cmd
}

type scoreOpts struct {
	dir         string
	framework   string
	answersPath string
	outputFmt   string
}

func readAnswers(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading answers: %w", err)
	}
	// JSON is a subset of YAML.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing answers: %w", err)
	}
	return raw, nil
}

func runScore(ctx context.Context, w io.Writer, opts scoreOpts) error {
	renderer, err := surface.ForFormat(opts.outputFmt)
	if err != nil {
		return err
	}
	raw, err := readAnswers(opts.answersPath)
	if err != nil {
		return err
	}

	reg, _, err := offlineRegistry(ctx, opts.dir)
	if err != nil {
		return err
	}
	active, err := reg.ActiveVersion(ctx, opts.framework)
	if err != nil {
		return fmt.Errorf("framework %s: %w", opts.framework, err)
	}
	p, err := reg.Prepare(ctx, active.ID)
	if err != nil {
		return err
	}

	answers, err := questionnaire.Normalize(p.Questions, raw)
	if err != nil {
		return err
	}
	result, err := p.Engine.Score(answers)
	if err != nil {
		return err
	}
	return renderer.Render(w, result)
}
