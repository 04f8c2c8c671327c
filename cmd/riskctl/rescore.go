package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/riskframe/riskframe/internal/app"
	"github.com/riskframe/riskframe/internal/submission"
	"github.com/riskframe/riskframe/pkg/surface"
)

func newRescoreCmd() *cobra.Command {
	var (
		persist   bool
		outputFmt string
	)

	cmd := &cobra.Command{
		Use:   "rescore <submission-id>",
		Short: "Re-run the engine over a stored submission",
		Long: `Recomputes a submission from its frozen questions, configuration and
answers and reports whether the stored result is reproduced. With --persist
the recomputed result is stored as a new submission.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			renderer, err := surface.ForFormat(outputFmt)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				report, err := a.Submissions.ReScore(cmd.Context(), args[0], submission.RescoreOptions{Persist: persist})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if err := renderer.Render(out, report.Result); err != nil {
					return err
				}
				if report.Persisted != nil {
					fmt.Fprintf(out, "stored as %s\n", report.Persisted.ID)
				}
				if !report.Match {
					return fmt.Errorf("submission %s: recomputed result differs from the stored result", args[0])
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&persist, "persist", false, "Store the recomputed result as a new submission")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text, markdown or json")
	return cmd
}
