package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/riskframe/riskframe/internal/loader"
	"github.com/riskframe/riskframe/internal/registry"
	"github.com/riskframe/riskframe/internal/schema"
)

func newValidateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a seed directory without touching the database",
		Long: `Loads every question and framework file under --dir into an in-memory
registry, running the same checks as publishing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), cmd.OutOrStdout(), dir)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "seed", "Seed directory containing questions/ and frameworks/")
	return cmd
}

// offlineRegistry applies the seed directory to a fresh in-memory registry.
func offlineRegistry(ctx context.Context, dir string) (*registry.Service, *loader.Report, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, nil, fmt.Errorf("seed dir: %w", err)
	}
	b, err := loader.Load(os.DirFS(dir))
	if err != nil {
		return nil, nil, err
	}
	v, err := schema.NewValidator()
	if err != nil {
		return nil, nil, err
	}
	reg := registry.NewService(registry.NewMemoryStore(), v)
	r, err := loader.Apply(ctx, reg, b, nil)
	if err != nil {
		return nil, nil, err
	}
	return reg, r, nil
}

func runValidate(ctx context.Context, w io.Writer, dir string) error {
	_, r, err := offlineRegistry(ctx, dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d questions, %d frameworks OK\n", r.QuestionsCreated, r.FrameworksCreated)
	for _, v := range r.VersionsPublished {
		fmt.Fprintf(w, "  %s\n", v)
	}
	return nil
}
