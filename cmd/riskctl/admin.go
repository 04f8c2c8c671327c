package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/riskframe/riskframe/internal/app"
	"github.com/riskframe/riskframe/internal/loader"
	"github.com/riskframe/riskframe/internal/registry"
)

// withApp opens the configured backends for the duration of fn.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newSeedCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Apply a seed directory to the registry",
		Long: `Creates missing questions and frameworks and publishes a framework version
when its configuration or bindings changed. Running it twice is a no-op.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				r, err := a.Seed(cmd.Context(), dir)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "questions: %d created, %d existing\n", r.QuestionsCreated, r.QuestionsSkipped)
				fmt.Fprintf(out, "frameworks: %d created\n", r.FrameworksCreated)
				for _, v := range r.VersionsPublished {
					fmt.Fprintf(out, "published %s\n", v)
				}
				for _, code := range r.VersionsUnchanged {
					fmt.Fprintf(out, "unchanged %s\n", code)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "seed", "Seed directory containing questions/ and frameworks/")
	return cmd
}

func newPublishCmd() *cobra.Command {
	var (
		file     string
		activate bool
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish one framework document as a new version",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loader.LoadFramework(os.DirFS(filepath.Dir(file)), filepath.Base(file))
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				v, err := a.Registry.PublishVersion(cmd.Context(), registry.PublishRequest{
					FrameworkCode: doc.Code,
					Config:        doc.Config,
					Bindings:      doc.Bindings,
					Activate:      activate || doc.Activate,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "published %s@%d (%s) active=%v\n", v.FrameworkCode, v.Number, v.ID, v.IsDefault)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Framework document (required)")
	cmd.Flags().BoolVar(&activate, "activate", false, "Make the new version active")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <framework> <number>",
		Short: "Make a published version the framework's active version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.Atoi(args[1])
			if err != nil || number < 1 {
				return fmt.Errorf("version number must be a positive integer, got %q", args[1])
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				v, err := a.Registry.ActivateVersion(cmd.Context(), args[0], number)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s@%d is now active (%s)\n", v.FrameworkCode, v.Number, v.ID)
				return nil
			})
		},
	}
}
