package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingrea/calcforge/internal/artifact"
	"github.com/kingrea/calcforge/internal/backlog"
	"github.com/kingrea/calcforge/internal/catalog"
	"github.com/kingrea/calcforge/internal/config"
	"github.com/kingrea/calcforge/internal/safety"
	"github.com/kingrea/calcforge/internal/verify"
	"github.com/kingrea/calcforge/internal/workitem"
)

const emptyChecklist = "# Calculators\n\nAdd one pending calculator per line, for example:\n\n<!-- - [ ] Mortgage Payment Calculator -->\n"

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .calcforge/config.yaml, the checklist and the catalog skeleton",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.InitProjectDir(projectDir); err != nil {
			return fmt.Errorf("init: %w", err)
		}
		cfg, err := config.NewConfig(projectDir)
		if err != nil {
			return err
		}
		paths := cfg.Project.Paths
		if _, err := os.Stat(paths.Checklist); errors.Is(err, fs.ErrNotExist) {
			if err := os.WriteFile(paths.Checklist, []byte(emptyChecklist), 0o644); err != nil {
				return fmt.Errorf("init: write checklist: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", paths.Checklist)
		}
		guard, err := newGuard(cfg)
		if err != nil {
			return err
		}
		registrar, err := catalog.NewRegistrar(paths.CatalogIndex, cfg.Project.Catalog.ImportPrefix, cfg.Project.Catalog.RegisterFunc, guard)
		if err != nil {
			return err
		}
		created, err := registrar.Ensure()
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", paths.CatalogIndex)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "config: %s\n", cfg.ProjectConfigPath())
		return nil
	},
}

var backlogCmd = &cobra.Command{
	Use:   "backlog",
	Short: "Print the classified, sorted backlog without processing it",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewConfig(projectDir)
		if err != nil {
			return err
		}
		bl, err := backlog.Load(cfg.Project.Paths.Checklist)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(bl.Items) == 0 {
			fmt.Fprintln(out, "No pending items.")
		}
		for i, item := range bl.Items {
			fmt.Fprintf(out, "%3d. %-40s %-12s %s\n", i+1, item.Name, item.Category, item.Slug())
		}
		if len(bl.Skipped) > 0 {
			fmt.Fprintf(out, "\nWithheld for manual review:\n")
			for _, skipped := range bl.Skipped {
				fmt.Fprintf(out, "  line %d: %s (%s)\n", skipped.Line, skipped.Name, skipped.Reason)
			}
		}
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify NAME",
	Short: "Re-run the on-disk checks for an already generated calculator",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewConfig(projectDir)
		if err != nil {
			return err
		}
		item := workitem.New(args[0], backlog.Classify(args[0]))
		dir := filepath.Join(cfg.Project.Paths.Artifacts, item.Slug())
		if m, err := artifact.ReadManifest(dir); err == nil {
			if category, err := workitem.ParseCategory(m.Category); err == nil {
				item = workitem.New(item.Name, category)
			}
		}
		if err := newVerifier(cfg).Verify(dir, item); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): ok\n", item.Name, item.Category)
		return nil
	},
}

func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

func newGuard(cfg *config.Config) (*safety.Guard, error) {
	return safety.NewGuard(
		safety.DirRoot(cfg.Project.Paths.Artifacts),
		safety.FileRoot(cfg.Project.Paths.CatalogIndex),
	)
}

func newVerifier(cfg *config.Config) *verify.Verifier {
	if !cfg.Project.Verify.Interpret {
		return verify.New()
	}
	timeout := cfg.Project.Verify.InterpretTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return verify.New(verify.WithInterpreter(timeout))
}
