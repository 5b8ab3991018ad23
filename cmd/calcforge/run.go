package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kingrea/calcforge/internal/artifact"
	"github.com/kingrea/calcforge/internal/catalog"
	"github.com/kingrea/calcforge/internal/config"
	"github.com/kingrea/calcforge/internal/generation"
	"github.com/kingrea/calcforge/internal/logging"
	"github.com/kingrea/calcforge/internal/orchestrator"
	"github.com/kingrea/calcforge/internal/progress"
	"github.com/kingrea/calcforge/internal/tui"
)

var (
	runMaxRetries int
	runTUI        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process every pending checklist item",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewConfig(projectDir)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("max-retries") {
			if runMaxRetries < 1 {
				return &usageError{err: fmt.Errorf("--max-retries must be >= 1")}
			}
			cfg.Project.Generation.MaxRetries = runMaxRetries
		}
		apiKey, err := cfg.APIKey()
		if err != nil {
			return err
		}
		log, err := logging.New(cfg.Project.Paths.LogFile)
		if err != nil {
			return err
		}
		defer log.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var summary orchestrator.Summary
		if runTUI {
			summary, err = runWithProgressView(ctx, cfg, apiKey, log)
		} else {
			var o *orchestrator.Orchestrator
			o, err = buildPipeline(cfg, apiKey, log, nil)
			if err == nil {
				summary, err = o.Run(ctx)
			}
		}
		// A failed flush wraps ErrInterrupted and stays fatal.
		if err == orchestrator.ErrInterrupted {
			printSummary(cmd.OutOrStdout(), summary, "interrupted")
			return nil
		}
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), summary, "finished")
		return nil
	},
}

func init() {
	runCmd.Flags().IntVar(&runMaxRetries, "max-retries", generation.DefaultMaxRetries, "Generation attempts per item before falling back")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Render an interactive progress view")
}

// buildPipeline wires every collaborator from the project configuration.
func buildPipeline(cfg *config.Config, apiKey string, log *logging.Logger, observer orchestrator.Observer) (*orchestrator.Orchestrator, error) {
	p := cfg.Project
	guard, err := newGuard(cfg)
	if err != nil {
		return nil, err
	}
	client, err := generation.NewHTTPClient(p.Generation, apiKey)
	if err != nil {
		return nil, err
	}
	loop := generation.NewLoop(client, p.Generation.MaxRetries, p.Generation.RetryBackoff, generation.WithLogger(log))

	writerOpts := []artifact.Option{artifact.WithImportPrefix(p.Catalog.ImportPrefix), artifact.WithLogger(log)}
	if p.Paths.Templates != "" {
		writerOpts = append(writerOpts, artifact.WithTemplates(os.DirFS(p.Paths.Templates)))
	}
	writer, err := artifact.NewWriter(p.Paths.Artifacts, guard, writerOpts...)
	if err != nil {
		return nil, err
	}
	registrar, err := catalog.NewRegistrar(p.Paths.CatalogIndex, p.Catalog.ImportPrefix, p.Catalog.RegisterFunc, guard)
	if err != nil {
		return nil, err
	}
	return orchestrator.New(orchestrator.Deps{
		Checklist: p.Paths.Checklist,
		Progress:  progress.NewFileStore(p.Paths.Progress),
		Generator: loop,
		Writer:    writer,
		Guard:     guard,
		Registrar: registrar,
		Verifier:  newVerifier(cfg),
	},
		orchestrator.WithLogger(log),
		orchestrator.WithPause(p.Generation.ItemPause),
		orchestrator.WithObserver(observer),
	)
}

// runWithProgressView runs the pipeline and the bubbletea view side by side.
// The view owns the terminal, so the console log mirror is detached.
func runWithProgressView(ctx context.Context, cfg *config.Config, apiKey string, log *logging.Logger) (orchestrator.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan orchestrator.Event, 64)
	o, err := buildPipeline(cfg, apiKey, log, func(ev orchestrator.Event) { events <- ev })
	if err != nil {
		return orchestrator.Summary{}, err
	}
	log.SetConsole(nil)
	defer log.SetConsole(os.Stderr)

	var summary orchestrator.Summary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(events)
		var runErr error
		summary, runErr = o.Run(gctx)
		return runErr
	})
	g.Go(func() error {
		program := tea.NewProgram(tui.NewProgress(events, cancel, log), tea.WithContext(gctx))
		_, err := program.Run()
		for range events {
		}
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})
	err = g.Wait()
	return summary, err
}

func printSummary(w io.Writer, s orchestrator.Summary, how string) {
	fmt.Fprintf(w, "run %s %s: %d/%d completed, %d skipped, %d failed, %d fallback(s), %d withheld\n",
		s.RunID, how, s.Completed, s.Total, s.Skipped, s.Failed, s.Fallbacks, s.Withheld)
}
