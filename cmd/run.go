package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/eletricells/vantdge/internal/engine"
	"github.com/eletricells/vantdge/internal/model"
	"github.com/eletricells/vantdge/internal/store"
)

var (
	runConcurrency int
	runNoStore     bool
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Process every target through the full pipeline",
	Long:  "Runs consensus, entity merging, context verification and validation for each target in the file, in parallel, and records each result in the run audit log.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if runConcurrency > 0 {
			cfg.Engine.Concurrency = runConcurrency
		}
		mode := "run"
		if runNoStore {
			mode = "engine"
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}

		comps, err := initComponents()
		if err != nil {
			return err
		}
		targets, issues, err := loadTargets(args[0])
		if err != nil {
			return err
		}

		var opts []engine.Option
		if !runNoStore {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			opts = append(opts, engine.WithSink(store.Sink(st, cfg.Store.Retry)))
		}

		return runTargets(ctx, os.Stdout, engine.NewRunner(comps, cfg.Engine, opts...), targets, issues)
	},
}

func init() {
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "targets processed in parallel (overrides engine.concurrency)")
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "skip the run audit log")
	rootCmd.AddCommand(runCmd)
}

// runTargets writes whatever the runner produced, then reports its error.
func runTargets(ctx context.Context, w io.Writer, runner *engine.Runner, targets []engine.Target, issues []model.ValidationIssue) error {
	results, runErr := runner.Run(ctx, targets)
	if err := writeJSON(w, report{IngestIssues: issues, Results: results}); err != nil {
		return eris.Wrap(err, "write results")
	}
	return runErr
}

// initStore opens and migrates the configured audit log.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
