package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/entrhq/portalrunner/pkg/browser"
	"github.com/entrhq/portalrunner/pkg/checkpoint"
	"github.com/entrhq/portalrunner/pkg/config"
	"github.com/entrhq/portalrunner/pkg/lander"
	"github.com/entrhq/portalrunner/pkg/logging"
	"github.com/entrhq/portalrunner/pkg/metrics"
	"github.com/entrhq/portalrunner/pkg/modal"
	"github.com/entrhq/portalrunner/pkg/progress"
	"github.com/entrhq/portalrunner/pkg/runner"
	"github.com/entrhq/portalrunner/pkg/workflow"
)

// execute runs one workflow end to end. Everything that can be checked
// without a browser is checked before the driver starts.
func execute(parent context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Logging.Dir != "" {
		logging.SetDirectory(cfg.Logging.Dir)
	}
	if lvl, err := logging.ParseLevel(cfg.Logging.Verbosity); err == nil {
		logging.SetLevel(lvl)
	}
	logger, err := logging.NewLogger(cfg.Workflow)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	defer logger.Close()

	reporter := progress.NewReporterTo(out, progress.ParseLevel(cfg.Logging.Verbosity))
	reporter.Header(fmt.Sprintf("portalrunner v%s · %s", version, cfg.Workflow))

	resolver, err := modal.NewResolver(cfg.Portal.Dialog)
	if err != nil {
		return &config.ConfigError{Field: "portal.dialog", Err: err}
	}
	store, job, err := prepare(cfg, resolver, logger)
	if err != nil {
		return err
	}
	logger.Infof("run %s: workflow %s, %d input rows, output %s", logging.RunID(), cfg.Workflow, store.Table().Len(), cfg.Run.Output)

	manager := browser.NewManager(cfg.SessionOptions())
	if err := manager.Initialize(); err != nil {
		return fmt.Errorf("failed to start browser driver: %w", err)
	}
	defer func() {
		if err := manager.Shutdown(); err != nil {
			logger.Warnf("%v", err)
		}
	}()

	rec := metrics.New(cfg.Workflow)
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := rec.Serve(ctx, cfg.Metrics.Addr); err != nil {
				logger.Warnf("metrics listener: %v", err)
			}
		}()
		reporter.Verbosef("metrics on %s/metrics", cfg.Metrics.Addr)
	}

	creds := lander.Credentials{Username: cfg.Credentials.Username, Password: cfg.Credentials.Password}
	ld := lander.New(manager, cfg.LoginConfig(), creds, &lander.LinePrompter{In: in, Out: out}, logger.With("lander"))

	r := runner.New(runner.Config{
		Job:          job,
		Lander:       ld,
		Launcher:     manager,
		Resolver:     resolver,
		Store:        store,
		Output:       cfg.Run.Output,
		Pace:         cfg.Run.Pace,
		WriteSummary: cfg.Run.WriteSummary,
		Reporter:     reporter,
		Metrics:      rec,
		Logger:       logger,
	})
	_, err = r.Run(ctx)
	return err
}

// prepare loads the input, builds the workflow job and the store that
// will persist it.
func prepare(cfg *config.Config, resolver *modal.Resolver, logger *logging.Logger) (*checkpoint.Store, runner.Job, error) {
	w, err := cfg.Build()
	if err != nil {
		return nil, runner.Job{}, &config.ConfigError{Field: "workflow", Err: err}
	}

	input, sheet, err := openInput(cfg)
	if err != nil {
		return nil, runner.Job{}, err
	}
	if err := workflow.CheckColumns(input, w.Required()); err != nil {
		return nil, runner.Job{}, &config.ConfigError{Field: "run.input", Err: err}
	}

	store := checkpoint.NewStore(sheet, input, &checkpoint.XLSXSink{Path: cfg.Run.Output}, cfg.Run.CheckpointInterval)
	job, err := w.Job(workflow.Env{
		Input:           input,
		Store:           store,
		Resolver:        resolver,
		Logger:          logger.With(cfg.Workflow),
		Resume:          cfg.Run.Resume,
		DisabledControl: cfg.Run.DisabledControl,
	})
	if err != nil {
		return nil, runner.Job{}, &config.ConfigError{Field: "workflows." + cfg.Workflow, Err: err}
	}
	return store, job, nil
}

// openInput returns the table the run updates. A resumed run continues
// from its own output when that exists.
func openInput(cfg *config.Config) (*checkpoint.Table, string, error) {
	if cfg.Workflow == workflow.Export {
		return checkpoint.NewTable(workflow.SummaryColumns()...), cfg.Workflows.Export.SummarySheet, nil
	}

	path := cfg.Run.Input
	if cfg.Run.Resume {
		if _, err := os.Stat(cfg.Run.Output); err == nil {
			path = cfg.Run.Output
		}
	}

	tbl, sheet, err := checkpoint.LoadXLSX(path)
	if err != nil {
		field := "run.input"
		if path == cfg.Run.Output {
			field = "run.output"
		}
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("%s does not exist", path)
		}
		return nil, "", &config.ConfigError{Field: field, Err: err}
	}
	return tbl, sheet, nil
}
