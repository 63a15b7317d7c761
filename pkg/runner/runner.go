// Package runner drives a workflow: establish a session, scan for work,
// process each item, checkpoint results, and always persist the output.
package runner

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/entrhq/portalrunner/pkg/browser"
	"github.com/entrhq/portalrunner/pkg/checkpoint"
	"github.com/entrhq/portalrunner/pkg/item"
	"github.com/entrhq/portalrunner/pkg/logging"
	"github.com/entrhq/portalrunner/pkg/metrics"
	"github.com/entrhq/portalrunner/pkg/modal"
	"github.com/entrhq/portalrunner/pkg/progress"
	"github.com/entrhq/portalrunner/pkg/scan"
)

// Lander establishes a ready session.
type Lander interface {
	LoginAndLand(ctx context.Context) (browser.Handle, error)
}

// Job is the workflow-specific part of a run.
type Job struct {
	Workflow string

	// Source builds the item source once the landing view is ready.
	Source func(page browser.Page) scan.Source

	Operation item.Operation

	// Label names an item on the console. Defaults to its key.
	Label func(it scan.WorkItem) string

	// Detail summarises an outcome on the console. Defaults to its reason.
	Detail func(out item.Outcome) string
}

// Config wires a Runner.
type Config struct {
	Job      Job
	Lander   Lander
	Launcher browser.Launcher
	Resolver *modal.Resolver
	Store    *checkpoint.Store

	// Output is the workbook path, used for the summary artifact.
	Output string

	// Pace is the minimum spacing between items. Zero disables pacing.
	Pace time.Duration

	// WriteSummary writes <output>.summary.json at the end of the run.
	WriteSummary bool

	Reporter *progress.Reporter
	Metrics  *metrics.Recorder
	Logger   *logging.Logger
}

// Runner executes one run. It owns the processed-key set and the result
// table for the run's lifetime.
type Runner struct {
	cfg       Config
	processor *item.Processor
	limiter   *rate.Limiter
	logger    *logging.Logger
	reporter  *progress.Reporter
}

// New creates a runner.
func New(cfg Config) *Runner {
	limit := rate.Inf
	if cfg.Pace > 0 {
		limit = rate.Every(cfg.Pace)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	reporter := cfg.Reporter
	if reporter == nil {
		reporter = progress.NewReporter(progress.LevelNormal)
	}

	return &Runner{
		cfg:       cfg,
		processor: item.NewProcessor(cfg.Job.Operation, cfg.Resolver),
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
		reporter:  reporter,
	}
}

// Run processes every item the source yields until a scan comes back
// empty. Item failures become data; only a *lander.SessionError is
// returned. The output is written on every path, including a panic, which
// is re-raised once the workbook is saved.
func (r *Runner) Run(ctx context.Context) (summary *progress.Summary, runErr error) {
	summary = &progress.Summary{
		RunID:     logging.RunID(),
		Workflow:  r.cfg.Job.Workflow,
		StartTime: time.Now(),
		Output:    r.cfg.Output,
		LogPath:   r.logger.LogPath(),
	}

	defer func() {
		v := recover()
		if v != nil {
			r.logger.Errorf("run panicked: %v", v)
			summary.Error = fmt.Sprintf("panic: %v", v)
		}
		if err := r.checkpoint(); err != nil {
			r.reporter.Errorf("could not write %s: %v", r.cfg.Output, err)
			if runErr == nil && summary.Error == "" {
				summary.Error = err.Error()
			}
		}
		r.finish(ctx, summary, runErr)
		if v != nil {
			panic(v)
		}
	}()

	runErr = r.run(ctx, summary)
	return summary, runErr
}

func (r *Runner) run(ctx context.Context, summary *progress.Summary) error {
	r.reporter.Section("Login")
	h, err := r.cfg.Lander.LoginAndLand(ctx)
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.Login(err == nil)
	}
	if err != nil {
		r.logger.Errorf("session: %v", err)
		return err
	}
	defer r.cfg.Launcher.Release(h)
	r.reporter.Successf("Landed (session %s)", h.ID())

	page := h.Page()
	source := r.cfg.Job.Source(page)
	processed := scan.NewProcessedSet()

	r.reporter.Section("Processing")
	for pass := 1; ; pass++ {
		if ctx.Err() != nil {
			return nil
		}

		items, err := source.Scan(ctx, processed)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Errorf("scan %d: %v", pass, err)
			r.reporter.Errorf("scan failed: %v", err)
			summary.Error = err.Error()
			return nil
		}
		if len(items) == 0 {
			r.logger.Infof("scan %d: nothing left, %d items processed", pass, processed.Len())
			return nil
		}
		r.logger.Infof("scan %d: %d unseen items", pass, len(items))

		for _, it := range items {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil
			}
			r.process(ctx, page, it, processed, summary)
		}
	}
}

func (r *Runner) process(ctx context.Context, page browser.Page, it scan.WorkItem, processed *scan.ProcessedSet, summary *progress.Summary) {
	start := time.Now()
	out := r.processor.Process(ctx, page, it)
	processed.Add(it.Key)

	r.cfg.Store.Apply(out.Row, out.Values)

	status := consoleStatus(out.Status)
	summary.Count(status, out.Tags...)
	r.reporter.Item(summary.Processed, r.label(it), status, r.detail(out))

	switch out.Status {
	case scan.Failed:
		r.logger.Warnf("item %s failed: %v", it.Key, out.Err)
	case scan.Skipped:
		r.logger.Infof("item %s skipped: %s", it.Key, out.Reason)
	default:
		r.logger.Debugf("item %s done %v", it.Key, out.Values)
	}
	if out.CloseErr != nil {
		r.logger.Warnf("item %s: could not return to list view: %v", it.Key, out.CloseErr)
	}

	if m := r.cfg.Metrics; m != nil {
		m.Item(metricOutcome(out.Status), time.Since(start))
		for _, d := range out.Dialogs {
			m.Dialog(d.Kind.String())
		}
	}

	saves := r.cfg.Store.Saves()
	if err := r.cfg.Store.Done(); err != nil {
		r.logger.Warnf("%v", err)
		r.reporter.Warningf("%v", err)
		r.observeCheckpoint(false)
	} else if r.cfg.Store.Saves() > saves {
		r.logger.Infof("checkpoint saved @ %d", r.cfg.Store.Processed())
		r.reporter.Verbosef("checkpoint saved @ %d", r.cfg.Store.Processed())
		r.observeCheckpoint(true)
	}
}

func (r *Runner) checkpoint() error {
	err := r.cfg.Store.Checkpoint()
	r.observeCheckpoint(err == nil)
	return err
}

func (r *Runner) observeCheckpoint(ok bool) {
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.Checkpoint(ok)
	}
}

func (r *Runner) finish(ctx context.Context, summary *progress.Summary, runErr error) {
	summary.EndTime = time.Now()
	summary.Duration = summary.EndTime.Sub(summary.StartTime)
	summary.Checkpoints = r.cfg.Store.Saves()

	switch {
	case runErr != nil:
		summary.Status = progress.StatusFailed
		summary.Error = runErr.Error()
	case ctx.Err() != nil:
		summary.Status = progress.StatusInterrupted
	case summary.Error != "":
		summary.Status = progress.StatusFailed
	default:
		summary.Status = progress.StatusCompleted
	}

	if r.cfg.WriteSummary && r.cfg.Output != "" {
		if err := progress.WriteJSON(progress.SummaryPath(r.cfg.Output), summary); err != nil {
			r.logger.Warnf("summary artifact: %v", err)
		}
	}
	r.logger.Infof("run %s: %d succeeded, %d failed, %d skipped", summary.Status, summary.Succeeded, summary.Failed, summary.Skipped)
	r.reporter.Summary(summary)
}

func (r *Runner) label(it scan.WorkItem) string {
	if r.cfg.Job.Label != nil {
		if l := r.cfg.Job.Label(it); l != "" {
			return l
		}
	}
	return it.Key.String()
}

func consoleStatus(s scan.Status) progress.Status {
	switch s {
	case scan.Done:
		return progress.Succeeded
	case scan.Skipped:
		return progress.Skipped
	default:
		return progress.Failed
	}
}

func metricOutcome(s scan.Status) string {
	switch s {
	case scan.Done:
		return "succeeded"
	case scan.Skipped:
		return "skipped"
	default:
		return "failed"
	}
}

func (r *Runner) detail(out item.Outcome) string {
	if r.cfg.Job.Detail != nil {
		if d := r.cfg.Job.Detail(out); d != "" {
			return d
		}
	}
	return out.Reason
}
