// Package orchestrator drives the squid lifecycle end to end: create,
// configure, upload tasks, run, wait for the export, download.
//
// The flow is a strict linear state machine with a single branch (tasks
// file present or absent) and no loop-backs. Every step failure aborts
// the whole pass; converting errors into process exit codes is the
// command layer's job.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/lobstr-tools/squidctl/internal/lobstr"
	"github.com/lobstr-tools/squidctl/internal/poll"
)

// ErrNoTasks reports the deliberate early exit taken when no tasks file
// is supplied: the squid is deleted and no run is started.
var ErrNoTasks = errors.New("no tasks file provided")

// API is the slice of the lobstr client the orchestrator needs.
type API interface {
	CreateSquid(ctx context.Context, crawler string) (lobstr.Squid, error)
	UpdateSquid(ctx context.Context, squidID string, settings lobstr.SquidSettings) error
	DeleteSquid(ctx context.Context, squidID string) error
	UploadTasks(ctx context.Context, squidID, path string) (lobstr.TaskUpload, error)
	UploadStatus(ctx context.Context, taskID string) (lobstr.UploadStatus, error)
	StartRun(ctx context.Context, squidID string) (lobstr.Run, error)
	RunStats(ctx context.Context, runID string) (lobstr.RunStats, error)
	RunDetails(ctx context.Context, runID string) (lobstr.RunDetails, error)
	DownloadURL(ctx context.Context, runID string) (string, error)
	FetchResults(ctx context.Context, url string) (io.ReadCloser, error)
}

// Sink persists the downloaded dataset and reports where it landed.
type Sink interface {
	Save(ctx context.Context, r io.Reader) (string, error)
}

// Params are the caller-supplied knobs for one lifecycle pass,
// validated before the orchestrator is built.
type Params struct {
	Crawler        string
	Concurrency    int
	MaxPages       int
	AnnonceDetails bool
	TasksFile      string
}

// Timing controls the polling cadence. Zero fields fall back to the
// service defaults.
type Timing struct {
	UploadInterval   time.Duration
	UploadBudget     time.Duration
	ProgressInterval time.Duration
	ExportInterval   time.Duration
	ExportBudget     time.Duration
}

// DefaultTiming matches the cadence the service is known to tolerate:
// upload ingestion settles within a minute, exports within two.
func DefaultTiming() Timing {
	return Timing{
		UploadInterval:   5 * time.Second,
		UploadBudget:     60 * time.Second,
		ProgressInterval: 2 * time.Second,
		ExportInterval:   5 * time.Second,
		ExportBudget:     120 * time.Second,
	}
}

func (t Timing) withDefaults() Timing {
	def := DefaultTiming()
	if t.UploadInterval <= 0 {
		t.UploadInterval = def.UploadInterval
	}
	if t.UploadBudget <= 0 {
		t.UploadBudget = def.UploadBudget
	}
	if t.ProgressInterval <= 0 {
		t.ProgressInterval = def.ProgressInterval
	}
	if t.ExportInterval <= 0 {
		t.ExportInterval = def.ExportInterval
	}
	if t.ExportBudget <= 0 {
		t.ExportBudget = def.ExportBudget
	}
	return t
}

// Orchestrator threads the squid and run identifiers through the fixed
// step sequence. It is single-use: one Orchestrator, one pass.
type Orchestrator struct {
	api    API
	sink   Sink
	params Params
	timing Timing
	out    io.Writer
	logger *zap.Logger

	squidID string
	runID   string
}

// New builds an Orchestrator writing human-readable progress to out.
func New(api API, sink Sink, params Params, timing Timing, out io.Writer, logger *zap.Logger) *Orchestrator {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		api:    api,
		sink:   sink,
		params: params,
		timing: timing.withDefaults(),
		out:    out,
		logger: logger,
	}
}

// Run executes the full lifecycle. It returns ErrNoTasks on the
// deliberate early-exit branch and a descriptive error on any failure.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.createSquid(ctx); err != nil {
		return err
	}
	if err := o.updateSquid(ctx); err != nil {
		return err
	}

	if o.params.TasksFile == "" {
		if err := o.deleteSquid(ctx); err != nil {
			return err
		}
		return ErrNoTasks
	}

	upload, err := o.uploadTasks(ctx)
	if err != nil {
		return err
	}
	if err := o.pollUploadStatus(ctx, upload.TaskID); err != nil {
		return err
	}
	if err := o.startRun(ctx); err != nil {
		return err
	}
	if err := o.pollRunProgress(ctx); err != nil {
		return err
	}
	if err := o.pollExportStatus(ctx); err != nil {
		return err
	}
	url, err := o.fetchResultLocation(ctx)
	if err != nil {
		return err
	}
	return o.downloadResults(ctx, url)
}

func (o *Orchestrator) createSquid(ctx context.Context) error {
	fmt.Fprintln(o.out, "Creating squid...")
	squid, err := o.api.CreateSquid(ctx, o.params.Crawler)
	if err != nil {
		return err
	}
	o.squidID = squid.ID
	o.logger.Info("squid created", zap.String("squid_id", o.squidID))
	fmt.Fprintf(o.out, "Squid created with ID: %s\n", o.squidID)
	return nil
}

func (o *Orchestrator) updateSquid(ctx context.Context) error {
	settings := lobstr.SquidSettings{
		Concurrency:         o.params.Concurrency,
		ExportUniqueResults: true,
		NoLineBreaks:        true,
		ToComplete:          false,
		Params: lobstr.SquidParams{
			MaxPages: o.params.MaxPages,
			FillResultsDetails: lobstr.ResultsDetails{
				AnnonceDetails: o.params.AnnonceDetails,
			},
		},
		Accounts:  nil,
		RunNotify: lobstr.RunNotifyOnSuccess,
	}
	fmt.Fprintln(o.out, "Updating squid...")
	if err := o.api.UpdateSquid(ctx, o.squidID, settings); err != nil {
		return err
	}
	fmt.Fprintln(o.out, "Squid updated.")
	return nil
}

func (o *Orchestrator) deleteSquid(ctx context.Context) error {
	fmt.Fprintln(o.out, "No tasks file provided. Deleting squid...")
	if err := o.api.DeleteSquid(ctx, o.squidID); err != nil {
		return err
	}
	o.logger.Info("squid deleted", zap.String("squid_id", o.squidID))
	fmt.Fprintln(o.out, "Squid deleted.")
	return nil
}

func (o *Orchestrator) uploadTasks(ctx context.Context) (lobstr.TaskUpload, error) {
	upload, err := o.api.UploadTasks(ctx, o.squidID, o.params.TasksFile)
	if err != nil {
		return lobstr.TaskUpload{}, err
	}
	fmt.Fprintf(o.out, "Tasks file uploaded. Upload Task ID: %s\n", upload.TaskID)
	return upload, nil
}

// pollUploadStatus waits for the asynchronous ingestion to report
// SUCCESS. Any other state, including a remote failure state, is simply
// re-polled until the budget runs out; the service does not document a
// stable failure vocabulary to match on.
func (o *Orchestrator) pollUploadStatus(ctx context.Context, taskID string) error {
	fmt.Fprintln(o.out, "Polling for tasks file upload status:")
	attempts := poll.Attempts(o.timing.UploadBudget, o.timing.UploadInterval)
	err := poll.Bounded(ctx, o.timing.UploadInterval, attempts, func(ctx context.Context) error {
		status, err := o.api.UploadStatus(ctx, taskID)
		if err != nil {
			return err
		}
		fmt.Fprintf(o.out, "Upload state: %s\n", status.State)
		if status.Done() {
			return nil
		}
		return poll.ErrNotReady
	})
	if errors.Is(err, poll.ErrTimeout) {
		return fmt.Errorf("tasks file upload did not complete within %s: %w", o.timing.UploadBudget, err)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(o.out, "Tasks file upload completed successfully.")
	return nil
}

func (o *Orchestrator) startRun(ctx context.Context) error {
	fmt.Fprintln(o.out, "Starting run...")
	run, err := o.api.StartRun(ctx, o.squidID)
	if err != nil {
		return err
	}
	o.runID = run.ID
	o.logger.Info("run started", zap.String("run_id", o.runID))
	fmt.Fprintf(o.out, "Run started with ID: %s\n", o.runID)
	return nil
}

// pollRunProgress blocks until the remote reports the run done. There
// is no ceiling: run duration depends entirely on the task list, so the
// only way out of a stalled run is context cancellation.
func (o *Orchestrator) pollRunProgress(ctx context.Context) error {
	fmt.Fprintln(o.out, "Polling for run progress:")
	err := poll.Unbounded(ctx, o.timing.ProgressInterval, func(ctx context.Context) error {
		stats, err := o.api.RunStats(ctx, o.runID)
		if err != nil {
			return err
		}
		fmt.Fprintf(o.out, "\rProgress: %s (%d/%d results)",
			stats.PercentDone, stats.ResultsDone, stats.ResultsTotal)
		if stats.IsDone {
			return nil
		}
		return poll.ErrNotReady
	})
	if err != nil {
		fmt.Fprintln(o.out)
		return err
	}
	fmt.Fprintln(o.out, "\nRun is complete.")
	return nil
}

func (o *Orchestrator) pollExportStatus(ctx context.Context) error {
	fmt.Fprintln(o.out, "Polling for export completion:")
	var details lobstr.RunDetails
	attempts := poll.Attempts(o.timing.ExportBudget, o.timing.ExportInterval)
	err := poll.Bounded(ctx, o.timing.ExportInterval, attempts, func(ctx context.Context) error {
		d, err := o.api.RunDetails(ctx, o.runID)
		if err != nil {
			return err
		}
		if d.ExportDone {
			details = d
			return nil
		}
		fmt.Fprintln(o.out, "Export not done yet. Waiting...")
		return poll.ErrNotReady
	})
	if errors.Is(err, poll.ErrTimeout) {
		return fmt.Errorf("export did not complete within %s: %w", o.timing.ExportBudget, err)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(o.out, "Export is complete.")
	fmt.Fprintln(o.out)
	fmt.Fprintln(o.out, "Run Details:")
	fmt.Fprintf(o.out, "Status: %s\n", details.Status)
	fmt.Fprintf(o.out, "Done Reason: %s\n", details.DoneReason)
	fmt.Fprintf(o.out, "Duration: %s\n", details.Duration)
	fmt.Fprintf(o.out, "Credit Used: %v\n", details.CreditUsed)
	fmt.Fprintf(o.out, "Total Results: %d\n", details.TotalResults)
	fmt.Fprintf(o.out, "Unique Results: %d\n", details.TotalUniqueResults)
	return nil
}

func (o *Orchestrator) fetchResultLocation(ctx context.Context) (string, error) {
	fmt.Fprintln(o.out, "Requesting download URL for run results...")
	url, err := o.api.DownloadURL(ctx, o.runID)
	if err != nil {
		return "", err
	}
	o.logger.Debug("download url resolved", zap.String("run_id", o.runID))
	return url, nil
}

func (o *Orchestrator) downloadResults(ctx context.Context, url string) error {
	fmt.Fprintln(o.out, "Downloading results file...")
	body, err := o.api.FetchResults(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()

	path, err := o.sink.Save(ctx, body)
	if err != nil {
		return fmt.Errorf("save results: %w", err)
	}
	fmt.Fprintf(o.out, "Results downloaded and saved as %q.\n", path)
	return nil
}
