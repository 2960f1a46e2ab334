// Package worker processes queued screening jobs in the background.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/merchantsafe/kyc-screener/internal/models"
	"github.com/merchantsafe/kyc-screener/internal/repository"
	"github.com/merchantsafe/kyc-screener/internal/service"
)

// Worker polls for pending screening jobs and runs them to completion.
type Worker struct {
	jobs          repository.JobRepository
	screener      service.Screener
	webhooks      *service.WebhookService
	pollInterval  time.Duration
	concurrency   int
	staleTimeout  time.Duration
	shutdownGrace time.Duration
	stop          chan struct{}
	wg            sync.WaitGroup
	activeJobs    int64
	logger        *slog.Logger
}

// Config holds worker configuration.
type Config struct {
	PollInterval  time.Duration
	Concurrency   int
	StaleTimeout  time.Duration
	ShutdownGrace time.Duration
}

// New creates a new worker.
func New(
	jobs repository.JobRepository,
	screener service.Screener,
	webhooks *service.WebhookService,
	cfg Config,
	logger *slog.Logger,
) *Worker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 3
	}
	if cfg.StaleTimeout == 0 {
		cfg.StaleTimeout = 10 * time.Minute
	}
	if cfg.ShutdownGrace == 0 {
		cfg.ShutdownGrace = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		jobs:          jobs,
		screener:      screener,
		webhooks:      webhooks,
		pollInterval:  cfg.PollInterval,
		concurrency:   cfg.Concurrency,
		staleTimeout:  cfg.StaleTimeout,
		shutdownGrace: cfg.ShutdownGrace,
		stop:          make(chan struct{}),
		logger:        logger.With("component", "worker"),
	}
}

// Start reclaims stale jobs from a previous run, then begins polling.
func (w *Worker) Start(ctx context.Context) {
	if n, err := w.jobs.MarkStaleRunningJobsFailed(ctx, w.staleTimeout); err != nil {
		w.logger.Error("failed to mark stale jobs", "error", err)
	} else if n > 0 {
		w.logger.Warn("marked stale running jobs as failed", "count", n)
	}

	w.logger.Info("starting", "concurrency", w.concurrency, "poll_interval", w.pollInterval)
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.runWorker(ctx, i)
	}
}

// Stop signals the workers and waits for running jobs, bounded by the
// shutdown grace period.
func (w *Worker) Stop() {
	w.logger.Info("stopping")
	close(w.stop)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("stopped")
	case <-time.After(w.shutdownGrace):
		w.logger.Warn("shutdown grace period expired with jobs still running")
	}
}

func (w *Worker) runWorker(ctx context.Context, workerID int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processNextJob(ctx, workerID)
		}
	}
}

// Busy reports whether any job is currently being processed. Used by the
// idle monitor to hold off scale-to-zero shutdown.
func (w *Worker) Busy() bool {
	return atomic.LoadInt64(&w.activeJobs) > 0
}

func (w *Worker) processNextJob(ctx context.Context, workerID int) {
	job, err := w.jobs.ClaimPending(ctx)
	if err != nil {
		w.logger.Error("failed to claim job", "worker_id", workerID, "error", err)
		return
	}
	if job == nil {
		return // No pending jobs
	}

	atomic.AddInt64(&w.activeJobs, 1)
	defer atomic.AddInt64(&w.activeJobs, -1)

	w.logger.Info("processing job", "worker_id", workerID, "job_id", job.ID)

	var input models.MerchantInput
	if err := json.Unmarshal([]byte(job.InputJSON), &input); err != nil {
		w.failJob(ctx, job, "malformed job input: "+err.Error())
		return
	}

	decision := w.screener.Screen(ctx, &input)

	resultJSON, err := json.Marshal(decision)
	if err != nil {
		w.failJob(ctx, job, "failed to serialize decision: "+err.Error())
		return
	}

	now := time.Now().UTC()
	job.Status = models.JobStatusCompleted
	job.ResultJSON = string(resultJSON)
	job.CompletedAt = &now

	if err := w.jobs.Update(ctx, job); err != nil {
		w.logger.Error("failed to update job", "job_id", job.ID, "error", err)
		return
	}

	if err := w.webhooks.Notify(ctx, job); err != nil {
		w.logger.Warn("webhook notification failed", "job_id", job.ID, "error", err)
	}

	w.logger.Info("completed job", "job_id", job.ID, "decision", decision.Decision)
}

func (w *Worker) failJob(ctx context.Context, job *models.Job, errMsg string) {
	now := time.Now().UTC()
	job.Status = models.JobStatusFailed
	job.ErrorMessage = errMsg
	job.CompletedAt = &now

	if err := w.jobs.Update(ctx, job); err != nil {
		w.logger.Error("failed to update job", "job_id", job.ID, "error", err)
	}

	if err := w.webhooks.Notify(ctx, job); err != nil {
		w.logger.Warn("webhook notification failed", "job_id", job.ID, "error", err)
	}

	w.logger.Error("job failed", "job_id", job.ID, "error", errMsg)
}
