// Package worker provides the job execution engine — an Executor that
// invokes registered handlers through middleware and interprets their
// outcome (success, throttle reschedule, retry, dead letter), and a Pool
// that manages concurrent worker goroutines polling for jobs.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/HungLV46/reservoir-indexer/backoff"
	"github.com/HungLV46/reservoir-indexer/dlq"
	"github.com/HungLV46/reservoir-indexer/ext"
	"github.com/HungLV46/reservoir-indexer/id"
	"github.com/HungLV46/reservoir-indexer/job"
	"github.com/HungLV46/reservoir-indexer/middleware"
	"github.com/HungLV46/reservoir-indexer/queue"
)

// Executor runs a single job through middleware and the registered handler,
// then handles the outcome: completion hooks, throttle reschedules, retry
// scheduling, DLQ push, state updates, and lifecycle events.
type Executor struct {
	registry   *job.Registry
	extensions *ext.Registry
	store      job.Store
	dlqService *dlq.Service
	queues     *queue.Manager
	policy     backoff.Policy
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies. policy is
// the fallback retry schedule for queues without their own.
func NewExecutor(
	registry *job.Registry,
	extensions *ext.Registry,
	store job.Store,
	dlqService *dlq.Service,
	queues *queue.Manager,
	policy backoff.Policy,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		registry:   registry,
		extensions: extensions,
		store:      store,
		dlqService: dlqService,
		queues:     queues,
		policy:     policy,
		mw:         middleware.Chain(mws...),
		logger:     logger,
	}
}

// Execute runs a job through the middleware chain and handler.
// On success: marks completed, runs the completion hook, emits JobCompleted.
// On an explicit reschedule: re-enqueues after the requested delay without
// touching the retry counter, emits JobRescheduled.
// On failure with retries remaining: marks retrying with backoff, emits
// JobRetrying.
// On failure with retries exhausted: marks failed, pushes to DLQ, emits
// JobFailed + JobDLQ.
func (e *Executor) Execute(ctx context.Context, j *job.Job) error {
	handler, ok := e.registry.Get(j.Name)
	if !ok {
		return fmt.Errorf("no handler registered for job %q", j.Name)
	}

	if j.Timeout == 0 {
		if cfg, found := e.queues.ConfigFor(j.Queue); found {
			j.Timeout = cfg.Timeout
		}
	}

	start := time.Now()

	// The terminal handler captures the continuation value for the
	// completion hook.
	var result any
	terminal := func(ctx context.Context) error {
		r, err := handler(ctx, j.Payload)
		result = r
		return err
	}

	err := e.mw(ctx, j, terminal)
	elapsed := time.Since(start)

	now := time.Now().UTC()
	j.UpdatedAt = now

	if err != nil {
		if re, throttled := job.AsReschedule(err); throttled {
			return e.handleThrottle(ctx, j, re, now)
		}
		return e.handleFailure(ctx, j, err)
	}

	return e.handleSuccess(ctx, j, now, elapsed, result)
}

// handleSuccess marks the job as completed, runs its completion hook, and
// emits the lifecycle event.
func (e *Executor) handleSuccess(ctx context.Context, j *job.Job, now time.Time, elapsed time.Duration, result any) error {
	j.State = job.StateCompleted
	j.CompletedAt = &now

	if updateErr := e.store.UpdateJob(ctx, j); updateErr != nil {
		e.logger.Error("failed to update job after success",
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	e.extensions.EmitJobCompleted(ctx, j, elapsed)

	// The completion hook may self-chain by re-enqueueing; its failure
	// does not fail the completed execution.
	if completion, ok := e.registry.GetCompletion(j.Name); ok {
		if hookErr := completion(ctx, j.Payload, result); hookErr != nil {
			e.logger.Error("completion hook failed",
				slog.String("job_id", j.ID.String()),
				slog.String("job_name", j.Name),
				slog.String("error", hookErr.Error()),
			)
		}
	}
	return nil
}

// handleThrottle re-enqueues the job after the handler-requested delay.
// The retry counter is deliberately untouched: throttling is not a failure
// of the job itself.
func (e *Executor) handleThrottle(ctx context.Context, j *job.Job, re *job.RescheduleError, now time.Time) error {
	j.State = job.StatePending
	j.RunAt = now.Add(re.Delay)
	j.StartedAt = nil
	j.WorkerID = id.Nil

	if updateErr := e.store.UpdateJob(ctx, j); updateErr != nil {
		e.logger.Error("failed to reschedule throttled job",
			slog.String("job_id", j.ID.String()),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	e.extensions.EmitJobRescheduled(ctx, j, re.Delay)

	e.logger.Info("job rescheduled after throttle",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
		slog.Duration("delay", re.Delay),
		slog.Int("retry_count", j.RetryCount),
	)
	return nil
}

// handleFailure increments the retry counter and either retries or sends
// the job to the DLQ, per the queue's retry schedule.
func (e *Executor) handleFailure(ctx context.Context, j *job.Job, handlerErr error) error {
	j.RetryCount++
	j.LastError = handlerErr.Error()

	delay, policyErr := e.effectivePolicy(j).Next(j.RetryCount)
	if policyErr != nil {
		return e.sendToDLQ(ctx, j, handlerErr)
	}
	return e.scheduleRetry(ctx, j, delay)
}

// effectivePolicy picks the queue's retry schedule when one is configured,
// falling back to the executor default capped at the job's own MaxRetries.
func (e *Executor) effectivePolicy(j *job.Job) backoff.Policy {
	if cfg, ok := e.queues.ConfigFor(j.Queue); ok && cfg.Retry != nil {
		return *cfg.Retry
	}
	return e.policy.WithMaxRetries(j.MaxRetries)
}

// scheduleRetry sets the job to StateRetrying with a backoff delay.
func (e *Executor) scheduleRetry(ctx context.Context, j *job.Job, delay time.Duration) error {
	nextRunAt := j.UpdatedAt.Add(delay)
	j.RunAt = nextRunAt
	j.State = job.StateRetrying
	j.StartedAt = nil
	j.WorkerID = id.Nil

	if updateErr := e.store.UpdateJob(ctx, j); updateErr != nil {
		e.logger.Error("failed to update job for retry",
			slog.String("job_id", j.ID.String()),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	e.extensions.EmitJobRetrying(ctx, j, j.RetryCount, nextRunAt)

	e.logger.Info("job scheduled for retry",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
		slog.Int("attempt", j.RetryCount),
		slog.Int("max_retries", j.MaxRetries),
		slog.Duration("delay", delay),
	)

	return fmt.Errorf("job %s retry %d/%d: %s", j.Name, j.RetryCount, j.MaxRetries, j.LastError)
}

// sendToDLQ marks the job as failed, pushes it to the DLQ, and emits events.
func (e *Executor) sendToDLQ(ctx context.Context, j *job.Job, handlerErr error) error {
	j.State = job.StateFailed

	if updateErr := e.store.UpdateJob(ctx, j); updateErr != nil {
		e.logger.Error("failed to update job as failed",
			slog.String("job_id", j.ID.String()),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	if e.dlqService != nil {
		if dlqErr := e.dlqService.Push(ctx, j, handlerErr); dlqErr != nil {
			e.logger.Error("failed to push job to DLQ",
				slog.String("job_id", j.ID.String()),
				slog.String("error", dlqErr.Error()),
			)
		}
	}

	e.extensions.EmitJobFailed(ctx, j, handlerErr)
	e.extensions.EmitJobDLQ(ctx, j, handlerErr)

	e.logger.Warn("job moved to DLQ after exhausting retries",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
		slog.Int("retry_count", j.RetryCount),
		slog.String("error", handlerErr.Error()),
	)

	return handlerErr
}
