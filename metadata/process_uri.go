package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/HungLV46/reservoir-indexer/job"
)

// DefaultBatchSize bounds how many pending items one execution claims.
const DefaultBatchSize = 50

// Queue and job names for the metadata pipeline.
const (
	QueueProcessURI = "metadata-process-uri"
	JobProcessURI   = "metadata.process-uri"
)

// ProcessPayload is the (empty) payload of a drain execution. All state
// lives in the shared cursor; the job itself is a pure trigger.
type ProcessPayload struct{}

// ProcessURIJob drains the pending-URI ledger in bounded batches.
type ProcessURIJob struct {
	cursor     Cursor
	resolver   Resolver
	downstream Downstream
	batchSize  int
	logger     *slog.Logger
}

// ProcessOption configures a ProcessURIJob.
type ProcessOption func(*ProcessURIJob)

// WithBatchSize overrides the per-execution batch size.
func WithBatchSize(n int) ProcessOption {
	return func(p *ProcessURIJob) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// NewProcessURIJob wires a drain job over its collaborators.
func NewProcessURIJob(cursor Cursor, resolver Resolver, downstream Downstream, logger *slog.Logger, opts ...ProcessOption) *ProcessURIJob {
	if logger == nil {
		logger = slog.Default()
	}
	p := &ProcessURIJob{
		cursor:     cursor,
		resolver:   resolver,
		downstream: downstream,
		batchSize:  DefaultBatchSize,
		logger:     logger.With("component", "metadata-process-uri"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process handles one batch. The returned continuation value is the number
// of items still pending after a successful batch, or nil when the ledger
// is drained.
func (p *ProcessURIJob) Process(ctx context.Context, _ ProcessPayload) (any, error) {
	batch, err := p.cursor.Fetch(ctx, p.batchSize)
	if err != nil {
		return nil, fmt.Errorf("fetching pending batch: %w", err)
	}
	if len(batch) == 0 {
		p.logger.Debug("no pending metadata URIs")
		return nil, nil
	}

	resolved, err := p.resolver.ResolveBatch(ctx, batch)
	if err != nil {
		var throttle *ThrottleError
		if errors.As(err, &throttle) {
			// Put the claimed batch back: a throttled execution must
			// not advance the cursor.
			if addErr := p.cursor.Add(ctx, batch...); addErr != nil {
				return nil, fmt.Errorf("returning throttled batch: %w", addErr)
			}
			p.logger.Info("resolver throttled, rescheduling",
				slog.Duration("retry_after", throttle.RetryAfter),
				slog.Int("batch", len(batch)))
			return nil, job.Reschedule(throttle.RetryAfter)
		}
		return nil, fmt.Errorf("resolving batch: %w", err)
	}

	forward := make([]ResolvedURI, 0, len(resolved))
	for _, r := range resolved {
		if r.URI == "" {
			p.logger.Warn("dropping token without resolvable URI",
				slog.String("contract", r.Contract),
				slog.String("token_id", r.TokenID),
				slog.String("reason", r.Error))
			continue
		}
		forward = append(forward, r)
	}
	if len(forward) > 0 {
		if err := p.downstream.SubmitBulk(ctx, forward); err != nil {
			return nil, fmt.Errorf("forwarding resolved URIs: %w", err)
		}
	}

	remaining, err := p.cursor.Remaining(ctx)
	if err != nil {
		// The batch itself succeeded; losing the continuation only
		// delays draining until the next trigger.
		p.logger.Warn("could not read remaining count", slog.String("error", err.Error()))
		return nil, nil
	}

	p.logger.Info("processed metadata batch",
		slog.Int("batch", len(batch)),
		slog.Int("forwarded", len(forward)),
		slog.Int64("remaining", remaining))

	if remaining > 0 {
		return remaining, nil
	}
	return nil, nil
}

// Definition builds the runtime job definition. requeue re-submits the
// drain job with zero delay and is invoked from the completion hook when an
// execution reports remaining work; duplicate-submission collapses inside
// requeue keep the chain single-flight.
func (p *ProcessURIJob) Definition(requeue func(ctx context.Context) error) *job.Definition[ProcessPayload] {
	return job.NewDefinition(JobProcessURI, p.Process,
		job.WithQueue(QueueProcessURI),
		job.WithMaxRetries(5),
		job.WithTimeout(time.Minute),
	).WithCompletion(func(ctx context.Context, _ ProcessPayload, result any) error {
		if result == nil {
			return nil
		}
		p.logger.Debug("continuing drain", slog.Any("remaining", result))
		return requeue(ctx)
	})
}
