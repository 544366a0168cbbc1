// Package engine wires all indexer subsystems together. It creates the
// extension registry, job registry, middleware chain, queue manager,
// worker pool, and cron scheduler, and provides Register/Enqueue
// operations plus the mint and metadata pipeline wiring.
//
// This package exists to break the import cycle: the root indexer package
// defines Entity (imported by job, mints, etc.) and so cannot import those
// packages back. The engine package sits above all subsystem packages and
// below the application layer.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	indexer "github.com/HungLV46/reservoir-indexer"
	"github.com/HungLV46/reservoir-indexer/backoff"
	"github.com/HungLV46/reservoir-indexer/calldata"
	"github.com/HungLV46/reservoir-indexer/cron"
	"github.com/HungLV46/reservoir-indexer/dlq"
	"github.com/HungLV46/reservoir-indexer/ext"
	"github.com/HungLV46/reservoir-indexer/id"
	"github.com/HungLV46/reservoir-indexer/job"
	"github.com/HungLV46/reservoir-indexer/metadata"
	mw "github.com/HungLV46/reservoir-indexer/middleware"
	"github.com/HungLV46/reservoir-indexer/mints"
	"github.com/HungLV46/reservoir-indexer/observability"
	"github.com/HungLV46/reservoir-indexer/queue"
	"github.com/HungLV46/reservoir-indexer/worker"
)

// Engine wraps an Indexer with typed subsystem access.
// Use Build() to create one.
type Engine struct {
	ix         *indexer.Indexer
	extensions *ext.Registry
	registry   *job.Registry
	jobStore   job.Store
	dlqService *dlq.Service
	policy     *backoff.Policy
	pool       *worker.Pool
	mws        []mw.Middleware
	logger     *slog.Logger

	// Optional store capabilities, discovered by type assertion.
	mintStore mints.Store
	cursor    metadata.Cursor

	// Cron subsystem.
	scheduler *cron.Scheduler

	// Queue subsystem.
	queueConfigs []queue.Config
	queueManager *queue.Manager

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// Prometheus registerer for the observability extension (optional;
	// nil disables the extension).
	promRegistry prometheus.Registerer
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) {
		eng.extensions.Register(e)
	}
}

// WithMiddleware adds middleware to the engine's chain.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithBackoff sets the fallback retry policy for queues without their own.
// If not set, backoff.Default() is used.
func WithBackoff(p backoff.Policy) Option {
	return func(eng *Engine) {
		eng.policy = &p
	}
}

// WithQueueConfig registers queue-level rate limiting, concurrency,
// timeout, and retry configurations. Queues not listed have no limits.
func WithQueueConfig(configs ...queue.Config) Option {
	return func(eng *Engine) {
		eng.queueConfigs = append(eng.queueConfigs, configs...)
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the metrics
// middleware. If not set, the global otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// WithPrometheusRegisterer enables the observability metrics extension,
// registering its collectors with reg.
func WithPrometheusRegisterer(reg prometheus.Registerer) Option {
	return func(eng *Engine) {
		eng.promRegistry = reg
	}
}

// Build creates an Engine from an existing Indexer.
// The Indexer's store must implement job.Store and dlq.Store; mints.Store
// and metadata.Cursor are discovered as optional capabilities.
func Build(ix *indexer.Indexer, opts ...Option) (*Engine, error) {
	logger := ix.Logger()
	store := ix.Store()

	if store == nil {
		return nil, indexer.ErrNoStore
	}

	js, ok := store.(job.Store)
	if !ok {
		return nil, fmt.Errorf("indexer: store does not implement job.Store")
	}
	ds, ok := store.(dlq.Store)
	if !ok {
		return nil, fmt.Errorf("indexer: store does not implement dlq.Store")
	}

	eng := &Engine{
		ix:         ix,
		extensions: ext.NewRegistry(logger),
		registry:   job.NewRegistry(),
		jobStore:   js,
		logger:     logger,
	}

	// Optional capabilities.
	if ms, hasMints := store.(mints.Store); hasMints {
		eng.mintStore = ms
	}
	if cur, hasCursor := store.(metadata.Cursor); hasCursor {
		eng.cursor = cur
	}

	for _, opt := range opts {
		opt(eng)
	}

	if eng.policy == nil {
		p := backoff.Default()
		eng.policy = &p
	}

	eng.dlqService = dlq.NewService(ds, js)

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracer := eng.tracerProvider.Tracer("github.com/HungLV46/reservoir-indexer")
		tracingMw = mw.TracingWithTracer(tracer)
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter("github.com/HungLV46/reservoir-indexer")
		metricsMw = mw.MetricsWithMeter(meter)
	} else {
		metricsMw = mw.Metrics()
	}

	// Register the observability metrics extension when a registerer
	// was supplied.
	if eng.promRegistry != nil {
		eng.extensions.Register(observability.NewMetricsExtension(eng.promRegistry))
	}

	// Default middleware stack: recover → tracing → metrics → logging → timeout.
	defaultMws := []mw.Middleware{
		mw.Recover(logger),
		tracingMw,
		metricsMw,
		mw.Logging(logger),
		mw.Timeout(logger),
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(eng.mws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, eng.mws...)

	// The executor always gets a queue manager; unknown queues pass
	// through unlimited.
	eng.queueManager = queue.NewManager(eng.queueConfigs...)

	config := ix.Config()
	executor := worker.NewExecutor(
		eng.registry, eng.extensions, eng.jobStore, eng.dlqService,
		eng.queueManager, *eng.policy, logger, allMws...,
	)

	eng.pool = worker.NewPool(
		eng.jobStore,
		executor,
		eng.extensions,
		logger,
		worker.WithPoolConcurrency(config.Concurrency),
		worker.WithPoolQueues(config.Queues),
		worker.WithPollInterval(config.PollInterval),
		worker.WithHeartbeatInterval(config.HeartbeatInterval),
		worker.WithStaleJobThreshold(config.StaleJobThreshold),
		worker.WithQueueManager(eng.queueManager),
	)

	// Wire back into the Indexer.
	ix.SetPool(eng.pool)
	ix.SetExtensions(eng.extensions)

	// Create the cron scheduler over the engine's enqueue path.
	enqueueFunc := func(ctx context.Context, name string, payload []byte, jobOpts ...job.Option) (id.JobID, error) {
		j, err := eng.EnqueueRaw(ctx, name, payload, jobOpts...)
		if err != nil {
			return id.Nil, err
		}
		if j == nil {
			// Collapsed against a live dedup key.
			return id.Nil, nil
		}
		return j.ID, nil
	}
	eng.scheduler = cron.NewScheduler(enqueueFunc, eng.extensions, logger)

	return eng, nil
}

// Register registers a typed job definition with the engine.
func Register[T any](eng *Engine, def *job.Definition[T]) {
	job.RegisterDefinition(eng.registry, def)
}

// Enqueue creates and enqueues a job. A nil job with a nil error means the
// submission collapsed against a live dedup key.
func Enqueue[T any](ctx context.Context, eng *Engine, name string, payload T, opts ...job.Option) (*job.Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload for job %q: %w", name, err)
	}
	return eng.EnqueueRaw(ctx, name, data, opts...)
}

// EnqueueRaw enqueues a job with a pre-serialized payload.
//
// Submissions carrying a dedup key that matches a live job are idempotent
// no-ops: EnqueueRaw returns (nil, nil) and the original job proceeds.
func (eng *Engine) EnqueueRaw(ctx context.Context, name string, payload []byte, opts ...job.Option) (*job.Job, error) {
	jobOpts := job.DefaultOptions()
	for _, opt := range opts {
		opt(&jobOpts)
	}

	now := time.Now().UTC()
	runAt := now
	if !jobOpts.RunAt.IsZero() {
		runAt = jobOpts.RunAt
	} else if jobOpts.Delay > 0 {
		runAt = now.Add(jobOpts.Delay)
	}

	j := &job.Job{
		Entity:     indexer.NewEntity(),
		ID:         id.NewJobID(),
		Name:       name,
		Queue:      jobOpts.Queue,
		Payload:    payload,
		State:      job.StatePending,
		Priority:   jobOpts.Priority,
		MaxRetries: jobOpts.MaxRetries,
		DedupKey:   jobOpts.DedupKey,
		RunAt:      runAt,
		Timeout:    jobOpts.Timeout,
	}

	if err := eng.jobStore.EnqueueJob(ctx, j); err != nil {
		if errors.Is(err, indexer.ErrDuplicateJob) {
			eng.logger.Debug("submission collapsed against live duplicate",
				slog.String("job_name", name),
				slog.String("dedup_key", jobOpts.DedupKey),
			)
			return nil, nil
		}
		return nil, err
	}

	eng.extensions.EmitJobEnqueued(ctx, j)
	return j, nil
}

// Start begins job processing by starting the cron scheduler and the
// worker pool.
func (eng *Engine) Start(ctx context.Context) error {
	if err := eng.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start cron scheduler: %w", err)
	}
	return eng.ix.Start(ctx)
}

// Stop gracefully shuts down the engine.
func (eng *Engine) Stop(ctx context.Context) error {
	if err := eng.scheduler.Stop(ctx); err != nil {
		eng.logger.Error("cron scheduler stop error", slog.String("error", err.Error()))
	}
	return eng.ix.Stop(ctx)
}

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Registry returns the job registry.
func (eng *Engine) Registry() *job.Registry { return eng.registry }

// Indexer returns the underlying Indexer.
func (eng *Engine) Indexer() *indexer.Indexer { return eng.ix }

// DLQService returns the engine's DLQ service for replay and inspection.
func (eng *Engine) DLQService() *dlq.Service { return eng.dlqService }

// Scheduler returns the cron scheduler.
func (eng *Engine) Scheduler() *cron.Scheduler { return eng.scheduler }

// QueueManager returns the queue manager.
func (eng *Engine) QueueManager() *queue.Manager { return eng.queueManager }

// MintStore returns the store's mint capability, or nil.
func (eng *Engine) MintStore() mints.Store { return eng.mintStore }

// MetadataCursor returns the store's pending-URI ledger capability, or nil.
func (eng *Engine) MetadataCursor() metadata.Cursor { return eng.cursor }

// RegisterCron registers a typed cron definition with the engine's
// scheduler. Re-registration of the same name is idempotent.
func RegisterCron[T any](eng *Engine, def *cron.Definition[T]) error {
	if err := cron.RegisterDefinition(eng.scheduler, def); err != nil {
		if errors.Is(err, indexer.ErrDuplicateCron) {
			return nil
		}
		return fmt.Errorf("register cron %q: %w", def.Name, err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Domain pipeline wiring
// ──────────────────────────────────────────────────

// RegisterMintPipeline wires the detection and refresh jobs over the
// store's mint capability. Detected configurations are fanned out to the
// MintDetected extension hook.
func (eng *Engine) RegisterMintPipeline(signatures mints.SignatureResolver, supply mints.MaxSupplyResolver, simulator mints.Simulator) error {
	if eng.mintStore == nil {
		return fmt.Errorf("indexer: store does not implement mints.Store")
	}

	decoder := calldata.NewDecoder(eng.logger)
	detector := mints.NewDetector(signatures, supply, decoder, eng.logger)
	notify := func(ctx context.Context, m *mints.CollectionMint) {
		eng.extensions.EmitMintDetected(ctx, m)
	}
	Register(eng, mints.DetectionJob(detector, eng.mintStore, notify, eng.logger))

	coordinator := mints.NewRefreshCoordinator(eng.mintStore, simulator, eng.logger)
	Register(eng, mints.RefreshJob(coordinator))
	return nil
}

// ScheduleMintRefresh registers a recurring refresh for one collection.
// The dedup key keeps overlapping fires from stacking refreshes.
func (eng *Engine) ScheduleMintRefresh(collection, schedule string) error {
	return RegisterCron(eng, &cron.Definition[mints.RefreshPayload]{
		Name:     "mint-refresh:" + collection,
		Schedule: schedule,
		JobName:  mints.JobMintRefresh,
		Payload:  mints.RefreshPayload{Collection: collection},
		Opts: []job.Option{
			job.WithQueue(mints.QueueMintRefresh),
			job.WithDedupKey("mint-refresh:" + collection),
		},
	})
}

const metadataDrainDedupKey = "metadata:process-uri"

// RegisterMetadataPipeline wires the self-chaining drain job over the
// store's pending-URI ledger capability.
func (eng *Engine) RegisterMetadataPipeline(resolver metadata.Resolver, downstream metadata.Downstream, opts ...metadata.ProcessOption) error {
	if eng.cursor == nil {
		return fmt.Errorf("indexer: store does not implement metadata.Cursor")
	}

	p := metadata.NewProcessURIJob(eng.cursor, resolver, downstream, eng.logger, opts...)
	def := p.Definition(func(ctx context.Context) error {
		_, err := eng.EnqueueRaw(ctx, metadata.JobProcessURI, nil,
			job.WithQueue(metadata.QueueProcessURI),
			job.WithDedupKey(metadataDrainDedupKey),
		)
		return err
	})
	Register(eng, def)
	return nil
}

// TriggerMetadataDrain kicks off a drain chain. Concurrent triggers
// collapse onto the in-flight chain via the dedup key.
func (eng *Engine) TriggerMetadataDrain(ctx context.Context) (*job.Job, error) {
	return eng.EnqueueRaw(ctx, metadata.JobProcessURI, nil,
		job.WithQueue(metadata.QueueProcessURI),
		job.WithDedupKey(metadataDrainDedupKey),
	)
}
