package indexer

import (
	"context"
	"log/slog"
)

// Option configures an Indexer.
type Option func(*Indexer) error

// Storer is the minimal store interface held by the Indexer. It covers
// lifecycle operations only. The full subsystem interfaces (job.Store,
// dlq.Store, mints.Store, metadata.Cursor) are asserted in the engine
// layer, which sits above all subsystem packages.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// poolRunner is an internal interface for worker pool lifecycle.
type poolRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// extensionEmitter is an internal interface for extension lifecycle events.
type extensionEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Indexer is the central coordinator for job processing, mint detection
// and metadata ingestion.
//
// Create one with New() and functional options. The Indexer holds
// references to subsystem components via internal interfaces to avoid
// import cycles; use engine.Build to wire everything together.
type Indexer struct {
	config     Config
	logger     *slog.Logger
	store      Storer
	extensions extensionEmitter
	pool       poolRunner

	// started tracks whether Start has been called.
	started bool
}

// New creates a new Indexer with the given options.
func New(opts ...Option) (*Indexer, error) {
	ix := &Indexer{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(ix); err != nil {
			return nil, err
		}
	}
	return ix, nil
}

// Logger returns the indexer's logger.
func (ix *Indexer) Logger() *slog.Logger { return ix.logger }

// Store returns the indexer's store.
func (ix *Indexer) Store() Storer { return ix.store }

// Config returns a copy of the indexer's configuration.
func (ix *Indexer) Config() Config { return ix.config }

// SetPool sets the worker pool (called by the engine layer).
func (ix *Indexer) SetPool(p poolRunner) { ix.pool = p }

// SetExtensions sets the extension emitter (called by the engine layer).
func (ix *Indexer) SetExtensions(e extensionEmitter) { ix.extensions = e }

// Start begins job processing.
func (ix *Indexer) Start(ctx context.Context) error {
	if ix.pool == nil {
		return ErrNoStore
	}
	if err := ix.pool.Start(ctx); err != nil {
		return err
	}
	ix.started = true
	return nil
}

// Stop gracefully shuts down the indexer.
func (ix *Indexer) Stop(ctx context.Context) error {
	if ix.pool != nil && ix.started {
		if err := ix.pool.Stop(ctx); err != nil {
			ix.logger.Error("pool stop error", "error", err)
		}
	}
	if ix.extensions != nil {
		ix.extensions.EmitShutdown(ctx)
	}
	if ix.store != nil {
		return ix.store.Close()
	}
	return nil
}

// WithConcurrency sets the maximum number of concurrent job processors.
func WithConcurrency(n int) Option {
	return func(ix *Indexer) error {
		ix.config.Concurrency = n
		return nil
	}
}

// WithQueues sets the queues the indexer will poll.
func WithQueues(queues []string) Option {
	return func(ix *Indexer) error {
		ix.config.Queues = queues
		return nil
	}
}

// WithLogger sets the structured logger for the indexer.
func WithLogger(l *slog.Logger) Option {
	return func(ix *Indexer) error {
		ix.logger = l
		return nil
	}
}

// WithStore sets the persistence backend for the indexer.
func WithStore(s Storer) Option {
	return func(ix *Indexer) error {
		ix.store = s
		return nil
	}
}
