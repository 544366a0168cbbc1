package job

import "context"

// Definition is a typed job definition with a handler function.
// T is the payload type (must be JSON-serializable).
type Definition[T any] struct {
	// Name is the unique identifier for this job type.
	Name string

	// Handler is the function that processes the job payload. The first
	// return value is an optional continuation value passed to OnCompleted;
	// return nil when the execution carries no continuation.
	Handler func(ctx context.Context, payload T) (any, error)

	// OnCompleted, when set, is invoked after a successful execution with
	// the handler's continuation value. Self-chaining jobs use it to
	// re-submit themselves until an external work source is drained; the
	// enqueue capability is captured by the closure at construction time.
	OnCompleted func(ctx context.Context, payload T, result any) error

	// Opts configures retries, queue, priority, timeout, and dedup key.
	Opts Options
}

// NewDefinition creates a typed job definition.
func NewDefinition[T any](name string, handler func(ctx context.Context, payload T) (any, error), opts ...Option) *Definition[T] {
	def := &Definition[T]{
		Name:    name,
		Handler: handler,
		Opts:    DefaultOptions(),
	}
	for _, opt := range opts {
		opt(&def.Opts)
	}
	return def
}

// WithCompletion returns the definition with its completion hook set.
// Kept as a chained setter so the hook can close over collaborators that
// are only available at the composition root.
func (d *Definition[T]) WithCompletion(fn func(ctx context.Context, payload T, result any) error) *Definition[T] {
	d.OnCompleted = fn
	return d
}
