// Package job defines the job entity, state machine, typed definitions,
// and store interface.
//
// # Job Entity
//
// A [Job] represents a unit of work. It embeds [indexer.Entity] for
// timestamps, carries a typed payload (JSON), and progresses through a
// state machine:
//
//	pending → running → completed
//	pending → running → retrying → running → ...
//	pending → running → failed
//	pending → running → failed → dlq
//	pending → cancelled
//
// Fields of note:
//   - Queue: which queue the job belongs to (default: "default")
//   - Priority: higher values are dequeued first
//   - MaxRetries / RetryCount: controls retry budget
//   - DedupKey: collapses duplicate submissions while one is in flight
//   - RunAt: earliest time the job may be dequeued
//   - Timeout: per-job execution deadline (zero = unlimited)
//
// # Defining a Job
//
// Use [Definition] with a typed handler. The payload is JSON-serialized
// at enqueue time and deserialized before the handler runs. A handler may
// return a continuation value; the optional OnCompleted hook receives it
// and can re-submit the job to drain more pending work (self-chaining):
//
//	var ProcessBatch = job.NewDefinition("process_batch",
//	    func(ctx context.Context, input BatchInput) (any, error) {
//	        remaining, err := drainOne(ctx, input)
//	        return remaining, err
//	    },
//	)
//
// # Throttling
//
// A handler that is being rate-limited by an upstream collaborator returns
// [Reschedule] with the suggested delay. The executor re-enqueues the job
// after exactly that delay without consuming a retry: throttling is not a
// failure of the job itself.
//
// # Registry
//
// [Registry] maps job names to type-erased [HandlerFunc] values.
// Register definitions at startup via [RegisterDefinition]:
//
//	job.RegisterDefinition(registry, ProcessBatch)
//
// The engine package provides higher-level engine.Register and
// engine.Enqueue wrappers.
package job
