package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	indexer "github.com/HungLV46/reservoir-indexer"
	"github.com/HungLV46/reservoir-indexer/backoff"
	"github.com/HungLV46/reservoir-indexer/dlq"
	"github.com/HungLV46/reservoir-indexer/ext"
	"github.com/HungLV46/reservoir-indexer/id"
	"github.com/HungLV46/reservoir-indexer/job"
	"github.com/HungLV46/reservoir-indexer/middleware"
	"github.com/HungLV46/reservoir-indexer/queue"
	"github.com/HungLV46/reservoir-indexer/store/memory"
	"github.com/HungLV46/reservoir-indexer/worker"
)

func setupTestPool(t *testing.T, concurrency int, pollInterval time.Duration, manager *queue.Manager) (
	*worker.Pool, *memory.Store, *job.Registry,
) {
	t.Helper()
	logger := slog.Default()
	s := memory.New()
	reg := job.NewRegistry()
	extensions := ext.NewRegistry(logger)
	dlqSvc := dlq.NewService(s, s)
	if manager == nil {
		manager = queue.NewManager()
	}

	executor := worker.NewExecutor(
		reg, extensions, s, dlqSvc, manager,
		backoff.Fixed(10*time.Millisecond, 3),
		logger,
		middleware.Recover(logger),
	)

	pool := worker.NewPool(s, executor, extensions, logger,
		worker.WithPoolConcurrency(concurrency),
		worker.WithPollInterval(pollInterval),
		worker.WithPoolQueues([]string{"default"}),
		worker.WithQueueManager(manager),
	)

	return pool, s, reg
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.After(timeout)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for condition")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestPool_StartStop(t *testing.T) {
	pool, _, _ := setupTestPool(t, 2, 50*time.Millisecond, nil)

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	// Double start should be a no-op.
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("unexpected double-start error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}
	// Double stop should be a no-op.
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("unexpected double-stop error: %v", err)
	}
}

func TestPool_ProcessesJob(t *testing.T) {
	pool, s, reg := setupTestPool(t, 1, 10*time.Millisecond, nil)

	var processed atomic.Bool
	job.RegisterDefinition(reg, job.NewDefinition("greet", func(_ context.Context, p struct{ Name string }) (any, error) {
		if p.Name != "Alice" {
			t.Errorf("payload.Name = %q, want %q", p.Name, "Alice")
		}
		processed.Store(true)
		return nil, nil
	}))

	payload, _ := json.Marshal(struct{ Name string }{Name: "Alice"})
	j := &job.Job{
		Entity:     indexer.NewEntity(),
		ID:         id.NewJobID(),
		Name:       "greet",
		Queue:      "default",
		Payload:    payload,
		State:      job.StatePending,
		MaxRetries: 3,
		RunAt:      time.Now().UTC(),
	}
	if err := s.EnqueueJob(context.Background(), j); err != nil {
		t.Fatalf("enqueue error: %v", err)
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = pool.Stop(ctx)
	}()

	waitFor(t, 5*time.Second, processed.Load)

	waitFor(t, 5*time.Second, func() bool {
		stored, err := s.GetJob(context.Background(), j.ID)
		return err == nil && stored.State == job.StateCompleted
	})
}

func TestPool_DedupKeyYieldsSingleExecution(t *testing.T) {
	pool, s, reg := setupTestPool(t, 2, 10*time.Millisecond, nil)

	var executions atomic.Int32
	job.RegisterDefinition(reg, job.NewDefinition("dedup", func(_ context.Context, _ struct{}) (any, error) {
		executions.Add(1)
		time.Sleep(50 * time.Millisecond)
		return nil, nil
	}))

	makeJob := func() *job.Job {
		return &job.Job{
			Entity:     indexer.NewEntity(),
			ID:         id.NewJobID(),
			Name:       "dedup",
			Queue:      "default",
			State:      job.StatePending,
			MaxRetries: 3,
			DedupKey:   "dedup:once",
			RunAt:      time.Now().UTC(),
		}
	}

	if err := s.EnqueueJob(context.Background(), makeJob()); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	// The second submission with the same live dedup key collapses.
	if err := s.EnqueueJob(context.Background(), makeJob()); !errors.Is(err, indexer.ErrDuplicateJob) {
		t.Fatalf("second enqueue: got %v, want ErrDuplicateJob", err)
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = pool.Stop(ctx)
	}()

	waitFor(t, 5*time.Second, func() bool { return executions.Load() >= 1 })
	time.Sleep(100 * time.Millisecond)

	if got := executions.Load(); got != 1 {
		t.Fatalf("executions: got %d, want exactly 1", got)
	}
}

func TestPool_QueueConcurrencyCeiling(t *testing.T) {
	manager := queue.NewManager(queue.Config{Name: "default", MaxConcurrency: 1})
	pool, s, reg := setupTestPool(t, 4, 10*time.Millisecond, manager)

	var current, peak, done atomic.Int32
	job.RegisterDefinition(reg, job.NewDefinition("ceiling", func(_ context.Context, _ struct{}) (any, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		current.Add(-1)
		done.Add(1)
		return nil, nil
	}))

	for i := 0; i < 3; i++ {
		j := &job.Job{
			Entity:     indexer.NewEntity(),
			ID:         id.NewJobID(),
			Name:       "ceiling",
			Queue:      "default",
			State:      job.StatePending,
			MaxRetries: 0,
			RunAt:      time.Now().UTC(),
		}
		if err := s.EnqueueJob(context.Background(), j); err != nil {
			t.Fatalf("enqueue error: %v", err)
		}
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = pool.Stop(ctx)
	}()

	waitFor(t, 10*time.Second, func() bool { return done.Load() == 3 })

	if got := peak.Load(); got != 1 {
		t.Fatalf("peak concurrency: got %d, want 1", got)
	}
}
