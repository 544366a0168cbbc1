package worker_test

import (
	"context"
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

func setupExecutor(t *testing.T, queues *queue.Manager) (*worker.Executor, *memory.Store, *job.Registry) {
	t.Helper()
	logger := slog.Default()
	s := memory.New()
	reg := job.NewRegistry()
	extensions := ext.NewRegistry(logger)
	dlqSvc := dlq.NewService(s, s)
	if queues == nil {
		queues = queue.NewManager()
	}

	executor := worker.NewExecutor(
		reg, extensions, s, dlqSvc, queues,
		backoff.Fixed(10*time.Millisecond, 3),
		logger,
		middleware.Recover(logger),
		middleware.Timeout(logger),
	)
	return executor, s, reg
}

func enqueueTestJob(t *testing.T, s *memory.Store, name string, maxRetries int) *job.Job {
	t.Helper()
	j := &job.Job{
		Entity:     indexer.NewEntity(),
		ID:         id.NewJobID(),
		Name:       name,
		Queue:      "default",
		State:      job.StatePending,
		MaxRetries: maxRetries,
		RunAt:      time.Now().UTC(),
	}
	if err := s.EnqueueJob(context.Background(), j); err != nil {
		t.Fatalf("enqueue error: %v", err)
	}
	return j
}

func TestExecutorSuccessRunsCompletionHook(t *testing.T) {
	executor, s, reg := setupExecutor(t, nil)

	var hookResult atomic.Value
	def := job.NewDefinition("drain", func(_ context.Context, _ struct{}) (any, error) {
		return int64(42), nil
	}).WithCompletion(func(_ context.Context, _ struct{}, result any) error {
		hookResult.Store(result)
		return nil
	})
	job.RegisterDefinition(reg, def)

	j := enqueueTestJob(t, s, "drain", 3)
	claimed, _ := s.DequeueJobs(context.Background(), []string{"default"}, 1)
	if len(claimed) != 1 {
		t.Fatalf("expected one claimed job, got %d", len(claimed))
	}

	if err := executor.Execute(context.Background(), claimed[0]); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	stored, err := s.GetJob(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.State != job.StateCompleted || stored.CompletedAt == nil {
		t.Fatalf("job not completed: %+v", stored)
	}
	if got := hookResult.Load(); got != int64(42) {
		t.Fatalf("completion hook result: got %v, want 42", got)
	}
}

func TestExecutorRescheduleKeepsRetryCount(t *testing.T) {
	executor, s, reg := setupExecutor(t, nil)

	job.RegisterDefinition(reg, job.NewDefinition("throttled", func(_ context.Context, _ struct{}) (any, error) {
		return nil, job.Reschedule(30 * time.Second)
	}))

	j := enqueueTestJob(t, s, "throttled", 3)
	claimed, _ := s.DequeueJobs(context.Background(), []string{"default"}, 1)

	before := time.Now().UTC()
	if err := executor.Execute(context.Background(), claimed[0]); err != nil {
		t.Fatalf("Execute: a throttle reschedule is not a failure: %v", err)
	}

	stored, _ := s.GetJob(context.Background(), j.ID)
	if stored.State != job.StatePending {
		t.Fatalf("state: got %s, want pending", stored.State)
	}
	if stored.RetryCount != 0 {
		t.Fatalf("retry count advanced under throttle: %d", stored.RetryCount)
	}
	wantRunAt := before.Add(30 * time.Second)
	if stored.RunAt.Before(wantRunAt.Add(-time.Second)) || stored.RunAt.After(wantRunAt.Add(time.Second)) {
		t.Fatalf("RunAt: got %s, want ~%s", stored.RunAt, wantRunAt)
	}
}

func TestExecutorRetriesThenDeadLetters(t *testing.T) {
	executor, s, reg := setupExecutor(t, nil)

	var attempts atomic.Int32
	job.RegisterDefinition(reg, job.NewDefinition("flaky", func(_ context.Context, _ struct{}) (any, error) {
		attempts.Add(1)
		return nil, errors.New("boom")
	}))

	j := enqueueTestJob(t, s, "flaky", 2)
	claimed, _ := s.DequeueJobs(context.Background(), []string{"default"}, 1)
	running := claimed[0]

	// Attempts 1 and 2 fail and are scheduled for retry.
	for want := 1; want <= 2; want++ {
		if err := executor.Execute(context.Background(), running); err == nil {
			t.Fatalf("attempt %d: expected a retry error", want)
		}
		stored, _ := s.GetJob(context.Background(), j.ID)
		if stored.State != job.StateRetrying || stored.RetryCount != want {
			t.Fatalf("attempt %d: state %s retries %d", want, stored.State, stored.RetryCount)
		}
	}

	// Attempt 3 exhausts the budget.
	if err := executor.Execute(context.Background(), running); err == nil {
		t.Fatal("exhausted attempt: expected the handler error back")
	}

	stored, _ := s.GetJob(context.Background(), j.ID)
	if stored.State != job.StateFailed {
		t.Fatalf("state after exhaustion: got %s, want failed", stored.State)
	}
	if n, _ := s.CountDLQ(context.Background()); n != 1 {
		t.Fatalf("DLQ entries: got %d, want 1", n)
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("handler invocations: got %d, want 3", got)
	}
}

func TestExecutorQueuePolicyOverridesJobBudget(t *testing.T) {
	noRetries := backoff.Fixed(time.Minute, 0)
	queues := queue.NewManager(queue.Config{Name: "default", Retry: &noRetries})
	executor, s, reg := setupExecutor(t, queues)

	job.RegisterDefinition(reg, job.NewDefinition("strict", func(_ context.Context, _ struct{}) (any, error) {
		return nil, errors.New("boom")
	}))

	j := enqueueTestJob(t, s, "strict", 5)
	claimed, _ := s.DequeueJobs(context.Background(), []string{"default"}, 1)

	if err := executor.Execute(context.Background(), claimed[0]); err == nil {
		t.Fatal("expected the handler error back")
	}

	// The queue's zero-retry policy wins over the job's own budget.
	stored, _ := s.GetJob(context.Background(), j.ID)
	if stored.State != job.StateFailed {
		t.Fatalf("state: got %s, want failed", stored.State)
	}
	if n, _ := s.CountDLQ(context.Background()); n != 1 {
		t.Fatalf("DLQ entries: got %d, want 1", n)
	}
}

func TestExecutorAppliesQueueTimeout(t *testing.T) {
	queues := queue.NewManager(queue.Config{Name: "default", Timeout: 20 * time.Millisecond})
	executor, s, reg := setupExecutor(t, queues)

	job.RegisterDefinition(reg, job.NewDefinition("slow", func(ctx context.Context, _ struct{}) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return nil, nil
		}
	}))

	j := enqueueTestJob(t, s, "slow", 3)
	claimed, _ := s.DequeueJobs(context.Background(), []string{"default"}, 1)

	if err := executor.Execute(context.Background(), claimed[0]); err == nil {
		t.Fatal("expected a timeout-driven retry error")
	}

	stored, _ := s.GetJob(context.Background(), j.ID)
	if stored.State != job.StateRetrying || stored.RetryCount != 1 {
		t.Fatalf("timeout must count as a failed attempt: %+v", stored)
	}
}

func TestExecutorRecoversHandlerPanic(t *testing.T) {
	executor, s, reg := setupExecutor(t, nil)

	job.RegisterDefinition(reg, job.NewDefinition("panicky", func(_ context.Context, _ struct{}) (any, error) {
		panic("kaboom")
	}))

	j := enqueueTestJob(t, s, "panicky", 3)
	claimed, _ := s.DequeueJobs(context.Background(), []string{"default"}, 1)

	if err := executor.Execute(context.Background(), claimed[0]); err == nil {
		t.Fatal("expected the recovered panic as an error")
	}

	stored, _ := s.GetJob(context.Background(), j.ID)
	if stored.State != job.StateRetrying || stored.RetryCount != 1 {
		t.Fatalf("panic must follow the retry path: %+v", stored)
	}
}
