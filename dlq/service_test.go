package dlq_test

import (
	"context"
	"errors"
	"testing"
	"time"

	indexer "github.com/HungLV46/reservoir-indexer"
	"github.com/HungLV46/reservoir-indexer/dlq"
	"github.com/HungLV46/reservoir-indexer/id"
	"github.com/HungLV46/reservoir-indexer/job"
	"github.com/HungLV46/reservoir-indexer/store/memory"
)

func failedJob() *job.Job {
	return &job.Job{
		Entity:     indexer.NewEntity(),
		ID:         id.NewJobID(),
		Name:       "mints.detect",
		Queue:      "mint-detection",
		Payload:    []byte(`{"collection":"0xabc"}`),
		State:      job.StateFailed,
		MaxRetries: 3,
		RetryCount: 4,
		RunAt:      time.Now().UTC(),
	}
}

func TestServicePushCapturesJobFields(t *testing.T) {
	s := memory.New()
	svc := dlq.NewService(s, s)
	ctx := context.Background()

	j := failedJob()
	if err := svc.Push(ctx, j, errors.New("signature lookup timed out")); err != nil {
		t.Fatalf("Push: %v", err)
	}

	entries, err := s.ListDLQ(ctx, dlq.ListOpts{})
	if err != nil {
		t.Fatalf("ListDLQ: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ListDLQ returned %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.JobID != j.ID {
		t.Errorf("JobID = %s, want %s", e.JobID, j.ID)
	}
	if e.JobName != j.Name || e.Queue != j.Queue {
		t.Errorf("entry identity = %s/%s, want %s/%s", e.JobName, e.Queue, j.Name, j.Queue)
	}
	if e.Error != "signature lookup timed out" {
		t.Errorf("Error = %q", e.Error)
	}
	if e.RetryCount != 4 || e.MaxRetries != 3 {
		t.Errorf("retry bookkeeping = %d/%d, want 4/3", e.RetryCount, e.MaxRetries)
	}
	if e.FailedAt.IsZero() {
		t.Error("FailedAt not set")
	}
}

func TestServiceReplayReEnqueuesFreshJob(t *testing.T) {
	s := memory.New()
	svc := dlq.NewService(s, s)
	ctx := context.Background()

	original := failedJob()
	if err := svc.Push(ctx, original, errors.New("boom")); err != nil {
		t.Fatalf("Push: %v", err)
	}
	entries, err := s.ListDLQ(ctx, dlq.ListOpts{})
	if err != nil {
		t.Fatalf("ListDLQ: %v", err)
	}

	replayed, err := svc.Replay(ctx, entries[0].ID)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if replayed.ID == original.ID {
		t.Error("replay must mint a fresh job ID")
	}
	if replayed.State != job.StatePending {
		t.Errorf("replayed state = %s, want pending", replayed.State)
	}
	if replayed.RetryCount != 0 {
		t.Errorf("replayed RetryCount = %d, want 0", replayed.RetryCount)
	}
	if string(replayed.Payload) != string(original.Payload) {
		t.Errorf("payload not carried over: %s", replayed.Payload)
	}

	// The stored job is dequeueable again.
	jobs, err := s.DequeueJobs(ctx, []string{original.Queue}, 1)
	if err != nil {
		t.Fatalf("DequeueJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != replayed.ID {
		t.Fatalf("dequeued %d jobs, want the replayed one", len(jobs))
	}

	// The DLQ entry is marked replayed, not removed.
	entry, err := s.GetDLQ(ctx, entries[0].ID)
	if err != nil {
		t.Fatalf("GetDLQ: %v", err)
	}
	if entry.ReplayedAt == nil {
		t.Error("ReplayedAt not set after replay")
	}
}

// markFailStore fails ReplayDLQ after the job is already enqueued.
type markFailStore struct {
	*memory.Store
}

func (s *markFailStore) ReplayDLQ(context.Context, id.DLQID) error {
	return errors.New("dlq table unavailable")
}

func TestServiceReplayReturnsJobWhenMarkingFails(t *testing.T) {
	mem := memory.New()
	svc := dlq.NewService(&markFailStore{Store: mem}, mem)
	ctx := context.Background()

	if err := svc.Push(ctx, failedJob(), errors.New("boom")); err != nil {
		t.Fatalf("Push: %v", err)
	}
	entries, err := mem.ListDLQ(ctx, dlq.ListOpts{})
	if err != nil {
		t.Fatalf("ListDLQ: %v", err)
	}

	replayed, err := svc.Replay(ctx, entries[0].ID)
	if err == nil {
		t.Fatal("Replay should surface the marking failure")
	}
	if replayed == nil {
		t.Fatal("Replay must return the enqueued job alongside the error")
	}

	// The job really is live despite the error.
	jobs, err := mem.DequeueJobs(ctx, []string{replayed.Queue}, 1)
	if err != nil {
		t.Fatalf("DequeueJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != replayed.ID {
		t.Fatalf("dequeued %d jobs, want the replayed one", len(jobs))
	}
}

func TestServiceReplayUnknownEntry(t *testing.T) {
	s := memory.New()
	svc := dlq.NewService(s, s)

	if _, err := svc.Replay(context.Background(), id.NewDLQID()); !errors.Is(err, indexer.ErrDLQNotFound) {
		t.Fatalf("Replay unknown: got %v, want ErrDLQNotFound", err)
	}
}
