package ext_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/HungLV46/reservoir-indexer/ext"
	"github.com/HungLV46/reservoir-indexer/id"
	"github.com/HungLV46/reservoir-indexer/job"
	"github.com/HungLV46/reservoir-indexer/mints"
)

// recordingExtension implements every hook and records which ones fired.
type recordingExtension struct {
	events []string
	err    error
}

func (r *recordingExtension) Name() string { return "recording" }

func (r *recordingExtension) record(event string) error {
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingExtension) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	return r.record("enqueued")
}

func (r *recordingExtension) OnJobStarted(ctx context.Context, j *job.Job) error {
	return r.record("started")
}

func (r *recordingExtension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	return r.record("completed")
}

func (r *recordingExtension) OnJobFailed(ctx context.Context, j *job.Job, err error) error {
	return r.record("failed")
}

func (r *recordingExtension) OnJobRetrying(ctx context.Context, j *job.Job, attempt int, nextRunAt time.Time) error {
	return r.record("retrying")
}

func (r *recordingExtension) OnJobRescheduled(ctx context.Context, j *job.Job, delay time.Duration) error {
	return r.record("rescheduled")
}

func (r *recordingExtension) OnJobDLQ(ctx context.Context, j *job.Job, err error) error {
	return r.record("dlq")
}

func (r *recordingExtension) OnMintDetected(ctx context.Context, m *mints.CollectionMint) error {
	return r.record("mint-detected")
}

func (r *recordingExtension) OnCronFired(ctx context.Context, entryName string, jobID id.JobID) error {
	return r.record("cron-fired")
}

func (r *recordingExtension) OnShutdown(ctx context.Context) error {
	return r.record("shutdown")
}

// enqueueOnlyExtension opts in to a single hook.
type enqueueOnlyExtension struct {
	count int
}

func (e *enqueueOnlyExtension) Name() string { return "enqueue-only" }

func (e *enqueueOnlyExtension) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	e.count++
	return nil
}

func TestRegistryEmitsToInterestedExtensions(t *testing.T) {
	reg := ext.NewRegistry(slog.Default())
	all := &recordingExtension{}
	one := &enqueueOnlyExtension{}
	reg.Register(all)
	reg.Register(one)

	ctx := context.Background()
	j := &job.Job{ID: id.NewJobID(), Name: "noop"}

	reg.EmitJobEnqueued(ctx, j)
	reg.EmitJobStarted(ctx, j)
	reg.EmitJobCompleted(ctx, j, time.Millisecond)
	reg.EmitJobFailed(ctx, j, errors.New("boom"))
	reg.EmitJobRetrying(ctx, j, 1, time.Now())
	reg.EmitJobRescheduled(ctx, j, time.Second)
	reg.EmitJobDLQ(ctx, j, errors.New("boom"))
	reg.EmitMintDetected(ctx, &mints.CollectionMint{Collection: "0xc0"})
	reg.EmitCronFired(ctx, "refresh", id.NewJobID())
	reg.EmitShutdown(ctx)

	want := []string{
		"enqueued", "started", "completed", "failed", "retrying",
		"rescheduled", "dlq", "mint-detected", "cron-fired", "shutdown",
	}
	if len(all.events) != len(want) {
		t.Fatalf("events: got %v, want %v", all.events, want)
	}
	for i := range want {
		if all.events[i] != want[i] {
			t.Errorf("event %d: got %q, want %q", i, all.events[i], want[i])
		}
	}

	if one.count != 1 {
		t.Errorf("single-hook extension: got %d enqueued events, want 1", one.count)
	}
}

func TestRegistryHookErrorsDoNotPropagate(t *testing.T) {
	reg := ext.NewRegistry(slog.Default())
	failing := &recordingExtension{err: errors.New("hook broke")}
	reg.Register(failing)

	// Emits must swallow hook errors; a broken extension cannot take the
	// pipeline down.
	reg.EmitJobEnqueued(context.Background(), &job.Job{ID: id.NewJobID(), Name: "noop"})

	if len(failing.events) != 1 {
		t.Fatalf("expected the hook to have run once, got %v", failing.events)
	}
}

func TestRegistryExtensionsReturnsRegistered(t *testing.T) {
	reg := ext.NewRegistry(slog.Default())
	reg.Register(&enqueueOnlyExtension{})

	exts := reg.Extensions()
	if len(exts) != 1 || exts[0].Name() != "enqueue-only" {
		t.Fatalf("Extensions: got %v", exts)
	}
}
