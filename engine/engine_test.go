package engine_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	indexer "github.com/HungLV46/reservoir-indexer"
	"github.com/HungLV46/reservoir-indexer/cron"
	"github.com/HungLV46/reservoir-indexer/engine"
	"github.com/HungLV46/reservoir-indexer/job"
	"github.com/HungLV46/reservoir-indexer/metadata"
	"github.com/HungLV46/reservoir-indexer/mints"
	"github.com/HungLV46/reservoir-indexer/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildEngine(t *testing.T, opts ...engine.Option) (*engine.Engine, *memory.Store) {
	t.Helper()
	s := memory.New()
	ix, err := indexer.New(
		indexer.WithStore(s),
		indexer.WithLogger(testLogger()),
		indexer.WithConcurrency(2),
		indexer.WithQueues([]string{"default", metadata.QueueProcessURI, mints.QueueMintDetection, mints.QueueMintRefresh}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	eng, err := engine.Build(ix, opts...)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return eng, s
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

type greetPayload struct {
	Name string `json:"name"`
}

func TestEngineProcessesTypedJob(t *testing.T) {
	eng, _ := buildEngine(t)
	ctx := context.Background()

	var handled atomic.Int64
	engine.Register(eng, job.NewDefinition("greet", func(ctx context.Context, p greetPayload) (any, error) {
		if p.Name != "Alice" {
			return nil, fmt.Errorf("unexpected name %q", p.Name)
		}
		handled.Add(1)
		return nil, nil
	}))

	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer eng.Stop(ctx)

	j, err := engine.Enqueue(ctx, eng, "greet", greetPayload{Name: "Alice"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if j == nil {
		t.Fatal("Enqueue returned nil job")
	}

	waitFor(t, 3*time.Second, func() bool { return handled.Load() == 1 })
}

func TestEnqueueDedupCollapses(t *testing.T) {
	eng, _ := buildEngine(t)
	ctx := context.Background()

	first, err := eng.EnqueueRaw(ctx, "greet", nil, job.WithDedupKey("greet:alice"))
	if err != nil {
		t.Fatalf("first EnqueueRaw: %v", err)
	}
	if first == nil {
		t.Fatal("first submission should create a job")
	}

	second, err := eng.EnqueueRaw(ctx, "greet", nil, job.WithDedupKey("greet:alice"))
	if err != nil {
		t.Fatalf("second EnqueueRaw: %v", err)
	}
	if second != nil {
		t.Fatalf("second submission should collapse, got job %s", second.ID)
	}
}

func TestEnqueueDelaySetsRunAt(t *testing.T) {
	eng, _ := buildEngine(t)
	ctx := context.Background()

	before := time.Now().UTC()
	j, err := eng.EnqueueRaw(ctx, "greet", nil, job.WithDelay(time.Hour))
	if err != nil {
		t.Fatalf("EnqueueRaw: %v", err)
	}
	if got := j.RunAt.Sub(before); got < 59*time.Minute {
		t.Fatalf("RunAt delayed by %s, want ~1h", got)
	}
}

// ──────────────────────────────────────────────────
// Metadata pipeline
// ──────────────────────────────────────────────────

type stubResolver struct{}

func (stubResolver) ResolveBatch(_ context.Context, items []metadata.PendingURI) ([]metadata.ResolvedURI, error) {
	out := make([]metadata.ResolvedURI, 0, len(items))
	for _, it := range items {
		out = append(out, metadata.ResolvedURI{
			Contract: it.Contract,
			TokenID:  it.TokenID,
			URI:      "ipfs://" + it.TokenID,
		})
	}
	return out, nil
}

type collectingDownstream struct {
	mu       sync.Mutex
	received []metadata.ResolvedURI
}

func (d *collectingDownstream) SubmitBulk(_ context.Context, items []metadata.ResolvedURI) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.received = append(d.received, items...)
	return nil
}

func (d *collectingDownstream) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.received)
}

func TestMetadataPipelineDrainsLedger(t *testing.T) {
	eng, s := buildEngine(t)
	ctx := context.Background()

	const total = 120
	items := make([]metadata.PendingURI, 0, total)
	for i := 0; i < total; i++ {
		items = append(items, metadata.PendingURI{
			Contract: "0xabc",
			TokenID:  fmt.Sprintf("%d", i),
		})
	}
	if err := s.Add(ctx, items...); err != nil {
		t.Fatalf("seed cursor: %v", err)
	}

	downstream := &collectingDownstream{}
	if err := eng.RegisterMetadataPipeline(stubResolver{}, downstream); err != nil {
		t.Fatalf("RegisterMetadataPipeline: %v", err)
	}

	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer eng.Stop(ctx)

	if _, err := eng.TriggerMetadataDrain(ctx); err != nil {
		t.Fatalf("TriggerMetadataDrain: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool { return downstream.count() == total })

	remaining, err := s.Remaining(ctx)
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("ledger still holds %d items after drain", remaining)
	}
}

// ──────────────────────────────────────────────────
// Mint pipeline
// ──────────────────────────────────────────────────

type stubSignatures struct{}

func (stubSignatures) Resolve(context.Context, []byte) (*mints.DecodedCall, error) {
	return nil, mints.ErrNoSignature
}

type stubSimulator struct{}

func (stubSimulator) SimulateAndUpsert(context.Context, *mints.CollectionMint) error { return nil }

func TestRegisterMintPipelineRegistersJobs(t *testing.T) {
	eng, _ := buildEngine(t)

	if err := eng.RegisterMintPipeline(stubSignatures{}, nil, stubSimulator{}); err != nil {
		t.Fatalf("RegisterMintPipeline: %v", err)
	}

	for _, name := range []string{mints.JobMintDetect, mints.JobMintRefresh} {
		if _, ok := eng.Registry().Get(name); !ok {
			t.Fatalf("job %q not registered", name)
		}
	}
}

// ──────────────────────────────────────────────────
// Cron
// ──────────────────────────────────────────────────

func TestRegisterCronIsIdempotent(t *testing.T) {
	eng, _ := buildEngine(t)

	def := &cron.Definition[mints.RefreshPayload]{
		Name:     "mint-refresh:0xabc",
		Schedule: "@every 1h",
		JobName:  mints.JobMintRefresh,
		Payload:  mints.RefreshPayload{Collection: "0xabc"},
	}
	if err := engine.RegisterCron(eng, def); err != nil {
		t.Fatalf("first RegisterCron: %v", err)
	}
	if err := engine.RegisterCron(eng, def); err != nil {
		t.Fatalf("duplicate RegisterCron should be a no-op, got %v", err)
	}
	if got := len(eng.Scheduler().Entries()); got != 1 {
		t.Fatalf("Entries() = %d, want 1", got)
	}
}

func TestScheduleMintRefresh(t *testing.T) {
	eng, _ := buildEngine(t)

	if err := eng.ScheduleMintRefresh("0xdef", "@every 30m"); err != nil {
		t.Fatalf("ScheduleMintRefresh: %v", err)
	}
	entries := eng.Scheduler().Entries()
	if len(entries) != 1 {
		t.Fatalf("Entries() = %d, want 1", len(entries))
	}
	if entries[0].JobName != mints.JobMintRefresh {
		t.Fatalf("entry job name = %q", entries[0].JobName)
	}
}
