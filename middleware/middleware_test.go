package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/HungLV46/reservoir-indexer/id"
	"github.com/HungLV46/reservoir-indexer/job"
	"github.com/HungLV46/reservoir-indexer/middleware"
)

func testJob() *job.Job {
	return &job.Job{
		ID:    id.NewJobID(),
		Name:  "test",
		Queue: "default",
	}
}

func TestChain_OrderIsOutsideIn(t *testing.T) {
	var order []string

	mk := func(name string) middleware.Middleware {
		return func(ctx context.Context, _ *job.Job, next middleware.Handler) error {
			order = append(order, name+":before")
			err := next(ctx)
			order = append(order, name+":after")
			return err
		}
	}

	chain := middleware.Chain(mk("outer"), mk("inner"))
	err := chain(context.Background(), testJob(), func(context.Context) error {
		order = append(order, "handler")
		return nil
	})
	if err != nil {
		t.Fatalf("chain error: %v", err)
	}

	want := []string{"outer:before", "inner:before", "handler", "inner:after", "outer:after"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestChain_Empty(t *testing.T) {
	chain := middleware.Chain()
	called := false
	err := chain(context.Background(), testJob(), func(context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("empty chain must invoke handler directly (called=%v, err=%v)", called, err)
	}
}

func TestRecover_ConvertsPanicToError(t *testing.T) {
	mw := middleware.Recover(slog.Default())

	err := mw(context.Background(), testJob(), func(context.Context) error {
		panic("boom")
	})
	if err == nil {
		t.Fatal("panic should surface as an error")
	}
}

func TestRecover_PassesThroughErrors(t *testing.T) {
	mw := middleware.Recover(slog.Default())
	want := errors.New("handler error")

	err := mw(context.Background(), testJob(), func(context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
}

func TestTimeout_CancelsSlowHandler(t *testing.T) {
	mw := middleware.Timeout(slog.Default())

	j := testJob()
	j.Timeout = 20 * time.Millisecond

	err := mw(context.Background(), j, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
			return nil
		}
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestTimeout_ZeroMeansNoDeadline(t *testing.T) {
	mw := middleware.Timeout(slog.Default())

	err := mw(context.Background(), testJob(), func(ctx context.Context) error {
		if _, hasDeadline := ctx.Deadline(); hasDeadline {
			t.Error("context should carry no deadline when job timeout is zero")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLogging_PassesThroughOutcome(t *testing.T) {
	mw := middleware.Logging(slog.Default())
	want := errors.New("bad")

	if err := mw(context.Background(), testJob(), func(context.Context) error { return nil }); err != nil {
		t.Errorf("success path err = %v", err)
	}
	if err := mw(context.Background(), testJob(), func(context.Context) error { return want }); !errors.Is(err, want) {
		t.Errorf("failure path err = %v, want %v", err, want)
	}
}

func TestMetrics_IsPassThroughWithoutProvider(t *testing.T) {
	mw := middleware.Metrics()
	want := errors.New("observed")

	if err := mw(context.Background(), testJob(), func(context.Context) error { return want }); !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
}

func TestTracing_IsPassThroughWithoutProvider(t *testing.T) {
	mw := middleware.Tracing()

	if err := mw(context.Background(), testJob(), func(context.Context) error { return nil }); err != nil {
		t.Errorf("err = %v", err)
	}
}
