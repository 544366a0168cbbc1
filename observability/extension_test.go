package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/HungLV46/reservoir-indexer/id"
	"github.com/HungLV46/reservoir-indexer/job"
	"github.com/HungLV46/reservoir-indexer/mints"
	"github.com/HungLV46/reservoir-indexer/observability"
)

func TestMetricsExtensionCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetricsExtension(reg)

	ctx := context.Background()
	j := &job.Job{ID: id.NewJobID(), Name: "noop", Queue: "default"}

	if err := m.OnJobEnqueued(ctx, j); err != nil {
		t.Fatalf("OnJobEnqueued: %v", err)
	}
	if err := m.OnJobEnqueued(ctx, j); err != nil {
		t.Fatalf("OnJobEnqueued: %v", err)
	}
	if err := m.OnJobCompleted(ctx, j, 10*time.Millisecond); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}
	if err := m.OnJobRetrying(ctx, j, 1, time.Now()); err != nil {
		t.Fatalf("OnJobRetrying: %v", err)
	}
	if err := m.OnJobRescheduled(ctx, j, time.Second); err != nil {
		t.Fatalf("OnJobRescheduled: %v", err)
	}
	if err := m.OnJobFailed(ctx, j, errors.New("boom")); err != nil {
		t.Fatalf("OnJobFailed: %v", err)
	}
	if err := m.OnJobDLQ(ctx, j, errors.New("boom")); err != nil {
		t.Fatalf("OnJobDLQ: %v", err)
	}
	if err := m.OnMintDetected(ctx, &mints.CollectionMint{Collection: "0xc0"}); err != nil {
		t.Fatalf("OnMintDetected: %v", err)
	}
	if err := m.OnCronFired(ctx, "refresh", id.NewJobID()); err != nil {
		t.Fatalf("OnCronFired: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	want := map[string]float64{
		"indexer_jobs_enqueued_total":      2,
		"indexer_jobs_completed_total":     1,
		"indexer_jobs_retried_total":       1,
		"indexer_jobs_rescheduled_total":   1,
		"indexer_jobs_failed_total":        1,
		"indexer_jobs_dead_lettered_total": 1,
		"indexer_mints_detected_total":     1,
		"indexer_cron_fired_total":         1,
	}
	seen := make(map[string]bool)
	for _, mf := range families {
		if expected, ok := want[mf.GetName()]; ok {
			seen[mf.GetName()] = true
			var total float64
			for _, metric := range mf.GetMetric() {
				total += metric.GetCounter().GetValue()
			}
			if total != expected {
				t.Errorf("%s: got %v, want %v", mf.GetName(), total, expected)
			}
		}
	}
	for name := range want {
		if !seen[name] {
			t.Errorf("metric %s not gathered", name)
		}
	}

	var histogramSamples uint64
	for _, mf := range families {
		if mf.GetName() != "indexer_jobs_duration_seconds" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			histogramSamples += metric.GetHistogram().GetSampleCount()
		}
	}
	if histogramSamples != 1 {
		t.Errorf("duration histogram samples: got %d, want 1", histogramSamples)
	}
}
