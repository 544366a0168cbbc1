package mints

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/HungLV46/reservoir-indexer/job"
)

// Queue names for the mint pipeline.
const (
	QueueMintDetection = "mint-detection"
	QueueMintRefresh   = "mint-refresh"
)

// Job names for the mint pipeline.
const (
	JobMintDetect  = "mints.detect"
	JobMintRefresh = "mints.refresh"
)

// DetectPayload is the input to a detection run.
type DetectPayload struct {
	Collection   string      `json:"collection"`
	Tx           Transaction `json:"tx"`
	PricePerUnit string      `json:"pricePerUnit"`
	UnitsMinted  uint64      `json:"unitsMinted"`
}

// RefreshPayload asks for a re-validation pass over one collection.
type RefreshPayload struct {
	Collection string `json:"collection"`
}

// DetectionJob builds the job definition that runs mint detection and
// persists the result. notify, when non-nil, is invoked after a successful
// upsert; the composition root uses it to fan the detection out to
// lifecycle hooks.
func DetectionJob(detector *Detector, store Store, notify func(ctx context.Context, m *CollectionMint), logger *slog.Logger) *job.Definition[DetectPayload] {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "mint-detection-job")

	return job.NewDefinition(JobMintDetect,
		func(ctx context.Context, p DetectPayload) (any, error) {
			m, err := detector.Detect(ctx, p.Collection, p.Tx, p.PricePerUnit, p.UnitsMinted)
			if err != nil {
				return nil, err
			}
			if m == nil {
				// Absence of detection is an expected outcome.
				log.Debug("no mint detected", slog.String("collection", p.Collection))
				return nil, nil
			}
			if err := store.UpsertMint(ctx, m); err != nil {
				return nil, fmt.Errorf("upserting configuration: %w", err)
			}
			if notify != nil {
				notify(ctx, m)
			}
			return nil, nil
		},
		job.WithQueue(QueueMintDetection),
		job.WithMaxRetries(3),
		job.WithTimeout(30*time.Second),
	)
}

// RefreshJob builds the job definition that re-validates a collection's
// detected configurations.
func RefreshJob(coordinator *RefreshCoordinator) *job.Definition[RefreshPayload] {
	return job.NewDefinition(JobMintRefresh,
		func(ctx context.Context, p RefreshPayload) (any, error) {
			return nil, coordinator.Refresh(ctx, p.Collection)
		},
		job.WithQueue(QueueMintRefresh),
		job.WithMaxRetries(3),
		job.WithTimeout(2*time.Minute),
	)
}
