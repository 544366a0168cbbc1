package dlq

import (
	"context"
	"time"

	indexer "github.com/HungLV46/reservoir-indexer"
	"github.com/HungLV46/reservoir-indexer/id"
	"github.com/HungLV46/reservoir-indexer/job"
)

// Replay re-enqueues a DLQ entry as a new pending job and marks the
// entry as replayed. The new job gets a fresh ID, zero retry count,
// and runs immediately.
//
// A non-nil job alongside a non-nil error means the job was enqueued
// but the entry could not be marked replayed; a later Replay of the
// same entry would enqueue it again.
func (s *Service) Replay(ctx context.Context, entryID id.DLQID) (*job.Job, error) {
	entry, err := s.store.GetDLQ(ctx, entryID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	j := &job.Job{
		Entity:     indexer.NewEntity(),
		ID:         id.NewJobID(),
		Name:       entry.JobName,
		Queue:      entry.Queue,
		Payload:    entry.Payload,
		State:      job.StatePending,
		MaxRetries: entry.MaxRetries,
		RunAt:      now,
	}

	if err := s.jobStore.EnqueueJob(ctx, j); err != nil {
		return nil, err
	}

	if err := s.store.ReplayDLQ(ctx, entryID); err != nil {
		// The job is already live; surface the partial failure with it.
		return j, err
	}

	return j, nil
}
