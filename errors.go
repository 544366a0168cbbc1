package indexer

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("indexer: no store configured")
	ErrStoreClosed     = errors.New("indexer: store closed")
	ErrMigrationFailed = errors.New("indexer: migration failed")

	// Not found errors.
	ErrJobNotFound    = errors.New("indexer: job not found")
	ErrMintNotFound   = errors.New("indexer: mint configuration not found")
	ErrDLQNotFound    = errors.New("indexer: dlq entry not found")
	ErrCronNotFound   = errors.New("indexer: cron entry not found")
	ErrWorkerNotFound = errors.New("indexer: worker not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("indexer: job already exists")
	// ErrDuplicateJob signals that a submission carried a dedup key already
	// held by a pending or executing job on the same queue. The engine
	// treats it as an idempotent no-op, not a failure.
	ErrDuplicateJob  = errors.New("indexer: duplicate job submission")
	ErrDuplicateCron = errors.New("indexer: duplicate cron entry")

	// State errors.
	ErrInvalidState       = errors.New("indexer: invalid state transition")
	ErrMaxRetriesExceeded = errors.New("indexer: max retries exceeded")
)
