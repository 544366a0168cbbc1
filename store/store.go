// Package store defines the aggregate persistence interface. Each subsystem
// (job, dlq, mints) defines its own store interface; the composite Store
// composes the ones every backend must carry. Backends: Postgres, Bun,
// Redis, and Memory.
package store

import (
	"context"

	"github.com/HungLV46/reservoir-indexer/dlq"
	"github.com/HungLV46/reservoir-indexer/job"
)

// Store is the aggregate persistence interface every backend implements.
//
// Backends may additionally implement mints.Store and metadata.Cursor;
// the engine discovers those capabilities by type assertion at build time,
// so a deployment can split the job broker and the domain store across
// different backends (e.g. Redis for jobs, Bun/Postgres for mints).
type Store interface {
	job.Store
	dlq.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
