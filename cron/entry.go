// Package cron schedules recurring job enqueues, such as the periodic
// re-validation of detected mint configurations. Entries are registered at
// process start and live in memory; the durable part of the work is the
// job each tick enqueues, not the schedule itself.
package cron

import (
	"time"

	indexer "github.com/HungLV46/reservoir-indexer"
	"github.com/HungLV46/reservoir-indexer/id"
	"github.com/HungLV46/reservoir-indexer/job"
)

// Entry represents a scheduled recurring enqueue.
type Entry struct {
	indexer.Entity

	ID        id.CronID  `json:"id"`
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	JobName   string     `json:"job_name"`
	Payload   []byte     `json:"payload,omitempty"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
	Enabled   bool       `json:"enabled"`

	// opts are applied to every job this entry enqueues (queue, dedup
	// key, retry budget).
	opts []job.Option
}

// Definition is a typed cron definition. T is the payload type
// (must be JSON-serializable).
type Definition[T any] struct {
	// Name is the unique identifier for this cron entry.
	Name string

	// Schedule is a cron expression (e.g., "*/5 * * * *" or "@every 30s").
	Schedule string

	// JobName is the name of the job to enqueue on each tick.
	JobName string

	// Payload is the default payload to enqueue with the job.
	Payload T

	// Opts are applied to every enqueued job.
	Opts []job.Option
}
