// Package indexer provides the reliable job-processing core of a blockchain
// activity indexer: a queue-backed execution runtime with configurable
// concurrency, retry/backoff, throttling-aware rescheduling and
// self-chaining pagination, plus the workloads that run on top of it
// (calldata mint detection, on-chain metadata URI processing).
//
// The indexer is designed as a library, not a service. Configure a store,
// register job definitions as ordinary Go functions, and start the engine.
//
// # Quick Start
//
//	ix, err := indexer.New(
//	    indexer.WithStore(redisStore),
//	    indexer.WithConcurrency(20),
//	)
//
// # Architecture
//
// Each subsystem (job, dlq, mints, metadata) defines its own store
// interface; a single backend implements the ones it serves. Broker-backed
// job stores exist for Redis and Postgres, mint configurations persist
// through a Bun/Postgres store, and an in-memory store backs unit tests.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package indexer
