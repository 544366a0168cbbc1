// Package queue provides per-queue execution policy: concurrency ceilings,
// token-bucket rate limits, execution timeouts, retry policy, and the
// submission dedup window.
//
// The [Manager] enforces concurrency and rate limits on the local worker
// pool — limits live in the runtime, not in the broker. A stalled queue
// never starves another queue's workers: each queue's ceiling is
// independent and a denied Acquire returns the job to the broker with a
// small delay instead of blocking a worker goroutine.
package queue
