package redis

// Redis key naming conventions for indexer data.
// All keys are prefixed with "indexer:" to avoid collisions.

const keyPrefix = "indexer:"

// ── Job keys ──

// jobKey returns the key for a job entity: indexer:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// queueKey returns the Sorted Set key for a queue: indexer:queue:{name}
func queueKey(name string) string { return keyPrefix + "queue:" + name }

// jobIDsKey is the Set tracking all job IDs for enumeration.
const jobIDsKey = keyPrefix + "job_ids"

// dedupKey maps a (queue, dedup key) pair to the job ID currently holding
// it: indexer:dedup:{queue}:{key}. The mapping lives only while that job
// is pending, running, or retrying.
func dedupKey(queue, key string) string {
	return keyPrefix + "dedup:" + queue + ":" + key
}

// ── DLQ keys ──

// dlqKey returns the key for a DLQ entry entity: indexer:dlq:{id}
func dlqKey(id string) string { return keyPrefix + "dlq:" + id }

// dlqIDsKey is the Set tracking all DLQ entry IDs for enumeration.
const dlqIDsKey = keyPrefix + "dlq_ids"

// ── Metadata keys ──

// metadataPendingKey is the List holding JSON-encoded pending token URIs,
// front of the list first.
const metadataPendingKey = keyPrefix + "metadata:pending"
