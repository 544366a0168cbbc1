package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	indexer "github.com/HungLV46/reservoir-indexer"
	"github.com/HungLV46/reservoir-indexer/id"
	"github.com/HungLV46/reservoir-indexer/job"
)

// EnqueueJob stores the job as a Hash and adds it to the queue's Sorted
// Set. Submissions carrying a dedup key held by a live job return
// indexer.ErrDuplicateJob without persisting anything.
func (s *Store) EnqueueJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	key := jobKey(jID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("indexer/redis: enqueue check exists: %w", err)
	}
	if exists > 0 {
		return indexer.ErrJobAlreadyExists
	}

	if j.DedupKey != "" {
		if err := s.claimDedup(ctx, j); err != nil {
			return err
		}
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, jobToMap(j))
	pipe.SAdd(ctx, jobIDsKey, jID)
	pipe.ZAdd(ctx, queueKey(j.Queue), goredis.Z{Score: runAtScore(j.RunAt), Member: jID})

	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("indexer/redis: enqueue job: %w", err)
	}
	return nil
}

// DequeueJobs atomically claims up to limit due jobs from the given queues.
// Each member is claimed with ZRem so concurrent pollers never double-claim.
func (s *Store) DequeueJobs(ctx context.Context, queues []string, limit int) ([]*job.Job, error) {
	now := time.Now().UTC()
	maxScore := strconv.FormatInt(now.UnixMilli(), 10)
	var jobs []*job.Job

	for _, q := range queues {
		if len(jobs) >= limit {
			break
		}
		remaining := limit - len(jobs)
		qk := queueKey(q)

		candidates, err := s.client.ZRangeByScore(ctx, qk, &goredis.ZRangeBy{
			Min:   "-inf",
			Max:   maxScore,
			Count: int64(remaining),
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("indexer/redis: dequeue zrangebyscore: %w", err)
		}

		for _, jID := range candidates {
			removed, remErr := s.client.ZRem(ctx, qk, jID).Result()
			if remErr != nil {
				return nil, fmt.Errorf("indexer/redis: dequeue claim: %w", remErr)
			}
			if removed == 0 {
				// Another poller claimed it first.
				continue
			}

			key := jobKey(jID)
			if _, hErr := s.client.HSet(ctx, key,
				"state", string(job.StateRunning),
				"started_at", now.Format(time.RFC3339Nano),
				"updated_at", now.Format(time.RFC3339Nano),
			).Result(); hErr != nil {
				return nil, fmt.Errorf("indexer/redis: dequeue update: %w", hErr)
			}

			j, getErr := s.getJobByKey(ctx, key)
			if getErr != nil {
				return nil, getErr
			}
			jobs = append(jobs, j)
		}
	}

	// Priority breaks ties within the claimed batch.
	sort.Slice(jobs, func(a, b int) bool {
		if jobs[a].Priority != jobs[b].Priority {
			return jobs[a].Priority > jobs[b].Priority
		}
		return jobs[a].RunAt.Before(jobs[b].RunAt)
	})
	return jobs, nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return s.getJobByKey(ctx, jobKey(jobID.String()))
}

// UpdateJob persists changes to an existing job and keeps the queue Sorted
// Set in sync with the job's state: pending and retrying jobs are
// (re)scheduled at their RunAt, all other states leave the queue. Terminal
// states release the job's dedup key.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	key := jobKey(jID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("indexer/redis: update job exists: %w", err)
	}
	if exists == 0 {
		return indexer.ErrJobNotFound
	}

	fields := jobToMap(j)
	fields["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	switch j.State {
	case job.StatePending, job.StateRetrying:
		pipe.ZAdd(ctx, queueKey(j.Queue), goredis.Z{Score: runAtScore(j.RunAt), Member: jID})
	default:
		pipe.ZRem(ctx, queueKey(j.Queue), jID)
	}
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("indexer/redis: update job: %w", err)
	}

	if j.DedupKey != "" && isTerminal(j.State) {
		if err := s.releaseDedup(ctx, j); err != nil {
			return err
		}
	}
	return nil
}

// DeleteJob removes a job by ID, including its queue membership and any
// dedup key it holds.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	jID := jobID.String()
	key := jobKey(jID)

	j, err := s.getJobByKey(ctx, key)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, jobIDsKey, jID)
	pipe.ZRem(ctx, queueKey(j.Queue), jID)
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("indexer/redis: delete job: %w", err)
	}

	if j.DedupKey != "" {
		if err := s.releaseDedup(ctx, j); err != nil {
			return err
		}
	}
	return nil
}

// ListJobsByState returns jobs matching the given state.
func (s *Store) ListJobsByState(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("indexer/redis: list jobs smembers: %w", err)
	}

	jobs := make([]*job.Job, 0, len(ids))
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			continue // skip missing
		}
		if j.State != state {
			continue
		}
		if opts.Queue != "" && j.Queue != opts.Queue {
			continue
		}
		jobs = append(jobs, j)
	}

	if opts.Offset > 0 && opts.Offset < len(jobs) {
		jobs = jobs[opts.Offset:]
	} else if opts.Offset >= len(jobs) && opts.Offset > 0 {
		return nil, nil
	}
	if opts.Limit > 0 && opts.Limit < len(jobs) {
		jobs = jobs[:opts.Limit]
	}
	return jobs, nil
}

// HeartbeatJob updates the heartbeat timestamp for a running job.
func (s *Store) HeartbeatJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID) error {
	key := jobKey(jobID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("indexer/redis: heartbeat exists: %w", err)
	}
	if exists == 0 {
		return indexer.ErrJobNotFound
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.client.HSet(ctx, key,
		"heartbeat_at", now,
		"worker_id", workerID.String(),
		"updated_at", now,
	).Result()
	if err != nil {
		return fmt.Errorf("indexer/redis: heartbeat job: %w", err)
	}
	return nil
}

// ReapStaleJobs returns running jobs whose last heartbeat is older than the threshold.
func (s *Store) ReapStaleJobs(ctx context.Context, threshold time.Duration) ([]*job.Job, error) {
	cutoff := time.Now().UTC().Add(-threshold)

	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("indexer/redis: reap smembers: %w", err)
	}

	var stale []*job.Job
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			continue
		}
		if j.State != job.StateRunning {
			continue
		}
		if j.HeartbeatAt != nil && j.HeartbeatAt.Before(cutoff) {
			stale = append(stale, j)
		}
	}
	return stale, nil
}

// CountJobs returns the number of jobs matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("indexer/redis: count smembers: %w", err)
	}

	var count int64
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			continue
		}
		if opts.State != "" && j.State != opts.State {
			continue
		}
		if opts.Queue != "" && j.Queue != opts.Queue {
			continue
		}
		count++
	}
	return count, nil
}

// ── helpers ──

func isLive(state job.State) bool {
	return state == job.StatePending || state == job.StateRunning || state == job.StateRetrying
}

func isTerminal(state job.State) bool {
	return !isLive(state)
}

// claimDedup takes the job's dedup key. A key held by a live job collapses
// the submission; a mapping left behind by a finished job is taken over.
func (s *Store) claimDedup(ctx context.Context, j *job.Job) error {
	dk := dedupKey(j.Queue, j.DedupKey)
	jID := j.ID.String()

	set, err := s.client.SetNX(ctx, dk, jID, 0).Result()
	if err != nil {
		return fmt.Errorf("indexer/redis: claim dedup: %w", err)
	}
	if set {
		return nil
	}

	holder, err := s.client.Get(ctx, dk).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("indexer/redis: claim dedup holder: %w", err)
	}
	if holder != "" && holder != jID {
		hj, getErr := s.getJobByKey(ctx, jobKey(holder))
		if getErr == nil && isLive(hj.State) {
			return indexer.ErrDuplicateJob
		}
	}

	if err := s.client.Set(ctx, dk, jID, 0).Err(); err != nil {
		return fmt.Errorf("indexer/redis: claim dedup takeover: %w", err)
	}
	return nil
}

// releaseDedup frees the job's dedup key if this job still holds it.
func (s *Store) releaseDedup(ctx context.Context, j *job.Job) error {
	dk := dedupKey(j.Queue, j.DedupKey)
	holder, err := s.client.Get(ctx, dk).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		return fmt.Errorf("indexer/redis: release dedup: %w", err)
	}
	if holder != j.ID.String() {
		return nil
	}
	if err := s.client.Del(ctx, dk).Err(); err != nil {
		return fmt.Errorf("indexer/redis: release dedup del: %w", err)
	}
	return nil
}

// runAtScore computes a sorted-set score from run_at. Lower score =
// dequeued first.
func runAtScore(runAt time.Time) float64 {
	return float64(runAt.UnixMilli())
}

func jobToMap(j *job.Job) map[string]interface{} {
	m := map[string]interface{}{
		"id":          j.ID.String(),
		"name":        j.Name,
		"queue":       j.Queue,
		"payload":     string(j.Payload),
		"state":       string(j.State),
		"priority":    strconv.Itoa(j.Priority),
		"max_retries": strconv.Itoa(j.MaxRetries),
		"retry_count": strconv.Itoa(j.RetryCount),
		"dedup_key":   j.DedupKey,
		"last_error":  j.LastError,
		"worker_id":   j.WorkerID.String(),
		"run_at":      j.RunAt.Format(time.RFC3339Nano),
		"timeout":     strconv.FormatInt(int64(j.Timeout), 10),
		"created_at":  j.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":  j.UpdatedAt.Format(time.RFC3339Nano),
	}
	if j.StartedAt != nil {
		m["started_at"] = j.StartedAt.Format(time.RFC3339Nano)
	}
	if j.CompletedAt != nil {
		m["completed_at"] = j.CompletedAt.Format(time.RFC3339Nano)
	}
	if j.HeartbeatAt != nil {
		m["heartbeat_at"] = j.HeartbeatAt.Format(time.RFC3339Nano)
	}
	return m
}

func (s *Store) getJobByKey(ctx context.Context, key string) (*job.Job, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("indexer/redis: get job: %w", err)
	}
	if len(vals) == 0 {
		return nil, indexer.ErrJobNotFound
	}
	return mapToJob(vals)
}

func mapToJob(m map[string]string) (*job.Job, error) {
	jID, err := id.ParseJobID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("indexer/redis: parse job id: %w", err)
	}

	priority, _ := strconv.Atoi(m["priority"])           //nolint:errcheck // best-effort parse from trusted Redis data
	maxRetries, _ := strconv.Atoi(m["max_retries"])      //nolint:errcheck // best-effort parse from trusted Redis data
	retryCount, _ := strconv.Atoi(m["retry_count"])      //nolint:errcheck // best-effort parse from trusted Redis data
	timeout, _ := strconv.ParseInt(m["timeout"], 10, 64) //nolint:errcheck // best-effort parse from trusted Redis data

	runAt, _ := time.Parse(time.RFC3339Nano, m["run_at"])         //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	j := &job.Job{
		Entity: indexer.Entity{
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		ID:         jID,
		Name:       m["name"],
		Queue:      m["queue"],
		Payload:    []byte(m["payload"]),
		State:      job.State(m["state"]),
		Priority:   priority,
		MaxRetries: maxRetries,
		RetryCount: retryCount,
		DedupKey:   m["dedup_key"],
		LastError:  m["last_error"],
		RunAt:      runAt,
		Timeout:    time.Duration(timeout),
	}

	if wid := m["worker_id"]; wid != "" {
		j.WorkerID, _ = id.ParseWorkerID(wid) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	if v := m["started_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.StartedAt = &t
	}
	if v := m["completed_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.CompletedAt = &t
	}
	if v := m["heartbeat_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.HeartbeatAt = &t
	}

	return j, nil
}
