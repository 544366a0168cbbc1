package cron

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	indexer "github.com/HungLV46/reservoir-indexer"
	"github.com/HungLV46/reservoir-indexer/id"
	"github.com/HungLV46/reservoir-indexer/job"
)

// EnqueueFunc is the callback the scheduler uses to enqueue jobs.
// This breaks the import cycle: the engine provides the implementation.
// A Nil job ID with a nil error means the submission collapsed against a
// live dedup key.
type EnqueueFunc func(ctx context.Context, name string, payload []byte, opts ...job.Option) (id.JobID, error)

// Emitter emits cron lifecycle events.
// ext.Registry satisfies this interface via EmitCronFired.
type Emitter interface {
	EmitCronFired(ctx context.Context, entryName string, jobID id.JobID)
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTickInterval sets how often the scheduler checks for due entries.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.tickInterval = d }
}

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression and returns the schedule.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// Scheduler runs registered entries on a tick loop, enqueueing each
// entry's job when its schedule comes due.
type Scheduler struct {
	enqueue EnqueueFunc
	emitter Emitter
	logger  *slog.Logger

	tickInterval time.Duration

	mu       sync.Mutex
	entries  map[string]*Entry
	parsed   map[string]cronlib.Schedule
	running  bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a Scheduler.
func NewScheduler(enqueue EnqueueFunc, emitter Emitter, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		enqueue:      enqueue,
		emitter:      emitter,
		logger:       logger.With("component", "cron"),
		tickInterval: time.Second,
		entries:      make(map[string]*Entry),
		parsed:       make(map[string]cronlib.Schedule),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a recurring enqueue. opts are applied to every job the
// entry enqueues. Returns indexer.ErrDuplicateCron when the name is taken
// and an error when the expression does not parse.
func (s *Scheduler) Add(name, expr, jobName string, payload []byte, opts ...job.Option) error {
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return fmt.Errorf("parsing schedule %q: %w", expr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return indexer.ErrDuplicateCron
	}

	next := schedule.Next(time.Now().UTC())
	s.entries[name] = &Entry{
		Entity:    indexer.NewEntity(),
		ID:        id.NewCronID(),
		Name:      name,
		Schedule:  expr,
		JobName:   jobName,
		Payload:   payload,
		NextRunAt: &next,
		Enabled:   true,
		opts:      opts,
	}
	s.parsed[name] = schedule

	s.logger.Info("cron entry registered",
		slog.String("entry", name),
		slog.String("schedule", expr),
		slog.String("job", jobName),
		slog.Time("next_run", next),
	)
	return nil
}

// RegisterDefinition registers a typed cron definition, marshalling its
// payload once at registration time.
func RegisterDefinition[T any](s *Scheduler, def *Definition[T]) error {
	payload, err := json.Marshal(def.Payload)
	if err != nil {
		return fmt.Errorf("marshal cron payload for %q: %w", def.Name, err)
	}
	return s.Add(def.Name, def.Schedule, def.JobName, payload, def.Opts...)
}

// Remove unregisters an entry. Returns indexer.ErrCronNotFound when the
// name is unknown.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; !ok {
		return indexer.ErrCronNotFound
	}
	delete(s.entries, name)
	delete(s.parsed, name)
	return nil
}

// Entries returns a snapshot of registered entries, sorted by name.
func (s *Scheduler) Entries() []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// Start launches the tick loop. It returns immediately.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.running = true

	s.wg.Add(1)
	go s.tickLoop()

	s.logger.Info("cron scheduler started",
		slog.Duration("tick_interval", s.tickInterval),
		slog.Int("entries", len(s.entries)),
	)
	return nil
}

// Stop halts the tick loop and waits for it to finish.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("cron scheduler stopped")
	return nil
}

func (s *Scheduler) tickLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(time.Now().UTC())
		}
	}
}

// tick fires every due entry once and advances its schedule.
func (s *Scheduler) tick(now time.Time) {
	s.mu.Lock()
	var due []*Entry
	for name, e := range s.entries {
		if !e.Enabled || e.NextRunAt == nil || e.NextRunAt.After(now) {
			continue
		}
		n := now
		e.LastRunAt = &n
		next := s.parsed[name].Next(now)
		e.NextRunAt = &next
		due = append(due, e)
	}
	s.mu.Unlock()

	for _, e := range due {
		s.fire(e, now)
	}
}

func (s *Scheduler) fire(e *Entry, now time.Time) {
	ctx := context.Background()

	jobID, err := s.enqueue(ctx, e.JobName, e.Payload, e.opts...)
	if err != nil {
		if errors.Is(err, indexer.ErrDuplicateJob) {
			s.logger.Debug("cron enqueue collapsed against live duplicate",
				slog.String("entry", e.Name),
				slog.String("job", e.JobName),
			)
			return
		}
		s.logger.Error("cron enqueue failed",
			slog.String("entry", e.Name),
			slog.String("job", e.JobName),
			slog.String("error", err.Error()),
		)
		return
	}
	if jobID.IsNil() {
		return
	}

	if s.emitter != nil {
		s.emitter.EmitCronFired(ctx, e.Name, jobID)
	}

	s.logger.Debug("cron entry fired",
		slog.String("entry", e.Name),
		slog.String("job", e.JobName),
		slog.String("job_id", jobID.String()),
		slog.Time("at", now),
	)
}
