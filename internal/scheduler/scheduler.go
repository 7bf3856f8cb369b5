package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// JobFunc runs when a scheduled job fires. ctx is cancelled when the
// scheduler stops.
type JobFunc func(ctx context.Context)

// Scheduler runs cron jobs on behalf of owners (cogs). A run that is still
// going when its next tick arrives is skipped.
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	jobs   map[string][]cron.EntryID // owner → entry IDs
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// New creates a new scheduler.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		jobs:   make(map[string][]cron.EntryID),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Start begins the cron scheduler. Blocks until context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", s.JobCount())

	<-ctx.Done()
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return ctx.Err()
}

// AddJob adds a job for owner. The schedule is a standard 5-field cron
// expression or a descriptor such as "@every 60s".
func (s *Scheduler) AddJob(owner, schedule string, fn JobFunc) (cron.EntryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(owner, schedule, fn)
}

// Replace removes owner's jobs and adds one with the new schedule.
func (s *Scheduler) Replace(owner, schedule string, fn JobFunc) (cron.EntryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(owner)
	return s.addLocked(owner, schedule, fn)
}

func (s *Scheduler) addLocked(owner, schedule string, fn JobFunc) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(schedule, func() {
		s.logger.Debug("cron fired", "owner", owner)
		fn(s.ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("scheduler: invalid schedule %q: %w", schedule, err)
	}

	s.jobs[owner] = append(s.jobs[owner], id)
	s.logger.Info("job registered", "owner", owner, "schedule", schedule)
	return id, nil
}

// RemoveOwner removes all scheduled jobs for an owner.
func (s *Scheduler) RemoveOwner(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(owner)
}

func (s *Scheduler) removeLocked(owner string) {
	for _, id := range s.jobs[owner] {
		s.cron.Remove(id)
	}
	if len(s.jobs[owner]) > 0 {
		s.logger.Info("jobs removed", "owner", owner)
	}
	delete(s.jobs, owner)
}

// ListJobs returns all entry IDs for an owner.
func (s *Scheduler) ListJobs(owner string) []cron.EntryID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]cron.EntryID(nil), s.jobs[owner]...)
}

// JobCount returns the total number of scheduled jobs.
func (s *Scheduler) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, ids := range s.jobs {
		total += len(ids)
	}
	return total
}
