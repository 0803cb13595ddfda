// Package scheduler runs recurring archive jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ibeckermayer/xarchive/internal/logger"
)

// DefaultJobTimeout bounds a single scheduled run.
const DefaultJobTimeout = 30 * time.Minute

// Job represents a scheduled task
type Job func(ctx context.Context) error

// Scheduler manages periodic tasks. Jobs run with a context derived from the
// one passed to Start, so cancelling it aborts in-flight runs.
type Scheduler struct {
	cron     *cron.Cron
	mu       sync.Mutex
	jobs     map[string]cron.EntryID
	running  map[string]bool
	timezone *time.Location
	timeout  time.Duration
	ctx      context.Context
}

// New creates a new scheduler with the given timezone ("Local" or an IANA name).
func New(timezone string) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}

	c := cron.New(cron.WithLocation(loc))

	return &Scheduler{
		cron:     c,
		jobs:     make(map[string]cron.EntryID),
		running:  make(map[string]bool),
		timezone: loc,
		timeout:  DefaultJobTimeout,
		ctx:      context.Background(),
	}, nil
}

// SetTimeout changes the per-run timeout.
func (s *Scheduler) SetTimeout(d time.Duration) {
	s.timeout = d
}

// AddJob adds a job with a standard five-field cron schedule or a
// descriptor such as "@hourly". Names must be unique.
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already scheduled", name)
	}

	entryID, err := s.cron.AddFunc(schedule, func() { s.execute(name, job) })
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.jobs[name] = entryID
	logger.Info("scheduled job", "job", name, "schedule", schedule)
	return nil
}

// execute runs job unless a previous run of the same job is still going.
// Two runs against one target would share checkpoint files.
func (s *Scheduler) execute(name string, job Job) {
	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		logger.Warn("skipping job, previous run still active", "job", name)
		return
	}
	s.running[name] = true
	parent := s.ctx
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	logger.Info("starting job", "job", name)
	start := time.Now()

	if err := job(ctx); err != nil {
		logger.Error("job failed", "job", name, "error", err)
		return
	}
	logger.Info("job completed", "job", name, "elapsed", time.Since(start).Round(time.Second))
}

// RemoveJob removes a scheduled job
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
		logger.Info("removed job", "job", name)
	}
}

// Start begins running scheduled jobs under ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	logger.Debug("starting scheduler", "jobs", len(s.jobs), "timezone", s.timezone)
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once running
// jobs have finished.
func (s *Scheduler) Stop() context.Context {
	logger.Debug("stopping scheduler")
	return s.cron.Stop()
}

// RunNow immediately executes a registered job outside its schedule.
func (s *Scheduler) RunNow(name string, job Job) {
	s.execute(name, job)
}

// ListJobs returns info about scheduled jobs, sorted by next run.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	infos := make([]JobInfo, 0, len(entries))

	for name, entryID := range s.jobs {
		for _, entry := range entries {
			if entry.ID == entryID {
				infos = append(infos, JobInfo{
					Name:    name,
					NextRun: entry.Next,
					LastRun: entry.Prev,
				})
				break
			}
		}
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].NextRun.Equal(infos[j].NextRun) {
			return infos[i].Name < infos[j].Name
		}
		return infos[i].NextRun.Before(infos[j].NextRun)
	})
	return infos
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name    string
	NextRun time.Time
	LastRun time.Time
}
