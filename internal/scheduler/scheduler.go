package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/couchcryptid/risk-signal-etl/internal/pipeline"
	"github.com/go-co-op/gocron"
)

// Scheduler triggers pipeline jobs on cron schedules evaluated in UTC.
type Scheduler struct {
	scheduler *gocron.Scheduler
	jobs      map[string]pipeline.Job
	schedules map[string]string
	timeout   time.Duration
	logger    *slog.Logger
}

// New creates a Scheduler for jobs keyed by name. A job without a schedule,
// or with an empty one, is not scheduled. timeout bounds a single run; zero
// means no bound.
func New(jobs []pipeline.Job, schedules map[string]string, timeout time.Duration, logger *slog.Logger) *Scheduler {
	byName := make(map[string]pipeline.Job, len(jobs))
	for _, j := range jobs {
		byName[j.Name()] = j
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		jobs:      byName,
		schedules: schedules,
		timeout:   timeout,
		logger:    logger,
	}
}

// Start registers every scheduled job and starts the underlying scheduler.
// A run still in progress when the next tick fires is not started twice.
func (s *Scheduler) Start() error {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	scheduled := 0
	for _, name := range names {
		spec := s.schedules[name]
		if spec == "" {
			s.logger.Info("job not scheduled", "job", name)
			continue
		}
		job := s.jobs[name]
		if _, err := s.scheduler.Cron(spec).SingletonMode().Tag(name).Do(s.run, job); err != nil {
			return fmt.Errorf("schedule %s %q: %w", name, spec, err)
		}
		s.logger.Info("job scheduled", "job", name, "cron", spec)
		scheduled++
	}
	if scheduled == 0 {
		s.logger.Info("scheduler: no jobs scheduled")
		return nil
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future runs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// RunNow triggers a scheduled job immediately.
func (s *Scheduler) RunNow(name string) error {
	return s.scheduler.RunByTag(name)
}

func (s *Scheduler) run(job pipeline.Job) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	logger := s.logger.With("job", job.Name(), "trigger", "schedule")
	rep, err := job.Run(ctx, nil)
	switch {
	case err != nil:
		logger.Error("scheduled run failed", "error", err)
	case rep != nil:
		logger.Info("scheduled run finished", "status", rep.Outcome())
	}
}
