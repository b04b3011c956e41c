// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a named unit of background work run on a cron schedule.
type Job struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs jobs on their cron schedules.
type Scheduler struct {
	jobs []Job
	cron *cron.Cron
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a Scheduler for the given jobs.
func New(jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs: jobs,
		cron: cron.New(cron.WithParser(cronParser)),
	}
}

// Start registers every job that has a schedule and starts the cron ticker.
// Jobs with an invalid schedule are logged and skipped.
func (s *Scheduler) Start() error {
	for _, job := range s.jobs {
		if job.Schedule == "" || job.Run == nil {
			continue
		}

		_, err := s.cron.AddFunc(job.Schedule, func() {
			s.run(job)
		})
		if err != nil {
			slog.Error("invalid cron schedule", "job", job.Name, "schedule", job.Schedule, "error", err)
			continue
		}
		slog.Info("scheduled job", "job", job.Name, "schedule", job.Schedule)
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) run(job Job) {
	ctx := context.Background()
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	start := time.Now()
	slog.Debug("cron firing job", "job", job.Name)
	if err := job.Run(ctx); err != nil {
		slog.Error("job failed", "job", job.Name, "error", err)
		return
	}
	slog.Debug("job finished", "job", job.Name, "duration", time.Since(start))
}

// Stop stops the cron ticker and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
