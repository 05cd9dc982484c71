package scheduler

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/ZanzyTHEbar/fairplate-analytics/internal/monitoring"
)

// jobService runs one job on its schedule as a supervised service
type jobService struct {
	job      *Job
	registry *Registry
	now      func() time.Time
}

// Serve implements suture.Service. Run failures are logged by the registry and
// never end the service; only cancellation does.
func (s *jobService) Serve(ctx context.Context) error {
	for {
		now := s.now()
		wait := s.job.Schedule.Next(now).Sub(now)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		_, _ = s.registry.Run(ctx, s.job.Name, TriggerSchedule)
	}
}

func (s *jobService) String() string {
	return "job-" + s.job.Name
}

// Scheduler supervises one service per scheduled job
type Scheduler struct {
	root     *suture.Supervisor
	registry *Registry
	logger   *monitoring.Logger
	now      func() time.Time
}

// New builds the supervisor tree for every job in the registry that has a schedule
func New(registry *Registry, logger *monitoring.Logger) *Scheduler {
	if logger == nil {
		logger = registry.logger
	}
	handler := &sutureslog.Handler{Logger: logger.Logger}

	root := suture.New("fairplate-scheduler", suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})

	s := &Scheduler{root: root, registry: registry, logger: logger, now: time.Now}
	for _, name := range registry.Names() {
		job, _ := registry.Job(name)
		if job.Schedule == nil {
			continue
		}
		root.Add(&jobService{job: job, registry: registry, now: s.now})
		logger.Info("Job scheduled", "job", name, "schedule", job.Schedule.String())
	}
	return s
}

// Serve blocks until ctx is cancelled
func (s *Scheduler) Serve(ctx context.Context) error {
	return s.root.Serve(ctx)
}

// ServeBackground starts the supervisor and returns its exit channel
func (s *Scheduler) ServeBackground(ctx context.Context) <-chan error {
	return s.root.ServeBackground(ctx)
}

// NextRuns reports when each scheduled job fires next
func (s *Scheduler) NextRuns() map[string]time.Time {
	now := s.now()
	next := make(map[string]time.Time)
	for _, name := range s.registry.Names() {
		job, _ := s.registry.Job(name)
		if job.Schedule != nil {
			next[name] = job.Schedule.Next(now)
		}
	}
	return next
}

var _ suture.Service = (*jobService)(nil)
