// Package scheduler runs the analytics and maintenance jobs, either on their
// schedules under a suture supervisor or on demand from the API and CLI.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/ZanzyTHEbar/fairplate-analytics/internal/errors"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/monitoring"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/resilience"
)

const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerCLI      = "cli"
)

// Task is one unit of job work. The returned value is the run summary.
type Task func(ctx context.Context) (any, error)

// Skippable is implemented by summaries of runs that can find nothing to do
type Skippable interface {
	IsSkipped() bool
}

// Options controls how every job run is bounded
type Options struct {
	RetryAttempts int
	RetryDelay    time.Duration
	RunTimeout    time.Duration
}

// Job is a named task with its schedule
type Job struct {
	Name     string
	Schedule Schedule
	task     Task
	mu       sync.Mutex
}

// Registry holds the jobs and runs them with retry, timeout, logging and metrics
type Registry struct {
	jobs   map[string]*Job
	opts   Options
	logger *monitoring.Logger
}

// NewRegistry creates an empty job registry
func NewRegistry(opts Options, logger *monitoring.Logger) *Registry {
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if logger == nil {
		logger = monitoring.NewLoggerWithWriter(io.Discard, "error", "json")
	}
	return &Registry{jobs: make(map[string]*Job), opts: opts, logger: logger}
}

// Register adds a job. A nil schedule makes it trigger-only.
func (r *Registry) Register(name string, schedule Schedule, task Task) error {
	if _, exists := r.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}
	r.jobs[name] = &Job{Name: name, Schedule: schedule, task: task}
	return nil
}

// Names returns the registered job names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Job returns a registered job
func (r *Registry) Job(name string) (*Job, bool) {
	job, ok := r.jobs[name]
	return job, ok
}

// Run executes a job once. Runs of the same job never overlap: a concurrent
// request waits for the active run to finish.
func (r *Registry) Run(ctx context.Context, name, trigger string) (any, error) {
	job, ok := r.jobs[name]
	if !ok {
		return nil, apperrors.NewNotFoundError("job", name)
	}

	job.mu.Lock()
	defer job.mu.Unlock()

	if r.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.RunTimeout)
		defer cancel()
	}

	logger := &monitoring.Logger{Logger: r.logger.With("run_id", uuid.NewString())}

	retry := resilience.JobRetryConfig(r.opts.RetryAttempts, r.opts.RetryDelay)
	retry.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn("Job attempt failed, retrying",
			"job", name,
			"attempt", attempt,
			"delay", delay.String(),
			"error", err)
	}

	start := time.Now()
	var summary any
	err := resilience.RetryWithConfig(ctx, retry, func() error {
		var runErr error
		summary, runErr = job.task(ctx)
		return runErr
	})
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		err = apperrors.NewTimeoutError(fmt.Sprintf("job %s exceeded %s", name, r.opts.RunTimeout), err)
	}
	duration := time.Since(start)

	if s, ok := summary.(Skippable); ok && err == nil && s.IsSkipped() {
		monitoring.RecordSkippedJob(name, trigger)
		logger.Info("Job skipped", "job", name, "trigger", trigger)
		return summary, nil
	}

	monitoring.RecordJob(name, trigger, duration, err)
	logger.JobLogger(name, trigger, duration, err)
	return summary, err
}
