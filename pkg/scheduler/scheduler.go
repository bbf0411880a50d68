// Package scheduler runs the periodic rotation and allocation jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pollen-club/backoffice/pkg/retry"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Job is a named function that runs on a cron schedule.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error

	// OnFailure is called once all attempts failed.
	OnFailure func(err error)
}

// Scheduler runs jobs with the retry policy. Runs of the same job never overlap.
type Scheduler struct {
	cron   *cron.Cron
	policy retry.Policy

	mu   sync.Mutex
	jobs map[string]Job

	ctx    context.Context
	cancel context.CancelFunc
}

func New(policy retry.Policy) *Scheduler {
	logger := cronLogger{}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		policy: policy,
		jobs:   make(map[string]Job),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers a job. Jobs with an empty schedule are disabled and skipped.
func (s *Scheduler) Add(job Job) error {
	if job.Schedule == "" {
		log.Info().Str("job", job.Name).Msg("job disabled")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.Name]; ok {
		return fmt.Errorf("job %s is already registered", job.Name)
	}

	_, err := s.cron.AddFunc(job.Schedule, func() {
		_ = s.execute(s.ctx, job)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", job.Schedule, job.Name, err)
	}

	s.jobs[job.Name] = job
	log.Info().Str("job", job.Name).Str("schedule", job.Schedule).Msg("job registered")
	return nil
}

// Jobs returns the names of the registered jobs.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// Run executes the registered job immediately and returns its final error.
func (s *Scheduler) Run(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("there is no job %s", name)
	}

	return s.execute(ctx, job)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits until they returned.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

func (s *Scheduler) execute(ctx context.Context, job Job) error {
	start := time.Now()
	err := retry.Do(ctx, s.policy, nil, job.Run)

	jobRuns.WithLabelValues(job.Name, result(err)).Inc()
	if err != nil {
		log.Error().Err(err).Str("job", job.Name).Dur("duration", time.Since(start)).Msg("job failed")
		if job.OnFailure != nil {
			job.OnFailure(err)
		}
		return err
	}

	log.Debug().Str("job", job.Name).Dur("duration", time.Since(start)).Msg("job finished")
	return nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// cronLogger writes the cron library's log through zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	log.Debug().Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
