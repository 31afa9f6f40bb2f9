package run

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/de-tools/market-pulse/pkg/models/domain"
	"github.com/rs/zerolog"
)

// Generator is the subset of the report generator the coordinator
// drives.
type Generator interface {
	Generate(ctx context.Context, date string, mode domain.RunMode, emit func(domain.ProgressEvent)) (*domain.Report, error)
}

// defaultGrace keeps a finished job in the registry long enough for
// late subscribers to read its terminal event.
const defaultGrace = 5 * time.Second

// Coordinator guarantees at most one in-flight generation per date and
// fans progress out to any number of subscribers.
type Coordinator struct {
	generator Generator
	logger    zerolog.Logger
	grace     time.Duration

	mu   sync.Mutex
	jobs map[string]*Job
}

func NewCoordinator(generator Generator, logger zerolog.Logger, opts ...func(*Coordinator)) *Coordinator {
	c := &Coordinator{
		generator: generator,
		logger:    logger,
		grace:     defaultGrace,
		jobs:      make(map[string]*Job),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithGracePeriod overrides how long finished jobs linger for late
// subscribers.
func WithGracePeriod(d time.Duration) func(*Coordinator) {
	return func(c *Coordinator) {
		c.grace = d
	}
}

// Trigger starts a generation for date, or joins the one already
// running. The run is detached from the caller's context: cancelling a
// request never cancels generation.
func (c *Coordinator) Trigger(date string, mode domain.RunMode) *Job {
	c.mu.Lock()
	if job, ok := c.jobs[date]; ok && !job.Status().Terminal() {
		c.mu.Unlock()
		c.logger.Debug().Str("date", date).Str("job_id", job.ID.String()).
			Msg("generation already running, joining existing job")
		return job
	}

	job := newJob(date, mode)
	c.jobs[date] = job
	c.mu.Unlock()

	c.logger.Info().Str("date", date).Str("mode", string(mode)).
		Str("job_id", job.ID.String()).Msg("generation job started")

	go c.run(job)
	return job
}

// RunSync starts (or joins) the job for date and blocks until its
// terminal state.
func (c *Coordinator) RunSync(ctx context.Context, date string, mode domain.RunMode) (*domain.Report, error) {
	job := c.Trigger(date, mode)
	select {
	case <-job.Done():
		return job.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Subscribe returns the progress stream for the job running on date.
// If nothing is running the channel is closed immediately. The cancel
// func detaches the subscriber without affecting the run.
func (c *Coordinator) Subscribe(date string) (<-chan domain.ProgressEvent, func()) {
	c.mu.Lock()
	job, ok := c.jobs[date]
	c.mu.Unlock()

	if !ok {
		ch := make(chan domain.ProgressEvent)
		close(ch)
		return ch, func() {}
	}
	return job.subscribe()
}

func (c *Coordinator) run(job *Job) {
	defer func() {
		time.AfterFunc(c.grace, func() { c.evict(job) })
	}()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Str("date", job.Date).
				Msg("generation panicked")
			job.finish(nil, fmt.Errorf("generation panicked: %v", r))
		}
	}()

	logger := c.logger.With().Str("job_id", job.ID.String()).Logger()
	ctx := logger.WithContext(context.Background())

	job.setRunning()
	result, err := c.generator.Generate(ctx, job.Date, job.Mode, job.publish)
	job.finish(result, err)
}

// evict drops the job from the registry unless a newer job for the
// same date has already replaced it.
func (c *Coordinator) evict(job *Job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.jobs[job.Date]; ok && current == job {
		delete(c.jobs, job.Date)
	}
}
