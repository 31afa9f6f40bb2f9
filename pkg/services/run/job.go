package run

import (
	"sync"

	"github.com/de-tools/market-pulse/pkg/models/domain"
	"github.com/google/uuid"
)

// subscriberBuffer bounds how far a slow subscriber may lag before
// non-terminal events are dropped for it.
const subscriberBuffer = 16

// Job is one in-flight (or just-finished) generation for a date.
type Job struct {
	ID   uuid.UUID
	Date string
	Mode domain.RunMode

	mu     sync.Mutex
	status domain.JobStatus
	last   domain.ProgressEvent
	result *domain.Report
	err    error
	subs   map[chan domain.ProgressEvent]struct{}
	done   chan struct{}
}

func newJob(date string, mode domain.RunMode) *Job {
	return &Job{
		ID:     uuid.New(),
		Date:   date,
		Mode:   mode,
		status: domain.JobPending,
		subs:   make(map[chan domain.ProgressEvent]struct{}),
		done:   make(chan struct{}),
	}
}

// Status returns the current lifecycle state.
func (j *Job) Status() domain.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Done is closed once the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Result returns the terminal outcome. Only meaningful after Done.
func (j *Job) Result() (*domain.Report, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result, j.err
}

func (j *Job) setRunning() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status == domain.JobPending {
		j.status = domain.JobRunning
	}
}

// publish fans an event out to every subscriber. Slow subscribers may
// lose non-terminal events; the terminal event is always delivered,
// evicting the oldest buffered event if needed. On the terminal event
// all subscriber channels are closed and the done channel unblocks.
func (j *Job) publish(ev domain.ProgressEvent) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.last = ev
	if ev.Terminal {
		if ev.Err != "" {
			j.status = domain.JobFailed
		} else {
			j.status = domain.JobSucceeded
			j.result = ev.Report
		}
	}

	for ch := range j.subs {
		if ev.Terminal {
			select {
			case <-ch:
			default:
			}
			ch <- ev
			close(ch)
		} else {
			select {
			case ch <- ev:
			default:
			}
		}
	}

	if ev.Terminal {
		j.subs = make(map[chan domain.ProgressEvent]struct{})
	}
}

// finish records the terminal outcome and unblocks waiters. The
// generator emits the terminal progress event itself; this runs after
// it returns so Result observes the error before Done unblocks.
func (j *Job) finish(result *domain.Report, err error) {
	j.mu.Lock()
	j.err = err
	if result != nil {
		j.result = result
	}
	terminal := j.status.Terminal()
	j.mu.Unlock()

	if !terminal {
		// The generator should always emit a terminal event; cover for
		// it so subscribers are never left hanging.
		ev := domain.ProgressEvent{Percent: 100, Title: "done", Terminal: true, Report: result}
		if err != nil {
			ev.Title = "failed"
			ev.Detail = err.Error()
			ev.Err = err.Error()
		}
		j.publish(ev)
	}
	close(j.done)
}

// subscribe returns an event channel and a cancel func. Subscribing to
// a finished job yields just its terminal event; cancelling never
// affects the run itself.
func (j *Job) subscribe() (<-chan domain.ProgressEvent, func()) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status.Terminal() {
		ch := make(chan domain.ProgressEvent, 1)
		ch <- j.last
		close(ch)
		return ch, func() {}
	}

	ch := make(chan domain.ProgressEvent, subscriberBuffer)
	j.subs[ch] = struct{}{}

	cancel := func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		if _, ok := j.subs[ch]; ok {
			delete(j.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}
