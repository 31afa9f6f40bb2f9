package schedule

import (
	"context"
	"time"

	"github.com/de-tools/market-pulse/pkg/models/domain"
	"github.com/rs/zerolog"
)

// ConfigSource exposes the current schedule. The scheduler re-reads it
// on every wake, so config updates only need a Reload nudge.
type ConfigSource interface {
	Get() domain.ScheduleConfig
}

// TriggerFunc fires generation for a date. It must not block the
// timing loop; the coordinator's Trigger satisfies that.
type TriggerFunc func(date string, mode domain.RunMode)

// Scheduler fires generation for "today" at the configured times of
// day on the process-local clock. Missed ticks are not backfilled.
type Scheduler struct {
	source  ConfigSource
	trigger TriggerFunc
	logger  zerolog.Logger
	now     func() time.Time
	reload  chan struct{}
}

func NewScheduler(source ConfigSource, trigger TriggerFunc, logger zerolog.Logger, opts ...func(*Scheduler)) *Scheduler {
	s := &Scheduler{
		source:  source,
		trigger: trigger,
		logger:  logger,
		now:     time.Now,
		reload:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) func(*Scheduler) {
	return func(s *Scheduler) {
		s.now = now
	}
}

// Reload wakes the timing loop so it recomputes the next fire time
// from the current config. Safe to call from any goroutine; extra
// nudges coalesce.
func (s *Scheduler) Reload() {
	select {
	case s.reload <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled, firing the trigger at each
// configured time of day.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		now := s.now()
		times := s.source.Get().Times
		fireAt, slot := nextFire(now, times)

		s.logger.Debug().Time("next_fire", fireAt).Strs("schedule", times).
			Msg("scheduler waiting for next slot")

		timer := time.NewTimer(fireAt.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info().Msg("scheduler stopped")
			return
		case <-s.reload:
			timer.Stop()
			s.logger.Info().Msg("schedule reloaded")
		case <-timer.C:
			date := fireAt.Format(domain.DateLayout)
			mode := domain.RunModeForSlot(slot, len(times))
			s.fire(date, mode)
		}
	}
}

// fire runs the trigger with panic capture so a misbehaving run can
// never kill the timing loop.
func (s *Scheduler) fire(date string, mode domain.RunMode) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("date", date).
				Msg("scheduled trigger panicked")
		}
	}()
	s.logger.Info().Str("date", date).Str("mode", string(mode)).Msg("scheduled generation trigger")
	s.trigger(date, mode)
}

// nextFire returns the next moment one of the HH:MM times (ascending)
// occurs strictly after now, and the slot index that fires then. When
// every slot for today has passed, the first slot of tomorrow is next.
func nextFire(now time.Time, times []string) (time.Time, int) {
	if len(times) == 0 {
		// No valid schedule: sleep an hour and re-check, the config
		// store normally never lets this happen.
		return now.Add(time.Hour), -1
	}
	for i, t := range times {
		parsed, err := time.Parse("15:04", t)
		if err != nil {
			continue
		}
		candidate := time.Date(now.Year(), now.Month(), now.Day(),
			parsed.Hour(), parsed.Minute(), 0, 0, now.Location())
		if candidate.After(now) {
			return candidate, i
		}
	}
	parsed, _ := time.Parse("15:04", times[0])
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, now.Location()), 0
}
