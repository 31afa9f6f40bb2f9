package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/de-tools/market-pulse/pkg/models/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu    sync.Mutex
	times []string
}

func (f *fakeSource) Get() domain.ScheduleConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.ScheduleConfig{Times: append([]string(nil), f.times...)}
}

func (f *fakeSource) set(times []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.times = times
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func TestNextFire(t *testing.T) {
	loc := time.UTC
	day := func(h, m, s int) time.Time {
		return time.Date(2026, 1, 8, h, m, s, 0, loc)
	}
	times := []string{"09:25", "12:30", "15:10"}

	cases := []struct {
		name     string
		now      time.Time
		wantAt   time.Time
		wantSlot int
	}{
		{"before first slot", day(8, 0, 0), day(9, 25, 0), 0},
		{"between slots", day(10, 0, 0), day(12, 30, 0), 1},
		{"just before last", day(15, 9, 59), day(15, 10, 0), 2},
		{"after last wraps to tomorrow", day(16, 0, 0),
			time.Date(2026, 1, 9, 9, 25, 0, 0, loc), 0},
		{"exactly on a slot moves past it", day(12, 30, 0), day(15, 10, 0), 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			at, slot := nextFire(tc.now, times)
			assert.Equal(t, tc.wantAt, at)
			assert.Equal(t, tc.wantSlot, slot)
		})
	}
}

func TestRunModeForSlot(t *testing.T) {
	assert.Equal(t, domain.RunModePreMarket, domain.RunModeForSlot(0, 3))
	assert.Equal(t, domain.RunModeMidday, domain.RunModeForSlot(1, 3))
	assert.Equal(t, domain.RunModePostMarket, domain.RunModeForSlot(2, 3))
	assert.Equal(t, domain.RunModePostMarket, domain.RunModeForSlot(0, 1))
}

func TestScheduler_FiresAtConfiguredTime(t *testing.T) {
	clock := &fakeClock{}
	clock.Set(time.Date(2026, 1, 8, 9, 24, 59, int(900*time.Millisecond), time.UTC))

	source := &fakeSource{times: []string{"09:25", "15:10"}}

	type firing struct {
		date string
		mode domain.RunMode
	}
	fired := make(chan firing, 1)

	sched := NewScheduler(source, func(date string, mode domain.RunMode) {
		// Move the clock past the slot so the loop arms for the next one.
		clock.Set(time.Date(2026, 1, 8, 9, 26, 0, 0, time.UTC))
		fired <- firing{date, mode}
	}, zerolog.New(zerolog.NewTestWriter(t)), WithClock(clock.Now))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	select {
	case f := <-fired:
		assert.Equal(t, "2026-01-08", f.date)
		assert.Equal(t, domain.RunModePreMarket, f.mode)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not fire")
	}
}

func TestScheduler_ReloadPicksUpNewTimes(t *testing.T) {
	clock := &fakeClock{}
	clock.Set(time.Date(2026, 1, 8, 10, 59, 59, int(900*time.Millisecond), time.UTC))

	// Initial schedule is hours away; loop arms a long timer.
	source := &fakeSource{times: []string{"23:00"}}

	fired := make(chan string, 1)
	sched := NewScheduler(source, func(date string, mode domain.RunMode) {
		clock.Set(time.Date(2026, 1, 8, 11, 1, 0, 0, time.UTC))
		fired <- date
	}, zerolog.New(zerolog.NewTestWriter(t)), WithClock(clock.Now))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	time.Sleep(20 * time.Millisecond)
	source.set([]string{"11:00"})
	sched.Reload()

	select {
	case date := <-fired:
		assert.Equal(t, "2026-01-08", date)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not pick up reloaded schedule")
	}
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	source := &fakeSource{times: []string{"23:59"}}
	sched := NewScheduler(source, func(string, domain.RunMode) {},
		zerolog.New(zerolog.NewTestWriter(t)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_TriggerPanicDoesNotKillLoop(t *testing.T) {
	clock := &fakeClock{}
	clock.Set(time.Date(2026, 1, 8, 9, 24, 59, int(900*time.Millisecond), time.UTC))

	source := &fakeSource{times: []string{"09:25", "09:27"}}

	calls := make(chan int, 2)
	n := 0
	sched := NewScheduler(source, func(date string, mode domain.RunMode) {
		n++
		calls <- n
		if n == 1 {
			clock.Set(time.Date(2026, 1, 8, 9, 26, 59, int(900*time.Millisecond), time.UTC))
			panic("boom")
		}
		clock.Set(time.Date(2026, 1, 8, 9, 28, 0, 0, time.UTC))
	}, zerolog.New(zerolog.NewTestWriter(t)), WithClock(clock.Now))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	require.Equal(t, 1, <-calls)
	select {
	case c := <-calls:
		assert.Equal(t, 2, c, "loop must survive a panicking trigger")
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler died after trigger panic")
	}
}
