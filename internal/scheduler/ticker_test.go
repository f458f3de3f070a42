package scheduler

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type tickRecorder struct {
	mu    sync.Mutex
	ticks []time.Time
}

func (r *tickRecorder) record(now time.Time) {
	r.mu.Lock()
	r.ticks = append(r.ticks, now)
	r.mu.Unlock()
}

func (r *tickRecorder) snapshot() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Time, len(r.ticks))
	copy(out, r.ticks)
	return out
}

func TestMinuteTickerFiresOncePerMinute(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 30, 0, time.UTC)
	clock := newFakeClock(base)
	rec := &tickRecorder{}

	ticker := NewMinuteTicker(TickerConfig{CheckInterval: 5 * time.Millisecond, Now: clock.Now})
	if err := ticker.Start(rec.record); err != nil {
		t.Fatalf("failed to start ticker: %v", err)
	}
	defer ticker.Stop()

	time.Sleep(50 * time.Millisecond)

	// The minute in progress fires immediately, then repeated checks in
	// the same minute are deduplicated.
	ticks := rec.snapshot()
	if len(ticks) != 1 {
		t.Fatalf("expected exactly 1 tick within one minute, got %d", len(ticks))
	}
	want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if !ticks[0].Equal(want) {
		t.Errorf("expected tick at minute boundary %s, got %s", want, ticks[0])
	}

	// Advancing within the same minute must not fire again.
	clock.Advance(20 * time.Second)
	time.Sleep(50 * time.Millisecond)
	if got := len(rec.snapshot()); got != 1 {
		t.Errorf("expected no tick within the same minute, got %d total", got)
	}

	// Crossing the boundary fires once for the new minute.
	clock.Advance(time.Minute)
	time.Sleep(50 * time.Millisecond)
	ticks = rec.snapshot()
	if len(ticks) != 2 {
		t.Fatalf("expected a second tick after minute boundary, got %d", len(ticks))
	}
	if !ticks[1].Equal(want.Add(time.Minute)) {
		t.Errorf("expected second tick at %s, got %s", want.Add(time.Minute), ticks[1])
	}
}

func TestMinuteTickerSkipsMissedMinutes(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 30, 0, time.UTC)
	clock := newFakeClock(base)
	rec := &tickRecorder{}

	ticker := NewMinuteTicker(TickerConfig{CheckInterval: 5 * time.Millisecond, Now: clock.Now})
	if err := ticker.Start(rec.record); err != nil {
		t.Fatalf("failed to start ticker: %v", err)
	}
	defer ticker.Stop()

	time.Sleep(50 * time.Millisecond)

	// Jump five minutes ahead, as if the process had been suspended.
	// Only the minute observed at the next check fires.
	clock.Advance(5 * time.Minute)
	time.Sleep(50 * time.Millisecond)

	ticks := rec.snapshot()
	if len(ticks) != 2 {
		t.Fatalf("expected 2 ticks (start minute and resume minute), got %d", len(ticks))
	}
	want := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
	if !ticks[1].Equal(want) {
		t.Errorf("expected resume tick at %s, got %s", want, ticks[1])
	}
}

func TestMinuteTickerStopPreventsFutureTicks(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 30, 0, time.UTC)
	clock := newFakeClock(base)
	rec := &tickRecorder{}

	ticker := NewMinuteTicker(TickerConfig{CheckInterval: 5 * time.Millisecond, Now: clock.Now})
	if err := ticker.Start(rec.record); err != nil {
		t.Fatalf("failed to start ticker: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if err := ticker.Stop(); err != nil {
		t.Fatalf("failed to stop ticker: %v", err)
	}

	before := len(rec.snapshot())
	clock.Advance(10 * time.Minute)
	time.Sleep(30 * time.Millisecond)
	if after := len(rec.snapshot()); after != before {
		t.Errorf("ticker fired after Stop: %d -> %d ticks", before, after)
	}
}

func TestMinuteTickerStartStopGuards(t *testing.T) {
	ticker := NewMinuteTicker(TickerConfig{CheckInterval: 5 * time.Millisecond})

	if err := ticker.Stop(); err == nil {
		t.Error("expected error stopping a ticker that is not running")
	}

	if err := ticker.Start(func(time.Time) {}); err != nil {
		t.Fatalf("failed to start ticker: %v", err)
	}
	if err := ticker.Start(func(time.Time) {}); err == nil {
		t.Error("expected error starting a running ticker twice")
	}
	if err := ticker.Stop(); err != nil {
		t.Fatalf("failed to stop ticker: %v", err)
	}

	// Tick state resets across restarts.
	if err := ticker.Start(func(time.Time) {}); err != nil {
		t.Fatalf("failed to restart ticker: %v", err)
	}
	if err := ticker.Stop(); err != nil {
		t.Fatalf("failed to stop restarted ticker: %v", err)
	}
}
