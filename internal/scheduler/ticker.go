package scheduler

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// MinuteTicker invokes a callback once per distinct wall-clock minute.
// It re-arms every check interval (one second by default) and computes
// the current minute by zeroing seconds and sub-second precision, so the
// callback fires close to each minute boundary. If the process is
// suspended across one or more boundaries, only the minute observed at
// the next check fires; skipped minutes are not replayed.
type MinuteTicker struct {
	mu         sync.Mutex
	running    bool
	stopChan   chan struct{}
	wg         sync.WaitGroup
	lastMinute time.Time

	now           func() time.Time
	checkInterval time.Duration
}

// TickerConfig configures a MinuteTicker. The zero value selects a
// one-second check interval and the wall clock.
type TickerConfig struct {
	CheckInterval time.Duration
	Now           func() time.Time
}

// NewMinuteTicker creates a minute ticker.
func NewMinuteTicker(cfg TickerConfig) *MinuteTicker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &MinuteTicker{
		now:           cfg.Now,
		checkInterval: cfg.CheckInterval,
	}
}

// Start begins the check loop. The callback receives the minute being
// processed, truncated to the minute boundary; the first check runs
// immediately, so the minute in progress at startup fires right away.
func (t *MinuteTicker) Start(onMinute func(now time.Time)) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return fmt.Errorf("ticker already running")
	}
	t.running = true
	t.stopChan = make(chan struct{})
	t.lastMinute = time.Time{}
	t.mu.Unlock()

	t.wg.Add(1)
	go t.run(onMinute)

	return nil
}

// Stop cancels future checks. A callback already in flight is not
// interrupted.
func (t *MinuteTicker) Stop() error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return fmt.Errorf("ticker not running")
	}
	t.running = false
	close(t.stopChan)
	t.mu.Unlock()

	t.wg.Wait()
	return nil
}

func (t *MinuteTicker) run(onMinute func(time.Time)) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.checkInterval)
	defer ticker.Stop()

	t.check(onMinute)

	for {
		select {
		case <-t.stopChan:
			return
		case <-ticker.C:
			t.check(onMinute)
		}
	}
}

// check fires the callback when the observed minute differs from the
// last processed one.
func (t *MinuteTicker) check(onMinute func(time.Time)) {
	minute := t.now().Truncate(time.Minute)

	t.mu.Lock()
	if minute.Equal(t.lastMinute) {
		t.mu.Unlock()
		return
	}
	t.lastMinute = minute
	t.mu.Unlock()

	log.Printf("current moment: %s", minute.UTC().Format(time.RFC3339))
	onMinute(minute)
}
