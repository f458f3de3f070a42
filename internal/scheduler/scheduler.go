package scheduler

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/reflectcal/mailerd/internal/mailer"
	"github.com/reflectcal/mailerd/internal/models"
	"github.com/reflectcal/mailerd/internal/notify"
	"github.com/reflectcal/mailerd/internal/store"
)

// EventStore defines the event queries the pipeline needs.
type EventStore interface {
	FindEvents(ctx context.Context, filter store.EventFilter) ([]models.Event, error)
}

// ErrorSink receives pipeline failures for external diagnostics,
// independently of console logging. Implementations must not block.
type ErrorSink interface {
	Report(err error, trace string)
}

// LogSink is an ErrorSink that writes to a log function.
type LogSink struct {
	logger func(format string, v ...interface{})
}

// NewLogSink creates a log-backed error sink.
func NewLogSink(logger func(format string, v ...interface{})) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Report(err error, trace string) {
	s.logger("pipeline error: %v\n%s", err, trace)
}

// Metrics tracks pipeline execution stats.
type Metrics struct {
	mu            sync.RWMutex
	TicksRun      int64
	TicksSkipped  int64
	EventsMatched int64
	MailsSent     int64
	TickErrors    int64
	LastTickTime  time.Time
}

// Config configures the notification scheduler.
type Config struct {
	CheckInterval time.Duration    // how often the minute check re-arms
	TickTimeout   time.Duration    // upper bound for one pipeline run; 0 means unbounded
	Now           func() time.Time // clock override for tests
}

// Scheduler drives the per-minute notification pipeline: fetch events,
// match due alerts, bucket by calendar, resolve recipients, group by
// user, dispatch mail. A failure at any stage abandons the tick; the
// next tick proceeds independently.
type Scheduler struct {
	store      EventStore
	resolver   notify.RecipientResolver
	dispatcher mailer.Dispatcher
	sink       ErrorSink

	ticker      *MinuteTicker
	tickTimeout time.Duration

	mu      sync.Mutex
	running bool
	busy    bool
	baseCtx context.Context
	wg      sync.WaitGroup

	metrics *Metrics
}

// New creates a notification scheduler.
func New(eventStore EventStore, resolver notify.RecipientResolver, dispatcher mailer.Dispatcher, sink ErrorSink, cfg Config) *Scheduler {
	if sink == nil {
		sink = NewLogSink(log.Printf)
	}
	return &Scheduler{
		store:       eventStore,
		resolver:    resolver,
		dispatcher:  dispatcher,
		sink:        sink,
		ticker:      NewMinuteTicker(TickerConfig{CheckInterval: cfg.CheckInterval, Now: cfg.Now}),
		tickTimeout: cfg.TickTimeout,
		metrics:     &Metrics{},
	}
}

// Start begins the tick loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.baseCtx = ctx
	s.mu.Unlock()

	log.Printf("mailer scheduler starting")
	return s.ticker.Start(s.onTick)
}

// Stop halts future ticks and waits for a pipeline already in flight to
// finish on its own; it is not cancelled.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler not running")
	}
	s.running = false
	s.mu.Unlock()

	if err := s.ticker.Stop(); err != nil {
		return err
	}
	s.wg.Wait()
	log.Printf("mailer scheduler stopped")
	return nil
}

// onTick runs once per distinct minute. If the previous pipeline is
// still in flight the tick is skipped rather than overlapped.
func (s *Scheduler) onTick(now time.Time) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		s.metrics.mu.Lock()
		s.metrics.TicksSkipped++
		s.metrics.mu.Unlock()
		log.Printf("tick %s skipped: previous pipeline still running", now.UTC().Format(time.RFC3339))
		return
	}
	s.busy = true
	ctx := s.baseCtx
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.busy = false
			s.mu.Unlock()
		}()

		if s.tickTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.tickTimeout)
			defer cancel()
		}

		s.metrics.mu.Lock()
		s.metrics.TicksRun++
		s.metrics.LastTickTime = now
		s.metrics.mu.Unlock()

		if err := s.runPipeline(ctx, now); err != nil {
			trace := string(debug.Stack())
			log.Printf("tick %s failed: %v\n%s", now.UTC().Format(time.RFC3339), err, trace)
			s.sink.Report(err, trace)

			s.metrics.mu.Lock()
			s.metrics.TickErrors++
			s.metrics.mu.Unlock()
		}
	}()
}

// runPipeline executes the per-tick stages strictly in order,
// short-circuiting on the first failure.
func (s *Scheduler) runPipeline(ctx context.Context, now time.Time) error {
	// Every event is fetched and filtered client-side. Pushing the time
	// window into the store query would change observable load, not
	// results.
	events, err := s.store.FindEvents(ctx, store.EventFilter{})
	if err != nil {
		return fmt.Errorf("fetch events: %w", err)
	}

	upcoming := notify.FilterUpcoming(now, events)

	s.metrics.mu.Lock()
	s.metrics.EventsMatched += int64(len(upcoming))
	s.metrics.mu.Unlock()

	byCalendar := notify.BucketByCalendar(upcoming)

	byUser, err := notify.GroupByUser(ctx, s.resolver, byCalendar)
	if err != nil {
		return fmt.Errorf("group events by user: %w", err)
	}

	responses, err := s.dispatcher.Mail(ctx, byUser)
	if err != nil {
		return fmt.Errorf("dispatch mail: %w", err)
	}

	s.metrics.mu.Lock()
	s.metrics.MailsSent += int64(len(responses))
	s.metrics.mu.Unlock()

	log.Printf("mail sent, total: %d", len(responses))
	return nil
}

// GetMetrics returns a snapshot of scheduler metrics.
func (s *Scheduler) GetMetrics() map[string]interface{} {
	s.metrics.mu.RLock()
	defer s.metrics.mu.RUnlock()

	return map[string]interface{}{
		"ticks_run":      s.metrics.TicksRun,
		"ticks_skipped":  s.metrics.TicksSkipped,
		"events_matched": s.metrics.EventsMatched,
		"mails_sent":     s.metrics.MailsSent,
		"tick_errors":    s.metrics.TickErrors,
		"last_tick_time": s.metrics.LastTickTime.Format(time.RFC3339),
	}
}
