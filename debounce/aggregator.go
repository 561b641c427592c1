// Package debounce coalesces bursts of clicks into a single report.
//
// An Aggregator counts clicks and keeps an inactivity timer armed while
// clicks are pending. Every click cancels the timer and arms a fresh one for
// the full delay, so the timer measures time since the last click. When it
// expires the count is reset and one payload carrying the whole burst is
// handed to the sink on its own goroutine.
//
// Delivery is at most once: the count is reset before the payload is
// dispatched and a failed submission is logged, never retried.
package debounce

import (
	"context"
	"sync"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"golang.org/x/xerrors"

	"github.com/st-keller/thankyou-client/identity"
	"github.com/st-keller/thankyou-client/metrics"
	"github.com/st-keller/thankyou-client/sink"
	"github.com/st-keller/thankyou-client/types"
)

// Config holds the aggregator collaborators.
type Config struct {
	Delay       time.Duration // DefaultDelay when zero
	Clock       quartz.Clock  // real clock when nil
	Logger      slog.Logger
	Sink        sink.Sink
	Identity    identity.Provider
	ProjectName string
	DevID       int
	Metrics     *metrics.Metrics
}

// Aggregator is the click session of one thank-you button.
type Aggregator struct {
	delay       time.Duration
	clock       quartz.Clock
	logger      slog.Logger
	sink        sink.Sink
	identity    identity.Provider
	projectName string
	devID       int
	metrics     *metrics.Metrics

	mu      sync.Mutex
	clicks  int
	timer   *quartz.Timer
	gen     uint64 // bumped on every re-arm; a timer callback with an older value is stale
	stopped bool

	inflight sync.WaitGroup
}

// New validates cfg and returns an idle aggregator.
func New(cfg Config) (*Aggregator, error) {
	delay, err := ResolveDelay(cfg.Delay)
	if err != nil {
		return nil, err
	}
	if cfg.Sink == nil {
		return nil, xerrors.New("sink required")
	}
	if cfg.Identity == nil {
		return nil, xerrors.New("identity provider required")
	}
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}

	return &Aggregator{
		delay:       delay,
		clock:       cfg.Clock,
		logger:      cfg.Logger.Named("aggregator"),
		sink:        cfg.Sink,
		identity:    cfg.Identity,
		projectName: cfg.ProjectName,
		devID:       cfg.DevID,
		metrics:     cfg.Metrics,
	}, nil
}

// Delay returns the inactivity window.
func (a *Aggregator) Delay() time.Duration {
	return a.delay
}

// Click records one click and (re)arms the inactivity timer. It returns the
// number of clicks pending in the current batch, or 0 once stopped.
func (a *Aggregator) Click() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return 0
	}

	a.clicks++
	a.metrics.RecordClick(a.projectName)
	a.rearmLocked()
	return a.clicks
}

// rearmLocked cancels any armed timer and arms a new one for the full delay.
func (a *Aggregator) rearmLocked() {
	if a.timer != nil {
		a.timer.Stop()
	}
	a.gen++
	gen := a.gen
	a.timer = a.clock.AfterFunc(a.delay, func() { a.expire(gen) }, "debounce", "inactivity")
}

// expire runs when an inactivity timer fires.
func (a *Aggregator) expire(gen uint64) {
	a.mu.Lock()
	if a.stopped || gen != a.gen {
		// Stale: a click re-armed the timer after this one was scheduled.
		a.mu.Unlock()
		return
	}
	a.timer = nil
	payload, ok := a.takeLocked()
	a.mu.Unlock()

	if ok {
		a.dispatch(payload)
	}
}

// takeLocked builds the payload for the pending batch and resets the count.
// It reports false when there is nothing to send. The inflight counter is
// taken here so that Wait observes the dispatch that follows.
func (a *Aggregator) takeLocked() (types.ClickPayload, bool) {
	if a.clicks == 0 {
		return types.ClickPayload{}, false
	}
	payload := types.ClickPayload{
		UserID:      a.identity.UserID(),
		ProjectName: a.projectName,
		DevID:       a.devID,
		Clicks:      a.clicks,
	}
	a.clicks = 0
	a.inflight.Add(1)
	a.metrics.RecordFlush(a.projectName, payload.Clicks)
	return payload, true
}

// dispatch submits the payload without blocking the caller.
func (a *Aggregator) dispatch(payload types.ClickPayload) {
	go func() {
		defer a.inflight.Done()

		ctx := context.Background()
		if err := payload.Validate(); err != nil {
			a.metrics.RecordRejection(string(payload.Kind()), "invalid")
			a.logger.Warn(ctx, "dropping invalid click batch", slog.F("clicks", payload.Clicks), slog.Error(err))
			return
		}

		a.logger.Debug(ctx, "flushing click batch", slog.F("clicks", payload.Clicks))
		if err := a.sink.Submit(ctx, payload); err != nil {
			// The batch is gone: the count was reset before dispatch.
			a.logger.Warn(ctx, "click batch lost", slog.F("clicks", payload.Clicks), slog.Error(err))
		}
	}()
}

// Pending returns the number of clicks waiting to be flushed.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clicks
}

// State reports Idle or Pending.
func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.clicks > 0 {
		return Pending
	}
	return Idle
}

// Flush sends the pending batch now instead of waiting for the timer.
// It is a no-op when idle.
func (a *Aggregator) Flush() {
	a.mu.Lock()
	a.cancelLocked()
	payload, ok := a.takeLocked()
	a.mu.Unlock()

	if ok {
		a.dispatch(payload)
	}
}

// Stop flushes any pending clicks and ignores every later click.
// In-flight submissions are not interrupted; use Wait to drain them.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	a.cancelLocked()
	payload, ok := a.takeLocked()
	a.mu.Unlock()

	if ok {
		a.dispatch(payload)
	}
}

func (a *Aggregator) cancelLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.gen++
}

// Wait blocks until every dispatched submission has returned.
func (a *Aggregator) Wait() {
	a.inflight.Wait()
}
