// Package daemon implements the activation driver and the sandboxed
// window-monitor runner.
package daemon

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/schedmon/internal/domain"
	"github.com/eliteGoblin/focusd/schedmon/internal/usecase"
	"github.com/eliteGoblin/focusd/schedmon/internal/window"
)

// DriverConfig holds activation driver timing configuration.
type DriverConfig struct {
	ImminentLookahead  time.Duration // arm the in-process timer only for starts within this window
	DefaultWakeHorizon time.Duration // background wake fallback when no transition exists
	MaxWakeHorizon     time.Duration // cap on how far out the background wake is armed
}

// DefaultDriverConfig returns default driver configuration.
func DefaultDriverConfig() DriverConfig {
	return DriverConfig{
		ImminentLookahead:  30 * time.Minute,
		DefaultWakeHorizon: 15 * time.Minute,
		MaxWakeHorizon:     time.Hour,
	}
}

// Driver multiplexes the independent wake-up sources into evaluator runs:
// explicit foreground reconciliation, the opportunistic background wake, and
// the in-process imminent timer all funnel into the same reconcile path.
// (The fourth source, the sandboxed monitor callback, runs in a separate
// process via MonitorRunner and meets the driver only through the shared
// store.) Each pathway is isolated: a failure in one never suppresses the
// others, and because the evaluator recomputes everything from durable state
// on every run, any interleaving of triggers converges to the same outcome.
type Driver struct {
	engine *usecase.Engine
	store  domain.StateStore
	config DriverConfig
	logger *zap.Logger
	now    func() time.Time

	triggerCh chan string

	mu         sync.Mutex
	imminent   *time.Timer
	subs       []chan string
	lastActive string
	published  bool
}

// NewDriver creates an activation driver. now is injectable for tests;
// pass nil for time.Now.
func NewDriver(
	engine *usecase.Engine,
	store domain.StateStore,
	config DriverConfig,
	logger *zap.Logger,
	now func() time.Time,
) *Driver {
	if now == nil {
		now = time.Now
	}
	return &Driver{
		engine:    engine,
		store:     store,
		config:    config,
		logger:    logger,
		now:       now,
		triggerCh: make(chan string, 4),
	}
}

// ReconcileNow requests a foreground reconciliation: app became active, a
// schedule was created/edited/deleted, or an enabled flag was toggled.
// Never blocks; if a reconcile is already pending the request coalesces
// into it, which is harmless because every run recomputes from scratch.
func (d *Driver) ReconcileNow() {
	d.enqueue("foreground")
}

// Subscribe returns a channel receiving the active schedule id after every
// change ("" when enforcement clears). For UI binding; slow consumers miss
// intermediate values rather than blocking the driver.
func (d *Driver) Subscribe() <-chan string {
	ch := make(chan string, 8)
	d.mu.Lock()
	d.subs = append(d.subs, ch)
	d.mu.Unlock()
	return ch
}

// Run starts the driver loop. This blocks until context is canceled.
func (d *Driver) Run(ctx context.Context) error {
	d.logger.Info("activation driver started")

	// Reconcile immediately so a restart converges before any trigger.
	d.runTrigger("startup")

	wake := time.NewTimer(d.wakeDeadline())
	defer wake.Stop()
	defer d.stopImminent()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("activation driver stopping")
			return ctx.Err()

		case source := <-d.triggerCh:
			d.runTrigger(source)
			resetTimer(wake, d.wakeDeadline())

		case <-wake.C:
			// Best-effort opportunistic wake; correctness never depends
			// on it firing, only promptness.
			d.runTrigger("background-wake")
			wake.Reset(d.wakeDeadline())
		}
	}
}

// enqueue hands a trigger to the run loop without blocking the caller.
func (d *Driver) enqueue(source string) {
	select {
	case d.triggerCh <- source:
	default:
		// A reconcile is already pending; this trigger rides along with it.
	}
}

// runTrigger executes one reconcile cycle for a trigger pathway. Panics and
// errors are contained here so one pathway cannot take down the others.
func (d *Driver) runTrigger(source string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("trigger pathway panicked",
				zap.String("source", source),
				zap.Any("panic", r))
		}
	}()

	now := d.now()
	decision, err := d.engine.Reconcile(now)
	if err != nil {
		d.logger.Error("reconciliation failed",
			zap.String("source", source),
			zap.Error(err))
	} else {
		d.logger.Debug("reconciled",
			zap.String("source", source),
			zap.String("decision", decision.Kind.String()))
	}

	d.publishActive()
	d.armImminent(now)
}

// publishActive pushes the active schedule id to subscribers when it changed.
func (d *Driver) publishActive() {
	id, err := d.store.ActiveScheduleID()
	if err != nil {
		d.logger.Warn("failed to read active schedule for publish", zap.Error(err))
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.published && id == d.lastActive {
		return
	}
	d.lastActive = id
	d.published = true
	for _, ch := range d.subs {
		select {
		case ch <- id:
		default:
		}
	}
}

// armImminent arms the in-process short-horizon timer for the next schedule
// start within the lookahead window. The previous timer is always cancelled
// first: at most one imminent timer is outstanding at a time.
func (d *Driver) armImminent(now time.Time) {
	schedules, err := d.store.ListSchedules()
	if err != nil {
		d.logger.Warn("failed to list schedules for imminent timer", zap.Error(err))
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.imminent != nil {
		d.imminent.Stop()
		d.imminent = nil
	}

	start, ok := window.NextStartWithin(schedules, now, d.config.ImminentLookahead)
	if !ok {
		return
	}

	delay := start.Sub(now)
	d.imminent = time.AfterFunc(delay, func() {
		d.enqueue("imminent-timer")
	})
	d.logger.Debug("imminent timer armed",
		zap.Time("start", start),
		zap.Duration("delay", delay))
}

func (d *Driver) stopImminent() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.imminent != nil {
		d.imminent.Stop()
		d.imminent = nil
	}
}

// wakeDeadline computes the background wake deadline hint: the time until
// the nearest schedule transition, bounded to [1s, MaxWakeHorizon], or the
// default horizon when nothing is scheduled so the backstop keeps firing.
func (d *Driver) wakeDeadline() time.Duration {
	now := d.now()
	schedules, err := d.store.ListSchedules()
	if err != nil {
		d.logger.Warn("failed to list schedules for wake deadline", zap.Error(err))
		return d.config.DefaultWakeHorizon
	}

	next, ok := window.NextTransition(schedules, now)
	if !ok {
		return d.config.DefaultWakeHorizon
	}

	dur := next.Sub(now)
	if dur < time.Second {
		dur = time.Second
	}
	if dur > d.config.MaxWakeHorizon {
		dur = d.config.MaxWakeHorizon
	}
	return dur
}

// resetTimer safely re-arms a timer whose channel may hold an unconsumed tick.
func resetTimer(t *time.Timer, dur time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(dur)
}
