// Package scheduler drives the periodic update checks. One coordinator
// goroutine waits out the startup delay and then watches two independent
// tickers, one per check kind; the checks themselves run on worker
// goroutines tracked by the lifecycle wait group.
package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/nguyentruongduy1410/VoiceUpdate/internal/config"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/eventbus"
	"github.com/nguyentruongduy1410/VoiceUpdate/internal/install"
)

// Runner is the check surface the coordinator dispatches onto.
type Runner interface {
	RunAppCheck(ctx context.Context) error
	RunModelCheck(ctx context.Context) error
}

// Coordinator owns the check cadence. Overlapping triggers for the same kind
// are a no-op: a per-kind in-flight flag is held for the whole check.
type Coordinator struct {
	settings *config.SettingsStore
	runner   Runner

	lifecycle eventbus.ServiceLifecycle

	now              func() time.Time
	startupDelay     *time.Duration
	tickInterval     time.Duration
	onRestartPending func()

	mu       sync.Mutex
	inFlight map[eventbus.CheckKind]bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithStartupDelay overrides the settings-provided startup delay.
func WithStartupDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.startupDelay = &d }
}

// WithTickInterval forces the ticker period for both kinds. Tests use this;
// production runs on the configured per-kind intervals.
func WithTickInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.tickInterval = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithOnRestartPending registers a callback invoked when an app check ends
// in a self-replace hand-off. The daemon uses it to begin shutting down so
// the helper process can swap the executable.
func WithOnRestartPending(fn func()) Option {
	return func(c *Coordinator) { c.onRestartPending = fn }
}

// New builds a coordinator over the settings store and check runner.
func New(settings *config.SettingsStore, runner Runner, opts ...Option) *Coordinator {
	c := &Coordinator{
		settings: settings,
		runner:   runner,
		now:      time.Now,
		inFlight: make(map[eventbus.CheckKind]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the coordinator goroutine.
func (c *Coordinator) Start(ctx context.Context) {
	c.lifecycle.Start(ctx)
	c.lifecycle.Go(c.run)
}

// Shutdown stops the coordinator and waits for in-flight checks.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	return c.lifecycle.Shutdown(ctx)
}

func (c *Coordinator) run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(c.delay()):
	}

	// Initial pass covers checks that came due while the process was down.
	c.maybeTrigger(eventbus.CheckApp, false)
	c.maybeTrigger(eventbus.CheckModels, false)

	appTicker := time.NewTicker(c.tickFor(eventbus.CheckApp))
	defer appTicker.Stop()
	modelTicker := time.NewTicker(c.tickFor(eventbus.CheckModels))
	defer modelTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-appTicker.C:
			c.maybeTrigger(eventbus.CheckApp, false)
		case <-modelTicker.C:
			c.maybeTrigger(eventbus.CheckModels, false)
		}
	}
}

func (c *Coordinator) delay() time.Duration {
	if c.startupDelay != nil {
		return *c.startupDelay
	}
	return time.Duration(c.settings.Get().StartupDelaySeconds) * time.Second
}

func (c *Coordinator) tickFor(kind eventbus.CheckKind) time.Duration {
	if c.tickInterval > 0 {
		return c.tickInterval
	}
	s := c.settings.Get()
	var d time.Duration
	switch kind {
	case eventbus.CheckApp:
		d = s.UpdateInterval()
	case eventbus.CheckModels:
		d = s.ModelInterval()
	}
	if d <= 0 {
		d = time.Hour
	}
	return d
}

// Due reports whether the configured interval has elapsed since the last
// recorded check. No recorded timestamp, or one that does not parse, counts
// as due.
func (c *Coordinator) Due(kind eventbus.CheckKind) bool {
	s := c.settings.Get()
	var last string
	var interval time.Duration
	switch kind {
	case eventbus.CheckApp:
		last, interval = s.LastUpdateCheck, s.UpdateInterval()
	case eventbus.CheckModels:
		last, interval = s.LastModelCheck, s.ModelInterval()
	default:
		return false
	}
	if last == "" {
		return true
	}
	at, err := time.Parse(time.RFC3339, last)
	if err != nil {
		return true
	}
	return c.now().Sub(at) >= interval
}

// ForceCheckAll triggers both checks immediately, skipping the enabled and
// due gates. A check already in flight stays a no-op.
func (c *Coordinator) ForceCheckAll() {
	c.maybeTrigger(eventbus.CheckApp, true)
	c.maybeTrigger(eventbus.CheckModels, true)
}

func (c *Coordinator) maybeTrigger(kind eventbus.CheckKind, force bool) bool {
	if !force {
		s := c.settings.Get()
		switch kind {
		case eventbus.CheckApp:
			if !s.AutoCheckUpdates {
				return false
			}
		case eventbus.CheckModels:
			if !s.AutoCheckModels {
				return false
			}
		}
		if !c.Due(kind) {
			return false
		}
	}

	c.mu.Lock()
	if c.inFlight[kind] {
		c.mu.Unlock()
		return false
	}
	c.inFlight[kind] = true
	c.mu.Unlock()

	c.lifecycle.Go(func(ctx context.Context) {
		defer c.clearInFlight(kind)
		c.runCheck(ctx, kind)
	})
	return true
}

func (c *Coordinator) clearInFlight(kind eventbus.CheckKind) {
	c.mu.Lock()
	delete(c.inFlight, kind)
	c.mu.Unlock()
}

func (c *Coordinator) runCheck(ctx context.Context, kind eventbus.CheckKind) {
	var err error
	switch kind {
	case eventbus.CheckApp:
		err = c.runner.RunAppCheck(ctx)
	case eventbus.CheckModels:
		err = c.runner.RunModelCheck(ctx)
	}
	if err == nil {
		return
	}
	if errors.Is(err, install.ErrRestartPending) {
		log.Printf("[Scheduler] update staged, restart pending")
		if c.onRestartPending != nil {
			c.onRestartPending()
		}
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	log.Printf("[Scheduler] WARNING: %s check failed: %v", kind, err)
}
