// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package syncguard repairs staleness the change feed cannot detect on its
// own: host suspension, a long-hidden session and network loss. Each
// heuristic ends in a full resync that replaces the canonical set wholesale.
package syncguard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"sellout/internal/models"
	"sellout/internal/notify"
)

var (
	// ErrOffline is returned when a resync is requested while offline.
	ErrOffline = errors.New("offline, resync skipped")

	// ErrInFlight is returned when another resync is already running.
	// Callers treat it as a no-op.
	ErrInFlight = errors.New("resync already in progress")
)

// Trigger names what caused a resync.
type Trigger string

const (
	TriggerInitial    Trigger = "initial"
	TriggerManual     Trigger = "manual"
	TriggerSuspension Trigger = "suspension"
	TriggerVisibility Trigger = "visibility"
	TriggerOnline     Trigger = "online"
	TriggerReconnect  Trigger = "reconnect"
	TriggerRebalance  Trigger = "rebalance"
)

// Fetcher loads the authoritative record set.
type Fetcher interface {
	FetchAll(ctx context.Context) ([]models.Product, error)
}

// State is the canonical set the guard keeps fresh.
type State interface {
	Replace(records []models.Product)
	MarkSynced(at time.Time)
	LastSync() time.Time
	LastEvent() time.Time
}

// Config holds the guard's thresholds.
type Config struct {
	Heartbeat          time.Duration
	SuspendAfter       time.Duration
	SyncStaleAfter     time.Duration
	FeedStaleAfter     time.Duration
	VisibilityThrottle time.Duration
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		Heartbeat:          30 * time.Second,
		SuspendAfter:       5 * time.Minute,
		SyncStaleAfter:     60 * time.Second,
		FeedStaleAfter:     120 * time.Second,
		VisibilityThrottle: 60 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Heartbeat <= 0 {
		c.Heartbeat = d.Heartbeat
	}
	if c.SuspendAfter <= 0 {
		c.SuspendAfter = d.SuspendAfter
	}
	if c.SyncStaleAfter <= 0 {
		c.SyncStaleAfter = d.SyncStaleAfter
	}
	if c.FeedStaleAfter <= 0 {
		c.FeedStaleAfter = d.FeedStaleAfter
	}
	if c.VisibilityThrottle <= 0 {
		c.VisibilityThrottle = d.VisibilityThrottle
	}
	return c
}

// Guard is the session's sync manager.
type Guard struct {
	fetcher  Fetcher
	state    State
	notifier notify.Notifier
	clock    Clock
	cfg      Config
	logger   *slog.Logger

	online   atomic.Bool
	inFlight atomic.Bool

	mu             sync.Mutex
	lastTick       time.Time
	lastVisibility time.Time
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(g *Guard) { g.clock = c }
}

// WithNotifier sets where user-facing messages go.
func WithNotifier(n notify.Notifier) Option {
	return func(g *Guard) { g.notifier = n }
}

// New creates a guard. The session starts online.
func New(fetcher Fetcher, state State, cfg Config, opts ...Option) *Guard {
	g := &Guard{
		fetcher:  fetcher,
		state:    state,
		notifier: notify.Discard,
		clock:    SystemClock{},
		cfg:      cfg.withDefaults(),
		logger:   slog.Default().With("component", "syncguard"),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.online.Store(true)
	g.lastTick = g.clock.Now()
	return g
}

// Online reports the last known network state.
func (g *Guard) Online() bool {
	return g.online.Load()
}

// Syncing reports whether a resync is running.
func (g *Guard) Syncing() bool {
	return g.inFlight.Load()
}

// Run drives the heartbeat until ctx is cancelled. A tick arriving more
// than SuspendAfter after the previous one means the host was asleep and
// triggers a resync.
func (g *Guard) Run(ctx context.Context) error {
	ticker := g.clock.NewTicker(g.cfg.Heartbeat)
	defer ticker.Stop()

	g.mu.Lock()
	g.lastTick = g.clock.Now()
	g.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			g.tick(ctx)
		}
	}
}

func (g *Guard) tick(ctx context.Context) {
	now := g.clock.Now()

	g.mu.Lock()
	gap := now.Sub(g.lastTick)
	g.lastTick = now
	g.mu.Unlock()

	if gap > g.cfg.SuspendAfter {
		g.logger.Info("host suspension detected", "gap", gap)
		g.background(ctx, TriggerSuspension)
	}
}

// VisibilityChanged reports the host session becoming visible or hidden.
// Becoming visible resyncs when the last sync or the last feed event is
// too old. Evaluations are throttled to one per VisibilityThrottle.
func (g *Guard) VisibilityChanged(ctx context.Context, visible bool) {
	if !visible {
		return
	}
	now := g.clock.Now()

	g.mu.Lock()
	if !g.lastVisibility.IsZero() && now.Sub(g.lastVisibility) < g.cfg.VisibilityThrottle {
		g.mu.Unlock()
		return
	}
	g.lastVisibility = now
	g.mu.Unlock()

	sinceSync := now.Sub(g.state.LastSync())
	sinceEvent := now.Sub(g.state.LastEvent())
	if sinceSync > g.cfg.SyncStaleAfter || sinceEvent > g.cfg.FeedStaleAfter {
		g.logger.Debug("stale after visibility change", "since_sync", sinceSync, "since_event", sinceEvent)
		g.background(ctx, TriggerVisibility)
		return
	}
	g.state.MarkSynced(now)
}

// NetworkChanged reports connectivity. Going back online resyncs.
func (g *Guard) NetworkChanged(ctx context.Context, online bool) {
	was := g.online.Swap(online)
	switch {
	case online && !was:
		g.notifier.Notify(notify.Notification{Level: notify.Info, Title: "Connection restored", Message: "Refreshing data..."})
		g.background(ctx, TriggerOnline)
	case !online && was:
		g.notifier.Notify(notify.Notification{Level: notify.Warning, Title: "You are offline", Message: "Changes will sync when the connection returns."})
	}
}

// background runs a heuristic resync. Failures are already reported to the
// user by Resync, so only unexpected errors are logged here.
func (g *Guard) background(ctx context.Context, trigger Trigger) {
	err := g.Resync(ctx, trigger)
	switch {
	case err == nil, errors.Is(err, ErrInFlight), errors.Is(err, ErrOffline):
	default:
		g.logger.Warn("background resync failed", "trigger", trigger, "error", err)
	}
}

// Resync re-fetches the authoritative set and replaces the canonical one.
// It is mutually exclusive: while one resync runs, others return
// ErrInFlight without fetching. Manual resyncs report progress; every
// failure is reported and leaves the previous set in place.
func (g *Guard) Resync(ctx context.Context, trigger Trigger) error {
	if !g.online.Load() {
		g.logger.Debug("resync skipped while offline", "trigger", trigger)
		return ErrOffline
	}
	if !g.inFlight.CompareAndSwap(false, true) {
		return ErrInFlight
	}
	defer g.inFlight.Store(false)

	manual := trigger == TriggerManual
	if manual {
		g.notifier.Notify(notify.Notification{Level: notify.Info, Title: "Syncing...", Message: "Fetching latest data"})
	}

	records, err := g.fetcher.FetchAll(ctx)
	if err != nil {
		g.notifier.Notify(notify.Notification{Level: notify.Error, Title: "Sync failed", Message: err.Error()})
		return fmt.Errorf("resync (%s): %w", trigger, err)
	}

	g.state.Replace(records)
	g.logger.Debug("resync complete", "trigger", trigger, "records", len(records))

	if manual {
		g.notifier.Notify(notify.Notification{Level: notify.Success, Title: "Data updated", Message: fmt.Sprintf("%d products loaded", len(records))})
	}
	return nil
}

// ResyncFunc adapts the guard for components that only know a context.
func (g *Guard) ResyncFunc(trigger Trigger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		err := g.Resync(ctx, trigger)
		if errors.Is(err, ErrInFlight) {
			return nil
		}
		return err
	}
}
