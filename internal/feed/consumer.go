// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package feed keeps a session subscribed to the backend change stream and
// folds the events it delivers into the canonical product set.
//
// The Consumer is an explicit connection manager. It moves through
// Connecting, Subscribed, Retrying and finally Closed (caller shut it down)
// or Failed (reconnect attempts exhausted). After any disconnect the next
// successful subscription triggers a full resync before further events are
// trusted, since events emitted while disconnected are lost.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"sellout/internal/models"
	"sellout/internal/realtime"
)

// ErrReloadRequired is returned by Run when the stream could not be
// re-established. The session can no longer be kept consistent.
var ErrReloadRequired = errors.New("realtime connection lost, reload required")

// Source opens a change stream subscription. onEvent and onStatus may be
// called from any goroutine; the returned function tears the subscription
// down and must be safe to call more than once.
type Source interface {
	Subscribe(ctx context.Context, onEvent func(models.Change), onStatus func(realtime.Status, error)) (unsubscribe func(), err error)
}

// Sink receives change events in delivery order.
type Sink interface {
	Apply(c models.Change) (bool, error)
}

// ResyncFunc replaces the canonical set with a fresh fetch.
type ResyncFunc func(ctx context.Context) error

// State is the consumer's connection state.
type State string

const (
	StateConnecting State = "connecting"
	StateSubscribed State = "subscribed"
	StateRetrying   State = "retrying"
	StateClosed     State = "closed"
	StateFailed     State = "failed"
)

// Config tunes reconnects.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// InboxSize bounds events buffered between the transport and the
	// applying goroutine.
	InboxSize int
}

// DefaultConfig returns three attempts with a 1s exponential backoff
// capped at 10s.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second, InboxSize: 256}
}

// StateListener observes state transitions. err is the cause of a
// Retrying or Failed transition.
type StateListener func(s State, err error)

// Consumer applies change events from a Source to a Sink.
type Consumer struct {
	source Source
	sink   Sink
	resync ResyncFunc
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	listeners []StateListener
	reorder   ResyncFunc
}

// NewConsumer creates a consumer. resync may be nil, in which case
// reconnects are trusted without a full re-fetch.
func NewConsumer(source Source, sink Sink, resync ResyncFunc, cfg Config) *Consumer {
	d := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = d.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = d.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = d.MaxDelay
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = d.InboxSize
	}
	return &Consumer{
		source: source,
		sink:   sink,
		resync: resync,
		cfg:    cfg,
		logger: slog.Default().With("component", "feed"),
		state:  StateConnecting,
	}
}

// OnState registers a listener for state transitions.
func (c *Consumer) OnState(fn StateListener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// OnReorder sets the re-fetch run when the server reports a bulk
// renumbering. Without one the reconnect resync is used.
func (c *Consumer) OnReorder(fn ResyncFunc) {
	c.mu.Lock()
	c.reorder = fn
	c.mu.Unlock()
}

// State returns the current connection state.
func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Consumer) setState(s State, err error) {
	c.mu.Lock()
	if c.state == s && err == nil {
		c.mu.Unlock()
		return
	}
	c.state = s
	fns := append([]StateListener(nil), c.listeners...)
	c.mu.Unlock()

	for _, fn := range fns {
		fn(s, err)
	}
}

type message struct {
	gen    int
	change *models.Change
	status realtime.Status
	err    error
}

// Run subscribes and applies events until ctx is cancelled (returning nil)
// or reconnects are exhausted (returning ErrReloadRequired).
func (c *Consumer) Run(ctx context.Context) error {
	inbox := make(chan message, c.cfg.InboxSize)
	backoff := c.newBackoff()

	var (
		gen         int
		unsubscribe func()
		disconnects int
		needResync  bool
	)

	stop := func() {
		if unsubscribe != nil {
			unsubscribe()
			unsubscribe = nil
		}
	}
	defer stop()

	subscribe := func() error {
		gen++
		g := gen
		c.setState(StateConnecting, nil)

		send := func(m message) {
			m.gen = g
			select {
			case inbox <- m:
			case <-ctx.Done():
			}
		}
		unsub, err := c.source.Subscribe(ctx,
			func(ch models.Change) { send(message{change: &ch}) },
			func(s realtime.Status, err error) { send(message{status: s, err: err}) },
		)
		if err != nil {
			return err
		}
		unsubscribe = unsub
		return nil
	}

	// reconnect waits out the backoff and subscribes again, looping while
	// Subscribe itself fails. It returns false once attempts run out.
	reconnect := func(cause error) (bool, error) {
		for {
			stop()
			needResync = true
			disconnects++

			delay, exhausted := backoff.Next()
			if exhausted {
				c.logger.Error("realtime reconnect attempts exhausted", "attempts", disconnects-1, "error", cause)
				c.setState(StateFailed, cause)
				return false, fmt.Errorf("%w: %v", ErrReloadRequired, cause)
			}
			c.logger.Warn("realtime channel lost, retrying", "delay", delay, "error", cause)
			c.setState(StateRetrying, cause)

			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return false, nil
			case <-t.C:
			}

			if err := subscribe(); err != nil {
				cause = err
				continue
			}
			return true, nil
		}
	}

	if err := subscribe(); err != nil {
		if ok, err := reconnect(err); !ok {
			c.finish(ctx)
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			c.finish(ctx)
			return nil

		case m := <-inbox:
			if m.gen != gen {
				continue
			}
			if m.change != nil {
				c.apply(*m.change)
				if m.change.Kind == models.ChangeReorder {
					c.reordered(ctx)
				}
				continue
			}

			switch m.status {
			case realtime.StatusSubscribed:
				if needResync && c.resync != nil {
					if err := c.resync(ctx); err != nil {
						c.logger.Error("resync after reconnect failed", "error", err)
					}
				}
				needResync = false
				disconnects = 0
				backoff = c.newBackoff()
				c.setState(StateSubscribed, nil)

			case realtime.StatusChannelError, realtime.StatusChannelClosed,
				realtime.StatusTimedOut, realtime.StatusClosed:
				cause := m.err
				if cause == nil {
					cause = fmt.Errorf("channel status %s", m.status)
				}
				ok, err := reconnect(cause)
				if !ok {
					c.finish(ctx)
					return err
				}

			default:
				c.logger.Warn("unknown channel status ignored", "status", m.status)
			}
		}
	}
}

// finish moves to Closed unless the consumer already failed.
func (c *Consumer) finish(ctx context.Context) {
	if ctx.Err() != nil && c.State() != StateFailed {
		c.setState(StateClosed, nil)
	}
}

// apply hands one event to the sink. A failing or panicking sink is
// logged and the subscription continues.
func (c *Consumer) apply(ch models.Change) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic applying change", "panic", r, "type", ch.Kind, "id", ch.RecordID())
		}
	}()
	if _, err := c.sink.Apply(ch); err != nil {
		c.logger.Error("applying change", "error", err, "type", ch.Kind, "id", ch.RecordID())
	}
}

// reordered re-fetches after a bulk renumbering, which arrives without rows.
func (c *Consumer) reordered(ctx context.Context) {
	c.mu.Lock()
	fn := c.reorder
	c.mu.Unlock()
	if fn == nil {
		fn = c.resync
	}
	if fn == nil {
		c.logger.Warn("reorder received without a resync function")
		return
	}
	if err := fn(ctx); err != nil {
		c.logger.Error("resync after reorder failed", "error", err)
	}
}

func (c *Consumer) newBackoff() retry.Backoff {
	b := retry.NewExponential(c.cfg.BaseDelay)
	b = retry.WithCappedDuration(c.cfg.MaxDelay, b)
	return retry.WithMaxRetries(uint64(c.cfg.MaxAttempts), b)
}
