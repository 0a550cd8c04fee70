// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package changefeed turns PostgreSQL notifications from the products
// trigger into realtime frames.
package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"

	"sellout/internal/models"
	"sellout/internal/realtime"
)

// Conn is a dedicated connection able to LISTEN on a channel.
type Conn interface {
	Listen(ctx context.Context, channel string) error
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// Dialer opens a new Conn.
type Dialer func(ctx context.Context) (Conn, error)

// Publisher receives the frames produced by the listener.
type Publisher interface {
	Publish(f realtime.Frame)
}

// Invalidator drops cached state derived from the products table.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Config tunes the reconnect backoff.
type Config struct {
	Channel   string
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultConfig returns the backoff used by the server.
func DefaultConfig(channel string) Config {
	return Config{Channel: channel, BaseDelay: 500 * time.Millisecond, MaxDelay: 30 * time.Second}
}

// Listener keeps one LISTEN session open and republishes notifications.
type Listener struct {
	dial  Dialer
	pub   Publisher
	inval Invalidator
	cfg   Config
}

// NewListener creates a listener. inval may be nil.
func NewListener(dial Dialer, pub Publisher, inval Invalidator, cfg Config) *Listener {
	return &Listener{dial: dial, pub: pub, inval: inval, cfg: cfg}
}

// Run listens until ctx is done, reconnecting with capped exponential
// backoff. Each failure is published as CHANNEL_ERROR; each successful
// LISTEN as SUBSCRIBED.
func (l *Listener) Run(ctx context.Context) error {
	backoff := l.newBackoff()
	for {
		subscribed, err := l.session(ctx)
		if ctx.Err() != nil {
			l.pub.Publish(realtime.StatusFrame(realtime.StatusClosed, nil))
			return nil
		}

		slog.Warn("change listener disconnected", "error", err)
		l.pub.Publish(realtime.StatusFrame(realtime.StatusChannelError, err))
		if subscribed {
			backoff = l.newBackoff()
		}

		delay, _ := backoff.Next()
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			l.pub.Publish(realtime.StatusFrame(realtime.StatusClosed, nil))
			return nil
		case <-t.C:
		}
	}
}

func (l *Listener) newBackoff() retry.Backoff {
	return retry.WithCappedDuration(l.cfg.MaxDelay, retry.NewExponential(l.cfg.BaseDelay))
}

// session runs one connection. subscribed reports whether LISTEN succeeded.
func (l *Listener) session(ctx context.Context) (subscribed bool, err error) {
	conn, err := l.dial(ctx)
	if err != nil {
		return false, fmt.Errorf("connect: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		conn.Close(closeCtx)
	}()

	if err := conn.Listen(ctx, l.cfg.Channel); err != nil {
		return false, fmt.Errorf("listen %s: %w", l.cfg.Channel, err)
	}

	// Writes made while not listening were never seen.
	l.invalidate(ctx)
	l.pub.Publish(realtime.StatusFrame(realtime.StatusSubscribed, nil))
	slog.Info("change listener subscribed", "channel", l.cfg.Channel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return true, fmt.Errorf("wait for notification: %w", err)
		}
		change, err := Decode([]byte(n.Payload))
		if err != nil {
			slog.Error("dropping malformed change notification", "error", err)
			continue
		}
		l.invalidate(ctx)
		l.pub.Publish(realtime.ChangeFrame(change))
	}
}

func (l *Listener) invalidate(ctx context.Context) {
	if l.inval != nil {
		l.inval.Invalidate(ctx)
	}
}

// Decode parses a trigger payload into a validated change.
func Decode(payload []byte) (models.Change, error) {
	var c models.Change
	if err := json.Unmarshal(payload, &c); err != nil {
		return models.Change{}, fmt.Errorf("decode change: %w", err)
	}
	if err := c.Validate(); err != nil {
		return models.Change{}, err
	}
	return c, nil
}

type pgxConn struct {
	*pgx.Conn
}

func (c pgxConn) Listen(ctx context.Context, channel string) error {
	_, err := c.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize())
	return err
}

// PgxDialer dials a dedicated pgx connection. LISTEN needs a connection of
// its own; pooled database/sql connections cannot hold it.
func PgxDialer(dsn string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return pgxConn{conn}, nil
	}
}
