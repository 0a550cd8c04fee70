// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package apiclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"sellout/internal/models"
	"sellout/internal/realtime"
)

const writeWait = 10 * time.Second

// Subscribe opens the change stream. The server confirms with a
// SUBSCRIBED status frame; transport failures are reported through
// onStatus as CHANNEL_ERROR, TIMED_OUT or CHANNEL_CLOSED, after which the
// subscription is dead and a new one must be opened.
func (c *Client) Subscribe(ctx context.Context, onEvent func(models.Change), onStatus func(realtime.Status, error)) (func(), error) {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/api/realtime"

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial realtime: %w", err)
	}

	var (
		closed atomic.Bool
		once   sync.Once
		done   = make(chan struct{})
	)
	unsubscribe := func() {
		once.Do(func() {
			closed.Store(true)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		})
	}

	extend := func() { _ = conn.SetReadDeadline(time.Now().Add(c.pingWait)) }
	extend()
	conn.SetPingHandler(func(data string) error {
		extend()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if closed.Load() {
					return
				}
				unsubscribe()
				onStatus(statusFor(err), err)
				return
			}
			extend()

			f, err := realtime.Decode(data)
			if err != nil {
				slog.Warn("dropping malformed realtime frame", "error", err)
				continue
			}
			switch f.Type {
			case realtime.FrameChange:
				onEvent(*f.Change)
			case realtime.FrameStatus:
				var cause error
				if f.Error != "" {
					cause = errors.New(f.Error)
				}
				onStatus(f.Status, cause)
			}
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-done:
		}
	}()

	return unsubscribe, nil
}

func statusFor(err error) realtime.Status {
	var ne net.Error
	switch {
	case errors.As(err, &ne) && ne.Timeout():
		return realtime.StatusTimedOut
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		return realtime.StatusChannelClosed
	default:
		return realtime.StatusChannelError
	}
}
