// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"sellout/internal/realtime"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
)

// FrameSource hands out realtime frame subscriptions.
type FrameSource interface {
	Subscribe(ctx context.Context) (<-chan realtime.Frame, error)
}

// Realtime streams change and status frames over a WebSocket.
type Realtime struct {
	source   FrameSource
	upgrader websocket.Upgrader
	ping     time.Duration
}

// NewRealtime creates the realtime handler.
func NewRealtime(source FrameSource) *Realtime {
	return &Realtime{
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 32 * 1024,
			CheckOrigin:     sameOrigin,
		},
		ping: pingInterval,
	}
}

// sameOrigin accepts non-browser clients (no Origin header) and browsers
// on the API's own host.
func sameOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	return strings.HasSuffix(origin, "://"+strings.TrimSpace(r.Host))
}

// Serve upgrades the connection and forwards frames until either side
// goes away. The first frame is always the current listener status.
func (h *Realtime) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an error response.
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	frames, err := h.source.Subscribe(ctx)
	if err != nil {
		closeWith(conn, websocket.CloseGoingAway, "server shutting down")
		return
	}

	// Reader: the client never sends data frames, but reading is needed to
	// process pongs and notice the peer closing.
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.ping)
	defer ticker.Stop()

	for {
		select {
		case f, ok := <-frames:
			if !ok {
				// Evicted or hub shut down: the client must reconnect and resync.
				closeWith(conn, websocket.CloseTryAgainLater, "stream interrupted")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(f); err != nil {
				slog.Debug("realtime write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}
