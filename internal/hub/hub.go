// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package hub fans realtime frames out to every connected session.
//
// Delivery to a subscriber is never dropped silently. A subscriber whose
// buffer is full is evicted and its channel closed, so the connection
// serving it ends and the session resyncs after reconnecting.
package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"sellout/internal/realtime"
)

// DefaultBuffer is the per-subscriber frame buffer.
const DefaultBuffer = 256

var errClosed = errors.New("hub closed")

type subscriber struct {
	ch chan realtime.Frame
}

// Hub broadcasts frames to subscribers and remembers the latest status
// frame, which a new subscriber receives first.
type Hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	status realtime.Frame
	closed bool
	buffer int
}

// New creates a hub. A buffer of zero uses DefaultBuffer.
func New(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:   make(map[*subscriber]struct{}),
		status: realtime.StatusFrame(realtime.StatusChannelError, errors.New("change listener not started")),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber until ctx is done. The channel is
// closed when the subscription ends, the subscriber falls behind, or the
// hub shuts down.
func (h *Hub) Subscribe(ctx context.Context) (<-chan realtime.Frame, error) {
	sub := &subscriber{ch: make(chan realtime.Frame, h.buffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, errClosed
	}
	sub.ch <- h.status
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.remove(sub)
	}()
	return sub.ch, nil
}

// Publish delivers f to every subscriber. Status frames also replace the
// remembered status.
func (h *Hub) Publish(f realtime.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	if f.Type == realtime.FrameStatus {
		h.status = f
	}

	for sub := range h.subs {
		select {
		case sub.ch <- f:
		default:
			slog.Warn("realtime subscriber too slow, evicting", "buffer", h.buffer)
			delete(h.subs, sub)
			close(sub.ch)
		}
	}
}

// Status returns the latest published status.
func (h *Hub) Status() realtime.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status.Status
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Shutdown closes every subscriber channel. Later Publish calls are
// ignored and Subscribe fails.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		close(sub.ch)
	}
	h.subs = nil
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
}
