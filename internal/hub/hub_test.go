// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package hub

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sellout/internal/models"
	"sellout/internal/realtime"
)

func deleteFrame() realtime.Frame {
	return realtime.ChangeFrame(models.Change{
		Kind: models.ChangeDelete,
		Old:  &models.Product{ID: uuid.New()},
	})
}

func recv(t *testing.T, ch <-chan realtime.Frame) realtime.Frame {
	t.Helper()
	select {
	case f, ok := <-ch:
		require.True(t, ok, "channel closed")
		return f
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return realtime.Frame{}
	}
}

func waitClosed(t *testing.T, ch <-chan realtime.Frame) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed")
		}
	}
}

func TestHub_NewSubscriberGetsLatestStatus(t *testing.T) {
	h := New(4)
	h.Publish(realtime.StatusFrame(realtime.StatusSubscribed, nil))

	ch, err := h.Subscribe(t.Context())
	require.NoError(t, err)

	f := recv(t, ch)
	assert.Equal(t, realtime.FrameStatus, f.Type)
	assert.Equal(t, realtime.StatusSubscribed, f.Status)
	assert.Equal(t, realtime.StatusSubscribed, h.Status())
}

func TestHub_StartsUnhealthy(t *testing.T) {
	h := New(0)
	assert.False(t, h.Status().Healthy())
}

func TestHub_BroadcastsInOrder(t *testing.T) {
	h := New(8)
	a, err := h.Subscribe(t.Context())
	require.NoError(t, err)
	b, err := h.Subscribe(t.Context())
	require.NoError(t, err)
	recv(t, a)
	recv(t, b)

	frames := []realtime.Frame{deleteFrame(), deleteFrame(), deleteFrame()}
	for _, f := range frames {
		h.Publish(f)
	}

	for _, ch := range []<-chan realtime.Frame{a, b} {
		for _, want := range frames {
			got := recv(t, ch)
			assert.Equal(t, want.Change.RecordID(), got.Change.RecordID())
		}
	}
}

func TestHub_EvictsSlowSubscriber(t *testing.T) {
	h := New(2)
	slow, err := h.Subscribe(t.Context())
	require.NoError(t, err)
	fast, err := h.Subscribe(t.Context())
	require.NoError(t, err)
	recv(t, fast)

	// slow still holds its status frame, so the second publish overflows it.
	h.Publish(deleteFrame())
	recv(t, fast)
	h.Publish(deleteFrame())
	recv(t, fast)

	assert.Equal(t, 1, h.Subscribers())
	waitClosed(t, slow)
}

func TestHub_ContextCancelUnsubscribes(t *testing.T) {
	h := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := h.Subscribe(ctx)
	require.NoError(t, err)

	cancel()
	waitClosed(t, ch)
	assert.Eventually(t, func() bool { return h.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_Shutdown(t *testing.T) {
	h := New(4)
	ch, err := h.Subscribe(t.Context())
	require.NoError(t, err)

	h.Shutdown()
	waitClosed(t, ch)

	_, err = h.Subscribe(t.Context())
	assert.Error(t, err)
	h.Publish(deleteFrame())
	h.Shutdown()
}
