// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package realtime defines the wire format of the change stream shared by
// the server's WebSocket endpoint and the client that consumes it.
package realtime

import (
	"encoding/json"
	"fmt"

	"sellout/internal/models"
)

// Status is the lifecycle state of a change stream subscription.
type Status string

const (
	StatusSubscribed    Status = "SUBSCRIBED"
	StatusChannelError  Status = "CHANNEL_ERROR"
	StatusChannelClosed Status = "CHANNEL_CLOSED"
	StatusTimedOut      Status = "TIMED_OUT"
	StatusClosed        Status = "CLOSED"
)

// Healthy reports whether events can be trusted under this status.
func (s Status) Healthy() bool {
	return s == StatusSubscribed
}

// FrameType discriminates frames on the wire.
type FrameType string

const (
	FrameChange FrameType = "change"
	FrameStatus FrameType = "status"
)

// Frame is one message of the stream.
type Frame struct {
	Type   FrameType      `json:"type"`
	Change *models.Change `json:"change,omitempty"`
	Status Status         `json:"status,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// ChangeFrame wraps a change event.
func ChangeFrame(c models.Change) Frame {
	return Frame{Type: FrameChange, Change: &c}
}

// StatusFrame wraps a status transition. err may be nil.
func StatusFrame(s Status, err error) Frame {
	f := Frame{Type: FrameStatus, Status: s}
	if err != nil {
		f.Error = err.Error()
	}
	return f
}

// Decode parses and validates one frame.
func Decode(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("decoding frame: %w", err)
	}
	switch f.Type {
	case FrameChange:
		if f.Change == nil {
			return Frame{}, fmt.Errorf("decoding frame: change frame without payload")
		}
		if err := f.Change.Validate(); err != nil {
			return Frame{}, fmt.Errorf("decoding frame: %w", err)
		}
	case FrameStatus:
		if f.Status == "" {
			return Frame{}, fmt.Errorf("decoding frame: status frame without status")
		}
	default:
		return Frame{}, fmt.Errorf("decoding frame: unknown type %q", f.Type)
	}
	return f, nil
}
