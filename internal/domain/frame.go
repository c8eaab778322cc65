package domain

import (
	"encoding/json"
	"fmt"
)

// FrameType discriminates the messages delivered over the event stream.
type FrameType string

const (
	FrameConnected        FrameType = "connected"
	FrameInitial          FrameType = "initial"
	FrameNewNotifications FrameType = "new_notifications"
	FrameHeartbeat        FrameType = "heartbeat"
	FrameError            FrameType = "error"
)

// CodeUnauthorized is the error-frame code signalling that the stream
// credential was rejected. A client receiving it must close without
// reconnecting; retrying with the same stale token would loop forever.
const CodeUnauthorized = "UNAUTHORIZED"

// Frame is one discrete message delivered over the event stream. Which
// payload fields are meaningful depends on Type: initial and
// new_notifications carry Notifications and UnreadCount, error carries
// Message and Code, connected carries SessionID, heartbeat carries nothing.
type Frame struct {
	Type          FrameType      `json:"type"`
	SessionID     string         `json:"sessionId,omitempty"`
	Notifications []Notification `json:"notifications,omitempty"`
	UnreadCount   int            `json:"unreadCount"`
	Message       string         `json:"message,omitempty"`
	Code          string         `json:"code,omitempty"`
}

// ParseFrame decodes a frame from its SSE event name and data payload.
// Unknown event names and undecodable payloads are both reported as errors;
// callers are expected to log and skip them without tearing the stream down.
func ParseFrame(event string, data []byte) (Frame, error) {
	ft := FrameType(event)
	switch ft {
	case FrameConnected, FrameInitial, FrameNewNotifications, FrameHeartbeat, FrameError:
	default:
		return Frame{}, fmt.Errorf("%w: %q", ErrUnknownFrame, event)
	}

	frame := Frame{Type: ft}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &frame); err != nil {
			return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
	}
	frame.Type = ft
	return frame, nil
}

// Encode serializes the frame payload for transmission.
func (f Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}
