package server

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/Ali-Naji-3/wallet-notify/internal/domain"
)

// streamSession represents one live event-stream connection for an
// authenticated user.
type streamSession struct {
	writer     http.ResponseWriter
	flusher    http.Flusher
	done       chan struct{}
	eventQueue chan string // Channel for queuing pre-formatted SSE events
	id         string
	user       string
	admin      bool
}

// newStreamSession creates a session for an accepted stream request.
func newStreamSession(w http.ResponseWriter, user string, admin bool, queueSize int) (*streamSession, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrResponseWriterNotFlusher
	}

	return &streamSession{
		writer:     w,
		flusher:    flusher,
		done:       make(chan struct{}),
		eventQueue: make(chan string, queueSize),
		id:         uuid.New().String(),
		user:       user,
		admin:      admin,
	}, nil
}

// ID returns the session ID.
func (s *streamSession) ID() string {
	return s.id
}

// User returns the user this session is streaming for.
func (s *streamSession) User() string {
	return s.user
}

// Close terminates the session's pump loop. Safe to call once; the event
// queue is intentionally left open so late senders never write to a closed
// channel.
func (s *streamSession) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// Enqueue queues an encoded frame for delivery. A full queue drops the frame
// rather than blocking the publisher; the client recovers the missed delta
// from the snapshot endpoint.
func (s *streamSession) Enqueue(frame domain.Frame) error {
	data, err := frame.Encode()
	if err != nil {
		return err
	}

	event := formatSSE(frame.Type, data)
	select {
	case s.eventQueue <- event:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		return ErrQueueFull
	}
}

// formatSSE renders one frame in event-stream wire format.
func formatSSE(event domain.FrameType, data []byte) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)
}
