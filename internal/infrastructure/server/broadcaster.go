package server

import (
	"context"
	"sync"

	"github.com/Ali-Naji-3/wallet-notify/internal/domain"
	"github.com/Ali-Naji-3/wallet-notify/internal/infrastructure/logging"
)

// Broadcaster routes new_notifications frames to the live sessions of each
// user. A user may hold several concurrent sessions (multiple tabs, or a
// user-scope and an admin-scope stream); every one of them receives the
// frame.
type Broadcaster struct {
	mu       sync.RWMutex
	sessions map[string]*streamSession
	store    domain.NotificationStore
	logger   *logging.Logger
}

// NewBroadcaster creates a Broadcaster backed by the given store.
func NewBroadcaster(store domain.NotificationStore, logger *logging.Logger) *Broadcaster {
	if logger == nil {
		logger = logging.Default()
	}
	return &Broadcaster{
		sessions: make(map[string]*streamSession),
		store:    store,
		logger:   logger,
	}
}

// Register adds a session to the broadcaster.
func (b *Broadcaster) Register(session *streamSession) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[session.ID()] = session
}

// Unregister removes a session from the broadcaster.
func (b *Broadcaster) Unregister(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, sessionID)
}

// Count returns the number of live sessions.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}

// Publish fans a delta frame carrying the given notifications out to all of
// the user's sessions. The frame's unread count is computed from the store so
// it accounts for notifications the client has never fetched.
func (b *Broadcaster) Publish(ctx context.Context, user string, notifications []domain.Notification) error {
	unread, err := b.store.CountUnread(ctx, user)
	if err != nil {
		return err
	}

	frame := domain.Frame{
		Type:          domain.FrameNewNotifications,
		Notifications: notifications,
		UnreadCount:   unread,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, session := range b.sessions {
		if session.User() != user {
			continue
		}
		if err := session.Enqueue(frame); err != nil {
			// A slow consumer loses the delta; the snapshot endpoint still
			// has it.
			b.logger.Warn("dropping delta frame", logging.Fields{
				"session": session.ID(),
				"user":    user,
				"error":   err.Error(),
			})
		}
	}

	return nil
}

// CloseAll terminates every live session.
func (b *Broadcaster) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, session := range b.sessions {
		session.Close()
	}
	b.sessions = make(map[string]*streamSession)
}
