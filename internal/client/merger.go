package client

import (
	"context"
	"errors"
	"sync"

	"github.com/Ali-Naji-3/wallet-notify/internal/domain"
	"github.com/Ali-Naji-3/wallet-notify/internal/infrastructure/logging"
)

// maxVisible bounds the in-memory notification list. Entries beyond it are
// discardable because they remain retrievable through the snapshot endpoint.
const maxVisible = 50

// StateMerger is the single source of truth for the visible notification
// list and unread count. It reconciles the initial snapshot with streamed
// deltas without ever producing a duplicate id or regressing a local
// read/delete.
//
// The unread count is derived from the list after local mutations, but after
// a delta frame it is taken verbatim from the frame: the server may account
// for notifications the client has never fetched, so a naive local recount
// is allowed to diverge in that one case.
type StateMerger struct {
	mu            sync.Mutex
	notifications []domain.Notification
	unread        int
	tombstones    map[string]struct{}
	api           ServiceAPI
	logger        *logging.Logger
}

// NewStateMerger creates a merger backed by the given service API.
func NewStateMerger(api ServiceAPI, logger *logging.Logger) *StateMerger {
	if logger == nil {
		logger = logging.Default()
	}
	return &StateMerger{
		tombstones: make(map[string]struct{}),
		api:        api,
		logger:     logger,
	}
}

// Notifications returns a copy of the visible notification list, newest
// first.
func (m *StateMerger) Notifications() []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Notification, len(m.notifications))
	copy(out, m.notifications)
	return out
}

// UnreadCount returns the current unread count.
func (m *StateMerger) UnreadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unread
}

// LoadSnapshot fetches the pull endpoint and replaces the current state with
// its result. A timeout or cancellation is a soft failure: the stream's
// initial frame carries the same truth and the two sources race, so the
// caller is not told about it.
func (m *StateMerger) LoadSnapshot(ctx context.Context) error {
	snapshot, err := m.api.FetchSnapshot(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			m.logger.Debug("snapshot fetch timed out; waiting on initial frame")
			return nil
		}
		return err
	}

	// Guard against a stale completion applying state after teardown.
	if ctx.Err() != nil {
		return nil
	}

	unread := 0
	if snapshot.UnreadCount != nil {
		unread = *snapshot.UnreadCount
	} else {
		for _, n := range snapshot.Notifications {
			if !n.IsRead {
				unread++
			}
		}
	}

	m.mu.Lock()
	m.notifications = append([]domain.Notification(nil), snapshot.Notifications...)
	m.unread = unread
	m.mu.Unlock()
	return nil
}

// ApplyInitial replaces the current state with a stream initial frame. Both
// the snapshot and the initial frame represent the truth at connect time, so
// last-writer-wins between them is acceptable.
func (m *StateMerger) ApplyInitial(notifications []domain.Notification, unread int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append([]domain.Notification(nil), notifications...)
	m.unread = unread
}

// ApplyDelta merges a delta frame: notifications whose ids are already
// present, or which were locally deleted, are skipped; the remainder are
// prepended in arrival order; the list is truncated to maxVisible; the
// unread count is taken from the frame. Returns the notifications that were
// actually added, in arrival order.
func (m *StateMerger) ApplyDelta(notifications []domain.Notification, unread int) []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	known := make(map[string]struct{}, len(m.notifications))
	for _, n := range m.notifications {
		known[n.ID] = struct{}{}
	}

	var unseen []domain.Notification
	for _, n := range notifications {
		if _, ok := known[n.ID]; ok {
			continue
		}
		if _, ok := m.tombstones[n.ID]; ok {
			continue
		}
		known[n.ID] = struct{}{}
		unseen = append(unseen, n)
	}

	merged := make([]domain.Notification, 0, len(unseen)+len(m.notifications))
	merged = append(merged, unseen...)
	merged = append(merged, m.notifications...)
	if len(merged) > maxVisible {
		merged = merged[:maxVisible]
	}

	m.notifications = merged
	m.unread = unread
	return unseen
}

// MarkRead optimistically marks the matching local entry as read and then
// confirms with the service. A failed confirm is returned to the caller but
// the local state is deliberately not rolled back: a "read" entry the server
// still considers unread is less harmful than a flash back to unread.
func (m *StateMerger) MarkRead(ctx context.Context, id string) error {
	m.mu.Lock()
	for i := range m.notifications {
		if m.notifications[i].ID == id && !m.notifications[i].IsRead {
			m.notifications[i].IsRead = true
			if m.unread > 0 {
				m.unread--
			}
			break
		}
	}
	m.mu.Unlock()

	return m.api.MarkRead(ctx, id)
}

// MarkAllRead marks every local entry as read, zeroes the unread count, and
// confirms with the service.
func (m *StateMerger) MarkAllRead(ctx context.Context) error {
	m.mu.Lock()
	for i := range m.notifications {
		m.notifications[i].IsRead = true
	}
	m.unread = 0
	m.mu.Unlock()

	return m.api.MarkAllRead(ctx)
}

// DeleteOne removes the matching local entry, records a tombstone so a
// late-arriving delta cannot resurrect it, and confirms with the service.
func (m *StateMerger) DeleteOne(ctx context.Context, id string) error {
	m.mu.Lock()
	filtered := m.notifications[:0]
	for _, n := range m.notifications {
		if n.ID == id {
			if !n.IsRead && m.unread > 0 {
				m.unread--
			}
			m.tombstones[id] = struct{}{}
			continue
		}
		filtered = append(filtered, n)
	}
	m.notifications = filtered
	m.mu.Unlock()

	return m.api.Delete(ctx, id)
}

// ClearAll empties the local list, tombstones every removed id, zeroes the
// unread count, and confirms with the service.
func (m *StateMerger) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	for _, n := range m.notifications {
		m.tombstones[n.ID] = struct{}{}
	}
	m.notifications = nil
	m.unread = 0
	m.mu.Unlock()

	return m.api.Clear(ctx)
}
