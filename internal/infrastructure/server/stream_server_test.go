package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ali-Naji-3/wallet-notify/internal/domain"
)

// memStore is an in-memory NotificationStore keeping each user's
// notifications newest first.
type memStore struct {
	mu    sync.Mutex
	items map[string][]domain.Notification
}

func newMemStore() *memStore {
	return &memStore{items: make(map[string][]domain.Notification)}
}

func (m *memStore) ListRecent(ctx context.Context, user string, limit int) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.items[user]
	if len(list) > limit {
		list = list[:limit]
	}
	out := make([]domain.Notification, len(list))
	copy(out, list)
	return out, nil
}

func (m *memStore) CountUnread(ctx context.Context, user string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.items[user] {
		if !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *memStore) Insert(ctx context.Context, user string, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[user] = append([]domain.Notification{n}, m.items[user]...)
	return nil
}

func (m *memStore) MarkRead(ctx context.Context, user, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.items[user] {
		if n.ID == id {
			m.items[user][i].IsRead = true
			return nil
		}
	}
	return domain.NewNotificationNotFoundError(id)
}

func (m *memStore) MarkAllRead(ctx context.Context, user string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items[user] {
		m.items[user][i].IsRead = true
	}
	return nil
}

func (m *memStore) Delete(ctx context.Context, user, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.items[user] {
		if n.ID == id {
			m.items[user] = append(m.items[user][:i], m.items[user][i+1:]...)
			return nil
		}
	}
	return domain.NewNotificationNotFoundError(id)
}

func (m *memStore) Clear(ctx context.Context, user string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[user] = nil
	return nil
}

func testAuthenticator(ctx context.Context, token string) (string, bool, error) {
	switch token {
	case "user-token":
		return "alice", false, nil
	case "admin-token":
		return "ops", true, nil
	default:
		return "", false, domain.ErrUnauthorized
	}
}

func seedNotifications(t *testing.T, store *memStore, user string, n int) []domain.Notification {
	t.Helper()
	seeded := make([]domain.Notification, 0, n)
	for i := 0; i < n; i++ {
		notification := domain.Notification{
			ID:        fmt.Sprintf("seed-%d", i),
			Type:      domain.EventTransactionCompleted,
			Title:     fmt.Sprintf("Payment %d", i),
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.Insert(context.Background(), user, notification))
		seeded = append([]domain.Notification{notification}, seeded...)
	}
	return seeded
}

func newTestServer(t *testing.T, store *memStore) (*StreamServer, *httptest.Server) {
	t.Helper()
	srv := NewStreamServer(store, testAuthenticator)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts
}

func apiRequest(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// readSSEFrame consumes one event/data pair from an open stream.
func readSSEFrame(t *testing.T, r *bufio.Reader) (event, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if event != "" {
				return event, data
			}
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	store := newMemStore()
	seeded := seedNotifications(t, store, "alice", 3)
	require.NoError(t, store.MarkRead(context.Background(), "alice", seeded[2].ID))

	_, ts := newTestServer(t, store)

	resp := apiRequest(t, http.MethodGet, ts.URL+"/api/notifications", "user-token", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snapshot snapshotResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))

	require.Len(t, snapshot.Notifications, 3)
	assert.Equal(t, seeded[0].ID, snapshot.Notifications[0].ID, "newest first")
	assert.Equal(t, 2, snapshot.UnreadCount)
}

func TestSnapshotRejectsBadToken(t *testing.T) {
	_, ts := newTestServer(t, newMemStore())

	resp := apiRequest(t, http.MethodGet, ts.URL+"/api/notifications", "bogus", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPublishRequiresAdmin(t *testing.T) {
	store := newMemStore()
	_, ts := newTestServer(t, store)

	body := publishRequest{User: "alice", Type: "kyc_approved", Title: "Verified"}

	resp := apiRequest(t, http.MethodPost, ts.URL+"/api/notifications", "user-token", body)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = apiRequest(t, http.MethodPost, ts.URL+"/api/notifications", "admin-token", body)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created domain.Notification
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, domain.EventKYCApproved, created.Type)

	stored, err := store.ListRecent(context.Background(), "alice", snapshotLimit)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, created.ID, stored[0].ID)
}

func TestPublishValidation(t *testing.T) {
	_, ts := newTestServer(t, newMemStore())

	resp := apiRequest(t, http.MethodPost, ts.URL+"/api/notifications", "admin-token",
		publishRequest{User: "", Title: "missing user"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = apiRequest(t, http.MethodPost, ts.URL+"/api/notifications", "admin-token",
		publishRequest{User: "alice", Title: ""})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMutationEndpoints(t *testing.T) {
	store := newMemStore()
	seeded := seedNotifications(t, store, "alice", 3)
	_, ts := newTestServer(t, store)
	ctx := context.Background()

	t.Run("MarkRead", func(t *testing.T) {
		resp := apiRequest(t, http.MethodPost, ts.URL+"/api/notifications/"+seeded[0].ID+"/read", "user-token", nil)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		unread, err := store.CountUnread(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 2, unread)
	})

	t.Run("MarkReadUnknownID", func(t *testing.T) {
		resp := apiRequest(t, http.MethodPost, ts.URL+"/api/notifications/nope/read", "user-token", nil)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Delete", func(t *testing.T) {
		resp := apiRequest(t, http.MethodDelete, ts.URL+"/api/notifications/"+seeded[1].ID, "user-token", nil)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		list, err := store.ListRecent(ctx, "alice", snapshotLimit)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("DeleteUnknownID", func(t *testing.T) {
		resp := apiRequest(t, http.MethodDelete, ts.URL+"/api/notifications/nope", "user-token", nil)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("MarkAllRead", func(t *testing.T) {
		resp := apiRequest(t, http.MethodPost, ts.URL+"/api/notifications/read-all", "user-token", nil)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		unread, err := store.CountUnread(ctx, "alice")
		require.NoError(t, err)
		assert.Zero(t, unread)
	})

	t.Run("Clear", func(t *testing.T) {
		resp := apiRequest(t, http.MethodDelete, ts.URL+"/api/notifications", "user-token", nil)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		list, err := store.ListRecent(ctx, "alice", snapshotLimit)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestStreamConnectAndInitial(t *testing.T) {
	store := newMemStore()
	seeded := seedNotifications(t, store, "alice", 2)
	srv, ts := newTestServer(t, store)

	resp, err := http.Get(ts.URL + "/events/user?token=user-token")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)

	event, data := readSSEFrame(t, reader)
	frame, err := domain.ParseFrame(event, []byte(data))
	require.NoError(t, err)
	assert.Equal(t, domain.FrameConnected, frame.Type)
	assert.NotEmpty(t, frame.SessionID)

	event, data = readSSEFrame(t, reader)
	frame, err = domain.ParseFrame(event, []byte(data))
	require.NoError(t, err)
	assert.Equal(t, domain.FrameInitial, frame.Type)
	require.Len(t, frame.Notifications, 2)
	assert.Equal(t, seeded[0].ID, frame.Notifications[0].ID)
	assert.Equal(t, 2, frame.UnreadCount)

	assert.Equal(t, 1, srv.Broadcaster().Count())
}

func TestStreamRejectsBadToken(t *testing.T) {
	srv, ts := newTestServer(t, newMemStore())

	resp, err := http.Get(ts.URL + "/events/user?token=bogus")
	require.NoError(t, err)
	defer resp.Body.Close()

	event, data := readSSEFrame(t, bufio.NewReader(resp.Body))
	frame, err := domain.ParseFrame(event, []byte(data))
	require.NoError(t, err)
	assert.Equal(t, domain.FrameError, frame.Type)
	assert.Equal(t, domain.CodeUnauthorized, frame.Code)
	assert.Zero(t, srv.Broadcaster().Count())
}

func TestAdminStreamRequiresAdminSession(t *testing.T) {
	_, ts := newTestServer(t, newMemStore())

	resp, err := http.Get(ts.URL + "/events/admin?token=user-token")
	require.NoError(t, err)
	defer resp.Body.Close()

	event, data := readSSEFrame(t, bufio.NewReader(resp.Body))
	frame, err := domain.ParseFrame(event, []byte(data))
	require.NoError(t, err)
	assert.Equal(t, domain.FrameError, frame.Type)
	assert.Equal(t, domain.CodeUnauthorized, frame.Code)
}

func TestPublishFansOutToLiveStream(t *testing.T) {
	store := newMemStore()
	_, ts := newTestServer(t, store)

	resp, err := http.Get(ts.URL + "/events/user?token=user-token")
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	readSSEFrame(t, reader) // connected
	readSSEFrame(t, reader) // initial

	pub := apiRequest(t, http.MethodPost, ts.URL+"/api/notifications", "admin-token",
		publishRequest{User: "alice", Type: "funds_credited", Title: "Account Credited", Body: "$25 added"})
	pub.Body.Close()
	require.Equal(t, http.StatusCreated, pub.StatusCode)

	event, data := readSSEFrame(t, reader)
	frame, err := domain.ParseFrame(event, []byte(data))
	require.NoError(t, err)
	assert.Equal(t, domain.FrameNewNotifications, frame.Type)
	require.Len(t, frame.Notifications, 1)
	assert.Equal(t, domain.EventFundsCredited, frame.Notifications[0].Type)
	assert.Equal(t, "Account Credited", frame.Notifications[0].Title)
	assert.Equal(t, 1, frame.UnreadCount)
}

func TestStreamHeartbeat(t *testing.T) {
	srv := NewStreamServer(newMemStore(), testAuthenticator,
		WithHeartbeatInterval(50*time.Millisecond))
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/events/user?token=user-token")
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	readSSEFrame(t, reader) // connected
	readSSEFrame(t, reader) // initial

	event, _ := readSSEFrame(t, reader)
	assert.Equal(t, string(domain.FrameHeartbeat), event)
}
