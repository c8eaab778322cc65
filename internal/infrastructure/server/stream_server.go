package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Ali-Naji-3/wallet-notify/internal/domain"
	"github.com/Ali-Naji-3/wallet-notify/internal/infrastructure/logging"
)

// Authenticator resolves a stream credential to a user. It returns
// domain.ErrUnauthorized (possibly wrapped) when the token is invalid or
// expired.
type Authenticator func(ctx context.Context, token string) (user string, admin bool, err error)

// snapshotLimit caps the notifications carried by initial frames and
// snapshot responses. Older entries stay retrievable only through the
// back-office views, which are outside this service.
const snapshotLimit = 50

// StreamServer serves the notification event stream and the snapshot and
// mutation API. The stream is Server-Sent Events; the credential travels as
// a URL query parameter because the EventSource transport cannot set custom
// headers.
type StreamServer struct {
	store        domain.NotificationStore
	broadcaster  *Broadcaster
	authenticate Authenticator
	logger       *logging.Logger
	heartbeat    time.Duration
	queueSize    int
	srv          *http.Server
	mux          *http.ServeMux
}

// StreamServerOption defines a function type for configuring StreamServer
type StreamServerOption func(*StreamServer)

// WithHeartbeatInterval sets the heartbeat frame period.
func WithHeartbeatInterval(d time.Duration) StreamServerOption {
	return func(s *StreamServer) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// WithQueueSize sets the per-session event queue capacity.
func WithQueueSize(n int) StreamServerOption {
	return func(s *StreamServer) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithLogger sets the server's logger.
func WithLogger(logger *logging.Logger) StreamServerOption {
	return func(s *StreamServer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStreamServer creates a stream server around the given store and
// authenticator.
func NewStreamServer(store domain.NotificationStore, authenticate Authenticator, opts ...StreamServerOption) *StreamServer {
	s := &StreamServer{
		store:        store,
		authenticate: authenticate,
		logger:       logging.Default(),
		heartbeat:    25 * time.Second,
		queueSize:    100,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.broadcaster = NewBroadcaster(store, s.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /events/user", s.handleUserStream)
	mux.HandleFunc("GET /events/admin", s.handleAdminStream)
	mux.HandleFunc("GET /api/notifications", s.handleSnapshot)
	mux.HandleFunc("POST /api/notifications", s.handlePublish)
	mux.HandleFunc("POST /api/notifications/read-all", s.handleMarkAllRead)
	mux.HandleFunc("POST /api/notifications/{id}/read", s.handleMarkRead)
	mux.HandleFunc("DELETE /api/notifications/{id}", s.handleDelete)
	mux.HandleFunc("DELETE /api/notifications", s.handleClear)
	s.mux = mux

	return s
}

// Broadcaster exposes the fan-out registry, used by the publish path and by
// tests.
func (s *StreamServer) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// ServeHTTP implements the http.Handler interface.
func (s *StreamServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start begins serving on the specified address.
func (s *StreamServer) Start(addr string) error {
	s.srv = &http.Server{
		Addr:    addr,
		Handler: s,
	}
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the server, closing all active sessions first.
func (s *StreamServer) Shutdown(ctx context.Context) error {
	s.broadcaster.CloseAll()
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

func (s *StreamServer) handleUserStream(w http.ResponseWriter, r *http.Request) {
	s.handleStream(w, r, false)
}

func (s *StreamServer) handleAdminStream(w http.ResponseWriter, r *http.Request) {
	s.handleStream(w, r, true)
}

// handleStream accepts one long-lived stream connection. Authentication
// failures are reported in-band as an error frame with the UNAUTHORIZED code
// so the client knows not to reconnect with the same token.
func (s *StreamServer) handleStream(w http.ResponseWriter, r *http.Request, wantAdmin bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	token := r.URL.Query().Get("token")
	user, admin, err := s.authenticate(r.Context(), token)
	if err != nil || (wantAdmin && !admin) {
		s.writeFrame(w, flusher, domain.Frame{
			Type:    domain.FrameError,
			Message: "invalid or expired session token",
			Code:    domain.CodeUnauthorized,
		})
		return
	}

	session, err := newStreamSession(w, user, wantAdmin, s.queueSize)
	if err != nil {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	s.broadcaster.Register(session)
	defer s.broadcaster.Unregister(session.ID())
	defer session.Close()

	s.logger.Info("stream session opened", logging.Fields{
		"session": session.ID(),
		"user":    user,
		"admin":   wantAdmin,
	})

	s.writeFrame(w, flusher, domain.Frame{
		Type:      domain.FrameConnected,
		SessionID: session.ID(),
	})

	// The initial frame carries the same truth as a snapshot fetch; the two
	// race on the client side and either may populate first.
	if frame, err := s.initialFrame(r.Context(), user); err != nil {
		s.logger.Error("loading initial frame", logging.Fields{
			"user":  user,
			"error": err.Error(),
		})
	} else {
		s.writeFrame(w, flusher, frame)
	}

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case event := <-session.eventQueue:
			fmt.Fprint(w, event)
			flusher.Flush()
		case <-heartbeat.C:
			s.writeFrame(w, flusher, domain.Frame{Type: domain.FrameHeartbeat})
		case <-session.done:
			return
		case <-r.Context().Done():
			s.logger.Debug("stream session closed by client", logging.Fields{
				"session": session.ID(),
			})
			return
		}
	}
}

func (s *StreamServer) initialFrame(ctx context.Context, user string) (domain.Frame, error) {
	notifications, err := s.store.ListRecent(ctx, user, snapshotLimit)
	if err != nil {
		return domain.Frame{}, err
	}
	unread, err := s.store.CountUnread(ctx, user)
	if err != nil {
		return domain.Frame{}, err
	}
	return domain.Frame{
		Type:          domain.FrameInitial,
		Notifications: notifications,
		UnreadCount:   unread,
	}, nil
}

func (s *StreamServer) writeFrame(w http.ResponseWriter, flusher http.Flusher, frame domain.Frame) {
	data, err := frame.Encode()
	if err != nil {
		s.logger.Error("encoding frame", logging.Fields{"error": err.Error()})
		return
	}
	fmt.Fprint(w, formatSSE(frame.Type, data))
	flusher.Flush()
}
