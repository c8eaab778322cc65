package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ali-Naji-3/wallet-notify/internal/domain"
	"github.com/Ali-Naji-3/wallet-notify/internal/infrastructure/logging"
)

// snapshotResponse is the pull endpoint's payload.
type snapshotResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unreadCount"`
}

// publishRequest is the back office's entry point for injecting an event
// into a user's stream.
type publishRequest struct {
	User  string `json:"user"`
	Type  string `json:"type"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

type ackResponse struct {
	Success bool `json:"success"`
}

// requestToken pulls the credential from the Authorization header, falling
// back to the query parameter the stream endpoints use.
func requestToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// authRequest authenticates an API request, writing the error response
// itself when authentication fails.
func (s *StreamServer) authRequest(w http.ResponseWriter, r *http.Request) (user string, admin bool, ok bool) {
	user, admin, err := s.authenticate(r.Context(), requestToken(r))
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid or expired session token")
		return "", false, false
	}
	return user, admin, true
}

func (s *StreamServer) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("writing response", logging.Fields{"error": err.Error()})
	}
}

func (s *StreamServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *StreamServer) writeStoreError(w http.ResponseWriter, err error) {
	var notFound *domain.NotificationNotFoundError
	if errors.As(err, &notFound) {
		s.writeError(w, http.StatusNotFound, notFound.Error())
		return
	}
	s.logger.Error("notification store error", logging.Fields{"error": err.Error()})
	s.writeError(w, http.StatusInternalServerError, "internal server error")
}

// handleSnapshot serves the pull endpoint: the user's recent notifications
// plus the authoritative unread count.
func (s *StreamServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	user, _, ok := s.authRequest(w, r)
	if !ok {
		return
	}

	notifications, err := s.store.ListRecent(r.Context(), user, snapshotLimit)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	unread, err := s.store.CountUnread(r.Context(), user)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	if notifications == nil {
		notifications = []domain.Notification{}
	}
	s.writeJSON(w, http.StatusOK, snapshotResponse{
		Notifications: notifications,
		UnreadCount:   unread,
	})
}

// handlePublish records a notification for a user and fans it out to that
// user's live sessions. Only administrative sessions may publish.
func (s *StreamServer) handlePublish(w http.ResponseWriter, r *http.Request) {
	_, admin, ok := s.authRequest(w, r)
	if !ok {
		return
	}
	if !admin {
		s.writeError(w, http.StatusForbidden, "publishing requires an administrative session")
		return
	}

	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.User == "" || req.Title == "" {
		s.writeError(w, http.StatusBadRequest, "user and title are required")
		return
	}

	notification := domain.Notification{
		ID:        uuid.New().String(),
		Type:      domain.ParseEventType(req.Type),
		Title:     req.Title,
		Body:      req.Body,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.Insert(r.Context(), req.User, notification); err != nil {
		s.writeStoreError(w, err)
		return
	}

	if err := s.broadcaster.Publish(r.Context(), req.User, []domain.Notification{notification}); err != nil {
		s.logger.Error("publishing delta frame", logging.Fields{
			"user":  req.User,
			"error": err.Error(),
		})
	}

	s.writeJSON(w, http.StatusCreated, notification)
}

func (s *StreamServer) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	user, _, ok := s.authRequest(w, r)
	if !ok {
		return
	}

	if err := s.store.MarkRead(r.Context(), user, r.PathValue("id")); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ackResponse{Success: true})
}

func (s *StreamServer) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	user, _, ok := s.authRequest(w, r)
	if !ok {
		return
	}

	if err := s.store.MarkAllRead(r.Context(), user); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ackResponse{Success: true})
}

func (s *StreamServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, _, ok := s.authRequest(w, r)
	if !ok {
		return
	}

	if err := s.store.Delete(r.Context(), user, r.PathValue("id")); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ackResponse{Success: true})
}

func (s *StreamServer) handleClear(w http.ResponseWriter, r *http.Request) {
	user, _, ok := s.authRequest(w, r)
	if !ok {
		return
	}

	if err := s.store.Clear(r.Context(), user); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ackResponse{Success: true})
}
