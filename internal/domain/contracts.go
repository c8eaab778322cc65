package domain

import "context"

// CredentialStore holds the current session credential. The stream controller
// reads it to authenticate the event stream; the consistency enforcer purges
// it during a forced logout.
type CredentialStore interface {
	// Token returns the current session token, or an empty string when no
	// session is active. An error indicates the backing store itself failed,
	// not the absence of a session.
	Token() (string, error)

	// Clear purges the token and any cached identity.
	Clear() error
}

// NotificationStore is the server-side persistence contract for a user's
// notification set.
type NotificationStore interface {
	// ListRecent returns up to limit of the user's most recent undeleted
	// notifications, newest first.
	ListRecent(ctx context.Context, user string, limit int) ([]Notification, error)

	// CountUnread counts the user's undeleted, unread notifications.
	CountUnread(ctx context.Context, user string) (int, error)

	// Insert records a new notification for the user.
	Insert(ctx context.Context, user string, n Notification) error

	// MarkRead marks one notification as read.
	MarkRead(ctx context.Context, user, id string) error

	// MarkAllRead marks all of the user's notifications as read.
	MarkAllRead(ctx context.Context, user string) error

	// Delete soft-deletes one notification.
	Delete(ctx context.Context, user, id string) error

	// Clear soft-deletes all of the user's notifications.
	Clear(ctx context.Context, user string) error
}
