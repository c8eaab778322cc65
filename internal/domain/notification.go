package domain

import (
	"strings"
	"time"
)

// Notification is a single wallet notification as delivered to a client.
// Identity is server-assigned and stable across snapshot and stream delivery
// of the same logical event.
type Notification struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	IsRead    bool      `json:"isRead"`
}

// suspensionMarker is the phrase the back office puts in the title or body of
// a rejection notification when the account has actually been suspended, as
// opposed to an ordinary KYC rejection the user can retry.
const suspensionMarker = "suspended"

// IsBalanceCredit reports whether the notification is an admin-initiated
// balance credit. Such an event invalidates any wallet totals the client is
// holding, so its arrival forces a session teardown.
func IsBalanceCredit(n Notification) bool {
	return n.Type == EventFundsCredited
}

// IsSuspension reports whether the notification announces an account
// suspension, either directly or via a KYC rejection that carries the
// suspension marker in its display text.
func IsSuspension(n Notification) bool {
	switch n.Type {
	case EventAccountSuspended:
		return true
	case EventKYCRejected:
		return strings.Contains(strings.ToLower(n.Title), suspensionMarker) ||
			strings.Contains(strings.ToLower(n.Body), suspensionMarker)
	default:
		return false
	}
}
