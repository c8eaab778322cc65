package client

// Scope configures the endpoint set for one privilege scope. The user-facing
// wallet and the admin back office consume the same stream semantics against
// different paths; a single controller parameterized by Scope serves both.
type Scope struct {
	// Name identifies the scope in logs.
	Name string

	// StreamPath is the event-stream endpoint.
	StreamPath string

	// SnapshotPath is the pull endpoint returning recent notifications and
	// the unread count.
	SnapshotPath string

	// MutatePath is the base path for mark-read/delete/clear mutations.
	MutatePath string
}

// UserScope returns the endpoint set for an ordinary account session.
func UserScope() Scope {
	return Scope{
		Name:         "user",
		StreamPath:   "/events/user",
		SnapshotPath: "/api/notifications",
		MutatePath:   "/api/notifications",
	}
}

// AdminScope returns the endpoint set for an administrative session.
func AdminScope() Scope {
	return Scope{
		Name:         "admin",
		StreamPath:   "/events/admin",
		SnapshotPath: "/api/notifications",
		MutatePath:   "/api/notifications",
	}
}
