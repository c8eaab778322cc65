package client

import "errors"

// Common errors in the client package
var (
	// ErrConnectionLost is surfaced once the reconnect budget is exhausted.
	ErrConnectionLost = errors.New("connection lost: retry attempts exhausted")

	// ErrUnauthorized is surfaced when the server rejects the stream
	// credential. The controller does not reconnect in this case; the
	// presentation layer must prompt for a fresh login instead.
	ErrUnauthorized = errors.New("stream credential rejected")

	// ErrMutationFailed wraps a rejected mark-read/delete/clear call. Local
	// optimistic state is not rolled back.
	ErrMutationFailed = errors.New("notification mutation rejected")
)
