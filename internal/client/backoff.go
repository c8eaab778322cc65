package client

import "time"

// Reconnect policy defaults. Delays double per attempt from the base, capped
// at the maximum; after maxReconnectAttempts consecutive failures the
// controller stops and surfaces ErrConnectionLost.
const (
	defaultBaseDelay   = time.Second
	defaultMaxDelay    = 30 * time.Second
	defaultMaxAttempts = 5
)

// reconnectDelay returns the backoff delay for the given attempt number
// (zero-based): base, 2*base, 4*base, ... capped at max.
func reconnectDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
