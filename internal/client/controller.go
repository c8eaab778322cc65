package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Ali-Naji-3/wallet-notify/internal/domain"
	"github.com/Ali-Naji-3/wallet-notify/internal/infrastructure/logging"
)

// creditedLogoutHint is carried to the login entry point after a forced
// logout so the user knows why their session ended.
const creditedLogoutHint = "Your account was credited. Please sign in again."

// errUnauthorizedFrame propagates an UNAUTHORIZED error frame out of the
// read loop; it is the one frame-handling outcome that must close the
// connection.
var errUnauthorizedFrame = errors.New("unauthorized error frame")

// Callbacks is the presentation adapter's contract. All callbacks are
// optional; a nil callback is skipped.
type Callbacks struct {
	// OnNotification fires once per delivered notification, in arrival
	// order.
	OnNotification func(domain.Notification)

	// OnAlert surfaces a blocking, must-acknowledge alert.
	OnAlert func(title, body string)

	// OnForcedLogout asks the presentation layer to schedule a redirect to
	// the login entry point. Credentials are already purged by the time it
	// fires.
	OnForcedLogout func(hint string)

	// OnError surfaces terminal failures: retries exhausted, or a rejected
	// stream credential.
	OnError func(error)

	// OnStateChange reports connection state transitions.
	OnStateChange func(ConnectionState)
}

// Controller owns the event-stream connection lifecycle for one scope:
// connect, authenticate, parse frames, reconnect with bounded backoff, and
// tear down cleanly. At most one live connection exists per controller.
type Controller struct {
	baseURL         string
	scope           Scope
	creds           domain.CredentialStore
	httpClient      *http.Client
	logger          *logging.Logger
	callbacks       Callbacks
	merger          *StateMerger
	snapshotTimeout time.Duration
	baseDelay       time.Duration
	maxDelay        time.Duration
	maxAttempts     int
	sound           bool

	mu         sync.Mutex
	state      ConnectionState
	attempt    int
	connecting bool
	enabled    bool
	cancel     context.CancelFunc
	reconnect  *time.Timer
}

// Option defines a function type for configuring Controller
type Option func(*Controller)

// WithHTTPClient sets the HTTP client used for the stream, snapshot, and
// mutation calls. The client must not carry a global timeout; the stream
// request is long-lived.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Controller) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger sets the controller's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCallbacks sets the presentation adapter callbacks.
func WithCallbacks(callbacks Callbacks) Option {
	return func(c *Controller) {
		c.callbacks = callbacks
	}
}

// WithSnapshotTimeout bounds the snapshot fetch racing the initial frame.
func WithSnapshotTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.snapshotTimeout = d
		}
	}
}

// WithReconnectPolicy overrides the backoff schedule.
func WithReconnectPolicy(base, max time.Duration, maxAttempts int) Option {
	return func(c *Controller) {
		if base > 0 {
			c.baseDelay = base
		}
		if max > 0 {
			c.maxDelay = max
		}
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
	}
}

// WithSound sets the sound preference the presentation layer reads through
// Sound(). It is injected configuration, not module state.
func WithSound(sound bool) Option {
	return func(c *Controller) {
		c.sound = sound
	}
}

// NewController creates a stream controller for the given service base URL,
// endpoint scope, and credential store.
func NewController(baseURL string, scope Scope, creds domain.CredentialStore, opts ...Option) *Controller {
	c := &Controller{
		baseURL:         strings.TrimSuffix(baseURL, "/"),
		scope:           scope,
		creds:           creds,
		httpClient:      &http.Client{},
		logger:          logging.Default(),
		snapshotTimeout: 3 * time.Second,
		baseDelay:       defaultBaseDelay,
		maxDelay:        defaultMaxDelay,
		maxAttempts:     defaultMaxAttempts,
		sound:           true,
		state:           StateDisconnected,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With(logging.Fields{"scope": scope.Name})
	c.merger = NewStateMerger(newHTTPAPI(c.baseURL, scope, creds, c.httpClient), c.logger)
	return c
}

// Merger returns the controller's state merger, the single writer of the
// notification list and unread count.
func (c *Controller) Merger() *StateMerger {
	return c.merger
}

// State returns the current connection state.
func (c *Controller) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Sound reports the injected sound preference.
func (c *Controller) Sound() bool {
	return c.sound
}

// Enable opens the event stream. With no session token available it stays
// disconnected and performs no connection attempt: not being logged in yet
// is a deliberate silent case, not an error. Calling Enable with a live
// connection closes it first; calling it while a connect is already in
// progress is a no-op, so re-entrant calls cannot create two connections.
func (c *Controller) Enable() error {
	c.mu.Lock()
	if c.connecting {
		c.mu.Unlock()
		return nil
	}

	// Idempotent: tear down any previous connection and pending reconnect.
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.attempt = 0

	token, err := c.creds.Token()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("reading session token: %w", err)
	}
	if token == "" {
		c.enabled = false
		c.state = StateDisconnected
		c.mu.Unlock()
		c.logger.Debug("no session token; stream stays disconnected")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.enabled = true
	c.connecting = true
	c.state = StateConnecting
	cb := c.callbacks.OnStateChange
	c.mu.Unlock()

	if cb != nil {
		cb(StateConnecting)
	}

	go c.fetchSnapshot(ctx)
	go c.connect(ctx, token)
	return nil
}

// Disable cancels any pending reconnect, aborts the live connection and any
// in-flight snapshot fetch, and leaves the controller disconnected. It is
// safe to call repeatedly and after the owning context is gone; no state is
// mutated once it returns.
func (c *Controller) Disable() {
	c.mu.Lock()
	c.enabled = false
	c.connecting = false
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	changed := c.state != StateDisconnected
	c.state = StateDisconnected
	c.attempt = 0
	cb := c.callbacks.OnStateChange
	c.mu.Unlock()

	if changed && cb != nil {
		cb(StateDisconnected)
	}
}

// fetchSnapshot races the pull endpoint against the stream's initial frame.
// Either source may populate first; a timeout here is benign.
func (c *Controller) fetchSnapshot(ctx context.Context) {
	sctx, cancel := context.WithTimeout(ctx, c.snapshotTimeout)
	defer cancel()

	if err := c.merger.LoadSnapshot(sctx); err != nil {
		c.logger.Warn("snapshot fetch failed", logging.Fields{"error": err.Error()})
	}
}

func (c *Controller) streamURL(token string) string {
	return c.baseURL + c.scope.StreamPath + "?token=" + url.QueryEscape(token)
}

func (c *Controller) connect(ctx context.Context, token string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.streamURL(token), nil)
	if err != nil {
		c.onDisconnect(ctx, err)
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.onDisconnect(ctx, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		c.onDisconnect(ctx, fmt.Errorf("stream endpoint returned %d", resp.StatusCode))
		return
	}

	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return
	}
	c.connecting = false
	c.attempt = 0
	c.state = StateOpen
	cb := c.callbacks.OnStateChange
	c.mu.Unlock()

	if cb != nil {
		cb(StateOpen)
	}
	c.logger.Info("stream opened")

	err = c.readFrames(resp.Body)
	if errors.Is(err, errUnauthorizedFrame) {
		c.handleUnauthorized()
		return
	}
	c.onDisconnect(ctx, err)
}

// readFrames consumes the event stream until it ends, returning the cause.
// Frames within one connection are processed strictly in arrival order.
func (c *Controller) readFrames(body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var event string
	var data []byte
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event != "" {
				if err := c.dispatch(event, data); err != nil {
					return err
				}
			}
			event, data = "", nil
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:"))...)
		case strings.HasPrefix(line, ":"):
			// comment line, ignore
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

// dispatch routes one frame. Malformed frames are logged and skipped, and a
// panicking callback is contained here: nothing thrown from frame handling
// may tear down the connection except an UNAUTHORIZED error frame.
func (c *Controller) dispatch(event string, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic in frame handler", logging.Fields{"panic": fmt.Sprint(r)})
			err = nil
		}
	}()

	frame, perr := domain.ParseFrame(event, data)
	if perr != nil {
		c.logger.Warn("discarding malformed frame", logging.Fields{
			"event": event,
			"error": perr.Error(),
		})
		return nil
	}

	switch frame.Type {
	case domain.FrameConnected:
		c.logger.Debug("stream session acknowledged", logging.Fields{"session": frame.SessionID})
	case domain.FrameHeartbeat:
		// keep-alive, no state change
	case domain.FrameInitial:
		c.merger.ApplyInitial(frame.Notifications, frame.UnreadCount)
	case domain.FrameNewNotifications:
		c.handleDelta(frame)
	case domain.FrameError:
		if frame.Code == domain.CodeUnauthorized {
			return errUnauthorizedFrame
		}
		c.logger.Warn("server error frame", logging.Fields{"message": frame.Message})
	}
	return nil
}

// handleDelta runs the consistency check before any notification in the
// batch reaches generic handling.
func (c *Controller) handleDelta(frame domain.Frame) {
	verdict, match := Inspect(frame.Notifications)
	switch verdict {
	case VerdictForcedLogout:
		c.forceLogout(match)
	case VerdictSuspension:
		// Only the suspension event is delivered; once the account is known
		// to be suspended, nothing else in the batch is trustworthy.
		if cb := c.callbacks.OnNotification; cb != nil {
			cb(match)
		}
	default:
		unseen := c.merger.ApplyDelta(frame.Notifications, frame.UnreadCount)
		if cb := c.callbacks.OnNotification; cb != nil {
			for _, n := range unseen {
				cb(n)
			}
		}
	}
}

// forceLogout runs the mandatory side effects of a balance-affecting admin
// credit: blocking alert, credential purge, login redirect. The purge is the
// critical step and happens before the redirect, so a failed redirect still
// leaves the session invalidated.
func (c *Controller) forceLogout(n domain.Notification) {
	if cb := c.callbacks.OnAlert; cb != nil {
		cb(n.Title, n.Body)
	}

	if err := c.creds.Clear(); err != nil {
		c.logger.Error("purging session credentials", logging.Fields{"error": err.Error()})
	}

	if cb := c.callbacks.OnForcedLogout; cb != nil {
		cb(creditedLogoutHint)
	}
}

// handleUnauthorized terminates the connection without scheduling a
// reconnect: retrying with the same stale token would loop forever.
func (c *Controller) handleUnauthorized() {
	c.mu.Lock()
	c.connecting = false
	c.enabled = false
	c.state = StateDisconnected
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	cbState := c.callbacks.OnStateChange
	cbErr := c.callbacks.OnError
	c.mu.Unlock()

	c.logger.Warn("stream credential rejected; not reconnecting")
	if cbState != nil {
		cbState(StateDisconnected)
	}
	if cbErr != nil {
		cbErr(ErrUnauthorized)
	}
}

// onDisconnect schedules a bounded-backoff reconnect, or surfaces a terminal
// error once the attempt budget is spent. A disconnect caused by Disable
// schedules nothing: disabling is terminal, not retried.
func (c *Controller) onDisconnect(ctx context.Context, cause error) {
	c.mu.Lock()
	c.connecting = false

	if !c.enabled || ctx.Err() != nil {
		c.mu.Unlock()
		return
	}

	if c.attempt >= c.maxAttempts {
		c.enabled = false
		c.state = StateDisconnected
		cbState := c.callbacks.OnStateChange
		cbErr := c.callbacks.OnError
		c.mu.Unlock()

		c.logger.Error("stream connection lost; retries exhausted", logging.Fields{
			"cause": fmt.Sprint(cause),
		})
		if cbState != nil {
			cbState(StateDisconnected)
		}
		if cbErr != nil {
			cbErr(ErrConnectionLost)
		}
		return
	}

	delay := reconnectDelay(c.attempt, c.baseDelay, c.maxDelay)
	c.attempt++
	attempt := c.attempt
	c.state = StateBackoff
	cbState := c.callbacks.OnStateChange
	c.reconnect = time.AfterFunc(delay, func() {
		c.reconnectNow(ctx)
	})
	c.mu.Unlock()

	c.logger.Warn("stream disconnected; reconnecting", logging.Fields{
		"cause":   fmt.Sprint(cause),
		"delayMs": delay.Milliseconds(),
		"attempt": attempt,
	})
	if cbState != nil {
		cbState(StateBackoff)
	}
}

func (c *Controller) reconnectNow(ctx context.Context) {
	c.mu.Lock()
	if !c.enabled || ctx.Err() != nil {
		c.mu.Unlock()
		return
	}

	token, err := c.creds.Token()
	if err != nil || token == "" {
		// The session ended while we were backing off.
		c.enabled = false
		c.state = StateDisconnected
		c.mu.Unlock()
		return
	}

	c.connecting = true
	c.state = StateConnecting
	cb := c.callbacks.OnStateChange
	c.mu.Unlock()

	if cb != nil {
		cb(StateConnecting)
	}
	c.connect(ctx, token)
}
