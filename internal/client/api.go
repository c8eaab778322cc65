package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Ali-Naji-3/wallet-notify/internal/domain"
)

// Snapshot is the pull endpoint's payload. UnreadCount is a pointer because
// some service variants omit it, in which case the merger computes a local
// count over the snapshot instead.
type Snapshot struct {
	Notifications []domain.Notification `json:"notifications"`
	UnreadCount   *int                  `json:"unreadCount"`
}

// ServiceAPI is the request/response surface of the notification service:
// the snapshot pull plus the four mutations. The stream is not part of this
// contract; it is owned by the controller.
type ServiceAPI interface {
	FetchSnapshot(ctx context.Context) (Snapshot, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// httpAPI implements ServiceAPI against the wallet notification service.
type httpAPI struct {
	baseURL string
	scope   Scope
	creds   domain.CredentialStore
	client  *http.Client
}

func newHTTPAPI(baseURL string, scope Scope, creds domain.CredentialStore, client *http.Client) *httpAPI {
	return &httpAPI{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		scope:   scope,
		creds:   creds,
		client:  client,
	}
}

func (a *httpAPI) do(ctx context.Context, method, path string, out interface{}) error {
	token, err := a.creds.Token()
	if err != nil {
		return fmt.Errorf("reading session token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s %s returned %d", ErrMutationFailed, method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding %s response: %w", path, err)
		}
	}
	return nil
}

func (a *httpAPI) FetchSnapshot(ctx context.Context) (Snapshot, error) {
	var snapshot Snapshot
	if err := a.do(ctx, http.MethodGet, a.scope.SnapshotPath, &snapshot); err != nil {
		return Snapshot{}, err
	}
	return snapshot, nil
}

func (a *httpAPI) MarkRead(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodPost, a.scope.MutatePath+"/"+id+"/read", nil)
}

func (a *httpAPI) MarkAllRead(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, a.scope.MutatePath+"/read-all", nil)
}

func (a *httpAPI) Delete(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodDelete, a.scope.MutatePath+"/"+id, nil)
}

func (a *httpAPI) Clear(ctx context.Context) error {
	return a.do(ctx, http.MethodDelete, a.scope.MutatePath, nil)
}
