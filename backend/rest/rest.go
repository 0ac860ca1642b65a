// Package rest provides an item store backed by a MockAPI-style REST resource,
// plus an HTTP handler that serves the same resource from any backend.ItemStore.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"taskpad/backend"
	"taskpad/internal/ratelimit"
	"taskpad/internal/utils"
)

const (
	// DefaultResource is the collection path segment
	DefaultResource = "items"
	// DefaultTimeout bounds every request
	DefaultTimeout = 10 * time.Second
)

// Config holds remote API connection settings
type Config struct {
	BaseURL  string
	Resource string        // defaults to DefaultResource
	Timeout  time.Duration // defaults to DefaultTimeout
	Token    string        // optional bearer token
	Retry    ratelimit.Config
}

// Backend implements backend.ItemStore over HTTP
type Backend struct {
	config  Config
	client  *ratelimit.Client
	baseURL string
}

// New creates a new REST backend
func New(cfg Config) (*Backend, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("rest backend: base URL is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("rest backend: invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if cfg.Resource == "" {
		cfg.Resource = DefaultResource
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Backend{
		config:  cfg,
		client:  ratelimit.NewClient(createHTTPClient(cfg.Timeout), cfg.Retry),
		baseURL: baseURL,
	}, nil
}

// createHTTPClient creates an HTTP client with the configured timeout
func createHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// Close releases idle connections
func (b *Backend) Close() error {
	if b.client == nil {
		return nil
	}
	if transport, ok := b.client.HTTPClient().Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}

func (b *Backend) collectionPath() string {
	return "/" + url.PathEscape(b.config.Resource)
}

func (b *Backend) itemPath(id string) string {
	return b.collectionPath() + "/" + url.PathEscape(id)
}

// doRequest sends a JSON request and decodes a 2xx JSON response into out.
// Non-2xx responses and transport failures are mapped onto utils error kinds.
// Requests rejected with 429 are retried per Config.Retry.
func (b *Backend) doRequest(ctx context.Context, op, method, path, id string, body, out any) error {
	var jsonBody []byte
	if body != nil {
		var err error
		if jsonBody, err = json.Marshal(body); err != nil {
			return err
		}
	}

	resp, err := b.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		var bodyReader io.Reader
		if jsonBody != nil {
			bodyReader = bytes.NewReader(jsonBody)
		}
		req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, bodyReader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if jsonBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if b.config.Token != "" {
			req.Header.Set("Authorization", "Bearer "+b.config.Token)
		}
		return req, nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return utils.ErrTransient(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, id, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return utils.ErrTransient(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// statusError classifies a non-2xx response
func statusError(op, id string, resp *http.Response) error {
	msg := readErrorMessage(resp)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return utils.ErrItemNotFound(id)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		if msg == "" {
			msg = "request rejected by server"
		}
		return utils.ErrValidation(msg)
	default:
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return utils.ErrTransient(op, fmt.Errorf("status %d: %s", resp.StatusCode, msg))
	}
}

func readErrorMessage(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var we wireError
	if json.Unmarshal(data, &we) == nil && we.Error != "" {
		return we.Error
	}
	return strings.TrimSpace(string(data))
}

// List returns the items owned by ownerID
func (b *Backend) List(ctx context.Context, ownerID string) ([]backend.Item, error) {
	path := b.collectionPath() + "?userId=" + url.QueryEscape(ownerID)

	var wire []wireItem
	if err := b.doRequest(ctx, "list items", http.MethodGet, path, "", nil, &wire); err != nil {
		return nil, err
	}

	items := make([]backend.Item, 0, len(wire))
	for _, w := range wire {
		// Servers that ignore the filter must not leak other owners' items.
		if w.UserID != ownerID {
			continue
		}
		items = append(items, w.toItem())
	}
	return items, nil
}

// Create posts a new item
func (b *Backend) Create(ctx context.Context, draft backend.Draft) (*backend.Item, error) {
	if err := backend.ValidateDraft(draft); err != nil {
		return nil, err
	}

	var created wireItem
	if err := b.doRequest(ctx, "create item", http.MethodPost, b.collectionPath(), "", fromDraft(draft), &created); err != nil {
		return nil, err
	}
	item := created.toItem()
	return &item, nil
}

// Update sends the patch fields to the item resource
func (b *Backend) Update(ctx context.Context, id string, patch backend.Patch) (*backend.Item, error) {
	if err := backend.ValidatePatch(patch); err != nil {
		return nil, err
	}

	var updated wireItem
	if err := b.doRequest(ctx, "update item", http.MethodPut, b.itemPath(id), id, fromPatch(patch), &updated); err != nil {
		return nil, err
	}
	item := updated.toItem()
	return &item, nil
}

// Delete removes the item resource
func (b *Backend) Delete(ctx context.Context, id string) error {
	return b.doRequest(ctx, "delete item", http.MethodDelete, b.itemPath(id), id, nil, nil)
}

// Verify interface compliance at compile time
var _ backend.ItemStore = (*Backend)(nil)
