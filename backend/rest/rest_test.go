package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"taskpad/backend"
	"taskpad/backend/memory"
	"taskpad/backend/storetest"
	"taskpad/internal/ratelimit"
	"taskpad/internal/utils"
)

// =============================================================================
// Test helpers
// =============================================================================

// newServedBackend starts a handler over an in-memory store and returns a client for it
func newServedBackend(t *testing.T) (*Backend, *memory.Backend) {
	t.Helper()
	store := memory.New(memory.WithLatency(0))
	server := httptest.NewServer(NewHandler(store, ""))
	t.Cleanup(server.Close)

	b, err := New(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return b, store
}

// recordingServer answers every request with a fixed status and body and logs requests
type recordingServer struct {
	server  *httptest.Server
	mu      sync.Mutex
	status  int
	body    string
	delay   time.Duration
	log     []string
	headers []http.Header
}

func newRecordingServer(t *testing.T, status int, body string) *recordingServer {
	t.Helper()
	rs := &recordingServer{status: status, body: body}
	rs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		rs.log = append(rs.log, r.Method+" "+r.URL.RequestURI())
		rs.headers = append(rs.headers, r.Header.Clone())
		delay := rs.delay
		rs.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(rs.status)
		_, _ = w.Write([]byte(rs.body))
	}))
	t.Cleanup(rs.server.Close)
	return rs
}

func (rs *recordingServer) requests() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]string{}, rs.log...)
}

func mustNew(t *testing.T, cfg Config) *Backend {
	t.Helper()
	b, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// =============================================================================
// Contract
// =============================================================================

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) backend.ItemStore {
		b, _ := newServedBackend(t)
		return b
	})
}

// =============================================================================
// Configuration
// =============================================================================

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New() with empty base URL should fail")
	}
	if _, err := New(Config{BaseURL: "not a url"}); err == nil {
		t.Fatal("New() with invalid base URL should fail")
	}
}

func TestNewDefaults(t *testing.T) {
	b := mustNew(t, Config{BaseURL: "http://example.test/api/"})

	if b.baseURL != "http://example.test/api" {
		t.Errorf("baseURL = %q, trailing slash should be trimmed", b.baseURL)
	}
	if b.config.Resource != DefaultResource {
		t.Errorf("Resource = %q, want %q", b.config.Resource, DefaultResource)
	}
	if b.client.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", b.client.Timeout, DefaultTimeout)
	}
}

// =============================================================================
// Request shape
// =============================================================================

func TestRequestPaths(t *testing.T) {
	rs := newRecordingServer(t, http.StatusOK, `[]`)
	b := mustNew(t, Config{BaseURL: rs.server.URL, Resource: "todos"})
	ctx := context.Background()

	_, _ = b.List(ctx, "user 1")
	_, _ = b.Update(ctx, "abc", backend.Patch{Title: backend.Ptr("x")})
	_ = b.Delete(ctx, "abc")

	want := []string{
		"GET /todos?userId=user+1",
		"PUT /todos/abc",
		"DELETE /todos/abc",
	}
	got := rs.requests()
	if len(got) != len(want) {
		t.Fatalf("requests = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("request %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBearerToken(t *testing.T) {
	rs := newRecordingServer(t, http.StatusOK, `[]`)
	b := mustNew(t, Config{BaseURL: rs.server.URL, Token: "secret-token"})

	if _, err := b.List(context.Background(), "u1"); err != nil {
		t.Fatalf("List error: %v", err)
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if got := rs.headers[0].Get("Authorization"); got != "Bearer secret-token" {
		t.Errorf("Authorization = %q, want bearer token", got)
	}
}

func TestNoTokenNoAuthorizationHeader(t *testing.T) {
	rs := newRecordingServer(t, http.StatusOK, `[]`)
	b := mustNew(t, Config{BaseURL: rs.server.URL})

	_, _ = b.List(context.Background(), "u1")
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if got := rs.headers[0].Get("Authorization"); got != "" {
		t.Errorf("Authorization = %q, want none", got)
	}
}

func TestPatchSendsOnlyPresentFields(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","userId":"u1","title":"t","status":"completed"}`))
	}))
	defer server.Close()
	b := mustNew(t, Config{BaseURL: server.URL})

	_, err := b.Update(context.Background(), "1", backend.Patch{Status: backend.Ptr(backend.StatusCompleted)})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if len(received) != 1 || received["status"] != "completed" {
		t.Errorf("patch body = %v, want only status", received)
	}
}

func TestListFiltersForeignItems(t *testing.T) {
	body := `[{"id":"1","userId":"u1","title":"mine"},{"id":"2","userId":"u2","title":"theirs"}]`
	rs := newRecordingServer(t, http.StatusOK, body)
	b := mustNew(t, Config{BaseURL: rs.server.URL})

	items, err := b.List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(items) != 1 || items[0].ID != "1" {
		t.Errorf("items = %+v, want only u1's item", items)
	}
}

// =============================================================================
// Error mapping
// =============================================================================

func TestStatusErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   utils.ErrorKind
	}{
		{"not found", http.StatusNotFound, `"Not found"`, utils.KindNotFound},
		{"bad request", http.StatusBadRequest, `{"error":"title is required"}`, utils.KindValidation},
		{"unprocessable", http.StatusUnprocessableEntity, ``, utils.KindValidation},
		{"server error", http.StatusInternalServerError, `oops`, utils.KindTransient},
		{"unavailable", http.StatusServiceUnavailable, ``, utils.KindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := newRecordingServer(t, tt.status, tt.body)
			b := mustNew(t, Config{BaseURL: rs.server.URL})

			_, err := b.Update(context.Background(), "42", backend.Patch{Title: backend.Ptr("x")})
			if got := utils.KindOf(err); got != tt.kind {
				t.Errorf("kind = %q, want %q (err: %v)", got, tt.kind, err)
			}
		})
	}
}

func TestValidationMessageFromBody(t *testing.T) {
	rs := newRecordingServer(t, http.StatusBadRequest, `{"error":"title is required"}`)
	b := mustNew(t, Config{BaseURL: rs.server.URL})

	_, err := b.Update(context.Background(), "1", backend.Patch{Description: backend.Ptr("x")})
	if got := utils.UserMessage(err); got != "Title is required." {
		t.Errorf("UserMessage = %q", got)
	}
}

func TestConnectionRefusedIsTransient(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	b := mustNew(t, Config{BaseURL: url})
	_, err := b.List(context.Background(), "u1")
	if utils.KindOf(err) != utils.KindTransient {
		t.Fatalf("kind = %q, want transient (err: %v)", utils.KindOf(err), err)
	}
}

func TestTimeoutIsTransient(t *testing.T) {
	rs := newRecordingServer(t, http.StatusOK, `[]`)
	rs.delay = time.Second
	b := mustNew(t, Config{BaseURL: rs.server.URL, Timeout: 50 * time.Millisecond})

	_, err := b.List(context.Background(), "u1")
	if utils.KindOf(err) != utils.KindTransient {
		t.Fatalf("kind = %q, want transient (err: %v)", utils.KindOf(err), err)
	}
}

func TestMalformedResponseIsTransient(t *testing.T) {
	rs := newRecordingServer(t, http.StatusOK, `{not json`)
	b := mustNew(t, Config{BaseURL: rs.server.URL})

	_, err := b.List(context.Background(), "u1")
	if utils.KindOf(err) != utils.KindTransient {
		t.Fatalf("kind = %q, want transient (err: %v)", utils.KindOf(err), err)
	}
}

func TestClientSideValidationSkipsRequest(t *testing.T) {
	rs := newRecordingServer(t, http.StatusCreated, `{}`)
	b := mustNew(t, Config{BaseURL: rs.server.URL})

	_, err := b.Create(context.Background(), backend.Draft{OwnerID: "u1", Title: "  "})
	if utils.KindOf(err) != utils.KindValidation {
		t.Fatalf("kind = %q, want validation", utils.KindOf(err))
	}
	if n := len(rs.requests()); n != 0 {
		t.Errorf("invalid draft should not reach the server, got %d requests", n)
	}
}

// =============================================================================
// Handler
// =============================================================================

func TestHandlerListRequiresUserID(t *testing.T) {
	h := NewHandler(memory.New(memory.WithLatency(0)), "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandlerCreateStatusAndShape(t *testing.T) {
	h := NewHandler(memory.New(memory.WithLatency(0)), "")
	body := strings.NewReader(`{"userId":"u1","title":"From curl","category":"Work"}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/items", body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body.String())
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, field := range []string{"id", "userId", "title", "status", "category", "createdAt"} {
		if _, ok := got[field]; !ok {
			t.Errorf("response missing %q: %v", field, got)
		}
	}
	if got["status"] != "active" {
		t.Errorf("status = %v, want active", got["status"])
	}
}

func TestHandlerInvalidJSON(t *testing.T) {
	h := NewHandler(memory.New(memory.WithLatency(0)), "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/items", strings.NewReader("{")))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandlerDeleteUnknown(t *testing.T) {
	h := NewHandler(memory.New(memory.WithLatency(0)), "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/items/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandlerStoreFailureIs500(t *testing.T) {
	store := memory.New(memory.WithLatency(0))
	store.FailNext(memory.OpList, context.DeadlineExceeded)
	h := NewHandler(store, "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items?userId=u1", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestHandlerHealth(t *testing.T) {
	h := NewHandler(memory.New(memory.WithLatency(0)), "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRateLimitedRequestIsRetried(t *testing.T) {
	var calls int
	var mu sync.Mutex
	store := memory.New(memory.WithLatency(0))
	api := NewHandler(store, "")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		api.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)

	b := mustNew(t, Config{BaseURL: server.URL})
	item, err := b.Create(context.Background(), backend.Draft{OwnerID: "u1", Title: "Retry me"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if item.Title != "Retry me" {
		t.Errorf("Title = %q", item.Title)
	}

	items, _ := store.List(context.Background(), "u1")
	if len(items) != 1 {
		t.Errorf("store holds %d items, want exactly 1", len(items))
	}
}

func TestRateLimitExhaustedIsTransient(t *testing.T) {
	rs := newRecordingServer(t, http.StatusTooManyRequests, ``)
	b := mustNew(t, Config{BaseURL: rs.server.URL, Retry: ratelimit.Config{MaxRetries: 2, BaseDelay: time.Millisecond}})

	_, err := b.List(context.Background(), "u1")
	if !utils.IsKind(err, utils.KindTransient) {
		t.Errorf("expected transient error, got %v", err)
	}
	if n := len(rs.requests()); n != 3 {
		t.Errorf("server saw %d requests, want 3", n)
	}
}
