package app

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"taskpad/backend"
	"taskpad/backend/memory"
	"taskpad/backend/rest"
	"taskpad/internal/auth"
	"taskpad/internal/config"
	"taskpad/internal/credentials"
	"taskpad/internal/nav"
	"taskpad/internal/storage"
	"taskpad/internal/utils"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	dir := t.TempDir()
	cfg.Storage.Path = filepath.Join(dir, "state.db")
	cfg.Backend.Type = config.BackendMemory
	cfg.Backend.Latency = "0s"
	cfg.Auth.Latency = config.LatencyConfig{Login: "0s", Register: "0s", Logout: "0s", Reset: "0s"}
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{
		WithBcryptCost(bcrypt.MinCost),
		WithCredentials(credentials.NewManager(credentials.WithKeyring(credentials.NewMockKeyring()))),
	}, opts...)
	a, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNewStartsAtLogin(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	if !a.Nav.Ready() {
		t.Error("navigation should be attached")
	}
	if a.Nav.Current() != nav.Login {
		t.Errorf("screen = %s, want login", a.Nav.Current())
	}
}

func TestSessionSurvivesRestart(t *testing.T) {
	cfg := testConfig(t)

	first := newTestApp(t, cfg)
	if _, err := first.Session.Login(context.Background(), auth.DemoEmail, auth.DemoPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	_ = first.Close()

	second := newTestApp(t, cfg)
	if id := second.Session.Current(); id == nil || id.Email != auth.DemoEmail {
		t.Fatalf("rehydrated identity = %+v", id)
	}
	if second.Nav.Current() != nav.Home {
		t.Errorf("screen = %s, want home", second.Nav.Current())
	}
}

func TestDemoItemsForDemoUser(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	ctx := context.Background()
	if _, err := a.Session.Login(ctx, auth.DemoEmail, auth.DemoPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	items, err := a.ListItems(ctx)
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("got %d demo items, want 2", len(items))
	}
}

func TestItemOperationsRequireLogin(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	ctx := context.Background()

	if _, err := a.ListItems(ctx); !utils.IsKind(err, utils.KindValidation) {
		t.Errorf("ListItems error = %v, want validation", err)
	}
	if _, err := a.AddItem(ctx, backend.Draft{Title: "x"}); !utils.IsKind(err, utils.KindValidation) {
		t.Errorf("AddItem error = %v, want validation", err)
	}
	if err := a.DeleteItem(ctx, "1"); !utils.IsKind(err, utils.KindValidation) {
		t.Errorf("DeleteItem error = %v, want validation", err)
	}
}

func TestItemLifecycle(t *testing.T) {
	store := memory.New(memory.WithLatency(0))
	a := newTestApp(t, testConfig(t), WithItemStore(store))
	ctx := context.Background()

	id, err := a.Session.Register(ctx, "new@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	created, err := a.AddItem(ctx, backend.Draft{Title: "Buy milk", OwnerID: "someone-else"})
	if err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if created.OwnerID != id.ID {
		t.Errorf("OwnerID = %q, want the signed-in user %q", created.OwnerID, id.ID)
	}

	toggled, err := a.ToggleItem(ctx, created.ID)
	if err != nil {
		t.Fatalf("ToggleItem failed: %v", err)
	}
	if toggled.Status != backend.StatusCompleted {
		t.Errorf("Status = %s, want completed", toggled.Status)
	}

	updated, err := a.UpdateItem(ctx, created.ID, backend.Patch{Title: backend.Ptr("Buy oat milk")})
	if err != nil {
		t.Fatalf("UpdateItem failed: %v", err)
	}
	if updated.Title != "Buy oat milk" || updated.Status != backend.StatusCompleted {
		t.Errorf("updated = %+v", updated)
	}

	if err := a.DeleteItem(ctx, created.ID); err != nil {
		t.Fatalf("DeleteItem failed: %v", err)
	}
	items, _ := a.ListItems(ctx)
	if len(items) != 0 {
		t.Errorf("items after delete = %v", items)
	}
}

func TestItemsOfOtherUsersAreNotFound(t *testing.T) {
	store := memory.New(memory.WithLatency(0))
	a := newTestApp(t, testConfig(t), WithItemStore(store))
	ctx := context.Background()

	if _, err := a.Session.Register(ctx, "alice@example.com", "secret1"); err != nil {
		t.Fatalf("Register alice failed: %v", err)
	}
	owned, err := a.AddItem(ctx, backend.Draft{Title: "Alice's plan"})
	if err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if _, err := a.Session.Register(ctx, "bob@example.com", "secret1"); err != nil {
		t.Fatalf("Register bob failed: %v", err)
	}

	if _, err := a.UpdateItem(ctx, owned.ID, backend.Patch{Title: backend.Ptr("mine now")}); !utils.IsKind(err, utils.KindNotFound) {
		t.Errorf("UpdateItem error = %v, want not found", err)
	}
	if _, err := a.ToggleItem(ctx, owned.ID); !utils.IsKind(err, utils.KindNotFound) {
		t.Errorf("ToggleItem error = %v, want not found", err)
	}
	if err := a.DeleteItem(ctx, owned.ID); !utils.IsKind(err, utils.KindNotFound) {
		t.Errorf("DeleteItem error = %v, want not found", err)
	}

	items, _ := store.List(ctx, owned.OwnerID)
	if len(items) != 1 || items[0].Title != "Alice's plan" || items[0].Status != backend.StatusActive {
		t.Errorf("alice's items = %+v, want untouched", items)
	}
}

func TestSQLiteBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend.Type = config.BackendSQLite
	cfg.Backend.SQLite.Path = filepath.Join(t.TempDir(), "nested", "items.db")

	a := newTestApp(t, cfg, WithKV(storage.NewMemory()))
	ctx := context.Background()
	if _, err := a.Session.Login(ctx, auth.DemoEmail, auth.DemoPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := a.AddItem(ctx, backend.Draft{Title: "Persisted"}); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	items, err := a.ListItems(ctx)
	if err != nil || len(items) != 1 {
		t.Errorf("ListItems = %v, %v", items, err)
	}
}

func TestRESTBackendUsesKeyringToken(t *testing.T) {
	var gotAuth string
	handler := rest.NewHandler(memory.New(memory.WithLatency(0)), rest.DefaultResource)
	srv := httptest.NewServer(recordAuth(&gotAuth, handler))
	defer srv.Close()

	kr := credentials.NewMockKeyring()
	_ = kr.Set("taskpad-rest", srv.URL, "tok-xyz")

	cfg := testConfig(t)
	cfg.Backend.Type = config.BackendREST
	cfg.Backend.REST.BaseURL = srv.URL

	a := newTestApp(t, cfg, WithCredentials(credentials.NewManager(credentials.WithKeyring(kr))))
	ctx := context.Background()
	if _, err := a.Session.Login(ctx, auth.DemoEmail, auth.DemoPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := a.ListItems(ctx); err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if gotAuth != "Bearer tok-xyz" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestRESTRateLimitRetries(t *testing.T) {
	tests := []struct {
		name      string
		retries   *int
		wantErr   bool
		wantCalls int32
	}{
		{"off by default", nil, true, 1},
		{"opted in", backend.Ptr(2), false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			handler := rest.NewHandler(memory.New(memory.WithLatency(0)), rest.DefaultResource)
			srv := httptest.NewServer(limitFirst(1, &calls, handler))
			defer srv.Close()

			cfg := testConfig(t)
			cfg.Backend.Type = config.BackendREST
			cfg.Backend.REST.BaseURL = srv.URL
			cfg.Backend.REST.MaxRetries = tt.retries

			a := newTestApp(t, cfg)
			ctx := context.Background()
			if _, err := a.Session.Login(ctx, auth.DemoEmail, auth.DemoPassword); err != nil {
				t.Fatalf("Login failed: %v", err)
			}

			_, err := a.ListItems(ctx)
			if tt.wantErr && !utils.IsKind(err, utils.KindTransient) {
				t.Errorf("ListItems error = %v, want transient", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ListItems failed: %v", err)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("requests = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend.Type = "carrier-pigeon"
	if _, err := New(cfg, WithKV(storage.NewMemory())); err == nil {
		t.Error("expected error for unknown backend type")
	}
}

func TestRESTBackendRequiresURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend.Type = config.BackendREST
	cfg.Backend.REST.BaseURL = ""
	_, err := New(cfg,
		WithKV(storage.NewMemory()),
		WithCredentials(credentials.NewManager(credentials.WithKeyring(credentials.NewMockKeyring()))),
	)
	if err == nil {
		t.Error("expected error without a base URL")
	}
}
