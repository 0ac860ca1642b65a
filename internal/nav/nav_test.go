package nav

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"taskpad/backend"
	"taskpad/internal/auth"
	"taskpad/internal/storage"
	"taskpad/internal/utils"
)

func newSession(t *testing.T, kv storage.KV) *auth.Store {
	t.Helper()
	if kv == nil {
		kv = storage.NewMemory()
	}
	s, err := auth.New(kv,
		auth.WithLatency(auth.Latency{}),
		auth.WithBcryptCost(bcrypt.MinCost),
		auth.WithDemoAccount(),
	)
	if err != nil {
		t.Fatalf("auth.New error: %v", err)
	}
	return s
}

func newAttached(t *testing.T, session *auth.Store) *Controller {
	t.Helper()
	c := New()
	c.Attach(session)
	t.Cleanup(c.Detach)
	return c
}

// TestNavigationScenario walks login, edit, add and logout
func TestNavigationScenario(t *testing.T) {
	session := newSession(t, nil)
	c := New()
	if c.Ready() {
		t.Error("controller should not be ready before attaching")
	}
	c.Attach(session)
	defer c.Detach()

	if !c.Ready() {
		t.Error("controller should be ready once attached")
	}
	if c.Current() != Login {
		t.Fatalf("initial screen = %s, want %s", c.Current(), Login)
	}

	if _, err := session.Login(context.Background(), auth.DemoEmail, auth.DemoPassword); err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if c.Current() != Home {
		t.Fatalf("after login screen = %s, want %s", c.Current(), Home)
	}

	item := backend.Item{ID: "x", OwnerID: auth.DemoUserID, Title: "Edit me", Status: backend.StatusActive}
	if err := c.Navigate(EditItem, &item); err != nil {
		t.Fatalf("Navigate(EditItem) error: %v", err)
	}
	if c.Current() != EditItem {
		t.Errorf("screen = %s, want %s", c.Current(), EditItem)
	}
	if p := c.Pending(); p == nil || p.ID != "x" {
		t.Fatalf("Pending = %+v, want item x", p)
	}

	if err := c.Navigate(AddItem, nil); err != nil {
		t.Fatalf("Navigate(AddItem) error: %v", err)
	}
	if c.Pending() != nil {
		t.Error("AddItem should clear the pending item")
	}

	if err := c.Navigate(Home, nil); err != nil {
		t.Fatalf("Navigate(Home) error: %v", err)
	}
	if err := session.Logout(context.Background()); err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	if c.Current() != Login {
		t.Errorf("after logout screen = %s, want %s", c.Current(), Login)
	}
}

// TestPersistedIdentityStartsAtHome verifies rehydration skips the login screen
func TestPersistedIdentityStartsAtHome(t *testing.T) {
	kv := storage.NewMemory()
	first := newSession(t, kv)
	if _, err := first.Login(context.Background(), auth.DemoEmail, auth.DemoPassword); err != nil {
		t.Fatalf("Login error: %v", err)
	}

	c := newAttached(t, newSession(t, kv))
	if c.Current() != Home {
		t.Errorf("screen = %s, want %s", c.Current(), Home)
	}
}

// TestRedundantIdentityDoesNotRedirect verifies non-auth screens keep their place
func TestRedundantIdentityDoesNotRedirect(t *testing.T) {
	session := newSession(t, nil)
	c := newAttached(t, session)
	ctx := context.Background()

	if _, err := session.Login(ctx, auth.DemoEmail, auth.DemoPassword); err != nil {
		t.Fatalf("Login error: %v", err)
	}

	for _, screen := range []Screen{Settings, AddItem, Home} {
		if err := c.Navigate(screen, nil); err != nil {
			t.Fatalf("Navigate(%s) error: %v", screen, err)
		}
		if _, err := session.Login(ctx, auth.DemoEmail, auth.DemoPassword); err != nil {
			t.Fatalf("re-login error: %v", err)
		}
		if c.Current() != screen {
			t.Errorf("re-confirmed identity moved %s to %s", screen, c.Current())
		}
	}
}

// TestAuthScreensRedirectHome verifies each auth screen yields to Home on login
func TestAuthScreensRedirectHome(t *testing.T) {
	for _, screen := range []Screen{Login, Register, ForgotPassword} {
		t.Run(string(screen), func(t *testing.T) {
			session := newSession(t, nil)
			c := newAttached(t, session)
			if err := c.Navigate(screen, nil); err != nil {
				t.Fatalf("Navigate error: %v", err)
			}
			if _, err := session.Register(context.Background(), "new@example.com", "secret1"); err != nil {
				t.Fatalf("Register error: %v", err)
			}
			if c.Current() != Home {
				t.Errorf("screen = %s, want %s", c.Current(), Home)
			}
		})
	}
}

// TestLogoutClearsPending verifies an absent identity drops the edit payload
func TestLogoutClearsPending(t *testing.T) {
	session := newSession(t, nil)
	c := newAttached(t, session)
	_, _ = session.Login(context.Background(), auth.DemoEmail, auth.DemoPassword)

	item := backend.Item{ID: "x", Title: "t"}
	_ = c.Navigate(EditItem, &item)
	_ = session.Logout(context.Background())

	if c.Current() != Login || c.Pending() != nil {
		t.Errorf("state after logout = %+v, want Login without pending", c.State())
	}
}

// TestNavigateValidation covers rejected requests
func TestNavigateValidation(t *testing.T) {
	c := New()

	if err := c.Navigate(EditItem, nil); utils.KindOf(err) != utils.KindValidation {
		t.Errorf("EditItem without item: kind = %q, want validation", utils.KindOf(err))
	}
	if err := c.Navigate(Screen("nowhere"), nil); utils.KindOf(err) != utils.KindValidation {
		t.Errorf("unknown screen: kind = %q, want validation", utils.KindOf(err))
	}
	if c.Current() != Login {
		t.Errorf("rejected requests must not change the screen, got %s", c.Current())
	}
}

// TestOtherRequestsKeepPending verifies only AddItem and EditItem touch the payload
func TestOtherRequestsKeepPending(t *testing.T) {
	c := New()
	item := backend.Item{ID: "keep", Title: "t"}
	_ = c.Navigate(EditItem, &item)
	_ = c.Navigate(Settings, nil)

	if p := c.Pending(); p == nil || p.ID != "keep" {
		t.Errorf("Pending = %+v, want it untouched", p)
	}
}

// TestPendingIsCopy verifies callers cannot mutate the stored payload
func TestPendingIsCopy(t *testing.T) {
	c := New()
	item := backend.Item{ID: "x", Title: "original"}
	_ = c.Navigate(EditItem, &item)
	item.Title = "changed"

	p := c.Pending()
	if p.Title != "original" {
		t.Errorf("stored title = %q, want a copy taken at navigation time", p.Title)
	}
	p.Title = "mutated"
	if c.Pending().Title != "original" {
		t.Error("Pending should return a copy")
	}
}

// TestGenerationAdvances verifies the counter tracks screen changes only
func TestGenerationAdvances(t *testing.T) {
	c := New()
	g0 := c.Generation()

	_ = c.Navigate(Register, nil)
	g1 := c.Generation()
	if g1 <= g0 {
		t.Errorf("generation %d should exceed %d after a screen change", g1, g0)
	}

	_ = c.Navigate(Register, nil)
	if c.Generation() != g1 {
		t.Error("navigating to the current screen should not advance the generation")
	}
}

// TestWatch verifies notifications and unwatching mid-pass
func TestWatch(t *testing.T) {
	c := New()
	var seen []Screen
	var unwatchOther func()

	unwatch := c.Watch(func(s State) {
		seen = append(seen, s.Screen)
		if unwatchOther != nil {
			unwatchOther()
		}
	})
	defer unwatch()

	otherCalls := 0
	unwatchOther = c.Watch(func(State) { otherCalls++ })

	_ = c.Navigate(Register, nil)
	_ = c.Navigate(ForgotPassword, nil)

	if len(seen) != 2 || seen[0] != Register || seen[1] != ForgotPassword {
		t.Errorf("seen = %v", seen)
	}
	if otherCalls != 0 {
		t.Errorf("watcher removed mid-pass was called %d times", otherCalls)
	}
}

// TestDetachStopsFollowing verifies a detached controller ignores the session
func TestDetachStopsFollowing(t *testing.T) {
	session := newSession(t, nil)
	c := New()
	c.Attach(session)
	c.Detach()

	_, _ = session.Login(context.Background(), auth.DemoEmail, auth.DemoPassword)
	if c.Current() != Login {
		t.Errorf("detached controller moved to %s", c.Current())
	}
}
