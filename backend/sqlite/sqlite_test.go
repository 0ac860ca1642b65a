package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"taskpad/backend"
	"taskpad/backend/storetest"
)

// mustNewBackend creates an in-memory backend and registers cleanup
func mustNewBackend(t *testing.T, opts ...Option) (*Backend, context.Context) {
	t.Helper()
	b, err := New(":memory:", opts...)
	if err != nil {
		t.Fatalf("New(:memory:) error: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b, context.Background()
}

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) backend.ItemStore {
		b, err := New(":memory:")
		if err != nil {
			t.Fatalf("New(:memory:) error: %v", err)
		}
		return b
	})
}

// TestPersistsAcrossReopen verifies items survive closing the database file
func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.db")

	b, err := New(path)
	if err != nil {
		t.Fatalf("New(%s) error: %v", path, err)
	}
	created, err := b.Create(context.Background(), backend.Draft{
		OwnerID:  "u1",
		Title:    "Durable",
		Priority: backend.PriorityLow,
		Category: backend.CategoryShopping,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	items, err := reopened.List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item after reopen, got %d", len(items))
	}
	got := items[0]
	if got.ID != created.ID || got.Priority != backend.PriorityLow || got.Category != backend.CategoryShopping {
		t.Errorf("reopened item = %+v, want %+v", got, created)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created.CreatedAt)
	}
}

// TestListInsertionOrder verifies List returns items in creation order
func TestListInsertionOrder(t *testing.T) {
	b, ctx := mustNewBackend(t)
	for _, title := range []string{"first", "second", "third"} {
		if _, err := b.Create(ctx, backend.Draft{OwnerID: "u1", Title: title}); err != nil {
			t.Fatalf("Create(%s) error: %v", title, err)
		}
	}

	items, err := b.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	for i, want := range []string{"first", "second", "third"} {
		if items[i].Title != want {
			t.Errorf("items[%d].Title = %q, want %q", i, items[i].Title, want)
		}
	}
}

// TestWithClock verifies CreatedAt round-trips the injected clock
func TestWithClock(t *testing.T) {
	fixed := time.Date(2023, 11, 5, 8, 30, 15, 123456789, time.UTC)
	b, ctx := mustNewBackend(t, WithClock(func() time.Time { return fixed }))

	if _, err := b.Create(ctx, backend.Draft{OwnerID: "u1", Title: "clocked"}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	items, _ := b.List(ctx, "u1")
	if len(items) != 1 || !items[0].CreatedAt.Equal(fixed) {
		t.Errorf("CreatedAt = %v, want %v", items[0].CreatedAt, fixed)
	}
}

// TestLatencyCancelled verifies a cancelled context aborts before writing
func TestLatencyCancelled(t *testing.T) {
	b, _ := mustNewBackend(t, WithLatency(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := b.Create(ctx, backend.Draft{OwnerID: "u1", Title: "never"}); err != context.Canceled {
		t.Fatalf("Create error = %v, want context.Canceled", err)
	}
}
