// Package storetest holds the behavioural contract every backend.ItemStore
// implementation must satisfy. Store packages call Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"taskpad/backend"
	"taskpad/internal/utils"
)

// Factory returns a fresh, empty store. Run closes it when the subtest ends.
type Factory func(t *testing.T) backend.ItemStore

// Run executes the contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s backend.ItemStore)
	}{
		{"CreateThenList", testCreateThenList},
		{"CreateDefaults", testCreateDefaults},
		{"CreateRejectsEmptyTitle", testCreateRejectsEmptyTitle},
		{"CreateRejectsUnknownEnum", testCreateRejectsUnknownEnum},
		{"ListScopedToOwner", testListScopedToOwner},
		{"ListEmptyOwner", testListEmptyOwner},
		{"UniqueIDs", testUniqueIDs},
		{"UpdateMergesFields", testUpdateMergesFields},
		{"UpdateKeepsImmutableFields", testUpdateKeepsImmutableFields},
		{"UpdateUnknownID", testUpdateUnknownID},
		{"UpdateRejectsEmptyTitle", testUpdateRejectsEmptyTitle},
		{"DeleteThenList", testDeleteThenList},
		{"DeleteTwice", testDeleteTwice},
		{"ConcurrentCreates", testConcurrentCreates},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func draft(owner, title string) backend.Draft {
	return backend.Draft{OwnerID: owner, Title: title}
}

func mustCreate(t *testing.T, s backend.ItemStore, d backend.Draft) *backend.Item {
	t.Helper()
	item, err := s.Create(context.Background(), d)
	if err != nil {
		t.Fatalf("Create(%q) failed: %v", d.Title, err)
	}
	return item
}

func mustList(t *testing.T, s backend.ItemStore, owner string) []backend.Item {
	t.Helper()
	items, err := s.List(context.Background(), owner)
	if err != nil {
		t.Fatalf("List(%q) failed: %v", owner, err)
	}
	return items
}

func wantKind(t *testing.T, err error, kind utils.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := utils.KindOf(err); got != kind {
		t.Fatalf("error kind = %q, want %q (err: %v)", got, kind, err)
	}
}

func testCreateThenList(t *testing.T, s backend.ItemStore) {
	before := time.Now().Add(-time.Second)
	created := mustCreate(t, s, backend.Draft{
		OwnerID:     "u1",
		Title:       "Write report",
		Description: "quarterly",
		Priority:    backend.PriorityHigh,
		Category:    backend.CategoryWork,
	})

	if created.ID == "" {
		t.Error("created item should have an ID")
	}
	if created.CreatedAt.Before(before) {
		t.Errorf("CreatedAt = %v, want a fresh timestamp", created.CreatedAt)
	}

	items := mustList(t, s, "u1")
	matches := 0
	for _, it := range items {
		if it.Title == "Write report" {
			matches++
			if it.ID != created.ID {
				t.Errorf("listed ID = %q, want %q", it.ID, created.ID)
			}
			if it.Description != "quarterly" || it.Priority != backend.PriorityHigh || it.Category != backend.CategoryWork {
				t.Errorf("listed item fields not preserved: %+v", it)
			}
			if !it.CreatedAt.Equal(created.CreatedAt) {
				t.Errorf("listed CreatedAt = %v, want %v", it.CreatedAt, created.CreatedAt)
			}
		}
	}
	if matches != 1 {
		t.Fatalf("expected exactly 1 matching item, got %d", matches)
	}
}

func testCreateDefaults(t *testing.T, s backend.ItemStore) {
	created := mustCreate(t, s, draft("u1", "  padded  "))

	if created.Status != backend.StatusActive {
		t.Errorf("Status = %q, want %q", created.Status, backend.StatusActive)
	}
	if created.Title != "padded" {
		t.Errorf("Title = %q, want trimmed %q", created.Title, "padded")
	}
	if created.Priority != backend.PriorityNone || created.Category != backend.CategoryNone {
		t.Errorf("optional fields should be unset, got %q / %q", created.Priority, created.Category)
	}
}

func testCreateRejectsEmptyTitle(t *testing.T, s backend.ItemStore) {
	_, err := s.Create(context.Background(), draft("u1", "   "))
	wantKind(t, err, utils.KindValidation)

	if items := mustList(t, s, "u1"); len(items) != 0 {
		t.Errorf("rejected draft should not be stored, got %d items", len(items))
	}
}

func testCreateRejectsUnknownEnum(t *testing.T, s backend.ItemStore) {
	d := draft("u1", "x")
	d.Category = backend.Category("Gardening")
	_, err := s.Create(context.Background(), d)
	wantKind(t, err, utils.KindValidation)
}

func testListScopedToOwner(t *testing.T, s backend.ItemStore) {
	mustCreate(t, s, draft("alice", "alice task"))
	mustCreate(t, s, draft("bob", "bob task"))
	mustCreate(t, s, draft("alice", "another alice task"))

	items := mustList(t, s, "alice")
	if len(items) != 2 {
		t.Fatalf("alice should see 2 items, got %d", len(items))
	}
	for _, it := range items {
		if it.OwnerID != "alice" {
			t.Errorf("alice received item owned by %q", it.OwnerID)
		}
	}
}

func testListEmptyOwner(t *testing.T, s backend.ItemStore) {
	items := mustList(t, s, "nobody")
	if items == nil {
		t.Error("List should return an empty slice, not nil")
	}
	if len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
}

func testUniqueIDs(t *testing.T, s backend.ItemStore) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		it := mustCreate(t, s, draft("u1", fmt.Sprintf("task %d", i)))
		if seen[it.ID] {
			t.Fatalf("duplicate ID %q", it.ID)
		}
		seen[it.ID] = true
	}
}

func testUpdateMergesFields(t *testing.T, s backend.ItemStore) {
	created := mustCreate(t, s, backend.Draft{OwnerID: "u1", Title: "Old", Description: "keep me"})

	updated, err := s.Update(context.Background(), created.ID, backend.Patch{
		Title:  backend.Ptr("New"),
		Status: backend.Ptr(backend.StatusCompleted),
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Title != "New" || updated.Status != backend.StatusCompleted {
		t.Errorf("patched fields not applied: %+v", updated)
	}
	if updated.Description != "keep me" {
		t.Errorf("Description = %q, absent patch fields must be untouched", updated.Description)
	}

	items := mustList(t, s, "u1")
	if len(items) != 1 || items[0].Title != "New" || items[0].Status != backend.StatusCompleted {
		t.Errorf("update not visible through List: %+v", items)
	}
}

func testUpdateKeepsImmutableFields(t *testing.T, s backend.ItemStore) {
	created := mustCreate(t, s, draft("u1", "Stable"))

	updated, err := s.Update(context.Background(), created.ID, backend.Patch{
		Category: backend.Ptr(backend.CategoryHealth),
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.ID != created.ID || updated.OwnerID != created.OwnerID {
		t.Errorf("identity fields changed: %+v", updated)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("CreatedAt changed from %v to %v", created.CreatedAt, updated.CreatedAt)
	}
}

func testUpdateUnknownID(t *testing.T, s backend.ItemStore) {
	existing := mustCreate(t, s, draft("u1", "Untouched"))

	_, err := s.Update(context.Background(), "does-not-exist", backend.Patch{Title: backend.Ptr("x")})
	wantKind(t, err, utils.KindNotFound)

	items := mustList(t, s, "u1")
	if len(items) != 1 || items[0].ID != existing.ID || items[0].Title != "Untouched" {
		t.Errorf("collection changed after failed update: %+v", items)
	}
}

func testUpdateRejectsEmptyTitle(t *testing.T, s backend.ItemStore) {
	created := mustCreate(t, s, draft("u1", "Named"))

	_, err := s.Update(context.Background(), created.ID, backend.Patch{Title: backend.Ptr("")})
	wantKind(t, err, utils.KindValidation)

	items := mustList(t, s, "u1")
	if len(items) != 1 || items[0].Title != "Named" {
		t.Errorf("rejected patch should not apply: %+v", items)
	}
}

func testDeleteThenList(t *testing.T, s backend.ItemStore) {
	keep := mustCreate(t, s, draft("u1", "keep"))
	drop := mustCreate(t, s, draft("u1", "drop"))

	if err := s.Delete(context.Background(), drop.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	items := mustList(t, s, "u1")
	if len(items) != 1 || items[0].ID != keep.ID {
		t.Errorf("expected only %q to remain, got %+v", keep.ID, items)
	}
}

func testDeleteTwice(t *testing.T, s backend.ItemStore) {
	created := mustCreate(t, s, draft("u1", "once"))

	if err := s.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("first Delete failed: %v", err)
	}
	err := s.Delete(context.Background(), created.ID)
	wantKind(t, err, utils.KindNotFound)
}

func testConcurrentCreates(t *testing.T, s backend.ItemStore) {
	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.Create(context.Background(), draft("u1", fmt.Sprintf("parallel %d", i))); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Create failed: %v", err)
	}
	if items := mustList(t, s, "u1"); len(items) != n {
		t.Errorf("expected %d items after concurrent creates, got %d", n, len(items))
	}
}
