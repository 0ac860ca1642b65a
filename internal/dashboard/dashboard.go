// Package dashboard holds the caller-side view of a user's items: ordering,
// filtering, summary statistics and the optimistic status toggle.
package dashboard

import (
	"cmp"
	"context"
	"math"
	"slices"
	"strings"
	"sync"

	"taskpad/backend"
	"taskpad/internal/utils"
)

// Tab selects which statuses the list shows
type Tab string

const (
	TabAll       Tab = "all"
	TabActive    Tab = "active"
	TabCompleted Tab = "completed"
)

// Tabs lists the tabs in display order
var Tabs = []Tab{TabAll, TabActive, TabCompleted}

// ParseTab converts a string into a Tab
func ParseTab(s string) (Tab, error) {
	t := Tab(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return TabAll, nil
	}
	if slices.Contains(Tabs, t) {
		return t, nil
	}
	return "", utils.ErrValidation("unknown filter \"" + s + "\" (valid: all, active, completed)")
}

// SortNewestFirst orders items by CreatedAt, most recent first. Ties keep
// their relative order.
func SortNewestFirst(items []backend.Item) {
	slices.SortStableFunc(items, func(a, b backend.Item) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

// Filter returns the items on tab whose title or category contains query,
// case-insensitively. The input slice is not modified.
func Filter(items []backend.Item, tab Tab, query string) []backend.Item {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]backend.Item, 0, len(items))
	for _, it := range items {
		if tab != TabAll && tab != "" && string(it.Status) != string(tab) {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(it.Title), q) &&
			!strings.Contains(strings.ToLower(string(it.Category)), q) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Stats summarizes a set of items
type Stats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Archived  int `json:"archived"`
	// CompletionRate is the rounded percentage of completed items.
	CompletionRate int `json:"completionRate"`
}

// Summarize counts items by status
func Summarize(items []backend.Item) Stats {
	var s Stats
	s.Total = len(items)
	for _, it := range items {
		switch it.Status {
		case backend.StatusActive:
			s.Active++
		case backend.StatusCompleted:
			s.Completed++
		case backend.StatusArchived:
			s.Archived++
		}
	}
	if s.Total > 0 {
		s.CompletionRate = int(math.Round(float64(s.Completed) / float64(s.Total) * 100))
	}
	return s
}

// Board is the caller's local copy of the item list
type Board struct {
	mu      sync.Mutex
	items   []backend.Item
	pending map[string]*pendingToggle
}

// pendingToggle tracks the unresolved toggles of one item. confirmed is the
// last status the store is known to hold; target is the newest optimistic one.
type pendingToggle struct {
	count     int
	confirmed backend.Status
	target    backend.Status
}

// NewBoard creates a board holding items, newest first
func NewBoard(items []backend.Item) *Board {
	b := &Board{}
	b.Replace(items)
	return b
}

// Replace swaps in a freshly listed collection
func (b *Board) Replace(items []backend.Item) {
	copied := slices.Clone(items)
	SortNewestFirst(copied)

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range copied {
		if p, ok := b.pending[copied[i].ID]; ok {
			p.confirmed = copied[i].Status
			copied[i].Status = p.target
		}
	}
	b.items = copied
}

// Items returns a copy of the board's items
func (b *Board) Items() []backend.Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.items)
}

// Len returns the number of items on the board
func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Get returns a copy of the item with id
func (b *Board) Get(id string) (backend.Item, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.indexOf(id); i >= 0 {
		return b.items[i], true
	}
	return backend.Item{}, false
}

// Upsert replaces the item with the same id, or inserts it in date order
func (b *Board) Upsert(item backend.Item) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.indexOf(item.ID); i >= 0 {
		b.items[i] = item
		return
	}
	pos, _ := slices.BinarySearchFunc(b.items, item, func(existing, target backend.Item) int {
		// Newest first: the slice is descending by CreatedAt.
		return cmp.Compare(target.CreatedAt.UnixNano(), existing.CreatedAt.UnixNano())
	})
	b.items = slices.Insert(b.items, pos, item)
}

// Remove drops the item with id, reporting whether it was present
func (b *Board) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexOf(id)
	if i < 0 {
		return false
	}
	b.items = slices.Delete(b.items, i, i+1)
	return true
}

func (b *Board) indexOf(id string) int {
	return slices.IndexFunc(b.items, func(it backend.Item) bool { return it.ID == id })
}

// Toggle records an optimistic status flip so it can be confirmed or undone
type Toggle struct {
	ID     string
	Prior  backend.Status
	Target backend.Status
}

// BeginToggle flips the item's status locally and returns the snapshot
// needed to undo it. Toggles of the same item may overlap; the board shows
// the newest optimistic status until all of them resolve.
func (b *Board) BeginToggle(id string) (Toggle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexOf(id)
	if i < 0 {
		return Toggle{}, utils.ErrItemNotFound(id)
	}
	t := Toggle{ID: id, Prior: b.items[i].Status, Target: b.items[i].Status.Toggled()}
	b.items[i].Status = t.Target

	if b.pending == nil {
		b.pending = make(map[string]*pendingToggle)
	}
	p, ok := b.pending[id]
	if !ok {
		p = &pendingToggle{confirmed: t.Prior}
		b.pending[id] = p
	}
	p.count++
	p.target = t.Target
	return t, nil
}

// Rollback undoes a failed toggle. Once no toggle of the item is pending the
// item shows the last status the store confirmed.
func (b *Board) Rollback(t Toggle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pending[t.ID]; !ok {
		if i := b.indexOf(t.ID); i >= 0 {
			b.items[i].Status = t.Prior
		}
		return
	}
	b.settle(t.ID)
}

// Commit adopts the item the store confirmed. While later toggles of the
// item are pending its status stays optimistic.
func (b *Board) Commit(t Toggle, confirmed backend.Item) {
	if confirmed.ID == "" {
		confirmed.ID = t.ID
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pending[t.ID]
	if ok {
		p.confirmed = confirmed.Status
		if p.count > 1 {
			confirmed.Status = p.target
		}
	}
	if i := b.indexOf(confirmed.ID); i >= 0 {
		b.items[i] = confirmed
	}
	if ok {
		b.settle(t.ID)
	}
}

// settle resolves one pending toggle of id. Callers hold b.mu.
func (b *Board) settle(id string) {
	p := b.pending[id]
	p.count--
	if p.count > 0 {
		return
	}
	delete(b.pending, id)
	if i := b.indexOf(id); i >= 0 {
		b.items[i].Status = p.confirmed
	}
}

// ToggleStatus runs the optimistic protocol: flip locally, ask the store,
// then commit or roll back. On failure the board holds the pre-toggle status.
func ToggleStatus(ctx context.Context, store backend.ItemStore, board *Board, id string) (*backend.Item, error) {
	t, err := board.BeginToggle(id)
	if err != nil {
		return nil, err
	}

	updated, err := store.Update(ctx, id, backend.Patch{Status: backend.Ptr(t.Target)})
	if err != nil {
		board.Rollback(t)
		utils.Debugf("Toggle of %s rolled back: %v", id, err)
		return nil, err
	}
	board.Commit(t, *updated)
	return updated, nil
}
