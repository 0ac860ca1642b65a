// Package memory provides the in-memory mock item store. Every operation
// waits for a simulated network latency before touching the collection.
package memory

import (
	"context"
	"sync"
	"time"

	"taskpad/backend"
	"taskpad/internal/utils"
)

// DefaultLatency matches the delay of the original demo API.
const DefaultLatency = 800 * time.Millisecond

// DemoOwnerID owns the seeded demo items.
const DemoOwnerID = "demo-user"

// Op names a store operation for failure injection.
type Op string

const (
	OpList   Op = "list"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Backend implements backend.ItemStore over a slice held in memory
type Backend struct {
	mu       sync.Mutex
	items    []backend.Item
	latency  time.Duration
	now      func() time.Time
	failNext map[Op]error
}

// Option configures a Backend
type Option func(*Backend)

// WithLatency sets the simulated latency. Zero disables the delay.
func WithLatency(d time.Duration) Option {
	return func(b *Backend) {
		b.latency = d
	}
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

// WithDemoItems seeds the two demo items owned by DemoOwnerID.
func WithDemoItems() Option {
	return func(b *Backend) {
		now := b.now().UTC()
		b.items = append(b.items,
			backend.Item{
				ID:          "1",
				OwnerID:     DemoOwnerID,
				Title:       "Welcome to taskpad",
				Description: "This is a demo item. Press d to delete it!",
				Status:      backend.StatusActive,
				CreatedAt:   now,
			},
			backend.Item{
				ID:          "2",
				OwnerID:     DemoOwnerID,
				Title:       "Review requirements",
				Description: "Check all requirements in the document.",
				Status:      backend.StatusCompleted,
				CreatedAt:   now,
			},
		)
	}
}

// New creates an in-memory store. Without options it uses DefaultLatency.
func New(opts ...Option) *Backend {
	b := &Backend{
		latency:  DefaultLatency,
		now:      time.Now,
		failNext: make(map[Op]error),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// FailNext makes the next call of op fail with err after its latency.
func (b *Backend) FailNext(op Op, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext[op] = err
}

// begin waits out the latency and consumes any injected failure for op.
// On success it returns with b.mu held.
func (b *Backend) begin(ctx context.Context, op Op) error {
	if err := utils.SimulateLatency(ctx, b.latency); err != nil {
		return err
	}
	b.mu.Lock()
	if err, ok := b.failNext[op]; ok {
		delete(b.failNext, op)
		b.mu.Unlock()
		return err
	}
	return nil
}

// List returns all items owned by ownerID
func (b *Backend) List(ctx context.Context, ownerID string) ([]backend.Item, error) {
	if err := b.begin(ctx, OpList); err != nil {
		return nil, err
	}
	defer b.mu.Unlock()

	items := []backend.Item{}
	for _, it := range b.items {
		if it.OwnerID == ownerID {
			items = append(items, it)
		}
	}
	return items, nil
}

// Create stores a new item
func (b *Backend) Create(ctx context.Context, draft backend.Draft) (*backend.Item, error) {
	if err := backend.ValidateDraft(draft); err != nil {
		return nil, err
	}
	if err := b.begin(ctx, OpCreate); err != nil {
		return nil, err
	}
	defer b.mu.Unlock()

	item := backend.NewItem(backend.GenerateID(), draft, b.now().UTC())
	b.items = append(b.items, item)
	return &item, nil
}

// Update merges patch into an existing item
func (b *Backend) Update(ctx context.Context, id string, patch backend.Patch) (*backend.Item, error) {
	if err := backend.ValidatePatch(patch); err != nil {
		return nil, err
	}
	if err := b.begin(ctx, OpUpdate); err != nil {
		return nil, err
	}
	defer b.mu.Unlock()

	i := b.indexOf(id)
	if i < 0 {
		return nil, utils.ErrItemNotFound(id)
	}
	b.items[i] = patch.Apply(b.items[i])
	updated := b.items[i]
	return &updated, nil
}

// Delete removes an item
func (b *Backend) Delete(ctx context.Context, id string) error {
	if err := b.begin(ctx, OpDelete); err != nil {
		return err
	}
	defer b.mu.Unlock()

	i := b.indexOf(id)
	if i < 0 {
		return utils.ErrItemNotFound(id)
	}
	b.items = append(b.items[:i], b.items[i+1:]...)
	return nil
}

// Close is a no-op for the in-memory store
func (b *Backend) Close() error {
	return nil
}

func (b *Backend) indexOf(id string) int {
	for i, it := range b.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Verify interface compliance at compile time
var _ backend.ItemStore = (*Backend)(nil)
