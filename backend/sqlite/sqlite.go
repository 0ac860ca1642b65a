package sqlite

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"taskpad/backend"
	"taskpad/internal/utils"
)

// Backend implements backend.ItemStore using SQLite
type Backend struct {
	db      *sql.DB
	latency time.Duration
	now     func() time.Time
}

// Option configures a Backend
type Option func(*Backend)

// WithLatency delays every operation, mirroring the in-memory mock.
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

// New opens the database at path and initializes the schema
func New(path string, opts ...Option) (*Backend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	b := &Backend{db: db, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	if err := b.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return b, nil
}

// initSchema creates the items table if it doesn't exist
func (b *Backend) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active',
			priority TEXT DEFAULT '',
			category TEXT DEFAULT '',
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_items_owner_id ON items(owner_id);
	`

	_, err := b.db.Exec(schema)
	return err
}

// scanner is an interface satisfied by both *sql.Rows and *sql.Row
type scanner interface {
	Scan(dest ...any) error
}

const itemColumns = "id, owner_id, title, description, status, priority, category, created_at"

// scanItem scans an item from any scanner (Rows or Row)
func scanItem(s scanner) (*backend.Item, error) {
	var it backend.Item
	var description, priority, category sql.NullString
	var createdStr string

	err := s.Scan(&it.ID, &it.OwnerID, &it.Title, &description, &it.Status, &priority, &category, &createdStr)
	if err != nil {
		return nil, err
	}

	it.Description = description.String
	it.Priority = backend.Priority(priority.String)
	it.Category = backend.Category(category.String)
	it.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return &it, nil
}

// List returns every item owned by ownerID, oldest first
func (b *Backend) List(ctx context.Context, ownerID string) ([]backend.Item, error) {
	if err := utils.SimulateLatency(ctx, b.latency); err != nil {
		return nil, err
	}

	rows, err := b.db.QueryContext(ctx,
		"SELECT "+itemColumns+" FROM items WHERE owner_id = ? ORDER BY rowid",
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []backend.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// Create inserts a new item
func (b *Backend) Create(ctx context.Context, draft backend.Draft) (*backend.Item, error) {
	if err := backend.ValidateDraft(draft); err != nil {
		return nil, err
	}
	if err := utils.SimulateLatency(ctx, b.latency); err != nil {
		return nil, err
	}

	item := backend.NewItem(backend.GenerateID(), draft, b.now().UTC())
	_, err := b.db.ExecContext(ctx,
		"INSERT INTO items ("+itemColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		item.ID, item.OwnerID, item.Title, item.Description, item.Status,
		item.Priority, item.Category, item.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Update merges patch into an existing item inside a transaction
func (b *Backend) Update(ctx context.Context, id string, patch backend.Patch) (*backend.Item, error) {
	if err := backend.ValidatePatch(patch); err != nil {
		return nil, err
	}
	if err := utils.SimulateLatency(ctx, b.latency); err != nil {
		return nil, err
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items WHERE id = ?", id)
	current, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, utils.ErrItemNotFound(id)
	}
	if err != nil {
		return nil, err
	}

	updated := patch.Apply(*current)
	_, err = tx.ExecContext(ctx,
		`UPDATE items SET title = ?, description = ?, status = ?, priority = ?, category = ?
		 WHERE id = ?`,
		updated.Title, updated.Description, updated.Status, updated.Priority, updated.Category, id,
	)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete permanently removes an item
func (b *Backend) Delete(ctx context.Context, id string) error {
	if err := utils.SimulateLatency(ctx, b.latency); err != nil {
		return err
	}

	res, err := b.db.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return utils.ErrItemNotFound(id)
	}
	return nil
}

// Close closes the database connection
func (b *Backend) Close() error {
	return b.db.Close()
}

// Verify interface compliance at compile time
var _ backend.ItemStore = (*Backend)(nil)
