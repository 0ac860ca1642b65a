// Package app assembles the application core from configuration: durable
// storage, the session store, the item store, navigation and preferences.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"taskpad/backend"
	"taskpad/backend/memory"
	"taskpad/backend/rest"
	"taskpad/backend/sqlite"
	"taskpad/internal/auth"
	"taskpad/internal/config"
	"taskpad/internal/credentials"
	"taskpad/internal/dashboard"
	"taskpad/internal/nav"
	"taskpad/internal/prefs"
	"taskpad/internal/ratelimit"
	"taskpad/internal/storage"
	"taskpad/internal/utils"
)

// App holds the wired components
type App struct {
	Config      *config.Config
	KV          storage.KV
	Session     *auth.Store
	Items       backend.ItemStore
	Nav         *nav.Controller
	Prefs       *prefs.Prefs
	Credentials *credentials.Manager
}

type options struct {
	kv         storage.KV
	items      backend.ItemStore
	creds      *credentials.Manager
	bcryptCost int
}

// Option overrides a component, mostly for tests
type Option func(*options)

// WithKV uses kv instead of opening the configured state file
func WithKV(kv storage.KV) Option {
	return func(o *options) { o.kv = kv }
}

// WithItemStore uses store instead of the configured backend
func WithItemStore(store backend.ItemStore) Option {
	return func(o *options) { o.items = store }
}

// WithCredentials replaces the OS keyring credential manager
func WithCredentials(m *credentials.Manager) Option {
	return func(o *options) { o.creds = m }
}

// WithBcryptCost sets the account password hashing cost
func WithBcryptCost(cost int) Option {
	return func(o *options) { o.bcryptCost = cost }
}

// New builds the application. The navigation controller is attached to
// the session before New returns, so a persisted identity starts at Home.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.creds == nil {
		o.creds = credentials.NewManager()
	}

	a := &App{Config: cfg, Credentials: o.creds}

	a.KV = o.kv
	if a.KV == nil {
		kv, err := openKV(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open state storage: %w", err)
		}
		a.KV = kv
	}

	p, err := prefs.Load(a.KV)
	if err != nil {
		a.closeQuietly()
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	a.Prefs = p

	session, err := auth.New(a.KV, sessionOptions(cfg, o)...)
	if err != nil {
		a.closeQuietly()
		return nil, fmt.Errorf("open session: %w", err)
	}
	a.Session = session

	a.Items = o.items
	if a.Items == nil {
		items, err := newItemStore(context.Background(), cfg, o.creds)
		if err != nil {
			a.closeQuietly()
			return nil, err
		}
		a.Items = items
	}

	a.Nav = nav.New()
	a.Nav.Attach(a.Session)

	utils.Debugf("App ready: backend=%s screen=%s", cfg.Backend.Type, a.Nav.Current())
	return a, nil
}

func sessionOptions(cfg *config.Config, o *options) []auth.Option {
	login, register, logout, reset := cfg.AuthLatencies()
	opts := []auth.Option{auth.WithLatency(auth.Latency{
		Login:    login,
		Register: register,
		Logout:   logout,
		Reset:    reset,
	})}
	if o.bcryptCost > 0 {
		opts = append(opts, auth.WithBcryptCost(o.bcryptCost))
	}
	if cfg.ShouldSeedDemoAccount() {
		opts = append(opts, auth.WithDemoAccount())
	}
	return opts
}

func openKV(path string) (storage.KV, error) {
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}
	return storage.NewSQLite(path)
}

// newItemStore opens the backend named by cfg.Backend.Type
func newItemStore(ctx context.Context, cfg *config.Config, creds *credentials.Manager) (backend.ItemStore, error) {
	latency := cfg.GetItemLatency()

	switch cfg.Backend.Type {
	case config.BackendMemory:
		opts := []memory.Option{memory.WithLatency(latency)}
		if cfg.ShouldSeedDemoItems() {
			opts = append(opts, memory.WithDemoItems())
		}
		return memory.New(opts...), nil

	case config.BackendSQLite:
		path := cfg.Backend.SQLite.Path
		if err := ensureParentDir(path); err != nil {
			return nil, fmt.Errorf("open sqlite item store: %w", err)
		}
		store, err := sqlite.New(path, sqlite.WithLatency(latency))
		if err != nil {
			return nil, fmt.Errorf("open sqlite item store: %w", err)
		}
		return store, nil

	case config.BackendREST:
		restCfg := rest.Config{
			BaseURL:  cfg.Backend.REST.BaseURL,
			Resource: cfg.Backend.REST.Resource,
			Timeout:  cfg.GetRESTTimeout(),
			Retry:    ratelimit.Config{MaxRetries: cfg.GetRESTMaxRetries(), Jitter: true},
		}
		if restCfg.Retry.MaxRetries == 0 {
			restCfg.Retry.MaxRetries = -1
		}
		if cfg.IsRESTKeyringEnabled() {
			token, err := creds.Token(ctx, "rest", restCfg.BaseURL)
			if err != nil {
				utils.Warnf("Could not read REST token: %v", err)
			}
			restCfg.Token = token
		}
		store, err := rest.New(restCfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown backend type %q", cfg.Backend.Type)
}

func ensureParentDir(path string) error {
	if path == "" || path == ":memory:" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// Close detaches navigation and releases the stores
func (a *App) Close() error {
	if a.Nav != nil {
		a.Nav.Detach()
	}
	var errs []error
	if a.Items != nil {
		errs = append(errs, a.Items.Close())
	}
	if a.KV != nil {
		errs = append(errs, a.KV.Close())
	}
	return errors.Join(errs...)
}

func (a *App) closeQuietly() {
	_ = a.Close()
}

// requireIdentity returns the signed-in identity or a validation error
func (a *App) requireIdentity() (*auth.Identity, error) {
	id := a.Session.Current()
	if id == nil {
		return nil, utils.WrapWithSuggestion(utils.ErrValidation("not logged in"), "Run 'taskpad login' first")
	}
	return id, nil
}

// ListItems returns the signed-in user's items, newest first
func (a *App) ListItems(ctx context.Context) ([]backend.Item, error) {
	id, err := a.requireIdentity()
	if err != nil {
		return nil, err
	}
	items, err := a.Items.List(ctx, id.ID)
	if err != nil {
		return nil, err
	}
	dashboard.SortNewestFirst(items)
	return items, nil
}

// AddItem creates an item owned by the signed-in user
func (a *App) AddItem(ctx context.Context, draft backend.Draft) (*backend.Item, error) {
	id, err := a.requireIdentity()
	if err != nil {
		return nil, err
	}
	draft.OwnerID = id.ID
	return a.Items.Create(ctx, draft)
}

// ownItem checks that itemID belongs to the signed-in user. Items owned by
// anyone else are reported as not found.
func (a *App) ownItem(ctx context.Context, itemID string) error {
	id, err := a.requireIdentity()
	if err != nil {
		return err
	}
	items, err := a.Items.List(ctx, id.ID)
	if err != nil {
		return err
	}
	if !slices.ContainsFunc(items, func(it backend.Item) bool { return it.ID == itemID }) {
		return utils.ErrItemNotFound(itemID)
	}
	return nil
}

// UpdateItem patches one of the signed-in user's items
func (a *App) UpdateItem(ctx context.Context, itemID string, patch backend.Patch) (*backend.Item, error) {
	if err := a.ownItem(ctx, itemID); err != nil {
		return nil, err
	}
	return a.Items.Update(ctx, itemID, patch)
}

// DeleteItem removes one of the signed-in user's items
func (a *App) DeleteItem(ctx context.Context, itemID string) error {
	if err := a.ownItem(ctx, itemID); err != nil {
		return err
	}
	return a.Items.Delete(ctx, itemID)
}

// ToggleItem flips an item between active and completed
func (a *App) ToggleItem(ctx context.Context, itemID string) (*backend.Item, error) {
	items, err := a.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	return dashboard.ToggleStatus(ctx, a.Items, dashboard.NewBoard(items), itemID)
}
