// Package auth implements the session store: the single authority on who is
// logged in. It owns the mock account registry, persists the active identity
// and notifies subscribers whenever the identity changes.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"taskpad/internal/storage"
	"taskpad/internal/utils"
)

// Durable storage keys
const (
	SessionKey  = "mock_session"
	AccountsKey = "mock_accounts"
)

// RejectedEmail is always refused by Login, for exercising failure paths.
const RejectedEmail = "fail@test.com"

// Demo account seeded by WithDemoAccount
const (
	DemoUserID   = "demo-user"
	DemoEmail    = "demo@taskpad.dev"
	DemoPassword = "demo123"
)

// Latency holds the simulated delay of each operation
type Latency struct {
	Login    time.Duration
	Register time.Duration
	Logout   time.Duration
	Reset    time.Duration
}

// DefaultLatency returns the delays of the original mock auth service.
func DefaultLatency() Latency {
	return Latency{
		Login:    1000 * time.Millisecond,
		Register: 1500 * time.Millisecond,
		Logout:   200 * time.Millisecond,
		Reset:    1000 * time.Millisecond,
	}
}

// account is a registry entry as persisted under AccountsKey
type account struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName,omitempty"`
	PasswordHash string `json:"passwordHash"`
}

// subscriber wraps a callback with its own delivery lock so that a commit
// notification and the initial Subscribe call are never delivered out of order.
type subscriber struct {
	fn        func(*Identity)
	mu        sync.Mutex
	started   bool
	delivered uint64
	removed   atomic.Bool
}

func (sub *subscriber) deliver(version uint64, id *Identity) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.removed.Load() || (sub.started && version <= sub.delivered) {
		return
	}
	sub.started = true
	sub.delivered = version
	sub.fn(copyIdentity(id))
}

// Store is the session store
type Store struct {
	kv         storage.KV
	latency    Latency
	bcryptCost int
	seedDemo   bool

	// commitMu serializes persist+notify so concurrent operations resolve as
	// last-commit-wins.
	commitMu sync.Mutex

	mu       sync.RWMutex
	identity *Identity
	version  uint64
	accounts map[string]account

	subsMu sync.Mutex
	subs   []*subscriber
}

// Option configures a Store
type Option func(*Store)

// WithLatency overrides the simulated delays.
func WithLatency(l Latency) Option {
	return func(s *Store) {
		s.latency = l
	}
}

// WithBcryptCost sets the password hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Store) {
		s.bcryptCost = cost
	}
}

// WithDemoAccount registers the demo account if it is not already present.
func WithDemoAccount() Option {
	return func(s *Store) {
		s.seedDemo = true
	}
}

// New creates a session store over kv, rehydrating the persisted identity
// and account registry.
func New(kv storage.KV, opts ...Option) (*Store, error) {
	s := &Store{
		kv:         kv,
		latency:    DefaultLatency(),
		bcryptCost: bcrypt.DefaultCost,
		accounts:   make(map[string]account),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.loadAccounts(); err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	if s.seedDemo {
		if err := s.seedDemoAccount(); err != nil {
			return nil, fmt.Errorf("seed demo account: %w", err)
		}
	}

	id, err := ReadSession(kv)
	if err != nil {
		// A corrupt session record only costs the user a fresh login.
		utils.Warnf("Discarding unreadable session record: %v", err)
		_ = kv.Delete(SessionKey)
		id = nil
	}
	s.identity = id
	return s, nil
}

func (s *Store) loadAccounts() error {
	raw, ok, err := s.kv.Get(AccountsKey)
	if err != nil || !ok {
		return err
	}
	var list []account
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return err
	}
	for _, a := range list {
		s.accounts[a.Email] = a
	}
	return nil
}

// saveAccounts persists the registry. Callers hold commitMu.
func (s *Store) saveAccounts(accounts map[string]account) error {
	list := make([]account, 0, len(accounts))
	for _, a := range accounts {
		list = append(list, a)
	}
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return s.kv.Set(AccountsKey, string(data))
}

func (s *Store) seedDemoAccount() error {
	if _, ok := s.accounts[DemoEmail]; ok {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), s.bcryptCost)
	if err != nil {
		return err
	}
	s.accounts[DemoEmail] = account{ID: DemoUserID, Email: DemoEmail, DisplayName: "Demo", PasswordHash: string(hash)}
	return s.saveAccounts(s.accounts)
}

// Current returns a copy of the active identity, or nil.
func (s *Store) Current() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyIdentity(s.identity)
}

// Login authenticates against the account registry
func (s *Store) Login(ctx context.Context, email, password string) (*Identity, error) {
	if err := utils.SimulateLatency(ctx, s.latency.Login); err != nil {
		return nil, err
	}

	email = utils.NormalizeEmail(email)
	if email == RejectedEmail {
		return nil, utils.ErrInvalidCredentials()
	}

	s.mu.RLock()
	acct, ok := s.accounts[email]
	s.mu.RUnlock()
	if !ok {
		return nil, utils.ErrInvalidCredentials()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return nil, utils.ErrInvalidCredentials()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := &Identity{ID: acct.ID, Email: acct.Email, DisplayName: acct.DisplayName}
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	if err := s.commit(id); err != nil {
		return nil, err
	}
	utils.Debugf("Logged in as %s", id.Email)
	return copyIdentity(id), nil
}

// Register creates an account and signs it in
func (s *Store) Register(ctx context.Context, email, password string) (*Identity, error) {
	if err := utils.SimulateLatency(ctx, s.latency.Register); err != nil {
		return nil, err
	}

	email = utils.NormalizeEmail(email)
	if err := utils.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := utils.ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, utils.ErrValidation("password is too long")
	}
	if err != nil {
		return nil, err
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	_, exists := s.accounts[email]
	next := make(map[string]account, len(s.accounts)+1)
	for k, v := range s.accounts {
		next[k] = v
	}
	s.mu.RUnlock()
	if exists {
		return nil, utils.ErrEmailInUse(email)
	}

	acct := account{ID: "user-" + uuid.New().String(), Email: email, PasswordHash: string(hash)}
	next[email] = acct
	if err := s.saveAccounts(next); err != nil {
		return nil, fmt.Errorf("save accounts: %w", err)
	}
	s.mu.Lock()
	s.accounts = next
	s.mu.Unlock()

	id := &Identity{ID: acct.ID, Email: acct.Email}
	if err := s.commit(id); err != nil {
		return nil, err
	}
	utils.Debugf("Registered %s as %s", id.Email, id.ID)
	return copyIdentity(id), nil
}

// Logout clears the session. It succeeds even when nobody is logged in.
func (s *Store) Logout(ctx context.Context) error {
	if err := utils.SimulateLatency(ctx, s.latency.Logout); err != nil {
		return err
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	return s.commit(nil)
}

// ResetPassword records a reset request for a registered address. The
// session is left untouched.
func (s *Store) ResetPassword(ctx context.Context, email string) error {
	if err := utils.SimulateLatency(ctx, s.latency.Reset); err != nil {
		return err
	}

	email = utils.NormalizeEmail(email)
	if err := utils.ValidateEmail(email); err != nil {
		return err
	}
	s.mu.RLock()
	_, ok := s.accounts[email]
	s.mu.RUnlock()
	if !ok {
		return utils.ErrUserNotFound(email)
	}

	utils.Infof("Password reset requested for %s", email)
	return nil
}

// Subscribe calls fn with the current identity (nil when absent) before
// returning, then again on every change. fn must not call Login, Register,
// Logout or ResetPassword synchronously. The returned func unsubscribes and
// may be called any number of times, including from inside a callback.
func (s *Store) Subscribe(fn func(*Identity)) (unsubscribe func()) {
	sub := &subscriber{fn: fn}

	s.subsMu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.RLock()
	version, current := s.version, copyIdentity(s.identity)
	s.mu.RUnlock()
	s.subsMu.Unlock()

	sub.deliver(version, current)

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(sub) })
	}
}

func (s *Store) remove(target *subscriber) {
	target.removed.Store(true)

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for i, sub := range s.subs {
		if sub == target {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}

// commit persists id, swaps it in and notifies a snapshot of the
// subscribers. Callers hold commitMu.
func (s *Store) commit(id *Identity) error {
	if err := writeSession(s.kv, id); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	s.mu.Lock()
	s.identity = copyIdentity(id)
	s.version++
	version := s.version
	s.mu.Unlock()

	s.subsMu.Lock()
	snapshot := make([]*subscriber, len(s.subs))
	copy(snapshot, s.subs)
	s.subsMu.Unlock()

	for _, sub := range snapshot {
		sub.deliver(version, id)
	}
	return nil
}

func copyIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
