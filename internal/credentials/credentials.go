// Package credentials stores the remote item API token in the OS keyring,
// falling back to an environment variable.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Source indicates where a secret was found
type Source string

const (
	SourceKeyring     Source = "keyring"
	SourceEnvironment Source = "environment"
	SourceNone        Source = "none"
)

// Info describes a secret lookup
type Info struct {
	Source  Source
	Backend string // backend name, e.g. "rest"
	Account string // the API base URL for the rest backend
	Secret  string
	Found   bool
}

// JSON serializes the lookup without the secret
func (i *Info) JSON() ([]byte, error) {
	return json.Marshal(struct {
		Backend string `json:"backend"`
		Account string `json:"account"`
		Source  string `json:"source"`
		Found   bool   `json:"found"`
	}{
		Backend: i.Backend,
		Account: i.Account,
		Source:  string(i.Source),
		Found:   i.Found,
	})
}

// Keyring is the subset of keyring operations the manager uses
type Keyring interface {
	Set(service, account, secret string) error
	Get(service, account string) (string, error)
	Delete(service, account string) error
}

// Manager looks secrets up in the keyring, then the environment
type Manager struct {
	keyring Keyring
	getenv  func(string) string
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithKeyring replaces the OS keyring
func WithKeyring(k Keyring) ManagerOption {
	return func(m *Manager) {
		m.keyring = k
	}
}

// WithGetenv replaces os.Getenv
func WithGetenv(fn func(string) string) ManagerOption {
	return func(m *Manager) {
		m.getenv = fn
	}
}

// NewManager creates a manager backed by the OS keyring
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		keyring: systemKeyring{},
		getenv:  os.Getenv,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func normalizeBackend(backend string) string {
	return strings.ToLower(strings.TrimSpace(backend))
}

// serviceName returns the keyring service for a backend
func serviceName(backend string) string {
	return fmt.Sprintf("taskpad-%s", normalizeBackend(backend))
}

// EnvVar returns the environment variable consulted for a backend,
// e.g. TASKPAD_REST_TOKEN
func EnvVar(backend string) string {
	return fmt.Sprintf("TASKPAD_%s_TOKEN", strings.ToUpper(normalizeBackend(backend)))
}

// Set stores a secret in the keyring
func (m *Manager) Set(ctx context.Context, backend, account, secret string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if secret == "" {
		return errors.New("secret must not be empty")
	}
	return m.keyring.Set(serviceName(backend), account, secret)
}

// Get looks the secret up in the keyring first, then the environment. A
// missing secret is not an error; check Info.Found.
func (m *Manager) Get(ctx context.Context, backend, account string) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	backend = normalizeBackend(backend)
	info := &Info{Source: SourceNone, Backend: backend, Account: account}

	secret, err := m.keyring.Get(serviceName(backend), account)
	switch {
	case err == nil && secret != "":
		info.Source, info.Secret, info.Found = SourceKeyring, secret, true
		return info, nil
	case err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrKeyringNotAvailable):
		return nil, err
	}

	if env := m.getenv(EnvVar(backend)); env != "" {
		info.Source, info.Secret, info.Found = SourceEnvironment, env, true
	}
	return info, nil
}

// Token returns the secret for backend/account, or "" when none is stored
func (m *Manager) Token(ctx context.Context, backend, account string) (string, error) {
	info, err := m.Get(ctx, backend, account)
	if err != nil {
		return "", err
	}
	return info.Secret, nil
}

// Delete removes a secret from the keyring. Deleting a missing secret succeeds.
func (m *Manager) Delete(ctx context.Context, backend, account string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := m.keyring.Delete(serviceName(backend), account)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
