package credentials

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
)

var (
	// ErrNotFound is returned when no secret is stored for a service/account
	ErrNotFound = errors.New("secret not found")
	// ErrKeyringNotAvailable is returned when the OS keyring cannot be reached
	// (no Secret Service on D-Bus, locked keychain, headless container)
	ErrKeyringNotAvailable = errors.New("system keyring not available")
)

// MockKeyring is an in-memory Keyring for tests
type MockKeyring struct {
	mu    sync.RWMutex
	store map[string]map[string]string // service -> account -> secret
}

// NewMockKeyring creates an empty mock keyring
func NewMockKeyring() *MockKeyring {
	return &MockKeyring{
		store: make(map[string]map[string]string),
	}
}

// Set stores a secret
func (m *MockKeyring) Set(service, account, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store[service] == nil {
		m.store[service] = make(map[string]string)
	}
	m.store[service][account] = secret
	return nil
}

// Get returns a stored secret or ErrNotFound
func (m *MockKeyring) Get(service, account string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if secret, ok := m.store[service][account]; ok {
		return secret, nil
	}
	return "", fmt.Errorf("%s/%s: %w", service, account, ErrNotFound)
}

// Delete removes a stored secret or returns ErrNotFound
func (m *MockKeyring) Delete(service, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.store[service][account]; !ok {
		return fmt.Errorf("%s/%s: %w", service, account, ErrNotFound)
	}
	delete(m.store[service], account)
	return nil
}

// systemKeyring stores secrets in the OS keyring through go-keyring
type systemKeyring struct{}

func (systemKeyring) Set(service, account, secret string) error {
	return wrapKeyringError(keyring.Set(service, account, secret))
}

func (systemKeyring) Get(service, account string) (string, error) {
	secret, err := keyring.Get(service, account)
	if err != nil {
		return "", wrapKeyringError(err)
	}
	return secret, nil
}

func (systemKeyring) Delete(service, account string) error {
	return wrapKeyringError(keyring.Delete(service, account))
}

// wrapKeyringError maps go-keyring errors onto the package sentinels
func wrapKeyringError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, keyring.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, keyring.ErrSetDataTooBig):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrKeyringNotAvailable, err)
	}
}
