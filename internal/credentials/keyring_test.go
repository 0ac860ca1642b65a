package credentials

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"
)

// TestSystemKeyringRoundTrip exercises the go-keyring adapter against its
// in-process mock provider
func TestSystemKeyringRoundTrip(t *testing.T) {
	keyring.MockInit()

	var k Keyring = systemKeyring{}
	if err := k.Set("taskpad-test", "http://api.local", "tok-1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := k.Get("taskpad-test", "http://api.local")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "tok-1" {
		t.Errorf("Get = %q, want tok-1", got)
	}

	if err := k.Delete("taskpad-test", "http://api.local"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := k.Get("taskpad-test", "http://api.local"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete error = %v, want ErrNotFound", err)
	}
}

func TestSystemKeyringUnavailable(t *testing.T) {
	keyring.MockInitWithError(errors.New("dbus: no session bus"))
	t.Cleanup(keyring.MockInit)

	err := systemKeyring{}.Set("taskpad-test", "acct", "tok")
	if !errors.Is(err, ErrKeyringNotAvailable) {
		t.Errorf("Set error = %v, want ErrKeyringNotAvailable", err)
	}
}

func TestMockKeyringNotFound(t *testing.T) {
	k := NewMockKeyring()
	if _, err := k.Get("svc", "acct"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
	if err := k.Delete("svc", "acct"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete error = %v, want ErrNotFound", err)
	}
}
