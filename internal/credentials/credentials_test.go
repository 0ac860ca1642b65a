package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestSetStoresUnderServiceName(t *testing.T) {
	kr := NewMockKeyring()
	m := NewManager(WithKeyring(kr), WithGetenv(env(nil)))

	if err := m.Set(context.Background(), "REST", "http://api.local", "tok"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := kr.Get("taskpad-rest", "http://api.local")
	if err != nil || got != "tok" {
		t.Errorf("keyring entry = %q, %v; want tok", got, err)
	}
}

func TestSetRejectsEmptySecret(t *testing.T) {
	m := NewManager(WithKeyring(NewMockKeyring()))
	if err := m.Set(context.Background(), "rest", "acct", ""); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestGetSources(t *testing.T) {
	tests := []struct {
		name       string
		keyring    string
		env        string
		wantSource Source
		wantSecret string
	}{
		{"keyring only", "from-keyring", "", SourceKeyring, "from-keyring"},
		{"environment only", "", "from-env", SourceEnvironment, "from-env"},
		{"keyring wins", "from-keyring", "from-env", SourceKeyring, "from-keyring"},
		{"none", "", "", SourceNone, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kr := NewMockKeyring()
			if tt.keyring != "" {
				_ = kr.Set("taskpad-rest", "acct", tt.keyring)
			}
			m := NewManager(WithKeyring(kr), WithGetenv(env(map[string]string{"TASKPAD_REST_TOKEN": tt.env})))

			info, err := m.Get(context.Background(), "rest", "acct")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if info.Source != tt.wantSource || info.Secret != tt.wantSecret {
				t.Errorf("Get = (%s, %q), want (%s, %q)", info.Source, info.Secret, tt.wantSource, tt.wantSecret)
			}
			if info.Found != (tt.wantSource != SourceNone) {
				t.Errorf("Found = %v", info.Found)
			}
		})
	}
}

type unavailableKeyring struct{}

func (unavailableKeyring) Set(string, string, string) error { return ErrKeyringNotAvailable }
func (unavailableKeyring) Get(string, string) (string, error) {
	return "", ErrKeyringNotAvailable
}
func (unavailableKeyring) Delete(string, string) error { return ErrKeyringNotAvailable }

func TestGetFallsBackWhenKeyringUnavailable(t *testing.T) {
	m := NewManager(WithKeyring(unavailableKeyring{}), WithGetenv(env(map[string]string{"TASKPAD_REST_TOKEN": "env-tok"})))

	tok, err := m.Token(context.Background(), "rest", "acct")
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if tok != "env-tok" {
		t.Errorf("Token = %q, want env-tok", tok)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	kr := NewMockKeyring()
	m := NewManager(WithKeyring(kr))
	_ = m.Set(context.Background(), "rest", "acct", "tok")

	for i := 0; i < 2; i++ {
		if err := m.Delete(context.Background(), "rest", "acct"); err != nil {
			t.Fatalf("Delete #%d failed: %v", i+1, err)
		}
	}
	if _, err := kr.Get("taskpad-rest", "acct"); !errors.Is(err, ErrNotFound) {
		t.Errorf("entry still present: %v", err)
	}
}

func TestBackendNameNormalization(t *testing.T) {
	kr := NewMockKeyring()
	m := NewManager(WithKeyring(kr), WithGetenv(env(nil)))
	_ = m.Set(context.Background(), "  Rest ", "acct", "tok")

	info, _ := m.Get(context.Background(), "rest", "acct")
	if !info.Found || info.Backend != "rest" {
		t.Errorf("Get = %+v, want found under rest", info)
	}
	if EnvVar(" Rest") != "TASKPAD_REST_TOKEN" {
		t.Errorf("EnvVar = %s", EnvVar(" Rest"))
	}
}

func TestInfoJSONOmitsSecret(t *testing.T) {
	info := &Info{Source: SourceKeyring, Backend: "rest", Account: "acct", Secret: "hunter2", Found: true}
	data, err := info.JSON()
	if err != nil {
		t.Fatalf("JSON failed: %v", err)
	}
	if strings.Contains(string(data), "hunter2") {
		t.Errorf("JSON leaks the secret: %s", data)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["source"] != "keyring" || decoded["found"] != true {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewManager(WithKeyring(NewMockKeyring()))

	if _, err := m.Get(ctx, "rest", "acct"); !errors.Is(err, context.Canceled) {
		t.Errorf("Get error = %v, want context.Canceled", err)
	}
}
