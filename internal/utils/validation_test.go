package utils

import (
	"strings"
	"testing"
)

// TestValidateEmail covers accepted and rejected addresses
func TestValidateEmail(t *testing.T) {
	valid := []string{"alice@example.com", "  Bob@Example.ORG ", "a.b+c@sub.domain.dev"}
	for _, email := range valid {
		if err := ValidateEmail(email); err != nil {
			t.Errorf("ValidateEmail(%q) unexpected error: %v", email, err)
		}
	}

	invalid := []string{"", "plain", "no-at.example.com", "two@@example.com", "a@b", "with space@example.com"}
	for _, email := range invalid {
		err := ValidateEmail(email)
		if err == nil {
			t.Errorf("ValidateEmail(%q) should fail", email)
			continue
		}
		if KindOf(err) != KindInvalidEmail {
			t.Errorf("ValidateEmail(%q) kind = %q, want %q", email, KindOf(err), KindInvalidEmail)
		}
	}
}

// TestNormalizeEmail verifies trimming and lower-casing
func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.COM "); got != "alice@example.com" {
		t.Errorf("NormalizeEmail() = %q", got)
	}
}

// TestValidatePassword verifies the six character minimum
func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("12345"); KindOf(err) != KindWeakPassword {
		t.Errorf("5 chars: kind = %q, want %q", KindOf(err), KindWeakPassword)
	}
	if err := ValidatePassword("123456"); err != nil {
		t.Errorf("6 chars: unexpected error %v", err)
	}
}

// TestValidateTitle verifies required and maximum length rules
func TestValidateTitle(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		wantErr bool
	}{
		{"normal", "Buy milk", false},
		{"empty", "", true},
		{"whitespace", "   \t", true},
		{"max length", strings.Repeat("a", MaxTitleLength), false},
		{"too long", strings.Repeat("a", MaxTitleLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTitle(tt.title)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateTitle() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && KindOf(err) != KindValidation {
				t.Errorf("kind = %q, want %q", KindOf(err), KindValidation)
			}
		})
	}
}
