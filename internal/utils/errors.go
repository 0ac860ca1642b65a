package utils

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a failure so callers can react without string matching.
type ErrorKind string

const (
	KindInvalidCredentials ErrorKind = "invalid-credentials"
	KindInvalidEmail       ErrorKind = "invalid-email"
	KindWeakPassword       ErrorKind = "weak-password"
	KindEmailInUse         ErrorKind = "email-in-use"
	KindUserNotFound       ErrorKind = "user-not-found"
	KindValidation         ErrorKind = "validation"
	KindNotFound           ErrorKind = "not-found"
	KindTransient          ErrorKind = "transient"
	KindUnknown            ErrorKind = "unknown"
)

// Error is a classified error with an optional user-friendly suggestion.
type Error struct {
	Kind       ErrorKind
	Err        error
	Suggestion string
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Suggestion == "" {
		return msg
	}
	return fmt.Sprintf("%s\n\nSuggestion: %s", msg, e.Suggestion)
}

// GetSuggestion returns the suggestion text.
func (e *Error) GetSuggestion() string {
	return e.Suggestion
}

// Unwrap returns the underlying error for error chain support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// WrapWithSuggestion wraps an existing error with a suggestion, keeping its kind
// when it already carries one.
func WrapWithSuggestion(err error, suggestion string) error {
	return &Error{
		Kind:       KindOf(err),
		Err:        err,
		Suggestion: suggestion,
	}
}

// ErrInvalidCredentials returns an error for an unrecognized email/password pair.
func ErrInvalidCredentials() error {
	return &Error{
		Kind:       KindInvalidCredentials,
		Err:        errors.New("invalid email or password"),
		Suggestion: "Check your credentials or run 'taskpad register' to create an account",
	}
}

// ErrInvalidEmail returns an error for a malformed email address.
func ErrInvalidEmail(email string) error {
	return &Error{
		Kind:       KindInvalidEmail,
		Err:        fmt.Errorf("invalid email: %q", email),
		Suggestion: "Use an address of the form name@example.com",
	}
}

// ErrWeakPassword returns an error for a password shorter than min.
func ErrWeakPassword(min int) error {
	return &Error{
		Kind:       KindWeakPassword,
		Err:        fmt.Errorf("password must be at least %d characters", min),
		Suggestion: "Choose a longer password",
	}
}

// ErrEmailInUse returns an error when registering an existing address.
func ErrEmailInUse(email string) error {
	return &Error{
		Kind:       KindEmailInUse,
		Err:        fmt.Errorf("email already in use: %s", email),
		Suggestion: "Log in with 'taskpad login' or reset the password with 'taskpad reset-password'",
	}
}

// ErrUserNotFound returns an error when no account matches an address.
func ErrUserNotFound(email string) error {
	return &Error{
		Kind:       KindUserNotFound,
		Err:        fmt.Errorf("no account for %s", email),
		Suggestion: "Check the address or run 'taskpad register'",
	}
}

// ErrValidation returns an error for a missing or invalid field.
func ErrValidation(reason string) error {
	return &Error{
		Kind: KindValidation,
		Err:  errors.New(reason),
	}
}

// ErrItemNotFound returns an error for an unknown item id.
func ErrItemNotFound(id string) error {
	return &Error{
		Kind:       KindNotFound,
		Err:        fmt.Errorf("item not found: %s", id),
		Suggestion: "Use 'taskpad items list' to see your items",
	}
}

// ErrTransient wraps a network or timeout failure from a remote collaborator.
func ErrTransient(op string, cause error) error {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	return &Error{
		Kind:       KindTransient,
		Err:        fmt.Errorf("%s failed: %w", op, cause),
		Suggestion: getSmartSuggestion(reason),
	}
}

// getSmartSuggestion returns a context-aware suggestion based on the error reason.
func getSmartSuggestion(reason string) string {
	lowerReason := strings.ToLower(reason)

	if strings.Contains(lowerReason, "no such host") || strings.Contains(lowerReason, "dns") {
		return "Check your DNS settings and internet connection"
	}

	if strings.Contains(lowerReason, "connection refused") {
		return "Check if the server is running and accessible"
	}

	if strings.Contains(lowerReason, "timeout") || strings.Contains(lowerReason, "deadline exceeded") {
		return "The server may be slow or unreachable. Try again later"
	}

	return "Check your internet connection and try again"
}

// UserMessage returns the short text shown to a user for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case KindEmailInUse:
		return "This email is already in use."
	case KindInvalidEmail:
		return "Please enter a valid email."
	case KindWeakPassword:
		return "Password should be at least 6 characters."
	case KindInvalidCredentials, KindUserNotFound:
		return "Email or password is incorrect."
	case KindValidation:
		var e *Error
		if errors.As(err, &e) && e.Err != nil {
			return capitalize(e.Err.Error()) + "."
		}
		return "Please check the form."
	case KindNotFound:
		return "That task no longer exists."
	case KindTransient:
		return "Network problem. Try again later."
	default:
		return "An unexpected error occurred."
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
