package credentials

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// SecretReader reads a secret after showing prompt. The CLI supplies a
// terminal reader that disables echo.
type SecretReader func(prompt string) (string, error)

// LineReader returns a SecretReader that reads one line from r, for
// piped input and tests
func LineReader(r io.Reader, w io.Writer) SecretReader {
	scanner := bufio.NewScanner(r)
	return func(prompt string) (string, error) {
		_, _ = fmt.Fprint(w, prompt)
		if scanner.Scan() {
			return strings.TrimSpace(scanner.Text()), nil
		}
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", errors.New("no input received")
	}
}

// CLIHandler implements the credentials subcommands
type CLIHandler struct {
	manager *Manager
	read    SecretReader
	stdout  io.Writer
}

// NewCLIHandler creates a handler
func NewCLIHandler(manager *Manager, read SecretReader, stdout io.Writer) *CLIHandler {
	return &CLIHandler{manager: manager, read: read, stdout: stdout}
}

// Set prompts for a token and stores it
func (h *CLIHandler) Set(ctx context.Context, backend, account string) error {
	secret, err := h.read(fmt.Sprintf("Enter token for %s (%s): ", backend, account))
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	if secret == "" {
		return errors.New("token must not be empty")
	}

	if err := h.manager.Set(ctx, backend, account, secret); err != nil {
		if errors.Is(err, ErrKeyringNotAvailable) {
			return keyringNotAvailableError(backend)
		}
		return fmt.Errorf("failed to store token: %w", err)
	}
	_, _ = fmt.Fprintln(h.stdout, "Token stored in system keyring")
	return nil
}

func keyringNotAvailableError(backend string) error {
	return fmt.Errorf(`system keyring not available

Set the token through the environment instead:
  export %s="your-api-token"`, EnvVar(backend))
}

// Get reports where the token for backend/account comes from. The secret
// itself is never printed.
func (h *CLIHandler) Get(ctx context.Context, backend, account string, jsonOutput bool) error {
	info, err := h.manager.Get(ctx, backend, account)
	if err != nil {
		return fmt.Errorf("failed to look up token: %w", err)
	}

	if jsonOutput {
		data, err := info.JSON()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(h.stdout, string(data))
		return nil
	}

	if !info.Found {
		_, _ = fmt.Fprintf(h.stdout, "No token found for %s (%s)\n", info.Backend, info.Account)
		_, _ = fmt.Fprintf(h.stdout, "Searched: system keyring, $%s\n", EnvVar(info.Backend))
		return nil
	}
	_, _ = fmt.Fprintf(h.stdout, "Backend: %s\n", info.Backend)
	_, _ = fmt.Fprintf(h.stdout, "Account: %s\n", info.Account)
	_, _ = fmt.Fprintf(h.stdout, "Source: %s\n", info.Source)
	_, _ = fmt.Fprintln(h.stdout, "Token: ******** (hidden)")
	return nil
}

// Delete removes the stored token
func (h *CLIHandler) Delete(ctx context.Context, backend, account string) error {
	if err := h.manager.Delete(ctx, backend, account); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	_, _ = fmt.Fprintln(h.stdout, "Token removed from system keyring")
	return nil
}
