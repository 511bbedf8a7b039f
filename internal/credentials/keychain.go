package credentials

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const securityBin = "security"

// security(1) exits with 44 when no matching item exists.
const errSecItemNotFound = 44

// commandRunner runs name with args. err is reserved for failures to start
// the process; a non-zero exit is reported through code.
type commandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr string, code int, err error)

// Keychain stores credentials as generic passwords in the macOS login
// keychain via the security CLI.
type Keychain struct {
	service string
	run     commandRunner
}

// NewKeychain creates a keychain-backed provider for service.
func NewKeychain(service string) *Keychain {
	return &Keychain{service: service, run: runCommand}
}

// Get reads the password stored for key.
func (k *Keychain) Get(ctx context.Context, key string) (string, error) {
	out, stderr, code, err := k.run(ctx, securityBin,
		"find-generic-password", "-s", k.service, "-a", key, "-w")
	if err != nil {
		return "", fmt.Errorf("failed to run `security` command: %w", err)
	}
	switch code {
	case 0:
		return strings.TrimSpace(out), nil
	case errSecItemNotFound:
		return "", fmt.Errorf("keychain %s/%s: %w", k.service, key, ErrNotFound)
	default:
		return "", fmt.Errorf("keychain read failed for %q: %s", key, strings.TrimSpace(stderr))
	}
}

// Set replaces the password stored for key.
func (k *Keychain) Set(ctx context.Context, key, value string) error {
	// add-generic-password -U does not update every attribute; start clean.
	_, _, _, _ = k.run(ctx, securityBin, "delete-generic-password", "-s", k.service, "-a", key)

	_, stderr, code, err := k.run(ctx, securityBin,
		"add-generic-password", "-s", k.service, "-a", key, "-w", value, "-U")
	if err != nil {
		return fmt.Errorf("failed to run `security` command: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("keychain write failed: %s", strings.TrimSpace(stderr))
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) (string, string, int, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.String(), stderr.String(), exitErr.ExitCode(), nil
	}
	if err != nil {
		return "", "", -1, err
	}
	return stdout.String(), stderr.String(), 0, nil
}
