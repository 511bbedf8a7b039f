package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvPrefix is prepended to the upper-cased key, e.g. TALPA_API_TOKEN.
const EnvPrefix = "TALPA_"

// Env reads credentials from environment variables. It cannot persist.
type Env struct {
	lookup func(string) (string, bool)
}

// NewEnv creates an environment-backed provider.
func NewEnv() *Env {
	return &Env{lookup: os.LookupEnv}
}

// VarName returns the environment variable that holds key.
func VarName(key string) string {
	return EnvPrefix + strings.ToUpper(key)
}

// Get reads the variable for key. Unset and empty are both not found.
func (e *Env) Get(_ context.Context, key string) (string, error) {
	value, ok := e.lookup(VarName(key))
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return "", fmt.Errorf("$%s: %w", VarName(key), ErrNotFound)
	}
	return value, nil
}

// Set always fails.
func (e *Env) Set(_ context.Context, key, _ string) error {
	return fmt.Errorf("cannot store %s: %w", key, ErrReadOnly)
}
