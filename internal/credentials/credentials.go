// Package credentials stores the secrets talpa needs to reach Cloudflare.
// The rest of talpa only sees the Provider interface.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"runtime"
)

// Keys under which the four secrets are stored.
const (
	KeyAccountID = "account_id"
	KeyZoneID    = "zone_id"
	KeyTunnelID  = "tunnel_id"
	KeyAPIToken  = "api_token"
)

// Keys lists every stored key in setup order.
var Keys = []string{KeyAccountID, KeyZoneID, KeyTunnelID, KeyAPIToken}

// DefaultService namespaces talpa's entries inside a shared secret store.
const DefaultService = "com.tunnel-cli.cloudflare"

var (
	// ErrNotFound is returned when a key has no stored value.
	ErrNotFound = errors.New("credential not found")

	// ErrReadOnly is returned by backends that cannot persist values.
	ErrReadOnly = errors.New("credential backend is read-only")
)

// Provider gets and sets opaque secrets by key.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Backend names accepted in configuration.
const (
	BackendKeychain = "keychain"
	BackendSQLite   = "sqlite"
	BackendEnv      = "env"
)

// Config selects and configures a backend.
type Config struct {
	Backend string `yaml:"backend"` // keychain, sqlite, env
	Service string `yaml:"service"` // keychain service / sqlite namespace
	Path    string `yaml:"path"`    // sqlite database file
}

// DefaultBackend returns the keychain on macOS and sqlite elsewhere.
func DefaultBackend() string {
	if runtime.GOOS == "darwin" {
		return BackendKeychain
	}
	return BackendSQLite
}

// Open returns the Provider described by cfg. Callers should Close the
// result when it implements io.Closer.
func Open(cfg *Config) (Provider, error) {
	service := cfg.Service
	if service == "" {
		service = DefaultService
	}

	backend := cfg.Backend
	if backend == "" {
		backend = DefaultBackend()
	}

	switch backend {
	case BackendKeychain:
		return NewKeychain(service), nil
	case BackendSQLite:
		if cfg.Path == "" {
			return nil, errors.New("sqlite credential backend requires a path")
		}
		return OpenSQLite(cfg.Path, service)
	case BackendEnv:
		return NewEnv(), nil
	default:
		return nil, fmt.Errorf("unknown credential backend: %s", backend)
	}
}
