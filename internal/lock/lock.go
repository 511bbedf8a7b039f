// Package lock provides an advisory lock around a tunnel's ingress
// configuration. The Cloudflare API has no compare-and-swap write, so two
// concurrent read-modify-write cycles otherwise race and the last one wins.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired is returned when another holder owns the lock.
var ErrNotAcquired = errors.New("lock held by another process")

// DefaultTTL bounds how long a crashed holder can block others.
const DefaultTTL = 30 * time.Second

// Config holds lock settings.
type Config struct {
	RedisURL string        `yaml:"redis_url"` // empty disables locking
	TTL      time.Duration `yaml:"ttl"`
}

// Locker hands out leases on keys.
type Locker interface {
	Acquire(ctx context.Context, key string) (Lease, error)
}

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Pinger is implemented by lockers backed by a server.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TunnelKey is the lock key for a tunnel's ingress configuration.
func TunnelKey(tunnelID string) string {
	return "talpa:lock:tunnel:" + tunnelID
}

// Noop never blocks.
type Noop struct{}

// Acquire always succeeds.
func (Noop) Acquire(context.Context, string) (Lease, error) {
	return noopLease{}, nil
}

type noopLease struct{}

func (noopLease) Release(context.Context) error { return nil }

// New returns a Redis locker when cfg names a server, and Noop otherwise.
func New(cfg *Config) (Locker, error) {
	if cfg == nil || cfg.RedisURL == "" {
		return Noop{}, nil
	}
	return NewRedis(cfg.RedisURL, cfg.TTL)
}
