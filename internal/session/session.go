// Package session materializes the credentials and API client one talpa
// command runs with.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/go-playground/validator.v9"

	"github.com/alekspetrov/talpa/internal/cloudflare"
	"github.com/alekspetrov/talpa/internal/credentials"
)

// ErrNotConfigured is returned when a credential is missing from the store.
var ErrNotConfigured = errors.New("credentials not configured, run `talpa setup` first")

var validate = validator.New()

// Options tune the client a session builds.
type Options struct {
	BaseURL       string
	RoutingDomain string
	Timeout       time.Duration
	Logger        *slog.Logger
}

// Session holds the credentials and client for one command invocation.
type Session struct {
	Credentials cloudflare.Credentials
	Client      *cloudflare.Client
}

// Open reads the four credentials once and builds a client from them.
func Open(ctx context.Context, provider credentials.Provider, opts Options) (*Session, error) {
	creds, err := Load(ctx, provider)
	if err != nil {
		return nil, err
	}
	return New(creds, opts), nil
}

// New builds a session from credentials that were already loaded.
func New(creds cloudflare.Credentials, opts Options) *Session {
	clientOpts := []cloudflare.Option{
		cloudflare.WithTimeout(opts.Timeout),
		cloudflare.WithRoutingDomain(opts.RoutingDomain),
		cloudflare.WithLogger(opts.Logger),
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, cloudflare.WithBaseURL(opts.BaseURL))
	}

	return &Session{
		Credentials: creds,
		Client:      cloudflare.NewClient(creds, clientOpts...),
	}
}

// Load reads and validates the four credentials.
func Load(ctx context.Context, provider credentials.Provider) (cloudflare.Credentials, error) {
	var creds cloudflare.Credentials
	targets := map[string]*string{
		credentials.KeyAccountID: &creds.AccountID,
		credentials.KeyZoneID:    &creds.ZoneID,
		credentials.KeyTunnelID:  &creds.TunnelID,
		credentials.KeyAPIToken:  &creds.APIToken,
	}

	for _, key := range credentials.Keys {
		value, err := provider.Get(ctx, key)
		if errors.Is(err, credentials.ErrNotFound) {
			return cloudflare.Credentials{}, fmt.Errorf("%s: %w", key, ErrNotConfigured)
		}
		if err != nil {
			return cloudflare.Credentials{}, fmt.Errorf("failed to read %s: %w", key, err)
		}
		*targets[key] = value
	}

	if err := Validate(creds); err != nil {
		return cloudflare.Credentials{}, fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}
	return creds, nil
}

// Save validates creds and writes all four to provider.
func Save(ctx context.Context, provider credentials.Provider, creds cloudflare.Credentials) error {
	if err := Validate(creds); err != nil {
		return err
	}

	values := map[string]string{
		credentials.KeyAccountID: creds.AccountID,
		credentials.KeyZoneID:    creds.ZoneID,
		credentials.KeyTunnelID:  creds.TunnelID,
		credentials.KeyAPIToken:  creds.APIToken,
	}
	for _, key := range credentials.Keys {
		if err := provider.Set(ctx, key, values[key]); err != nil {
			return fmt.Errorf("failed to store %s: %w", key, err)
		}
	}
	return nil
}

// Validate reports every empty credential field.
func Validate(creds cloudflare.Credentials) error {
	creds.AccountID = strings.TrimSpace(creds.AccountID)
	creds.ZoneID = strings.TrimSpace(creds.ZoneID)
	creds.TunnelID = strings.TrimSpace(creds.TunnelID)
	creds.APIToken = strings.TrimSpace(creds.APIToken)

	err := validate.Struct(creds)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, fe.Field())
	}
	return fmt.Errorf("missing %s", strings.Join(missing, ", "))
}
