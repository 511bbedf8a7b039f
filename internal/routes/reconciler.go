// Package routes keeps a tunnel's ingress rules and its zone's CNAME records
// in step. The ingress list is authoritative: once it has been written, any
// DNS failure is reported as a warning and never rolled back.
package routes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alekspetrov/talpa/internal/cloudflare"
	"github.com/alekspetrov/talpa/internal/lock"
)

// RemoteAPI is the subset of the Cloudflare client the reconciler drives.
type RemoteAPI interface {
	TunnelID() string
	GetIngressConfig(ctx context.Context) (*cloudflare.TunnelConfig, error)
	ReplaceIngressConfig(ctx context.Context, cfg *cloudflare.TunnelConfig) error
	CreateDNSRecord(ctx context.Context, hostname string) error
	FindDNSRecordID(ctx context.Context, hostname string) (string, error)
	DeleteDNSRecord(ctx context.Context, recordID string) error
}

// Reconciler implements add, remove and list over one tunnel.
type Reconciler struct {
	api    RemoteAPI
	locker lock.Locker
	logger *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLocker serializes mutating operations through l.
func WithLocker(l lock.Locker) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.locker = l
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReconciler creates a reconciler over api.
func NewReconciler(api RemoteAPI, opts ...Option) *Reconciler {
	r := &Reconciler{
		api:    api,
		locker: lock.Noop{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RemoveOption tunes RemoveRoute.
type RemoveOption func(*removeOptions)

type removeOptions struct {
	recordID string
}

// WithRecordID deletes the given DNS record instead of looking one up.
func WithRecordID(id string) RemoveOption {
	return func(o *removeOptions) {
		o.recordID = id
	}
}

// AddRoute inserts hostname → service just before the catch-all rule, then
// creates the CNAME record.
func (r *Reconciler) AddRoute(ctx context.Context, hostname, service string) (*Result, error) {
	if hostname == "" || service == "" {
		return nil, fmt.Errorf("%w: hostname and service are required", ErrInvalidRoute)
	}
	route := Route{Hostname: hostname, Service: service}
	logger := r.logger.With("op", "add", "hostname", hostname)

	var result *Result
	err := r.withLock(ctx, func() error {
		cfg, err := r.api.GetIngressConfig(ctx)
		if err != nil {
			return err
		}
		logger.Debug("fetched tunnel config", "rules", len(cfg.Ingress))

		updated, err := insertRoute(cfg, route)
		if err != nil {
			return err
		}

		if err := r.api.ReplaceIngressConfig(ctx, updated); err != nil {
			return err
		}
		logger.Info("tunnel config updated", "service", service)

		result = &Result{Route: route}
		if err := r.api.CreateDNSRecord(ctx, hostname); err != nil {
			result.Warning = &Warning{
				Kind:     DNSSyncFailed,
				Hostname: hostname,
				Message:  "CNAME creation failed",
				Hint:     "the route is live in the tunnel config; create the CNAME record manually",
				Err:      err,
			}
			logger.Warn("CNAME creation failed", "error", err)
			return nil
		}
		logger.Info("CNAME record created")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveRoute drops every rule for hostname, then deletes its CNAME record.
func (r *Reconciler) RemoveRoute(ctx context.Context, hostname string, opts ...RemoveOption) (*Result, error) {
	if hostname == "" {
		return nil, fmt.Errorf("%w: hostname is required", ErrInvalidRoute)
	}
	var o removeOptions
	for _, opt := range opts {
		opt(&o)
	}
	logger := r.logger.With("op", "remove", "hostname", hostname)

	var result *Result
	err := r.withLock(ctx, func() error {
		cfg, err := r.api.GetIngressConfig(ctx)
		if err != nil {
			return err
		}
		logger.Debug("fetched tunnel config", "rules", len(cfg.Ingress))

		updated, removed, err := removeRoute(cfg, hostname)
		if err != nil {
			return err
		}

		if err := r.api.ReplaceIngressConfig(ctx, updated); err != nil {
			return err
		}
		logger.Info("tunnel config updated")

		result = &Result{Route: removed, Warning: r.cleanupDNS(ctx, logger, hostname, o.recordID)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Reconciler) cleanupDNS(ctx context.Context, logger *slog.Logger, hostname, recordID string) *Warning {
	if recordID == "" {
		id, err := r.api.FindDNSRecordID(ctx, hostname)
		var ambiguous *cloudflare.AmbiguousRecordError
		switch {
		case errors.As(err, &ambiguous):
			logger.Warn("multiple CNAME records match", "ids", ambiguous.IDs)
			return &Warning{
				Kind:     DNSRecordAmbiguous,
				Hostname: hostname,
				Message:  "several CNAME records match, none deleted",
				Hint:     "rerun with --record-id to choose one",
				Err:      err,
			}
		case err != nil:
			logger.Warn("CNAME lookup failed", "error", err)
			return &Warning{
				Kind:     DNSSyncFailed,
				Hostname: hostname,
				Message:  "CNAME lookup failed",
				Hint:     "delete the CNAME record manually",
				Err:      err,
			}
		case id == "":
			logger.Info("no CNAME record to remove")
			return &Warning{
				Kind:     DNSRecordMissing,
				Hostname: hostname,
				Message:  "CNAME record not found (skipped)",
			}
		}
		recordID = id
	}

	if err := r.api.DeleteDNSRecord(ctx, recordID); err != nil {
		logger.Warn("CNAME deletion failed", "record_id", recordID, "error", err)
		return &Warning{
			Kind:     DNSSyncFailed,
			Hostname: hostname,
			Message:  "CNAME deletion failed",
			Hint:     fmt.Sprintf("delete DNS record %s manually", recordID),
			Err:      err,
		}
	}
	logger.Info("CNAME record deleted", "record_id", recordID)
	return nil
}

// ListRoutes returns the tunnel's routes. It never touches DNS.
func (r *Reconciler) ListRoutes(ctx context.Context) (*RouteTable, error) {
	cfg, err := r.api.GetIngressConfig(ctx)
	if err != nil {
		return nil, err
	}
	return partition(cfg), nil
}

func (r *Reconciler) withLock(ctx context.Context, fn func() error) error {
	lease, err := r.locker.Acquire(ctx, lock.TunnelKey(r.api.TunnelID()))
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn("failed to release tunnel lock", "error", err)
		}
	}()
	return fn()
}
