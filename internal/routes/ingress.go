package routes

import (
	"errors"
	"fmt"

	"github.com/alekspetrov/talpa/internal/cloudflare"
)

// insertRoute returns a copy of cfg with route placed immediately before the
// catch-all. cfg itself is not modified.
func insertRoute(cfg *cloudflare.TunnelConfig, route Route) (*cloudflare.TunnelConfig, error) {
	for _, rule := range cfg.Ingress {
		if !rule.IsCatchAll() && rule.Hostname == route.Hostname {
			return nil, fmt.Errorf("%s already exists in tunnel config: %w", route.Hostname, ErrDuplicateRoute)
		}
	}

	n := len(cfg.Ingress)
	if n == 0 {
		return nil, fmt.Errorf("%w: no catch-all rule found", ErrInvariantViolation)
	}
	catchAll := cfg.Ingress[n-1]
	if !catchAll.IsCatchAll() {
		return nil, fmt.Errorf("%w: last rule %q is not a catch-all", ErrInvariantViolation, catchAll.Hostname)
	}

	out := &cloudflare.TunnelConfig{
		Ingress: make([]cloudflare.IngressRule, 0, n+1),
		Extra:   cfg.Extra,
	}
	out.Ingress = append(out.Ingress, cfg.Ingress[:n-1]...)
	out.Ingress = append(out.Ingress, cloudflare.IngressRule{Hostname: route.Hostname, Service: route.Service})
	out.Ingress = append(out.Ingress, catchAll)
	return out, nil
}

// removeRoute returns a copy of cfg without any rule for hostname, and the
// first rule removed.
func removeRoute(cfg *cloudflare.TunnelConfig, hostname string) (*cloudflare.TunnelConfig, Route, error) {
	out := &cloudflare.TunnelConfig{
		Ingress: make([]cloudflare.IngressRule, 0, len(cfg.Ingress)),
		Extra:   cfg.Extra,
	}

	var removed *Route
	for _, rule := range cfg.Ingress {
		if !rule.IsCatchAll() && rule.Hostname == hostname {
			if removed == nil {
				removed = &Route{Hostname: rule.Hostname, Service: rule.Service}
			}
			continue
		}
		out.Ingress = append(out.Ingress, rule)
	}

	if removed == nil {
		return nil, Route{}, fmt.Errorf("%s not found in tunnel config: %w", hostname, ErrRouteNotFound)
	}
	return out, *removed, nil
}

func partition(cfg *cloudflare.TunnelConfig) *RouteTable {
	table := &RouteTable{Routes: []Route{}}
	for _, rule := range cfg.Ingress {
		if rule.IsCatchAll() {
			table.CatchAll = rule.Service
			continue
		}
		table.Routes = append(table.Routes, Route{Hostname: rule.Hostname, Service: rule.Service})
	}
	return table
}

// Inspect reports every way cfg breaks the ingress invariants: it must be
// non-empty, end with the only catch-all, and name each hostname once.
func Inspect(cfg *cloudflare.TunnelConfig) error {
	n := len(cfg.Ingress)
	if n == 0 {
		return fmt.Errorf("%w: ingress list is empty", ErrInvariantViolation)
	}

	var problems []error
	if last := cfg.Ingress[n-1]; !last.IsCatchAll() {
		problems = append(problems, fmt.Errorf("%w: last rule %q is not a catch-all", ErrInvariantViolation, last.Hostname))
	}

	seen := make(map[string]bool, n)
	for i, rule := range cfg.Ingress {
		if rule.IsCatchAll() {
			if i != n-1 {
				problems = append(problems, fmt.Errorf("%w: catch-all at position %d shadows later rules", ErrInvariantViolation, i+1))
			}
			continue
		}
		if seen[rule.Hostname] {
			problems = append(problems, fmt.Errorf("%w: %s appears more than once", ErrInvariantViolation, rule.Hostname))
		}
		seen[rule.Hostname] = true
	}

	return errors.Join(problems...)
}
