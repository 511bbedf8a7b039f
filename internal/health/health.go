// Package health runs the diagnostics behind `talpa doctor`.
package health

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/alekspetrov/talpa/internal/cloudflare"
	"github.com/alekspetrov/talpa/internal/config"
	"github.com/alekspetrov/talpa/internal/credentials"
	"github.com/alekspetrov/talpa/internal/lock"
	"github.com/alekspetrov/talpa/internal/routes"
	"github.com/alekspetrov/talpa/internal/session"
)

// Status represents a check result
type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusError
	StatusDisabled
)

// Check represents a health check result
type Check struct {
	Name    string
	Status  Status
	Message string
	Fix     string
}

// Report contains all health check results in the order they ran.
type Report struct {
	Checks []Check
}

// Summary counts errors and warnings.
func (r *Report) Summary() (errors, warnings int) {
	for _, c := range r.Checks {
		switch c.Status {
		case StatusError:
			errors++
		case StatusWarning:
			warnings++
		}
	}
	return errors, warnings
}

// Healthy reports whether no check failed.
func (r *Report) Healthy() bool {
	errs, _ := r.Summary()
	return errs == 0
}

func (r *Report) add(c Check) {
	r.Checks = append(r.Checks, c)
}

// skip records checks that could not run because an earlier one failed.
func (r *Report) skip(names ...string) {
	for _, name := range names {
		r.add(Check{Name: name, Status: StatusDisabled, Message: "skipped"})
	}
}

// Options describe what a run inspects.
type Options struct {
	ConfigPath string
	Config     *config.Config
	Session    session.Options
}

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// Run performs all checks. Later checks are disabled when the ones they
// depend on fail. It never changes remote state.
func Run(ctx context.Context, opts Options) *Report {
	report := &Report{}
	cfg := opts.Config

	report.add(checkConfigFile(opts.ConfigPath))

	if cfg.Credentials.Backend == credentials.BackendKeychain {
		report.add(checkCommand("security", "macOS Keychain CLI",
			"set credentials.backend to sqlite in the config file"))
	}

	provider, err := credentials.Open(cfg.Credentials)
	if err != nil {
		report.add(Check{Name: "credential store", Status: StatusError, Message: err.Error(),
			Fix: "check the credentials section of the config file"})
		report.skip("credentials", "cloudflare api", "ingress rules")
		return withLock(ctx, report, cfg)
	}
	defer func() {
		if c, ok := provider.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}()
	report.add(Check{Name: "credential store", Status: StatusOK, Message: cfg.Credentials.Backend})

	creds, err := session.Load(ctx, provider)
	if err != nil {
		report.add(Check{Name: "credentials", Status: StatusError, Message: err.Error(), Fix: "run `talpa setup`"})
		report.skip("cloudflare api", "ingress rules")
		return withLock(ctx, report, cfg)
	}
	report.add(Check{Name: "credentials", Status: StatusOK,
		Message: fmt.Sprintf("tunnel %s", creds.TunnelID)})

	client := session.New(creds, opts.Session).Client
	if err := client.VerifyConnection(ctx); err != nil {
		report.add(Check{Name: "cloudflare api", Status: StatusError, Message: err.Error(),
			Fix: apiFix(err)})
		report.skip("ingress rules")
		return withLock(ctx, report, cfg)
	}
	report.add(Check{Name: "cloudflare api", Status: StatusOK, Message: "zone reachable"})

	report.add(checkIngress(ctx, client))
	return withLock(ctx, report, cfg)
}

func withLock(ctx context.Context, report *Report, cfg *config.Config) *Report {
	report.add(checkLock(ctx, cfg.Lock))
	return report
}

func checkConfigFile(path string) Check {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Check{Name: "config file", Status: StatusWarning,
				Message: "not found, using defaults",
				Fix:     "run `talpa setup --backend <backend>` to write one"}
		}
		return Check{Name: "config file", Status: StatusError, Message: err.Error()}
	}
	return Check{Name: "config file", Status: StatusOK, Message: path}
}

func checkCommand(name, desc, fix string) Check {
	if _, err := lookPath(name); err != nil {
		return Check{Name: name, Status: StatusError, Message: desc + " not found", Fix: fix}
	}
	return Check{Name: name, Status: StatusOK, Message: "installed"}
}

func checkIngress(ctx context.Context, client *cloudflare.Client) Check {
	cfg, err := client.GetIngressConfig(ctx)
	if err != nil {
		return Check{Name: "ingress rules", Status: StatusError, Message: err.Error(),
			Fix: "check that the tunnel is remotely managed and the token can read its configuration"}
	}
	if err := routes.Inspect(cfg); err != nil {
		return Check{Name: "ingress rules", Status: StatusError,
			Message: strings.ReplaceAll(err.Error(), "\n", "; "),
			Fix:     "fix the ingress list in the Cloudflare dashboard; talpa refuses to edit it until then"}
	}
	return Check{Name: "ingress rules", Status: StatusOK,
		Message: fmt.Sprintf("%d route(s) + catch-all", len(cfg.Ingress)-1)}
}

func checkLock(ctx context.Context, cfg *lock.Config) Check {
	if cfg == nil || cfg.RedisURL == "" {
		return Check{Name: "tunnel lock", Status: StatusDisabled, Message: "disabled (last writer wins)"}
	}

	locker, err := lock.New(cfg)
	if err != nil {
		return Check{Name: "tunnel lock", Status: StatusError, Message: err.Error(), Fix: "check lock.redis_url"}
	}
	if c, ok := locker.(interface{ Close() error }); ok {
		defer func() { _ = c.Close() }()
	}

	if p, ok := locker.(lock.Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return Check{Name: "tunnel lock", Status: StatusError, Message: err.Error(),
				Fix: "start redis or clear lock.redis_url"}
		}
	}
	return Check{Name: "tunnel lock", Status: StatusOK, Message: "redis reachable"}
}

func apiFix(err error) string {
	var apiErr *cloudflare.APIError
	if errors.As(err, &apiErr) && (apiErr.Status == 401 || apiErr.Status == 403) {
		return "create a token with Zone:DNS:Edit and Account:Cloudflare Tunnel:Edit, then run `talpa setup`"
	}
	var transportErr *cloudflare.TransportError
	if errors.As(err, &transportErr) {
		return "check network access to api.base_url"
	}
	return "check the zone ID with `talpa setup`"
}


// Symbol returns the symbol for a status
func (s Status) Symbol() string {
	switch s {
	case StatusOK:
		return "✓"
	case StatusWarning:
		return "○"
	case StatusError:
		return "✗"
	case StatusDisabled:
		return "·"
	default:
		return "?"
	}
}

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarning:
		return "warning"
	case StatusError:
		return "error"
	case StatusDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}
