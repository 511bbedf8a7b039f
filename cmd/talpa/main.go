package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/alekspetrov/talpa/internal/banner"
	"github.com/alekspetrov/talpa/internal/config"
	"github.com/alekspetrov/talpa/internal/credentials"
	"github.com/alekspetrov/talpa/internal/lock"
	"github.com/alekspetrov/talpa/internal/logging"
	"github.com/alekspetrov/talpa/internal/routes"
	"github.com/alekspetrov/talpa/internal/session"
)

var version = "0.1.0"

var errUnhealthy = errors.New("health checks failed")

// app carries state shared by every command of one invocation.
type app struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	ctx    context.Context
	logger *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, failStyle.Render("✗ ")+err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "talpa",
		Short:         "Cloudflare Tunnel route manager",
		Long:          `talpa adds, removes and lists the public routes of a Cloudflare Tunnel, keeping the tunnel's ingress rules and the zone's CNAME records in step.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.prepare(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ~/.talpa/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		newSetupCmd(a),
		newDigCmd(a),
		newPlugCmd(a),
		newListCmd(a),
		newVerifyCmd(a),
		newDoctorCmd(a),
		newVersionCmd(),
	)

	return rootCmd
}

func (a *app) prepare(cmd *cobra.Command) error {
	if a.configPath == "" {
		a.configPath = config.DefaultConfigPath()
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", a.configPath, err)
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := logging.Init(cfg.Logging); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a.cfg = cfg
	a.ctx = logging.ContextWithCorrelationID(ctx, uuid.NewString())
	a.logger = logging.WithContext(a.ctx).With(slog.String("command", cmd.Name()))
	a.logger.Debug("config loaded", "path", a.configPath, "credentials_backend", cfg.Credentials.Backend)
	return nil
}

// openProvider opens the configured credential store. The returned func
// releases it.
func (a *app) openProvider() (credentials.Provider, func(), error) {
	provider, err := credentials.Open(a.cfg.Credentials)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	return provider, func() { closeQuietly(a.logger, provider) }, nil
}

func (a *app) openSession() (*session.Session, error) {
	provider, release, err := a.openProvider()
	if err != nil {
		return nil, err
	}
	defer release()

	sess, err := session.Open(a.ctx, provider, session.Options{
		BaseURL:       a.cfg.API.BaseURL,
		RoutingDomain: a.cfg.API.RoutingDomain,
		Timeout:       a.cfg.API.Timeout,
		Logger:        a.logger.With(slog.String("component", "cloudflare")),
	})
	if err != nil {
		return nil, err
	}

	a.ctx = logging.ContextWithTunnel(a.ctx, sess.Credentials.TunnelID)
	a.logger = a.logger.With(slog.String("tunnel", sess.Credentials.TunnelID))
	return sess, nil
}

// openReconciler assembles the session, the optional lock and the reconciler.
func (a *app) openReconciler() (*routes.Reconciler, *session.Session, func(), error) {
	sess, err := a.openSession()
	if err != nil {
		return nil, nil, nil, err
	}

	locker, err := lock.New(a.cfg.Lock)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to set up tunnel lock: %w", err)
	}

	reconciler := routes.NewReconciler(sess.Client,
		routes.WithLocker(locker),
		routes.WithLogger(a.logger.With(slog.String("component", "routes"))),
	)
	return reconciler, sess, func() { closeQuietly(a.logger, locker) }, nil
}

func closeQuietly(logger *slog.Logger, v any) {
	c, ok := v.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn("close failed", "error", err)
	}
}

func newVersionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show talpa version",
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				banner.PrintCompact(cmd.OutOrStdout(), version)
				return
			}
			banner.PrintWithVersion(cmd.OutOrStdout(), version)
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "print only the version line")

	return cmd
}

// explain adds a remediation hint to errors the user can act on.
func explain(err error) error {
	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		return fmt.Errorf("%w (another talpa run is changing this tunnel, try again shortly)", err)
	case errors.Is(err, routes.ErrInvariantViolation):
		return fmt.Errorf("%w (fix the ingress list in the Cloudflare dashboard first)", err)
	default:
		return err
	}
}
