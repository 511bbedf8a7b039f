package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/alekspetrov/talpa/internal/health"
	"github.com/alekspetrov/talpa/internal/session"
)

func newDoctorCmd(a *app) *cobra.Command {
	var showFixes bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, credentials and the tunnel's ingress rules",
		Long: `Run read-only health checks on the config file, the credential store,
the Cloudflare API, the tunnel's ingress list and the optional tunnel lock.

Examples:
  talpa doctor          # Run all checks
  talpa doctor --fix    # Show how to fix each problem`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report := health.Run(a.ctx, health.Options{
				ConfigPath: a.configPath,
				Config:     a.cfg,
				Session: session.Options{
					BaseURL:       a.cfg.API.BaseURL,
					RoutingDomain: a.cfg.API.RoutingDomain,
					Timeout:       a.cfg.API.Timeout,
					Logger:        a.logger.With(slog.String("component", "cloudflare")),
				},
			})

			w := cmd.OutOrStdout()
			fmt.Fprintln(w)
			fmt.Fprintln(w, titleStyle.Render("talpa Health Check"))
			fmt.Fprintln(w)

			for _, c := range report.Checks {
				fmt.Fprintf(w, "  %s %-18s %s\n", statusSymbol(c.Status), c.Name, c.Message)
				if showFixes && c.Fix != "" && c.Status != health.StatusOK {
					fmt.Fprintf(w, "                       %s %s\n", dimStyle.Render("→"), c.Fix)
				}
			}
			fmt.Fprintln(w)

			errs, warnings := report.Summary()
			switch {
			case errs == 0 && warnings == 0:
				fmt.Fprintln(w, successStyle.Render("✓ All checks passed"))
			case errs == 0:
				fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("✓ Ready (%d warning(s))", warnings)))
			default:
				fmt.Fprintln(w, failStyle.Render(fmt.Sprintf("✗ %d problem(s), %d warning(s)", errs, warnings)))
				if !showFixes {
					fmt.Fprintln(w, dimStyle.Render("  Run 'talpa doctor --fix' for suggestions"))
				}
			}
			fmt.Fprintln(w)

			if !report.Healthy() {
				return errUnhealthy
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showFixes, "fix", false, "show fix suggestions")

	return cmd
}

func statusSymbol(s health.Status) string {
	switch s {
	case health.StatusOK:
		return successStyle.Render(s.Symbol())
	case health.StatusWarning:
		return warnStyle.Render(s.Symbol())
	case health.StatusError:
		return failStyle.Render(s.Symbol())
	default:
		return dimStyle.Render(s.Symbol())
	}
}
