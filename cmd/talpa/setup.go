package main

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/alekspetrov/talpa/internal/cloudflare"
	"github.com/alekspetrov/talpa/internal/config"
	"github.com/alekspetrov/talpa/internal/credentials"
	"github.com/alekspetrov/talpa/internal/session"
)

var errSetupAborted = errors.New("setup aborted")

func newSetupCmd(a *app) *cobra.Command {
	var (
		creds   cloudflare.Credentials
		backend string
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Store Cloudflare credentials and verify them",
		Long: `Store the account ID, zone ID, tunnel ID and API token talpa works with.

Without flags an interactive form asks for each value. When all four flags
are given the form is skipped.`,
		Example: `  talpa setup
  talpa setup --account-id ACC --zone-id ZONE --tunnel-id TUNNEL --api-token TOKEN`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()

			if backend != "" {
				a.cfg.Credentials.Backend = backend
				if err := a.cfg.Validate(); err != nil {
					return err
				}
			}

			if creds.AccountID == "" || creds.ZoneID == "" || creds.TunnelID == "" || creds.APIToken == "" {
				model := newSetupModel(creds)
				model.backend = a.cfg.Credentials.Backend
				model.service = a.cfg.Credentials.Service

				p := tea.NewProgram(model, tea.WithInput(cmd.InOrStdin()), tea.WithOutput(cmd.ErrOrStderr()))
				final, err := p.Run()
				if err != nil {
					return fmt.Errorf("setup form failed: %w", err)
				}
				m := final.(*setupModel)
				if m.aborted {
					return errSetupAborted
				}
				creds = m.Credentials()
			}

			provider, release, err := a.openProvider()
			if err != nil {
				return err
			}
			defer release()

			if err := session.Save(a.ctx, provider, creds); err != nil {
				return err
			}
			printStep(w, fmt.Sprintf("Saving to %s...", a.cfg.Credentials.Backend))

			if backend != "" {
				if err := config.Save(a.cfg, a.configPath); err != nil {
					return err
				}
				printStep(w, fmt.Sprintf("Writing %s...", a.configPath))
			}

			// Verification failure is reported, not returned: the
			// credentials are stored either way.
			sess, err := session.Open(a.ctx, provider, session.Options{
				BaseURL:       a.cfg.API.BaseURL,
				RoutingDomain: a.cfg.API.RoutingDomain,
				Timeout:       a.cfg.API.Timeout,
				Logger:        a.logger,
			})
			if err == nil {
				err = sess.Client.VerifyConnection(a.ctx)
			}
			if err != nil {
				a.logger.Warn("credential verification failed", "error", err)
				fmt.Fprintf(w, "  %s Verifying... %s\n", dimStyle.Render("→"), failStyle.Render("failed"))
				fmt.Fprintf(w, "    %v\n", err)
				fmt.Fprintf(w, "    %s\n", dimStyle.Render("Check your credentials and try again"))
				return nil
			}
			printStep(w, "Verifying...")

			fmt.Fprintf(w, "\n%s Setup complete!\n\n", successStyle.Render("✓"))
			fmt.Fprintln(w, "  You can now use:")
			fmt.Fprintf(w, "    %s talpa dig app.example.com http://localhost:8080\n", dimStyle.Render("$"))
			fmt.Fprintf(w, "    %s talpa list\n", dimStyle.Render("$"))
			fmt.Fprintf(w, "    %s talpa plug app.example.com\n\n", dimStyle.Render("$"))
			return nil
		},
	}

	cmd.Flags().StringVar(&creds.AccountID, "account-id", "", "Cloudflare account ID")
	cmd.Flags().StringVar(&creds.ZoneID, "zone-id", "", "Cloudflare zone ID")
	cmd.Flags().StringVar(&creds.TunnelID, "tunnel-id", "", "Cloudflare tunnel ID")
	cmd.Flags().StringVar(&creds.APIToken, "api-token", "", "Cloudflare API token")
	cmd.Flags().StringVar(&backend, "backend", "",
		fmt.Sprintf("credential store to use and remember (%s, %s, %s)",
			credentials.BackendKeychain, credentials.BackendSQLite, credentials.BackendEnv))

	return cmd
}
