package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the stored credentials against the Cloudflare API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.openSession()
			if err != nil {
				return err
			}

			if err := sess.Client.VerifyConnection(a.ctx); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			printStep(w, "Verifying...")
			fmt.Fprintf(w, "    %s %s\n", labelStyle.Render("Zone:  "), dimStyle.Render(sess.Credentials.ZoneID))
			fmt.Fprintf(w, "    %s %s\n", labelStyle.Render("Tunnel:"), dimStyle.Render(sess.Credentials.TunnelID))
			return nil
		},
	}
}
