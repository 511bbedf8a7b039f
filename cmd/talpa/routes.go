package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alekspetrov/talpa/internal/routes"
)

func newDigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "dig <hostname> <service>",
		Aliases: []string{"add"},
		Short:   "Dig a new tunnel route and its CNAME record",
		Example: `  talpa dig app.example.com http://localhost:8080`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hostname, service := args[0], args[1]

			reconciler, _, release, err := a.openReconciler()
			if err != nil {
				return err
			}
			defer release()

			result, err := reconciler.AddRoute(a.ctx, hostname, service)
			if err != nil {
				return explain(err)
			}

			w := cmd.OutOrStdout()
			printStep(w, "Updating tunnel config...")
			if result.Warning != nil {
				printWarning(w, result.Warning)
			} else {
				printStep(w, "Creating CNAME...")
			}

			fmt.Fprintf(w, "\n%s %s → %s\n", successStyle.Render("✓"), boldStyle.Render(hostname), service)
			return nil
		},
	}
}

func newPlugCmd(a *app) *cobra.Command {
	var recordID string

	cmd := &cobra.Command{
		Use:     "plug <hostname>",
		Aliases: []string{"rm", "remove"},
		Short:   "Plug (remove) a tunnel route and its CNAME record",
		Example: `  talpa plug app.example.com
  talpa plug app.example.com --record-id 372e67954025e0ba6aaa6d586b9e0b59`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hostname := args[0]

			reconciler, _, release, err := a.openReconciler()
			if err != nil {
				return err
			}
			defer release()

			var opts []routes.RemoveOption
			if recordID != "" {
				opts = append(opts, routes.WithRecordID(recordID))
			}

			result, err := reconciler.RemoveRoute(a.ctx, hostname, opts...)
			if err != nil {
				return explain(err)
			}

			w := cmd.OutOrStdout()
			printStep(w, "Updating tunnel config...")
			if result.Warning != nil {
				printWarning(w, result.Warning)
			} else {
				printStep(w, "Removing CNAME...")
			}

			fmt.Fprintf(w, "\n%s Removed: %s\n", successStyle.Render("✓"), boldStyle.Render(hostname))
			return nil
		},
	}

	cmd.Flags().StringVar(&recordID, "record-id", "", "DNS record to delete instead of looking one up by name")

	return cmd
}

// routeListing is the --json shape of `talpa list`.
type routeListing struct {
	TunnelID string         `json:"tunnel_id"`
	Routes   []routes.Route `json:"routes"`
	CatchAll string         `json:"catch_all,omitempty"`
	Total    int            `json:"total"`
}

func newListCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all active routes",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reconciler, sess, release, err := a.openReconciler()
			if err != nil {
				return err
			}
			defer release()

			table, err := reconciler.ListRoutes(a.ctx)
			if err != nil {
				return explain(err)
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(routeListing{
					TunnelID: sess.Credentials.TunnelID,
					Routes:   table.Routes,
					CatchAll: table.CatchAll,
					Total:    len(table.Routes),
				})
			}

			fmt.Fprintln(w)
			fmt.Fprintln(w, titleStyle.Render("Tunnel Routes"))
			fmt.Fprintf(w, "  Tunnel: %s\n\n", dimStyle.Render(sess.Credentials.TunnelID))

			for _, route := range table.Routes {
				fmt.Fprintf(w, "  %s → %s\n",
					valueStyle.Render(fmt.Sprintf("%-40s", route.Hostname)),
					successStyle.Render(route.Service))
			}
			if table.CatchAll != "" {
				fmt.Fprintf(w, "  %s → %s\n",
					dimStyle.Render(fmt.Sprintf("%-40s", "* (catch-all)")),
					dimStyle.Render(table.CatchAll))
			}

			fmt.Fprintf(w, "\n  Total: %s route(s)\n\n", boldStyle.Render(fmt.Sprint(len(table.Routes))))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print routes as JSON")

	return cmd
}
