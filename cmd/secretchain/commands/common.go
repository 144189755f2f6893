package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/secretchain/pkg/secrets"
)

func NewCommonCommand(app *App) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "common",
		Short: "Show which well-known application secrets resolve",
		Long: `Resolve the well-known application secrets (database, API and Redis
settings) and show which of them are set. Values are never printed.

When DATABASE_URL is set, the database host, port, name and user are derived
from it if they are not defined on their own.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.Manager()
			if err != nil {
				return err
			}

			common, err := m.LoadCommonSecrets(cmd.Context())
			if err != nil {
				return err
			}

			present := common.Present()
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"present":       present,
					"database_host": common.Database.Host,
					"database_port": common.Database.Port,
					"database_name": common.Database.Name,
				})
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SECRET\tSTATUS")
			fmt.Fprintln(w, "------\t------")
			for _, key := range secrets.CommonSecretKeys {
				status := "missing"
				if present[key] {
					status = "set"
				}
				fmt.Fprintf(w, "%s\t%s\n", key, status)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if common.Database.Host != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\nDatabase: %s:%s/%s\n",
					common.Database.Host, common.Database.Port, common.Database.Name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}
