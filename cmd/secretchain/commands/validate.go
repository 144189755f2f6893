package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	dserrors "github.com/systmms/secretchain/internal/errors"
	"github.com/systmms/secretchain/pkg/secrets"
)

func NewValidateCommand(app *App) *cobra.Command {
	var (
		jsonOutput bool
		common     bool
	)

	cmd := &cobra.Command{
		Use:   "validate [KEY...]",
		Short: "Check that required secrets resolve",
		Long: `Resolve every named secret and fail when any of them is missing.

Values are never printed. Use it as a deployment preflight check:

  secretchain validate DATABASE_URL JWT_SECRET
  secretchain validate --common`,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := append([]string(nil), args...)
			if common {
				keys = append(keys, secrets.CommonSecretKeys...)
			}
			if len(keys) == 0 {
				return dserrors.UserError{
					Message:    "No secrets to validate",
					Suggestion: "Pass secret names as arguments or use --common",
				}
			}

			m, err := app.Manager()
			if err != nil {
				return err
			}

			report := m.ValidateRequiredSecrets(cmd.Context(), keys)
			if jsonOutput {
				if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				for _, key := range report.Present {
					fmt.Fprintf(out, "✓ %s\n", key)
				}
				for _, key := range report.Missing {
					fmt.Fprintf(out, "✗ %s\n", key)
				}
			}

			if !report.Valid {
				return dserrors.UserError{
					Message:    fmt.Sprintf("%d required secret(s) missing: %s", len(report.Missing), strings.Join(report.Missing, ", ")),
					Suggestion: "Define them in one of the configured scopes or export them as environment variables",
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report in JSON format")
	cmd.Flags().BoolVar(&common, "common", false, "Also validate the well-known application secrets")

	return cmd
}
