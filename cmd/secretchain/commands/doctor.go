package commands

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/secretchain/internal/bootstrap"
	"github.com/systmms/secretchain/pkg/secrets"
)

func NewDoctorCommand(app *App) *cobra.Command {
	var (
		jsonOutput bool
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and provider connectivity",
		Long: `Verify that secretchain is configured and can reach its provider.

This command checks:
- Configuration validity (file and environment)
- The scope order used for resolution
- Provider authentication
- Cache settings

A provider that cannot authenticate is reported but does not fail the
command: resolution still falls back to environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.Manager()
			if err != nil {
				app.logger().Error("Configuration error: %v", err)
				return err
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			initErr := m.Initialize(ctx)

			st := m.Status()
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), st)
			}
			return printStatus(cmd, st, initErr)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Upper bound for the provider handshake")

	return cmd
}

func printStatus(cmd *cobra.Command, st secrets.Status, initErr error) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Backend:      %s\n", st.Backend)
	fmt.Fprintf(out, "Environment:  %s\n", st.Environment)
	fmt.Fprintf(out, "Cache:        %s\n", cacheSummary(st))
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRIORITY\tSCOPE\tPROJECT")
	fmt.Fprintln(w, "--------\t-----\t-------")
	for i, scope := range st.Scopes {
		fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, scope.Name, scope.ID)
	}
	fmt.Fprintf(w, "%d\t%s\t%s\n", len(st.Scopes)+1, "env", "process environment")
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(out)

	switch {
	case errors.Is(initErr, bootstrap.ErrProviderDisabled):
		fmt.Fprintln(out, "Provider:     ⚠ not configured, environment variables only")
	case initErr != nil:
		fmt.Fprintf(out, "Provider:     ✗ %v\n", initErr)
		fmt.Fprintln(out, "              Resolution falls back to environment variables")
	default:
		fmt.Fprintln(out, "Provider:     ✓ authenticated")
	}

	if len(st.Scopes) == 0 {
		fmt.Fprintln(out, "\n💡 No scopes configured. Set INFISICAL_PROJECT_ID or add scopes to the config file")
	}
	return nil
}

func cacheSummary(st secrets.Status) string {
	if !st.CacheEnabled {
		return "disabled"
	}
	return fmt.Sprintf("enabled, %d entries", st.Cache.Size)
}
