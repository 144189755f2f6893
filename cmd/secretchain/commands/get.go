package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/systmms/secretchain/internal/logging"
	"github.com/systmms/secretchain/pkg/secrets"
)

func NewGetCommand(app *App) *cobra.Command {
	var (
		path       string
		noCache    bool
		required   bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Resolve a single secret",
		Long: `Resolve one secret through the configured scopes, then the environment.

By default only the raw value is printed, which suits scripting. An absent
secret prints nothing unless --required is set, in which case the command
fails and lists every source that was checked.

Examples:
  # Print a value
  secretchain get DATABASE_URL

  # Fail when the secret is missing
  export DB_URL=$(secretchain get DATABASE_URL --required)

  # Show where the value came from
  secretchain get API_KEY --path /payments --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.Manager()
			if err != nil {
				return err
			}

			opts := []secrets.GetOption{secrets.WithPath(path)}
			if noCache {
				opts = append(opts, secrets.WithNoCache())
			}

			out, err := m.Lookup(cmd.Context(), args[0], opts...)
			if err != nil {
				return err
			}
			if !out.Found && required {
				return out.MissingError()
			}
			if out.Found {
				app.logger().Debug("%s = %v (source: %s, cached: %t)", out.Key, logging.Secret(out.Value), out.Source, out.Cached)
			}

			if jsonOutput {
				output := map[string]interface{}{
					"key":     out.Key,
					"found":   out.Found,
					"checked": out.Checked(),
				}
				if out.Found {
					output["value"] = out.Value
					output["source"] = out.Source
					output["cached"] = out.Cached
				}
				if failures := out.Failures(); len(failures) > 0 {
					output["failures"] = failures
				}
				return writeJSON(cmd.OutOrStdout(), output)
			}

			if out.Found {
				fmt.Fprint(cmd.OutOrStdout(), out.Value)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "/", "Folder path inside each scope")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Skip the cache read")
	cmd.Flags().BoolVar(&required, "required", false, "Fail when the secret is absent")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format with metadata")

	return cmd
}

func NewGetManyCommand(app *App) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "get-many KEY...",
		Short: "Resolve several secrets concurrently",
		Long: `Resolve several secrets at once and print them as KEY=value lines.

Absent secrets are omitted from the line output and reported as a warning.
With --json every requested key is present; absent ones are null.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.Manager()
			if err != nil {
				return err
			}

			values := m.GetSecrets(cmd.Context(), args)
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), values)
			}

			keys := make([]string, 0, len(values))
			for key := range values {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			var missing []string
			for _, key := range keys {
				if values[key] == nil {
					missing = append(missing, key)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", key, *values[key])
			}
			if len(missing) > 0 {
				app.logger().Warn("not found: %v", missing)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}
