package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	dserrors "github.com/systmms/secretchain/internal/errors"
	"github.com/systmms/secretchain/internal/logging"
	"github.com/systmms/secretchain/pkg/secrets"
)

// addTargetFlags registers --project and --path on a CRUD command
func addTargetFlags(cmd *cobra.Command, opts *secrets.MutationOptions) {
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "Target project id (default: highest priority scope)")
	cmd.Flags().StringVar(&opts.Path, "path", "/", "Folder path inside the project")
}

// readValue returns arg, or the first line of stdin when arg is "-"
func readValue(in io.Reader, arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read value from stdin: %w", err)
	}
	value := strings.TrimRight(line, "\r\n")
	if value == "" {
		return "", dserrors.UserError{
			Message:    "No value on stdin",
			Suggestion: "Pipe the value in, for example: printf '%s' \"$VALUE\" | secretchain create KEY -",
		}
	}
	return value, nil
}

func NewCreateCommand(app *App) *cobra.Command {
	var opts secrets.MutationOptions

	cmd := &cobra.Command{
		Use:   "create KEY VALUE",
		Short: "Create a secret in the provider",
		Long: `Create a secret in the target project. Pass "-" as VALUE to read it
from stdin so it does not end up in the shell history.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := readValue(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			m, err := app.Manager()
			if err != nil {
				return err
			}
			if err := m.CreateSecret(cmd.Context(), args[0], value, opts); err != nil {
				app.logger().Debug("create %s failed: %s", args[0], logging.Redact(err.Error(), []string{value}))
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", args[0])
			return nil
		},
	}
	addTargetFlags(cmd, &opts)

	return cmd
}

func NewUpdateCommand(app *App) *cobra.Command {
	var opts secrets.MutationOptions

	cmd := &cobra.Command{
		Use:   "update KEY VALUE",
		Short: "Replace the value of a secret in the provider",
		Long: `Replace the value of an existing secret. The cached value, if any, is
dropped. Pass "-" as VALUE to read it from stdin.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := readValue(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			m, err := app.Manager()
			if err != nil {
				return err
			}
			if err := m.UpdateSecret(cmd.Context(), args[0], value, opts); err != nil {
				app.logger().Debug("update %s failed: %s", args[0], logging.Redact(err.Error(), []string{value}))
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", args[0])
			return nil
		},
	}
	addTargetFlags(cmd, &opts)

	return cmd
}

func NewDeleteCommand(app *App) *cobra.Command {
	var opts secrets.MutationOptions

	cmd := &cobra.Command{
		Use:   "delete KEY",
		Short: "Delete a secret from the provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.Manager()
			if err != nil {
				return err
			}
			if err := m.DeleteSecret(cmd.Context(), args[0], opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
	addTargetFlags(cmd, &opts)

	return cmd
}

func NewListCommand(app *App) *cobra.Command {
	var (
		opts       secrets.MutationOptions
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List secret names in a project folder",
		Long:  `List the secrets in one folder of the target project. Values are never printed.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.Manager()
			if err != nil {
				return err
			}
			list, err := m.ListSecrets(cmd.Context(), opts)
			if err != nil {
				return err
			}

			if jsonOutput {
				type entry struct {
					Name      string     `json:"name"`
					Version   string     `json:"version,omitempty"`
					UpdatedAt *time.Time `json:"updated_at,omitempty"`
				}
				entries := make([]entry, 0, len(list))
				for _, s := range list {
					e := entry{Name: s.Name, Version: s.Version}
					if !s.UpdatedAt.IsZero() {
						updated := s.UpdatedAt
						e.UpdatedAt = &updated
					}
					entries = append(entries, e)
				}
				return writeJSON(cmd.OutOrStdout(), entries)
			}

			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No secrets found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tVERSION\tUPDATED")
			fmt.Fprintln(w, "----\t-------\t-------")
			for _, s := range list {
				updated := "-"
				if !s.UpdatedAt.IsZero() {
					updated = s.UpdatedAt.Format(time.RFC3339)
				}
				version := s.Version
				if version == "" {
					version = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, version, updated)
			}
			return w.Flush()
		},
	}
	addTargetFlags(cmd, &opts)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}
