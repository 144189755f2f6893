package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/secretchain/internal/config"
	dserrors "github.com/systmms/secretchain/internal/errors"
)

func NewLoginCommand(app *App) *cobra.Command {
	var (
		clientID string
		remove   bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the machine identity client secret in the OS keyring",
		Long: `Store an Infisical machine identity client secret in the OS keyring so it
does not have to live in the environment or a config file.

The secret is read from stdin. Later runs pick it up whenever
INFISICAL_CLIENT_ID is set and INFISICAL_CLIENT_SECRET is not.

Examples:
  printf '%s' "$CLIENT_SECRET" | secretchain login --client-id 0b8f...
  secretchain login --client-id 0b8f... --delete`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if clientID == "" {
				clientID = os.Getenv(config.EnvClientID)
			}
			if clientID == "" {
				return dserrors.UserError{
					Message:    "Client id is required",
					Suggestion: "Use --client-id or set " + config.EnvClientID,
				}
			}

			if remove {
				if err := config.DeleteClientSecret(clientID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed stored client secret for %s\n", clientID)
				return nil
			}

			secret, err := readValue(cmd.InOrStdin(), "-")
			if err != nil {
				return err
			}
			if err := config.StoreClientSecret(clientID, secret); err != nil {
				return dserrors.UserError{
					Message:    "Failed to store client secret",
					Details:    err.Error(),
					Suggestion: "Make sure an OS keyring (Keychain, Secret Service, Credential Manager) is available",
					Err:        err,
				}
			}
			app.logger().Info("Stored client secret for %s in the OS keyring", clientID)
			fmt.Fprintf(cmd.OutOrStdout(), "Stored client secret for %s\n", clientID)
			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "Machine identity client id (default: $INFISICAL_CLIENT_ID)")
	cmd.Flags().BoolVar(&remove, "delete", false, "Remove the stored secret instead")

	return cmd
}
