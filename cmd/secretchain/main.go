package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/secretchain/cmd/secretchain/commands"
	dserrors "github.com/systmms/secretchain/internal/errors"
	"github.com/systmms/secretchain/internal/logging"
	"github.com/systmms/secretchain/internal/secure"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", dserrors.SimplifyError(err))
		os.Exit(1)
	}
}

func run() error {
	defer secure.Purge()

	app := &commands.App{}
	defer app.Close()

	rootCmd := &cobra.Command{
		Use:   "secretchain",
		Short: "Resolve secrets through prioritized secret store scopes",
		Long: `secretchain resolves secrets by asking each configured scope of a remote
secret store in priority order, then falling back to environment variables.

Without credentials it runs in environment-only mode.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			app.Logger = logging.New(app.Debug, app.NoColor)
		},
	}

	rootCmd.PersistentFlags().StringVar(&app.ConfigPath, "config", "", "Config file path (optional)")
	rootCmd.PersistentFlags().BoolVar(&app.NoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&app.Debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewGetCommand(app),
		commands.NewGetManyCommand(app),
		commands.NewValidateCommand(app),
		commands.NewCommonCommand(app),
		commands.NewCreateCommand(app),
		commands.NewUpdateCommand(app),
		commands.NewDeleteCommand(app),
		commands.NewListCommand(app),
		commands.NewLoginCommand(app),
		commands.NewDoctorCommand(app),
	)

	return rootCmd.Execute()
}
