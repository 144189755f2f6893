package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/secretchain/internal/config"
	"github.com/systmms/secretchain/pkg/provider"
	"github.com/systmms/secretchain/pkg/secrets"
	"github.com/systmms/secretchain/tests/testutil"
)

var testScopes = []config.Scope{
	{ID: "proj-a", Name: "project"},
	{ID: "proj-b", Name: "shared"},
}

// newTestApp builds an App whose manager uses client (nil for none), an
// in-memory environment and the given scopes.
func newTestApp(t *testing.T, client provider.Client, env map[string]string, scopes []config.Scope) (*App, *testutil.TestLogger) {
	t.Helper()

	cfg := config.Default()
	cfg.Scopes = scopes
	cfg.RetryDelay = time.Millisecond

	logs := testutil.NewTestLogger(t, false)
	opts := []secrets.Option{
		secrets.WithConfig(cfg),
		secrets.WithLookupEnv(testutil.NewFakeEnv(env).Lookup),
	}
	if client != nil {
		opts = append(opts, secrets.WithClient(client))
	}

	app := &App{Logger: logs.Logger(), Options: opts}
	t.Cleanup(app.Close)
	return app, logs
}

// execute runs cmd with args and stdin and returns what it wrote to stdout
func execute(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	err := cmd.Execute()
	return out.String(), err
}
