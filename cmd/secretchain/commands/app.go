package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/systmms/secretchain/internal/logging"
	"github.com/systmms/secretchain/pkg/secrets"
)

// App holds the root flags and builds the secret manager on first use
type App struct {
	ConfigPath string
	Debug      bool
	NoColor    bool
	Logger     *logging.Logger

	// Options are appended after the flag-derived manager options
	Options []secrets.Option

	mu      sync.Mutex
	manager *secrets.Manager
}

// Manager returns the shared manager, building it on the first call
func (a *App) Manager() (*secrets.Manager, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.manager != nil {
		return a.manager, nil
	}

	opts := []secrets.Option{secrets.WithLogger(a.logger())}
	if a.ConfigPath != "" {
		opts = append(opts, secrets.WithConfigFile(a.ConfigPath))
	}
	m, err := secrets.New(append(opts, a.Options...)...)
	if err != nil {
		return nil, err
	}
	a.manager = m
	return m, nil
}

// Close releases the manager's cached values
func (a *App) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.manager != nil {
		a.manager.Close()
	}
}

func (a *App) logger() *logging.Logger {
	if a.Logger == nil {
		a.Logger = logging.New(a.Debug, a.NoColor)
	}
	return a.Logger
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
