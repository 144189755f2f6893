package secrets

import (
	"sync"

	"github.com/systmms/secretchain/internal/config"
	"github.com/systmms/secretchain/internal/logging"
)

var (
	defaultOnce    sync.Once
	defaultManager *Manager
)

// Default returns the process-wide Manager, built from the environment on
// first use. An invalid configuration is logged and the default manager runs
// in environment-only mode.
func Default() *Manager {
	defaultOnce.Do(func() {
		m, err := New()
		if err != nil {
			logging.New(false, true).Warn("secret manager configuration invalid, using environment variables only: %v", err)
			cfg := config.Default()
			cfg.Backend = config.BackendNone
			m, _ = New(WithConfig(cfg))
		}
		defaultManager = m
	})
	return defaultManager
}
