package secrets

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/systmms/secretchain/internal/config"
	"github.com/systmms/secretchain/internal/logging"
	"github.com/systmms/secretchain/internal/providers"
	"github.com/systmms/secretchain/pkg/provider"
)

// Option configures a Manager
type Option func(*managerOptions)

type managerOptions struct {
	config      *config.ResolverConfig
	configPath  string
	skipKeyring bool
	client      provider.Client
	registry    *providers.Registry
	lookupEnv   func(string) (string, bool)
	logger      *logging.Logger
	registerer  prometheus.Registerer
	clock       func() time.Time
}

// WithConfig uses cfg as is instead of loading configuration from the
// environment. cfg is normalized first.
func WithConfig(cfg config.ResolverConfig) Option {
	return func(o *managerOptions) {
		o.config = &cfg
	}
}

// WithConfigFile loads a YAML config file before applying environment overrides
func WithConfigFile(path string) Option {
	return func(o *managerOptions) {
		o.configPath = path
	}
}

// WithoutKeyring disables the OS keyring fallback for the client secret
func WithoutKeyring() Option {
	return func(o *managerOptions) {
		o.skipKeyring = true
	}
}

// WithClient injects a provider client. The provider is then treated as
// configured regardless of the credentials in the config.
func WithClient(c provider.Client) Option {
	return func(o *managerOptions) {
		o.client = c
	}
}

// WithRegistry replaces the registry used to build the provider client
func WithRegistry(r *providers.Registry) Option {
	return func(o *managerOptions) {
		o.registry = r
	}
}

// WithLookupEnv replaces os.LookupEnv for both configuration and the
// environment fallback
func WithLookupEnv(lookup func(string) (string, bool)) Option {
	return func(o *managerOptions) {
		o.lookupEnv = lookup
	}
}

// WithEnv is WithLookupEnv over a fixed map
func WithEnv(env map[string]string) Option {
	return WithLookupEnv(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
}

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(o *managerOptions) {
		o.logger = l
	}
}

// WithRegisterer enables Prometheus metrics on reg
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *managerOptions) {
		o.registerer = reg
	}
}

// WithClock replaces the cache clock
func WithClock(now func() time.Time) Option {
	return func(o *managerOptions) {
		o.clock = now
	}
}

// GetOption tunes a single lookup
type GetOption func(*getOptions)

type getOptions struct {
	path     string
	noCache  bool
	required bool
}

// WithPath looks the secret up in a folder of every scope
func WithPath(path string) GetOption {
	return func(o *getOptions) {
		o.path = path
	}
}

// WithNoCache skips the cache read; the resolved value is still cached
func WithNoCache() GetOption {
	return func(o *getOptions) {
		o.noCache = true
	}
}

// WithRequired turns an absent secret into a *errors.MissingSecretError
func WithRequired() GetOption {
	return func(o *getOptions) {
		o.required = true
	}
}

// MutationOptions address a CRUD call. An empty ProjectID means the highest
// priority scope; an empty Path means "/".
type MutationOptions struct {
	ProjectID string
	Path      string
}
