// Package secrets is the public entry point of secretchain.
//
// A Manager resolves logical secret names through the configured scopes in
// priority order and then the process environment, caches what it finds, and
// passes create, update, delete and list calls through to the provider.
//
//	m, err := secrets.New()
//	if err != nil {
//	    return err
//	}
//	dsn, err := m.GetRequiredSecret(ctx, "DATABASE_URL")
//
// Provider trouble never fails a lookup: a provider that cannot authenticate
// or answer is skipped and the environment is used instead. Only a missing
// required secret or an ended context produce an error.
package secrets

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/systmms/secretchain/internal/bootstrap"
	"github.com/systmms/secretchain/internal/cache"
	"github.com/systmms/secretchain/internal/config"
	dserrors "github.com/systmms/secretchain/internal/errors"
	"github.com/systmms/secretchain/internal/logging"
	"github.com/systmms/secretchain/internal/metrics"
	"github.com/systmms/secretchain/internal/providers"
	"github.com/systmms/secretchain/internal/resolve"
	"github.com/systmms/secretchain/internal/retry"
	"github.com/systmms/secretchain/pkg/provider"
)

// Manager is safe for concurrent use
type Manager struct {
	cfg       config.ResolverConfig
	resolver  *resolve.Resolver
	lookupEnv func(string) (string, bool)
	logger    *logging.Logger
	metrics   *metrics.Recorder
}

// New builds a Manager. Without WithConfig the configuration is loaded from
// the optional file and the environment; only an invalid configuration fails.
// A provider client that cannot be constructed leaves the manager in
// environment-only mode.
func New(opts ...Option) (*Manager, error) {
	o := managerOptions{lookupEnv: os.LookupEnv}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.New(false, true)
	}

	var cfg config.ResolverConfig
	if o.config != nil {
		cfg = o.config.Normalize()
	} else {
		loader := config.Config{
			Path:        o.configPath,
			Logger:      o.logger.Named("config"),
			LookupEnv:   o.lookupEnv,
			SkipKeyring: o.skipKeyring,
		}
		if err := loader.Load(); err != nil {
			return nil, err
		}
		cfg = loader.Resolver
	}

	var rec *metrics.Recorder
	if o.registerer != nil {
		rec = metrics.New(o.registerer)
	}

	client := o.client
	if client == nil && cfg.ProviderConfigured() {
		registry := o.registry
		if registry == nil {
			registry = providers.NewRegistry()
		}
		c, err := registry.CreateClient(context.Background(), cfg)
		if err != nil {
			o.logger.Warn("%s client unavailable, using environment variables only: %v", cfg.Backend, err)
		} else {
			client = c
		}
	}

	var cacheOpts []cache.Option
	if o.clock != nil {
		cacheOpts = append(cacheOpts, cache.WithClock(o.clock))
	}

	initCfg := bootstrap.Config{
		Backend: cfg.Backend,
		Enabled: client != nil,
		Timeout: cfg.InitTimeout,
		Logger:  o.logger.Named("init"),
		Metrics: rec,
	}
	if client != nil {
		initCfg.Authenticate = client.Authenticate
	}

	executor := retry.New(cfg.MaxRetries, cfg.RetryDelay,
		retry.WithLogger(o.logger.Named("retry")),
		retry.WithObserver(func(op string, _ int, err error) {
			if !provider.IsNotFound(err) {
				rec.FailedAttempt(op)
			}
		}),
	)

	m := &Manager{
		cfg:       cfg,
		lookupEnv: o.lookupEnv,
		logger:    o.logger,
		metrics:   rec,
	}
	m.resolver = resolve.New(resolve.Config{
		Environment:     cfg.Environment,
		Scopes:          cfg.Scopes,
		ProviderTimeout: cfg.ProviderTimeout,
		Client:          client,
		Cache:           cache.New(cfg.CacheEnabled, cfg.CacheTTL, cacheOpts...),
		Initializer:     bootstrap.New(initCfg),
		Retry:           executor,
		LookupEnv:       o.lookupEnv,
		Logger:          o.logger.Named("resolve"),
		Metrics:         rec,
	})

	return m, nil
}

func emptyKeyError() error {
	return dserrors.ConfigError{
		Field:   "key",
		Message: "secret key must not be empty",
	}
}

// GetSecret reads key from the process environment only.
//
// Deprecated: use GetSecretContext, which also consults the configured scopes.
func (m *Manager) GetSecret(key string) (string, bool) {
	value, ok := m.lookupEnv(key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// GetSecretOrDefault reads key from the process environment only.
//
// Deprecated: use GetSecretOrDefaultContext.
func (m *Manager) GetSecretOrDefault(key, def string) string {
	if value, ok := m.GetSecret(key); ok {
		return value
	}
	return def
}

// HasSecret checks the process environment only.
//
// Deprecated: use HasSecretContext.
func (m *Manager) HasSecret(key string) bool {
	_, ok := m.GetSecret(key)
	return ok
}

// Lookup resolves key and returns the full outcome, including the source and
// the per-scope trail. An absent secret is not an error.
func (m *Manager) Lookup(ctx context.Context, key string, opts ...GetOption) (resolve.Outcome, error) {
	if key == "" {
		return resolve.Outcome{}, emptyKeyError()
	}
	var o getOptions
	for _, opt := range opts {
		opt(&o)
	}
	return m.resolver.Resolve(ctx, key, resolve.Options{Path: o.path, NoCache: o.noCache})
}

// GetSecretContext resolves key through the cache, the scopes and the
// environment. The bool reports whether a value was found. With WithRequired
// an absent secret is returned as a *errors.MissingSecretError.
func (m *Manager) GetSecretContext(ctx context.Context, key string, opts ...GetOption) (string, bool, error) {
	var o getOptions
	for _, opt := range opts {
		opt(&o)
	}

	out, err := m.Lookup(ctx, key, opts...)
	if err != nil {
		return "", false, err
	}
	if !out.Found {
		if o.required {
			return "", false, out.MissingError()
		}
		return "", false, nil
	}
	return out.Value, true, nil
}

// GetRequiredSecret is GetSecretContext with WithRequired
func (m *Manager) GetRequiredSecret(ctx context.Context, key string) (string, error) {
	value, _, err := m.GetSecretContext(ctx, key, WithRequired())
	return value, err
}

// GetSecretOrDefaultContext returns def when key is absent or the lookup fails
func (m *Manager) GetSecretOrDefaultContext(ctx context.Context, key, def string) string {
	value, ok, err := m.GetSecretContext(ctx, key)
	if err != nil || !ok {
		return def
	}
	return value
}

// HasSecretContext reports whether key resolves to a non-empty value
func (m *Manager) HasSecretContext(ctx context.Context, key string) bool {
	_, ok, err := m.GetSecretContext(ctx, key)
	return err == nil && ok
}

// GetSecrets resolves every key concurrently. Every requested key is present
// in the result; absent secrets map to nil.
func (m *Manager) GetSecrets(ctx context.Context, keys []string) map[string]*string {
	results := make(map[string]*string, len(keys))
	lookup := make([]string, 0, len(keys))
	for _, key := range keys {
		results[key] = nil
		if key != "" {
			lookup = append(lookup, key)
		}
	}

	outcomes, err := m.resolver.ResolveMany(ctx, lookup, resolve.Options{})
	if err != nil {
		m.logger.Debug("batch resolution interrupted: %v", err)
	}
	for key, out := range outcomes {
		if out.Found {
			value := out.Value
			results[key] = &value
		}
	}
	return results
}

// ValidationReport lists which required secrets resolved
type ValidationReport struct {
	Valid   bool     `json:"valid"`
	Missing []string `json:"missing"`
	Present []string `json:"present"`
}

// ValidateRequiredSecrets resolves keys and reports which are missing. It
// never returns an error; keys keep their given order.
func (m *Manager) ValidateRequiredSecrets(ctx context.Context, keys []string) ValidationReport {
	values := m.GetSecrets(ctx, keys)

	report := ValidationReport{Missing: []string{}, Present: []string{}}
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		if values[key] != nil {
			report.Present = append(report.Present, key)
		} else {
			report.Missing = append(report.Missing, key)
		}
	}
	report.Valid = len(report.Missing) == 0
	return report
}

// CreateSecret creates key in the target project
func (m *Manager) CreateSecret(ctx context.Context, key, value string, opts MutationOptions) error {
	if key == "" {
		return emptyKeyError()
	}
	req, err := m.prepare(ctx, "create", opts)
	if err != nil {
		return err
	}
	req.Name = key
	req.Value = value

	err = m.call(ctx, "create", func(ctx context.Context) error {
		return m.resolver.Client().CreateSecret(ctx, req)
	})
	if err != nil {
		return err
	}
	m.invalidate(key, req.Path)
	m.logger.Debug("created %s in project %s at %s", key, req.ProjectID, req.Path)
	return nil
}

// UpdateSecret replaces the value of key in the target project
func (m *Manager) UpdateSecret(ctx context.Context, key, value string, opts MutationOptions) error {
	if key == "" {
		return emptyKeyError()
	}
	req, err := m.prepare(ctx, "update", opts)
	if err != nil {
		return err
	}
	req.Name = key
	req.Value = value

	err = m.call(ctx, "update", func(ctx context.Context) error {
		return m.resolver.Client().UpdateSecret(ctx, req)
	})
	if err != nil {
		return err
	}
	m.invalidate(key, req.Path)
	m.logger.Debug("updated %s in project %s at %s", key, req.ProjectID, req.Path)
	return nil
}

// DeleteSecret removes key from the target project
func (m *Manager) DeleteSecret(ctx context.Context, key string, opts MutationOptions) error {
	if key == "" {
		return emptyKeyError()
	}
	req, err := m.prepare(ctx, "delete", opts)
	if err != nil {
		return err
	}
	req.Name = key

	err = m.call(ctx, "delete", func(ctx context.Context) error {
		return m.resolver.Client().DeleteSecret(ctx, req)
	})
	if err != nil {
		return err
	}
	m.invalidate(key, req.Path)
	m.logger.Debug("deleted %s from project %s at %s", key, req.ProjectID, req.Path)
	return nil
}

// ListSecrets lists the secrets in one folder of the target project
func (m *Manager) ListSecrets(ctx context.Context, opts MutationOptions) ([]provider.Secret, error) {
	req, err := m.prepare(ctx, "list", opts)
	if err != nil {
		return nil, err
	}

	var list []provider.Secret
	err = m.call(ctx, "list", func(ctx context.Context) error {
		var err error
		list, err = m.resolver.Client().ListSecrets(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// prepare checks that the provider is usable and addresses the target project
func (m *Manager) prepare(ctx context.Context, op string, opts MutationOptions) (provider.SecretRequest, error) {
	if err := m.resolver.EnsureProvider(ctx, op); err != nil {
		return provider.SecretRequest{}, err
	}

	project := opts.ProjectID
	if project == "" {
		if scopes := m.resolver.Scopes(); len(scopes) > 0 {
			project = scopes[0].ID
		}
	}
	if project == "" {
		return provider.SecretRequest{}, dserrors.ConfigError{
			Field:      "project_id",
			Message:    fmt.Sprintf("%s needs a project id and no scope is configured", op),
			Suggestion: "Pass a project id or set " + config.EnvProjectID,
		}
	}

	return provider.SecretRequest{
		ProjectID:   project,
		Environment: m.resolver.Environment(),
		Path:        provider.NormalizePath(opts.Path),
	}, nil
}

// call runs one provider operation through the shared retry executor
func (m *Manager) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := m.resolver.Retry().Run(ctx, op, func(ctx context.Context) error {
		callCtx, cancel := m.resolver.WithProviderTimeout(ctx)
		defer cancel()

		err := fn(callCtx)
		if err != nil && provider.IsNotFound(err) {
			return retry.Permanent(err)
		}
		return err
	})
	m.metrics.Mutation(op, err)
	if err != nil {
		return dserrors.ProviderError(m.resolver.Client().Name(), op, err)
	}
	return nil
}

func (m *Manager) invalidate(key, path string) {
	m.resolver.Cache().Delete(resolve.CacheKey(key, path))
}

// ClearCache drops every cached value
func (m *Manager) ClearCache() {
	m.resolver.Cache().Clear()
}

// RefreshCache clears the cache and re-resolves the keys it held. It returns
// how many of them resolved again.
func (m *Manager) RefreshCache(ctx context.Context) int {
	stats := m.resolver.Cache().Stats()
	m.resolver.Cache().Clear()

	byPath := make(map[string][]string)
	for _, k := range stats.Entries {
		byPath[k.Path] = append(byPath[k.Path], k.Name)
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		refreshed int
	)
	for path, keys := range byPath {
		wg.Add(1)
		go func(path string, keys []string) {
			defer wg.Done()
			outcomes, _ := m.resolver.ResolveMany(ctx, keys, resolve.Options{Path: path})

			found := 0
			for _, out := range outcomes {
				if out.Found {
					found++
				}
			}
			mu.Lock()
			refreshed += found
			mu.Unlock()
		}(path, keys)
	}
	wg.Wait()

	m.logger.Debug("refreshed %d of %d cached secrets", refreshed, stats.Size)
	return refreshed
}

// CacheStats returns the cache size and keys
func (m *Manager) CacheStats() cache.Stats {
	return m.resolver.Cache().Stats()
}

// Scopes returns the scope order
func (m *Manager) Scopes() []config.Scope {
	return m.resolver.Scopes()
}

// Config returns the normalized configuration the manager was built from
func (m *Manager) Config() config.ResolverConfig {
	return m.cfg
}

// Initialize runs the provider handshake now instead of on first use. It
// returns the handshake error; lookups still work after a failure.
func (m *Manager) Initialize(ctx context.Context) error {
	if m.resolver.Client() == nil {
		return bootstrap.ErrProviderDisabled
	}
	return m.resolver.Initializer().EnsureReady(ctx)
}

// Status is a diagnostic snapshot of a Manager
type Status struct {
	Backend            string         `json:"backend"`
	Environment        string         `json:"environment"`
	ProviderConfigured bool           `json:"provider_configured"`
	Scopes             []config.Scope `json:"scopes"`
	State              string         `json:"state"`
	Usable             bool           `json:"usable"`
	InitError          string         `json:"init_error,omitempty"`
	InitAttempts       int            `json:"init_attempts"`
	CacheEnabled       bool           `json:"cache_enabled"`
	Cache              cache.Stats    `json:"cache"`
}

// Status reports the current state without triggering initialization
func (m *Manager) Status() Status {
	initializer := m.resolver.Initializer()
	st := Status{
		Backend:            m.cfg.Backend,
		Environment:        m.cfg.Environment,
		ProviderConfigured: m.resolver.Client() != nil,
		Scopes:             m.Scopes(),
		State:              initializer.State().String(),
		Usable:             initializer.Usable(),
		InitAttempts:       initializer.Attempts(),
		CacheEnabled:       m.resolver.Cache().Enabled(),
		Cache:              m.CacheStats(),
	}
	if err := initializer.Err(); err != nil {
		st.InitError = err.Error()
	}
	return st
}

// Close drops cached values and releases their memory
func (m *Manager) Close() {
	m.ClearCache()
}
