// Package resolve implements hierarchical secret resolution: cache first,
// then each configured scope in priority order, then the process environment.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/systmms/secretchain/internal/bootstrap"
	"github.com/systmms/secretchain/internal/cache"
	"github.com/systmms/secretchain/internal/config"
	dserrors "github.com/systmms/secretchain/internal/errors"
	"github.com/systmms/secretchain/internal/logging"
	"github.com/systmms/secretchain/internal/metrics"
	"github.com/systmms/secretchain/internal/retry"
	"github.com/systmms/secretchain/pkg/provider"
)

// SourceEnv marks values that came from the process environment
const SourceEnv = "env"

// Per-scope attempt results recorded in the trail
const (
	AttemptFound    = "found"
	AttemptEmpty    = "empty"
	AttemptNotFound = "not_found"
	AttemptError    = "error"
	AttemptSkipped  = "skipped"
)

// Options tune a single resolution
type Options struct {
	// Path is the folder inside each scope; empty means "/"
	Path string
	// NoCache bypasses the cache read. A found value is still stored.
	NoCache bool
}

// Attempt records what one scope answered
type Attempt struct {
	Scope     string
	ProjectID string
	Result    string
	Attempts  int
	Err       error
}

// Outcome is the result of one resolution. Found is false when neither a
// scope nor the environment produced a non-empty value.
type Outcome struct {
	Key   string
	Found bool
	Value string
	// Source is "scope:<name>" or "env"
	Source string
	// Scope is the name of the scope that produced the value, if any
	Scope string
	// Cached is true when the value was served from the cache
	Cached bool
	Trail  []Attempt
}

// Checked lists every source consulted, in order
func (o Outcome) Checked() []string {
	checked := make([]string, 0, len(o.Trail)+1)
	for _, a := range o.Trail {
		checked = append(checked, "scope:"+a.Scope)
	}
	return append(checked, SourceEnv)
}

// Failures maps scope names to the reason they produced nothing
func (o Outcome) Failures() map[string]string {
	failures := make(map[string]string)
	for _, a := range o.Trail {
		switch {
		case a.Err != nil:
			failures[a.Scope] = a.Err.Error()
		case a.Result != AttemptFound:
			failures[a.Scope] = a.Result
		}
	}
	return failures
}

// MissingError builds the error reported when a required secret is absent
func (o Outcome) MissingError() *dserrors.MissingSecretError {
	return &dserrors.MissingSecretError{
		Key:      o.Key,
		Checked:  o.Checked(),
		Failures: o.Failures(),
	}
}

// Config wires a Resolver
type Config struct {
	Environment string
	Scopes      []config.Scope
	// ProviderTimeout bounds each individual provider call; zero means unbounded
	ProviderTimeout time.Duration

	Client      provider.Client
	Cache       *cache.Cache
	Initializer *bootstrap.Initializer
	Retry       *retry.Executor

	// LookupEnv defaults to os.LookupEnv
	LookupEnv func(string) (string, bool)
	Logger    *logging.Logger
	Metrics   *metrics.Recorder
}

// Resolver is safe for concurrent use. The scope order is fixed at construction.
type Resolver struct {
	environment     string
	scopes          []config.Scope
	providerTimeout time.Duration

	client      provider.Client
	cache       *cache.Cache
	initializer *bootstrap.Initializer
	retry       *retry.Executor
	lookupEnv   func(string) (string, bool)
	logger      *logging.Logger
	metrics     *metrics.Recorder
}

// New creates a resolver. Missing collaborators get inert defaults: a disabled
// cache, a single-attempt executor and an initializer with no credentials.
func New(cfg Config) *Resolver {
	r := &Resolver{
		environment:     cfg.Environment,
		scopes:          append([]config.Scope(nil), cfg.Scopes...),
		providerTimeout: cfg.ProviderTimeout,
		client:          cfg.Client,
		cache:           cfg.Cache,
		initializer:     cfg.Initializer,
		retry:           cfg.Retry,
		lookupEnv:       cfg.LookupEnv,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
	}
	if r.cache == nil {
		r.cache = cache.New(false, 0)
	}
	if r.retry == nil {
		r.retry = retry.New(1, 0)
	}
	if r.initializer == nil {
		r.initializer = bootstrap.New(bootstrap.Config{})
	}
	if r.lookupEnv == nil {
		r.lookupEnv = os.LookupEnv
	}
	if r.logger == nil {
		r.logger = logging.Discard()
	}
	return r
}

// Scopes returns a copy of the scope order
func (r *Resolver) Scopes() []config.Scope {
	return append([]config.Scope(nil), r.scopes...)
}

// Environment returns the provider environment slug
func (r *Resolver) Environment() string {
	return r.environment
}

// Cache exposes the resolver cache for invalidation and stats
func (r *Resolver) Cache() *cache.Cache {
	return r.cache
}

// CacheKey is the cache key for key in the given folder path
func CacheKey(key, path string) cache.Key {
	return cache.Key{Name: key, Path: provider.NormalizePath(path)}
}

// Resolve finds a value for key. The returned error is non-nil only when ctx
// ends; an absent secret is reported through Outcome.Found.
func (r *Resolver) Resolve(ctx context.Context, key string, opts Options) (Outcome, error) {
	out := Outcome{Key: key}
	cacheKey := CacheKey(key, opts.Path)

	if r.cache.Enabled() && !opts.NoCache {
		if entry, ok := r.cache.Get(cacheKey); ok {
			r.metrics.CacheHit()
			r.metrics.Resolution(metrics.SourceCache)
			out.Found = true
			out.Value = entry.Value
			out.Source = entry.Source
			out.Scope = scopeName(entry.Source)
			out.Cached = true
			return out, nil
		}
		r.metrics.CacheMiss()
	}

	// taken before any read so a concurrent invalidation wins over this fetch
	gen := r.cache.Generation(cacheKey)

	if len(r.scopes) > 0 {
		value, trail, err := r.resolveScopes(ctx, key, opts.Path)
		out.Trail = trail
		if err != nil {
			return out, err
		}
		if value != nil {
			scope := trail[len(trail)-1].Scope
			out.Found = true
			out.Value = *value
			out.Source = "scope:" + scope
			out.Scope = scope
			r.cache.SetIfGeneration(cacheKey, gen, out.Value, out.Source, 0)
			r.metrics.Resolution(metrics.SourceScope)
			return out, nil
		}
	}

	if value, ok := r.lookupEnv(key); ok && value != "" {
		out.Found = true
		out.Value = value
		out.Source = SourceEnv
		r.cache.SetIfGeneration(cacheKey, gen, value, SourceEnv, 0)
		r.metrics.Resolution(metrics.SourceEnv)
		return out, nil
	}

	r.metrics.Resolution(metrics.SourceNone)
	if len(out.Trail) > 0 {
		r.logger.Debug("secret %s not found (checked: %v)", key, out.Checked())
	}
	return out, nil
}

// resolveScopes folds the per-scope attempts over the scope order and stops at
// the first non-empty value. The trail always ends with the deciding attempt.
func (r *Resolver) resolveScopes(ctx context.Context, key, path string) (*string, []Attempt, error) {
	trail := make([]Attempt, 0, len(r.scopes))

	err := bootstrap.ErrProviderDisabled
	if r.client != nil {
		err = r.initializer.EnsureReady(ctx)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, trail, ctxErr
		}
		for _, scope := range r.scopes {
			trail = append(trail, Attempt{
				Scope:     scope.Name,
				ProjectID: scope.ID,
				Result:    AttemptSkipped,
				Err:       err,
			})
		}
		return nil, trail, nil
	}

	for _, scope := range r.scopes {
		value, attempt := r.fetchFromScope(ctx, scope, key, path)
		trail = append(trail, attempt)
		if err := ctx.Err(); err != nil {
			return nil, trail, err
		}
		if attempt.Result == AttemptFound {
			return &value, trail, nil
		}
		if attempt.Err != nil {
			r.logger.Debug("scope %s did not resolve %s: %v", scope.Name, key, attempt.Err)
		}
	}
	return nil, trail, nil
}

func (r *Resolver) fetchFromScope(ctx context.Context, scope config.Scope, key, path string) (string, Attempt) {
	attempt := Attempt{Scope: scope.Name, ProjectID: scope.ID}
	req := provider.SecretRequest{
		ProjectID:   scope.ID,
		Environment: r.environment,
		Path:        provider.NormalizePath(path),
		Name:        key,
	}

	start := time.Now()
	secret, err := retry.Do(ctx, r.retry, "fetch", func(ctx context.Context) (provider.Secret, error) {
		attempt.Attempts++
		callCtx, cancel := r.withProviderTimeout(ctx)
		defer cancel()

		s, err := r.client.FetchSecret(callCtx, req)
		if err != nil && provider.IsNotFound(err) {
			// a definitive answer, not worth retrying
			return s, retry.Permanent(err)
		}
		return s, err
	})

	switch {
	case err == nil && secret.Value != "":
		attempt.Result = AttemptFound
	case err == nil:
		attempt.Result = AttemptEmpty
	case provider.IsNotFound(err):
		attempt.Result = AttemptNotFound
	default:
		attempt.Result = AttemptError
		attempt.Err = &dserrors.ProviderUnavailableError{
			Scope:     scope.Name,
			Operation: "fetch",
			Attempts:  attempt.Attempts,
			Err:       err,
		}
	}
	r.metrics.ProviderFetch(scope.Name, attempt.Result, time.Since(start))

	return secret.Value, attempt
}

func (r *Resolver) withProviderTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.providerTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.providerTimeout)
}

// ResolveMany resolves every key concurrently, one goroutine per key. The map
// holds an Outcome for every requested key, found or not. The error is the
// context error if ctx ended before all keys settled.
func (r *Resolver) ResolveMany(ctx context.Context, keys []string, opts Options) (map[string]Outcome, error) {
	results := make(map[string]Outcome, len(keys))
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)

	for _, key := range keys {
		mu.Lock()
		_, dup := results[key]
		if !dup {
			results[key] = Outcome{Key: key}
		}
		mu.Unlock()
		if dup {
			continue
		}

		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			out, err := r.Resolve(ctx, key, opts)

			mu.Lock()
			defer mu.Unlock()
			results[key] = out
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}(key)
	}
	wg.Wait()

	return results, firstErr
}

// EnsureProvider waits for initialization and reports whether the provider can
// take direct calls.
func (r *Resolver) EnsureProvider(ctx context.Context, operation string) error {
	if r.client == nil {
		return &dserrors.ProviderUnavailableError{Operation: operation, Err: bootstrap.ErrProviderDisabled}
	}
	if err := r.initializer.EnsureReady(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &dserrors.ProviderUnavailableError{Operation: operation, Err: err}
	}
	return nil
}

// Client returns the provider client
func (r *Resolver) Client() provider.Client {
	return r.client
}

// Retry returns the retry executor shared with direct provider calls
func (r *Resolver) Retry() *retry.Executor {
	return r.retry
}

// WithProviderTimeout applies the per-call provider timeout to ctx
func (r *Resolver) WithProviderTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return r.withProviderTimeout(ctx)
}

// Initializer returns the provider initializer
func (r *Resolver) Initializer() *bootstrap.Initializer {
	return r.initializer
}

func scopeName(source string) string {
	name, _ := strings.CutPrefix(source, "scope:")
	if name == source {
		return ""
	}
	return name
}

// IsCanceled reports whether err comes from context cancellation or deadline
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// String renders the outcome without its value
func (o Outcome) String() string {
	if !o.Found {
		return fmt.Sprintf("%s: absent", o.Key)
	}
	return fmt.Sprintf("%s: %s from %s", o.Key, logging.Secret(o.Value), o.Source)
}
