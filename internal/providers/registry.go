package providers

import (
	"context"
	"fmt"
	"sort"

	"github.com/systmms/secretchain/internal/config"
	"github.com/systmms/secretchain/pkg/provider"
)

// Registry maps backend names onto client factories
type Registry struct {
	factories map[string]Factory
}

// Factory creates a client from the resolved configuration
type Factory func(ctx context.Context, cfg config.ResolverConfig) (provider.Client, error)

// NewRegistry creates a registry with the built-in backends
func NewRegistry() *Registry {
	registry := &Registry{
		factories: make(map[string]Factory),
	}

	registry.RegisterFactory(config.BackendInfisical, NewInfisicalFactory)
	registry.RegisterFactory(config.BackendAWS, NewAWSFactory)

	return registry
}

// RegisterFactory registers a factory for a backend name
func (r *Registry) RegisterFactory(backend string, factory Factory) {
	r.factories[backend] = factory
}

// CreateClient builds the client for cfg.Backend
func (r *Registry) CreateClient(ctx context.Context, cfg config.ResolverConfig) (provider.Client, error) {
	factory, exists := r.factories[cfg.Backend]
	if !exists {
		return nil, fmt.Errorf("unknown backend: %s", cfg.Backend)
	}
	return factory(ctx, cfg)
}

// GetSupportedTypes returns the registered backend names, sorted
func (r *Registry) GetSupportedTypes() []string {
	types := make([]string, 0, len(r.factories))
	for backend := range r.factories {
		types = append(types, backend)
	}
	sort.Strings(types)
	return types
}

// IsSupported checks if a backend is registered
func (r *Registry) IsSupported(backend string) bool {
	_, exists := r.factories[backend]
	return exists
}

// NewInfisicalFactory builds the Infisical client
func NewInfisicalFactory(_ context.Context, cfg config.ResolverConfig) (provider.Client, error) {
	return NewInfisicalProvider(InfisicalHTTPConfig{
		SiteURL:            cfg.Infisical.SiteURL,
		ClientID:           cfg.Infisical.ClientID,
		ClientSecret:       cfg.Infisical.ClientSecret,
		Timeout:            cfg.ProviderTimeout,
		CACert:             cfg.Infisical.CACert,
		InsecureSkipVerify: cfg.Infisical.InsecureSkipVerify,
	})
}

// NewAWSFactory builds the AWS Secrets Manager client
func NewAWSFactory(ctx context.Context, cfg config.ResolverConfig) (provider.Client, error) {
	return NewAWSSecretsManagerProvider(ctx, AWSConfig{
		Region:          cfg.AWS.Region,
		Endpoint:        cfg.AWS.Endpoint,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
	})
}
