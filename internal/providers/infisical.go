package providers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/systmms/secretchain/internal/providers/contracts"
	"github.com/systmms/secretchain/pkg/provider"
)

// InfisicalName is the client name reported by InfisicalProvider
const InfisicalName = "infisical"

// InfisicalProvider implements provider.Client for Infisical machine identities
type InfisicalProvider struct {
	name       string
	api        contracts.InfisicalAPI
	tokenCache *TokenCache
}

// NewInfisicalProvider creates a client talking to the Infisical REST API
func NewInfisicalProvider(cfg InfisicalHTTPConfig) (*InfisicalProvider, error) {
	if cfg.SiteURL == "" {
		return nil, fmt.Errorf("infisical site url is required")
	}
	api, err := newInfisicalHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewInfisicalProviderWithAPI(api), nil
}

// NewInfisicalProviderWithAPI creates a provider on top of a custom API
// implementation. This is primarily for testing.
func NewInfisicalProviderWithAPI(api contracts.InfisicalAPI) *InfisicalProvider {
	return &InfisicalProvider{
		name:       InfisicalName,
		api:        api,
		tokenCache: NewTokenCache(),
	}
}

// Name returns the provider name
func (p *InfisicalProvider) Name() string {
	return p.name
}

// Authenticate performs a fresh machine identity login
func (p *InfisicalProvider) Authenticate(ctx context.Context) error {
	p.tokenCache.Clear()
	_, err := p.getToken(ctx)
	return err
}

// FetchSecret retrieves one secret
func (p *InfisicalProvider) FetchSecret(ctx context.Context, req provider.SecretRequest) (provider.Secret, error) {
	var secret *contracts.InfisicalSecret
	err := p.withToken(ctx, req, func(token string) error {
		var err error
		secret, err = p.api.GetSecret(ctx, token, location(req), req.Name)
		return err
	})
	if err != nil {
		return provider.Secret{}, err
	}
	return toSecret(*secret), nil
}

// CreateSecret creates a shared secret
func (p *InfisicalProvider) CreateSecret(ctx context.Context, req provider.SecretRequest) error {
	return p.withToken(ctx, req, func(token string) error {
		_, err := p.api.CreateSecret(ctx, token, location(req), req.Name, req.Value)
		return err
	})
}

// UpdateSecret replaces the value of a shared secret
func (p *InfisicalProvider) UpdateSecret(ctx context.Context, req provider.SecretRequest) error {
	return p.withToken(ctx, req, func(token string) error {
		_, err := p.api.UpdateSecret(ctx, token, location(req), req.Name, req.Value)
		return err
	})
}

// DeleteSecret removes a shared secret
func (p *InfisicalProvider) DeleteSecret(ctx context.Context, req provider.SecretRequest) error {
	return p.withToken(ctx, req, func(token string) error {
		return p.api.DeleteSecret(ctx, token, location(req), req.Name)
	})
}

// ListSecrets lists the secrets in req.Path
func (p *InfisicalProvider) ListSecrets(ctx context.Context, req provider.SecretRequest) ([]provider.Secret, error) {
	var raw []contracts.InfisicalSecret
	err := p.withToken(ctx, req, func(token string) error {
		var err error
		raw, err = p.api.ListSecrets(ctx, token, location(req))
		return err
	})
	if err != nil {
		return nil, err
	}

	secrets := make([]provider.Secret, len(raw))
	for i, s := range raw {
		secrets[i] = toSecret(s)
	}
	return secrets, nil
}

// withToken runs fn with a valid access token and maps API errors onto the
// provider error types. A rejected token is dropped so the next call logs in again.
func (p *InfisicalProvider) withToken(ctx context.Context, req provider.SecretRequest, fn func(token string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	token, err := p.getToken(ctx)
	if err != nil {
		return err
	}

	err = fn(token)
	switch {
	case err == nil:
		return nil
	case IsInfisicalNotFound(err):
		return provider.NotFoundError{Provider: p.name, Key: req.Name}
	case IsInfisicalUnauthorized(err):
		p.tokenCache.Clear()
		return provider.AuthError{Provider: p.name, Message: err.Error()}
	default:
		return err
	}
}

// getToken returns a cached token or authenticates to get a new one
func (p *InfisicalProvider) getToken(ctx context.Context) (string, error) {
	if token, ok := p.tokenCache.Get(); ok {
		return token, nil
	}

	token, ttl, err := p.api.Login(ctx)
	if err != nil {
		if IsInfisicalUnauthorized(err) {
			return "", provider.AuthError{Provider: p.name, Message: err.Error()}
		}
		return "", &InfisicalError{
			Op:      "auth",
			Message: err.Error(),
			Err:     err,
		}
	}

	p.tokenCache.Set(token, ttl)
	return token, nil
}

func location(req provider.SecretRequest) contracts.InfisicalLocation {
	return contracts.InfisicalLocation{
		WorkspaceID: req.ProjectID,
		Environment: req.Environment,
		SecretPath:  req.NormalizedPath(),
	}
}

func toSecret(s contracts.InfisicalSecret) provider.Secret {
	return provider.Secret{
		Name:      s.SecretKey,
		Value:     s.SecretValue,
		Version:   strconv.Itoa(s.Version),
		UpdatedAt: s.UpdatedAt,
	}
}

var _ provider.Client = (*InfisicalProvider)(nil)
