// Package contracts declares the narrow vendor API surfaces the provider
// clients are built on, so tests can swap them for fakes.
package contracts

import (
	"context"
	"time"
)

// InfisicalAPI abstracts the Infisical REST API for testing
type InfisicalAPI interface {
	// Login exchanges machine identity credentials for an access token
	Login(ctx context.Context) (token string, expiresIn time.Duration, err error)

	// GetSecret retrieves a single secret by name
	GetSecret(ctx context.Context, token string, loc InfisicalLocation, name string) (*InfisicalSecret, error)

	// CreateSecret creates a shared secret
	CreateSecret(ctx context.Context, token string, loc InfisicalLocation, name, value string) (*InfisicalSecret, error)

	// UpdateSecret replaces the value of a shared secret
	UpdateSecret(ctx context.Context, token string, loc InfisicalLocation, name, value string) (*InfisicalSecret, error)

	// DeleteSecret removes a shared secret
	DeleteSecret(ctx context.Context, token string, loc InfisicalLocation, name string) error

	// ListSecrets lists the secrets in one folder
	ListSecrets(ctx context.Context, token string, loc InfisicalLocation) ([]InfisicalSecret, error)
}

// InfisicalLocation addresses a folder inside a project environment
type InfisicalLocation struct {
	WorkspaceID string
	Environment string
	SecretPath  string
}

// InfisicalSecret represents a secret from Infisical
type InfisicalSecret struct {
	SecretKey     string
	SecretValue   string
	Version       int
	Type          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SecretComment string
}
