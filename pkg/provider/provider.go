// Package provider defines the client contract for remote secret stores used by
// secretchain.
//
// A Client is an authenticated network client addressing secrets by
// project, environment, folder path and name. The resolver never sees the
// vendor wire protocol: it only calls the methods below and treats every error
// as "this scope did not produce a value". Clients carry no retry logic of
// their own; retries are applied by the caller.
//
// # Addressing
//
// Every operation takes a SecretRequest:
//
//	req := provider.SecretRequest{
//	    ProjectID:   "6471f1c3a2b4",
//	    Environment: "prod",
//	    Path:        "/",
//	    Name:        "DATABASE_URL",
//	}
//	secret, err := client.FetchSecret(ctx, req)
//
// # Error Handling
//
// Clients should use the error types defined in this package:
//   - NotFoundError when the store answered that the secret does not exist
//   - AuthError for authentication failures
//   - wrapped transport errors for everything else
//
// # Threading and Concurrency
//
// Implementations must be safe for concurrent use. Many goroutines resolve
// different keys through the same client at once.
package provider

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"
)

// DefaultPath is the folder path used when a request does not name one
const DefaultPath = "/"

// Client is the contract every remote secret store client implements.
type Client interface {
	// Name returns a stable identifier such as "infisical" or "aws".
	Name() string

	// Authenticate establishes the client's identity with the store.
	//
	// It is called once per process by the initializer before any other
	// method. Clients that authenticate lazily may also refresh credentials
	// inside the other methods.
	Authenticate(ctx context.Context) error

	// FetchSecret returns the current value of one secret.
	FetchSecret(ctx context.Context, req SecretRequest) (Secret, error)

	// CreateSecret creates a new secret with req.Value.
	CreateSecret(ctx context.Context, req SecretRequest) error

	// UpdateSecret replaces the value of an existing secret.
	UpdateSecret(ctx context.Context, req SecretRequest) error

	// DeleteSecret removes a secret.
	DeleteSecret(ctx context.Context, req SecretRequest) error

	// ListSecrets returns the secrets under req.Path. req.Name is ignored.
	ListSecrets(ctx context.Context, req SecretRequest) ([]Secret, error)
}

// SecretRequest addresses a single secret (or a folder, for listing).
type SecretRequest struct {
	ProjectID   string
	Environment string
	Path        string
	Name        string
	// Value is only set for create and update.
	Value string
}

// NormalizedPath returns the request path as an absolute, cleaned folder path
func (r SecretRequest) NormalizedPath() string {
	return NormalizePath(r.Path)
}

// NormalizePath cleans a folder path; empty becomes "/"
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return DefaultPath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// Secret is a value returned by a store.
type Secret struct {
	Name      string
	Value     string
	Version   string
	UpdatedAt time.Time
}

// NotFoundError indicates that the store answered and the secret does not exist.
type NotFoundError struct {
	// Provider is the name of the client that reported the miss.
	Provider string

	// Key is the secret name that could not be found.
	Key string
}

// Error implements the error interface.
func (e NotFoundError) Error() string {
	return "secret not found: " + e.Key + " in " + e.Provider
}

// AuthError indicates that authentication to the provider failed.
type AuthError struct {
	// Provider is the name of the client that failed authentication.
	Provider string

	// Message provides details about the authentication failure.
	Message string
}

// Error implements the error interface.
func (e AuthError) Error() string {
	return "authentication failed for " + e.Provider + ": " + e.Message
}

// IsNotFound reports whether err is, or wraps, a NotFoundError
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// IsAuthError reports whether err is, or wraps, an AuthError
func IsAuthError(err error) bool {
	var ae AuthError
	return errors.As(err, &ae)
}
