package fakes

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/systmms/secretchain/internal/providers/contracts"
)

// FakeInfisicalAPI is a test double for contracts.InfisicalAPI
type FakeInfisicalAPI struct {
	// Token is the token returned by Login
	Token string

	// TokenTTL is the TTL returned by Login
	TokenTTL time.Duration

	// LoginErr is returned by Login if set
	LoginErr error

	// GetErr is returned by GetSecret if set (overrides the store lookup)
	GetErr error

	mu         sync.Mutex
	secrets    map[string]contracts.InfisicalSecret
	loginCalls int
	getCalls   int
	tokens     []string
}

// NewFakeInfisicalAPI creates a new fake Infisical API with defaults
func NewFakeInfisicalAPI() *FakeInfisicalAPI {
	return &FakeInfisicalAPI{
		Token:    "fake-token",
		TokenTTL: 30 * time.Second,
		secrets:  make(map[string]contracts.InfisicalSecret),
	}
}

func infisicalKey(workspace, path, name string) string {
	return workspace + "|" + path + "|" + name
}

// SetSecret adds a secret to the fake store
func (f *FakeInfisicalAPI) SetSecret(workspace, path, name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.secrets[infisicalKey(workspace, path, name)] = contracts.InfisicalSecret{
		SecretKey:   name,
		SecretValue: value,
		Version:     1,
		Type:        "shared",
		UpdatedAt:   time.Now(),
	}
}

// Login returns Token unless LoginErr is set
func (f *FakeInfisicalAPI) Login(ctx context.Context) (string, time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.loginCalls++
	if f.LoginErr != nil {
		return "", 0, f.LoginErr
	}
	return f.Token, f.TokenTTL, nil
}

// GetSecret retrieves a single secret by name
func (f *FakeInfisicalAPI) GetSecret(ctx context.Context, token string, loc contracts.InfisicalLocation, name string) (*contracts.InfisicalSecret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.getCalls++
	f.tokens = append(f.tokens, token)
	if f.GetErr != nil {
		return nil, f.GetErr
	}

	secret, ok := f.secrets[infisicalKey(loc.WorkspaceID, loc.SecretPath, name)]
	if !ok {
		return nil, ErrFakeInfisicalSecretNotFound
	}
	return &secret, nil
}

// CreateSecret stores a new secret
func (f *FakeInfisicalAPI) CreateSecret(ctx context.Context, token string, loc contracts.InfisicalLocation, name, value string) (*contracts.InfisicalSecret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := infisicalKey(loc.WorkspaceID, loc.SecretPath, name)
	if _, exists := f.secrets[key]; exists {
		return nil, ErrFakeInfisicalConflict
	}
	secret := contracts.InfisicalSecret{SecretKey: name, SecretValue: value, Version: 1, Type: "shared", UpdatedAt: time.Now()}
	f.secrets[key] = secret
	return &secret, nil
}

// UpdateSecret replaces an existing secret
func (f *FakeInfisicalAPI) UpdateSecret(ctx context.Context, token string, loc contracts.InfisicalLocation, name, value string) (*contracts.InfisicalSecret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := infisicalKey(loc.WorkspaceID, loc.SecretPath, name)
	secret, ok := f.secrets[key]
	if !ok {
		return nil, ErrFakeInfisicalSecretNotFound
	}
	secret.SecretValue = value
	secret.Version++
	secret.UpdatedAt = time.Now()
	f.secrets[key] = secret
	return &secret, nil
}

// DeleteSecret removes a secret
func (f *FakeInfisicalAPI) DeleteSecret(ctx context.Context, token string, loc contracts.InfisicalLocation, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := infisicalKey(loc.WorkspaceID, loc.SecretPath, name)
	if _, ok := f.secrets[key]; !ok {
		return ErrFakeInfisicalSecretNotFound
	}
	delete(f.secrets, key)
	return nil
}

// ListSecrets lists the secrets in one folder
func (f *FakeInfisicalAPI) ListSecrets(ctx context.Context, token string, loc contracts.InfisicalLocation) ([]contracts.InfisicalSecret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := infisicalKey(loc.WorkspaceID, loc.SecretPath, "")
	var out []contracts.InfisicalSecret
	for key, secret := range f.secrets {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			out = append(out, secret)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SecretKey < out[j].SecretKey })
	return out, nil
}

// LoginCalls returns how many times Login was called
func (f *FakeInfisicalAPI) LoginCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls
}

// GetCalls returns how many times GetSecret was called
func (f *FakeInfisicalAPI) GetCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

// TokensSeen returns the tokens passed to GetSecret, in order
func (f *FakeInfisicalAPI) TokensSeen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

// ErrFakeInfisicalSecretNotFound is returned when a secret doesn't exist
var ErrFakeInfisicalSecretNotFound = &FakeInfisicalError{Code: 404, Message: "secret not found"}

// ErrFakeInfisicalUnauthorized is returned for auth failures
var ErrFakeInfisicalUnauthorized = &FakeInfisicalError{Code: 401, Message: "unauthorized"}

// ErrFakeInfisicalConflict is returned when creating a secret that exists
var ErrFakeInfisicalConflict = &FakeInfisicalError{Code: 400, Message: "secret already exists"}

// FakeInfisicalError mimics an HTTP error from the API
type FakeInfisicalError struct {
	Code    int
	Message string
}

func (e *FakeInfisicalError) Error() string {
	return e.Message
}

// StatusCode returns the HTTP status the real API would answer with
func (e *FakeInfisicalError) StatusCode() int {
	return e.Code
}

// Ensure FakeInfisicalAPI implements contracts.InfisicalAPI
var _ contracts.InfisicalAPI = (*FakeInfisicalAPI)(nil)
