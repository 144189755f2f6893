package fakes

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/systmms/secretchain/pkg/provider"
)

// FakeProviderClient is an in-memory provider.Client.
//
// Secrets are addressed by project, folder path and name; the environment in
// a request is ignored. The fake can be told to fail whole projects, to fail a
// number of fetches before recovering, or to reject authentication.
//
// Example usage:
//
//	fake := fakes.NewFakeProviderClient("infisical").
//	    WithSecret("proj-1", "DATABASE_URL", "postgres://localhost/app").
//	    WithProjectError("proj-2", errors.New("connection refused"))
type FakeProviderClient struct {
	name string

	mu        sync.Mutex
	secrets   map[string]provider.Secret
	failOn    map[string]error
	transient map[string]*transientFailure
	authErr   error
	delay     time.Duration
	calls     map[string]int
	fetches   map[string]int
}

type transientFailure struct {
	remaining int
	err       error
}

// NewFakeProviderClient creates an empty fake
func NewFakeProviderClient(name string) *FakeProviderClient {
	return &FakeProviderClient{
		name:      name,
		secrets:   make(map[string]provider.Secret),
		failOn:    make(map[string]error),
		transient: make(map[string]*transientFailure),
		calls:     make(map[string]int),
		fetches:   make(map[string]int),
	}
}

func secretKey(project, path, name string) string {
	return project + "|" + provider.NormalizePath(path) + "|" + name
}

// WithSecret stores a secret at the root folder of project
func (f *FakeProviderClient) WithSecret(project, name, value string) *FakeProviderClient {
	return f.WithSecretAt(project, provider.DefaultPath, name, value)
}

// WithSecretAt stores a secret in a folder of project
func (f *FakeProviderClient) WithSecretAt(project, path, name, value string) *FakeProviderClient {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.secrets[secretKey(project, path, name)] = provider.Secret{
		Name:      name,
		Value:     value,
		Version:   "1",
		UpdatedAt: time.Now(),
	}
	return f
}

// WithProjectError makes every operation on project fail with err
func (f *FakeProviderClient) WithProjectError(project string, err error) *FakeProviderClient {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failOn[project] = err
	return f
}

// WithTransientError makes the next n fetches from project fail with err
func (f *FakeProviderClient) WithTransientError(project string, n int, err error) *FakeProviderClient {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.transient[project] = &transientFailure{remaining: n, err: err}
	return f
}

// WithAuthError makes Authenticate fail
func (f *FakeProviderClient) WithAuthError(err error) *FakeProviderClient {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.authErr = err
	return f
}

// WithDelay adds latency to every call
func (f *FakeProviderClient) WithDelay(d time.Duration) *FakeProviderClient {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.delay = d
	return f
}

// Name returns the client name
func (f *FakeProviderClient) Name() string {
	return f.name
}

// Authenticate succeeds unless WithAuthError was used
func (f *FakeProviderClient) Authenticate(ctx context.Context) error {
	if err := f.begin(ctx, "Authenticate"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authErr
}

// FetchSecret returns the stored secret or a NotFoundError
func (f *FakeProviderClient) FetchSecret(ctx context.Context, req provider.SecretRequest) (provider.Secret, error) {
	if err := f.begin(ctx, "FetchSecret"); err != nil {
		return provider.Secret{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetches[req.ProjectID]++
	if err := f.projectErr(req.ProjectID); err != nil {
		return provider.Secret{}, err
	}
	if tf, ok := f.transient[req.ProjectID]; ok && tf.remaining > 0 {
		tf.remaining--
		return provider.Secret{}, tf.err
	}

	secret, ok := f.secrets[secretKey(req.ProjectID, req.Path, req.Name)]
	if !ok {
		return provider.Secret{}, provider.NotFoundError{Provider: f.name, Key: req.Name}
	}
	return secret, nil
}

// CreateSecret stores a new secret, failing if it already exists
func (f *FakeProviderClient) CreateSecret(ctx context.Context, req provider.SecretRequest) error {
	if err := f.begin(ctx, "CreateSecret"); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.projectErr(req.ProjectID); err != nil {
		return err
	}
	key := secretKey(req.ProjectID, req.Path, req.Name)
	if _, exists := f.secrets[key]; exists {
		return errAlreadyExists{name: req.Name}
	}
	f.secrets[key] = provider.Secret{Name: req.Name, Value: req.Value, Version: "1", UpdatedAt: time.Now()}
	return nil
}

// UpdateSecret replaces an existing secret and bumps its version
func (f *FakeProviderClient) UpdateSecret(ctx context.Context, req provider.SecretRequest) error {
	if err := f.begin(ctx, "UpdateSecret"); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.projectErr(req.ProjectID); err != nil {
		return err
	}
	key := secretKey(req.ProjectID, req.Path, req.Name)
	existing, ok := f.secrets[key]
	if !ok {
		return provider.NotFoundError{Provider: f.name, Key: req.Name}
	}
	version, _ := strconv.Atoi(existing.Version)
	f.secrets[key] = provider.Secret{
		Name:      req.Name,
		Value:     req.Value,
		Version:   strconv.Itoa(version + 1),
		UpdatedAt: time.Now(),
	}
	return nil
}

// DeleteSecret removes a secret
func (f *FakeProviderClient) DeleteSecret(ctx context.Context, req provider.SecretRequest) error {
	if err := f.begin(ctx, "DeleteSecret"); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.projectErr(req.ProjectID); err != nil {
		return err
	}
	key := secretKey(req.ProjectID, req.Path, req.Name)
	if _, ok := f.secrets[key]; !ok {
		return provider.NotFoundError{Provider: f.name, Key: req.Name}
	}
	delete(f.secrets, key)
	return nil
}

// ListSecrets returns the secrets in one folder, sorted by name
func (f *FakeProviderClient) ListSecrets(ctx context.Context, req provider.SecretRequest) ([]provider.Secret, error) {
	if err := f.begin(ctx, "ListSecrets"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.projectErr(req.ProjectID); err != nil {
		return nil, err
	}
	prefix := secretKey(req.ProjectID, req.Path, "")
	var out []provider.Secret
	for key, secret := range f.secrets {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			out = append(out, secret)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CallCount returns how many times method was called
func (f *FakeProviderClient) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// FetchCount returns how many fetches reached project
func (f *FakeProviderClient) FetchCount(project string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[project]
}

// TotalFetches returns the number of FetchSecret calls across all projects
func (f *FakeProviderClient) TotalFetches() int {
	return f.CallCount("FetchSecret")
}

// Reset clears the call counters
func (f *FakeProviderClient) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = make(map[string]int)
	f.fetches = make(map[string]int)
}

func (f *FakeProviderClient) begin(ctx context.Context, method string) error {
	f.mu.Lock()
	f.calls[method]++
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

// projectErr must be called with f.mu held
func (f *FakeProviderClient) projectErr(project string) error {
	return f.failOn[project]
}

type errAlreadyExists struct {
	name string
}

func (e errAlreadyExists) Error() string {
	return "secret already exists: " + e.name
}

var _ provider.Client = (*FakeProviderClient)(nil)
