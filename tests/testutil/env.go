package testutil

import (
	"os"
	"sync"
	"testing"
)

// SetupTestEnv sets process environment variables for the duration of a test.
//
// The original environment is restored automatically when the test completes.
// Tests using it must not call t.Parallel.
//
// Example usage:
//
//	SetupTestEnv(t, map[string]string{
//	    "INFISICAL_PROJECT_ID": "proj-a",
//	    "DATABASE_URL":         "postgres://localhost/app",
//	})
func SetupTestEnv(t *testing.T, vars map[string]string) {
	t.Helper()

	original := make(map[string]string)
	unset := make([]string, 0)

	for key, value := range vars {
		if orig, ok := os.LookupEnv(key); ok {
			original[key] = orig
		} else {
			unset = append(unset, key)
		}

		if err := os.Setenv(key, value); err != nil {
			t.Fatalf("Failed to set environment variable %s: %v", key, err)
		}
	}

	t.Cleanup(func() {
		for key, value := range original {
			if err := os.Setenv(key, value); err != nil {
				t.Errorf("Failed to restore environment variable %s: %v", key, err)
			}
		}
		for _, key := range unset {
			if err := os.Unsetenv(key); err != nil {
				t.Errorf("Failed to unset environment variable %s: %v", key, err)
			}
		}
	})
}

// FakeEnv is an in-memory environment for code that takes a LookupEnv
// function. It is safe for concurrent use.
//
// Example usage:
//
//	env := testutil.NewFakeEnv(map[string]string{"API_KEY": "k"})
//	m, _ := secrets.New(secrets.WithLookupEnv(env.Lookup))
//	env.Set("API_KEY", "rotated")
type FakeEnv struct {
	mu      sync.Mutex
	vars    map[string]string
	lookups map[string]int
}

// NewFakeEnv copies vars into a new FakeEnv
func NewFakeEnv(vars map[string]string) *FakeEnv {
	e := &FakeEnv{
		vars:    make(map[string]string, len(vars)),
		lookups: make(map[string]int),
	}
	for k, v := range vars {
		e.vars[k] = v
	}
	return e
}

// Lookup has the signature of os.LookupEnv
func (e *FakeEnv) Lookup(key string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lookups[key]++
	v, ok := e.vars[key]
	return v, ok
}

// Set stores a variable
func (e *FakeEnv) Set(key, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vars[key] = value
}

// Unset removes a variable
func (e *FakeEnv) Unset(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.vars, key)
}

// Lookups returns how many times key was looked up
func (e *FakeEnv) Lookups(key string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lookups[key]
}
