package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

// TestConfigBuilder writes secretchain config files for tests.
//
// Example usage:
//
//	path := testutil.NewTestConfig(t).
//	    WithBackend("none").
//	    WithScope("proj-a", "project").
//	    WithCache(true, "1m").
//	    Write()
type TestConfigBuilder struct {
	t   *testing.T
	doc map[string]any
}

// NewTestConfig starts an empty config document
func NewTestConfig(t *testing.T) *TestConfigBuilder {
	t.Helper()
	return &TestConfigBuilder{t: t, doc: map[string]any{}}
}

// WithBackend sets the backend name
func (b *TestConfigBuilder) WithBackend(backend string) *TestConfigBuilder {
	b.doc["backend"] = backend
	return b
}

// WithEnvironment sets the provider environment slug
func (b *TestConfigBuilder) WithEnvironment(env string) *TestConfigBuilder {
	b.doc["environment"] = env
	return b
}

// WithScope appends a scope
func (b *TestConfigBuilder) WithScope(id, name string) *TestConfigBuilder {
	scopes, _ := b.doc["scopes"].([]map[string]any)
	b.doc["scopes"] = append(scopes, map[string]any{"id": id, "name": name})
	return b
}

// WithCache sets the cache section; ttl uses Go duration syntax
func (b *TestConfigBuilder) WithCache(enabled bool, ttl string) *TestConfigBuilder {
	b.doc["cache"] = map[string]any{"enabled": enabled, "ttl": ttl}
	return b
}

// WithRetry sets the retry section
func (b *TestConfigBuilder) WithRetry(maxRetries int, delay string) *TestConfigBuilder {
	b.doc["retry"] = map[string]any{"max_retries": maxRetries, "delay": delay}
	return b
}

// WithSection sets any top-level section verbatim
func (b *TestConfigBuilder) WithSection(name string, value any) *TestConfigBuilder {
	b.doc[name] = value
	return b
}

// Write marshals the document into a temp file and returns its path
func (b *TestConfigBuilder) Write() string {
	b.t.Helper()

	data, err := yaml.Marshal(b.doc)
	if err != nil {
		b.t.Fatalf("Failed to marshal test config: %v", err)
	}
	return WriteTestConfig(b.t, string(data))
}

// WriteTestConfig writes raw YAML into a temp dir and returns the file path
func WriteTestConfig(t *testing.T, yamlContent string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "secretchain.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}
