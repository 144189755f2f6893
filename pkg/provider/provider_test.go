package provider_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/systmms/secretchain/pkg/provider"
)

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"   ", "/"},
		{"/", "/"},
		{"app", "/app"},
		{"/app/", "/app"},
		{"/app//db/../cache", "/app/cache"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, provider.NormalizePath(tt.in), "NormalizePath(%q)", tt.in)
	}

	req := provider.SecretRequest{Path: "services/api/"}
	assert.Equal(t, "/services/api", req.NormalizedPath())
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	nf := provider.NotFoundError{Provider: "infisical", Key: "API_KEY"}
	assert.Equal(t, "secret not found: API_KEY in infisical", nf.Error())
	assert.True(t, provider.IsNotFound(nf))
	assert.True(t, provider.IsNotFound(fmt.Errorf("scope shared: %w", nf)))
	assert.False(t, provider.IsNotFound(fmt.Errorf("boom")))

	ae := provider.AuthError{Provider: "aws", Message: "expired token"}
	assert.Equal(t, "authentication failed for aws: expired token", ae.Error())
	assert.True(t, provider.IsAuthError(fmt.Errorf("init: %w", ae)))
	assert.False(t, provider.IsAuthError(nf))
}
