package providers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/secretchain/internal/providers"
	"github.com/systmms/secretchain/pkg/provider"
	"github.com/systmms/secretchain/tests/fakes"
)

func newAWSProvider(t *testing.T, sm *fakes.FakeSecretsManagerClient, st *fakes.FakeSTSClient) *providers.AWSSecretsManagerProvider {
	t.Helper()
	p, err := providers.NewAWSSecretsManagerProvider(context.Background(),
		providers.AWSConfig{Region: "eu-west-1"},
		providers.WithSecretsManagerClient(sm),
		providers.WithSTSClient(st),
	)
	require.NoError(t, err)
	return p
}

func TestSecretID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  provider.SecretRequest
		want string
	}{
		{
			name: "root_folder",
			req:  provider.SecretRequest{ProjectID: "app", Environment: "prod", Name: "DB_URL"},
			want: "app/prod/DB_URL",
		},
		{
			name: "nested_folder",
			req:  provider.SecretRequest{ProjectID: "app", Environment: "prod", Path: "/services/api/", Name: "KEY"},
			want: "app/prod/services/api/KEY",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, providers.SecretID(tt.req))
		})
	}
}

func TestAWSSecretsManagerFetch(t *testing.T) {
	t.Parallel()

	sm := fakes.NewFakeSecretsManagerClient()
	sm.AddSecretString("app/prod/DB_URL", "postgres://db")
	sm.AddSecretBinary("app/prod/CERT", []byte("binary-cert"))
	sm.Errors["app/prod/DENIED"] = errors.New("AccessDeniedException: not allowed")
	sm.Errors["app/prod/FLAKY"] = errors.New("connection reset by peer")

	p := newAWSProvider(t, sm, fakes.NewFakeSTSClient())
	ctx := context.Background()
	req := func(name string) provider.SecretRequest {
		return provider.SecretRequest{ProjectID: "app", Environment: "prod", Name: name}
	}

	secret, err := p.FetchSecret(ctx, req("DB_URL"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://db", secret.Value)
	assert.Equal(t, "DB_URL", secret.Name)
	assert.NotEmpty(t, secret.Version)

	secret, err = p.FetchSecret(ctx, req("CERT"))
	require.NoError(t, err)
	assert.Equal(t, "binary-cert", secret.Value)

	_, err = p.FetchSecret(ctx, req("MISSING"))
	assert.True(t, provider.IsNotFound(err), "got %v", err)

	_, err = p.FetchSecret(ctx, req("DENIED"))
	assert.True(t, provider.IsAuthError(err), "got %v", err)

	_, err = p.FetchSecret(ctx, req("FLAKY"))
	require.Error(t, err)
	assert.False(t, provider.IsNotFound(err))
	assert.Contains(t, err.Error(), "AWS Secrets Manager error")
}

func TestAWSSecretsManagerAuthenticate(t *testing.T) {
	t.Parallel()

	st := fakes.NewFakeSTSClient()
	p := newAWSProvider(t, fakes.NewFakeSecretsManagerClient(), st)

	require.NoError(t, p.Authenticate(context.Background()))
	assert.Equal(t, 1, st.Calls())
	assert.Equal(t, "aws", p.Name())
	assert.Equal(t, "eu-west-1", p.Region())

	st.Err = errors.New("ExpiredToken: the security token included in the request is expired")
	err := p.Authenticate(context.Background())
	assert.True(t, provider.IsAuthError(err), "got %v", err)
}

func TestAWSSecretsManagerListPaginatesAndFilters(t *testing.T) {
	t.Parallel()

	sm := fakes.NewFakeSecretsManagerClient()
	sm.PageSize = 2
	for _, name := range []string{"A", "B", "C", "D", "E"} {
		sm.AddSecretString("app/prod/"+name, "v")
	}
	sm.AddSecretString("app/prod/nested/F", "v")
	sm.AddSecretString("app/dev/G", "v")

	p := newAWSProvider(t, sm, fakes.NewFakeSTSClient())
	list, err := p.ListSecrets(context.Background(), provider.SecretRequest{ProjectID: "app", Environment: "prod"})
	require.NoError(t, err)

	var names []string
	for _, s := range list {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, names)
	assert.Len(t, sm.Names(), 7, "listing is read-only")
	assert.GreaterOrEqual(t, sm.CallCount("ListSecrets"), 3)

	nested, err := p.ListSecrets(context.Background(), provider.SecretRequest{ProjectID: "app", Environment: "prod", Path: "nested"})
	require.NoError(t, err)
	require.Len(t, nested, 1)
	assert.Equal(t, "F", nested[0].Name)
}

func TestAWSSecretsManagerContract(t *testing.T) {
	provider.RunContractTests(t, provider.ContractTest{
		CreateClient: func(t *testing.T) provider.Client {
			return newAWSProvider(t, fakes.NewFakeSecretsManagerClient(), fakes.NewFakeSTSClient())
		},
		Project:     "app",
		Environment: "test",
	})
}
