package providers

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/systmms/secretchain/internal/providers/contracts"
)

// InfisicalHTTPConfig configures the REST client
type InfisicalHTTPConfig struct {
	SiteURL            string
	ClientID           string
	ClientSecret       string
	Timeout            time.Duration
	CACert             string
	InsecureSkipVerify bool
}

// infisicalHTTPClient implements contracts.InfisicalAPI over HTTP
type infisicalHTTPClient struct {
	httpClient   *http.Client
	host         string
	clientID     string
	clientSecret string
}

// newInfisicalHTTPClient creates a new HTTP client for Infisical
func newInfisicalHTTPClient(cfg InfisicalHTTPConfig) (*infisicalHTTPClient, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{}

	if cfg.CACert != "" {
		caCert, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}

		transport.TLSClientConfig.RootCAs = caCertPool
	}

	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig.InsecureSkipVerify = true
	}

	return &infisicalHTTPClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		host:         strings.TrimRight(cfg.SiteURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
	}, nil
}

// Login authenticates using Universal Auth (machine identity)
func (c *infisicalHTTPClient) Login(ctx context.Context) (string, time.Duration, error) {
	body := map[string]string{
		"clientId":     c.clientID,
		"clientSecret": c.clientSecret,
	}

	var authResp struct {
		AccessToken       string `json:"accessToken"`
		ExpiresIn         int    `json:"expiresIn"`
		AccessTokenMaxTTL int    `json:"accessTokenMaxTTL"`
		TokenType         string `json:"tokenType"`
	}

	if err := c.do(ctx, "auth", http.MethodPost, "/api/v1/auth/universal-auth/login", nil, "", body, &authResp); err != nil {
		return "", 0, err
	}
	if authResp.AccessToken == "" {
		return "", 0, &InfisicalError{Op: "auth", Message: "empty access token in response"}
	}

	ttl := time.Duration(authResp.ExpiresIn) * time.Second
	if ttl == 0 {
		ttl = 30 * time.Second
	}

	return authResp.AccessToken, ttl, nil
}

type rawSecret struct {
	SecretKey     string    `json:"secretKey"`
	SecretValue   string    `json:"secretValue"`
	Version       int       `json:"version"`
	Type          string    `json:"type"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	SecretComment string    `json:"secretComment"`
}

func (s rawSecret) toContract() contracts.InfisicalSecret {
	return contracts.InfisicalSecret{
		SecretKey:     s.SecretKey,
		SecretValue:   s.SecretValue,
		Version:       s.Version,
		Type:          s.Type,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
		SecretComment: s.SecretComment,
	}
}

// GetSecret retrieves a single secret by name
func (c *infisicalHTTPClient) GetSecret(ctx context.Context, token string, loc contracts.InfisicalLocation, name string) (*contracts.InfisicalSecret, error) {
	q := locationQuery(loc)
	q.Set("type", "shared")
	q.Set("expandSecretReferences", "true")

	var resp struct {
		Secret rawSecret `json:"secret"`
	}
	if err := c.do(ctx, "fetch", http.MethodGet, secretURLPath(name), q, token, nil, &resp); err != nil {
		return nil, err
	}

	secret := resp.Secret.toContract()
	return &secret, nil
}

// CreateSecret creates a shared secret
func (c *infisicalHTTPClient) CreateSecret(ctx context.Context, token string, loc contracts.InfisicalLocation, name, value string) (*contracts.InfisicalSecret, error) {
	return c.writeSecret(ctx, "create", http.MethodPost, token, loc, name, value)
}

// UpdateSecret replaces the value of a shared secret
func (c *infisicalHTTPClient) UpdateSecret(ctx context.Context, token string, loc contracts.InfisicalLocation, name, value string) (*contracts.InfisicalSecret, error) {
	return c.writeSecret(ctx, "update", http.MethodPatch, token, loc, name, value)
}

func (c *infisicalHTTPClient) writeSecret(ctx context.Context, op, method, token string, loc contracts.InfisicalLocation, name, value string) (*contracts.InfisicalSecret, error) {
	body := locationBody(loc)
	body["secretValue"] = value

	var resp struct {
		Secret rawSecret `json:"secret"`
	}
	if err := c.do(ctx, op, method, secretURLPath(name), nil, token, body, &resp); err != nil {
		return nil, err
	}

	secret := resp.Secret.toContract()
	return &secret, nil
}

// DeleteSecret removes a shared secret
func (c *infisicalHTTPClient) DeleteSecret(ctx context.Context, token string, loc contracts.InfisicalLocation, name string) error {
	return c.do(ctx, "delete", http.MethodDelete, secretURLPath(name), nil, token, locationBody(loc), nil)
}

// ListSecrets lists the secrets in one folder
func (c *infisicalHTTPClient) ListSecrets(ctx context.Context, token string, loc contracts.InfisicalLocation) ([]contracts.InfisicalSecret, error) {
	var resp struct {
		Secrets []rawSecret `json:"secrets"`
	}
	if err := c.do(ctx, "list", http.MethodGet, "/api/v3/secrets/raw", locationQuery(loc), token, nil, &resp); err != nil {
		return nil, err
	}

	secrets := make([]contracts.InfisicalSecret, len(resp.Secrets))
	for i, s := range resp.Secrets {
		secrets[i] = s.toContract()
	}
	return secrets, nil
}

// do sends one request and decodes a 2xx JSON response into out
func (c *infisicalHTTPClient) do(ctx context.Context, op, method, path string, query url.Values, token string, body, out interface{}) error {
	endpoint := c.host + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &InfisicalError{Op: op, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &InfisicalError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    apiMessage(bodyBytes),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

// apiMessage extracts the "message" field from an error body when present
func apiMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(body))
}

func secretURLPath(name string) string {
	return "/api/v3/secrets/raw/" + url.PathEscape(name)
}

func locationQuery(loc contracts.InfisicalLocation) url.Values {
	q := url.Values{}
	q.Set("workspaceId", loc.WorkspaceID)
	q.Set("environment", loc.Environment)
	q.Set("secretPath", loc.SecretPath)
	return q
}

func locationBody(loc contracts.InfisicalLocation) map[string]interface{} {
	return map[string]interface{}{
		"workspaceId": loc.WorkspaceID,
		"environment": loc.Environment,
		"secretPath":  loc.SecretPath,
		"type":        "shared",
	}
}

// Ensure infisicalHTTPClient implements contracts.InfisicalAPI
var _ contracts.InfisicalAPI = (*infisicalHTTPClient)(nil)
