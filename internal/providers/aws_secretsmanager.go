package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/systmms/secretchain/pkg/provider"
)

// AWSName is the client name reported by AWSSecretsManagerProvider
const AWSName = "aws"

// SecretsManagerClientAPI defines the Secrets Manager operations the provider
// uses. This allows for mocking in tests.
type SecretsManagerClientAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	DeleteSecret(ctx context.Context, params *secretsmanager.DeleteSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error)
	ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
}

// STSClientAPI is the identity check used by Authenticate
type STSClientAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// AWSConfig configures the AWS backend
type AWSConfig struct {
	Region   string
	Endpoint string // optional custom endpoint for LocalStack or testing
	// Optional static credentials; the default chain is used otherwise
	AccessKeyID     string
	SecretAccessKey string
}

// AWSSecretsManagerProvider stores each secret as
// <project>/<environment>[/<path>]/<name> in AWS Secrets Manager.
type AWSSecretsManagerProvider struct {
	name   string
	client SecretsManagerClientAPI
	sts    STSClientAPI
	region string
}

// AWSOption is a functional option for configuring the AWS provider
type AWSOption func(*AWSSecretsManagerProvider)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing)
func WithSecretsManagerClient(client SecretsManagerClientAPI) AWSOption {
	return func(p *AWSSecretsManagerProvider) {
		p.client = client
	}
}

// WithSTSClient sets a custom STS client (for testing)
func WithSTSClient(client STSClientAPI) AWSOption {
	return func(p *AWSSecretsManagerProvider) {
		p.sts = client
	}
}

// NewAWSSecretsManagerProvider creates a new AWS Secrets Manager provider
func NewAWSSecretsManagerProvider(ctx context.Context, cfg AWSConfig, opts ...AWSOption) (*AWSSecretsManagerProvider, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	p := &AWSSecretsManagerProvider{
		name:   AWSName,
		region: region,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client != nil && p.sts != nil {
		return p, nil
	}

	configOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if p.client == nil {
		p.client = secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		})
	}
	if p.sts == nil {
		p.sts = sts.NewFromConfig(awsCfg, func(o *sts.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		})
	}
	return p, nil
}

// Name returns the provider name
func (p *AWSSecretsManagerProvider) Name() string {
	return p.name
}

// Region returns the configured AWS region
func (p *AWSSecretsManagerProvider) Region() string {
	return p.region
}

// Authenticate verifies the credential chain with sts:GetCallerIdentity
func (p *AWSSecretsManagerProvider) Authenticate(ctx context.Context) error {
	out, err := p.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return provider.AuthError{
			Provider: p.name,
			Message:  fmt.Sprintf("AWS credential check failed: %v", err),
		}
	}
	if out.Arn == nil {
		return provider.AuthError{Provider: p.name, Message: "caller identity has no ARN"}
	}
	return nil
}

// FetchSecret retrieves the current value of one secret
func (p *AWSSecretsManagerProvider) FetchSecret(ctx context.Context, req provider.SecretRequest) (provider.Secret, error) {
	if err := ctx.Err(); err != nil {
		return provider.Secret{}, err
	}

	id := SecretID(req)
	result, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		return provider.Secret{}, p.handleError(err, req.Name)
	}

	var value string
	switch {
	case result.SecretString != nil:
		value = *result.SecretString
	case result.SecretBinary != nil:
		value = string(result.SecretBinary)
	}

	secret := provider.Secret{
		Name:    req.Name,
		Value:   value,
		Version: aws.ToString(result.VersionId),
	}
	if result.CreatedDate != nil {
		secret.UpdatedAt = *result.CreatedDate
	}
	return secret, nil
}

// CreateSecret creates a new secret
func (p *AWSSecretsManagerProvider) CreateSecret(ctx context.Context, req provider.SecretRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(SecretID(req)),
		SecretString: aws.String(req.Value),
		Tags: []types.Tag{
			{Key: aws.String("secretchain:project"), Value: aws.String(req.ProjectID)},
			{Key: aws.String("secretchain:environment"), Value: aws.String(req.Environment)},
		},
	})
	if err != nil {
		return p.handleError(err, req.Name)
	}
	return nil
}

// UpdateSecret stores a new current version of an existing secret
func (p *AWSSecretsManagerProvider) UpdateSecret(ctx context.Context, req provider.SecretRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(SecretID(req)),
		SecretString: aws.String(req.Value),
	})
	if err != nil {
		return p.handleError(err, req.Name)
	}
	return nil
}

// DeleteSecret removes a secret immediately, without a recovery window
func (p *AWSSecretsManagerProvider) DeleteSecret(ctx context.Context, req provider.SecretRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.client.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
		SecretId:                   aws.String(SecretID(req)),
		ForceDeleteWithoutRecovery: aws.Bool(true),
	})
	if err != nil {
		return p.handleError(err, req.Name)
	}
	return nil
}

// ListSecrets lists the secrets directly under req.Path. Values are not
// returned; Secrets Manager only exposes them through GetSecretValue.
func (p *AWSSecretsManagerProvider) ListSecrets(ctx context.Context, req provider.SecretRequest) ([]provider.Secret, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := folderPrefix(req)
	paginator := secretsmanager.NewListSecretsPaginator(p.client, &secretsmanager.ListSecretsInput{
		Filters: []types.Filter{
			{Key: types.FilterNameStringTypeName, Values: []string{prefix}},
		},
	})

	var secrets []provider.Secret
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, p.handleError(err, prefix)
		}
		for _, entry := range page.SecretList {
			full := aws.ToString(entry.Name)
			name, ok := strings.CutPrefix(full, prefix)
			if !ok || name == "" || strings.Contains(name, "/") {
				continue
			}
			s := provider.Secret{Name: name}
			if entry.LastChangedDate != nil {
				s.UpdatedAt = *entry.LastChangedDate
			}
			secrets = append(secrets, s)
		}
	}
	return secrets, nil
}

// SecretID maps a request onto a Secrets Manager secret name
func SecretID(req provider.SecretRequest) string {
	return folderPrefix(req) + req.Name
}

func folderPrefix(req provider.SecretRequest) string {
	parts := []string{req.ProjectID, req.Environment}
	if folder := strings.Trim(req.NormalizedPath(), "/"); folder != "" {
		parts = append(parts, folder)
	}
	return strings.Join(parts, "/") + "/"
}

// handleError converts AWS errors to provider errors
func (p *AWSSecretsManagerProvider) handleError(err error, key string) error {
	if isAWSNotFound(err) {
		return provider.NotFoundError{
			Provider: p.name,
			Key:      key,
		}
	}
	if isAWSAuthError(err) {
		return provider.AuthError{
			Provider: p.name,
			Message:  fmt.Sprintf("AWS authentication/authorization failed: %v", err),
		}
	}
	return fmt.Errorf("AWS Secrets Manager error: %w", err)
}

var _ provider.Client = (*AWSSecretsManagerProvider)(nil)

// compile-time check that the paginator accepts our narrow client
var _ secretsmanager.ListSecretsAPIClient = SecretsManagerClientAPI(nil)
