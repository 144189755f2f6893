package fakes

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// FakeSecretsManagerClient is an in-memory stand-in for the Secrets Manager
// operations used by the AWS provider.
type FakeSecretsManagerClient struct {
	// Errors maps secret names to errors returned by every operation on them
	Errors map[string]error
	// ListErr is returned by ListSecrets if set
	ListErr error
	// PageSize splits ListSecrets output into pages; 0 returns everything at once
	PageSize int

	mu      sync.Mutex
	secrets map[string]*SecretData
	calls   map[string]int
}

// SecretData holds the data for a mock secret
type SecretData struct {
	SecretString    *string
	SecretBinary    []byte
	VersionId       *string
	CreatedDate     *time.Time
	LastChangedDate *time.Time
	Tags            []types.Tag
	version         int
}

// NewFakeSecretsManagerClient creates a new mock Secrets Manager client
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Errors:  make(map[string]error),
		secrets: make(map[string]*SecretData),
		calls:   make(map[string]int),
	}
}

// AddSecretString adds a string secret to the mock client
func (f *FakeSecretsManagerClient) AddSecretString(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secrets[name] = newSecretData(aws.String(value), nil, 1)
}

// AddSecretBinary adds a binary secret to the mock client
func (f *FakeSecretsManagerClient) AddSecretBinary(name string, value []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secrets[name] = newSecretData(nil, value, 1)
}

// Names returns the stored secret names, sorted
func (f *FakeSecretsManagerClient) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, 0, len(f.secrets))
	for name := range f.secrets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CallCount returns how many times an operation was invoked
func (f *FakeSecretsManagerClient) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func newSecretData(s *string, b []byte, version int) *SecretData {
	now := time.Now()
	return &SecretData{
		SecretString:    s,
		SecretBinary:    b,
		VersionId:       aws.String(fmt.Sprintf("v%d-abc123", version)),
		CreatedDate:     &now,
		LastChangedDate: &now,
		version:         version,
	}
}

func notFound(name string) error {
	return &types.ResourceNotFoundException{
		Message: aws.String(fmt.Sprintf("Secrets Manager can't find the specified secret: %s", name)),
	}
}

func arn(name string) *string {
	return aws.String(fmt.Sprintf("arn:aws:secretsmanager:us-east-1:123456789012:secret:%s", name))
}

// GetSecretValue mocks the GetSecretValue operation
func (f *FakeSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetSecretValue"]++

	name := aws.ToString(params.SecretId)
	if err, exists := f.Errors[name]; exists {
		return nil, err
	}
	data, exists := f.secrets[name]
	if !exists {
		return nil, notFound(name)
	}

	return &secretsmanager.GetSecretValueOutput{
		ARN:           arn(name),
		Name:          params.SecretId,
		SecretString:  data.SecretString,
		SecretBinary:  data.SecretBinary,
		VersionId:     data.VersionId,
		VersionStages: []string{"AWSCURRENT"},
		CreatedDate:   data.LastChangedDate,
	}, nil
}

// CreateSecret mocks the CreateSecret operation
func (f *FakeSecretsManagerClient) CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateSecret"]++

	name := aws.ToString(params.Name)
	if err, exists := f.Errors[name]; exists {
		return nil, err
	}
	if _, exists := f.secrets[name]; exists {
		return nil, &types.ResourceExistsException{
			Message: aws.String(fmt.Sprintf("the secret %s already exists", name)),
		}
	}

	data := newSecretData(params.SecretString, params.SecretBinary, 1)
	data.Tags = params.Tags
	f.secrets[name] = data

	return &secretsmanager.CreateSecretOutput{
		ARN:       arn(name),
		Name:      params.Name,
		VersionId: data.VersionId,
	}, nil
}

// PutSecretValue mocks the PutSecretValue operation
func (f *FakeSecretsManagerClient) PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["PutSecretValue"]++

	name := aws.ToString(params.SecretId)
	if err, exists := f.Errors[name]; exists {
		return nil, err
	}
	existing, exists := f.secrets[name]
	if !exists {
		return nil, notFound(name)
	}

	data := newSecretData(params.SecretString, params.SecretBinary, existing.version+1)
	data.CreatedDate = existing.CreatedDate
	data.Tags = existing.Tags
	f.secrets[name] = data

	return &secretsmanager.PutSecretValueOutput{
		ARN:           arn(name),
		Name:          params.SecretId,
		VersionId:     data.VersionId,
		VersionStages: []string{"AWSCURRENT"},
	}, nil
}

// DeleteSecret mocks the DeleteSecret operation
func (f *FakeSecretsManagerClient) DeleteSecret(ctx context.Context, params *secretsmanager.DeleteSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["DeleteSecret"]++

	name := aws.ToString(params.SecretId)
	if err, exists := f.Errors[name]; exists {
		return nil, err
	}
	if _, exists := f.secrets[name]; !exists {
		return nil, notFound(name)
	}
	delete(f.secrets, name)

	now := time.Now()
	return &secretsmanager.DeleteSecretOutput{
		ARN:          arn(name),
		Name:         params.SecretId,
		DeletionDate: &now,
	}, nil
}

// ListSecrets mocks the ListSecrets operation. Name filters match by prefix,
// as the real service does. NextToken is the decimal offset of the next page.
func (f *FakeSecretsManagerClient) ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ListSecrets"]++

	if f.ListErr != nil {
		return nil, f.ListErr
	}

	var prefixes []string
	for _, filter := range params.Filters {
		if filter.Key == types.FilterNameStringTypeName {
			prefixes = append(prefixes, filter.Values...)
		}
	}

	names := make([]string, 0, len(f.secrets))
	for name := range f.secrets {
		if len(prefixes) == 0 || hasAnyPrefix(name, prefixes) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	start := 0
	if params.NextToken != nil {
		start, _ = strconv.Atoi(*params.NextToken)
	}
	end := len(names)
	if f.PageSize > 0 && start+f.PageSize < end {
		end = start + f.PageSize
	}

	out := &secretsmanager.ListSecretsOutput{}
	for _, name := range names[start:end] {
		data := f.secrets[name]
		out.SecretList = append(out.SecretList, types.SecretListEntry{
			ARN:             arn(name),
			Name:            aws.String(name),
			LastChangedDate: data.LastChangedDate,
			Tags:            data.Tags,
		})
	}
	if end < len(names) {
		out.NextToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// FakeSTSClient answers GetCallerIdentity
type FakeSTSClient struct {
	Account string
	Err     error
	calls   int
	mu      sync.Mutex
}

// NewFakeSTSClient returns a client reporting a fixed test account
func NewFakeSTSClient() *FakeSTSClient {
	return &FakeSTSClient{Account: "123456789012"}
}

// GetCallerIdentity mocks the GetCallerIdentity operation
func (f *FakeSTSClient) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.Err != nil {
		return nil, f.Err
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String(f.Account),
		Arn:     aws.String(fmt.Sprintf("arn:aws:iam::%s:user/secretchain-test", f.Account)),
		UserId:  aws.String("AIDATESTUSER"),
	}, nil
}

// Calls returns how many identity checks were made
func (f *FakeSTSClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
