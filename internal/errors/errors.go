package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context.
// CRUD calls that cannot resolve a project id fail with a ConfigError and are never retried.
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// ErrMissingSecret is matched by every MissingSecretError via errors.Is
var ErrMissingSecret = errors.New("secret not found")

// MissingSecretError is returned when no scope and no environment variable
// produced a value for a required secret.
type MissingSecretError struct {
	Key string
	// Checked lists every source that was consulted, in order
	Checked []string
	// Failures holds per-scope diagnostics (scope name -> reason)
	Failures map[string]string
}

func (e *MissingSecretError) Error() string {
	msg := fmt.Sprintf("required secret '%s' not found", e.Key)
	if len(e.Checked) > 0 {
		msg += " (checked: " + strings.Join(e.Checked, ", ") + ")"
	}
	return msg
}

func (e *MissingSecretError) Is(target error) bool {
	return target == ErrMissingSecret
}

// Suggestion returns a hint naming where the secret should be defined
func (e *MissingSecretError) Suggestion() string {
	return fmt.Sprintf("Define '%s' in one of the configured projects or export it as an environment variable", e.Key)
}

// InitializationError records a failed provider authentication. It never
// propagates out of secret resolution; the resolver degrades to environment only.
type InitializationError struct {
	Backend string
	Err     error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("%s provider initialization failed: %v", e.Backend, e.Err)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}

// ProviderUnavailableError is returned when a provider operation could not be
// completed, either because retries were exhausted or because the provider is
// not usable for this process.
type ProviderUnavailableError struct {
	Scope     string
	Operation string
	Attempts  int
	Err       error
}

func (e *ProviderUnavailableError) Error() string {
	msg := fmt.Sprintf("provider unavailable during %s", e.Operation)
	if e.Scope != "" {
		msg += fmt.Sprintf(" in scope '%s'", e.Scope)
	}
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempt(s)", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderUnavailableError) Unwrap() error {
	return e.Err
}

// ProviderError enhances provider-specific errors with context
func ProviderError(provider string, operation string, err error) error {
	suggestion := getProviderSuggestion(provider, err)

	return UserError{
		Message:    fmt.Sprintf("%s provider error during %s", provider, operation),
		Suggestion: suggestion,
		Err:        err,
	}
}

// getProviderSuggestion returns helpful suggestions based on provider and error
func getProviderSuggestion(provider string, err error) string {
	errStr := err.Error()

	switch provider {
	case "infisical":
		if strings.Contains(errStr, "401") || strings.Contains(errStr, "unauthorized") {
			return "Check INFISICAL_CLIENT_ID and INFISICAL_CLIENT_SECRET, or run 'secretchain login'"
		}
		if strings.Contains(errStr, "403") || strings.Contains(errStr, "forbidden") {
			return "Grant the machine identity access to the project and environment"
		}
		if strings.Contains(errStr, "404") || strings.Contains(errStr, "not found") {
			return "Verify the project id, environment slug and secret path"
		}

	case "aws", "aws-secretsmanager":
		if strings.Contains(errStr, "credentials") || strings.Contains(errStr, "authorization") {
			return "Configure AWS credentials: 'aws configure' or set AWS_PROFILE"
		}
		if strings.Contains(errStr, "AccessDenied") {
			return "Check IAM permissions for secretsmanager:GetSecretValue"
		}
		if strings.Contains(errStr, "ResourceNotFoundException") {
			return "Verify the secret name and region. List secrets with: 'aws secretsmanager list-secrets'"
		}
		if strings.Contains(errStr, "ThrottlingException") {
			return "AWS rate limit exceeded. Wait a moment and try again"
		}
	}

	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and provider configuration"
	}

	return ""
}

// SimplifyError turns internal errors into user facing ones for the CLI
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	var missing *MissingSecretError
	if errors.As(err, &missing) {
		return UserError{
			Message:    missing.Error(),
			Suggestion: missing.Suggestion(),
			Err:        err,
		}
	}

	var unavailable *ProviderUnavailableError
	if errors.As(err, &unavailable) {
		return UserError{
			Message:    unavailable.Error(),
			Suggestion: "Run 'secretchain doctor' to check provider connectivity and credentials",
			Err:        err,
		}
	}

	var userErr UserError
	if errors.As(err, &userErr) {
		return userErr
	}
	var cfgErr ConfigError
	if errors.As(err, &cfgErr) {
		return cfgErr
	}

	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	return err
}
