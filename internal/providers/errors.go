package providers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// InfisicalError wraps Infisical API errors with context
type InfisicalError struct {
	Op         string // Operation: "auth", "fetch", "create", "update", "delete", "list"
	StatusCode int
	Message    string
	Err        error
}

func (e *InfisicalError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("infisical %s error (status %d): %s", e.Op, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("infisical %s error: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("infisical %s error: %s", e.Op, e.Message)
}

func (e *InfisicalError) Unwrap() error {
	return e.Err
}

// Infisical sentinel errors
var (
	ErrInfisicalSecretNotFound = fmt.Errorf("infisical secret not found")
	ErrInfisicalUnauthorized   = fmt.Errorf("infisical unauthorized")
)

// statusCoder is implemented by API errors that carry an HTTP status
type statusCoder interface {
	StatusCode() int
}

// infisicalStatus extracts the HTTP status and message from an API error
func infisicalStatus(err error) (int, string) {
	var ie *InfisicalError
	if errors.As(err, &ie) {
		return ie.StatusCode, ie.Message
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode(), err.Error()
	}
	return 0, ""
}

// IsInfisicalNotFound reports whether err means the secret does not exist
func IsInfisicalNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInfisicalSecretNotFound) {
		return true
	}
	status, msg := infisicalStatus(err)
	if status == http.StatusNotFound {
		return true
	}
	// some deployments answer 400 with a "not found" message
	return status == http.StatusBadRequest && strings.Contains(strings.ToLower(msg), "not found")
}

// IsInfisicalUnauthorized reports whether err means the access token was rejected
func IsInfisicalUnauthorized(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInfisicalUnauthorized) {
		return true
	}
	status, _ := infisicalStatus(err)
	return status == http.StatusUnauthorized
}

func isAWSNotFound(err error) bool {
	var resourceNotFound *types.ResourceNotFoundException
	return errors.As(err, &resourceNotFound)
}

func isAWSAuthError(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "AccessDenied") ||
		strings.Contains(errStr, "UnauthorizedOperation") ||
		strings.Contains(errStr, "InvalidClientTokenId") ||
		strings.Contains(errStr, "ExpiredToken") ||
		strings.Contains(errStr, "Forbidden")
}
