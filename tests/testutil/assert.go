package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// AssertSecretRedacted verifies that a secret value does not appear in output
// and that the [REDACTED] marker does.
func AssertSecretRedacted(t *testing.T, output, secretValue string) {
	t.Helper()

	assert.NotContains(t, output, secretValue,
		"Secret value %q should be redacted, but appears in output", secretValue)
	assert.Contains(t, output, "[REDACTED]",
		"Expected [REDACTED] marker when secret is used")
}

// AssertNoSecretLeak verifies that none of the given secret values appear in
// output. Unlike AssertSecretRedacted it does not require the marker.
func AssertNoSecretLeak(t *testing.T, output string, secrets []string) {
	t.Helper()

	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		assert.NotContains(t, output, secret, "secret value leaked into output")
	}
}

// AssertErrorContains verifies that err is non-nil and mentions substr
func AssertErrorContains(t *testing.T, err error, substr string) {
	t.Helper()

	if !assert.Error(t, err) {
		return
	}
	assert.Contains(t, err.Error(), substr)
}

// AssertLinesContain verifies that every expected string appears on some line
// of output.
func AssertLinesContain(t *testing.T, output string, expectedLines []string) {
	t.Helper()

	lines := strings.Split(output, "\n")
	for _, expected := range expectedLines {
		found := false
		for _, line := range lines {
			if strings.Contains(line, expected) {
				found = true
				break
			}
		}
		assert.True(t, found, "expected a line containing %q in:\n%s", expected, output)
	}
}
