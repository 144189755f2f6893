package provider

import (
	"context"
	"errors"
	"testing"
	"time"
)

// ContractTest defines a standard test suite that all clients must pass
type ContractTest struct {
	// CreateClient returns a ready-to-use client backed by a test store
	CreateClient func(t *testing.T) Client

	// Project and Environment address the test store
	Project     string
	Environment string

	// SkipMutations skips the create/update/delete round trip
	SkipMutations bool
}

// RunContractTests runs the standard client contract test suite
func RunContractTests(t *testing.T, contract ContractTest) {
	t.Run("Contract", func(t *testing.T) {
		t.Run("Name", func(t *testing.T) {
			testClientName(t, contract)
		})

		t.Run("Authenticate", func(t *testing.T) {
			testClientAuthenticate(t, contract)
		})

		t.Run("FetchNotFound", func(t *testing.T) {
			testClientFetchNotFound(t, contract)
		})

		if !contract.SkipMutations {
			t.Run("Lifecycle", func(t *testing.T) {
				testClientLifecycle(t, contract)
			})
		}

		t.Run("ContextCancellation", func(t *testing.T) {
			testClientContextCancellation(t, contract)
		})
	})
}

func (c ContractTest) request(name, value string) SecretRequest {
	return SecretRequest{
		ProjectID:   c.Project,
		Environment: c.Environment,
		Path:        DefaultPath,
		Name:        name,
		Value:       value,
	}
}

func testClientName(t *testing.T, contract ContractTest) {
	c := contract.CreateClient(t)

	name := c.Name()
	if name == "" {
		t.Error("Client.Name() returned empty string")
	}
	if name != c.Name() {
		t.Error("Client.Name() not consistent between calls")
	}
}

func testClientAuthenticate(t *testing.T, contract ContractTest) {
	c := contract.CreateClient(t)

	done := make(chan error, 1)
	go func() {
		done <- c.Authenticate(context.Background())
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Client.Authenticate() failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("Client.Authenticate() timed out after 5 seconds")
	}
}

func testClientFetchNotFound(t *testing.T, contract ContractTest) {
	c := contract.CreateClient(t)
	ctx := context.Background()
	if err := c.Authenticate(ctx); err != nil {
		t.Fatalf("Client.Authenticate() failed: %v", err)
	}

	name := "SECRET_THAT_DOES_NOT_EXIST_" + time.Now().Format("20060102150405")
	secret, err := c.FetchSecret(ctx, contract.request(name, ""))
	if err == nil {
		t.Fatalf("Client.FetchSecret() should fail for a missing secret, got value of length %d", len(secret.Value))
	}
	if !IsNotFound(err) {
		t.Errorf("Client.FetchSecret() returned %v, want NotFoundError", err)
	}
}

func testClientLifecycle(t *testing.T, contract ContractTest) {
	c := contract.CreateClient(t)
	ctx := context.Background()
	if err := c.Authenticate(ctx); err != nil {
		t.Fatalf("Client.Authenticate() failed: %v", err)
	}

	const name = "CONTRACT_LIFECYCLE_SECRET"

	if err := c.CreateSecret(ctx, contract.request(name, "v1")); err != nil {
		t.Fatalf("Client.CreateSecret() failed: %v", err)
	}
	got, err := c.FetchSecret(ctx, contract.request(name, ""))
	if err != nil {
		t.Fatalf("Client.FetchSecret() after create failed: %v", err)
	}
	if got.Value != "v1" {
		t.Errorf("Client.FetchSecret() after create = %q, want %q", got.Value, "v1")
	}

	if err := c.UpdateSecret(ctx, contract.request(name, "v2")); err != nil {
		t.Fatalf("Client.UpdateSecret() failed: %v", err)
	}
	got, err = c.FetchSecret(ctx, contract.request(name, ""))
	if err != nil {
		t.Fatalf("Client.FetchSecret() after update failed: %v", err)
	}
	if got.Value != "v2" {
		t.Errorf("Client.FetchSecret() after update = %q, want %q", got.Value, "v2")
	}

	list, err := c.ListSecrets(ctx, contract.request("", ""))
	if err != nil {
		t.Fatalf("Client.ListSecrets() failed: %v", err)
	}
	found := false
	for _, s := range list {
		if s.Name == name {
			found = true
		}
	}
	if !found {
		t.Errorf("Client.ListSecrets() did not include %s", name)
	}

	if err := c.DeleteSecret(ctx, contract.request(name, "")); err != nil {
		t.Fatalf("Client.DeleteSecret() failed: %v", err)
	}
	if _, err := c.FetchSecret(ctx, contract.request(name, "")); !IsNotFound(err) {
		t.Errorf("Client.FetchSecret() after delete returned %v, want NotFoundError", err)
	}
}

func testClientContextCancellation(t *testing.T, contract ContractTest) {
	c := contract.CreateClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchSecret(ctx, contract.request("ANY", ""))
	if err == nil {
		t.Fatal("Client.FetchSecret() with cancelled context should fail")
	}
	if !errors.Is(err, context.Canceled) {
		t.Logf("Client.FetchSecret() with cancelled context returned %v", err)
	}
}
