package config

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringService is the OS keyring service name holding client secrets
const KeyringService = "secretchain"

// ErrNoStoredSecret is returned when the keyring holds no entry for a client id
var ErrNoStoredSecret = errors.New("no client secret stored in keyring")

// StoreClientSecret saves the machine identity secret for clientID in the OS keyring
func StoreClientSecret(clientID, secret string) error {
	if clientID == "" {
		return fmt.Errorf("client id is required")
	}
	if secret == "" {
		return fmt.Errorf("client secret is required")
	}
	if err := keyring.Set(KeyringService, clientID, secret); err != nil {
		return fmt.Errorf("failed to store client secret in keyring: %w", err)
	}
	return nil
}

// LookupClientSecret reads the secret stored for clientID
func LookupClientSecret(clientID string) (string, error) {
	secret, err := keyring.Get(KeyringService, clientID)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNoStoredSecret
		}
		return "", fmt.Errorf("failed to read keyring: %w", err)
	}
	return secret, nil
}

// DeleteClientSecret removes a stored secret; a missing entry is not an error
func DeleteClientSecret(clientID string) error {
	err := keyring.Delete(KeyringService, clientID)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete keyring entry: %w", err)
	}
	return nil
}
