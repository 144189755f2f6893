// Package secure keeps sensitive values encrypted while they sit in memory.
//
// Values are sealed in a memguard enclave (XSalsa20Poly1305, mlocked where
// the platform allows) and only decrypted into a locked buffer for the short
// moment a caller needs the plaintext.
package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned when revealing a value after Destroy
var ErrDestroyed = errors.New("sealed value has been destroyed")

// SealedString holds a string encrypted at rest in memory.
type SealedString struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	empty     bool
	destroyed bool
}

// Seal copies value into a new enclave. The caller's string is not modified.
func Seal(value string) *SealedString {
	if value == "" {
		// memguard refuses zero-length enclaves
		return &SealedString{empty: true}
	}
	// NewEnclave wipes its input, so hand it a private copy
	return &SealedString{enclave: memguard.NewEnclave([]byte(value))}
}

// Reveal decrypts the value and returns a plain copy of it.
func (s *SealedString) Reveal() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed {
		return "", ErrDestroyed
	}
	if s.empty {
		return "", nil
	}

	locked, err := s.enclave.Open()
	if err != nil {
		return "", err
	}
	defer locked.Destroy()

	// string(...) copies out of the locked buffer before it is wiped
	return string(locked.Bytes()), nil
}

// Destroy drops the enclave. It is idempotent; Reveal fails afterwards.
func (s *SealedString) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enclave = nil
	s.destroyed = true
}

// Purge wipes every memguard buffer in the process. Call once at exit.
func Purge() {
	memguard.Purge()
}
