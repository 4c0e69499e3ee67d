package secret

import (
	"fmt"
	"os/exec"
	"strings"
)

const keychainService = "docbase"

// KeychainStore keeps connection passwords in the macOS Keychain by
// shelling out to the `security` CLI. Each secret is a generic password
// under the "docbase" service, with the secret key as the account.
type KeychainStore struct{}

// NewKeychainStore creates a KeychainStore. It fails when the `security`
// CLI is not on PATH, so callers on non-macOS hosts can fall back to an
// EnvStore.
func NewKeychainStore() (*KeychainStore, error) {
	if _, err := exec.LookPath("security"); err != nil {
		return nil, fmt.Errorf("macos keychain unavailable: %w", err)
	}
	return &KeychainStore{}, nil
}

// Set writes the secret, replacing any existing value for the key.
func (k *KeychainStore) Set(key string, value []byte) error {
	out, err := exec.Command("security", "add-generic-password",
		"-s", keychainService,
		"-a", key,
		"-w", string(value),
		"-U", // update if exists
	).CombinedOutput()
	if err != nil {
		return fmt.Errorf("keychain set %s: %s: %w", key, strings.TrimSpace(string(out)), err)
	}
	return nil
}

// Get reads the secret for key. Missing keys are (nil, nil), matching
// the EnvStore contract.
func (k *KeychainStore) Get(key string) ([]byte, error) {
	out, err := exec.Command("security", "find-generic-password",
		"-s", keychainService,
		"-a", key,
		"-w", // print only the password
	).Output()
	if err != nil {
		// exit code 44 means not found; a locked keychain reads the same
		return nil, nil
	}
	return []byte(strings.TrimSpace(string(out))), nil
}

// Delete removes the secret for key. Missing items are not an error.
func (k *KeychainStore) Delete(key string) error {
	exec.Command("security", "delete-generic-password",
		"-s", keychainService,
		"-a", key,
	).Run()
	return nil
}
