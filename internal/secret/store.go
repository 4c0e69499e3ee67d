package secret

// SecretStore holds sensitive values, keyed by strings like
// "store:<connection id>". Document-store passwords never touch the
// metadata database; they live here. Desktop builds use the macOS
// Keychain; headless deployments resolve secrets from the environment.
type SecretStore interface {
	// Set stores a secret under the given key, replacing any existing
	// value.
	Set(key string, value []byte) error

	// Get retrieves the secret for the given key. A missing key is
	// (nil, nil), not an error.
	Get(key string) ([]byte, error)

	// Delete removes the secret for the given key. Deleting a missing
	// key is not an error.
	Delete(key string) error
}
