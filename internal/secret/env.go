package secret

import (
	"os"
	"strings"
	"sync"
)

const envPrefix = "DOCBASE_SECRET_"

// EnvStore implements SecretStore for headless deployments. Set and Delete
// operate on an in-memory map; Get falls back to a DOCBASE_SECRET_<KEY>
// environment variable when the key was never Set, so operators can provide
// passwords without any write surface.
type EnvStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewEnvStore creates an EnvStore.
func NewEnvStore() *EnvStore {
	return &EnvStore{values: make(map[string][]byte)}
}

// Set stores the secret in memory. The process environment is not modified.
func (e *EnvStore) Set(key string, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.values[key] = append([]byte(nil), value...)
	return nil
}

// Get returns the in-memory value for key, falling back to the
// DOCBASE_SECRET_<KEY> environment variable. Missing keys yield nil, nil.
func (e *EnvStore) Get(key string) ([]byte, error) {
	e.mu.RLock()
	v, ok := e.values[key]
	e.mu.RUnlock()
	if ok {
		return append([]byte(nil), v...), nil
	}
	if env, found := os.LookupEnv(envPrefix + envKey(key)); found {
		return []byte(env), nil
	}
	return nil, nil
}

// Delete removes the in-memory value. Environment variables are left alone.
func (e *EnvStore) Delete(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.values, key)
	return nil
}

// envKey converts a secret key like "store:3f2a" into an environment
// variable suffix: uppercased, non-alphanumeric characters replaced
// with underscores.
func envKey(key string) string {
	key = strings.ToUpper(key)
	return strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, key)
}
