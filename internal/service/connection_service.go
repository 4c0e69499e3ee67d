package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"docbase/internal/docstore"
	"docbase/internal/domain"
	"docbase/internal/secret"
	"docbase/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Connection Service — store connections and pooled handles
// ─────────────────────────────────────────────────────────────

// CreateStoreConnInput is the service-layer DTO for creating/updating
// store connections.
type CreateStoreConnInput struct {
	Name      string `json:"name"`
	Driver    string `json:"driver"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Database  string `json:"database"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	SSLMode   string `json:"sslMode"`
	ExtraJSON string `json:"extraJson"`
}

// ConnectionService manages document-store connections. Passwords go to
// the SecretStore, never to SQLite. Live store handles are pooled so
// repeated uploads against one connection reuse the same client.
type ConnectionService struct {
	connStore *storage.ConnectionStore
	secrets   secret.SecretStore

	mu           sync.Mutex
	activeStores map[string]*storeEntry
}

type storeEntry struct {
	store     docstore.Store
	createdAt time.Time
}

// NewConnectionService creates a ConnectionService.
func NewConnectionService(connStore *storage.ConnectionStore, secrets secret.SecretStore) *ConnectionService {
	return &ConnectionService{
		connStore:    connStore,
		secrets:      secrets,
		activeStores: make(map[string]*storeEntry),
	}
}

// ── Connection CRUD ────────────────────────────────────────

func (s *ConnectionService) ListConnections() ([]domain.StoreConnection, error) {
	return s.connStore.ListConnections()
}

func (s *ConnectionService) GetConnection(id string) (*domain.StoreConnection, error) {
	return s.connStore.GetConnection(id)
}

func (s *ConnectionService) CreateConnection(input CreateStoreConnInput) (*domain.StoreConnection, error) {
	if err := validateDriver(input.Driver); err != nil {
		return nil, err
	}
	conn := &domain.StoreConnection{
		Name:      input.Name,
		Driver:    domain.StoreDriver(input.Driver),
		Host:      input.Host,
		Port:      input.Port,
		Database:  input.Database,
		Username:  input.Username,
		SSLMode:   input.SSLMode,
		ExtraJSON: input.ExtraJSON,
	}
	if err := s.connStore.CreateConnection(conn); err != nil {
		return nil, fmt.Errorf("create store connection: %w", err)
	}
	if input.Password != "" && s.secrets != nil {
		_ = s.secrets.Set("store:"+conn.ID, []byte(input.Password))
	}
	return conn, nil
}

func (s *ConnectionService) UpdateConnection(id string, input CreateStoreConnInput) error {
	if err := validateDriver(input.Driver); err != nil {
		return err
	}
	conn, err := s.connStore.GetConnection(id)
	if err != nil {
		return err
	}
	conn.Name = input.Name
	conn.Driver = domain.StoreDriver(input.Driver)
	conn.Host = input.Host
	conn.Port = input.Port
	conn.Database = input.Database
	conn.Username = input.Username
	conn.SSLMode = input.SSLMode
	conn.ExtraJSON = input.ExtraJSON
	if err := s.connStore.UpdateConnection(conn); err != nil {
		return err
	}
	if input.Password != "" && s.secrets != nil {
		_ = s.secrets.Set("store:"+id, []byte(input.Password))
	}
	// Invalidate the pooled handle so the next upload re-connects with new config.
	s.mu.Lock()
	if e, ok := s.activeStores[id]; ok {
		_ = e.store.Close()
		delete(s.activeStores, id)
	}
	s.mu.Unlock()
	return nil
}

func (s *ConnectionService) DeleteConnection(id string) error {
	s.mu.Lock()
	if e, ok := s.activeStores[id]; ok {
		_ = e.store.Close()
		delete(s.activeStores, id)
	}
	s.mu.Unlock()
	if s.secrets != nil {
		_ = s.secrets.Delete("store:" + id)
	}
	return s.connStore.DeleteConnection(id)
}

func validateDriver(driver string) error {
	switch domain.StoreDriver(driver) {
	case domain.StoreDriverMongoDB, domain.StoreDriverPostgres, domain.StoreDriverMySQL, domain.StoreDriverSQLite:
		return nil
	default:
		return fmt.Errorf("unsupported driver: %s", driver)
	}
}

// ── Store Access ───────────────────────────────────────────

// TestConnection opens (or reuses) the store for id and pings it.
func (s *ConnectionService) TestConnection(ctx context.Context, id string) error {
	st, err := s.OpenStore(id)
	if err != nil {
		return err
	}
	return st.Ping(ctx)
}

// ListCollections returns the collection names present in the store.
func (s *ConnectionService) ListCollections(ctx context.Context, id string) ([]string, error) {
	st, err := s.OpenStore(id)
	if err != nil {
		return nil, err
	}
	return st.Collections(ctx)
}

// SeedCollection inserts a single JSON document into a collection. An
// empty collection has nothing to sample, so uploads against it fail
// schema inference; seeding one exemplar document fixes that.
func (s *ConnectionService) SeedCollection(ctx context.Context, id, collectionID, docJSON string) error {
	var doc map[string]any
	if err := json.Unmarshal([]byte(docJSON), &doc); err != nil {
		return fmt.Errorf("parse seed document: %w", err)
	}
	st, err := s.OpenStore(id)
	if err != nil {
		return err
	}
	return st.Insert(ctx, collectionID, doc)
}

// ── Store Pool ─────────────────────────────────────────────

// OpenStore returns a pooled store handle for the connection, opening
// it on first use.
func (s *ConnectionService) OpenStore(id string) (docstore.Store, error) {
	s.mu.Lock()
	if e, ok := s.activeStores[id]; ok {
		s.mu.Unlock()
		return e.store, nil
	}
	s.mu.Unlock()

	conn, err := s.connStore.GetConnection(id)
	if err != nil {
		return nil, fmt.Errorf("get connection %s: %w", id, err)
	}

	var password string
	if s.secrets != nil {
		if pw, err := s.secrets.Get("store:" + id); err == nil {
			password = string(pw)
		}
	}

	st, err := docstore.New(conn, password)
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}

	s.mu.Lock()
	s.activeStores[id] = &storeEntry{store: st, createdAt: time.Now()}
	s.mu.Unlock()
	return st, nil
}

// Close tears down all pooled store handles.
func (s *ConnectionService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.activeStores {
		_ = entry.store.Close()
		delete(s.activeStores, id)
	}
}
