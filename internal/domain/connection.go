package domain

import "time"

// StoreDriver represents the type of document-store backend.
type StoreDriver string

const (
	StoreDriverMongoDB  StoreDriver = "mongodb"
	StoreDriverPostgres StoreDriver = "postgres"
	StoreDriverMySQL    StoreDriver = "mysql"
	StoreDriverSQLite   StoreDriver = "sqlite"
)

// StoreConnection holds the metadata for connecting to a document store.
// The password is stored separately in the SecretStore, never in SQLite.
type StoreConnection struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Driver    StoreDriver `json:"driver"`
	Host      string      `json:"host"`     // hostname, URI, or file path (sqlite)
	Port      int         `json:"port"`     // 0 for sqlite or when the host is a full URI
	Database  string      `json:"database"` // db name, empty for sqlite
	Username  string      `json:"username"`
	SSLMode   string      `json:"sslMode"`
	ExtraJSON string      `json:"extraJson"` // driver-specific options
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// StoreConnectionStore manages CRUD operations for store connections.
type StoreConnectionStore interface {
	CreateConnection(c *StoreConnection) error
	GetConnection(id string) (*StoreConnection, error)
	ListConnections() ([]StoreConnection, error)
	UpdateConnection(c *StoreConnection) error
	DeleteConnection(id string) error
}
