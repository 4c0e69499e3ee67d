package docstore

import (
	"context"
	"fmt"

	"docbase/internal/domain"
)

// Store abstracts a schema-less document store. Collections are
// addressed by name; documents are plain maps. Sample and BatchWrite
// are the two operations the upload pipeline consumes; the rest serve
// connection management and job reporting.
type Store interface {
	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Sample reads up to n existing documents from a collection, in the
	// store's natural order. An empty collection yields an empty slice,
	// not an error.
	Sample(ctx context.Context, collectionID string, n int) ([]map[string]any, error)

	// BatchWrite persists docs as one atomic write: either every
	// document in the batch is stored or none are.
	BatchWrite(ctx context.Context, collectionID string, docs []map[string]any) error

	// Insert persists a single document.
	Insert(ctx context.Context, collectionID string, doc map[string]any) error

	// Collections lists the collection names present in the store.
	Collections(ctx context.Context) ([]string, error)

	// Count returns the number of documents in a collection. A missing
	// collection counts as zero.
	Count(ctx context.Context, collectionID string) (int64, error)

	// Close releases the underlying connection.
	Close() error
}

// New creates a Store for the given connection. The password must be
// provided separately (from SecretStore).
func New(conn *domain.StoreConnection, password string) (Store, error) {
	switch conn.Driver {
	case domain.StoreDriverSQLite:
		return newSQLiteStore(conn)
	case domain.StoreDriverMySQL:
		return newSQLStore("mysql", buildMySQLDSN(conn, password))
	case domain.StoreDriverPostgres:
		return newSQLStore("postgres", buildPostgresDSN(conn, password))
	case domain.StoreDriverMongoDB:
		return newMongoStore(conn, password)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", conn.Driver)
	}
}
