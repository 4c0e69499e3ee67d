package docstore

import (
	"docbase/internal/domain"

	_ "modernc.org/sqlite"
)

// newSQLiteStore creates a store backed by a local SQLite file.
// Opens in WAL mode with a busy timeout for concurrent access.
func newSQLiteStore(conn *domain.StoreConnection) (*sqlStore, error) {
	dsn := conn.Host + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	return newSQLStore("sqlite", dsn)
}
