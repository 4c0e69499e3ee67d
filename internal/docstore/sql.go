package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// sqlStore implements Store over a relational database: MySQL,
// Postgres, or SQLite. Each collection maps to its own table holding
// one JSON document per row, so the store stays schema-less from the
// caller's point of view.
type sqlStore struct {
	driverName string
	db         *sql.DB
}

// newSQLStore opens a generic SQL-backed document store.
func newSQLStore(driverName, dsn string) (*sqlStore, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	// Sensible pool settings for a background daemon
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	return &sqlStore{driverName: driverName, db: db}, nil
}

func (s *sqlStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

// collectionTable maps a collection name to its backing table. Names
// are prefixed and sanitized so arbitrary collection identifiers never
// reach the SQL layer raw.
func collectionTable(collectionID string) string {
	return "doc_" + sanitizeCollection(collectionID)
}

// sanitizeCollection lower-cases the name and folds anything outside
// [a-z0-9_] to '_'.
func sanitizeCollection(name string) string {
	lower := strings.ToLower(name)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// placeholder returns the 1-based bind placeholder for the driver.
func (s *sqlStore) placeholder(i int) string {
	if s.driverName == "postgres" {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

// ensureTable creates the collection table if it does not exist yet.
// Document stores create collections implicitly on first write; the
// SQL backends do the same.
func (s *sqlStore) ensureTable(ctx context.Context, table string) error {
	var ddl string
	switch s.driverName {
	case "postgres":
		ddl = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			doc JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`, table)
	case "mysql":
		ddl = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			doc JSON NOT NULL,
			created_at DATETIME NOT NULL
		)`, table)
	default: // sqlite
		ddl = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			doc TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`, table)
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure table %s: %w", table, err)
	}
	return nil
}

// hasTable reports whether the collection table exists. Sampling a
// collection that was never written must behave as empty, not create
// the table as a side effect.
func (s *sqlStore) hasTable(ctx context.Context, table string) (bool, error) {
	var query string
	switch s.driverName {
	case "postgres":
		query = `SELECT table_name FROM information_schema.tables
			 WHERE table_schema = current_schema() AND table_name = $1`
	case "mysql":
		query = `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
			 WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?`
	default: // sqlite
		query = `SELECT name FROM sqlite_master WHERE type='table' AND name = ?`
	}

	var name string
	err := s.db.QueryRowContext(ctx, query, table).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	return true, nil
}

func (s *sqlStore) Sample(ctx context.Context, collectionID string, n int) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	table := collectionTable(collectionID)
	exists, err := s.hasTable(ctx, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	query := fmt.Sprintf("SELECT doc FROM %s LIMIT %d", table, n)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", collectionID, err)
	}
	defer rows.Close()

	var docs []map[string]any
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan sample row: %w", err)
		}
		doc, err := decodeDoc(raw)
		if err != nil {
			return nil, fmt.Errorf("decode sample doc: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample: %w", err)
	}
	return docs, nil
}

// BatchWrite stores the whole batch inside one transaction, so a
// failed batch rolls back to exactly zero of its rows.
func (s *sqlStore) BatchWrite(ctx context.Context, collectionID string, docs []map[string]any) error {
	if len(docs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	table := collectionTable(collectionID)
	if err := s.ensureTable(ctx, table); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	insert := fmt.Sprintf("INSERT INTO %s (id, doc, created_at) VALUES (%s, %s, %s)",
		table, s.placeholder(1), s.placeholder(2), s.placeholder(3))

	now := time.Now()
	for _, doc := range docs {
		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode doc: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insert, uuid.New().String(), raw, now); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	log.Printf("[STORE] %s: wrote %d doc(s) to %s", s.driverName, len(docs), table)
	return nil
}

func (s *sqlStore) Insert(ctx context.Context, collectionID string, doc map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	table := collectionTable(collectionID)
	if err := s.ensureTable(ctx, table); err != nil {
		return err
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode doc: %w", err)
	}
	insert := fmt.Sprintf("INSERT INTO %s (id, doc, created_at) VALUES (%s, %s, %s)",
		table, s.placeholder(1), s.placeholder(2), s.placeholder(3))
	if _, err := s.db.ExecContext(ctx, insert, uuid.New().String(), raw, time.Now()); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

func (s *sqlStore) Collections(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var query string
	switch s.driverName {
	case "postgres":
		query = `SELECT table_name FROM information_schema.tables
			 WHERE table_schema = current_schema() ORDER BY table_name`
	case "mysql":
		query = `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
			 WHERE TABLE_SCHEMA = DATABASE() ORDER BY TABLE_NAME`
	default: // sqlite
		query = `SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			continue
		}
		if rest, ok := strings.CutPrefix(name, "doc_"); ok {
			names = append(names, rest)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return names, nil
}

func (s *sqlStore) Count(ctx context.Context, collectionID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	table := collectionTable(collectionID)
	exists, err := s.hasTable(ctx, table)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", collectionID, err)
	}
	return count, nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

// decodeDoc unmarshals a stored JSON document and re-hydrates
// timestamp strings into time.Time, so a date written by one upload is
// sampled back as a date by the next.
func decodeDoc(raw []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	for k, v := range doc {
		if s, ok := v.(string); ok {
			if t, ok := parseTimestamp(s); ok {
				doc[k] = t
			}
		}
	}
	return doc, nil
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
