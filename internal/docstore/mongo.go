package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"docbase/internal/domain"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// mongoStore implements Store for MongoDB.
type mongoStore struct {
	client *mongo.Client
	dbName string
}

func newMongoStore(conn *domain.StoreConnection, password string) (*mongoStore, error) {
	uri := buildMongoURI(conn, password)
	dbName := mongoDatabaseName(conn, uri)

	// Mask password in URI for logging
	logURI := uri
	if password != "" && strings.Contains(logURI, password) {
		logURI = strings.ReplaceAll(logURI, password, "***")
	}
	log.Printf("[MONGO] Connecting with URI: %s", logURI)
	log.Printf("[MONGO] Database: %s", dbName)

	clientOpts := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(clientOpts)
	if err != nil {
		log.Printf("[MONGO] Connect failed: %v", err)
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	return &mongoStore{client: client, dbName: dbName}, nil
}

// buildMongoURI assembles the connection URI. A host that is already a
// full connection string (Atlas mongodb+srv:// or standard mongodb://)
// is used directly, with the <password> placeholder substituted;
// otherwise the URI is built from host:port plus ExtraJSON params.
func buildMongoURI(conn *domain.StoreConnection, password string) string {
	if strings.HasPrefix(conn.Host, "mongodb+srv://") || strings.HasPrefix(conn.Host, "mongodb://") {
		uri := conn.Host
		if password != "" {
			uri = strings.ReplaceAll(uri, "<password>", password)
			uri = strings.ReplaceAll(uri, "<db_password>", password)
		}
		// Append database name to path if not already in URI
		if conn.Database != "" && !strings.Contains(uri, "/"+conn.Database) {
			if idx := strings.Index(uri, "?"); idx != -1 {
				uri = strings.TrimRight(uri[:idx], "/") + "/" + conn.Database + uri[idx:]
			} else {
				uri = strings.TrimRight(uri, "/") + "/" + conn.Database
			}
		}
		return uri
	}

	port := conn.Port
	if port == 0 {
		port = 27017
	}
	var uri string
	if conn.Username != "" {
		uri = fmt.Sprintf("mongodb://%s:%s@%s:%d", conn.Username, password, conn.Host, port)
	} else {
		uri = fmt.Sprintf("mongodb://%s:%d", conn.Host, port)
	}

	// Parse ExtraJSON for authSource, replicaSet, etc.
	if conn.ExtraJSON != "" && conn.ExtraJSON != "{}" {
		var extras map[string]string
		if json.Unmarshal([]byte(conn.ExtraJSON), &extras) == nil {
			params := []string{}
			for k, v := range extras {
				params = append(params, k+"="+v)
			}
			if len(params) > 0 {
				uri += "?" + strings.Join(params, "&")
			}
		}
	}
	return uri
}

// mongoDatabaseName resolves the database to use: the configured name,
// else the path segment of the URI, else "test".
func mongoDatabaseName(conn *domain.StoreConnection, uri string) string {
	if conn.Database != "" {
		return conn.Database
	}
	rest := uri
	for _, prefix := range []string{"mongodb+srv://", "mongodb://"} {
		if strings.HasPrefix(rest, prefix) {
			rest = rest[len(prefix):]
			break
		}
	}
	// Path lives after the host: user:pass@host/DB_NAME?params
	if atIdx := strings.Index(rest, "@"); atIdx != -1 {
		rest = rest[atIdx+1:]
	}
	if slashIdx := strings.Index(rest, "/"); slashIdx != -1 {
		path := rest[slashIdx+1:]
		if qIdx := strings.Index(path, "?"); qIdx != -1 {
			path = path[:qIdx]
		}
		if path != "" {
			return path
		}
	}
	return "test"
}

func (m *mongoStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.client.Ping(ctx, nil)
}

// Sample reads up to n documents in natural order. The store-assigned
// _id is stripped: it is not part of the document shape callers work
// with, and uploads never supply one.
func (m *mongoStore) Sample(ctx context.Context, collectionID string, n int) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	coll := m.client.Database(m.dbName).Collection(collectionID)
	cursor, err := coll.Find(ctx, bson.M{}, options.Find().SetLimit(int64(n)))
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", collectionID, err)
	}
	defer cursor.Close(ctx)

	var docs []map[string]any
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode sample: %w", err)
		}
		out := make(map[string]any, len(doc))
		for k, v := range doc {
			if k == "_id" {
				continue
			}
			out[k] = fromBSON(v)
		}
		docs = append(docs, out)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("sample cursor: %w", err)
	}

	log.Printf("[MONGO] Sampled %d doc(s) from %q", len(docs), collectionID)
	return docs, nil
}

// BatchWrite inserts the whole batch as one ordered InsertMany. An
// ordered insert stops at the first failed document, so a failed batch
// never interleaves partial writes with later batches.
func (m *mongoStore) BatchWrite(ctx context.Context, collectionID string, docs []map[string]any) error {
	if len(docs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	payload := make([]any, len(docs))
	for i, doc := range docs {
		payload[i] = doc
	}

	coll := m.client.Database(m.dbName).Collection(collectionID)
	if _, err := coll.InsertMany(ctx, payload); err != nil {
		return fmt.Errorf("insert batch into %s: %w", collectionID, err)
	}
	return nil
}

func (m *mongoStore) Insert(ctx context.Context, collectionID string, doc map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	coll := m.client.Database(m.dbName).Collection(collectionID)
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert into %s: %w", collectionID, err)
	}
	return nil
}

func (m *mongoStore) Collections(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	names, err := m.client.Database(m.dbName).ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return names, nil
}

func (m *mongoStore) Count(ctx context.Context, collectionID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	coll := m.client.Database(m.dbName).Collection(collectionID)
	count, err := coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collectionID, err)
	}
	return count, nil
}

func (m *mongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// fromBSON converts driver-decoded values to the plain shapes the rest
// of the system works with: bson.DateTime → time.Time, bson.A → []any,
// nested documents → map[string]any, ObjectID → hex string.
func fromBSON(v any) any {
	switch val := v.(type) {
	case bson.DateTime:
		return val.Time()
	case bson.A:
		out := make([]any, len(val))
		for i, el := range val {
			out[i] = fromBSON(el)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(val))
		for k, el := range val {
			out[k] = fromBSON(el)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(val))
		for _, elem := range val {
			out[elem.Key] = fromBSON(elem.Value)
		}
		return out
	case bson.ObjectID:
		return val.Hex()
	default:
		return v
	}
}
