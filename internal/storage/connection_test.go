package storage_test

import (
	"path/filepath"
	"strings"
	"testing"

	"docbase/internal/domain"
	"docbase/internal/storage"
)

func newDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "meta.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestConnectionStore_CreateAndGet(t *testing.T) {
	store := storage.NewConnectionStore(newDB(t))

	conn := &domain.StoreConnection{
		Name:     "prod mongo",
		Driver:   domain.StoreDriverMongoDB,
		Host:     "mongodb+srv://cluster0.example.mongodb.net/?retryWrites=true",
		Database: "app",
		Username: "ingest",
		SSLMode:  "require",
	}
	if err := store.CreateConnection(conn); err != nil {
		t.Fatalf("CreateConnection: %v", err)
	}
	if conn.ID == "" {
		t.Fatal("expected id to be stamped")
	}
	if conn.CreatedAt.IsZero() || conn.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be stamped")
	}

	got, err := store.GetConnection(conn.ID)
	if err != nil {
		t.Fatalf("GetConnection: %v", err)
	}
	if got.Name != conn.Name || got.Driver != conn.Driver || got.Host != conn.Host {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Database != "app" || got.Username != "ingest" || got.SSLMode != "require" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	// Empty ExtraJSON defaults to an empty object.
	if got.ExtraJSON != "{}" {
		t.Errorf("expected extra json default {}, got %q", got.ExtraJSON)
	}
	if !got.CreatedAt.Equal(conn.CreatedAt) {
		t.Errorf("created at drifted: %v vs %v", got.CreatedAt, conn.CreatedAt)
	}
}

func TestConnectionStore_GetMissing(t *testing.T) {
	store := storage.NewConnectionStore(newDB(t))

	_, err := store.GetConnection("no-such-id")
	if err == nil {
		t.Fatal("expected error for missing connection")
	}
	if !strings.Contains(err.Error(), "store connection not found") {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestConnectionStore_ListOrdersByName(t *testing.T) {
	store := storage.NewConnectionStore(newDB(t))

	for _, name := range []string{"zeta", "alpha", "mid"} {
		conn := &domain.StoreConnection{Name: name, Driver: domain.StoreDriverSQLite}
		if err := store.CreateConnection(conn); err != nil {
			t.Fatalf("CreateConnection %s: %v", name, err)
		}
	}

	list, err := store.ListConnections()
	if err != nil {
		t.Fatalf("ListConnections: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 connections, got %d", len(list))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, w := range want {
		if list[i].Name != w {
			t.Errorf("position %d: expected %q, got %q", i, w, list[i].Name)
		}
	}
}

func TestConnectionStore_Update(t *testing.T) {
	store := storage.NewConnectionStore(newDB(t))

	conn := &domain.StoreConnection{Name: "before", Driver: domain.StoreDriverPostgres, Host: "db1", Port: 5432}
	if err := store.CreateConnection(conn); err != nil {
		t.Fatalf("CreateConnection: %v", err)
	}

	conn.Name = "after"
	conn.Host = "db2"
	conn.Port = 5433
	if err := store.UpdateConnection(conn); err != nil {
		t.Fatalf("UpdateConnection: %v", err)
	}

	got, err := store.GetConnection(conn.ID)
	if err != nil {
		t.Fatalf("GetConnection: %v", err)
	}
	if got.Name != "after" || got.Host != "db2" || got.Port != 5433 {
		t.Errorf("update not applied: %+v", got)
	}
	if got.UpdatedAt.Before(got.CreatedAt) {
		t.Errorf("updated at %v precedes created at %v", got.UpdatedAt, got.CreatedAt)
	}
}

func TestConnectionStore_Delete(t *testing.T) {
	store := storage.NewConnectionStore(newDB(t))

	conn := &domain.StoreConnection{Name: "doomed", Driver: domain.StoreDriverSQLite}
	if err := store.CreateConnection(conn); err != nil {
		t.Fatalf("CreateConnection: %v", err)
	}
	if err := store.DeleteConnection(conn.ID); err != nil {
		t.Fatalf("DeleteConnection: %v", err)
	}
	if _, err := store.GetConnection(conn.ID); err == nil {
		t.Fatal("expected error getting deleted connection")
	}
}
