package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"docbase/internal/secret"
	"docbase/internal/service"
	"docbase/internal/storage"
)

// docbase runs as a headless daemon: upload jobs live in a local SQLite
// database, fire on their schedule or file-watch triggers, and write
// into the configured document stores. Manual runs go through the same
// service layer when docbase is embedded in a larger application.
func main() {
	dbPath := os.Getenv("DOCBASE_DB")
	if dbPath == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			log.Fatalf("resolve config dir: %v", err)
		}
		dbPath = filepath.Join(configDir, "docbase", "docbase.db")
	}

	db, err := storage.New(dbPath)
	if err != nil {
		log.Fatalf("open database %s: %v", dbPath, err)
	}
	defer db.Close()
	log.Printf("docbase: using database %s", dbPath)

	conns := service.NewConnectionService(storage.NewConnectionStore(db), newSecretStore())
	defer conns.Close()
	uploads := service.NewUploadService(storage.NewUploadStore(db), conns, service.LogEmitter{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	uploads.RestartWatchers(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Printf("docbase: shutting down")
	uploads.Stop()

	// Let in-flight uploads finish before the stores close.
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer waitCancel()
	uploads.WaitRunning(waitCtx)
}

// newSecretStore prefers the macOS Keychain when available and falls
// back to DOCBASE_SECRET_<KEY> environment variables.
func newSecretStore() secret.SecretStore {
	if ks, err := secret.NewKeychainStore(); err == nil {
		return ks
	}
	return secret.NewEnvStore()
}
