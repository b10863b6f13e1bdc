// cmd/server/main.go
package main

import (
	"context"
	"os"
	"time"

	"github.com/siftmail/sift-backend/api"
	"github.com/siftmail/sift-backend/config"
	"github.com/siftmail/sift-backend/internal/auth"
	"github.com/siftmail/sift-backend/internal/logger"
	"github.com/siftmail/sift-backend/internal/storage"
)

var customLog = logger.NewLogger()

const sessionPurgeInterval = time.Hour

func main() {
	customLog.Println("Starting Sift backend server...")

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		customLog.Fatalf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	// 2. Initialize Database Connection
	db, err := storage.ConnectDB(cfg)
	if err != nil {
		customLog.Fatalf("Failed to initialize database: %v", err)
		os.Exit(1)
	}
	defer func() {
		customLog.Println("Closing database connection...")
		if err := db.Close(); err != nil {
			customLog.Printf("Error closing database: %v", err)
		}
	}()

	// 3. Session authenticator + periodic purge of terminal sessions
	authn := auth.NewAuthenticator(db, cfg.SessionTTL)
	go func() {
		ticker := time.NewTicker(sessionPurgeInterval)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.QueryTimeout)
			deleted, err := authn.PurgeExpired(ctx)
			cancel()
			if err != nil {
				customLog.Warnf("Session purge failed: %v", err)
				continue
			}
			if deleted > 0 {
				customLog.Printf("Purged %d expired sessions", deleted)
			}
		}
	}()

	// 4. Setup Router (passing dependencies)
	router := api.SetupRouter(db, cfg, authn)

	// 5. Start Server
	customLog.Printf("Server listening on port %s", cfg.ServerPort)
	if err := router.Run(":" + cfg.ServerPort); err != nil {
		customLog.Fatalf("Failed to start server: %v", err)
	}
}
