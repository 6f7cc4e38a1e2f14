/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave engine server. Handles configuration,
  dependency wiring, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load TOML configuration (defaults when absent)
  3. Initialize SQLite store
  4. Wire ledger, manager and document generator
  5. Start HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to TOML configuration (default: leave.toml)
  -db      SQLite database path, overrides the config file
           Use ":memory:" for an in-memory database
  -addr    Listen address, overrides the config file

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with defaults
  ./server

  # Run with an explicit config and database
  ./server -config=./leave.toml -db=./data/leave.db

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration format
*/
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atlas-hr/leave-engine/api"
	"github.com/atlas-hr/leave-engine/config"
	"github.com/atlas-hr/leave-engine/docs"
	"github.com/atlas-hr/leave-engine/leave"
	"github.com/atlas-hr/leave-engine/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "leave.toml", "TOML configuration path")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	addr := flag.String("addr", "", "listen address (overrides config)")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Server.DBPath = *dbPath
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	settings, err := cfg.Settings()
	if err != nil {
		log.Error("invalid leave settings", "error", err)
		os.Exit(1)
	}

	// Store
	store, err := sqlite.New(cfg.Server.DBPath)
	if err != nil {
		log.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Domain services
	ledger := leave.NewLedger(store, settings, log)
	manager := leave.NewManager(store, ledger, store, settings, log)
	gen, err := docs.NewGenerator(cfg.Server.DocsDir)
	if err != nil {
		log.Error("failed to initialize document directory", "error", err)
		os.Exit(1)
	}

	// HTTP
	handler := api.NewHandler(store, ledger, manager, gen)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", "addr", cfg.Server.Addr, "db", cfg.Server.DBPath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
