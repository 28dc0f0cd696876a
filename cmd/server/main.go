/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the tractor POS server on the operator's machine.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (optional file + environment)
  2. Apply command-line flag overrides
  3. Build the zap logger
  4. Initialize SQLite store and billing engine
  5. Configure HTTP router and start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Config file (yaml/json/toml/env); empty means environment only
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for an in-memory database
  -backup-dir  Directory for automatic backups (overrides BACKUP_DIR)

ENVIRONMENT:
  PORT, DB_PATH, LOG_LEVEL, CORS_ALLOWED_ORIGINS, MAX_IMPORT_BYTES,
  HTTP_READ_TIMEOUT, HTTP_WRITE_TIMEOUT, HTTP_IDLE_TIMEOUT,
  HTTP_SHUTDOWN_TIMEOUT, BACKUP_RATE_LIMIT, BACKUP_RATE_BURST,
  BACKUP_DIR, BACKUP_INTERVAL (see config/config.go)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the backup scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete
  4. Close database connection
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/warp/tractor-pos/api"
	"github.com/warp/tractor-pos/billing"
	"github.com/warp/tractor-pos/config"
	"github.com/warp/tractor-pos/logger"
	"github.com/warp/tractor-pos/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "Config file path")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	backupDir := flag.String("backup-dir", "", "Automatic backup directory (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *backupDir != "" {
		cfg.Backup.Dir = *backupDir
	}

	base, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer base.Sync()
	lg := logger.Named(base, "server")

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		lg.Fatal("failed to initialize database", zap.String("db", cfg.DBPath), zap.Error(err))
	}
	defer store.Close()

	engine := billing.NewEngine(store)

	metrics := api.NewMetrics()
	handler := api.NewHandler(engine, logger.Named(base, "api"), metrics)
	if cfg.HTTP.MaxImportBytes > 0 {
		handler.MaxImportBytes = cfg.HTTP.MaxImportBytes
	}
	if cfg.HTTP.BackupRate > 0 {
		handler.BackupLimiter = rate.NewLimiter(rate.Limit(cfg.HTTP.BackupRate), cfg.HTTP.BackupBurst)
	}

	// Start automatic backups
	scheduler := api.NewBackupScheduler(engine, cfg.Backup.Dir, logger.Named(base, "backup"), metrics)
	scheduler.Interval = cfg.Backup.Interval
	scheduler.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      api.NewRouter(handler, cfg.HTTP.AllowedOrigins),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		lg.Info("server starting",
			zap.String("url", fmt.Sprintf("http://localhost:%d", cfg.HTTP.Port)),
			zap.String("db", cfg.DBPath),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		lg.Error("server forced to shutdown", zap.Error(err))
		return
	}

	lg.Info("server stopped")
}
