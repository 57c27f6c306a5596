/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave engine server. Handles
  configuration, dependency injection, the background job scheduler,
  and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Create API handler with dependencies
  4. Start the accrual/carry-forward scheduler
  5. Start server with graceful shutdown

CONFIGURATION:
  Flags take their defaults from the environment:
  -port    HTTP server port           (PORT, default 8080)
  -db      SQLite database path       (DATABASE_PATH, default leave.db)
           Use ":memory:" for an in-memory database
  -grant   Monthly accrual amount     (MONTHLY_GRANT, default 1.5)
  -cap     Annual carry-forward cap   (CARRY_FORWARD_CAP, default 5)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (waits for an in-flight job check)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/leave.db"

  # Run on different port
  PORT=3000 ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Background job scheduling
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/crewdesk/leave-engine/api"
	"github.com/crewdesk/leave-engine/leave"
	"github.com/crewdesk/leave-engine/store/sqlite"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DATABASE_PATH", "leave.db"), "SQLite database path")
	grant := flag.Float64("grant", envFloat("MONTHLY_GRANT", 1.5), "monthly accrual amount")
	carryCap := flag.Float64("cap", envFloat("CARRY_FORWARD_CAP", 5), "annual carry-forward cap")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	gateway := &leave.LogGateway{Logger: logger}
	handler := api.NewHandler(store, gateway, logger)
	handler.Accrual.Grant = decimal.NewFromFloat(*grant)
	handler.Carry.Cap = decimal.NewFromFloat(*carryCap)

	// Background jobs: monthly grant and annual carry-forward.
	scheduler := api.NewScheduler(logger)
	scheduler.RegisterMonthly("monthly-accrual", func(ctx context.Context) error {
		_, err := handler.Accrual.Run(ctx)
		return err
	})
	scheduler.RegisterYearly("carry-forward", func(ctx context.Context) error {
		_, err := handler.Carry.Run(ctx)
		return err
	})
	scheduler.Start()
	defer scheduler.Stop()

	router := api.NewRouter(handler, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		var f float64
		if _, err := fmt.Sscanf(v, "%f", &f); err == nil {
			return f
		}
	}
	return fallback
}
