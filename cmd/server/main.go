package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/contaflow/proposal-app/internal/config"
	"github.com/contaflow/proposal-app/internal/db"
	"github.com/contaflow/proposal-app/internal/draft"
	"github.com/contaflow/proposal-app/internal/server"
	"github.com/contaflow/proposal-app/internal/wizard"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedFlag        = flag.Bool("seed", false, "Seed the development catalog after migrating")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if cfg.Env == "development" {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	dbConn, err := db.ConnectAndMigrate(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	if *seedFlag {
		if err := db.SeedCatalog(dbConn); err != nil {
			logger.Fatal("catalog seed failed", zap.Error(err))
		}
		logger.Info("catalog seeded")
	}
	if *migrateOnlyFlag {
		logger.Info("migrations completed; exiting as requested")
		return
	}

	store := draft.NewGormStore(dbConn)
	// No remote draft endpoint in this deployment; the local store is the only
	// persistence. A server callback can be wired in here.
	var saveFn draft.SaveFunc
	manager := wizard.NewManager(store, saveFn, cfg.Autosave(), cfg.SessionIdleAge, cfg.DraftTTL, logger)
	defer manager.Close()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: server.New(dbConn, manager, logger)}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("error during shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
