package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ttlcache-api/internal/config"
	"ttlcache-api/internal/database"
	"ttlcache-api/internal/logging"
	"ttlcache-api/internal/metrics"
	"ttlcache-api/internal/realtime"
	"ttlcache-api/internal/remember"
	"ttlcache-api/internal/routes"
	"ttlcache-api/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ttlcache-api:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := database.InitDB(cfg.DBPath, logging.GormLevel(cfg.LogLevel), log); err != nil {
		return err
	}

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	hub := realtime.GetHub()
	cacheStore := store.New(store.Deps{
		Config:  cfg,
		DB:      database.GetDB(),
		Hub:     hub,
		Metrics: m,
		Logger:  log.Named("store"),
	})

	ginRoutes := routes.SetupRoutes(routes.Deps{
		Store:   cacheStore,
		Hub:     hub,
		Metrics: m,
		Logger:  log.Named("http"),
	})

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           ginRoutes,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("addr", cfg.Port),
			zap.String("db_path", cfg.DBPath),
			zap.Int("namespaces", len(cfg.Namespaces)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}

	// Journal what is still cached before the database goes away.
	cacheStore.Close()
	remember.Default().Clear()

	if sqlDB, err := database.GetDB().DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("server stopped")
	return nil
}
