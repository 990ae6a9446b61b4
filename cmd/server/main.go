package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	httpapi "github.com/gameshelf/gameshelf/internal/api/http"
	appMaintenance "github.com/gameshelf/gameshelf/internal/application/maintenance"
	appTracking "github.com/gameshelf/gameshelf/internal/application/tracking"
	"github.com/gameshelf/gameshelf/internal/config"
	"github.com/gameshelf/gameshelf/internal/infrastructure/postgres"
	"github.com/gameshelf/gameshelf/internal/infrastructure/sse"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.PoolMaxConns)
	if err != nil {
		log.Fatalf("db error: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	// repositories
	trackingStore := postgres.NewTrackingStore(pool)
	historyStore := postgres.NewHistoryStore(pool)
	resolutionStore := postgres.NewResolutionStore(pool)
	userRepo := postgres.NewUserRepository(pool)
	catalogRepo := postgres.NewCatalogRepository(pool)

	// infrastructure
	hub := sse.NewHub()
	defer hub.Stop()

	// services
	trackingSvc := appTracking.NewService(trackingStore, historyStore, catalogRepo, hub, logger)
	maintenanceSvc := appMaintenance.NewService(resolutionStore, cfg.ResolveChunkSize, logger)

	// API server
	apiServer := httpapi.NewServer(trackingSvc, maintenanceSvc, userRepo, hub)

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // activity stream holds connections open
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}
