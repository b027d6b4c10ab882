package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/openfleet/tracking-backend-go/internal/api"
	"github.com/openfleet/tracking-backend-go/internal/clock"
	"github.com/openfleet/tracking-backend-go/internal/config"
	"github.com/openfleet/tracking-backend-go/internal/database"
	"github.com/openfleet/tracking-backend-go/internal/history"
	"github.com/openfleet/tracking-backend-go/internal/livefeed"
	"github.com/openfleet/tracking-backend-go/internal/repository"
	"github.com/openfleet/tracking-backend-go/internal/service"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg := config.Load()

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("failed to open telemetry archive")
	}
	defer db.Close()
	if err := database.RunMigrations(db); err != nil {
		log.WithError(err).Fatal("failed to migrate telemetry archive")
	}
	historyRepo := repository.NewHistoryRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := livefeed.NewRegistry()
	subscriber := livefeed.NewSubscriber(cfg.MQTTBroker, cfg.MQTTTopic, cfg.MQTTClientID, registry, historyRepo)
	if err := subscriber.Start(ctx); err != nil {
		log.WithError(err).Warn("mqtt feed unavailable, live positions will come from the upstream only")
	}

	client := history.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamToken, cfg.UpstreamTimeout)
	fetcher := history.NewFetcher(client,
		history.NewUpstreamSource(client),
		history.NewArchiveSource(historyRepo),
	)

	svc := service.NewTrackingService(client, registry, fetcher, historyRepo)
	sessions := service.NewSessionManager(svc, clock.NewReal(), cfg.RefreshInterval)
	defer sessions.Close()

	router := api.SetupRouter(cfg, svc, sessions)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := subscriber.Stop(shutdownCtx); err != nil {
			log.WithError(err).Warn("mqtt disconnect failed")
		}
		sessions.Close()
		cancel()
		os.Exit(0)
	}()

	log.WithField("port", cfg.Port).Info("server starting")
	if err := router.Run(cfg.Port); err != nil {
		log.WithError(err).Fatal("failed to start server")
	}
}
