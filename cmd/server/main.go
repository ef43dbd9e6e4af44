// Package main provides the API server entry point for the interest
// reconstruction service.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RealToken-Community/gainorloss/internal/adapter"
	"github.com/RealToken-Community/gainorloss/internal/api"
	"github.com/RealToken-Community/gainorloss/internal/config"
	"github.com/RealToken-Community/gainorloss/internal/logging"
	"github.com/RealToken-Community/gainorloss/internal/service"
	"github.com/RealToken-Community/gainorloss/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		logging.ParseFormat(cfg.Logging.Format),
	)
	logging.SetDefault(logger)
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("structured logging initialized")

	// Redis is required: the series cache absorbs the recompute-on-read
	// design. Postgres and ClickHouse are optional tiers.
	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}
	defer redis.Close()

	healthChecks := map[string]api.HealthChecker{
		"redis": redis,
	}

	var archive service.SnapshotStore
	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Warn("Postgres unavailable, snapshot archive disabled")
	} else {
		defer postgres.Close()
		archive = storage.NewSnapshotArchive(postgres.Pool())
		healthChecks["postgres"] = postgres
	}

	var sink service.AnalyticsSink
	clickhouseDB, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Warn("ClickHouse unavailable, analytics sink disabled")
	} else {
		defer clickhouseDB.Close()
		sink = storage.NewPointSink(clickhouseDB)
		healthChecks["clickhouse"] = clickhouseDB
	}

	graphClient := adapter.NewGraphClient(&cfg.Subgraph, logger)
	explorerClient := adapter.NewExplorerClient(&cfg.Explorer, logger)

	chainClient, err := adapter.NewChainClient(cfg.Chain.RPCURL, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to dial chain RPC")
	}
	defer chainClient.Close()

	seriesCache := storage.NewSeriesCache(redis, cfg.Cache.SeriesTTL, cfg.Cache.BalanceTTL)

	interestService := service.NewInterestService(
		cfg, graphClient, chainClient, seriesCache, archive, sink, logger)
	exportService := service.NewExportService(interestService, explorerClient, cfg, logger)

	server := api.NewServer(
		&api.ServerConfig{
			Host:            cfg.Server.Host,
			Port:            cfg.Server.Port,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimitRPS:    cfg.RateLimit.RequestsPerSecond,
			RateLimitBurst:  cfg.RateLimit.Burst,
		},
		interestService,
		exportService,
		healthChecks,
		logger,
	)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
	logger.Info("server stopped")
}
