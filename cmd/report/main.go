// Package main provides a CLI tool that prints a batch interest report for
// one or more addresses without going through the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/RealToken-Community/gainorloss/internal/adapter"
	"github.com/RealToken-Community/gainorloss/internal/config"
	"github.com/RealToken-Community/gainorloss/internal/logging"
	"github.com/RealToken-Community/gainorloss/internal/service"
	"github.com/RealToken-Community/gainorloss/internal/storage"
	"github.com/RealToken-Community/gainorloss/internal/types"
)

func main() {
	var (
		addresses = flag.String("addresses", "", "Comma-separated list of addresses")
		csvOut    = flag.Bool("csv", false, "Export the first address's series as CSV instead of a JSON report")
		token     = flag.String("token", "wxdai", "Token for CSV export: wxdai, usdc")
		side      = flag.String("side", "supply", "Side for CSV export: supply, debt")
		version   = flag.String("version", "v3", "Protocol version for CSV export: v2, v3")
		timeout   = flag.Duration("timeout", 2*time.Minute, "Overall timeout")
	)
	flag.Parse()

	if *addresses == "" {
		log.Fatal("at least one address is required (-addresses)")
	}
	list := strings.Split(*addresses, ",")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.NewWriter(
		logging.ParseLevel(cfg.Logging.Level),
		logging.ParseFormat(cfg.Logging.Format),
		os.Stderr,
	)
	logging.SetDefault(logger)

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}
	defer redis.Close()

	graphClient := adapter.NewGraphClient(&cfg.Subgraph, logger)
	explorerClient := adapter.NewExplorerClient(&cfg.Explorer, logger)
	chainClient, err := adapter.NewChainClient(cfg.Chain.RPCURL, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to dial chain RPC")
	}
	defer chainClient.Close()

	seriesCache := storage.NewSeriesCache(redis, cfg.Cache.SeriesTTL, cfg.Cache.BalanceTTL)
	interestService := service.NewInterestService(
		cfg, graphClient, chainClient, seriesCache, nil, nil, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *csvOut {
		exportService := service.NewExportService(interestService, explorerClient, cfg, logger)
		key := types.PositionKey{
			Token:   types.Token(*token),
			Side:    types.Side(*side),
			Version: types.Version(*version),
		}
		if !key.Valid() {
			log.Fatalf("invalid position: %s", key.String())
		}
		if err := exportService.WriteCSV(ctx, os.Stdout, list[0], key); err != nil {
			logger.WithError(err).Fatal("CSV export failed")
		}
		return
	}

	report, err := interestService.BuildReport(ctx, list)
	if err != nil {
		logger.WithError(err).Fatal("report failed")
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		logger.WithError(err).Fatal("failed to encode report")
	}
}
