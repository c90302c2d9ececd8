package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wnt/solforge/internal/api"
	"github.com/wnt/solforge/internal/chain"
	"github.com/wnt/solforge/internal/config"
	"github.com/wnt/solforge/internal/engine"
	"github.com/wnt/solforge/internal/logger"
	"github.com/wnt/solforge/internal/persist"
)

func main() {
	// Parse command-line arguments
	envFile := flag.String("envFile", ".env", "Path to .env file")
	flag.Parse()

	// Load environment variables from the specified file
	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("No .env file found at %s, using environment variables", *envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg := logger.New(cfg.LogLevel)
	logg.Info().Str("persist_mode", cfg.PersistMode).Msg("Starting solforge")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Persistence adapter
	var adapter persist.Adapter
	switch cfg.PersistMode {
	case config.PersistPostgres:
		adapter, err = persist.NewPostgres(cfg, logg)
	default:
		adapter, err = persist.NewFile(cfg, logg)
	}
	if err != nil {
		logg.Fatal().Err(err).Msg("Failed to initialize persistence adapter")
	}
	defer func() {
		if err := adapter.Close(); err != nil {
			logg.Error().Err(err).Msg("Failed to close persistence adapter")
		}
	}()

	// Chain balance source; optional, the ledger works without it
	var balances chain.BalanceSource
	if cfg.RPCURL != "" {
		client, err := chain.NewClient(cfg.RPCURL, logg)
		if err != nil {
			logg.Warn().Err(err).Msg("Chain client unavailable, balance lookups will return zero")
		} else {
			balances = client
			if cfg.RedisURL != "" {
				cached, err := chain.NewBalanceCache(cfg.RedisURL, cfg.BalanceCacheTTL, client, logg)
				if err != nil {
					logg.Warn().Err(err).Msg("Balance cache unavailable, using direct RPC lookups")
				} else {
					balances = cached
					defer cached.Close()
				}
			}
		}
	}

	eng := engine.New(cfg, adapter, logg)
	server := api.NewServer(eng, balances, logg)

	// Metrics server on its own port
	metricsSrv := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		logg.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logg.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logg.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logg.Error().Err(err).Msg("Metrics server shutdown failed")
	}
}
