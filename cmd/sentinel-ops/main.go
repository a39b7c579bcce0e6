package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sentinelstack/sentinel-ops/internal/api"
	"github.com/sentinelstack/sentinel-ops/internal/cache"
	"github.com/sentinelstack/sentinel-ops/internal/classifier"
	"github.com/sentinelstack/sentinel-ops/internal/config"
	"github.com/sentinelstack/sentinel-ops/internal/health"
	"github.com/sentinelstack/sentinel-ops/internal/metrics"
	"github.com/sentinelstack/sentinel-ops/internal/patterns"
	"github.com/sentinelstack/sentinel-ops/internal/remediation"
	"github.com/sentinelstack/sentinel-ops/internal/repo"
	"github.com/sentinelstack/sentinel-ops/internal/services"
	"github.com/sentinelstack/sentinel-ops/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting sentinel-ops", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	var valkeyCloser cache.Provider
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
			valkeyCloser = provider
		}
	}
	if valkeyCloser != nil {
		defer valkeyCloser.Close()
	}

	fleetClient := repo.NewFleetClient(
		cfg.Fleet.BaseURL,
		cfg.Fleet.MetricsPath,
		cfg.Fleet.ServicesPath,
		cfg.Fleet.RestartPath,
		cfg.Fleet.SummaryPath,
		cfg.Fleet.ForecastPath,
		cfg.Fleet.Timeout,
		cacheProvider,
		cfg.Cache.ServicesTTL,
	)

	verifier := health.NewVerifier(fleetClient, logger)
	controller := remediation.NewController(fleetClient, verifier, cfg.Remediation, logger)
	miner := patterns.NewMiner(logger, patterns.NewCacheStore(cacheProvider, cfg.Cache.HygieneTTL))

	ruleEngine, err := classifier.NewRuleEngine(cfg.Rules.Path, logger)
	if err != nil {
		logger.Error("failed to load rule pack", slog.Any("error", err))
		os.Exit(1)
	}

	opsService := services.NewOpsService(logger, fleetClient, controller, miner, ruleEngine, cacheProvider, cfg.Cache.HygieneTTL)

	loop := remediation.NewLoop(opsService, controller, cfg.Remediation.CheckInterval, cfg.Remediation.StopTimeout, logger)

	server := api.NewServer(cfg.Server, opsService, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loop.Start(ctx)

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("http server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	loop.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", slog.Any("error", err))
	}

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("sentinel-ops stopped")
}
