package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"admybrand-insights/backend-go/internal/config"
	internalhttp "admybrand-insights/backend-go/internal/http"
	"admybrand-insights/backend-go/internal/services"
	"admybrand-insights/backend-go/internal/telemetry"
)

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.IsDev() {
		zcfg = zap.NewDevelopmentConfig()
	}
	if lvl, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zcfg.Build()
}

func main() {
	_ = godotenv.Load(
		".env",
		".env.local",
		"../.env",
		"../.env.local",
		"backend-go/.env",
		"backend-go/.env.local",
	)
	cfg, cfgErr := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	if cfgErr != nil {
		logger.Fatal("config load failed", zap.Error(cfgErr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache := services.NewCache(cfg, logger)
	market := services.NewMarketClient(cfg, cache, logger.Named("market"))
	insights := services.NewInsightClient(cfg, cache, logger.Named("insight"))
	snaps := services.NewSnapshotService(cfg, market, cache, services.NewRefreshGate(cfg.ManualRefreshCooldown), logger.Named("snapshot"))

	telemetry.Serve(ctx, cfg.MetricsAddr, nil, logger.Named("metrics"))
	go snaps.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           internalhttp.NewRouter(cfg, logger.Named("http"), cache, market, insights, snaps),
		ReadHeaderTimeout: 5 * time.Second,
		// Request contexts end with the process, which closes open streams.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown error", zap.Error(err))
		}
	}()

	logger.Info("dashboard backend listening",
		zap.String("addr", srv.Addr),
		zap.String("cache", cache.Kind()),
		zap.Duration("refresh_interval", cfg.RefreshInterval),
		zap.Bool("ai_insights", insights.Enabled()),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("http server failed", zap.Error(err))
	}
	<-shutdownDone
	logger.Info("shutdown complete")
}
