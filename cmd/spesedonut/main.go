package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"spesedonut/internal/backend"
	"spesedonut/internal/chart"
	"spesedonut/internal/cli"
	apphttp "spesedonut/internal/http"
	"spesedonut/internal/live"
	"spesedonut/internal/log"
	"spesedonut/internal/metrics"
	"spesedonut/internal/replica"
	"spesedonut/internal/services"
	"spesedonut/internal/sse"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.SetupLogger(os.Getenv("LOG_LEVEL")))
	logger := cli.SetupLogger(cfg.LogLevel)

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger)
	storeRes, err := factory.CreateStore(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize store", log.FieldError, err, "backend", backendCfg.Type)
		os.Exit(1)
	}
	if storeRes.Cleanup != nil {
		defer storeRes.Cleanup()
	}

	feedRes, err := factory.CreateFeed(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize change feed", log.FieldError, err, log.FieldFeed, backendCfg.Feed)
		os.Exit(1)
	}
	defer feedRes.Cleanup()

	m := metrics.New()
	svc := services.NewExpenseService(storeRes.Store, feedRes.Bus,
		services.WithTimeout(cfg.RemoteTimeout),
		services.WithMetrics(m),
		services.WithLogger(logger))

	hub := sse.NewHub(logger, sse.WithClientCounter(m.SSEClients))
	session := live.NewSession(live.Options{
		Feed:    feedRes.Bus,
		Source:  svc,
		Replica: replica.New(),
		Projector: chart.NewProjector(chart.Config{
			OuterRadius: cfg.ChartRadius,
			InnerRadius: cfg.ChartRadius / 2,
			PadAngle:    cfg.ChartPadAngle,
		}),
		Hub:     hub,
		Metrics: m,
		Logger:  logger,
	})

	deps := apphttp.Deps{
		Commands:           svc,
		Live:               session,
		Hub:                hub,
		Metrics:            m,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		IdempotencyTTL:     cfg.IdempotencyTTL,
	}
	if storeRes.Pinger != nil {
		deps.Store = storeRes.Pinger
	}
	srv := apphttp.NewServer(":"+cfg.Port, deps)

	srv.ReadTimeout = 10 * time.Second
	// Event streams stay open, so writes are not bounded here.
	srv.WriteTimeout = 0
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return session.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("Starting spesedonut server",
			"port", cfg.Port,
			"backend", backendCfg.Type,
			log.FieldFeed, backendCfg.Feed)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
