// Command donut-tail follows the configured change feed with its own replica
// and projector and logs every frame. It writes nothing.
package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"spesedonut/internal/backend"
	"spesedonut/internal/chart"
	"spesedonut/internal/cli"
	"spesedonut/internal/core"
	"spesedonut/internal/live"
	"spesedonut/internal/log"
	"spesedonut/internal/replica"
)

// emptySource starts the replica empty; the tail only sees what is published.
type emptySource struct{}

func (emptySource) ListExpenses(context.Context) ([]core.ExpenseRecord, error) { return nil, nil }

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load before reading configuration")
	segments := flag.Bool("segments", false, "log every segment of each frame")
	flag.Parse()

	cli.LoadEnvFile(*envFile)
	cfg := cli.LoadAndValidateConfig(cli.SetupLogger(os.Getenv("LOG_LEVEL")))
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentLive)

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	if backendCfg.Feed == backend.LocalFeed {
		logger.Error("The local feed is in-process only; set FEED_BACKEND to amqp or redis")
		os.Exit(2)
	}

	feedRes, err := backend.NewFactory(logger).CreateFeed(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize change feed", log.FieldError, err)
		os.Exit(1)
	}
	defer feedRes.Cleanup()

	session := live.NewSession(live.Options{
		Feed:    feedRes.Bus,
		Source:  emptySource{},
		Replica: replica.New(),
		Projector: chart.NewProjector(chart.Config{
			OuterRadius: cfg.ChartRadius,
			InnerRadius: cfg.ChartRadius / 2,
			PadAngle:    cfg.ChartPadAngle,
		}),
		Logger: logger,
		OnFrame: func(f live.Frame) {
			logger.Info("Frame projected",
				log.FieldVersion, f.Version,
				log.FieldReplicaSize, len(f.Segments),
				"total", f.Total.Display,
				"transitions", len(f.Transitions))
			if !*segments {
				return
			}
			for _, s := range f.Segments {
				logger.Info("Segment",
					log.FieldExpenseID, s.ID,
					log.FieldExpenseName, s.Name,
					log.FieldCostCents, s.Cost.Cents,
					"start", s.StartAngle,
					"end", s.EndAngle,
					"color", s.Color)
			}
		},
	})

	logger.Info("Tailing change feed", log.FieldFeed, backendCfg.Feed)
	if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Tail stopped", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Tail stopped")
}
