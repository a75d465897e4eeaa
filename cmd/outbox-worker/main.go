package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/medisync/cmd/mainconfig"
	"github.com/wolfman30/medisync/internal/app/bootstrap"
	"github.com/wolfman30/medisync/internal/config"
	"github.com/wolfman30/medisync/pkg/logging"
)

// outbox-worker forwards pending outbox events to SQS. Run it with
// OUTBOX_INLINE=false on the API.
func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel).Component("outbox-worker")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" || cfg.EventsQueueURL == "" {
		logger.Error("outbox worker requires DATABASE_URL and EVENTS_QUEUE_URL")
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load aws config", "error", err)
		os.Exit(1)
	}

	cfg.UseMemoryQueue = false
	pipeline, err := bootstrap.BuildEvents(cfg, &awsCfg, pool, logger)
	if err != nil || pipeline.Deliverer == nil {
		logger.Error("failed to build outbox deliverer", "error", err)
		os.Exit(1)
	}
	go pipeline.Deliverer.WithInterval(time.Second).Start(ctx)
	logger.Info("outbox worker started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("outbox worker shutting down")
	cancel()
	time.Sleep(2 * time.Second)
}
