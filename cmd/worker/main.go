package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"xpose-triage/internal/config"
	"xpose-triage/internal/domain/services"
	"xpose-triage/internal/infrastructure/database"
	"xpose-triage/internal/infrastructure/database/repository"
	"xpose-triage/internal/infrastructure/ledger"
	"xpose-triage/internal/queue"
	"xpose-triage/internal/streaming"
	"xpose-triage/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewForEnvironment(cfg.App.Environment, logger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
	}).WithComponent("worker")

	if !cfg.Ledger.Enabled {
		log.Fatal().Msg("ledger is disabled, nothing to re-anchor")
	}

	db, err := database.NewPostgres(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to PostgreSQL")
	}
	defer db.Close()

	var broker streaming.Publisher
	if cfg.NATS.Enabled {
		natsPublisher, err := streaming.NewNATSPublisher(ctx, cfg.NATS, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to NATS, anchoring events stay local")
		} else {
			defer natsPublisher.Close()
			broker = natsPublisher
		}
	}
	eventBus := streaming.NewEventBus(broker, log)
	defer eventBus.Close()

	reports := repository.NewReportRepository(db.Pool())
	ledgerClient := ledger.NewClient(cfg.Ledger.URL, cfg.Ledger.Timeout, log)

	// asynq owns the retry schedule here, so the anchorer gets no retry queue
	anchorer := services.NewLedgerAnchorer(ledgerClient, reports, eventBus, nil, nil, cfg.Ledger.Timeout, log)

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, asynq.Config{
		Concurrency: cfg.Queue.Concurrency,
		Logger:      queue.NewAsynqLogger(log),
	})
	processor := queue.NewProcessor(anchorer, log)

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	log.Info().Int("concurrency", cfg.Queue.Concurrency).Msg("starting anchor worker")
	if err := server.Run(processor.Handler()); err != nil {
		log.Error().Err(err).Msg("worker stopped")
		os.Exit(1)
	}
}
