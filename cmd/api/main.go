package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"

	"xpose-triage/internal/api"
	"xpose-triage/internal/api/handlers"
	apimiddleware "xpose-triage/internal/api/middleware"
	"xpose-triage/internal/config"
	"xpose-triage/internal/domain/services"
	"xpose-triage/internal/domain/services/ai"
	grpchealth "xpose-triage/internal/grpc/health"
	"xpose-triage/internal/infrastructure/cache"
	"xpose-triage/internal/infrastructure/database"
	"xpose-triage/internal/infrastructure/database/repository"
	"xpose-triage/internal/infrastructure/ledger"
	"xpose-triage/internal/infrastructure/mlclient"
	"xpose-triage/internal/infrastructure/places"
	"xpose-triage/internal/metrics"
	"xpose-triage/internal/queue"
	"xpose-triage/internal/streaming"
	"xpose-triage/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	migrate := flag.Bool("migrate", false, "apply database migrations before serving")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewForEnvironment(cfg.App.Environment, logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		TimeFormat: cfg.Logger.TimeFormat,
	})

	log.Info().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Environment).
		Str("version", cfg.App.Version).
		Msg("starting xpose triage")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *migrate {
		if err := database.MigrateUp(cfg.Database, log); err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
	}

	// Initialize infrastructure
	db, redisCache, err := initInfrastructure(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize infrastructure")
	}
	defer db.Close()
	if redisCache != nil {
		defer redisCache.Close()
	}

	reports := repository.NewReportRepository(db.Pool())
	stations := repository.NewStationRepository(db.Pool())

	m := metrics.New(prometheus.DefaultRegisterer)

	// Initialize streaming infrastructure
	var broker streaming.Publisher
	if cfg.NATS.Enabled {
		natsPublisher, err := streaming.NewNATSPublisher(ctx, cfg.NATS, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to NATS, continuing with in-process events only")
		} else {
			defer natsPublisher.Close()
			broker = natsPublisher
			log.Info().Str("url", cfg.NATS.URL).Msg("connected to NATS")
		}
	}
	eventBus := streaming.NewEventBus(broker, log)
	defer eventBus.Close()
	go auditEvents(ctx, eventBus, log)

	// Text normalization
	var textCache ai.TextCache
	if redisCache != nil {
		textCache = redisCache
	}
	llm := ai.NewLLMClient(ai.LLMConfig{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
		Timeout:  cfg.LLM.Timeout,
	}, log)
	normalizer := ai.NewTranslationNormalizer(llm, textCache, m, ai.NormalizerConfig{
		EnglishThreshold: cfg.LLM.EnglishThreshold,
		CacheTTL:         cfg.LLM.CacheTTL,
	}, log)

	ml := mlclient.NewClient(cfg.ML.URL, cfg.ML.Timeout, log)
	classifier := services.NewDualPassClassifier(ml, m, log)
	ids := services.NewTrackingIDGenerator(cfg.Tracking.Prefix, cfg.Tracking.MaxAttempts, reports, log)

	// Ledger anchoring, with the retry queue when enabled
	var (
		ledgerClient *ledger.Client
		anchorer     *services.LedgerAnchorer
		ledgerReader handlers.LedgerReader
	)
	if cfg.Ledger.Enabled {
		var retry services.AnchorRetryQueue
		if cfg.Queue.Enabled {
			queueClient := queue.NewClient(asynq.NewClient(redisOpt(cfg.Redis)), cfg.Queue.MaxRetry, log)
			defer queueClient.Close()
			retry = queueClient
		}
		ledgerClient = ledger.NewClient(cfg.Ledger.URL, cfg.Ledger.Timeout, log)
		anchorer = services.NewLedgerAnchorer(ledgerClient, reports, eventBus, retry, m, cfg.Ledger.Timeout, log)
		ledgerReader = ledgerClient
	}

	triage := services.NewTriageEngine(services.TriageDeps{
		Normalizer: normalizer,
		Classifier: classifier,
		Override:   services.NewOverrideHeuristic(),
		IDs:        ids,
		Store:      reports,
		Anchorer:   anchorer,
		Events:     eventBus,
		Metrics:    m,
	}, services.TriageConfig{
		MinDescriptionLength: cfg.Triage.MinDescriptionLength,
		DefaultCountry:       cfg.Triage.DefaultCountry,
	}, log)

	// Assignment and review
	districts := services.NewDistrictIndex(nil)
	if cfg.Assignment.DistrictsFile != "" {
		districts, err = services.LoadDistrictIndex(cfg.Assignment.DistrictsFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.Assignment.DistrictsFile).Msg("failed to load districts")
		}
		log.Info().Int("districts", districts.Len()).Msg("district index loaded")
	}
	placesClient := places.NewClient(cfg.Places.BaseURL, cfg.Places.APIKey, cfg.Places.Timeout, log)
	assigner := services.NewAssignmentEngine(reports, stations, placesClient, districts, eventBus, m, services.AssignmentConfig{
		RadiusMeters: cfg.Assignment.RadiusMeters,
		PlaceType:    cfg.Assignment.PlaceType,
	}, log)
	review := services.NewReviewService(reports, eventBus, services.ReviewConfig{
		RequireVersion: cfg.Review.RequireVersion,
	}, log)

	// Readiness checks
	checks := map[string]handlers.Pinger{
		"postgres": db,
		"ml":       handlers.PingFunc(ml.Health),
	}
	if redisCache != nil {
		checks["redis"] = redisCache
	}

	// Initialize handlers
	h := handlers.NewHandlers(handlers.Dependencies{
		Triage:   triage,
		Reports:  reports,
		Review:   review,
		Assigner: assigner,
		Ledger:   ledgerReader,
		Checks:   checks,
		Version:  cfg.App.Version,
		Logger:   log,
	})

	var limiter apimiddleware.RateLimitChecker
	if redisCache != nil {
		limiter = redisCache
	}
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = m.Handler()
	}

	// Create router
	router := api.NewRouter(*cfg, h, limiter, metricsHandler, log)
	httpHandler := router.Setup()

	// Start HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Handler:      httpHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", httpServer.Addr).
			Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Start gRPC health server
	grpcListener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gRPC listener")
	}

	grpcServer := grpc.NewServer()
	healthChecks := map[string]grpchealth.Pinger{"postgres": db}
	if redisCache != nil {
		healthChecks["redis"] = redisCache
	}
	checker := grpchealth.NewChecker(healthChecks, 0, log)
	checker.Register(grpcServer)
	go checker.Run(ctx)

	go func() {
		log.Info().
			Str("addr", grpcListener.Addr().String()).
			Msg("starting gRPC server")
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Fatal().Err(err).Msg("gRPC server failed")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")

	// Cancel context to stop background services
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	grpcServer.GracefulStop()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("shutdown complete")
}

// initInfrastructure connects to PostgreSQL and Redis. Redis is optional:
// without it the text cache and rate limiting are off.
func initInfrastructure(ctx context.Context, cfg *config.Config, log *logger.Logger) (*database.PostgresDB, *cache.RedisCache, error) {
	db, err := database.NewPostgres(ctx, cfg.Database, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	redisCache, err := cache.NewRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Warn().Err(err).Msg("failed to connect to Redis, continuing without cache and rate limiting")
		return db, nil, nil
	}

	return db, redisCache, nil
}

// auditEvents writes every report lifecycle event to the log
func auditEvents(ctx context.Context, bus *streaming.EventBus, log *logger.Logger) {
	events, unsubscribe := bus.Subscribe(nil)
	defer unsubscribe()

	audit := log.WithComponent("audit")
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			audit.Info().
				Str("event", string(ev.Type)).
				Str("report_id", ev.ReportID).
				Str("status", string(ev.Status)).
				Msg("report event")
		}
	}
}

func redisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}
