package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/medisync/cmd/mainconfig"
	"github.com/wolfman30/medisync/internal/api/router"
	"github.com/wolfman30/medisync/internal/app/bootstrap"
	"github.com/wolfman30/medisync/internal/archive"
	appconfig "github.com/wolfman30/medisync/internal/config"
	"github.com/wolfman30/medisync/internal/doctors"
	"github.com/wolfman30/medisync/internal/http/handlers"
	"github.com/wolfman30/medisync/internal/intake"
	"github.com/wolfman30/medisync/internal/observability/metrics"
	"github.com/wolfman30/medisync/internal/records"
	"github.com/wolfman30/medisync/internal/suggest"
	"github.com/wolfman30/medisync/internal/summary"
	"github.com/wolfman30/medisync/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting medisync API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"store", cfg.StoreBackend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	// Create HTTP server. The write timeout is left at zero because the
	// voice socket is long-lived.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.Handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

type application struct {
	Handler http.Handler
	Store   *records.Store
	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp wires every dependency named by cfg. Background workers are bound
// to ctx.
func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*application, error) {
	app := &application{}
	fail := func(err error) (*application, error) {
		app.Close()
		return nil, err
	}

	registry, metricsHandler := setupMetrics()
	storeMetrics := metrics.NewStoreMetrics(registry)
	collabMetrics := metrics.NewCollaboratorMetrics(registry)
	workflowMetrics := metrics.NewWorkflowMetrics(registry)

	loc := bootstrap.ClinicLocation(cfg, logger)
	roster := doctors.DefaultRoster()

	awsCfg, err := loadAWS(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}

	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		app.closers = append(app.closers, pool.Close)
	}

	store, closeStore, err := bootstrap.BuildRecordStore(ctx, cfg, bootstrap.StoreDeps{
		AWS:      awsCfg,
		Pool:     pool,
		Metrics:  storeMetrics,
		Location: loc,
	}, logger.Component("records"))
	if err != nil {
		return fail(err)
	}
	app.closers = append(app.closers, closeStore)
	app.Store = store

	if cfg.SeedOnStartup {
		seeded, err := store.SeedIfEmpty(ctx, records.DefaultSeedPatients(time.Now()))
		if err != nil {
			logger.Warn("patient seeding failed", "error", err)
		} else if seeded {
			logger.Info("seeded default patients")
		}
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		app.closers = append(app.closers, func() { _ = redisClient.Close() })
	}

	audit, closeAudit, err := bootstrap.BuildAuditService(ctx, cfg, logger)
	if err != nil {
		// Audit is best effort.
		logger.Warn("audit log disabled", "error", err)
	}
	app.closers = append(app.closers, closeAudit)

	collaborators, err := bootstrap.BuildCollaborators(ctx, cfg, awsCfg, collabMetrics, logger.Component("llm"))
	if err != nil {
		return fail(err)
	}
	app.closers = append(app.closers, collaborators.Close)

	pipeline, err := bootstrap.BuildEvents(cfg, awsCfg, eventsPool(cfg, pool), logger.Component("events"))
	if err != nil {
		return fail(err)
	}
	if pipeline.Deliverer != nil && cfg.OutboxInline {
		go pipeline.Deliverer.Start(ctx)
	}
	logger.Info("events configured", "mode", pipeline.Mode)

	notifier := bootstrap.BuildNotifier(cfg, awsCfg, logger.Component("notify"))
	archiveStore := buildArchive(cfg, awsCfg, logger)

	// Intake
	reconciler := intake.NewReconciler(
		intake.NewLLMExtractor(collaborators.Extraction, int32(cfg.LLMMaxTokens), logger),
		roster,
		logger.Component("intake"),
		intake.WithLocation(loc),
		intake.WithMetrics(workflowMetrics),
	)
	bookerOpts := []intake.BookerOption{
		intake.WithPublisher(pipeline.Publisher),
		intake.WithBookingMetrics(workflowMetrics),
	}
	if cfg.NotifyInline {
		bookerOpts = append(bookerOpts, intake.WithNotifier(notifier))
	}
	booker := intake.NewBooker(store, roster, logger.Component("intake"), bookerOpts...)
	intakeHandler := handlers.NewIntakeHandler(handlers.IntakeConfig{
		Desks:          intake.NewDesks(reconciler),
		Booker:         booker,
		Drafts:         intake.NewDraftStore(redisClient, cfg.DraftTTL),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger.Component("intake"),
	})

	// Suggestions
	generator := suggest.NewLLMGenerator(collaborators.Generation, int32(cfg.LLMMaxTokens), logger)
	committer := suggest.NewCommitter(store, logger.Component("suggest"),
		suggest.WithPublisher(pipeline.Publisher),
		suggest.WithArchive(archiveStore),
		suggest.WithAudit(audit),
		suggest.WithCommitMetrics(workflowMetrics),
	)
	suggestionsHandler := handlers.NewSuggestionsHandler(handlers.SuggestionsConfig{
		Store:     store,
		Registry:  suggest.NewRegistry(generator, logger.Component("suggest"), suggest.WithGenerationMetrics(collabMetrics)),
		Committer: committer,
		Logger:    logger.Component("suggest"),
	})

	summarizer := summary.NewSummarizer(collaborators.Summary, store, collabMetrics, logger.Component("summary"))

	stopLimiter := make(chan struct{})
	app.closers = append(app.closers, func() { close(stopLimiter) })

	app.Handler = router.New(&router.Config{
		Logger:       logger,
		Roster:       roster,
		Patients:     handlers.NewPatientsHandler(store, audit, logger.Component("patients")),
		Appointments: handlers.NewAppointmentsHandler(handlers.AppointmentsConfig{Store: store, Roster: roster, Audit: audit, Publisher: pipeline.Publisher, Logger: logger.Component("appointments")}),
		Intake:       intakeHandler,
		Suggestions:  suggestionsHandler,
		Summary:      handlers.NewSummaryHandler(summarizer, store, logger.Component("summary")),
		Ready:        readiness(pool, redisClient),

		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		CORSAllowedHeaders: cfg.CORSAllowedHeaders,
		CORSMaxAge:         cfg.CORSMaxAge,
		OpsToken:           cfg.OpsToken,
		StaffAuthSecret:    cfg.AuthJWTSecret,
		CognitoUserPoolID:  cfg.CognitoUserPoolID,
		CognitoClientID:    cfg.CognitoClientID,
		CognitoRegion:      cfg.CognitoRegion,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
		Stop:               stopLimiter,
	})
	return app, nil
}

func setupMetrics() (*prometheus.Registry, http.Handler) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// loadAWS returns nil when nothing in cfg needs AWS.
func loadAWS(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*aws.Config, error) {
	needsAWS := cfg.StoreBackend == bootstrap.BackendDynamo ||
		strings.TrimSpace(cfg.BedrockModelID) != "" ||
		strings.TrimSpace(cfg.EventsQueueURL) != "" ||
		strings.TrimSpace(cfg.ArchiveBucket) != "" ||
		cfg.EmailProvider == "ses"
	if !needsAWS {
		return nil, nil
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	logger.Debug("aws config loaded", "region", awsCfg.Region)
	return &awsCfg, nil
}

func connectPostgresPool(ctx context.Context, dbURL string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(dbURL) == "" {
		return nil
	}
	poolCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(poolCtx, dbURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		return nil
	}
	if err := pool.Ping(poolCtx); err != nil {
		logger.Error("postgres ping failed", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// eventsPool enables the outbox only when the records themselves live in
// Postgres, so an event is never written to a different database than the
// change it describes.
func eventsPool(cfg *appconfig.Config, pool *pgxpool.Pool) *pgxpool.Pool {
	if cfg.StoreBackend != bootstrap.BackendPostgres {
		return nil
	}
	return pool
}

func buildArchive(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) *archive.Store {
	if strings.TrimSpace(cfg.ArchiveBucket) == "" || awsCfg == nil {
		return nil
	}
	client := s3.NewFromConfig(*awsCfg, mainconfig.S3PathStyle(cfg))
	logger.Info("prescription archive enabled", "bucket", cfg.ArchiveBucket)
	return archive.NewStore(client, cfg.ArchiveBucket, logger.Component("archive"))
}

func readiness(pool *pgxpool.Pool, redisClient *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
		}
		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}
}
