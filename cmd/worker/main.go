// Package main provides the entry point for the pharmacovigilance Temporal worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/client"

	"github.com/trialsignal/pharmacovigilance-service/internal/config"
	"github.com/trialsignal/pharmacovigilance-service/internal/database"
	"github.com/trialsignal/pharmacovigilance-service/internal/events"
	"github.com/trialsignal/pharmacovigilance-service/internal/notify"
	"github.com/trialsignal/pharmacovigilance-service/internal/observability"
	"github.com/trialsignal/pharmacovigilance-service/internal/pubmed"
	"github.com/trialsignal/pharmacovigilance-service/internal/repository"
	"github.com/trialsignal/pharmacovigilance-service/internal/temporal"
	"github.com/trialsignal/pharmacovigilance-service/internal/temporal/activities"
	"github.com/trialsignal/pharmacovigilance-service/internal/temporal/workflows"
	"github.com/trialsignal/pharmacovigilance-service/internal/vigilance"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "worker").Logger()
	logger.Info().Msg("pharmacovigilance-service worker starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Create metrics.
	metrics := observability.NewMetrics("pharmacovigilance")

	// Build the vigilance service the scan activities run against.
	deps := vigilance.Deps{
		Rules:            repository.NewPgRuleRepository(db),
		Articles:         repository.NewPgArticleRepository(db),
		Results:          repository.NewPgResultRepository(db),
		Terms:            repository.NewPgTermRepository(db),
		Locker:           db,
		Metrics:          metrics,
		Logger:           logger,
		ArticleBatchSize: cfg.Scanner.ArticleBatchSize,
	}
	if cfg.Kafka.Enabled {
		publisher := events.NewPublisher(events.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		}, logger)
		defer func() {
			if closeErr := publisher.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close event publisher")
			}
		}()
		deps.Events = publisher
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka publisher created")
	}
	if cfg.SMTP.Enabled {
		deps.Notifier = notify.NewSMTPNotifier(notify.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, logger)
		logger.Info().Str("host", cfg.SMTP.Host).Msg("smtp notifier created")
	}
	service := vigilance.NewService(deps)

	// Create the PubMed client for article sync.
	pubmedClient := pubmed.New(pubmed.Config{
		BaseURL:    cfg.PubMed.BaseURL,
		APIKey:     cfg.PubMed.APIKey,
		Timeout:    cfg.PubMed.Timeout,
		RateLimit:  cfg.PubMed.RateLimit,
		MaxResults: cfg.PubMed.MaxResults,
	})

	// Create Temporal client.
	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    observability.NewTemporalLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("connect to temporal: %w", err)
	}
	defer temporalClient.Close()
	logger.Info().
		Str("host_port", cfg.Temporal.HostPort).
		Str("namespace", cfg.Temporal.Namespace).
		Msg("temporal client connected")

	// Create WorkerManager.
	workerConfig := temporal.DefaultWorkerConfig(cfg.Temporal.TaskQueue)
	manager, err := temporal.NewWorkerManager(temporalClient, workerConfig)
	if err != nil {
		return fmt.Errorf("create worker manager: %w", err)
	}

	// Register workflows.
	manager.RegisterWorkflow(workflows.ScanSchedulerWorkflow)
	manager.RegisterWorkflow(workflows.RuleScanWorkflow)

	// Create and register activity structs.
	scanActivities := activities.NewScanActivities(service)
	syncActivities := activities.NewSyncActivities(pubmedClient, service, cfg.PubMed.Enabled)
	manager.RegisterActivity(scanActivities)
	manager.RegisterActivity(syncActivities)

	// Serve Prometheus metrics if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server error")
			}
		}()
		defer func() {
			if closeErr := metricsServer.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close metrics server")
			}
		}()
	}

	// Ensure the scheduler workflow is running. An already-running scheduler
	// from a previous worker is fine.
	workflowClient := temporal.NewScanWorkflowClient(temporalClient, cfg.Temporal.TaskQueue)
	schedulerInput := workflows.SchedulerInput{
		PollInterval:       cfg.Scanner.PollInterval,
		MaxConcurrentScans: cfg.Scanner.MaxConcurrentScans,
	}
	if cfg.PubMed.Enabled {
		schedulerInput.SyncQuery = cfg.PubMed.SyncQuery
		schedulerInput.SyncWindow = cfg.PubMed.SyncWindow
		schedulerInput.SyncMaxResults = cfg.PubMed.MaxResults
	}
	runID, err := workflowClient.StartScheduler(ctx, workflows.ScanSchedulerWorkflow, schedulerInput)
	switch {
	case err == nil:
		logger.Info().Str("run_id", runID).Msg("scan scheduler workflow started")
	case temporal.IsWorkflowAlreadyStarted(err):
		logger.Info().Msg("scan scheduler workflow already running")
	default:
		return fmt.Errorf("start scheduler workflow: %w", err)
	}

	logger.Info().
		Str("task_queue", cfg.Temporal.TaskQueue).
		Msg("pharmacovigilance worker is ready")

	// Run the worker until the context is cancelled.
	if err := manager.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker stopped: %w", err)
	}

	logger.Info().Msg("pharmacovigilance worker stopped")
	return nil
}
