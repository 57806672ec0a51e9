package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "credit-engine/docs"
	"credit-engine/internal/api"
	"credit-engine/internal/batch"
	"credit-engine/internal/config"
	"credit-engine/internal/domain/customer"
	"credit-engine/internal/domain/loan"
	"credit-engine/internal/event"
	"credit-engine/internal/infrastructure/database/postgres"
	"credit-engine/internal/infrastructure/logging"
	"credit-engine/internal/ingestion"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// @title Credit Engine API
// @version 1.0
// @description API documentation for the credit approval service: customer registration, loan eligibility, loan booking and bulk data ingestion.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, logger := initializeApp()

	dbPool := initializeDatabase(cfg, logger)
	defer closeDatabase(dbPool, logger)

	amqpConn, publisher := initializeMessaging(cfg, logger)
	if amqpConn != nil {
		defer amqpConn.Close()
	}

	loanService, customerService, customerRepo, loanRepo := initializeServices(dbPool, publisher, cfg, logger)

	consumer := startIngestionWorker(cfg, amqpConn, customerRepo, loanRepo, logger)
	if consumer != nil {
		defer consumer.Stop()
	}

	reconcileJob := batch.NewDebtReconcileJob(customerRepo, logger)
	cronScheduler := startBatchJobs(cfg, logger, reconcileJob)

	router := api.SetupRouter(loanService, customerService, publisher, cfg, logger)

	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
	handleShutdown(srv, cronScheduler, shutdownChan, serverErrors, logger)
}

func initializeApp() (*config.Config, *slog.Logger) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Logger)
	slog.SetDefault(logger)
	logger.Info("Application starting...", "config_source", viper.ConfigFileUsed())

	return cfg, logger
}

func initializeDatabase(cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	logger.Info("Initializing database connection pool...")
	dbPool, err := postgres.NewConnectionPool(context.Background(), cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	return dbPool
}

func closeDatabase(dbPool *pgxpool.Pool, logger *slog.Logger) {
	logger.Info("Closing database connection pool...")
	dbPool.Close()
}

// initializeMessaging connects to RabbitMQ. The broker is best effort: with
// no connection the service still serves requests, it just cannot publish
// events or accept ingestion triggers.
func initializeMessaging(cfg *config.Config, logger *slog.Logger) (*amqp.Connection, event.EventPublisher) {
	amqpURL := fmt.Sprintf("amqp://%s:%s@%s:%d/",
		cfg.RabbitMQ.Username, cfg.RabbitMQ.Password, cfg.RabbitMQ.Host, cfg.RabbitMQ.Port)

	logger.Info("Connecting to RabbitMQ...", "host", cfg.RabbitMQ.Host, "port", cfg.RabbitMQ.Port)
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		logger.Warn("RabbitMQ unavailable, events and ingestion triggers are disabled", "error", err)
		return nil, nil
	}

	publisher, err := event.NewRabbitMQEventPublisher(conn, cfg.RabbitMQ.ExchangeName, logger)
	if err != nil {
		logger.Warn("Failed to initialize event publisher", "error", err)
		_ = conn.Close()
		return nil, nil
	}
	return conn, publisher
}

func initializeServices(dbPool *pgxpool.Pool, publisher event.EventPublisher, cfg *config.Config, logger *slog.Logger) (loan.LoanService, customer.CustomerService, *postgres.CustomerRepository, *postgres.LoanRepository) {
	logger.Info("Initializing application components...")
	loanRepo := postgres.NewLoanRepository(dbPool, logger)
	customerRepo := postgres.NewCustomerRepository(dbPool, logger)
	customerService := customer.NewCustomerService(customerRepo, publisher, cfg.Scoring.ApprovedLimitMultiple, logger)
	policy := scoringPolicyFromConfig(cfg.Scoring)
	loanService := loan.NewLoanService(loanRepo, customerService, policy, logger)
	return loanService, customerService, customerRepo, loanRepo
}

func scoringPolicyFromConfig(cfg config.ScoringConfig) loan.ScoringPolicy {
	policy := loan.DefaultScoringPolicy()
	if cfg.OnTimeWeight > 0 {
		policy.OnTimeWeight = cfg.OnTimeWeight
	}
	if cfg.VolumeWeight > 0 {
		policy.VolumeWeight = cfg.VolumeWeight
	}
	if cfg.HistoryWeight > 0 {
		policy.HistoryWeight = cfg.HistoryWeight
	}
	if cfg.HistoryCap > 0 {
		policy.HistoryCap = cfg.HistoryCap
	}
	if cfg.CurrentYearPenalty > 0 {
		policy.CurrentYearPenalty = cfg.CurrentYearPenalty
	}
	if cfg.EMISalaryShare > 0 {
		policy.EMISalaryShare = cfg.EMISalaryShare
	}
	if cfg.ApproveThreshold > 0 {
		policy.ApproveThreshold = cfg.ApproveThreshold
	}
	if cfg.MediumBandThreshold > 0 {
		policy.MediumBandThreshold = cfg.MediumBandThreshold
	}
	if cfg.MediumBandFloorRate > 0 {
		policy.MediumBandFloorRate = cfg.MediumBandFloorRate
	}
	if cfg.LowBandThreshold > 0 {
		policy.LowBandThreshold = cfg.LowBandThreshold
	}
	if cfg.LowBandFloorRate > 0 {
		policy.LowBandFloorRate = cfg.LowBandFloorRate
	}
	return policy
}

// startIngestionWorker binds the ingestion queue and runs the bulk load
// pipeline whenever a trigger message arrives.
func startIngestionWorker(cfg *config.Config, conn *amqp.Connection, customerRepo *postgres.CustomerRepository, loanRepo *postgres.LoanRepository, logger *slog.Logger) *event.Consumer {
	if conn == nil {
		logger.Warn("Skipping ingestion worker: no RabbitMQ connection")
		return nil
	}

	newPipeline := func() *ingestion.Pipeline {
		source := ingestion.NewExcelSource(cfg.Ingestion, logger)
		return ingestion.NewPipeline(source, customerRepo, loanRepo, logger)
	}
	taskHandler := ingestion.NewTaskHandler(newPipeline, logger)

	consumer, err := event.NewConsumer(
		conn,
		cfg.RabbitMQ.ExchangeName,
		cfg.RabbitMQ.QueueName,
		cfg.RabbitMQ.ConsumerTag,
		[]string{event.RoutingKeyIngestionRequested},
		taskHandler.HandleDelivery,
		logger,
	)
	if err != nil {
		logger.Error("Failed to initialize ingestion consumer", "error", err)
		return nil
	}

	if err := consumer.Start(context.Background()); err != nil {
		logger.Error("Failed to start ingestion consumer", "error", err)
		return nil
	}
	logger.Info("Ingestion worker started", "queue", cfg.RabbitMQ.QueueName)
	return consumer
}

func startServer(cfg *config.Config, router http.Handler, logger *slog.Logger) (*http.Server, <-chan error, <-chan os.Signal) {
	logger.Info("Setting up HTTP server...", "port", cfg.Server.Port)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Server listening on port %d", cfg.Server.Port))
		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			serverErrors <- err
		} else {
			logger.Info("Server closed gracefully.")
			serverErrors <- nil
		}
	}()
	return srv, serverErrors, shutdownChan
}

func handleShutdown(srv *http.Server, cronScheduler *cron.Cron, shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) {
	logger.Info("Shutdown handler started. Waiting for signal or server error...")

	var triggerReason string
	select {
	case sig := <-shutdownChan:
		triggerReason = "signal: " + sig.String()
		logger.Info("Shutdown signal received.", "signal", sig.String())
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server exited unexpectedly before signal", "error", err)
			os.Exit(1)
		}
		triggerReason = "server exited"
		logger.Info("Server goroutine finished before signal.", "error", err)
	}

	logger.Info("Starting graceful shutdown...", "trigger", triggerReason)

	logger.Info("Stopping cron scheduler...")
	cronCtx := cronScheduler.Stop()
	select {
	case <-cronCtx.Done():
		logger.Info("Cron scheduler stopped gracefully.")
	case <-time.After(15 * time.Second):
		logger.Warn("Cron scheduler shutdown timed out.")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	logger.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server graceful shutdown failed", "error", err)
		} else {
			logger.Info("HTTP server shutdown initiated.")
		}
		if err := srv.Close(); err != nil {
			logger.Error("HTTP server forced close failed", "error", err)
		}
	} else {
		logger.Info("HTTP server gracefully stopped.")
	}

	logger.Info("Waiting for server goroutine to confirm exit...")
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Server goroutine exited with unexpected error after shutdown", "error", err)
		} else {
			logger.Info("Server goroutine confirmed exit.")
		}
	case <-time.After(5 * time.Second):
		logger.Warn("Timed out waiting for server goroutine confirmation.")
	}

	logger.Info("Application shutdown process complete.")
}

func startBatchJobs(cfg *config.Config, logger *slog.Logger, reconcileJob *batch.DebtReconcileJob) *cron.Cron {
	logger.Info("Initializing batch job scheduler...")
	c := cron.New()

	scheduleSpec := cfg.Batch.DebtReconcileSchedule
	if scheduleSpec == "" {
		scheduleSpec = "0 2 * * *"
		logger.Warn("Debt reconcile schedule not configured, using default", "schedule", scheduleSpec)
	}
	jobTimeout := cfg.Batch.DebtReconcileTimeout
	if jobTimeout <= 0 {
		jobTimeout = 1 * time.Hour
	}

	jobID, err := c.AddJob(scheduleSpec, cron.FuncJob(func() {
		jobLogger := logger.With("job_name", "DebtReconcile")
		jobLogger.Info("Cron triggered: Running debt reconciliation job.")

		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if runErr := reconcileJob.Run(ctx); runErr != nil {
			jobLogger.Error("Debt reconciliation job finished with error", slog.Any("error", runErr))
		} else {
			jobLogger.Info("Debt reconciliation job finished successfully.")
		}
	}))

	if err != nil {
		logger.Error("Failed to schedule debt reconciliation job", "schedule", scheduleSpec, slog.Any("error", err))
	} else {
		logger.Info("Scheduled debt reconciliation job", "schedule", scheduleSpec, "job_id", jobID)
	}

	c.Start()
	logger.Info("Cron scheduler started.")
	return c
}
