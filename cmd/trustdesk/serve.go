package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/trustdesk/internal/metrics"
	chiTransport "github.com/kailas-cloud/trustdesk/internal/transport/chi"
	batchuc "github.com/kailas-cloud/trustdesk/internal/usecase/batch"
	healthuc "github.com/kailas-cloud/trustdesk/internal/usecase/health"
	usageuc "github.com/kailas-cloud/trustdesk/internal/usecase/usage"
	"github.com/kailas-cloud/trustdesk/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with the batch job dispatcher and janitor",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, logger := a.cfg, a.logger

	logger.Info("Starting trustdesk API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", a.env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("model", cfg.LLM.Model),
	)

	// Jobs run detached from the submitting request and survive until shutdown.
	jobsCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	orchestrator := batchuc.NewOrchestrator(a.jobs, a.engine, cfg.Jobs.QuestionTimeout(), logger)
	dispatcher := batchuc.NewDispatcher(jobsCtx, orchestrator, cfg.Jobs.MaxConcurrent, logger).WithStore(a.jobs)
	batchSvc := batchuc.New(a.jobs, dispatcher).WithMaxQuestions(cfg.Jobs.MaxQuestions)

	janitor := batchuc.NewJanitor(a.jobs, cfg.Jobs.Retention(), cfg.Jobs.StaleAfter(), logger).WithQueue(dispatcher)
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Jobs.CleanupSchedule, func() {
		if _, err := janitor.Run(jobsCtx); err != nil {
			logger.Error("Janitor pass failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule janitor %q: %w", cfg.Jobs.CleanupSchedule, err)
	}
	scheduler.Start()

	if cfg.Knowledge.Watch {
		if dir := a.index.WatchDir(); dir != "" {
			go func() {
				if err := a.index.Watch(ctx, dir); err != nil && ctx.Err() == nil {
					logger.Warn("Snapshot watch stopped", zap.Error(err))
				}
			}()
		} else {
			logger.Info("No snapshot directory configured to watch")
		}
	}

	usageSvc := usageuc.New(a.budget, cfg.LLM.Model, cfg.LLM.Budget.CostPerMillionTokens)
	healthSvc := healthuc.New(a.store, a.chat)
	server := chiTransport.NewServer(a.engine, batchSvc, a.cached, usageSvc, healthSvc, logger).
		WithAnswerTimeout(cfg.Jobs.QuestionTimeout())

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
	}

	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		// running jobs were canceled and queued ones failed
		logger.Warn("Batch jobs still running at shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}
