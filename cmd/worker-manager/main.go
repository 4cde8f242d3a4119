// cmd/worker-manager/main.go
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

	"go.uber.org/zap"

	"assessment-workers/internal/api"
	"assessment-workers/internal/common/aws"
	"assessment-workers/internal/common/config"
	"assessment-workers/internal/common/database"
	"assessment-workers/internal/common/logger"
	"assessment-workers/internal/queue"
	"assessment-workers/internal/scoring"
	"assessment-workers/internal/store"
	"assessment-workers/internal/workers/dispatch"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("info", "console")
		fallback.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init AWS Clients ---
	sesClient, err := aws.NewSESClient(ctx, cfg.Integrations.AWS.Region)
	if err != nil {
		zapLog.Fatal("ses client failed", zap.Error(err))
	}

	var snsClient aws.SNSAPI
	if cfg.Notifications.SMS.Enabled {
		client, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		snsClient = client
	}
	zapLog.Info("AWS clients initialized")

	// --- Wire Store + Trigger ---
	trigger := queue.NewTrigger(redis.Client, cfg.Dispatch.QueueKey)
	st := store.New(pg.DB, trigger, log)

	if err := st.Migrate(ctx); err != nil {
		zapLog.Fatal("migrations failed", zap.Error(err))
	}
	zapLog.Info("Database schema ready")

	// --- Dispatch Worker ---
	dispatchCfg := &dispatch.Config{
		FromEmail:           cfg.Integrations.AWS.SES.FromEmail,
		SMSEnabled:          cfg.Notifications.SMS.Enabled,
		AlertPhoneNumber:    cfg.Notifications.SMS.AlertPhoneNumber,
		SMSSenderID:         cfg.Integrations.AWS.SNS.DefaultSMSSenderID,
		ScoreAlertThreshold: cfg.Notifications.SMS.ScoreAlertThreshold,
		Timeout:             config.GetDuration(cfg.Dispatch.Timeout),
	}
	handler := dispatch.NewHandler(dispatchCfg, st, sesClient, snsClient, log)

	listener := queue.NewListener(trigger, st, handler.Handle, queue.ListenerConfig{
		PollInterval:     config.GetDuration(cfg.Dispatch.PollInterval),
		RecoveryInterval: config.GetDuration(cfg.Dispatch.RecoveryInterval),
		StaleAfter:       config.GetDuration(cfg.Dispatch.StaleAfter),
	}, log)

	go func() {
		if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLog.Error("dispatch listener stopped", zap.Error(err))
		}
	}()
	zapLog.Info("Dispatch listener started", zap.String("queueKey", cfg.Dispatch.QueueKey))

	// --- HTTP API ---
	server := api.NewServer(api.Config{
		FromEmail:     cfg.Integrations.AWS.SES.FromEmail,
		OperatorEmail: cfg.Notifications.OperatorEmail,
	}, st, scoring.NewEngine(), sesClient, log)

	httpServer := &http.Server{
		Addr:         cfg.HTTP.ListenAddress,
		Handler:      server.Router(),
		ReadTimeout:  config.GetDuration(cfg.HTTP.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.HTTP.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.HTTP.ListenAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.HTTP.ShutdownTimeout))
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
