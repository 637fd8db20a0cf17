// Package app wires configuration, clients, and the HTTP server together
// and runs the service until ctx is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wisbric/corpreg/internal/alerting"
	"github.com/wisbric/corpreg/internal/auth"
	"github.com/wisbric/corpreg/internal/ceidgclient"
	"github.com/wisbric/corpreg/internal/config"
	"github.com/wisbric/corpreg/internal/gusclient"
	"github.com/wisbric/corpreg/internal/handlers"
	"github.com/wisbric/corpreg/internal/httpserver"
	"github.com/wisbric/corpreg/internal/krsclient"
	"github.com/wisbric/corpreg/internal/orchestrator"
	"github.com/wisbric/corpreg/internal/retry"
	"github.com/wisbric/corpreg/internal/telemetry"
)

// Run is the application entry point: it reads config, builds the upstream
// clients and the orchestration machine, mounts the HTTP surface, and
// serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting corpreg", "listen", cfg.ListenAddr(), "environment", cfg.Environment)

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parsing REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error("closing redis", "error", err)
			}
		}()
	} else {
		logger.Info("incoming rate limiting running without redis (in-process fallback only)")
	}

	keyChecker, err := auth.NewKeyChecker(cfg.APIKeys)
	if err != nil {
		return fmt.Errorf("initializing api key checker: %w", err)
	}
	if !keyChecker.Enabled() {
		logger.Info("api key authentication disabled (APP_API_KEYS not set)")
	}

	rateLimiter := auth.NewRateLimiter(rdb, cfg.IncomingRateLimit, time.Minute, logger)

	gusHTTP := &http.Client{Timeout: time.Duration(cfg.ExternalAPITimeoutMs) * time.Millisecond}
	krsHTTP := &http.Client{Timeout: time.Duration(cfg.ExternalAPITimeoutMs) * time.Millisecond}
	ceidgHTTP := &http.Client{Timeout: time.Duration(cfg.ExternalAPITimeoutMs) * time.Millisecond}

	gusClient := gusclient.NewClient(cfg.GUSBaseURL, cfg.GUSUserKey, float64(cfg.GUSMaxRequestsPerSec), gusHTTP)
	krsClient := krsclient.NewClient(cfg.KRSBaseURL, krsHTTP)
	ceidgClient := ceidgclient.NewClient(cfg.CEIDGBaseURL, cfg.CEIDGJWTToken, ceidgHTTP)

	machine := &orchestrator.Machine{
		Gus:   gusClient,
		Krs:   krsClient,
		Ceidg: ceidgClient,
		Retry: orchestrator.RetryConfig{
			GUS:   retry.Config{MaxRetries: cfg.GUSMaxRetries, InitialDelayMs: cfg.GUSInitialDelayMs},
			KRS:   retry.Config{MaxRetries: cfg.KRSMaxRetries, InitialDelayMs: cfg.KRSInitialDelayMs},
			CEIDG: retry.Config{MaxRetries: cfg.CEIDGMaxRetries, InitialDelayMs: cfg.CEIDGInitialDelayMs},
		},
		Logger: logger,
	}

	notifier := alerting.NewNotifier(cfg.SlackBotToken, cfg.SlackOpsChannel, logger)
	if notifier.Enabled() {
		logger.Info("operational alerting enabled", "channel", cfg.SlackOpsChannel)
	} else {
		logger.Info("operational alerting disabled (SLACK_BOT_TOKEN or SLACK_OPS_CHANNEL not set)")
	}

	companyHandler := &handlers.CompanyHandler{
		Machine:        machine,
		Alerts:         notifier,
		RequestTimeout: time.Duration(cfg.RequestTimeoutMs) * time.Millisecond,
	}

	srv := httpserver.NewServer(httpserver.ServerConfig{}, logger, metricsReg, auth.Middleware(keyChecker))
	srv.APIRouter.Use(rateLimiter.Middleware)
	srv.APIRouter.Post("/companies", companyHandler.ServeHTTP)

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
