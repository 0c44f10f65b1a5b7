package main

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/smartlearn/shakeout-gateway/internal/app"
	"github.com/smartlearn/shakeout-gateway/internal/config"
	"github.com/smartlearn/shakeout-gateway/internal/delivery"
	"github.com/smartlearn/shakeout-gateway/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().
		Str("env", cfg.AppEnv).
		Str("service", "shakeout-gateway-worker").
		Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "shakeout")
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	srv, err := app.NewTaskServer(cfg.RedisURL, cfg.DeliveryQueue, envInt("DELIVERY_CONCURRENCY", 4))
	if err != nil {
		logger.Fatal().Err(err).Msg("connect task queue")
	}

	worker := &delivery.Worker{
		Fulfiller: &delivery.HTTPFulfiller{
			URL:    cfg.FulfillmentURL,
			Client: &http.Client{Timeout: 30 * time.Second},
		},
		Logger: logger,
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(delivery.TypeOrderDeliver, worker.Handle)

	logger.Info().Str("queue", cfg.DeliveryQueue).Msg("delivery worker starting")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker exited unexpectedly")
	}
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}
