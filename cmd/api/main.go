package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smartlearn/shakeout-gateway/internal/app"
	"github.com/smartlearn/shakeout-gateway/internal/config"
	"github.com/smartlearn/shakeout-gateway/internal/delivery"
	"github.com/smartlearn/shakeout-gateway/internal/health"
	"github.com/smartlearn/shakeout-gateway/internal/obs"
	"github.com/smartlearn/shakeout-gateway/internal/payment"
	"github.com/smartlearn/shakeout-gateway/internal/ratelimit"
	"github.com/smartlearn/shakeout-gateway/internal/resilience"
	"github.com/smartlearn/shakeout-gateway/internal/shakeout"
	"github.com/smartlearn/shakeout-gateway/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "shakeout")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "shakeout-gateway",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if envBool("DB_MIGRATE_ON_START", true) {
		source := envOrDefault("DB_MIGRATIONS_URL", "file://db/migrations")
		if err := app.RunMigrations(source, cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	pool, err := app.NewPool(ctx, cfg.DatabaseURL, "shakeout-gateway-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisClient, err := app.NewRedis(ctx, cfg.RedisURL, metricsEnabled)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	taskClient, err := app.NewTaskClient(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect task queue")
	}
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task queue")
		}
	}()

	queries := store.New(pool)

	breaker := resilience.NewBreaker(
		envInt("PROVIDER_BREAKER_FAILURES", 5),
		envDurationMillis("PROVIDER_BREAKER_OPEN_MS", 30000),
	).WithTarget("shakeout").WithLogger(logger)
	providerClient := &shakeout.Client{
		APIKey:  cfg.Gateway.APIKey,
		BaseURL: cfg.Gateway.APIBaseURL(),
		HTTP:    &resilience.HTTPClient{Client: shakeout.NewHTTPClient(), Breaker: breaker},
	}

	hostClient := &payment.HostClient{
		BaseURL: cfg.SiteRootURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
	txRunner := payment.PGTxRunner{DB: pool, Q: queries}
	paymentSvc := &payment.Service{
		Q:          queries,
		Tx:         txRunner,
		Gateway:    cfg.Gateway,
		Invoices:   providerClient,
		Payables:   hostClient,
		Profiles:   hostClient,
		SiteRoot:   cfg.SiteRootURL,
		WebhookURL: strings.TrimRight(cfg.WebhookBaseURL, "/") + "/api/v1/webhooks/shakeout",
		Logger:     logger,
	}
	paymentHandler := &payment.Handler{
		Svc:      paymentSvc,
		Probe:    providerClient,
		Validate: app.NewValidator(),
	}
	webhookHandler := &payment.Webhook{
		Q:       queries,
		Tx:      txRunner,
		Gateway: cfg.Gateway,
		Deliverer: &delivery.Enqueuer{
			Client:   taskClient,
			Queue:    cfg.DeliveryQueue,
			MaxRetry: cfg.DeliveryMaxRetry,
		},
		Replay:    redisClient,
		ReplayTTL: cfg.WebhookReplayTTL,
		Logger:    logger,
	}

	initiateLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient},
		Window:  cfg.InitiateRateWindow,
		Max:     cfg.InitiateRateMax,
		Logger:  logger,
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{
		Checker:           health.Probes{Pool: pool, Redis: redisClient},
		GatewayConfigured: cfg.Gateway.Configured(),
		DBTimeout:         envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout:      envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/payments", func(p chi.Router) {
			p.With(initiateLimit.Middleware).Post("/initiate", paymentHandler.Initiate)
			p.Get("/{invoiceID}/status", paymentHandler.Status)
		})
		v.Get("/gateway/ping", paymentHandler.Ping)
		v.Post("/webhooks/shakeout", webhookHandler.Handle)
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
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

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
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

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}
