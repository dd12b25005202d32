package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gotilapod/pix-gateway/internal/app"
	"github.com/gotilapod/pix-gateway/internal/charge"
	"github.com/gotilapod/pix-gateway/internal/common"
	"github.com/gotilapod/pix-gateway/internal/config"
	"github.com/gotilapod/pix-gateway/internal/gateway"
	"github.com/gotilapod/pix-gateway/internal/health"
	"github.com/gotilapod/pix-gateway/internal/hook"
	"github.com/gotilapod/pix-gateway/internal/httpgate"
	"github.com/gotilapod/pix-gateway/internal/obs"
	"github.com/gotilapod/pix-gateway/internal/ratelimit"
	"github.com/gotilapod/pix-gateway/internal/reconcile"
	"github.com/gotilapod/pix-gateway/internal/security"
	"github.com/gotilapod/pix-gateway/internal/store"
)

const metricsNamespace = "pixgw"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "pix-gateway-api",
			Endpoint:      cfg.TracingEndpoint,
			SamplingRatio: cfg.TracingSampling,
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

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	if err := app.MigrateUp(migrationSource(), cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	resolver := newResolver(cfg)
	tokens := &gateway.TokenCache{Buffer: cfg.TokenBuffer}
	registry := gateway.NewRegistry(gateway.RegistryConfig{
		Resolver: resolver,
		Tokens:   tokens,
		Timeout:  cfg.ProviderTimeout,
		DemoTemplate: gateway.Demo{
			PixKey:       cfg.DemoPixKey,
			MerchantName: cfg.DemoMerchantName,
			MerchantCity: cfg.DemoMerchantCity,
		},
		Logger: logger,
	})
	logger.Info().Strs("providers", registry.Names()).Msg("provider registry ready")

	st := &store.Store{Pool: pool}

	sanitizer := gateway.NewSanitizer(logger)
	if cfg.AmountCeiling > 0 {
		sanitizer.CeilingCents = cfg.AmountCeiling
	}

	chargeSvc := &charge.Service{
		Registry:     registry,
		Resolver:     resolver,
		Sanitizer:    sanitizer,
		Charges:      st,
		PostbackBase: cfg.PostbackBaseURL,
		Logger:       logger,
	}
	chargeHandler := &charge.Handler{Svc: chargeSvc}

	reconciler := &reconcile.Reconciler{
		Registry: registry,
		Resolver: resolver,
		Orders:   st,
		Logger:   logger,
	}
	statusHandler := &reconcile.Handler{Reconciler: reconciler}

	webhook := hook.Webhook{
		Registry:  registry,
		Store:     st,
		Replay:    redisClient,
		ReplayTTL: cfg.WebhookReplayTTL,
		Logger:    logger,
	}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	limiter, err := ratelimit.NewUlule(redisClient, "pixgw:rl:", time.Minute, cfg.RateLimitRPM)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}
	limit := ratelimit.Handler{
		Limiter: limiter,
		Config: ratelimit.Config{
			Key:    func(r *http.Request) string { return common.ClientIP(r) },
			Window: time.Minute,
			Max:    cfg.RateLimitRPM,
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("rate limiter unavailable")
		},
	}

	buckets := obs.ParseBucketsCSV(cfg.MetricsBuckets)
	httpMetrics := obs.NewHTTPMetrics(metricsNamespace, buckets, nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: true}.Middleware)
	r.Use(security.BodyLimit{Max: 1 << 20}.Middleware)
	r.Use(httpgate.Gate{AllowedOrigins: cfg.CORSAllowedOrigins}.Middleware)
	r.MethodNotAllowed(httpgate.MethodNotAllowed)

	r.Handle("/metrics", promhttp.Handler())

	healthHandler := health.Handler{Checker: readinessChecker{db: pool, redis: redisClient}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1/pix", func(v chi.Router) {
		v.Use(limit.Middleware)
		v.With(idem.Middleware).Post("/{provider}/create", chargeHandler.Create)
		v.Get("/status", statusHandler.Status)
		v.Post("/status", statusHandler.Status)
		v.Post("/webhook/{provider}", webhook.Handle)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-serverCtx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server shutdown complete")
}

func newResolver(cfg *config.Config) gateway.Resolver {
	configured := make(map[string]gateway.Credentials, len(cfg.Providers))
	for name, creds := range cfg.Providers {
		configured[name] = gateway.Credentials{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			APIKey:       creds.APIKey,
			PublicKey:    creds.PublicKey,
			SecretKey:    creds.SecretKey,
			Certificate:  creds.Certificate,
			PixKey:       creds.PixKey,
			Sandbox:      creds.Sandbox,
		}
	}
	serverOnly := make(map[string]bool, len(cfg.ServerOnlyProviders))
	for _, name := range cfg.ServerOnlyProviders {
		serverOnly[strings.ToLower(strings.TrimSpace(name))] = true
	}
	return gateway.Resolver{Configured: configured, ServerOnly: serverOnly}
}

func migrationSource() string {
	if src := strings.TrimSpace(os.Getenv("MIGRATIONS_SOURCE")); src != "" {
		return src
	}
	return "file://db/migrations"
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "pix-gateway-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}
