package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gotilapod/pix-gateway/internal/config"
	"github.com/gotilapod/pix-gateway/internal/gateway"
	"github.com/gotilapod/pix-gateway/internal/lock"
	"github.com/gotilapod/pix-gateway/internal/obs"
	"github.com/gotilapod/pix-gateway/internal/reconcile"
	"github.com/gotilapod/pix-gateway/internal/store"
)

// The worker runs the periodic reconciliation sweep: charges whose webhook
// never arrived get their status polled straight from the provider.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics("pixgw", nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

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

	worker := &reconcile.Worker{
		Registry: registry,
		Resolver: resolver,
		Charges:  &store.Store{Pool: pool},
		MinAge:   cfg.ReconcileMinAge,
		Batch:    int32(cfg.ReconcileBatch),
		Locker:   lock.Locker{R: redisClient},
		LockTTL:  2 * cfg.ReconcileInterval,
		Logger:   logger,
	}

	redisConn, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis uri for asynq")
	}

	scheduler := asynq.NewScheduler(redisConn, &asynq.SchedulerOpts{})
	spec := fmt.Sprintf("@every %s", cfg.ReconcileInterval)
	if _, err := scheduler.Register(spec, reconcile.NewSweepTask()); err != nil {
		logger.Fatal().Err(err).Msg("register sweep schedule")
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start scheduler")
	}
	defer scheduler.Shutdown()

	srv := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: 1,
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(reconcile.TaskSweep, worker.HandleSweep)

	go func() {
		<-ctx.Done()
		srv.Shutdown()
	}()

	logger.Info().Str("interval", cfg.ReconcileInterval.String()).Msg("worker starting")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
	logger.Info().Msg("worker shutdown complete")
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

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(pingCtx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(pingCtx); err != nil {
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
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}
