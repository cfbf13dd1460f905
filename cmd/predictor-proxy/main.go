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

	"github.com/Siyabonga8/winmastersai/internal/server"
	"github.com/Siyabonga8/winmastersai/pkg/auth"
	"github.com/Siyabonga8/winmastersai/pkg/cache"
	"github.com/Siyabonga8/winmastersai/pkg/config"
	"github.com/Siyabonga8/winmastersai/pkg/logging"
	"github.com/Siyabonga8/winmastersai/pkg/predictor"
	"github.com/Siyabonga8/winmastersai/pkg/upstream"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:   logging.LogLevel(cfg.LogLevel),
		Pretty:  cfg.LogPretty,
		Output:  os.Stderr,
		Service: "predictor-proxy",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		log.Fatal().Err(err).Msg("Proxy failed")
	}
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	handler, err := newHandler(cfg, store, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Must outlast one upstream call so a slow fetch can still answer.
		WriteTimeout:   cfg.UpstreamTimeout + 10*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("predictor_url", cfg.PredictorURL).
			Int("matches", len(cfg.MatchIDs)).
			Str("cache_backend", cfg.CacheBackend).
			Dur("cache_ttl", cfg.CacheTTL).
			Dur("upstream_timeout", cfg.UpstreamTimeout).
			Bool("privileged_key_set", cfg.PredictorKey != "").
			Msg("Starting predictor proxy")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("Server exited")
	return nil
}

// newStore builds the configured cache backend and its close func.
func newStore(ctx context.Context, cfg *config.Config) (cache.Store, func(), error) {
	if cfg.CacheBackend != config.BackendRedis {
		return cache.NewMemoryStore(), func() {}, nil
	}

	opts, err := redisOptions(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	redisClient := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	log.Info().Str("addr", opts.Addr).Msg("Connected to Redis")

	closeFn := func() {
		if err := redisClient.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close Redis client")
		}
	}
	return cache.NewRedisStore(redisClient), closeFn, nil
}

// redisOptions accepts either a redis:// url or a bare host:port.
func redisOptions(raw string) (*redis.Options, error) {
	if strings.Contains(raw, "://") {
		opts, err := redis.ParseURL(raw)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: raw}, nil
}

// newHandler wires upstream, verifier, service and router over store.
func newHandler(cfg *config.Config, store cache.Store, logger zerolog.Logger) (http.Handler, error) {
	upCfg := upstream.DefaultConfig(cfg.PredictorURL)
	upCfg.PrivilegedKey = cfg.PredictorKey
	upCfg.UserAgent = cfg.UserAgent
	upCfg.Timeout = cfg.UpstreamTimeout
	upCfg.Retry.MaxAttempts = cfg.UpstreamRetries

	client, err := upstream.New(upCfg)
	if err != nil {
		return nil, fmt.Errorf("create upstream client: %w", err)
	}

	verifier, err := auth.NewVerifier([]byte(cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("create verifier: %w", err)
	}

	svc, err := predictor.NewService(store, client, predictor.Config{
		CacheTTL:       cfg.CacheTTL,
		MaxConcurrency: cfg.MaxConcurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("create prediction service: %w", err)
	}

	return server.New(server.Options{
		Predictions: svc,
		Verifier:    verifier,
		MatchIDs:    cfg.MatchIDs,
		Logger:      logger,
	}), nil
}
