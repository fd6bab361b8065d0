package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httpHandlers "github.com/JeanGrijp/joker/internal/adapters/http/handlers"
	"github.com/JeanGrijp/joker/internal/adapters/jokes"
	"github.com/JeanGrijp/joker/internal/adapters/metrics"
	redisstorage "github.com/JeanGrijp/joker/internal/adapters/storage/redis"
	"github.com/JeanGrijp/joker/internal/adapters/storage/sqlstore"
	"github.com/JeanGrijp/joker/internal/config"
	"github.com/JeanGrijp/joker/internal/core/domain"
	"github.com/JeanGrijp/joker/internal/core/ports"
	"github.com/JeanGrijp/joker/internal/core/services"
	"github.com/JeanGrijp/joker/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, err := initStorage(ctx, cfg.Storage, zl)
	if err != nil {
		zl.Fatal("failed to init storage", zap.Error(err))
	}
	defer backends.close()

	if err := seedPolicies(ctx, backends.limiter, cfg.RateLimiter.Policies, zl); err != nil {
		zl.Fatal("failed to seed rate limit policies", zap.Error(err))
	}

	location := cfg.RateLimiter.Location
	registry := services.NewHandlerRegistry(cfg.RateLimiter.Handlers)
	limiterService, err := services.NewRateLimiterService(backends.limiter, backends.limiter, services.Config{
		Registry: registry,
		Clock:    func() time.Time { return time.Now().In(location) },
		Logger:   zl.Named("ratelimit"),
	})
	if err != nil {
		zl.Fatal("failed to create limiter", zap.Error(err))
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	limiterMetrics := metrics.NewCollectors(promRegistry)
	limiter := metrics.Instrument(limiterService, limiterMetrics)

	userService, err := services.NewUserService(backends.data, nil)
	if err != nil {
		zl.Fatal("failed to create user service", zap.Error(err))
	}

	var provider ports.JokeProvider
	if cfg.Jokes.ProviderURL != "" {
		provider, err = jokes.NewProvider(cfg.Jokes.ProviderURL, cfg.Jokes.ProviderTimeout)
		if err != nil {
			zl.Fatal("failed to create joke provider", zap.Error(err))
		}
	}
	jokeService, err := services.NewJokeService(backends.data, provider)
	if err != nil {
		zl.Fatal("failed to create joke service", zap.Error(err))
	}

	router := httpHandlers.NewRouter(httpHandlers.RouterDeps{
		Limiter:        limiter,
		Registry:       registry,
		DefaultHandler: cfg.RateLimiter.DefaultHandler,
		Users:          userService,
		Jokes:          jokeService,
		Health:         backends.pingers,
		Metrics:        limiterMetrics.Handler(),
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         zl.Named("http"),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("server listening", zap.String("addr", srv.Addr), zap.String("storage", cfg.Storage.Type), zap.String("limiter_backend", cfg.Storage.LimiterBackend))
		err := srv.ListenAndServe()
		if err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		zl.Info("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("graceful shutdown failed", zap.Error(err))
	}
}

type storageBackends struct {
	data    ports.Storage
	limiter ports.LimiterStorage
	pingers map[string]httpHandlers.Pinger
	close   func()
}

// initStorage abre o banco relacional e, quando configurado, move políticas e
// log de requisições para o redis.
func initStorage(ctx context.Context, cfg config.StorageConfig, zl *zap.Logger) (storageBackends, error) {
	dialect, err := sqlstore.ParseDialect(cfg.Type)
	if err != nil {
		return storageBackends{}, err
	}

	db, err := sqlstore.Open(ctx, sqlstore.Config{
		Dialect:  dialect,
		DSN:      cfg.DatabaseURL,
		MaxConns: cfg.MaxConns,
		MaxIdle:  cfg.MaxIdle,
	})
	if err != nil {
		return storageBackends{}, err
	}

	backends := storageBackends{
		data:    db,
		limiter: db,
		pingers: map[string]httpHandlers.Pinger{"database": db},
		close: func() {
			if err := db.Close(); err != nil {
				zl.Error("failed to close database", zap.Error(err))
			}
		},
	}

	switch strings.ToLower(strings.TrimSpace(cfg.LimiterBackend)) {
	case "", "sql":
		return backends, nil
	case "redis":
		redisCfg := redisstorage.Config{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
		rs, err := redisstorage.New(redisCfg)
		if err != nil {
			backends.close()
			return storageBackends{}, err
		}
		closeDB := backends.close
		backends.limiter = rs
		backends.pingers["redis"] = rs
		backends.close = func() {
			if err := rs.Close(); err != nil {
				zl.Error("failed to close redis storage", zap.Error(err))
			}
			closeDB()
		}
		return backends, nil
	default:
		backends.close()
		return storageBackends{}, fmt.Errorf("unsupported rate limit backend: %s", cfg.LimiterBackend)
	}
}

func seedPolicies(ctx context.Context, store ports.PolicyStore, policies []domain.Policy, zl *zap.Logger) error {
	for _, p := range policies {
		// Limits changed at runtime survive restarts.
		if existing, err := store.FindPolicy(ctx, p.ResourceID); err == nil {
			p.MaxCount = existing.MaxCount
		} else if !domain.IsPolicyNotFound(err) {
			return err
		}

		p.UpdatedAt = time.Now().UTC()
		seeded, err := store.UpsertPolicy(ctx, p)
		if err != nil {
			return fmt.Errorf("seed policy %s: %w", p.ResourceID, err)
		}
		zl.Info("rate limit policy ready",
			zap.String("resource", seeded.ResourceID),
			zap.Int("max_count", seeded.MaxCount),
			zap.Duration("window", seeded.Window),
		)
	}
	return nil
}
