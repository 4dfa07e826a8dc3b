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

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"hosiery/backend/internal/cache"
	"hosiery/backend/internal/config"
	"hosiery/backend/internal/domain"
	"hosiery/backend/internal/httpapi"
	"hosiery/backend/internal/lock"
	"hosiery/backend/internal/logging"
	"hosiery/backend/internal/pricing"
	"hosiery/backend/internal/service"
	"hosiery/backend/internal/store"
	"hosiery/backend/internal/store/memory"
	"hosiery/backend/internal/store/sqlstore"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := validateConfig(cfg); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	gin.SetMode(gin.ReleaseMode)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var repo store.Repository
	checks := make([]func(context.Context) error, 0, 2)
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		db, err := sqlstore.Open(ctx, sqlstore.Options{
			Driver:          cfg.DatabaseDriver,
			DSN:             cfg.DatabaseURL,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnLifetime,
		})
		if err != nil {
			logger.WithError(err).WithField("driver", cfg.DatabaseDriver).
				Fatal("database unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
		}
		if cfg.DBAutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				logger.WithError(err).Fatal("schema migration failed")
			}
		}
		repo = db
		checks = append(checks, db.Ping)
		closers = append(closers, db.Close)
		logger.WithField("driver", cfg.DatabaseDriver).Info("repository: sql")
	} else if cfg.SeedDemoData {
		repo = memory.NewSeeded()
		logger.Info("repository: in-memory (seeded)")
	} else {
		repo = memory.New()
		logger.Info("repository: in-memory")
	}

	var snapshots cache.Cache = cache.Noop{}
	var locker lock.Locker = lock.NewLocal()
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.WithError(err).Warn("redis unavailable, using noop cache and in-process locks")
		} else {
			redisCache := cache.NewRedis(client)
			snapshots = redisCache
			checks = append(checks, redisCache.Ping)
			locker = lock.NewRedis(client, cfg.LockTTL())
			closers = append(closers, client.Close)
			logger.WithField("addr", cfg.RedisAddr).Info("cache and locks: redis")
		}
	} else {
		logger.Info("cache: noop, locks: in-process")
	}

	svc := service.New(repo, service.Options{
		Cache:    snapshots,
		CacheTTL: cfg.CacheTTL(),
		Locker:   locker,
		Pricing:  pricing.NewEngine(snapshots, 0, logger),
		Policy:   domain.DiscountPolicy(cfg.DiscountPolicy),
		Logger:   logger,
	})
	api := httpapi.New(svc, httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         logger,
		Ready:          readiness(checks),
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"addr":            cfg.Address(),
			"discount_policy": svc.Policy(),
		}).Info("inventory backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.WithError(err).Error("close error")
		}
	}

	logger.Info("server stopped")
}

// readiness runs every check in order; nil when there is nothing to check.
func readiness(checks []func(context.Context) error) func(context.Context) error {
	if len(checks) == 0 {
		return nil
	}
	return func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func validateConfig(cfg config.Config) error {
	switch cfg.DatabaseDriver {
	case sqlstore.DriverPostgres, sqlstore.DriverMySQL:
	default:
		return fmt.Errorf("DATABASE_DRIVER must be %q or %q, got %q", sqlstore.DriverPostgres, sqlstore.DriverMySQL, cfg.DatabaseDriver)
	}
	if !domain.DiscountPolicy(cfg.DiscountPolicy).Valid() {
		return fmt.Errorf("DISCOUNT_POLICY must be %q or %q, got %q", domain.DiscountFull, domain.DiscountProrate, cfg.DiscountPolicy)
	}
	if cfg.CacheTTLSeconds <= 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS must be positive")
	}
	if cfg.LockTTLSeconds <= 0 {
		return fmt.Errorf("LOCK_TTL_SECONDS must be positive")
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be a positive duration")
	}
	if cfg.DBMaxOpenConns <= 0 || cfg.DBMaxIdleConns < 0 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be positive and DB_MAX_IDLE_CONNS not negative")
	}
	if cfg.DBConnLifetime < 0 {
		return fmt.Errorf("DB_CONN_MAX_LIFETIME must be a valid duration")
	}
	if cfg.RedisDB < 0 {
		return fmt.Errorf("REDIS_DB must not be negative")
	}
	if len(cfg.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_ORIGINS must list at least one origin")
	}
	return nil
}
