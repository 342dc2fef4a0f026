// Package app wires configuration, storage, schedulers and the HTTP
// server into one runnable service.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pagefaves/pagefaves/internal/config"
	"github.com/pagefaves/pagefaves/internal/domain"
	"github.com/pagefaves/pagefaves/internal/httpserver"
	"github.com/pagefaves/pagefaves/internal/httpserver/deps"
	"github.com/pagefaves/pagefaves/internal/httpserver/mw"
	"github.com/pagefaves/pagefaves/internal/logger"
	"github.com/pagefaves/pagefaves/internal/records"
	"github.com/pagefaves/pagefaves/internal/redis"
	"github.com/pagefaves/pagefaves/internal/scheduler"
	"github.com/pagefaves/pagefaves/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	records     records.Store
	importer    *scheduler.Importer
	gc          *scheduler.GarbageCollector
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Server-side validation: no origin, so every URL must already be
	// in relative form.
	norm, err := domain.NewNormalizer("")
	if err != nil {
		loggerClient.Errorf("failed to build normalizer: %v", err)
		os.Exit(1)
	}

	// Record storage: Redis in production, memory in dev mode.
	var recordStore records.Store
	var redisClient *goredis.Client
	if cfg.DevMode {
		loggerClient.Warn("dev mode: records are held in memory and lost on restart")
		recordStore = records.NewMemoryStore()
	} else {
		loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		redisClient, err = redis.New(redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient)
		if err != nil {
			loggerClient.Errorf("Failed to connect to Redis: %v", err)
			os.Exit(1)
		}
		loggerClient.Info("Redis initialized successfully")
		recordStore = records.NewRedisStore(redisClient)
	}

	// Seed importer (if an import file is configured)
	var importer *scheduler.Importer
	var reloadTrigger chan struct{}
	if cfg.ImportFile != "" {
		loggerClient.Info("import file configured, initializing importer",
			logger.String("file", cfg.ImportFile))
		reloadTrigger = make(chan struct{}, 1)
		importer = scheduler.NewImporter(
			cfg.ImportFile,
			recordStore,
			norm,
			loggerClient,
			cfg.ReloadInterval,
			reloadTrigger,
		)
	} else {
		loggerClient.Info("no import file configured, seed importer disabled")
	}

	gc := scheduler.NewGarbageCollector(
		recordStore,
		loggerClient,
		cfg.GCInterval,
		cfg.GCThreshold,
	)

	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		TimeNow:        time.Now,
		Records:        recordStore,
		RedisClient:    redisClient,
		Normalizer:     norm,
		PublicBaseURL:  cfg.PublicBaseURL,
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedCIDRS:   cfg.AllowedCIDRS,
		TrustProxy:     cfg.TrustProxy,
		ReloadTrigger:  reloadTrigger,
		RateLimit: mw.RateLimitConfig{
			Burst:             cfg.RateLimitBurst,
			RefillPerIPPerMin: cfg.RateLimitPerMin,
			TrustProxy:        cfg.TrustProxy,
		},
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		records:     recordStore,
		importer:    importer,
		gc:          gc,
	}
}

func (a *App) Run() error {
	a.logger.Infof("Starting pagefaves %s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("pagefaves %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.importer != nil {
		if err := a.importer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start importer: %w", err)
		}
		a.logger.Info("seed importer started",
			logger.Duration("interval", a.cfg.ReloadInterval))
	}

	if err := a.gc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start garbage collector: %w", err)
	}
	a.logger.Info("garbage collector started",
		logger.Duration("interval", a.cfg.GCInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	if a.importer != nil {
		a.importer.Stop()
	}
	a.gc.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if err := a.records.Close(); err != nil {
		a.logger.Warnf("failed to close record store: %v", err)
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("Redis closed cleanly")
		}
	}

	a.logger.Info("pagefaves stopped cleanly")
	return nil
}
