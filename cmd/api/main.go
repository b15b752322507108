package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"lexshelf/api/internal/app"
	"lexshelf/api/internal/blob"
	"lexshelf/api/internal/config"
	"lexshelf/api/internal/email"
	"lexshelf/api/internal/events"
	"lexshelf/api/internal/metrics"
	"lexshelf/api/internal/search"
	"lexshelf/api/internal/session"
	"lexshelf/api/internal/snapshot"
	"lexshelf/api/internal/store"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.LogFormat)
	defer func() { _ = logger.Sync() }()
	ctx := context.Background()

	if cfg.StoreDriver == store.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabaseURL), 0o755); err != nil {
			logger.Fatal("create database dir", zap.Error(err))
		}
	}
	db, err := store.Open(ctx, cfg.StoreDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, store.MigrationsDir(cfg.MigrationsDir, cfg.StoreDriver)); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	var blobs blob.Store
	switch cfg.BlobBackend {
	case "minio":
		blobs, err = blob.NewMinioStore(ctx, blob.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Prefix:    cfg.MinioPrefix,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			logger.Fatal("minio connection failed", zap.String("endpoint", cfg.MinioEndpoint), zap.Error(err))
		}
	case "sql", "":
		blobs = blob.NewSQLStore(db)
	default:
		logger.Fatal("unknown blob backend", zap.String("backend", cfg.BlobBackend))
	}

	var sessions session.Store
	if strings.TrimSpace(cfg.RedisURL) != "" {
		logger.Info("using redis for admin sessions")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis connection failed", zap.Error(err))
		}
		sessions = redisStore
	} else {
		logger.Info("using process memory for admin sessions")
		sessions = session.NewMemoryStore()
	}
	defer sessions.Close()

	deps := app.Deps{
		Store:    store.New(db),
		Blobs:    blobs,
		Sessions: sessions,
		Metrics:  metrics.NewCollector("lexshelf"),
		Bus:      events.NewBus(logger.Named("events")),
		Logger:   logger,
	}
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		deps.Meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
	}
	if strings.TrimSpace(cfg.SnapshotDir) != "" {
		if err := os.MkdirAll(cfg.SnapshotDir, 0o755); err != nil {
			logger.Fatal("create snapshot dir", zap.Error(err))
		}
		deps.History = snapshot.New(cfg.SnapshotDir)
	}
	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if mailer.IsConfigured() {
		deps.Mailer = mailer
	}

	service := app.New(cfg, deps)
	if err := service.Bootstrap(ctx); err != nil {
		logger.Fatal("bootstrap failed", zap.Error(err))
	}

	stopGC := make(chan struct{})
	if cfg.BlobGCInterval > 0 {
		go collectOrphans(service, cfg.BlobGCInterval, stopGC, logger)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, logger)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("lexshelf api listening",
			zap.String("addr", cfg.Addr),
			zap.String("store", cfg.StoreDriver),
			zap.String("blobs", cfg.BlobBackend),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	close(stopGC)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	if err := service.Flush(shutdownCtx); err != nil {
		logger.Error("final flush failed", zap.Error(err))
	}
	service.Close()
}

func newLogger(format string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if format == "console" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func collectOrphans(service *app.Service, interval time.Duration, stop <-chan struct{}, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			if _, err := service.CollectOrphanBlobs(ctx); err != nil {
				logger.Warn("scheduled blob collection failed", zap.Error(err))
			}
			cancel()
		}
	}
}
