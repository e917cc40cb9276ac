package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"nyaysakhi/api/internal/app"
	"nyaysakhi/api/internal/blob"
	"nyaysakhi/api/internal/cache"
	"nyaysakhi/api/internal/chat"
	"nyaysakhi/api/internal/email"
	"nyaysakhi/api/internal/export"
	"nyaysakhi/api/internal/ocr"
	"nyaysakhi/api/internal/search"
	"nyaysakhi/api/internal/session"
	"nyaysakhi/api/internal/store"
)

const purgeInterval = time.Hour

func runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", zap.Strings("files", applied))
	}

	dataStore := store.NewPostgresStore(db)
	checks := map[string]app.Pinger{}

	var sessions session.Store
	var matchCache cache.Cache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, using postgres for sessions", zap.Error(err))
		} else {
			defer redisStore.Close()
			logger.Info("using redis for refresh sessions and match cache")
			sessions = redisStore
			matchCache = cache.NewRedis(redisStore.Client(), "nyay:cache:")
			checks["redis"] = redisStore
		}
	}

	var meili *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
	}
	searchService := search.NewService(meili, search.NewPgFTS(db), logger)
	defer searchService.Close()

	var blobs blob.Store = blob.Disabled{}
	minioStore, err := blob.NewMinio(ctx, blob.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	}, logger)
	switch {
	case errors.Is(err, blob.ErrNotConfigured):
		logger.Info("object storage not configured, uploads disabled")
	case err != nil:
		logger.Warn("object storage unavailable, uploads disabled", zap.Error(err))
	default:
		blobs = minioStore
		checks["minio"] = minioStore
	}

	assistant := chat.NewAssistant(nil, logger)
	if completer := chat.NewOpenAI(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel); completer != nil {
		assistant = chat.NewAssistant(completer, logger)
		logger.Info("chat model enabled", zap.String("model", completer.Model()))
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, logger)

	service := app.New(cfg, app.Deps{
		Store:    dataStore,
		Sessions: sessions,
		Search:   searchService,
		Cache:    matchCache,
		Blobs:    blobs,
		OCR:      ocr.New(cfg.OCRLanguageList(), logger),
		Chat:     assistant,
		Export:   export.NewService(logger),
		Mail:     mailer,
		Log:      logger,
		Checks:   checks,
	})
	if err := service.Start(ctx); err != nil {
		logger.Warn("requeue unfinished documents", zap.Error(err))
	}

	go purgeExpired(ctx, dataStore, service)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Nyay Sakhi API listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := service.Shutdown(shutdownCtx); err != nil {
		logger.Warn("document processing shutdown", zap.Error(err))
	}
	return nil
}

// purgeExpired drops dead tokens and sessions, and documents past their
// owner's retention period, until ctx ends.
func purgeExpired(ctx context.Context, dataStore *store.PostgresStore, service *app.Service) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := dataStore.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("purge expired tokens", zap.Error(err))
			} else if removed > 0 {
				logger.Info("purged expired tokens", zap.Int64("rows", removed))
			}

			documents, err := service.PurgeExpiredDocuments(ctx)
			if err != nil {
				logger.Warn("purge expired documents", zap.Error(err))
			}
			if documents > 0 {
				logger.Info("purged expired documents", zap.Int("documents", documents))
			}
		}
	}
}
