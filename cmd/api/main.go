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

	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/bryanwahyu/advisor-guard/internal/application"
	"github.com/bryanwahyu/advisor-guard/internal/application/answering"
	"github.com/bryanwahyu/advisor-guard/internal/config"
	"github.com/bryanwahyu/advisor-guard/internal/domain/ai"
	"github.com/bryanwahyu/advisor-guard/internal/domain/answer"
	"github.com/bryanwahyu/advisor-guard/internal/domain/audit"
	"github.com/bryanwahyu/advisor-guard/internal/domain/entity"
	"github.com/bryanwahyu/advisor-guard/internal/domain/metrics"
	"github.com/bryanwahyu/advisor-guard/internal/domain/settings"
	"github.com/bryanwahyu/advisor-guard/internal/domain/validation"
	anthropicc "github.com/bryanwahyu/advisor-guard/internal/infra/ai/anthropic"
	openaic "github.com/bryanwahyu/advisor-guard/internal/infra/ai/openai"
	"github.com/bryanwahyu/advisor-guard/internal/infra/db"
	"github.com/bryanwahyu/advisor-guard/internal/infra/db/sqlrepo"
	"github.com/bryanwahyu/advisor-guard/internal/infra/httpserver"
	"github.com/bryanwahyu/advisor-guard/internal/infra/metricsapi"
	"github.com/bryanwahyu/advisor-guard/internal/infra/settingsfile"
	minioStore "github.com/bryanwahyu/advisor-guard/internal/infra/storage"
	"github.com/bryanwahyu/advisor-guard/internal/middleware"
	"github.com/bryanwahyu/advisor-guard/internal/observability"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer zap.L().Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := application.SystemClock{}

	// connect database
	conn, dialect, err := db.Open(ctx, cfg.DBOptions())
	if err != nil {
		zap.L().Fatal("database connect error", zap.Error(err))
	}
	defer conn.Close()

	// init repos
	directory := sqlrepo.NewDirectoryRepository(conn, dialect)
	auditRepo := sqlrepo.NewAuditRepository(conn, dialect)

	var provider metrics.Provider = sqlrepo.NewMetricsRepository(conn, dialect)
	if cfg.Metrics.Provider == "http" {
		provider = metricsapi.NewClient(cfg.Metrics.BaseURL, cfg.Metrics.Token, config.Seconds(cfg.Metrics.TimeoutSecs))
	}

	model := newModel(cfg.Model)

	// settings are re-read from disk at most once per TTL
	store := settings.NewCachedStore(settingsfile.New(cfg.Settings.Path), config.Seconds(cfg.Settings.TTLSecs), clock.Now)

	obs := observability.New()
	recorder := audit.NewRecorder(auditRepo, config.Seconds(cfg.Audit.TimeoutSecs), clock.Now)
	recorder.OnFailure = obs.AuditFailure

	svc := &answering.Service{
		Directory:      directory,
		Resolver:       entity.NewResolver(directory, clock.Now),
		Gateway:        metrics.NewGateway(provider, clock.Now),
		Composer:       answer.NewComposer(store),
		Model:          model,
		Validator:      validation.NewValidator(store, clock.Now),
		Settings:       store,
		Recorder:       recorder,
		Observer:       obs,
		MetricsTimeout: config.Seconds(cfg.Metrics.TimeoutSecs),
		ModelTimeout:   config.Seconds(cfg.Model.TimeoutSecs),
	}

	health := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: conn},
		"settings": middleware.CheckerFunc(func(ctx context.Context) error {
			_, err := store.Get(ctx)
			return err
		}),
	}

	// audit exports go to minio when enabled
	var archiver audit.Archiver
	if cfg.Minio.Enabled {
		bucket, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			zap.L().Fatal("minio init error", zap.Error(err))
		}
		archiver = bucket
		health["storage"] = middleware.CheckerFunc(bucket.Ping)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
	go limiter.Run(ctx)

	handler := httpserver.NewRouter(httpserver.Deps{
		Ask:         svc,
		Audit:       audit.NewService(auditRepo, clock.Now),
		Users:       directory,
		Archiver:    archiver,
		APIKeys:     cfg.Auth.APIKeys,
		RateLimiter: limiter,
		Metrics:     obs,
		CORSOrigins: cfg.CORS.AllowedOrigins,
		Health:      health,
		Ready:       map[string]middleware.HealthChecker{"database": health["database"]},
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  config.Seconds(cfg.Server.ReadTimeoutSecs),
		WriteTimeout: config.Seconds(cfg.Server.WriteTimeoutSecs),
		IdleTimeout:  config.Seconds(cfg.Server.IdleTimeoutSecs),
	}

	// run server
	go func() {
		zap.L().Info("server listening",
			zap.String("addr", addr),
			zap.String("database", string(dialect)),
			zap.String("metrics_provider", cfg.Metrics.Provider),
			zap.String("model_provider", cfg.Model.Provider),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	zap.L().Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("shutdown error", zap.Error(err))
	}
	recorder.Wait()
	zap.L().Info("server stopped", zap.Int64("audit_write_failures", recorder.Failures()))
}

func newModel(c config.ModelConfig) ai.Client {
	if c.Provider == "anthropic" {
		var opts []option.RequestOption
		if c.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(c.BaseURL))
		}
		return anthropicc.NewClient(c.APIKey, c.Name, opts...)
	}
	if c.BaseURL != "" {
		return openaic.NewClientWithBaseURL(c.APIKey, c.Name, c.BaseURL)
	}
	return openaic.NewClient(c.APIKey, c.Name)
}
