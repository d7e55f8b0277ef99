package di

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/GoArmGo/ProofGallery/internal/adapter/auth"
	"github.com/GoArmGo/ProofGallery/internal/adapter/mailer"
	"github.com/GoArmGo/ProofGallery/internal/adapter/notifier"
	"github.com/GoArmGo/ProofGallery/internal/adapter/storage/localfs"
	"github.com/GoArmGo/ProofGallery/internal/adapter/storage/minio"
	"github.com/GoArmGo/ProofGallery/internal/app"
	"github.com/GoArmGo/ProofGallery/internal/config"
	"github.com/GoArmGo/ProofGallery/internal/core/ports"
	"github.com/GoArmGo/ProofGallery/internal/database/client"
	"github.com/GoArmGo/ProofGallery/internal/database/sqlite"
	"github.com/GoArmGo/ProofGallery/internal/database/storage"
	"github.com/GoArmGo/ProofGallery/internal/logger"
	"github.com/GoArmGo/ProofGallery/internal/rabbitmq"
	"github.com/GoArmGo/ProofGallery/internal/usecase"
	"github.com/GoArmGo/ProofGallery/internal/watermark"
)

// BuildApp инициализирует все зависимости и возвращает готовый объект App.
func BuildApp(ctx context.Context) (*app.App, error) {
	// 1. Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	slogger := logger.NewSlog(logger.SlogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	slogger.Info("logger initialized", "level", cfg.LogLevel, "format", cfg.LogFormat)

	// 2. Реляционное хранилище
	store, err := buildStorage(ctx, cfg, slogger)
	if err != nil {
		return nil, err
	}

	// 3. Хранилище файлов
	assets, err := buildAssets(ctx, cfg, slogger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	// 4. Уведомления: RabbitMQ, если настроен, иначе только лог
	var (
		notify   ports.Notifier = notifier.NewLogNotifier(slogger)
		consumer ports.NotificationConsumer
		closers  []func() error
	)
	if cfg.RabbitMQ.RabbitMQURL != "" {
		rabbitMQClient, err := rabbitmq.NewClient(cfg, slogger)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		notify = rabbitMQClient
		consumer = rabbitMQClient
		closers = append(closers, func() error {
			rabbitMQClient.Close()
			return nil
		})
	} else {
		slogger.Warn("RABBITMQ_URL is empty, notifications are only logged")
	}

	smtpMailer := mailer.NewSMTPMailer(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, slogger)

	// 5. Водяной знак
	transformer, err := watermark.New(watermark.Options{
		Text:         cfg.Watermark.Text,
		MaxDimension: cfg.Watermark.MaxDimension,
		Quality:      cfg.Watermark.Quality,
		Timeout:      cfg.Watermark.Timeout,
		MaxPixels:    cfg.Watermark.MaxPixels,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	// 6. Бизнес-логика (usecases)
	tokens := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	services := app.Services{
		Auth:    usecase.NewAuthUseCase(store, tokens, slogger),
		Catalog: usecase.NewCatalogUseCase(store, store),
		Ledger:  usecase.NewEntitlementUseCase(store, store, store, notify, slogger),
		Ingestion: usecase.NewIngestionUseCase(store, assets, transformer, usecase.IngestionConfig{
			MaxBytes:     cfg.Upload.MaxBytes,
			MaxFiles:     cfg.Upload.MaxFiles,
			Concurrency:  cfg.Upload.Concurrency,
			BatchTimeout: cfg.Upload.BatchTimeout,
		}, slogger),
		Downloads: usecase.NewDownloadUseCase(store, assets, slogger),
		Tokens:    tokens,
	}

	if err := services.Auth.EnsureSuperAdmin(ctx, cfg.Auth.SuperAdminEmail, cfg.Auth.SuperAdminPassword); err != nil {
		_ = store.Close()
		return nil, err
	}

	// 7. Лимитер загрузок (не больше 5 пакетов одновременно)
	uploadLimiter := make(chan struct{}, 5)

	application := app.NewApp(
		cfg,
		slogger,
		store,
		services,
		consumer,
		smtpMailer,
		uploadLimiter,
		closers...,
	)

	slogger.Info("all dependencies initialized",
		"storage_backend", cfg.StorageBackend,
		"asset_backend", cfg.AssetBackend,
	)
	return application, nil
}

func buildStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.Storage, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath, logger)
	case config.StorageBackendPostgres:
		dbClient, err := client.NewClient(cfg, logger)
		if err != nil {
			return nil, err
		}
		return storage.NewPostgresStorage(dbClient, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func buildAssets(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.AssetStore, error) {
	switch cfg.AssetBackend {
	case config.AssetBackendS3:
		return minio.NewMinioClient(ctx, cfg, logger)
	case config.AssetBackendLocal:
		return localfs.New(cfg.AssetDir, logger)
	default:
		return nil, fmt.Errorf("unknown asset backend %q", cfg.AssetBackend)
	}
}
