package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/GoArmGo/ProofGallery/internal/config"
	"github.com/GoArmGo/ProofGallery/internal/core/ports"
)

const (
	ModeServer = "server"
	ModeWorker = "worker"
)

type App struct {
	Config        *config.Config
	logger        *slog.Logger
	storage       ports.Storage
	services      Services
	consumer      ports.NotificationConsumer
	mailer        ports.Mailer
	uploadLimiter chan struct{}
	closers       []func() error
}

func NewApp(cfg *config.Config,
	logger *slog.Logger,
	storage ports.Storage,
	services Services,
	consumer ports.NotificationConsumer,
	mailer ports.Mailer,
	uploadLimiter chan struct{},
	closers ...func() error) *App {
	return &App{
		Config:        cfg,
		logger:        logger,
		storage:       storage,
		services:      services,
		consumer:      consumer,
		mailer:        mailer,
		uploadLimiter: uploadLimiter,
		closers:       closers,
	}
}

// LoggerIns возвращает основной логгер приложения
func (a *App) LoggerIns() *slog.Logger {
	return a.logger
}

func (a *App) Run(ctx context.Context, mode string) error {
	// канал для graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.Info("starting", "mode", mode)

	var err error
	switch mode {
	case ModeServer:
		err = runServer(ctx, a.Config, NewRouter(a.Config, a.services, a.uploadLimiter, a.logger), a.logger)
	case ModeWorker:
		err = runWorker(ctx, a.consumer, a.mailer, a.logger)
	default:
		err = fmt.Errorf("неизвестный режим: %s (используйте 'server' или 'worker')", mode)
	}

	// аккуратно закрываем ресурсы
	if closeErr := a.Shutdown(); closeErr != nil {
		a.logger.Error("shutdown failed", "error", closeErr)
	}
	if err != nil {
		return err
	}

	a.logger.Info("stopped gracefully")
	return nil
}

// Shutdown закрывает все ресурсы приложения
func (a *App) Shutdown() error {
	var errs []error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("ошибка закрытия БД: %w", err))
		}
	}
	return errors.Join(errs...)
}
