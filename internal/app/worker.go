package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/GoArmGo/ProofGallery/internal/core/ports"
	"github.com/GoArmGo/ProofGallery/internal/messaging/payloads"
)

// notificationHandler доставляет письмо из очереди через Mailer
func notificationHandler(mailer ports.Mailer, logger *slog.Logger) func(context.Context, payloads.NotificationPayload) error {
	return func(ctx context.Context, payload payloads.NotificationPayload) error {
		if payload.To == "" {
			return fmt.Errorf("notification without recipient (subject %q)", payload.Subject)
		}
		if err := mailer.Send(ctx, payload.To, payload.Subject, payload.Body); err != nil {
			logger.Error("failed to deliver notification", "to", payload.To, "subject", payload.Subject, "error", err)
			return err
		}
		logger.Info("notification delivered", "to", payload.To, "subject", payload.Subject)
		return nil
	}
}

// runWorker запускает потребителя RabbitMQ и работает до отмены ctx
func runWorker(ctx context.Context, consumer ports.NotificationConsumer, mailer ports.Mailer, logger *slog.Logger) error {
	if consumer == nil {
		return fmt.Errorf("режим worker требует RABBITMQ_URL")
	}

	logger.Info("worker started, waiting for notifications")

	if err := consumer.StartConsumingNotifications(ctx, notificationHandler(mailer, logger)); err != nil {
		return fmt.Errorf("ошибка при запуске потребителя RabbitMQ: %w", err)
	}

	<-ctx.Done()
	logger.Info("worker stopped")
	return nil
}
