// Package notifier — уведомитель без брокера: письмо только пишется в лог.
// Используется, когда RABBITMQ_URL не задан.
package notifier

import (
	"context"
	"log/slog"
)

type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, to, subject, body string) error {
	n.logger.Info("notification", "to", to, "subject", subject, "body", body)
	return nil
}
