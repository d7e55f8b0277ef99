package ports

import (
	"context"

	"github.com/GoArmGo/ProofGallery/internal/messaging/payloads"
)

// NotificationConsumer определяет методы для потребления уведомлений из очереди,
// используется воркером
type NotificationConsumer interface {
	StartConsumingNotifications(ctx context.Context, handler func(context.Context, payloads.NotificationPayload) error) error
}
