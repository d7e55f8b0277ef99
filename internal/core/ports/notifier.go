package ports

import (
	"context"

	"github.com/GoArmGo/ProofGallery/internal/domain"
)

// Notifier отправляет уведомление по принципу fire-and-forget.
// Ошибка уведомления никогда не откатывает операцию, которая его вызвала.
type Notifier interface {
	Notify(ctx context.Context, to, subject, body string) error
}

// Mailer доставляет письмо (используется воркером)
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// TokenService выдаёт и проверяет bearer-токены
type TokenService interface {
	Issue(user domain.User) (string, error)
	Verify(token string) (domain.Identity, error)
}
