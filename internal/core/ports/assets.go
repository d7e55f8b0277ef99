package ports

import (
	"context"
	"io"
)

// AssetStore — хранилище бинарных данных (оригиналы и превью).
// Ключи непрозрачны и генерируются при загрузке; перечисления нет намеренно.
type AssetStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
