package domain

import (
	"time"
)

// Gallery представляет галерею фотографий,
// соответствует таблице galleries в бд
type Gallery struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	ImageCount  int       `json:"image_count" db:"image_count"`
}

// Image — загруженное изображение. Ключи хранилища наружу не отдаются:
// оригинал выдаётся только через DownloadAuthorizer, превью только через свой эндпоинт.
type Image struct {
	ID              int64     `json:"id" db:"id"`
	GalleryID       int64     `json:"gallery_id" db:"gallery_id"`
	OriginalKey     string    `json:"-" db:"original_key"`
	PreviewKey      string    `json:"-" db:"preview_key"`
	WatermarkFailed bool      `json:"watermark_failed" db:"watermark_failed"`
	UploadedAt      time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// Protected сообщает, закрыто ли превью водяным знаком
func (i Image) Protected() bool {
	return !i.WatermarkFailed && i.PreviewKey != i.OriginalKey
}

// ClientImage — изображение с пометками конкретного клиента
type ClientImage struct {
	Image
	IsFavorite bool `json:"is_favorite" db:"is_favorite"`
	IsSelected bool `json:"is_selected" db:"is_selected"`
	IsApproved bool `json:"is_approved" db:"is_approved"`
}
