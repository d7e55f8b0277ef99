package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/GoArmGo/ProofGallery/internal/domain"
)

const imageColumns = `i.id, i.gallery_id, i.original_key, i.preview_key, i.watermark_failed, i.uploaded_at`

func (s *PostgresStorage) CreateGallery(ctx context.Context, gallery *domain.Gallery) error {
	start := time.Now()

	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO galleries (name, description) VALUES ($1, $2) RETURNING id, created_at`,
		gallery.Name, gallery.Description,
	).Scan(&gallery.ID, &gallery.CreatedAt)
	if err != nil {
		s.logger.Error("failed to create gallery", "name", gallery.Name, "error", err)
		return fmt.Errorf("ошибка при создании галереи: %w", err)
	}

	s.logger.Info("gallery created",
		"gallery_id", gallery.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (s *PostgresStorage) GetGallery(ctx context.Context, id int64) (*domain.Gallery, error) {
	var g domain.Gallery
	err := s.db.GetContext(ctx, &g, `
	SELECT g.id, g.name, g.description, g.created_at,
	       (SELECT COUNT(*) FROM images i WHERE i.gallery_id = g.id) AS image_count
	FROM galleries g WHERE g.id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: gallery %d", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("ошибка при получении галереи: %w", err)
	}
	return &g, nil
}

func (s *PostgresStorage) ListGalleries(ctx context.Context) ([]domain.Gallery, error) {
	start := time.Now()

	galleries := []domain.Gallery{}
	err := s.db.SelectContext(ctx, &galleries, `
	SELECT g.id, g.name, g.description, g.created_at, COUNT(i.id) AS image_count
	FROM galleries g
	LEFT JOIN images i ON i.gallery_id = g.id
	GROUP BY g.id
	ORDER BY g.created_at DESC, g.id DESC`)
	if err != nil {
		s.logger.Error("failed to list galleries", "error", err)
		return nil, fmt.Errorf("ошибка при получении списка галерей: %w", err)
	}

	s.logger.Debug("galleries listed", "count", len(galleries), "duration_ms", time.Since(start).Milliseconds())
	return galleries, nil
}

// SaveImage регистрирует изображение; несуществующая галерея — domain.ErrNotFound
func (s *PostgresStorage) SaveImage(ctx context.Context, image *domain.Image) error {
	start := time.Now()

	err := s.db.QueryRowxContext(ctx, `
	INSERT INTO images (gallery_id, original_key, preview_key, watermark_failed)
	VALUES ($1, $2, $3, $4)
	RETURNING id, uploaded_at`,
		image.GalleryID, image.OriginalKey, image.PreviewKey, image.WatermarkFailed,
	).Scan(&image.ID, &image.UploadedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: gallery %d", domain.ErrNotFound, image.GalleryID)
		}
		s.logger.Error("failed to save image", "gallery_id", image.GalleryID, "error", err)
		return fmt.Errorf("ошибка при сохранении изображения: %w", err)
	}

	s.logger.Info("image saved",
		"image_id", image.ID,
		"gallery_id", image.GalleryID,
		"watermark_failed", image.WatermarkFailed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (s *PostgresStorage) GetImage(ctx context.Context, id int64) (*domain.Image, error) {
	var img domain.Image
	err := s.db.GetContext(ctx, &img, `SELECT `+imageColumns+` FROM images i WHERE i.id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: image %d", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("ошибка при получении изображения: %w", err)
	}
	return &img, nil
}

func (s *PostgresStorage) UpdateImagePreview(ctx context.Context, id int64, previewKey string, watermarkFailed bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE images SET preview_key = $2, watermark_failed = $3 WHERE id = $1`,
		id, previewKey, watermarkFailed,
	)
	if err != nil {
		s.logger.Error("failed to update image preview", "image_id", id, "error", err)
		return fmt.Errorf("ошибка при обновлении превью: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: image %d", domain.ErrNotFound, id)
	}
	return nil
}
