package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/GoArmGo/ProofGallery/internal/core/ports"
	"github.com/GoArmGo/ProofGallery/internal/domain"
	"github.com/GoArmGo/ProofGallery/internal/watermark"
)

const (
	originalPrefix = "originals/"
	previewPrefix  = "previews/"
	previewType    = "image/jpeg"

	defaultBatchTimeout = 10 * time.Minute
)

// допустимые расширения и MIME-типы, определяемые по содержимому
var allowedFormats = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// IngestionConfig — ограничения загрузки.
// BatchTimeout ограничивает обработку пакета независимо от жизни HTTP-запроса.
type IngestionConfig struct {
	MaxBytes     int64
	MaxFiles     int
	Concurrency  int
	BatchTimeout time.Duration
}

// ingestionUseCase implements IngestionUseCase
type ingestionUseCase struct {
	catalog  ports.CatalogStorage
	assets   ports.AssetStore
	renderer PreviewRenderer
	cfg      IngestionConfig
	logger   *slog.Logger
}

func NewIngestionUseCase(
	catalog ports.CatalogStorage,
	assets ports.AssetStore,
	renderer PreviewRenderer,
	cfg IngestionConfig,
	logger *slog.Logger,
) IngestionUseCase {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = defaultBatchTimeout
	}
	return &ingestionUseCase{
		catalog:  catalog,
		assets:   assets,
		renderer: renderer,
		cfg:      cfg,
		logger:   logger,
	}
}

// validate проверяет размер, расширение и сигнатуру файла до любой обработки.
// Возвращает расширение для ключа и MIME-тип оригинала.
func (uc *ingestionUseCase) validate(upload Upload) (string, string, error) {
	if len(upload.Data) == 0 {
		return "", "", fmt.Errorf("%w: empty file", domain.ErrValidation)
	}
	if uc.cfg.MaxBytes > 0 && int64(len(upload.Data)) > uc.cfg.MaxBytes {
		return "", "", fmt.Errorf("%w: file exceeds %d bytes", domain.ErrValidation, uc.cfg.MaxBytes)
	}

	ext := strings.ToLower(filepath.Ext(upload.Filename))
	if _, ok := allowedFormats[ext]; !ok {
		return "", "", fmt.Errorf("%w: unsupported file extension %q", domain.ErrValidation, ext)
	}

	sniffed := http.DetectContentType(upload.Data)
	for _, allowed := range allowedFormats {
		if sniffed == allowed {
			return ext, sniffed, nil
		}
	}
	return "", "", fmt.Errorf("%w: file content is not a supported image (%s)", domain.ErrValidation, sniffed)
}

// Ingest: оригинал -> превью -> строка в каталоге.
// Сбой превью не отменяет загрузку: превью подменяется оригиналом, изображение помечается watermark_failed.
func (uc *ingestionUseCase) Ingest(ctx context.Context, galleryID int64, upload Upload) (*IngestedImage, error) {
	start := time.Now()

	ext, contentType, err := uc.validate(upload)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	originalKey := originalPrefix + id + ext
	if err := uc.assets.Put(ctx, originalKey, bytes.NewReader(upload.Data), contentType); err != nil {
		return nil, fmt.Errorf("usecase: сохранение оригинала: %w", err)
	}

	result := &IngestedImage{Filename: upload.Filename}
	previewKey, reason := uc.buildPreview(ctx, id, upload.Data)
	if previewKey == "" {
		previewKey = originalKey
		result.Degraded = true
		result.Reason = reason
		uc.logger.Warn("watermark failed, original used as preview",
			"filename", upload.Filename,
			"gallery_id", galleryID,
			"reason", reason,
		)
	}

	img := &domain.Image{
		GalleryID:       galleryID,
		OriginalKey:     originalKey,
		PreviewKey:      previewKey,
		WatermarkFailed: result.Degraded,
	}
	if err := uc.catalog.SaveImage(ctx, img); err != nil {
		uc.cleanup(originalKey, previewKey)
		return nil, fmt.Errorf("usecase: регистрация изображения: %w", err)
	}
	result.Image = img

	uc.logger.Info("image ingested",
		"image_id", img.ID,
		"gallery_id", galleryID,
		"degraded", result.Degraded,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// buildPreview возвращает ключ превью либо пустую строку и причину сбоя
func (uc *ingestionUseCase) buildPreview(ctx context.Context, id string, data []byte) (string, string) {
	preview, err := uc.renderer.Transform(ctx, data)
	if err != nil {
		var te *watermark.TransformError
		if errors.As(err, &te) {
			return "", string(te.Reason)
		}
		return "", err.Error()
	}

	key := previewPrefix + id + ".jpg"
	if err := uc.assets.Put(ctx, key, bytes.NewReader(preview), previewType); err != nil {
		uc.logger.Error("failed to store preview", "key", key, "error", err)
		return "", "preview_store"
	}
	return key, ""
}

// cleanup удаляет уже записанные файлы, если изображение не удалось зарегистрировать
func (uc *ingestionUseCase) cleanup(originalKey, previewKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	keys := []string{originalKey}
	if previewKey != originalKey {
		keys = append(keys, previewKey)
	}
	for _, key := range keys {
		if err := uc.assets.Delete(ctx, key); err != nil {
			uc.logger.Error("failed to clean up orphaned asset", "key", key, "error", err)
		}
	}
}

// IngestBatch обрабатывает файлы с ограниченным параллелизмом.
// errgroup без общего контекста: сбой одного файла не отменяет соседние.
func (uc *ingestionUseCase) IngestBatch(ctx context.Context, galleryID int64, uploads []Upload) (*BatchResult, error) {
	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: no files uploaded", domain.ErrValidation)
	}
	if uc.cfg.MaxFiles > 0 && len(uploads) > uc.cfg.MaxFiles {
		return nil, fmt.Errorf("%w: at most %d files per upload", domain.ErrValidation, uc.cfg.MaxFiles)
	}

	// файлы уже приняты целиком: отмена запроса или таймаут роутера
	// не должны обрывать оставшиеся файлы на полпути
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.cfg.BatchTimeout)
	defer cancel()

	if _, err := uc.catalog.GetGallery(ctx, galleryID); err != nil {
		return nil, fmt.Errorf("usecase: загрузка в галерею: %w", err)
	}

	type outcome struct {
		ingested *IngestedImage
		err      error
	}
	outcomes := make([]outcome, len(uploads))

	var g errgroup.Group
	g.SetLimit(uc.cfg.Concurrency)
	for i, upload := range uploads {
		i, upload := i, upload
		g.Go(func() error {
			ingested, err := uc.Ingest(ctx, galleryID, upload)
			outcomes[i] = outcome{ingested: ingested, err: err}
			return nil
		})
	}
	_ = g.Wait()

	result := &BatchResult{Uploaded: []IngestedImage{}, Failed: []FailedUpload{}}
	for i, o := range outcomes {
		if o.err != nil {
			uc.logger.Warn("upload rejected", "filename", uploads[i].Filename, "error", o.err)
			result.Failed = append(result.Failed, FailedUpload{Filename: uploads[i].Filename, Error: o.err.Error()})
			continue
		}
		result.Uploaded = append(result.Uploaded, *o.ingested)
	}

	uc.logger.Info("batch ingested",
		"gallery_id", galleryID,
		"uploaded", len(result.Uploaded),
		"failed", len(result.Failed),
	)
	return result, nil
}

// Rewatermark строит превью заново из оригинала и подменяет ключ превью.
// При повторном сбое изображение остаётся в прежнем состоянии.
func (uc *ingestionUseCase) Rewatermark(ctx context.Context, imageID int64) (*IngestedImage, error) {
	img, err := uc.catalog.GetImage(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("usecase: перегенерация превью: %w", err)
	}

	rc, err := uc.assets.Get(ctx, img.OriginalKey)
	if err != nil {
		return nil, fmt.Errorf("usecase: чтение оригинала %d: %w", imageID, err)
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return nil, fmt.Errorf("usecase: чтение оригинала %d: %w", imageID, err)
	}

	newKey, reason := uc.buildPreview(ctx, uuid.New().String(), data)
	if newKey == "" {
		uc.logger.Warn("rewatermark failed", "image_id", imageID, "reason", reason)
		return &IngestedImage{Filename: filepath.Base(img.OriginalKey), Image: img, Degraded: true, Reason: reason}, nil
	}

	if err := uc.catalog.UpdateImagePreview(ctx, imageID, newKey, false); err != nil {
		uc.cleanup(newKey, newKey)
		return nil, fmt.Errorf("usecase: обновление превью %d: %w", imageID, err)
	}

	oldKey := img.PreviewKey
	if oldKey != img.OriginalKey {
		if err := uc.assets.Delete(ctx, oldKey); err != nil {
			uc.logger.Warn("failed to delete stale preview", "key", oldKey, "error", err)
		}
	}

	img.PreviewKey = newKey
	img.WatermarkFailed = false
	uc.logger.Info("preview regenerated", "image_id", imageID)
	return &IngestedImage{Filename: filepath.Base(img.OriginalKey), Image: img}, nil
}
