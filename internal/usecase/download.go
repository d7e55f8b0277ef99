package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"

	"github.com/GoArmGo/ProofGallery/internal/core/ports"
	"github.com/GoArmGo/ProofGallery/internal/domain"
)

// downloadUseCase implements DownloadUseCase.
// Решение принимается только по строке ApprovedDownload, флаги клиента не учитываются.
type downloadUseCase struct {
	ledger ports.LedgerStorage
	assets ports.AssetStore
	logger *slog.Logger
}

func NewDownloadUseCase(ledger ports.LedgerStorage, assets ports.AssetStore, logger *slog.Logger) DownloadUseCase {
	return &downloadUseCase{ledger: ledger, assets: assets, logger: logger}
}

func handleFor(imageID int64, key, prefix string) *AssetHandle {
	ext := path.Ext(key)
	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &AssetHandle{
		ImageID:     imageID,
		Key:         key,
		Filename:    fmt.Sprintf("%s-%d%s", prefix, imageID, ext),
		ContentType: contentType,
	}
}

// Authorize разрешает скачивание, только если клиенту выдано право на изображение.
// Отсутствие права и отсутствие изображения неразличимы: domain.ErrDownloadDenied.
func (uc *downloadUseCase) Authorize(ctx context.Context, clientID, imageID int64) (*AssetHandle, error) {
	key, err := uc.ledger.FindApprovedOriginal(ctx, clientID, imageID)
	if err != nil {
		if errors.Is(err, domain.ErrForbidden) || errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrDownloadDenied
		}
		return nil, fmt.Errorf("usecase: проверка права скачивания %d: %w", imageID, err)
	}
	return handleFor(imageID, key, "original"), nil
}

func (uc *downloadUseCase) OpenOriginal(ctx context.Context, clientID, imageID int64) (io.ReadCloser, *AssetHandle, error) {
	handle, err := uc.Authorize(ctx, clientID, imageID)
	if err != nil {
		uc.logger.Warn("download denied", "client_id", clientID, "image_id", imageID)
		return nil, nil, err
	}

	rc, err := uc.assets.Get(ctx, handle.Key)
	if err != nil {
		uc.logger.Error("failed to open original", "image_id", imageID, "error", err)
		return nil, nil, fmt.Errorf("usecase: чтение оригинала %d: %w", imageID, err)
	}
	uc.logger.Info("original released", "client_id", clientID, "image_id", imageID)
	return rc, handle, nil
}

// OpenPreview отдаёт превью изображения из назначенной клиенту галереи
func (uc *downloadUseCase) OpenPreview(ctx context.Context, clientID, imageID int64) (io.ReadCloser, *AssetHandle, error) {
	img, err := uc.ledger.GetVisibleImage(ctx, clientID, imageID)
	if err != nil {
		return nil, nil, err
	}

	rc, err := uc.assets.Get(ctx, img.PreviewKey)
	if err != nil {
		return nil, nil, fmt.Errorf("usecase: чтение превью %d: %w", imageID, err)
	}
	return rc, handleFor(imageID, img.PreviewKey, "preview"), nil
}
