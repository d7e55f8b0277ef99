package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/GoArmGo/ProofGallery/internal/core/ports"
	"github.com/GoArmGo/ProofGallery/internal/domain"
)

const notifyTimeout = 5 * time.Second

// entitlementUseCase implements EntitlementUseCase
type entitlementUseCase struct {
	users    ports.UserStorage
	catalog  ports.CatalogStorage
	ledger   ports.LedgerStorage
	notifier ports.Notifier
	logger   *slog.Logger
}

func NewEntitlementUseCase(
	users ports.UserStorage,
	catalog ports.CatalogStorage,
	ledger ports.LedgerStorage,
	notifier ports.Notifier,
	logger *slog.Logger,
) EntitlementUseCase {
	return &entitlementUseCase{
		users:    users,
		catalog:  catalog,
		ledger:   ledger,
		notifier: notifier,
		logger:   logger,
	}
}

// notify отправляет уведомление; ошибка только логируется и не влияет на операцию
func (uc *entitlementUseCase) notify(ctx context.Context, to, subject, body string) {
	if to == "" {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := uc.notifier.Notify(nctx, to, subject, body); err != nil {
		uc.logger.Warn("notification failed", "to", to, "subject", subject, "error", err)
	}
}

func (uc *entitlementUseCase) RequestGalleryAccess(ctx context.Context, clientID int64) (*domain.GalleryRequest, error) {
	req, err := uc.ledger.CreateGalleryRequest(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("usecase: заявка на галерею: %w", err)
	}
	return req, nil
}

// ResolveGalleryRequest фиксирует решение; назначение галереи выполняется отдельно через AssignGallery
func (uc *entitlementUseCase) ResolveGalleryRequest(ctx context.Context, requestID int64, status domain.GalleryRequestStatus) (*domain.GalleryRequest, error) {
	if !status.IsOutcome() {
		return nil, fmt.Errorf("%w: status must be approved or rejected", domain.ErrValidation)
	}
	req, err := uc.ledger.ResolveGalleryRequest(ctx, requestID, status)
	if err != nil {
		return nil, fmt.Errorf("usecase: обработка заявки %d: %w", requestID, err)
	}
	return req, nil
}

func (uc *entitlementUseCase) ListGalleryRequests(ctx context.Context) ([]domain.GalleryRequest, error) {
	return uc.ledger.ListGalleryRequests(ctx)
}

// AssignGallery идемпотентно открывает клиенту галерею и уведомляет его при первом назначении
func (uc *entitlementUseCase) AssignGallery(ctx context.Context, clientID, galleryID int64) (bool, error) {
	client, err := uc.users.GetUserByID(ctx, clientID)
	if err != nil {
		return false, fmt.Errorf("usecase: назначение галереи: %w", err)
	}
	if client.Role != domain.RoleClient {
		return false, fmt.Errorf("%w: user %d is not a client", domain.ErrValidation, clientID)
	}
	gallery, err := uc.catalog.GetGallery(ctx, galleryID)
	if err != nil {
		return false, fmt.Errorf("usecase: назначение галереи: %w", err)
	}

	created, err := uc.ledger.AssignGallery(ctx, clientID, galleryID)
	if err != nil {
		return false, fmt.Errorf("usecase: назначение галереи: %w", err)
	}
	if created {
		uc.notify(ctx, client.Email,
			"Gallery Assigned - Da'perfect Studios",
			fmt.Sprintf("You have been assigned to the gallery: %s. Log in to view your photos!", gallery.Name),
		)
	}
	return created, nil
}

func (uc *entitlementUseCase) ListClientGalleries(ctx context.Context, clientID int64) ([]domain.Gallery, error) {
	return uc.ledger.ListClientGalleries(ctx, clientID)
}

// ListGalleryImages возвращает пустой список, если галерея клиенту не назначена
func (uc *entitlementUseCase) ListGalleryImages(ctx context.Context, clientID, galleryID int64) ([]domain.ClientImage, error) {
	return uc.ledger.ListVisibleImages(ctx, clientID, galleryID)
}

func (uc *entitlementUseCase) ToggleFavorite(ctx context.Context, clientID, imageID int64) (bool, error) {
	favorite, err := uc.ledger.ToggleFavorite(ctx, clientID, imageID)
	if err != nil {
		return false, fmt.Errorf("usecase: избранное: %w", err)
	}
	return favorite, nil
}

func (uc *entitlementUseCase) ToggleSelection(ctx context.Context, clientID, imageID int64) (bool, error) {
	selected, err := uc.ledger.ToggleSelection(ctx, clientID, imageID)
	if err != nil {
		return false, fmt.Errorf("usecase: выбор изображения: %w", err)
	}
	return selected, nil
}

// SubmitHighResRequest фиксирует набор изображений. Повторы схлопываются
// с сохранением первого вхождения; отметка Selection не проверяется.
func (uc *entitlementUseCase) SubmitHighResRequest(ctx context.Context, clientID int64, imageIDs []int64) (*domain.HighResRequest, error) {
	ids := dedupeIDs(imageIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no images selected", domain.ErrValidation)
	}
	for _, id := range ids {
		if id <= 0 {
			return nil, fmt.Errorf("%w: invalid image id %d", domain.ErrValidation, id)
		}
	}

	req, err := uc.ledger.CreateHighResRequest(ctx, clientID, ids)
	if err != nil {
		return nil, fmt.Errorf("usecase: заявка на оригиналы: %w", err)
	}
	return req, nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (uc *entitlementUseCase) ListClientRequests(ctx context.Context, clientID int64) ([]domain.HighResRequest, error) {
	if clientID <= 0 {
		return nil, fmt.Errorf("%w: invalid client id", domain.ErrValidation)
	}
	return uc.ledger.ListHighResRequests(ctx, clientID)
}

func (uc *entitlementUseCase) ListAllRequests(ctx context.Context) ([]domain.HighResRequest, error) {
	return uc.ledger.ListHighResRequests(ctx, 0)
}

// AdvanceHighResRequest переводит заявку в paid/delivered и выдаёт права на скачивание.
// Повторный вызов безопасен: новые права не появляются, письмо не отправляется.
func (uc *entitlementUseCase) AdvanceHighResRequest(ctx context.Context, requestID int64, status domain.HighResStatus) (*domain.AdvanceResult, error) {
	if !status.Grants() {
		return nil, fmt.Errorf("%w: status must be paid or delivered", domain.ErrValidation)
	}

	res, err := uc.ledger.AdvanceHighResRequest(ctx, requestID, status)
	if err != nil {
		return nil, fmt.Errorf("usecase: смена статуса заявки %d: %w", requestID, err)
	}

	if res.Granted > 0 {
		uc.notify(ctx, res.Request.ClientEmail,
			"High-Resolution Images Ready - Da'perfect Studios",
			fmt.Sprintf("%d of your selected images are now available for download. Log in to get your originals!", res.Granted),
		)
	}
	return res, nil
}

func (uc *entitlementUseCase) ListApprovedDownloads(ctx context.Context, clientID int64) ([]domain.ApprovedDownload, error) {
	return uc.ledger.ListApprovedDownloads(ctx, clientID)
}
