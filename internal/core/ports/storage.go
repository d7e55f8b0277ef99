package ports

import (
	"context"

	"github.com/GoArmGo/ProofGallery/internal/domain"
)

// UserStorage определяет методы для взаимодействия с хранилищем пользователей
type UserStorage interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListClients(ctx context.Context) ([]domain.ClientSummary, error)
	ListStaff(ctx context.Context) ([]domain.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// CatalogStorage — галереи и изображения. Каталог растёт только добавлением.
type CatalogStorage interface {
	CreateGallery(ctx context.Context, gallery *domain.Gallery) error
	GetGallery(ctx context.Context, id int64) (*domain.Gallery, error)
	ListGalleries(ctx context.Context) ([]domain.Gallery, error)
	SaveImage(ctx context.Context, image *domain.Image) error
	GetImage(ctx context.Context, id int64) (*domain.Image, error)
	UpdateImagePreview(ctx context.Context, id int64, previewKey string, watermarkFailed bool) error
}

// LedgerStorage — отношения, из которых складываются права клиента.
// Реализации обязаны выполнять ToggleSelection и AdvanceHighResRequest атомарно.
type LedgerStorage interface {
	// CreateGalleryRequest возвращает domain.ErrPendingGalleryRequest, если pending-заявка уже есть
	CreateGalleryRequest(ctx context.Context, clientID int64) (*domain.GalleryRequest, error)
	// ResolveGalleryRequest переводит pending-заявку в итоговый статус ровно один раз
	ResolveGalleryRequest(ctx context.Context, id int64, status domain.GalleryRequestStatus) (*domain.GalleryRequest, error)
	ListGalleryRequests(ctx context.Context) ([]domain.GalleryRequest, error)

	// AssignGallery идемпотентен; created=false, если пара уже была
	AssignGallery(ctx context.Context, clientID, galleryID int64) (created bool, err error)
	ListClientGalleries(ctx context.Context, clientID int64) ([]domain.Gallery, error)

	// GetVisibleImage возвращает domain.ErrForbidden, если изображения нет или у клиента нет доступа к его галерее
	GetVisibleImage(ctx context.Context, clientID, imageID int64) (*domain.Image, error)
	// ListVisibleImages возвращает пустой список, если галерея клиенту не назначена
	ListVisibleImages(ctx context.Context, clientID, galleryID int64) ([]domain.ClientImage, error)

	ToggleFavorite(ctx context.Context, clientID, imageID int64) (bool, error)
	// ToggleSelection возвращает domain.ErrSelectionFrozen, если на пару уже выдано право скачивания
	ToggleSelection(ctx context.Context, clientID, imageID int64) (bool, error)

	CreateHighResRequest(ctx context.Context, clientID int64, imageIDs []int64) (*domain.HighResRequest, error)
	GetHighResRequest(ctx context.Context, id int64) (*domain.HighResRequest, error)
	// ListHighResRequests: clientID == 0 — все заявки
	ListHighResRequests(ctx context.Context, clientID int64) ([]domain.HighResRequest, error)
	// AdvanceHighResRequest меняет статус и выдаёт права одной транзакцией
	AdvanceHighResRequest(ctx context.Context, id int64, status domain.HighResStatus) (*domain.AdvanceResult, error)

	// FindApprovedOriginal возвращает ключ оригинала, только если есть ApprovedDownload
	FindApprovedOriginal(ctx context.Context, clientID, imageID int64) (string, error)
	ListApprovedDownloads(ctx context.Context, clientID int64) ([]domain.ApprovedDownload, error)
}

// Storage — единый порт реляционного хранилища; реализация выбирается при старте
type Storage interface {
	UserStorage
	CatalogStorage
	LedgerStorage
	Close() error
}
