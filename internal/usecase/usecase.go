package usecase

import (
	"context"
	"io"

	"github.com/GoArmGo/ProofGallery/internal/domain"
)

// PreviewRenderer строит защищённое превью из байтов оригинала (watermark.Transformer)
type PreviewRenderer interface {
	Transform(ctx context.Context, data []byte) ([]byte, error)
}

// Upload — один файл из multipart-запроса администратора
type Upload struct {
	Filename string
	Data     []byte
}

// IngestedImage — зарегистрированное изображение.
// Degraded=true: превью не удалось построить, вместо него отдаётся оригинал.
type IngestedImage struct {
	Filename string        `json:"filename"`
	Image    *domain.Image `json:"image"`
	Degraded bool          `json:"degraded"`
	Reason   string        `json:"reason,omitempty"`
}

// FailedUpload — файл, который не был зарегистрирован
type FailedUpload struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// BatchResult делит пакет на загруженные и отклонённые файлы
type BatchResult struct {
	Uploaded []IngestedImage `json:"uploaded"`
	Failed   []FailedUpload  `json:"failed"`
}

// IngestionUseCase — загрузка изображений в галерею
type IngestionUseCase interface {
	// Ingest сохраняет оригинал, строит превью и регистрирует изображение
	Ingest(ctx context.Context, galleryID int64, upload Upload) (*IngestedImage, error)
	// IngestBatch обрабатывает файлы независимо: ошибка одного не отменяет остальные
	IngestBatch(ctx context.Context, galleryID int64, uploads []Upload) (*BatchResult, error)
	// Rewatermark повторно строит превью для изображения (например, после сбоя водяного знака)
	Rewatermark(ctx context.Context, imageID int64) (*IngestedImage, error)
}

// EntitlementUseCase — жизненный цикл прав клиента
type EntitlementUseCase interface {
	RequestGalleryAccess(ctx context.Context, clientID int64) (*domain.GalleryRequest, error)
	ResolveGalleryRequest(ctx context.Context, requestID int64, status domain.GalleryRequestStatus) (*domain.GalleryRequest, error)
	ListGalleryRequests(ctx context.Context) ([]domain.GalleryRequest, error)

	AssignGallery(ctx context.Context, clientID, galleryID int64) (bool, error)
	ListClientGalleries(ctx context.Context, clientID int64) ([]domain.Gallery, error)
	ListGalleryImages(ctx context.Context, clientID, galleryID int64) ([]domain.ClientImage, error)

	ToggleFavorite(ctx context.Context, clientID, imageID int64) (bool, error)
	ToggleSelection(ctx context.Context, clientID, imageID int64) (bool, error)

	SubmitHighResRequest(ctx context.Context, clientID int64, imageIDs []int64) (*domain.HighResRequest, error)
	ListClientRequests(ctx context.Context, clientID int64) ([]domain.HighResRequest, error)
	ListAllRequests(ctx context.Context) ([]domain.HighResRequest, error)
	AdvanceHighResRequest(ctx context.Context, requestID int64, status domain.HighResStatus) (*domain.AdvanceResult, error)
	ListApprovedDownloads(ctx context.Context, clientID int64) ([]domain.ApprovedDownload, error)
}

// AssetHandle — разрешение на выдачу конкретного оригинала
type AssetHandle struct {
	ImageID     int64
	Key         string
	Filename    string
	ContentType string
}

// DownloadUseCase — единственный путь к оригиналам и превью
type DownloadUseCase interface {
	Authorize(ctx context.Context, clientID, imageID int64) (*AssetHandle, error)
	OpenOriginal(ctx context.Context, clientID, imageID int64) (io.ReadCloser, *AssetHandle, error)
	OpenPreview(ctx context.Context, clientID, imageID int64) (io.ReadCloser, *AssetHandle, error)
}

// CatalogUseCase — галереи и клиенты для администратора
type CatalogUseCase interface {
	CreateGallery(ctx context.Context, name, description string) (*domain.Gallery, error)
	GetGallery(ctx context.Context, id int64) (*domain.Gallery, error)
	ListGalleries(ctx context.Context) ([]domain.Gallery, error)
	ListClients(ctx context.Context) ([]domain.ClientSummary, error)
}

// AuthUseCase — регистрация, вход и управление администраторами
type AuthUseCase interface {
	Signup(ctx context.Context, email, password string) (string, *domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	EnsureSuperAdmin(ctx context.Context, email, password string) error

	CreateAdmin(ctx context.Context, email, password string) (*domain.User, error)
	ListAdmins(ctx context.Context) ([]domain.User, error)
	DeleteAdmin(ctx context.Context, id int64) error
}
