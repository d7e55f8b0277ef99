package sqlite

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GoArmGo/ProofGallery/internal/domain"
)

type userRow struct {
	ID           int64 `gorm:"primaryKey"`
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

func (r userRow) toDomain() *domain.User {
	return &domain.User{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         domain.Role(r.Role),
		CreatedAt:    r.CreatedAt,
	}
}

type galleryRow struct {
	ID          int64 `gorm:"primaryKey"`
	Name        string
	Description string
	CreatedAt   time.Time
}

func (galleryRow) TableName() string { return "galleries" }

type imageRow struct {
	ID              int64 `gorm:"primaryKey"`
	GalleryID       int64
	OriginalKey     string
	PreviewKey      string
	WatermarkFailed bool
	UploadedAt      time.Time
}

func (imageRow) TableName() string { return "images" }

func (r imageRow) toDomain() *domain.Image {
	return &domain.Image{
		ID:              r.ID,
		GalleryID:       r.GalleryID,
		OriginalKey:     r.OriginalKey,
		PreviewKey:      r.PreviewKey,
		WatermarkFailed: r.WatermarkFailed,
		UploadedAt:      r.UploadedAt,
	}
}

type galleryRequestRow struct {
	ID         int64 `gorm:"primaryKey"`
	ClientID   int64
	Status     string
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

func (galleryRequestRow) TableName() string { return "gallery_requests" }

type clientGalleryRow struct {
	ClientID   int64 `gorm:"primaryKey;autoIncrement:false"`
	GalleryID  int64 `gorm:"primaryKey;autoIncrement:false"`
	AssignedAt time.Time
}

func (clientGalleryRow) TableName() string { return "client_galleries" }

type favoriteRow struct {
	ClientID  int64 `gorm:"primaryKey;autoIncrement:false"`
	ImageID   int64 `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time
}

func (favoriteRow) TableName() string { return "favorites" }

type selectionRow struct {
	ClientID  int64 `gorm:"primaryKey;autoIncrement:false"`
	ImageID   int64 `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time
}

func (selectionRow) TableName() string { return "selections" }

// idList хранит упорядоченный набор id как JSON-массив
type idList []int64

func (l idList) Value() (driver.Value, error) {
	if l == nil {
		l = idList{}
	}
	b, err := json.Marshal([]int64(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *idList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case nil:
		*l = idList{}
		return nil
	default:
		return fmt.Errorf("unsupported image_ids type %T", src)
	}
	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return fmt.Errorf("decode image_ids: %w", err)
	}
	*l = ids
	return nil
}

type highResRow struct {
	ID        int64 `gorm:"primaryKey"`
	ClientID  int64
	ImageIDs  idList `gorm:"column:image_ids"`
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (highResRow) TableName() string { return "highres_requests" }

func (r highResRow) toDomain(email string) *domain.HighResRequest {
	ids := make([]int64, len(r.ImageIDs))
	copy(ids, r.ImageIDs)
	return &domain.HighResRequest{
		ID:          r.ID,
		ClientID:    r.ClientID,
		ClientEmail: email,
		ImageIDs:    ids,
		Status:      domain.HighResStatus(r.Status),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type approvedDownloadRow struct {
	ID         int64 `gorm:"primaryKey"`
	ClientID   int64
	ImageID    int64
	RequestID  int64
	ApprovedAt time.Time
}

func (approvedDownloadRow) TableName() string { return "approved_downloads" }
