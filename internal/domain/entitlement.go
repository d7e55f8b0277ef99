package domain

import (
	"time"
)

// GalleryRequestStatus — статус заявки клиента на доступ к галерее
type GalleryRequestStatus string

const (
	GalleryRequestPending  GalleryRequestStatus = "pending"
	GalleryRequestApproved GalleryRequestStatus = "approved"
	GalleryRequestRejected GalleryRequestStatus = "rejected"
)

// IsOutcome — approved или rejected
func (s GalleryRequestStatus) IsOutcome() bool {
	return s == GalleryRequestApproved || s == GalleryRequestRejected
}

// GalleryRequest соответствует таблице gallery_requests
type GalleryRequest struct {
	ID          int64                `json:"id" db:"id"`
	ClientID    int64                `json:"client_id" db:"client_id"`
	ClientEmail string               `json:"client_email,omitempty" db:"client_email"`
	Status      GalleryRequestStatus `json:"status" db:"status"`
	CreatedAt   time.Time            `json:"created_at" db:"created_at"`
	ResolvedAt  *time.Time           `json:"resolved_at,omitempty" db:"resolved_at"`
}

// HighResStatus — статус заявки на оригиналы
type HighResStatus string

const (
	HighResPending   HighResStatus = "pending"
	HighResPaid      HighResStatus = "paid"
	HighResDelivered HighResStatus = "delivered"
)

var highResRank = map[HighResStatus]int{
	HighResPending:   0,
	HighResPaid:      1,
	HighResDelivered: 2,
}

// Valid сообщает, известен ли статус
func (s HighResStatus) Valid() bool {
	_, ok := highResRank[s]
	return ok
}

// Grants — статусы, при переходе в которые выдаются права на скачивание
func (s HighResStatus) Grants() bool {
	return s == HighResPaid || s == HighResDelivered
}

// CanAdvanceTo проверяет переход. Разрешено только движение вперёд
// (включая pending -> delivered) и повтор того же статуса; в pending вернуться нельзя.
func (s HighResStatus) CanAdvanceTo(next HighResStatus) bool {
	if !s.Valid() || !next.Grants() {
		return false
	}
	return highResRank[next] >= highResRank[s]
}

// HighResRequest соответствует таблице highres_requests. ImageIDs не меняется после создания.
type HighResRequest struct {
	ID          int64         `json:"id"`
	ClientID    int64         `json:"client_id"`
	ClientEmail string        `json:"client_email,omitempty"`
	ImageIDs    []int64       `json:"image_ids"`
	Status      HighResStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// ApprovedDownload — единственный источник истины для "может ли клиент скачать оригинал"
type ApprovedDownload struct {
	ID         int64     `json:"id" db:"id"`
	ClientID   int64     `json:"client_id" db:"client_id"`
	ImageID    int64     `json:"image_id" db:"image_id"`
	RequestID  int64     `json:"request_id" db:"request_id"`
	ApprovedAt time.Time `json:"approved_at" db:"approved_at"`
}

// AdvanceResult — итог перевода заявки: новая запись и число новых выдач
type AdvanceResult struct {
	Request *HighResRequest
	Granted int
}
