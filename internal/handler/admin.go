package handler

import (
	"log/slog"
	"net/http"

	"github.com/GoArmGo/ProofGallery/internal/domain"
	"github.com/GoArmGo/ProofGallery/internal/usecase"
)

type createGalleryRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type assignGalleryRequest struct {
	ClientID  int64 `json:"client_id" validate:"required,gt=0"`
	GalleryID int64 `json:"gallery_id" validate:"required,gt=0"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type advanceResponse struct {
	Request *domain.HighResRequest `json:"request"`
	Granted int                    `json:"granted"`
}

// AdminHandler — эндпоинты администратора и суперадминистратора
type AdminHandler struct {
	catalog   usecase.CatalogUseCase
	ledger    usecase.EntitlementUseCase
	ingestion usecase.IngestionUseCase
	auth      usecase.AuthUseCase
	logger    *slog.Logger
}

func NewAdminHandler(
	catalog usecase.CatalogUseCase,
	ledger usecase.EntitlementUseCase,
	ingestion usecase.IngestionUseCase,
	auth usecase.AuthUseCase,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		catalog:   catalog,
		ledger:    ledger,
		ingestion: ingestion,
		auth:      auth,
		logger:    logger,
	}
}

// CreateGallery: POST /api/admin/galleries
func (h *AdminHandler) CreateGallery(w http.ResponseWriter, r *http.Request) {
	var req createGalleryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	gallery, err := h.catalog.CreateGallery(r.Context(), req.Name, req.Description)
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	respondWithJSON(w, http.StatusCreated, gallery, h.logger)
}

// ListGalleries: GET /api/admin/galleries
func (h *AdminHandler) ListGalleries(w http.ResponseWriter, r *http.Request) {
	galleries, err := h.catalog.ListGalleries(r.Context())
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	respondWithJSON(w, http.StatusOK, galleries, h.logger)
}

// ListClients: GET /api/admin/clients
func (h *AdminHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.catalog.ListClients(r.Context())
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	respondWithJSON(w, http.StatusOK, clients, h.logger)
}

// AssignGallery: POST /api/admin/assign-gallery
func (h *AdminHandler) AssignGallery(w http.ResponseWriter, r *http.Request) {
	var req assignGalleryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	created, err := h.ledger.AssignGallery(r.Context(), req.ClientID, req.GalleryID)
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	respondWithJSON(w, code, map[string]bool{"assigned": created}, h.logger)
}

// ListGalleryRequests: GET /api/admin/gallery-requests
func (h *AdminHandler) ListGalleryRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.ledger.ListGalleryRequests(r.Context())
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	respondWithJSON(w, http.StatusOK, requests, h.logger)
}

// ResolveGalleryRequest: PATCH /api/admin/gallery-requests/{id}
func (h *AdminHandler) ResolveGalleryRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	resolved, err := h.ledger.ResolveGalleryRequest(r.Context(), id, domain.GalleryRequestStatus(req.Status))
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	respondWithJSON(w, http.StatusOK, resolved, h.logger)
}

// ListHighResRequests: GET /api/admin/highres-requests
func (h *AdminHandler) ListHighResRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.ledger.ListAllRequests(r.Context())
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	respondWithJSON(w, http.StatusOK, requests, h.logger)
}

// AdvanceHighResRequest: PATCH /api/admin/highres-requests/{id}
func (h *AdminHandler) AdvanceHighResRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	res, err := h.ledger.AdvanceHighResRequest(r.Context(), id, domain.HighResStatus(req.Status))
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	respondWithJSON(w, http.StatusOK, advanceResponse{Request: res.Request, Granted: res.Granted}, h.logger)
}

// Rewatermark: POST /api/admin/images/{imageID}/rewatermark
func (h *AdminHandler) Rewatermark(w http.ResponseWriter, r *http.Request) {
	imageID, err := pathID(r, "imageID")
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	res, err := h.ingestion.Rewatermark(r.Context(), imageID)
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	respondWithJSON(w, http.StatusOK, res, h.logger)
}

// ListAdmins: GET /api/admin/admins (super)
func (h *AdminHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.auth.ListAdmins(r.Context())
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	respondWithJSON(w, http.StatusOK, admins, h.logger)
}

// CreateAdmin: POST /api/admin/admins (super)
func (h *AdminHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	admin, err := h.auth.CreateAdmin(r.Context(), req.Email, req.Password)
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	respondWithJSON(w, http.StatusCreated, admin, h.logger)
}

// DeleteAdmin: DELETE /api/admin/admins/{id} (super)
func (h *AdminHandler) DeleteAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	if err := h.auth.DeleteAdmin(r.Context(), id); err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
