package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/GoArmGo/ProofGallery/internal/usecase"
)

type highResRequest struct {
	ImageIDs []int64 `json:"image_ids" validate:"required,min=1,dive,gt=0"`
}

// ClientHandler — эндпоинты клиента. Личность берётся только из токена.
type ClientHandler struct {
	ledger    usecase.EntitlementUseCase
	downloads usecase.DownloadUseCase
	logger    *slog.Logger
}

func NewClientHandler(ledger usecase.EntitlementUseCase, downloads usecase.DownloadUseCase, logger *slog.Logger) *ClientHandler {
	return &ClientHandler{ledger: ledger, downloads: downloads, logger: logger}
}

func (h *ClientHandler) clientID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", h.logger)
		return 0, false
	}
	return id.UserID, true
}

// RequestGallery: POST /api/client/request-gallery
func (h *ClientHandler) RequestGallery(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	req, err := h.ledger.RequestGalleryAccess(r.Context(), clientID)
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	respondWithJSON(w, http.StatusCreated, req, h.logger)
}

// ListGalleries: GET /api/client/galleries
func (h *ClientHandler) ListGalleries(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	galleries, err := h.ledger.ListClientGalleries(r.Context(), clientID)
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	respondWithJSON(w, http.StatusOK, galleries, h.logger)
}

// ListImages: GET /api/client/galleries/{galleryID}/images
func (h *ClientHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	galleryID, err := pathID(r, "galleryID")
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	images, err := h.ledger.ListGalleryImages(r.Context(), clientID, galleryID)
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	respondWithJSON(w, http.StatusOK, images, h.logger)
}

// Preview: GET /api/client/images/{imageID}/preview
func (h *ClientHandler) Preview(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	imageID, err := pathID(r, "imageID")
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	rc, handle, err := h.downloads.OpenPreview(r.Context(), clientID, imageID)
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	defer rc.Close()
	h.stream(w, rc, handle, "inline")
}

// ToggleFavorite: POST /api/client/favorites/{imageID}
func (h *ClientHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	imageID, err := pathID(r, "imageID")
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	favorite, err := h.ledger.ToggleFavorite(r.Context(), clientID, imageID)
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"is_favorite": favorite}, h.logger)
}

// ToggleSelection: POST /api/client/selections/{imageID}
func (h *ClientHandler) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	imageID, err := pathID(r, "imageID")
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	selected, err := h.ledger.ToggleSelection(r.Context(), clientID, imageID)
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"is_selected": selected}, h.logger)
}

// RequestHighRes: POST /api/client/request-highres
func (h *ClientHandler) RequestHighRes(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	var body highResRequest
	if err := decodeJSON(r, &body); err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	req, err := h.ledger.SubmitHighResRequest(r.Context(), clientID, body.ImageIDs)
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	respondWithJSON(w, http.StatusCreated, req, h.logger)
}

// ListRequests: GET /api/client/requests
func (h *ClientHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	requests, err := h.ledger.ListClientRequests(r.Context(), clientID)
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	respondWithJSON(w, http.StatusOK, requests, h.logger)
}

// ListDownloads: GET /api/client/downloads
func (h *ClientHandler) ListDownloads(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	downloads, err := h.ledger.ListApprovedDownloads(r.Context(), clientID)
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	respondWithJSON(w, http.StatusOK, downloads, h.logger)
}

// Download: GET /api/client/download/{imageID}, единственный путь к оригиналу
func (h *ClientHandler) Download(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	imageID, err := pathID(r, "imageID")
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	rc, handle, err := h.downloads.OpenOriginal(r.Context(), clientID, imageID)
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	defer rc.Close()
	h.stream(w, rc, handle, "attachment")
}

func (h *ClientHandler) stream(w http.ResponseWriter, rc io.Reader, handle *usecase.AssetHandle, disposition string) {
	w.Header().Set("Content-Type", handle.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, handle.Filename))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Error("failed to stream asset", "image_id", handle.ImageID, "error", err)
	}
}
