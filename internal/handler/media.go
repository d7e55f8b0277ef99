package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/GoArmGo/ProofGallery/internal/usecase"
)

const (
	uploadField     = "images"
	multipartMemory = 32 << 20
)

// MediaHandler принимает пакетную загрузку изображений в галерею
type MediaHandler struct {
	ingestion     usecase.IngestionUseCase
	uploadLimiter chan struct{}
	maxBytes      int64
	maxFiles      int
	logger        *slog.Logger
}

// NewMediaHandler: limiter ограничивает число одновременно обрабатываемых пакетов
func NewMediaHandler(
	ingestion usecase.IngestionUseCase,
	limiter chan struct{},
	maxBytes int64,
	maxFiles int,
	logger *slog.Logger,
) *MediaHandler {
	return &MediaHandler{
		ingestion:     ingestion,
		uploadLimiter: limiter,
		maxBytes:      maxBytes,
		maxFiles:      maxFiles,
		logger:        logger,
	}
}

// Upload: POST /api/media/upload/{galleryID}, multipart-поле images
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	galleryID, err := pathID(r, "galleryID")
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}

	select {
	case h.uploadLimiter <- struct{}{}:
		defer func() { <-h.uploadLimiter }()
	case <-r.Context().Done():
		respondWithError(w, http.StatusServiceUnavailable, "upload queue is full", h.logger)
		return
	}

	// запас на заголовки частей и остальные поля формы
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes*int64(h.maxFiles)+(1<<20))
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "upload too large", h.logger)
			return
		}
		respondWithError(w, http.StatusBadRequest, "invalid multipart form", h.logger)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		respondWithError(w, http.StatusBadRequest, "no files uploaded", h.logger)
		return
	}
	if len(headers) > h.maxFiles {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("at most %d files per upload", h.maxFiles), h.logger)
		return
	}

	uploads := make([]usecase.Upload, 0, len(headers))
	for _, fh := range headers {
		data, err := h.readPart(fh)
		if err != nil {
			h.logger.Error("failed to read uploaded file", "filename", fh.Filename, "error", err)
			respondWithError(w, http.StatusBadRequest, "failed to read uploaded file", h.logger)
			return
		}
		uploads = append(uploads, usecase.Upload{Filename: fh.Filename, Data: data})
	}

	h.logger.Info("processing upload", "gallery_id", galleryID, "files", len(uploads))

	res, err := h.ingestion.IngestBatch(r.Context(), galleryID, uploads)
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	if len(res.Uploaded) == 0 {
		respondWithJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "no files were uploaded",
			"failed": res.Failed,
		}, h.logger)
		return
	}
	respondWithJSON(w, http.StatusCreated, res, h.logger)
}

// readPart читает не больше maxBytes+1 байт, чтобы превышение лимита отловила проверка загрузки
func (h *MediaHandler) readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, h.maxBytes+1))
}
