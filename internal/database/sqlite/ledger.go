package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/GoArmGo/ProofGallery/internal/domain"
)

func (s *Storage) CreateGalleryRequest(ctx context.Context, clientID int64) (*domain.GalleryRequest, error) {
	row := galleryRequestRow{
		ClientID:  clientID,
		Status:    string(domain.GalleryRequestPending),
		CreatedAt: now(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrPendingGalleryRequest
		}
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: client %d", domain.ErrNotFound, clientID)
		}
		s.logger.Error("failed to create gallery request", "client_id", clientID, "error", err)
		return nil, fmt.Errorf("ошибка при создании заявки на галерею: %w", err)
	}

	s.logger.Info("gallery request created", "request_id", row.ID, "client_id", clientID)
	return &domain.GalleryRequest{
		ID:        row.ID,
		ClientID:  row.ClientID,
		Status:    domain.GalleryRequestStatus(row.Status),
		CreatedAt: row.CreatedAt,
	}, nil
}

const galleryRequestColumns = `
	SELECT r.id, r.client_id, u.email AS client_email, r.status, r.created_at, r.resolved_at
	FROM gallery_requests r
	JOIN users u ON u.id = r.client_id`

func (s *Storage) ResolveGalleryRequest(ctx context.Context, id int64, status domain.GalleryRequestStatus) (*domain.GalleryRequest, error) {
	if !status.IsOutcome() {
		return nil, fmt.Errorf("%w: invalid gallery request status %q", domain.ErrValidation, status)
	}

	var result []domain.GalleryRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row galleryRequestRow
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: gallery request %d", domain.ErrNotFound, id)
			}
			return fmt.Errorf("select gallery request: %w", err)
		}
		if row.Status != string(domain.GalleryRequestPending) {
			return domain.ErrRequestResolved
		}

		resolvedAt := now()
		if err := tx.Model(&galleryRequestRow{}).Where("id = ?", id).Updates(map[string]any{
			"status":      string(status),
			"resolved_at": resolvedAt,
		}).Error; err != nil {
			return fmt.Errorf("update gallery request: %w", err)
		}
		return tx.Raw(galleryRequestColumns+` WHERE r.id = ?`, id).Scan(&result).Error
	})
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%w: gallery request %d", domain.ErrNotFound, id)
	}

	s.logger.Info("gallery request resolved", "request_id", id, "status", status)
	return &result[0], nil
}

func (s *Storage) ListGalleryRequests(ctx context.Context) ([]domain.GalleryRequest, error) {
	reqs := []domain.GalleryRequest{}
	if err := s.db.WithContext(ctx).Raw(galleryRequestColumns + ` ORDER BY r.created_at DESC, r.id DESC`).Scan(&reqs).Error; err != nil {
		return nil, fmt.Errorf("ошибка при получении заявок на галереи: %w", err)
	}
	return reqs, nil
}

func (s *Storage) AssignGallery(ctx context.Context, clientID, galleryID int64) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&clientGalleryRow{ClientID: clientID, GalleryID: galleryID, AssignedAt: now()})
	if res.Error != nil {
		if isForeignKeyViolation(res.Error) {
			return false, fmt.Errorf("%w: client %d or gallery %d", domain.ErrNotFound, clientID, galleryID)
		}
		s.logger.Error("failed to assign gallery", "client_id", clientID, "gallery_id", galleryID, "error", res.Error)
		return false, fmt.Errorf("ошибка при назначении галереи: %w", res.Error)
	}
	created := res.RowsAffected > 0
	s.logger.Info("gallery assigned", "client_id", clientID, "gallery_id", galleryID, "created", created)
	return created, nil
}

func (s *Storage) ListClientGalleries(ctx context.Context, clientID int64) ([]domain.Gallery, error) {
	galleries := []domain.Gallery{}
	err := s.db.WithContext(ctx).Raw(`
		SELECT g.id, g.name, g.description, g.created_at,
		       (SELECT COUNT(*) FROM images i WHERE i.gallery_id = g.id) AS image_count
		FROM galleries g
		JOIN client_galleries cg ON cg.gallery_id = g.id
		WHERE cg.client_id = ?
		ORDER BY cg.assigned_at DESC, g.id DESC`, clientID).Scan(&galleries).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении галерей клиента: %w", err)
	}
	return galleries, nil
}

func (s *Storage) GetVisibleImage(ctx context.Context, clientID, imageID int64) (*domain.Image, error) {
	return visibleImage(s.db.WithContext(ctx), clientID, imageID)
}

func visibleImage(db *gorm.DB, clientID, imageID int64) (*domain.Image, error) {
	var rows []imageRow
	err := db.Raw(`
		SELECT i.* FROM images i
		JOIN client_galleries cg ON cg.gallery_id = i.gallery_id AND cg.client_id = ?
		WHERE i.id = ?`, clientID, imageID).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка при проверке доступа к изображению: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: image %d is not visible", domain.ErrForbidden, imageID)
	}
	return rows[0].toDomain(), nil
}

func (s *Storage) ListVisibleImages(ctx context.Context, clientID, galleryID int64) ([]domain.ClientImage, error) {
	start := time.Now()

	images := []domain.ClientImage{}
	err := s.db.WithContext(ctx).Raw(`
		SELECT i.id, i.gallery_id, i.original_key, i.preview_key, i.watermark_failed, i.uploaded_at,
		       EXISTS(SELECT 1 FROM favorites f WHERE f.client_id = @client AND f.image_id = i.id) AS is_favorite,
		       EXISTS(SELECT 1 FROM selections sl WHERE sl.client_id = @client AND sl.image_id = i.id) AS is_selected,
		       EXISTS(SELECT 1 FROM approved_downloads ad WHERE ad.client_id = @client AND ad.image_id = i.id) AS is_approved
		FROM images i
		JOIN client_galleries cg ON cg.gallery_id = i.gallery_id AND cg.client_id = @client
		WHERE i.gallery_id = @gallery
		ORDER BY i.uploaded_at, i.id`,
		map[string]any{"client": clientID, "gallery": galleryID},
	).Scan(&images).Error
	if err != nil {
		s.logger.Error("failed to list visible images", "client_id", clientID, "gallery_id", galleryID, "error", err)
		return nil, fmt.Errorf("ошибка при получении изображений галереи: %w", err)
	}

	s.logger.Debug("visible images listed",
		"client_id", clientID,
		"gallery_id", galleryID,
		"count", len(images),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return images, nil
}

func (s *Storage) ToggleFavorite(ctx context.Context, clientID, imageID int64) (bool, error) {
	var favorite bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := visibleImage(tx, clientID, imageID); err != nil {
			return err
		}
		res := tx.Where("client_id = ? AND image_id = ?", clientID, imageID).Delete(&favoriteRow{})
		if res.Error != nil {
			return fmt.Errorf("delete favorite: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			favorite = false
			return nil
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&favoriteRow{ClientID: clientID, ImageID: imageID, CreatedAt: now()}).Error; err != nil {
			return fmt.Errorf("insert favorite: %w", err)
		}
		favorite = true
		return nil
	})
	if err != nil {
		return false, err
	}
	s.logger.Debug("favorite toggled", "client_id", clientID, "image_id", imageID, "favorite", favorite)
	return favorite, nil
}

func (s *Storage) ToggleSelection(ctx context.Context, clientID, imageID int64) (bool, error) {
	var selected bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := visibleImage(tx, clientID, imageID); err != nil {
			return err
		}

		var approved int64
		if err := tx.Model(&approvedDownloadRow{}).
			Where("client_id = ? AND image_id = ?", clientID, imageID).
			Count(&approved).Error; err != nil {
			return fmt.Errorf("check approved download: %w", err)
		}
		if approved > 0 {
			return domain.ErrSelectionFrozen
		}

		res := tx.Where("client_id = ? AND image_id = ?", clientID, imageID).Delete(&selectionRow{})
		if res.Error != nil {
			return fmt.Errorf("delete selection: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			selected = false
			return nil
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&selectionRow{ClientID: clientID, ImageID: imageID, CreatedAt: now()}).Error; err != nil {
			return fmt.Errorf("insert selection: %w", err)
		}
		selected = true
		return nil
	})
	if err != nil {
		return false, err
	}
	s.logger.Debug("selection toggled", "client_id", clientID, "image_id", imageID, "selected", selected)
	return selected, nil
}

type highResWithEmail struct {
	ID          int64
	ClientID    int64
	ImageIDs    idList `gorm:"column:image_ids"`
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClientEmail string
}

func (r highResWithEmail) toDomain() *domain.HighResRequest {
	return highResRow{
		ID:        r.ID,
		ClientID:  r.ClientID,
		ImageIDs:  r.ImageIDs,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}.toDomain(r.ClientEmail)
}

const highResColumns = `
	SELECT r.id, r.client_id, r.image_ids, r.status, r.created_at, r.updated_at, u.email AS client_email
	FROM highres_requests r
	JOIN users u ON u.id = r.client_id`

func (s *Storage) CreateHighResRequest(ctx context.Context, clientID int64, imageIDs []int64) (*domain.HighResRequest, error) {
	if len(imageIDs) == 0 {
		return nil, fmt.Errorf("%w: image set must not be empty", domain.ErrValidation)
	}
	distinct := make(map[int64]struct{}, len(imageIDs))
	for _, id := range imageIDs {
		distinct[id] = struct{}{}
	}

	var result *domain.HighResRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var visible int64
		if err := tx.Raw(`
			SELECT COUNT(DISTINCT i.id) FROM images i
			JOIN client_galleries cg ON cg.gallery_id = i.gallery_id AND cg.client_id = ?
			WHERE i.id IN ?`, clientID, imageIDs).Scan(&visible).Error; err != nil {
			return fmt.Errorf("count visible images: %w", err)
		}
		if visible != int64(len(distinct)) {
			return fmt.Errorf("%w: some requested images are not visible", domain.ErrForbidden)
		}

		ts := now()
		row := highResRow{
			ClientID:  clientID,
			ImageIDs:  append(idList(nil), imageIDs...),
			Status:    string(domain.HighResPending),
			CreatedAt: ts,
			UpdatedAt: ts,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert highres request: %w", err)
		}

		var user userRow
		if err := tx.Select("email").First(&user, "id = ?", clientID).Error; err != nil {
			return fmt.Errorf("select client email: %w", err)
		}
		result = row.toDomain(user.Email)
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrForbidden) {
			s.logger.Error("failed to create highres request", "client_id", clientID, "error", err)
		}
		return nil, err
	}

	s.logger.Info("highres request created", "request_id", result.ID, "client_id", clientID, "images", len(imageIDs))
	return result, nil
}

func (s *Storage) GetHighResRequest(ctx context.Context, id int64) (*domain.HighResRequest, error) {
	return getHighRes(s.db.WithContext(ctx), id)
}

func getHighRes(db *gorm.DB, id int64) (*domain.HighResRequest, error) {
	var rows []highResWithEmail
	if err := db.Raw(highResColumns+` WHERE r.id = ?`, id).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("ошибка при получении заявки: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: highres request %d", domain.ErrNotFound, id)
	}
	return rows[0].toDomain(), nil
}

func (s *Storage) ListHighResRequests(ctx context.Context, clientID int64) ([]domain.HighResRequest, error) {
	var rows []highResWithEmail
	q := highResColumns
	args := []any{}
	if clientID != 0 {
		q += ` WHERE r.client_id = ?`
		args = append(args, clientID)
	}
	q += ` ORDER BY r.created_at DESC, r.id DESC`

	if err := s.db.WithContext(ctx).Raw(q, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("ошибка при получении заявок на оригиналы: %w", err)
	}
	reqs := make([]domain.HighResRequest, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, *r.toDomain())
	}
	return reqs, nil
}

// AdvanceHighResRequest меняет статус и выдаёт права одной транзакцией.
// Каждая выдача — INSERT ... ON CONFLICT DO NOTHING.
func (s *Storage) AdvanceHighResRequest(ctx context.Context, id int64, status domain.HighResStatus) (*domain.AdvanceResult, error) {
	start := time.Now()

	if !status.Grants() {
		return nil, fmt.Errorf("%w: status must be paid or delivered", domain.ErrValidation)
	}

	var result domain.AdvanceResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := getHighRes(tx, id)
		if err != nil {
			return err
		}
		if !req.Status.CanAdvanceTo(status) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrStatusRegression, req.Status, status)
		}

		if req.Status != status {
			ts := now()
			if err := tx.Model(&highResRow{}).Where("id = ?", id).Updates(map[string]any{
				"status":     string(status),
				"updated_at": ts,
			}).Error; err != nil {
				return fmt.Errorf("update highres status: %w", err)
			}
			req.Status = status
			req.UpdatedAt = ts
		}

		approvedAt := now()
		for _, imageID := range req.ImageIDs {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&approvedDownloadRow{
				ClientID:   req.ClientID,
				ImageID:    imageID,
				RequestID:  id,
				ApprovedAt: approvedAt,
			})
			if res.Error != nil {
				return fmt.Errorf("grant download for image %d: %w", imageID, res.Error)
			}
			result.Granted += int(res.RowsAffected)
		}
		result.Request = req
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrConflict) {
			s.logger.Error("failed to advance highres request", "request_id", id, "error", err)
		}
		return nil, err
	}

	s.logger.Info("highres request advanced",
		"request_id", id,
		"status", status,
		"granted", result.Granted,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &result, nil
}

func (s *Storage) FindApprovedOriginal(ctx context.Context, clientID, imageID int64) (string, error) {
	var keys []string
	err := s.db.WithContext(ctx).Raw(`
		SELECT i.original_key
		FROM approved_downloads ad
		JOIN images i ON i.id = ad.image_id
		WHERE ad.client_id = ? AND ad.image_id = ?`, clientID, imageID).Scan(&keys).Error
	if err != nil {
		return "", fmt.Errorf("ошибка при проверке права скачивания: %w", err)
	}
	if len(keys) == 0 {
		return "", domain.ErrDownloadDenied
	}
	return keys[0], nil
}

func (s *Storage) ListApprovedDownloads(ctx context.Context, clientID int64) ([]domain.ApprovedDownload, error) {
	var rows []approvedDownloadRow
	if err := s.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("approved_at DESC, id DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ошибка при получении одобренных скачиваний: %w", err)
	}
	downloads := make([]domain.ApprovedDownload, 0, len(rows))
	for _, r := range rows {
		downloads = append(downloads, domain.ApprovedDownload{
			ID:         r.ID,
			ClientID:   r.ClientID,
			ImageID:    r.ImageID,
			RequestID:  r.RequestID,
			ApprovedAt: r.ApprovedAt,
		})
	}
	return downloads, nil
}
