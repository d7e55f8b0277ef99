package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/GoArmGo/ProofGallery/internal/domain"
)

// CreateGalleryRequest создаёт pending-заявку. Уникальный частичный индекс
// не даёт завести вторую pending-заявку даже при гонке.
func (s *PostgresStorage) CreateGalleryRequest(ctx context.Context, clientID int64) (*domain.GalleryRequest, error) {
	start := time.Now()

	req := domain.GalleryRequest{ClientID: clientID, Status: domain.GalleryRequestPending}
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO gallery_requests (client_id, status) VALUES ($1, 'pending') RETURNING id, created_at`,
		clientID,
	).Scan(&req.ID, &req.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrPendingGalleryRequest
		}
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: client %d", domain.ErrNotFound, clientID)
		}
		s.logger.Error("failed to create gallery request", "client_id", clientID, "error", err)
		return nil, fmt.Errorf("ошибка при создании заявки на галерею: %w", err)
	}

	s.logger.Info("gallery request created",
		"request_id", req.ID,
		"client_id", clientID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &req, nil
}

func (s *PostgresStorage) ResolveGalleryRequest(ctx context.Context, id int64, status domain.GalleryRequestStatus) (*domain.GalleryRequest, error) {
	if !status.IsOutcome() {
		return nil, fmt.Errorf("%w: invalid gallery request status %q", domain.ErrValidation, status)
	}

	var req domain.GalleryRequest
	err := s.db.GetContext(ctx, &req, `
	UPDATE gallery_requests r SET status = $2, resolved_at = NOW()
	FROM users u
	WHERE r.id = $1 AND r.status = 'pending' AND u.id = r.client_id
	RETURNING r.id, r.client_id, u.email AS client_email, r.status, r.created_at, r.resolved_at`,
		id, status,
	)
	if err == nil {
		s.logger.Info("gallery request resolved", "request_id", id, "status", status)
		return &req, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Error("failed to resolve gallery request", "request_id", id, "error", err)
		return nil, fmt.Errorf("ошибка при обработке заявки на галерею: %w", err)
	}

	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM gallery_requests WHERE id = $1)`, id); err != nil {
		return nil, fmt.Errorf("ошибка при проверке заявки: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: gallery request %d", domain.ErrNotFound, id)
	}
	return nil, domain.ErrRequestResolved
}

func (s *PostgresStorage) ListGalleryRequests(ctx context.Context) ([]domain.GalleryRequest, error) {
	reqs := []domain.GalleryRequest{}
	err := s.db.SelectContext(ctx, &reqs, `
	SELECT r.id, r.client_id, u.email AS client_email, r.status, r.created_at, r.resolved_at
	FROM gallery_requests r
	JOIN users u ON u.id = r.client_id
	ORDER BY r.created_at DESC, r.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении заявок на галереи: %w", err)
	}
	return reqs, nil
}

func (s *PostgresStorage) AssignGallery(ctx context.Context, clientID, galleryID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
	INSERT INTO client_galleries (client_id, gallery_id) VALUES ($1, $2)
	ON CONFLICT (client_id, gallery_id) DO NOTHING`,
		clientID, galleryID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, fmt.Errorf("%w: client %d or gallery %d", domain.ErrNotFound, clientID, galleryID)
		}
		s.logger.Error("failed to assign gallery", "client_id", clientID, "gallery_id", galleryID, "error", err)
		return false, fmt.Errorf("ошибка при назначении галереи: %w", err)
	}
	n, _ := res.RowsAffected()
	s.logger.Info("gallery assigned", "client_id", clientID, "gallery_id", galleryID, "created", n > 0)
	return n > 0, nil
}

func (s *PostgresStorage) ListClientGalleries(ctx context.Context, clientID int64) ([]domain.Gallery, error) {
	galleries := []domain.Gallery{}
	err := s.db.SelectContext(ctx, &galleries, `
	SELECT g.id, g.name, g.description, g.created_at,
	       (SELECT COUNT(*) FROM images i WHERE i.gallery_id = g.id) AS image_count
	FROM galleries g
	JOIN client_galleries cg ON cg.gallery_id = g.id
	WHERE cg.client_id = $1
	ORDER BY cg.assigned_at DESC, g.id DESC`, clientID)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении галерей клиента: %w", err)
	}
	return galleries, nil
}

const visibleImageQuery = `
	SELECT ` + imageColumns + `
	FROM images i
	JOIN client_galleries cg ON cg.gallery_id = i.gallery_id AND cg.client_id = $1
	WHERE i.id = $2`

func (s *PostgresStorage) GetVisibleImage(ctx context.Context, clientID, imageID int64) (*domain.Image, error) {
	return visibleImage(ctx, s.db, clientID, imageID)
}

func visibleImage(ctx context.Context, q sqlx.QueryerContext, clientID, imageID int64) (*domain.Image, error) {
	var img domain.Image
	err := sqlx.GetContext(ctx, q, &img, visibleImageQuery, clientID, imageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: image %d is not visible", domain.ErrForbidden, imageID)
		}
		return nil, fmt.Errorf("ошибка при проверке доступа к изображению: %w", err)
	}
	return &img, nil
}

func (s *PostgresStorage) ListVisibleImages(ctx context.Context, clientID, galleryID int64) ([]domain.ClientImage, error) {
	start := time.Now()

	images := []domain.ClientImage{}
	err := s.db.SelectContext(ctx, &images, `
	SELECT `+imageColumns+`,
	       EXISTS(SELECT 1 FROM favorites f WHERE f.client_id = $1 AND f.image_id = i.id) AS is_favorite,
	       EXISTS(SELECT 1 FROM selections sl WHERE sl.client_id = $1 AND sl.image_id = i.id) AS is_selected,
	       EXISTS(SELECT 1 FROM approved_downloads ad WHERE ad.client_id = $1 AND ad.image_id = i.id) AS is_approved
	FROM images i
	JOIN client_galleries cg ON cg.gallery_id = i.gallery_id AND cg.client_id = $1
	WHERE i.gallery_id = $2
	ORDER BY i.uploaded_at, i.id`, clientID, galleryID)
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

// lockClient сериализует изменяющие права операции одного клиента
func lockClient(ctx context.Context, tx *sqlx.Tx, clientID int64) error {
	var id int64
	err := tx.GetContext(ctx, &id, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, clientID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: client %d", domain.ErrNotFound, clientID)
	}
	return err
}

func (s *PostgresStorage) ToggleFavorite(ctx context.Context, clientID, imageID int64) (bool, error) {
	var favorite bool
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockClient(ctx, tx, clientID); err != nil {
			return err
		}
		if _, err := visibleImage(ctx, tx, clientID, imageID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM favorites WHERE client_id = $1 AND image_id = $2`, clientID, imageID)
		if err != nil {
			return fmt.Errorf("delete favorite: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			favorite = false
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO favorites (client_id, image_id) VALUES ($1, $2)
		ON CONFLICT (client_id, image_id) DO NOTHING`, clientID, imageID); err != nil {
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

// ToggleSelection отказывает, если на пару уже выдано право скачивания.
// Проверка и переключение выполняются под блокировкой строки клиента,
// ту же блокировку берёт выдача прав в AdvanceHighResRequest.
func (s *PostgresStorage) ToggleSelection(ctx context.Context, clientID, imageID int64) (bool, error) {
	var selected bool
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockClient(ctx, tx, clientID); err != nil {
			return err
		}
		if _, err := visibleImage(ctx, tx, clientID, imageID); err != nil {
			return err
		}

		var approved bool
		if err := tx.GetContext(ctx, &approved,
			`SELECT EXISTS(SELECT 1 FROM approved_downloads WHERE client_id = $1 AND image_id = $2)`,
			clientID, imageID,
		); err != nil {
			return fmt.Errorf("check approved download: %w", err)
		}
		if approved {
			return domain.ErrSelectionFrozen
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM selections WHERE client_id = $1 AND image_id = $2`, clientID, imageID)
		if err != nil {
			return fmt.Errorf("delete selection: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			selected = false
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO selections (client_id, image_id) VALUES ($1, $2)
		ON CONFLICT (client_id, image_id) DO NOTHING`, clientID, imageID); err != nil {
			return fmt.Errorf("insert selection: %w", err)
		}
		selected = true
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrSelectionFrozen) && !errors.Is(err, domain.ErrForbidden) {
			s.logger.Error("failed to toggle selection", "client_id", clientID, "image_id", imageID, "error", err)
		}
		return false, err
	}
	s.logger.Debug("selection toggled", "client_id", clientID, "image_id", imageID, "selected", selected)
	return selected, nil
}

type highResRow struct {
	ID          int64                `db:"id"`
	ClientID    int64                `db:"client_id"`
	ClientEmail string               `db:"client_email"`
	ImageIDs    pq.Int64Array        `db:"image_ids"`
	Status      domain.HighResStatus `db:"status"`
	CreatedAt   time.Time            `db:"created_at"`
	UpdatedAt   time.Time            `db:"updated_at"`
}

func (r highResRow) toDomain() *domain.HighResRequest {
	ids := make([]int64, len(r.ImageIDs))
	copy(ids, r.ImageIDs)
	return &domain.HighResRequest{
		ID:          r.ID,
		ClientID:    r.ClientID,
		ClientEmail: r.ClientEmail,
		ImageIDs:    ids,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

const highResColumns = `r.id, r.client_id, u.email AS client_email, r.image_ids, r.status, r.created_at, r.updated_at`

// CreateHighResRequest проверяет, что все изображения видимы клиенту, и сохраняет набор как есть
func (s *PostgresStorage) CreateHighResRequest(ctx context.Context, clientID int64, imageIDs []int64) (*domain.HighResRequest, error) {
	start := time.Now()

	if len(imageIDs) == 0 {
		return nil, fmt.Errorf("%w: image set must not be empty", domain.ErrValidation)
	}
	distinct := make(map[int64]struct{}, len(imageIDs))
	for _, id := range imageIDs {
		distinct[id] = struct{}{}
	}

	var row highResRow
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var visible int
		if err := tx.GetContext(ctx, &visible, `
		SELECT COUNT(DISTINCT i.id)
		FROM images i
		JOIN client_galleries cg ON cg.gallery_id = i.gallery_id AND cg.client_id = $1
		WHERE i.id = ANY($2)`, clientID, pq.Array(imageIDs)); err != nil {
			return fmt.Errorf("count visible images: %w", err)
		}
		if visible != len(distinct) {
			return fmt.Errorf("%w: some requested images are not visible", domain.ErrForbidden)
		}

		return tx.GetContext(ctx, &row, `
		WITH ins AS (
			INSERT INTO highres_requests (client_id, image_ids, status)
			VALUES ($1, $2, 'pending')
			RETURNING *
		)
		SELECT `+highResColumns+` FROM ins r JOIN users u ON u.id = r.client_id`,
			clientID, pq.Array(imageIDs))
	})
	if err != nil {
		if !errors.Is(err, domain.ErrForbidden) {
			s.logger.Error("failed to create highres request", "client_id", clientID, "error", err)
		}
		return nil, err
	}

	s.logger.Info("highres request created",
		"request_id", row.ID,
		"client_id", clientID,
		"images", len(imageIDs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return row.toDomain(), nil
}

func (s *PostgresStorage) GetHighResRequest(ctx context.Context, id int64) (*domain.HighResRequest, error) {
	var row highResRow
	err := s.db.GetContext(ctx, &row, `
	SELECT `+highResColumns+`
	FROM highres_requests r JOIN users u ON u.id = r.client_id
	WHERE r.id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: highres request %d", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("ошибка при получении заявки: %w", err)
	}
	return row.toDomain(), nil
}

func (s *PostgresStorage) ListHighResRequests(ctx context.Context, clientID int64) ([]domain.HighResRequest, error) {
	var rows []highResRow
	err := s.db.SelectContext(ctx, &rows, `
	SELECT `+highResColumns+`
	FROM highres_requests r JOIN users u ON u.id = r.client_id
	WHERE $1 = 0 OR r.client_id = $1
	ORDER BY r.created_at DESC, r.id DESC`, clientID)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении заявок на оригиналы: %w", err)
	}

	reqs := make([]domain.HighResRequest, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, *r.toDomain())
	}
	return reqs, nil
}

// AdvanceHighResRequest меняет статус и выдаёт права одной транзакцией.
// Выдача — INSERT ... ON CONFLICT DO NOTHING, повторный вызов ничего не добавляет.
func (s *PostgresStorage) AdvanceHighResRequest(ctx context.Context, id int64, status domain.HighResStatus) (*domain.AdvanceResult, error) {
	start := time.Now()

	if !status.Grants() {
		return nil, fmt.Errorf("%w: status must be paid or delivered", domain.ErrValidation)
	}

	var (
		row     highResRow
		granted int64
	)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var clientID int64
		err := tx.GetContext(ctx, &clientID, `SELECT client_id FROM highres_requests WHERE id = $1`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: highres request %d", domain.ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("select highres request: %w", err)
		}
		if err := lockClient(ctx, tx, clientID); err != nil {
			return err
		}

		if err := tx.GetContext(ctx, &row, `
		SELECT `+highResColumns+`
		FROM highres_requests r JOIN users u ON u.id = r.client_id
		WHERE r.id = $1
		FOR UPDATE OF r`, id); err != nil {
			return fmt.Errorf("lock highres request: %w", err)
		}
		if !row.Status.CanAdvanceTo(status) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrStatusRegression, row.Status, status)
		}

		if row.Status != status {
			if err := tx.QueryRowxContext(ctx,
				`UPDATE highres_requests SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
				id, status,
			).Scan(&row.UpdatedAt); err != nil {
				return fmt.Errorf("update highres status: %w", err)
			}
			row.Status = status
		}

		res, err := tx.ExecContext(ctx, `
		INSERT INTO approved_downloads (client_id, image_id, request_id)
		SELECT $1, img_id, $3 FROM UNNEST($2::BIGINT[]) AS img_id
		ON CONFLICT (client_id, image_id) DO NOTHING`,
			row.ClientID, row.ImageIDs, id,
		)
		if err != nil {
			return fmt.Errorf("grant downloads: %w", err)
		}
		granted, _ = res.RowsAffected()
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
		"granted", granted,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &domain.AdvanceResult{Request: row.toDomain(), Granted: int(granted)}, nil
}

// FindApprovedOriginal возвращает ключ оригинала только при наличии ApprovedDownload
func (s *PostgresStorage) FindApprovedOriginal(ctx context.Context, clientID, imageID int64) (string, error) {
	var key string
	err := s.db.GetContext(ctx, &key, `
	SELECT i.original_key
	FROM approved_downloads ad
	JOIN images i ON i.id = ad.image_id
	WHERE ad.client_id = $1 AND ad.image_id = $2`, clientID, imageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrDownloadDenied
		}
		return "", fmt.Errorf("ошибка при проверке права скачивания: %w", err)
	}
	return key, nil
}

func (s *PostgresStorage) ListApprovedDownloads(ctx context.Context, clientID int64) ([]domain.ApprovedDownload, error) {
	downloads := []domain.ApprovedDownload{}
	err := s.db.SelectContext(ctx, &downloads, `
	SELECT id, client_id, image_id, request_id, approved_at
	FROM approved_downloads WHERE client_id = $1
	ORDER BY approved_at DESC, id DESC`, clientID)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении одобренных скачиваний: %w", err)
	}
	return downloads, nil
}
