// Package sqlite — встраиваемая реализация ports.Storage на gorm и SQLite.
// Используется для одиночного развёртывания без PostgreSQL и в тестах.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/GoArmGo/ProofGallery/internal/domain"
)

// Storage реализует ports.Storage
type Storage struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open открывает файл базы, включает внешние ключи и применяет схему.
// SQLite допускает одного писателя, поэтому пул ограничен одним соединением:
// транзакции выполняются строго по очереди.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Storage, error) {
	start := time.Now()

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		logger.Error("failed to open sqlite database", "path", path, "error", err)
		return nil, fmt.Errorf("ошибка открытия SQLite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("ошибка применения схемы SQLite: %w", err)
		}
	}

	logger.Info("SQLite storage ready",
		"path", path,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &Storage{db: db, logger: logger}, nil
}

func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		s.logger.Error("failed to close sqlite database", "error", err)
		return err
	}
	s.logger.Info("sqlite database closed")
	return nil
}

func now() time.Time {
	return time.Now().UTC()
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return errors.Is(err, gorm.ErrForeignKeyViolated) || strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// --- пользователи ---

func (s *Storage) CreateUser(ctx context.Context, user *domain.User) error {
	row := userRow{
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Role:         string(user.Role),
		CreatedAt:    now(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		s.logger.Error("failed to insert user", "email", user.Email, "error", err)
		return fmt.Errorf("ошибка при создании пользователя: %w", err)
	}
	user.ID = row.ID
	user.CreatedAt = row.CreatedAt
	s.logger.Info("user created", "user_id", user.ID, "role", user.Role)
	return nil
}

func (s *Storage) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("ошибка при получении пользователя по ID: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, email)
		}
		return nil, fmt.Errorf("ошибка при получении пользователя по email: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Storage) ListClients(ctx context.Context) ([]domain.ClientSummary, error) {
	var rows []userRow
	if err := s.db.WithContext(ctx).
		Where("role = ?", string(domain.RoleClient)).
		Order("created_at DESC, id DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ошибка при получении списка клиентов: %w", err)
	}

	var pairs []struct {
		ClientID int64
		Name     string
	}
	if err := s.db.WithContext(ctx).Raw(`
		SELECT cg.client_id, g.name
		FROM client_galleries cg
		JOIN galleries g ON g.id = cg.gallery_id
		ORDER BY g.name`).Scan(&pairs).Error; err != nil {
		return nil, fmt.Errorf("ошибка при получении назначений галерей: %w", err)
	}
	names := make(map[int64][]string, len(rows))
	for _, p := range pairs {
		names[p.ClientID] = append(names[p.ClientID], p.Name)
	}

	clients := make([]domain.ClientSummary, 0, len(rows))
	for _, r := range rows {
		galleries := names[r.ID]
		if galleries == nil {
			galleries = []string{}
		}
		clients = append(clients, domain.ClientSummary{
			ID:        r.ID,
			Email:     r.Email,
			CreatedAt: r.CreatedAt,
			Galleries: galleries,
		})
	}
	return clients, nil
}

func (s *Storage) ListStaff(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	if err := s.db.WithContext(ctx).
		Where("role IN ?", []string{string(domain.RoleAdmin), string(domain.RoleSuper)}).
		Order("created_at DESC, id DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ошибка при получении списка администраторов: %w", err)
	}
	users := make([]domain.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, *r.toDomain())
	}
	return users, nil
}

func (s *Storage) DeleteUser(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&userRow{}, id)
	if res.Error != nil {
		s.logger.Error("failed to delete user", "user_id", id, "error", res.Error)
		return fmt.Errorf("ошибка при удалении пользователя: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: user %d", domain.ErrNotFound, id)
	}
	s.logger.Info("user deleted", "user_id", id)
	return nil
}

// --- каталог ---

const galleryWithCount = `
	SELECT g.id, g.name, g.description, g.created_at,
	       (SELECT COUNT(*) FROM images i WHERE i.gallery_id = g.id) AS image_count
	FROM galleries g`

func (s *Storage) CreateGallery(ctx context.Context, gallery *domain.Gallery) error {
	row := galleryRow{Name: gallery.Name, Description: gallery.Description, CreatedAt: now()}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.logger.Error("failed to create gallery", "name", gallery.Name, "error", err)
		return fmt.Errorf("ошибка при создании галереи: %w", err)
	}
	gallery.ID = row.ID
	gallery.CreatedAt = row.CreatedAt
	s.logger.Info("gallery created", "gallery_id", gallery.ID)
	return nil
}

func (s *Storage) GetGallery(ctx context.Context, id int64) (*domain.Gallery, error) {
	var galleries []domain.Gallery
	if err := s.db.WithContext(ctx).Raw(galleryWithCount+` WHERE g.id = ?`, id).Scan(&galleries).Error; err != nil {
		return nil, fmt.Errorf("ошибка при получении галереи: %w", err)
	}
	if len(galleries) == 0 {
		return nil, fmt.Errorf("%w: gallery %d", domain.ErrNotFound, id)
	}
	return &galleries[0], nil
}

func (s *Storage) ListGalleries(ctx context.Context) ([]domain.Gallery, error) {
	galleries := []domain.Gallery{}
	if err := s.db.WithContext(ctx).Raw(galleryWithCount + ` ORDER BY g.created_at DESC, g.id DESC`).Scan(&galleries).Error; err != nil {
		return nil, fmt.Errorf("ошибка при получении списка галерей: %w", err)
	}
	return galleries, nil
}

func (s *Storage) SaveImage(ctx context.Context, image *domain.Image) error {
	start := time.Now()

	row := imageRow{
		GalleryID:       image.GalleryID,
		OriginalKey:     image.OriginalKey,
		PreviewKey:      image.PreviewKey,
		WatermarkFailed: image.WatermarkFailed,
		UploadedAt:      now(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: gallery %d", domain.ErrNotFound, image.GalleryID)
		}
		s.logger.Error("failed to save image", "gallery_id", image.GalleryID, "error", err)
		return fmt.Errorf("ошибка при сохранении изображения: %w", err)
	}
	image.ID = row.ID
	image.UploadedAt = row.UploadedAt

	s.logger.Info("image saved",
		"image_id", image.ID,
		"gallery_id", image.GalleryID,
		"watermark_failed", image.WatermarkFailed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (s *Storage) GetImage(ctx context.Context, id int64) (*domain.Image, error) {
	var row imageRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: image %d", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("ошибка при получении изображения: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Storage) UpdateImagePreview(ctx context.Context, id int64, previewKey string, watermarkFailed bool) error {
	res := s.db.WithContext(ctx).Model(&imageRow{}).Where("id = ?", id).Updates(map[string]any{
		"preview_key":      previewKey,
		"watermark_failed": watermarkFailed,
	})
	if res.Error != nil {
		s.logger.Error("failed to update image preview", "image_id", id, "error", res.Error)
		return fmt.Errorf("ошибка при обновлении превью: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: image %d", domain.ErrNotFound, id)
	}
	return nil
}
