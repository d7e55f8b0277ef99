package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/GoArmGo/ProofGallery/internal/domain"
)

// CreateUser сохраняет пользователя; занятый email — domain.ErrEmailTaken
func (s *PostgresStorage) CreateUser(ctx context.Context, user *domain.User) error {
	start := time.Now()

	query := `
	INSERT INTO users (email, password_hash, role)
	VALUES ($1, $2, $3)
	RETURNING id, created_at`

	err := s.db.QueryRowxContext(ctx, query, user.Email, user.PasswordHash, user.Role).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		s.logger.Error("failed to insert user", "email", user.Email, "error", err)
		return fmt.Errorf("ошибка при создании пользователя: %w", err)
	}

	s.logger.Info("user created",
		"user_id", user.ID,
		"role", user.Role,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (s *PostgresStorage) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User
	err := s.db.GetContext(ctx, &user, `SELECT id, email, password_hash, role, created_at FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %d", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("ошибка при получении пользователя по ID: %w", err)
	}
	return &user, nil
}

func (s *PostgresStorage) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := s.db.GetContext(ctx, &user, `SELECT id, email, password_hash, role, created_at FROM users WHERE email = $1`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, email)
		}
		return nil, fmt.Errorf("ошибка при получении пользователя по email: %w", err)
	}
	return &user, nil
}

type clientRow struct {
	ID        int64          `db:"id"`
	Email     string         `db:"email"`
	CreatedAt time.Time      `db:"created_at"`
	Galleries pq.StringArray `db:"galleries"`
}

// ListClients возвращает клиентов с названиями назначенных им галерей
func (s *PostgresStorage) ListClients(ctx context.Context) ([]domain.ClientSummary, error) {
	start := time.Now()

	query := `
	SELECT u.id, u.email, u.created_at,
	       COALESCE(ARRAY_AGG(g.name ORDER BY g.name) FILTER (WHERE g.id IS NOT NULL), '{}') AS galleries
	FROM users u
	LEFT JOIN client_galleries cg ON cg.client_id = u.id
	LEFT JOIN galleries g ON g.id = cg.gallery_id
	WHERE u.role = 'client'
	GROUP BY u.id
	ORDER BY u.created_at DESC`

	var rows []clientRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		s.logger.Error("failed to list clients", "error", err)
		return nil, fmt.Errorf("ошибка при получении списка клиентов: %w", err)
	}

	clients := make([]domain.ClientSummary, 0, len(rows))
	for _, r := range rows {
		clients = append(clients, domain.ClientSummary{
			ID:        r.ID,
			Email:     r.Email,
			CreatedAt: r.CreatedAt,
			Galleries: []string(r.Galleries),
		})
	}

	s.logger.Debug("clients listed", "count", len(clients), "duration_ms", time.Since(start).Milliseconds())
	return clients, nil
}

// ListStaff возвращает администраторов и суперадминистратора
func (s *PostgresStorage) ListStaff(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := s.db.SelectContext(ctx, &users, `
	SELECT id, email, password_hash, role, created_at
	FROM users WHERE role IN ('admin', 'super')
	ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении списка администраторов: %w", err)
	}
	return users, nil
}

func (s *PostgresStorage) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		s.logger.Error("failed to delete user", "user_id", id, "error", err)
		return fmt.Errorf("ошибка при удалении пользователя: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: user %d", domain.ErrNotFound, id)
	}
	s.logger.Info("user deleted", "user_id", id)
	return nil
}
