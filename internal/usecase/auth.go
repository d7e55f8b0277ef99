package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/GoArmGo/ProofGallery/internal/core/ports"
	"github.com/GoArmGo/ProofGallery/internal/domain"
)

const minPasswordLength = 6

type authUseCase struct {
	users  ports.UserStorage
	tokens ports.TokenService
	logger *slog.Logger
	cost   int
}

func NewAuthUseCase(users ports.UserStorage, tokens ports.TokenService, logger *slog.Logger) AuthUseCase {
	return &authUseCase{users: users, tokens: tokens, logger: logger, cost: bcrypt.DefaultCost}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email", domain.ErrValidation)
	}
	return email, nil
}

func (uc *authUseCase) newUser(ctx context.Context, email, password string, role domain.Role) (*domain.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), uc.cost)
	if err != nil {
		return nil, fmt.Errorf("ошибка хеширования пароля: %w", err)
	}

	user := &domain.User{Email: email, PasswordHash: string(hash), Role: role}
	if err := uc.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Signup регистрирует клиента и сразу выдаёт токен
func (uc *authUseCase) Signup(ctx context.Context, email, password string) (string, *domain.User, error) {
	user, err := uc.newUser(ctx, email, password, domain.RoleClient)
	if err != nil {
		return "", nil, fmt.Errorf("usecase: регистрация: %w", err)
	}
	token, err := uc.tokens.Issue(*user)
	if err != nil {
		return "", nil, err
	}
	uc.logger.Info("client signed up", "user_id", user.ID)
	return token, user, nil
}

// Login проверяет пароль. Неизвестный email и неверный пароль неразличимы.
func (uc *authUseCase) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := uc.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("usecase: вход: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		uc.logger.Warn("login failed", "user_id", user.ID)
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := uc.tokens.Issue(*user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// EnsureSuperAdmin создаёт суперадминистратора при старте, если его ещё нет
func (uc *authUseCase) EnsureSuperAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		uc.logger.Info("super admin seed skipped: credentials not configured")
		return nil
	}

	existing, err := uc.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	switch {
	case err == nil:
		if existing.Role != domain.RoleSuper {
			uc.logger.Warn("super admin email belongs to another role", "user_id", existing.ID, "role", existing.Role)
		}
		return nil
	case !errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("usecase: поиск суперадминистратора: %w", err)
	}

	user, err := uc.newUser(ctx, email, password, domain.RoleSuper)
	if err != nil {
		return fmt.Errorf("usecase: создание суперадминистратора: %w", err)
	}
	uc.logger.Info("super admin created", "user_id", user.ID)
	return nil
}

func (uc *authUseCase) CreateAdmin(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := uc.newUser(ctx, email, password, domain.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("usecase: создание администратора: %w", err)
	}
	uc.logger.Info("admin created", "user_id", user.ID)
	return user, nil
}

func (uc *authUseCase) ListAdmins(ctx context.Context) ([]domain.User, error) {
	return uc.users.ListStaff(ctx)
}

// DeleteAdmin удаляет администратора. Суперадминистратора удалить нельзя.
func (uc *authUseCase) DeleteAdmin(ctx context.Context, id int64) error {
	user, err := uc.users.GetUserByID(ctx, id)
	if err != nil {
		return fmt.Errorf("usecase: удаление администратора: %w", err)
	}
	switch user.Role {
	case domain.RoleSuper:
		return fmt.Errorf("%w: super admin cannot be deleted", domain.ErrForbidden)
	case domain.RoleAdmin:
	default:
		return fmt.Errorf("%w: admin %d", domain.ErrNotFound, id)
	}

	if err := uc.users.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("usecase: удаление администратора: %w", err)
	}
	uc.logger.Info("admin deleted", "user_id", id)
	return nil
}
