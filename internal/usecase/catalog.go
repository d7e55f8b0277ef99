package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/GoArmGo/ProofGallery/internal/core/ports"
	"github.com/GoArmGo/ProofGallery/internal/domain"
)

type catalogUseCase struct {
	catalog ports.CatalogStorage
	users   ports.UserStorage
}

func NewCatalogUseCase(catalog ports.CatalogStorage, users ports.UserStorage) CatalogUseCase {
	return &catalogUseCase{catalog: catalog, users: users}
}

func (uc *catalogUseCase) CreateGallery(ctx context.Context, name, description string) (*domain.Gallery, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: gallery name is required", domain.ErrValidation)
	}
	g := &domain.Gallery{Name: name, Description: strings.TrimSpace(description)}
	if err := uc.catalog.CreateGallery(ctx, g); err != nil {
		return nil, fmt.Errorf("usecase: создание галереи: %w", err)
	}
	return g, nil
}

func (uc *catalogUseCase) GetGallery(ctx context.Context, id int64) (*domain.Gallery, error) {
	return uc.catalog.GetGallery(ctx, id)
}

func (uc *catalogUseCase) ListGalleries(ctx context.Context) ([]domain.Gallery, error) {
	return uc.catalog.ListGalleries(ctx)
}

func (uc *catalogUseCase) ListClients(ctx context.Context) ([]domain.ClientSummary, error) {
	return uc.users.ListClients(ctx)
}
