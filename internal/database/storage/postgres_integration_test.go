//go:build integration

package storage

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/GoArmGo/ProofGallery/internal/config"
	"github.com/GoArmGo/ProofGallery/internal/database/client"
	"github.com/GoArmGo/ProofGallery/internal/domain"
	"github.com/GoArmGo/ProofGallery/internal/logger"
)

// Запуск: DATABASE_URL=postgres://... go test -tags integration ./internal/database/storage/...
// База очищается перед каждым тестом.
func openPostgres(t *testing.T) *PostgresStorage {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL is not set")
	}

	c, err := client.NewClient(&config.Config{DatabaseURL: url}, logger.Nop())
	require.NoError(t, err)
	s := NewPostgresStorage(c, logger.Nop())
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.db.ExecContext(context.Background(), `
	TRUNCATE approved_downloads, highres_requests, selections, favorites,
		client_galleries, gallery_requests, images, galleries, users
	RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return s
}

type pgFixture struct {
	client *domain.User
	images []*domain.Image
}

func seed(t *testing.T, s *PostgresStorage, n int) pgFixture {
	t.Helper()
	ctx := context.Background()

	c := &domain.User{Email: "c@example.com", PasswordHash: "hash", Role: domain.RoleClient}
	require.NoError(t, s.CreateUser(ctx, c))
	g := &domain.Gallery{Name: "Wedding"}
	require.NoError(t, s.CreateGallery(ctx, g))

	images := make([]*domain.Image, 0, n)
	for i := 0; i < n; i++ {
		img := &domain.Image{GalleryID: g.ID, OriginalKey: "originals/x.jpg", PreviewKey: "previews/x.jpg"}
		require.NoError(t, s.SaveImage(ctx, img))
		images = append(images, img)
	}
	_, err := s.AssignGallery(ctx, c.ID, g.ID)
	require.NoError(t, err)
	return pgFixture{client: c, images: images}
}

func selectedIn(t *testing.T, s *PostgresStorage, clientID, galleryID, imageID int64) bool {
	t.Helper()
	list, err := s.ListVisibleImages(context.Background(), clientID, galleryID)
	require.NoError(t, err)
	for _, ci := range list {
		if ci.ID == imageID {
			return ci.IsSelected
		}
	}
	t.Fatalf("image %d is not visible", imageID)
	return false
}

func TestPostgresSelectionFreezesAfterGrant(t *testing.T) {
	ctx := context.Background()
	s := openPostgres(t)
	f := seed(t, s, 2)
	c, a, b := f.client, f.images[0], f.images[1]

	on, err := s.ToggleSelection(ctx, c.ID, a.ID)
	require.NoError(t, err)
	require.True(t, on)

	req, err := s.CreateHighResRequest(ctx, c.ID, []int64{a.ID, b.ID})
	require.NoError(t, err)
	_, err = s.AdvanceHighResRequest(ctx, req.ID, domain.HighResPaid)
	require.NoError(t, err)

	// выбранное остаётся выбранным, невыбранное — невыбранным
	for _, img := range []*domain.Image{a, b} {
		before := selectedIn(t, s, c.ID, img.GalleryID, img.ID)
		_, err := s.ToggleSelection(ctx, c.ID, img.ID)
		assert.True(t, errors.Is(err, domain.ErrSelectionFrozen))
		assert.ErrorIs(t, err, domain.ErrConflict)
		assert.Equal(t, before, selectedIn(t, s, c.ID, img.GalleryID, img.ID))
	}
	assert.True(t, selectedIn(t, s, c.ID, a.GalleryID, a.ID))
	assert.False(t, selectedIn(t, s, c.ID, b.GalleryID, b.ID))

	// на избранное заморозка не распространяется
	fav, err := s.ToggleFavorite(ctx, c.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, fav)
}

func TestPostgresAdvanceGrantsOnce(t *testing.T) {
	ctx := context.Background()
	s := openPostgres(t)
	f := seed(t, s, 3)
	c := f.client

	ids := []int64{f.images[2].ID, f.images[0].ID, f.images[1].ID}
	req, err := s.CreateHighResRequest(ctx, c.ID, ids)
	require.NoError(t, err)
	assert.Equal(t, ids, req.ImageIDs)

	var granted atomic.Int64
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			res, err := s.AdvanceHighResRequest(ctx, req.ID, domain.HighResPaid)
			if err != nil {
				return err
			}
			granted.Add(int64(res.Granted))
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int64(len(ids)), granted.Load())

	res, err := s.AdvanceHighResRequest(ctx, req.ID, domain.HighResPaid)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Granted)

	res, err = s.AdvanceHighResRequest(ctx, req.ID, domain.HighResDelivered)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Granted)
	assert.Equal(t, domain.HighResDelivered, res.Request.Status)

	_, err = s.AdvanceHighResRequest(ctx, req.ID, domain.HighResPaid)
	assert.ErrorIs(t, err, domain.ErrStatusRegression)
	assert.ErrorIs(t, err, domain.ErrConflict)

	downloads, err := s.ListApprovedDownloads(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, downloads, len(ids))
	for _, img := range f.images {
		key, err := s.FindApprovedOriginal(ctx, c.ID, img.ID)
		require.NoError(t, err)
		assert.Equal(t, img.OriginalKey, key)
	}
}
