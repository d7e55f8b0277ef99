package usecase

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GoArmGo/ProofGallery/internal/adapter/storage/localfs"
	"github.com/GoArmGo/ProofGallery/internal/database/sqlite"
	"github.com/GoArmGo/ProofGallery/internal/domain"
	"github.com/GoArmGo/ProofGallery/internal/logger"
	"github.com/GoArmGo/ProofGallery/internal/watermark"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

type testEnv struct {
	store     *sqlite.Storage
	assets    *localfs.Store
	assetDir  string
	notifier  *mockNotifier
	ledger    EntitlementUseCase
	downloads DownloadUseCase
	ingestion IngestionUseCase
	catalog   CatalogUseCase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	log := logger.Nop()

	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "proofgallery.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	assetDir := t.TempDir()
	assets, err := localfs.New(assetDir, log)
	require.NoError(t, err)

	tr, err := watermark.New(watermark.Options{MaxDimension: 256})
	require.NoError(t, err)

	n := &mockNotifier{}
	t.Cleanup(func() { n.AssertExpectations(t) })

	return &testEnv{
		store:     store,
		assets:    assets,
		assetDir:  assetDir,
		notifier:  n,
		ledger:    NewEntitlementUseCase(store, store, store, n, log),
		downloads: NewDownloadUseCase(store, assets, log),
		ingestion: NewIngestionUseCase(store, assets, tr, IngestionConfig{MaxBytes: 1 << 20, MaxFiles: 5, Concurrency: 2}, log),
		catalog:   NewCatalogUseCase(store, store),
	}
}

func (e *testEnv) client(t *testing.T, email string) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, PasswordHash: "x", Role: domain.RoleClient}
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	return u
}

func (e *testEnv) gallery(t *testing.T, name string) *domain.Gallery {
	t.Helper()
	g, err := e.catalog.CreateGallery(context.Background(), name, "")
	require.NoError(t, err)
	return g
}

// images регистрирует n изображений напрямую в каталоге
func (e *testEnv) images(t *testing.T, galleryID int64, n int) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		img := &domain.Image{GalleryID: galleryID, OriginalKey: "originals/o.jpg", PreviewKey: "previews/p.jpg"}
		require.NoError(t, e.store.SaveImage(context.Background(), img))
		ids = append(ids, img.ID)
	}
	return ids
}

// expectAssignmentMail ожидает ровно одно письмо о назначении галереи
func (e *testEnv) expectAssignmentMail(email string) {
	e.notifier.On("Notify", mock.Anything, email, "Gallery Assigned - Da'perfect Studios", mock.Anything).
		Return(nil).Once()
}

func (e *testEnv) expectUnlockMail(email string) {
	e.notifier.On("Notify", mock.Anything, email, "High-Resolution Images Ready - Da'perfect Studios", mock.Anything).
		Return(nil).Once()
}

func (e *testEnv) assign(t *testing.T, c *domain.User, galleryID int64) {
	t.Helper()
	e.expectAssignmentMail(c.Email)
	created, err := e.ledger.AssignGallery(context.Background(), c.ID, galleryID)
	require.NoError(t, err)
	require.True(t, created)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 90, G: 120, B: 150, A: 255}), image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
