package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoArmGo/ProofGallery/internal/core/ports"
	"github.com/GoArmGo/ProofGallery/internal/domain"
	"github.com/GoArmGo/ProofGallery/internal/logger"
)

// stubLedger подменяет только проверку права скачивания
type stubLedger struct {
	ports.LedgerStorage
	err error
}

func (s stubLedger) FindApprovedOriginal(context.Context, int64, int64) (string, error) {
	return "", s.err
}

func TestDownloadReleasesOnlyApprovedOriginals(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	c := e.client(t, "c@example.com")
	intruder := e.client(t, "other@example.com")
	g := e.gallery(t, "G")

	original := pngBytes(t, 40, 30)
	res, err := e.ingestion.Ingest(ctx, g.ID, Upload{Filename: "shot.png", Data: original})
	require.NoError(t, err)
	imageID := res.Image.ID

	e.assign(t, c, g.ID)

	// превью доступно, оригинал — нет
	rc, handle, err := e.downloads.OpenPreview(ctx, c.ID, imageID)
	require.NoError(t, err)
	preview, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "image/jpeg", handle.ContentType)
	assert.False(t, bytes.Equal(original, preview))

	_, _, err = e.downloads.OpenOriginal(ctx, c.ID, imageID)
	assert.ErrorIs(t, err, domain.ErrDownloadDenied)

	_, _, err = e.downloads.OpenPreview(ctx, intruder.ID, imageID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	req, err := e.ledger.SubmitHighResRequest(ctx, c.ID, []int64{imageID})
	require.NoError(t, err)
	e.expectUnlockMail(c.Email)
	_, err = e.ledger.AdvanceHighResRequest(ctx, req.ID, domain.HighResDelivered)
	require.NoError(t, err)

	rc, handle, err = e.downloads.OpenOriginal(ctx, c.ID, imageID)
	require.NoError(t, err)
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, original, got)
	assert.Equal(t, "image/png", handle.ContentType)
	assert.Contains(t, handle.Filename, ".png")

	// право выдано конкретному клиенту
	_, _, err = e.downloads.OpenOriginal(ctx, intruder.ID, imageID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// несуществующее изображение неотличимо от неразрешённого
	_, err = e.downloads.Authorize(ctx, c.ID, 424242)
	assert.ErrorIs(t, err, domain.ErrDownloadDenied)
}

func TestAuthorizeNormalizesLedgerErrors(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		err    error
		denied bool
	}{
		{"not found", fmt.Errorf("storage: изображение 9: %w", domain.ErrNotFound), true},
		{"forbidden", domain.ErrForbidden, true},
		{"denied", domain.ErrDownloadDenied, true},
		{"backend failure", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := NewDownloadUseCase(stubLedger{err: tt.err}, nil, logger.Nop())
			handle, err := uc.Authorize(ctx, 1, 9)
			require.Error(t, err)
			assert.Nil(t, handle)
			if tt.denied {
				assert.Equal(t, domain.ErrDownloadDenied, err)
				return
			}
			assert.NotErrorIs(t, err, domain.ErrForbidden)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
