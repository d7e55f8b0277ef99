package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHighResStatusCanAdvanceTo(t *testing.T) {
	tests := []struct {
		from, to HighResStatus
		want     bool
	}{
		{HighResPending, HighResPaid, true},
		{HighResPending, HighResDelivered, true},
		{HighResPaid, HighResDelivered, true},
		{HighResPaid, HighResPaid, true},
		{HighResDelivered, HighResDelivered, true},
		{HighResDelivered, HighResPaid, false},
		{HighResPaid, HighResPending, false},
		{HighResPending, HighResPending, false},
		{HighResPending, "shipped", false},
		{"unknown", HighResPaid, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanAdvanceTo(tt.to))
		})
	}
}

func TestStatusHelpers(t *testing.T) {
	assert.False(t, HighResPending.Grants())
	assert.True(t, HighResPaid.Grants())
	assert.True(t, HighResDelivered.Grants())

	assert.True(t, GalleryRequestApproved.IsOutcome())
	assert.True(t, GalleryRequestRejected.IsOutcome())
	assert.False(t, GalleryRequestPending.IsOutcome())

	assert.True(t, RoleSuper.IsStaff())
	assert.False(t, RoleClient.IsStaff())
	assert.False(t, Role("guest").Valid())
}

func TestErrorClasses(t *testing.T) {
	assert.True(t, errors.Is(ErrDownloadDenied, ErrForbidden))
	assert.True(t, errors.Is(ErrSelectionFrozen, ErrConflict))
	assert.True(t, errors.Is(ErrInvalidCredentials, ErrUnauthorized))
	assert.False(t, errors.Is(ErrEmailTaken, ErrValidation))

	img := Image{OriginalKey: "originals/a.png", PreviewKey: "originals/a.png"}
	assert.False(t, img.Protected())
	img.PreviewKey = "previews/a.jpg"
	assert.True(t, img.Protected())
}
