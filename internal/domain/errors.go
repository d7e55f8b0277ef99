package domain

import (
	"errors"
	"fmt"
)

// Классы ошибок ядра. Конкретные ошибки оборачивают их через fmt.Errorf("%w: ...").
var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("access denied")
	ErrUnauthorized = errors.New("unauthorized")
)

var (
	ErrPendingGalleryRequest = fmt.Errorf("%w: you already have a pending request", ErrConflict)
	ErrRequestResolved       = fmt.Errorf("%w: request already resolved", ErrConflict)
	ErrSelectionFrozen       = fmt.Errorf("%w: cannot deselect approved images", ErrConflict)
	ErrStatusRegression      = fmt.Errorf("%w: request status cannot move backwards", ErrConflict)
	ErrEmailTaken            = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrDownloadDenied        = fmt.Errorf("%w: download not authorized for this image", ErrForbidden)
	ErrInvalidCredentials    = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
)
