package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GoArmGo/ProofGallery/internal/domain"
	"github.com/GoArmGo/ProofGallery/internal/logger"
)

type mockTokens struct {
	mock.Mock
}

func (m *mockTokens) Issue(user domain.User) (string, error) {
	args := m.Called(user)
	return args.String(0), args.Error(1)
}

func (m *mockTokens) Verify(token string) (domain.Identity, error) {
	args := m.Called(token)
	return args.Get(0).(domain.Identity), args.Error(1)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestRespondWithDomainError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"validation", fmt.Errorf("%w: no images selected", domain.ErrValidation), http.StatusBadRequest, "validation error: no images selected"},
		{"unauthorized", domain.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized: invalid credentials"},
		{"download denied", fmt.Errorf("usecase: скачивание: %w", domain.ErrDownloadDenied), http.StatusForbidden, "access denied: download not authorized for this image"},
		{"not found", fmt.Errorf("storage: галерея 7: %w", domain.ErrNotFound), http.StatusNotFound, "not found"},
		{"frozen", domain.ErrSelectionFrozen, http.StatusConflict, "conflict: cannot deselect approved images"},
		{"internal", errors.New("connection reset"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondWithDomainError(rec, tt.err, logger.Nop())
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.msg, decodeError(t, rec))
		})
	}
}

func TestDecodeJSONValidates(t *testing.T) {
	var body highResRequest
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"image_ids":[1,0]}`))
	err := decodeJSON(r, &body)
	assert.ErrorIs(t, err, domain.ErrValidation)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"image_ids":`))
	assert.ErrorIs(t, decodeJSON(r, &body), domain.ErrValidation)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"image_ids":[3,4]}`))
	require.NoError(t, decodeJSON(r, &body))
	assert.Equal(t, []int64{3, 4}, body.ImageIDs)
}

func TestPathID(t *testing.T) {
	router := chi.NewRouter()
	router.Get("/images/{imageID}", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "imageID")
		if err != nil {
			respondWithDomainError(w, err, logger.Nop())
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]int64{"id": id}, logger.Nop())
	})

	for path, code := range map[string]int{
		"/images/42":  http.StatusOK,
		"/images/0":   http.StatusBadRequest,
		"/images/-1":  http.StatusBadRequest,
		"/images/abc": http.StatusBadRequest,
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, code, rec.Code, path)
	}
}

func TestAuthenticateAndRequireRole(t *testing.T) {
	tokens := &mockTokens{}
	tokens.On("Verify", "client-token").Return(domain.Identity{UserID: 7, Role: domain.RoleClient}, nil)
	tokens.On("Verify", "admin-token").Return(domain.Identity{UserID: 1, Role: domain.RoleAdmin}, nil)
	tokens.On("Verify", "bad").Return(domain.Identity{}, domain.ErrUnauthorized)

	var seen domain.Identity
	protected := Authenticate(tokens, logger.Nop())(
		RequireRole(logger.Nop(), domain.RoleClient)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = IdentityFrom(r.Context())
				w.WriteHeader(http.StatusNoContent)
			}),
		),
	)

	tests := []struct {
		header string
		code   int
	}{
		{"", http.StatusUnauthorized},
		{"Basic abc", http.StatusUnauthorized},
		{"Bearer bad", http.StatusUnauthorized},
		{"Bearer admin-token", http.StatusForbidden},
		{"Bearer client-token", http.StatusNoContent},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, tt.code, rec.Code, tt.header)
	}
	assert.Equal(t, int64(7), seen.UserID)
	tokens.AssertExpectations(t)
}
