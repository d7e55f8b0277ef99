package handler

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/GoArmGo/ProofGallery/internal/core/ports"
	"github.com/GoArmGo/ProofGallery/internal/domain"
)

// RequestLogger — middleware для логирования HTTP-запросов.
func RequestLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Оборачиваем ResponseWriter, чтобы знать статус
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.statusCode,
				"request_id", middleware.GetReqID(r.Context()),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// responseWriter нужен, чтобы перехватывать код ответа
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

type identityKey struct{}

// WithIdentity кладёт проверенную личность в контекст
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom достаёт личность, положенную Authenticate
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(domain.Identity)
	return id, ok
}

// Authenticate проверяет bearer-токен и кладёт domain.Identity в контекст запроса
func Authenticate(tokens ports.TokenService, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				respondWithError(w, http.StatusUnauthorized, "missing bearer token", logger)
				return
			}

			id, err := tokens.Verify(strings.TrimSpace(token))
			if err != nil {
				logger.Warn("token rejected", "path", r.URL.Path, "error", err)
				respondWithDomainError(w, err, logger)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole пропускает только перечисленные роли. Ставится после Authenticate.
func RequireRole(logger *slog.Logger, roles ...domain.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "unauthorized", logger)
				return
			}
			if !slices.Contains(roles, id.Role) {
				logger.Warn("role not permitted", "user_id", id.UserID, "role", id.Role, "path", r.URL.Path)
				respondWithError(w, http.StatusForbidden, "access denied", logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
