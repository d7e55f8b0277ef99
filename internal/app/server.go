package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/GoArmGo/ProofGallery/internal/config"
	"github.com/GoArmGo/ProofGallery/internal/core/ports"
	"github.com/GoArmGo/ProofGallery/internal/domain"
	"github.com/GoArmGo/ProofGallery/internal/handler"
	"github.com/GoArmGo/ProofGallery/internal/usecase"
)

// Services — бизнес-логика, которую обслуживает HTTP-сервер
type Services struct {
	Auth      usecase.AuthUseCase
	Catalog   usecase.CatalogUseCase
	Ledger    usecase.EntitlementUseCase
	Ingestion usecase.IngestionUseCase
	Downloads usecase.DownloadUseCase
	Tokens    ports.TokenService
}

// NewRouter собирает маршруты с проверкой ролей
func NewRouter(cfg *config.Config, svc Services, uploadLimiter chan struct{}, logger *slog.Logger) http.Handler {
	authHandler := handler.NewAuthHandler(svc.Auth, logger)
	clientHandler := handler.NewClientHandler(svc.Ledger, svc.Downloads, logger)
	adminHandler := handler.NewAdminHandler(svc.Catalog, svc.Ledger, svc.Ingestion, svc.Auth, logger)
	mediaHandler := handler.NewMediaHandler(svc.Ingestion, uploadLimiter, cfg.Upload.MaxBytes, cfg.Upload.MaxFiles, logger)

	authenticate := handler.Authenticate(svc.Tokens, logger)
	staff := handler.RequireRole(logger, domain.RoleAdmin, domain.RoleSuper)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		// загрузка ограничена UPLOAD_BATCH_TIMEOUT внутри IngestBatch, остальные маршруты — REQUEST_TIMEOUT
		r.With(authenticate, staff).Post("/media/upload/{galleryID}", mediaHandler.Upload)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
			mountAPI(r, authHandler, clientHandler, adminHandler, authenticate, staff, logger)
		})
	})

	return r
}

// mountAPI регистрирует маршруты, живущие в пределах REQUEST_TIMEOUT
func mountAPI(
	r chi.Router,
	authHandler *handler.AuthHandler,
	clientHandler *handler.ClientHandler,
	adminHandler *handler.AdminHandler,
	authenticate, staff func(http.Handler) http.Handler,
	logger *slog.Logger,
) {
	r.Get("/health", handler.Health(logger))

	r.Post("/auth/signup", authHandler.Signup)
	r.Post("/auth/login", authHandler.Login)

	r.Route("/client", func(r chi.Router) {
		r.Use(authenticate, handler.RequireRole(logger, domain.RoleClient))

		r.Post("/request-gallery", clientHandler.RequestGallery)
		r.Get("/galleries", clientHandler.ListGalleries)
		r.Get("/galleries/{galleryID}/images", clientHandler.ListImages)
		r.Get("/images/{imageID}/preview", clientHandler.Preview)
		r.Post("/favorites/{imageID}", clientHandler.ToggleFavorite)
		r.Post("/selections/{imageID}", clientHandler.ToggleSelection)
		r.Post("/request-highres", clientHandler.RequestHighRes)
		r.Get("/requests", clientHandler.ListRequests)
		r.Get("/downloads", clientHandler.ListDownloads)
		r.Get("/download/{imageID}", clientHandler.Download)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticate, staff)

		r.Get("/galleries", adminHandler.ListGalleries)
		r.Post("/galleries", adminHandler.CreateGallery)
		r.Get("/clients", adminHandler.ListClients)
		r.Post("/assign-gallery", adminHandler.AssignGallery)
		r.Get("/gallery-requests", adminHandler.ListGalleryRequests)
		r.Patch("/gallery-requests/{id}", adminHandler.ResolveGalleryRequest)
		r.Get("/highres-requests", adminHandler.ListHighResRequests)
		r.Patch("/highres-requests/{id}", adminHandler.AdvanceHighResRequest)
		r.Post("/images/{imageID}/rewatermark", adminHandler.Rewatermark)

		r.Group(func(r chi.Router) {
			r.Use(handler.RequireRole(logger, domain.RoleSuper))
			r.Get("/admins", adminHandler.ListAdmins)
			r.Post("/admins", adminHandler.CreateAdmin)
			r.Delete("/admins/{id}", adminHandler.DeleteAdmin)
		})
	})
}

// runServer запускает HTTP сервер и останавливает его по отмене ctx
func runServer(ctx context.Context, cfg *config.Config, h http.Handler, logger *slog.Logger) error {
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", serverAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("ошибка при запуске сервера: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received, stopping server")

	ctxServer, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxServer); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
