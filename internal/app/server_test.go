package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoArmGo/ProofGallery/internal/adapter/auth"
	"github.com/GoArmGo/ProofGallery/internal/adapter/notifier"
	"github.com/GoArmGo/ProofGallery/internal/adapter/storage/localfs"
	"github.com/GoArmGo/ProofGallery/internal/config"
	"github.com/GoArmGo/ProofGallery/internal/database/sqlite"
	"github.com/GoArmGo/ProofGallery/internal/logger"
	"github.com/GoArmGo/ProofGallery/internal/usecase"
	"github.com/GoArmGo/ProofGallery/internal/watermark"
)

type apiClient struct {
	t      *testing.T
	server *httptest.Server
	svc    Services
	store  *sqlite.Storage
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	return newAPIWithTimeout(t, 30*time.Second)
}

func newAPIWithTimeout(t *testing.T, requestTimeout time.Duration) *apiClient {
	t.Helper()
	ctx := context.Background()
	log := logger.Nop()

	cfg := &config.Config{RequestTimeout: requestTimeout}
	cfg.Upload.MaxBytes = 1 << 20
	cfg.Upload.MaxFiles = 5
	cfg.Upload.Concurrency = 2

	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "api.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	assets, err := localfs.New(t.TempDir(), log)
	require.NoError(t, err)
	tr, err := watermark.New(watermark.Options{MaxDimension: 256})
	require.NoError(t, err)

	tokens := auth.NewJWTService("api-secret", time.Hour)
	svc := Services{
		Auth:      usecase.NewAuthUseCase(store, tokens, log),
		Catalog:   usecase.NewCatalogUseCase(store, store),
		Ledger:    usecase.NewEntitlementUseCase(store, store, store, notifier.NewLogNotifier(log), log),
		Ingestion: usecase.NewIngestionUseCase(store, assets, tr, usecase.IngestionConfig{MaxBytes: cfg.Upload.MaxBytes, MaxFiles: cfg.Upload.MaxFiles, Concurrency: 2}, log),
		Downloads: usecase.NewDownloadUseCase(store, assets, log),
		Tokens:    tokens,
	}
	require.NoError(t, svc.Auth.EnsureSuperAdmin(ctx, "boss@example.com", "supersecret"))

	server := httptest.NewServer(NewRouter(cfg, svc, make(chan struct{}, 2), log))
	t.Cleanup(server.Close)
	return &apiClient{t: t, server: server, svc: svc, store: store}
}

func (c *apiClient) do(method, path, token string, body io.Reader, contentType string) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(method, c.server.URL+path, body)
	require.NoError(c.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.server.Client().Do(req)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (c *apiClient) json(method, path, token string, payload, out interface{}) int {
	c.t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(c.t, err)
		body = bytes.NewReader(raw)
	}
	resp := c.do(method, path, token, body, "application/json")
	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (c *apiClient) login(email, password string) string {
	c.t.Helper()
	var res struct {
		Token string `json:"token"`
	}
	code := c.json(http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password}, &res)
	require.Equal(c.t, http.StatusOK, code)
	return res.Token
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 200, G: 80, B: 40, A: 255}), image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := w.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHealthAndRoleGates(t *testing.T) {
	api := newAPI(t)

	assert.Equal(t, http.StatusOK, api.json(http.MethodGet, "/api/health", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, api.json(http.MethodGet, "/api/client/galleries", "", nil, nil))

	var signup struct {
		Token string `json:"token"`
	}
	code := api.json(http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "c@example.com", "password": "secret1"}, &signup)
	require.Equal(t, http.StatusCreated, code)

	assert.Equal(t, http.StatusForbidden, api.json(http.MethodGet, "/api/admin/galleries", signup.Token, nil, nil))
	assert.Equal(t, http.StatusOK, api.json(http.MethodGet, "/api/client/galleries", signup.Token, nil, nil))

	super := api.login("boss@example.com", "supersecret")
	assert.Equal(t, http.StatusForbidden, api.json(http.MethodGet, "/api/client/galleries", super, nil, nil))

	code = api.json(http.MethodPost, "/api/admin/admins", super, map[string]string{"email": "helper@example.com", "password": "helper1"}, nil)
	require.Equal(t, http.StatusCreated, code)
	admin := api.login("helper@example.com", "helper1")
	assert.Equal(t, http.StatusForbidden, api.json(http.MethodGet, "/api/admin/admins", admin, nil, nil))
	assert.Equal(t, http.StatusOK, api.json(http.MethodGet, "/api/admin/clients", admin, nil, nil))

	assert.Equal(t, http.StatusConflict, api.json(http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "c@example.com", "password": "secret1"}, nil))
	assert.Equal(t, http.StatusUnauthorized, api.json(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "c@example.com", "password": "nope"}, nil))
}

func TestUploadIsNotBoundByRequestTimeout(t *testing.T) {
	ctx := context.Background()
	// любой маршрут под REQUEST_TIMEOUT получил бы уже истёкший контекст
	api := newAPIWithTimeout(t, time.Nanosecond)

	boss, err := api.store.GetUserByEmail(ctx, "boss@example.com")
	require.NoError(t, err)
	token, err := api.svc.Tokens.Issue(*boss)
	require.NoError(t, err)
	g, err := api.svc.Catalog.CreateGallery(ctx, "Late batch", "")
	require.NoError(t, err)

	body, contentType := multipartBody(t, map[string][]byte{
		"one.png": testPNG(t, 90, 60),
		"two.png": testPNG(t, 60, 90),
	})
	resp := api.do(http.MethodPost, fmt.Sprintf("/api/media/upload/%d", g.ID), token, body, contentType)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var batch usecase.BatchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&batch))
	assert.Len(t, batch.Uploaded, 2)
	assert.Empty(t, batch.Failed)
}

func TestProofingFlowOverHTTP(t *testing.T) {
	api := newAPI(t)
	super := api.login("boss@example.com", "supersecret")

	var signup struct {
		Token string `json:"token"`
		User  struct {
			ID int64 `json:"id"`
		} `json:"user"`
	}
	require.Equal(t, http.StatusCreated, api.json(http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "c@example.com", "password": "secret1"}, &signup))
	client := signup.Token

	var gallery struct {
		ID int64 `json:"id"`
	}
	require.Equal(t, http.StatusCreated, api.json(http.MethodPost, "/api/admin/galleries", super, map[string]string{"name": "Wedding"}, &gallery))

	original := testPNG(t, 120, 80)
	body, contentType := multipartBody(t, map[string][]byte{
		"one.png":   original,
		"notes.txt": []byte("hello"),
	})
	resp := api.do(http.MethodPost, fmt.Sprintf("/api/media/upload/%d", gallery.ID), super, body, contentType)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var batch usecase.BatchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&batch))
	require.Len(t, batch.Uploaded, 1)
	require.Len(t, batch.Failed, 1)
	imageID := batch.Uploaded[0].Image.ID

	// без назначения клиент ничего не видит
	previewPath := fmt.Sprintf("/api/client/images/%d/preview", imageID)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, previewPath, client, nil, "").StatusCode)

	code := api.json(http.MethodPost, "/api/admin/assign-gallery", super, map[string]int64{"client_id": signup.User.ID, "gallery_id": gallery.ID}, nil)
	require.Equal(t, http.StatusCreated, code)

	resp = api.do(http.MethodGet, previewPath, client, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))

	downloadPath := fmt.Sprintf("/api/client/download/%d", imageID)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, downloadPath, client, nil, "").StatusCode)

	var selected map[string]bool
	require.Equal(t, http.StatusOK, api.json(http.MethodPost, fmt.Sprintf("/api/client/selections/%d", imageID), client, nil, &selected))
	assert.True(t, selected["is_selected"])

	var request struct {
		ID int64 `json:"id"`
	}
	require.Equal(t, http.StatusCreated, api.json(http.MethodPost, "/api/client/request-highres", client, map[string][]int64{"image_ids": {imageID}}, &request))
	assert.Equal(t, http.StatusBadRequest, api.json(http.MethodPost, "/api/client/request-highres", client, map[string][]int64{"image_ids": {}}, nil))

	var advanced struct {
		Granted int `json:"granted"`
	}
	path := fmt.Sprintf("/api/admin/highres-requests/%d", request.ID)
	require.Equal(t, http.StatusOK, api.json(http.MethodPatch, path, super, map[string]string{"status": "paid"}, &advanced))
	assert.Equal(t, 1, advanced.Granted)
	assert.Equal(t, http.StatusBadRequest, api.json(http.MethodPatch, path, super, map[string]string{"status": "pending"}, nil))

	resp = api.do(http.MethodGet, downloadPath, client, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, original, got)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")

	assert.Equal(t, http.StatusConflict, api.json(http.MethodPost, fmt.Sprintf("/api/client/selections/%d", imageID), client, nil, nil))

	var downloads []map[string]interface{}
	require.Equal(t, http.StatusOK, api.json(http.MethodGet, "/api/client/downloads", client, nil, &downloads))
	assert.Len(t, downloads, 1)
}
