package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmorozov/droplink/internal/middleware"
	"github.com/vmorozov/droplink/internal/services"
	"github.com/vmorozov/droplink/internal/storage"
	"github.com/vmorozov/droplink/internal/store"
)

const testSecret = "test-secret"

func newTestApp(t *testing.T) (*fiber.App, *storage.MemoryStore) {
	t.Helper()

	links := store.NewMemoryLinks()
	users := store.NewMemoryUsers()
	blobs := storage.NewMemoryStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	linkService := services.NewLinkService(links, blobs, 24*time.Hour, log)
	authService := services.NewAuthService(users, testSecret)

	authHandler := NewAuthHandler(authService)
	linkHandler := NewLinkHandler(linkService, "http://localhost:8080")
	transferHandler := NewTransferHandler(linkService, blobs)

	app := fiber.New()
	api := app.Group("/api")
	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)

	authRequired := middleware.Auth(testSecret)
	api.Post("/upload-links", authRequired, linkHandler.Create)
	api.Get("/upload-links", authRequired, linkHandler.List)
	api.Get("/upload-links/:link_id/status", linkHandler.Status)
	api.Post("/upload/:link_id", transferHandler.Upload)
	api.Get("/download/:link_id", transferHandler.Download)
	api.Get("/download/:link_id/info", transferHandler.Info)

	return app, blobs
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, payload any) (*http.Response, map[string]any) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	if len(raw) > 0 && json.Valid(raw) {
		if raw[0] == '{' {
			require.NoError(t, json.Unmarshal(raw, &decoded))
		}
	}
	return resp, decoded
}

func uploadFile(t *testing.T, app *fiber.App, linkID, filename, content string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload/"+linkID, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func registerAndLogin(t *testing.T, app *fiber.App) string {
	t.Helper()

	creds := map[string]string{"email": "owner@example.com", "password": "password123"}
	resp, _ := doJSON(t, app, http.MethodPost, "/api/auth/register", "", creds)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodPost, "/api/auth/login", "", creds)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestTransferFlow(t *testing.T) {
	app, blobs := newTestApp(t)
	token := registerAndLogin(t, app)

	// Link creation requires auth.
	resp, _ := doJSON(t, app, http.MethodPost, "/api/upload-links", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodPost, "/api/upload-links", token, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	linkID, _ := body["id"].(string)
	require.Len(t, linkID, 32)
	assert.Equal(t, "waiting_for_upload", body["status"])
	assert.Equal(t, "http://localhost:8080/api/upload/"+linkID, body["upload_url"])

	// Status is public.
	resp, body = doJSON(t, app, http.MethodGet, "/api/upload-links/"+linkID+"/status", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "waiting_for_upload", body["status"])

	// Nothing to download or preview yet.
	resp, _ = doJSON(t, app, http.MethodGet, "/api/download/"+linkID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = doJSON(t, app, http.MethodGet, "/api/download/"+linkID+"/info", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Upload, once.
	resp = uploadFile(t, app, linkID, "report.txt", "file contents")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = uploadFile(t, app, linkID, "other.txt", "something else")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Metadata preview does not consume the download.
	resp, body = doJSON(t, app, http.MethodGet, "/api/download/"+linkID+"/info", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "uploaded", body["status"])
	assert.Equal(t, "report.txt", body["filename"])
	assert.Equal(t, float64(len("file contents")), body["file_size"])

	// Download, once.
	req := httptest.NewRequest(http.MethodGet, "/api/download/"+linkID, nil)
	dl, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, dl.StatusCode)
	assert.Contains(t, dl.Header.Get("Content-Disposition"), "report.txt")
	data, err := io.ReadAll(dl.Body)
	require.NoError(t, err)
	dl.Body.Close()
	assert.Equal(t, "file contents", string(data))
	assert.Zero(t, blobs.Len(), "blob must be deleted once the download has streamed")

	resp, _ = doJSON(t, app, http.MethodGet, "/api/download/"+linkID, "", nil)
	assert.Equal(t, http.StatusGone, resp.StatusCode)

	// The owner's list shows the consumed link.
	req = httptest.NewRequest(http.MethodGet, "/api/upload-links", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	require.Len(t, list, 1)
	assert.Equal(t, "downloaded", list[0]["status"])
}

func TestUnknownLink(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := doJSON(t, app, http.MethodGet, "/api/upload-links/doesnotexist/status", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = uploadFile(t, app, "doesnotexist", "a.txt", "x")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp, _ = doJSON(t, app, http.MethodGet, "/api/download/doesnotexist", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/download/doesnotexist/info", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
