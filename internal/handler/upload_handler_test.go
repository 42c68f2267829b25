package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/rawsence/procheck/internal/config"
	"github.com/rawsence/procheck/internal/filestore"
	"github.com/rawsence/procheck/internal/handler"
	"github.com/rawsence/procheck/internal/model"
	"github.com/rawsence/procheck/internal/pkg/errcode"
	"github.com/rawsence/procheck/internal/pkg/jwt"
	"github.com/rawsence/procheck/internal/preview"
	"github.com/rawsence/procheck/internal/protocol"
	"github.com/rawsence/procheck/internal/repo"
	"github.com/rawsence/procheck/internal/searchindex"
	"github.com/rawsence/procheck/internal/service"
	"github.com/rawsence/procheck/internal/session"
)

const handlerValidReply = `{"title": "Test Protocol", "checklist": [{"step": 1, "text": "Do the first thing", "explanation": "The source describes exactly how to do it.", "citation": 1}], "citations": ["source text"]}`

var jwtSecret = []byte("test-secret")

type staticClient struct{}

func (staticClient) Generate(ctx context.Context, prompt string) (string, error) {
	return handlerValidReply, nil
}

func setupRouter(t *testing.T) (*gin.Engine, *service.UploadService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repo.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE upload_jobs (
		id TEXT NOT NULL, user_id TEXT NOT NULL, status TEXT NOT NULL,
		documents INTEGER NOT NULL DEFAULT 0, chunks INTEGER NOT NULL DEFAULT 0,
		protocols INTEGER NOT NULL DEFAULT 0, error TEXT NOT NULL DEFAULT '',
		ctime INTEGER NOT NULL, mtime INTEGER NOT NULL, PRIMARY KEY (id, user_id))`)
	require.NoError(t, err)

	registry := session.NewRegistry()
	previews := preview.NewStore(filestore.NewLocal(t.TempDir()))
	generator := protocol.NewGenerator(staticClient{}, 5, 2)
	cfg := config.UploadConfig{MaxUploadBytes: 1 << 20, MaxChunks: 5, MaxRetries: 2}
	svc := service.NewUploadService(cfg, t.TempDir(), registry, previews, repo.NewUploadJobRepo(db), generator, searchindex.Noop{})

	router := gin.New()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api, handler.RouterDeps{
		Uploads:   handler.NewUploadHandler(svc, cfg.MaxUploadBytes),
		JWTSecret: jwtSecret,
	})
	return router, svc
}

func authHeader(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.GenerateToken(userID, jwtSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func doRequest(t *testing.T, router *gin.Engine, method, path, auth string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) (int, map[string]interface{}) {
	t.Helper()
	var envelope struct {
		Code int                    `json:"code"`
		Msg  string                 `json:"msg"`
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Code, envelope.Data
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	code, data := decodeEnvelope(t, rec)
	require.Zero(t, code, "unexpected error response: %s", rec.Body.String())
	return data
}

func TestUploadRoutesRequireAuth(t *testing.T) {
	router, _ := setupRouter(t)
	body, contentType := multipartUpload(t, "guide.md", "# Guide")
	rec := doRequest(t, router, http.MethodPost, "/api/v1/uploads", "", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code)
	code, _ := decodeEnvelope(t, rec)
	require.Equal(t, errcode.ErrUnauthorized, code)
}

func TestUploadCreateAndPoll(t *testing.T) {
	router, _ := setupRouter(t)
	auth := authHeader(t, "u1")

	content := "# Guide\n\n" + strings.Repeat("Assess the patient and record the findings before escalation. ", 10)
	body, contentType := multipartUpload(t, "guide.md", content)
	rec := doRequest(t, router, http.MethodPost, "/api/v1/uploads", auth, body, contentType)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	uploadID, _ := data["upload_id"].(string)
	require.NotEmpty(t, uploadID)
	require.Equal(t, "processing", data["status"])

	statusPath := fmt.Sprintf("/api/v1/uploads/%s/status", uploadID)
	require.Eventually(t, func() bool {
		rec := doRequest(t, router, http.MethodGet, statusPath, auth, nil, "")
		if rec.Code != http.StatusOK {
			return false
		}
		return decodeData(t, rec)["status"] == model.PreviewStatusAwaitingApproval
	}, 5*time.Second, 10*time.Millisecond)

	rec = doRequest(t, router, http.MethodGet, fmt.Sprintf("/api/v1/uploads/%s/preview", uploadID), auth, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Test Protocol")

	rec = doRequest(t, router, http.MethodPost, fmt.Sprintf("/api/v1/uploads/%s/approve", uploadID), auth, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadCreateRejectsUnsupportedExtension(t *testing.T) {
	router, _ := setupRouter(t)
	body, contentType := multipartUpload(t, "notes.txt", "plain")
	rec := doRequest(t, router, http.MethodPost, "/api/v1/uploads", authHeader(t, "u1"), body, contentType)
	require.Equal(t, http.StatusOK, rec.Code)
	code, _ := decodeEnvelope(t, rec)
	require.Equal(t, errcode.ErrInvalidFile, code)
}

func TestUploadCancelRoute(t *testing.T) {
	router, _ := setupRouter(t)
	auth := authHeader(t, "u1")
	rec := doRequest(t, router, http.MethodPost, "/api/v1/uploads/ghost/cancel", auth, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	require.Equal(t, "cancelled", data["status"])
	require.Equal(t, false, data["was_running"])
}

func TestUploadStatusIsolatedPerUser(t *testing.T) {
	router, _ := setupRouter(t)
	content := "# Guide\n\n" + strings.Repeat("Assess the patient and record the findings before escalation. ", 10)
	body, contentType := multipartUpload(t, "guide.md", content)
	rec := doRequest(t, router, http.MethodPost, "/api/v1/uploads", authHeader(t, "u1"), body, contentType)
	uploadID, _ := decodeData(t, rec)["upload_id"].(string)
	require.NotEmpty(t, uploadID)

	rec = doRequest(t, router, http.MethodGet, fmt.Sprintf("/api/v1/uploads/%s/status", uploadID), authHeader(t, "u2"), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, model.PreviewStatusNotFound, decodeData(t, rec)["status"])
}
