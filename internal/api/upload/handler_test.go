package upload

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"portfolio-rag/config"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func setupLocal(t *testing.T) *fiber.App {
	t.Helper()
	prevDir, prevBucket := config.Cfg.Ingest.StorageDir, config.Cfg.S3.Bucket
	config.Cfg.Ingest.StorageDir = t.TempDir()
	config.Cfg.S3.Bucket = ""
	t.Cleanup(func() {
		config.Cfg.Ingest.StorageDir = prevDir
		config.Cfg.S3.Bucket = prevBucket
	})
	app := fiber.New()
	RegisterRoutes(app)
	return app
}

func TestHandleUpload_StoresLocallyUnderHash(t *testing.T) {
	app := setupLocal(t)
	body, ct := multipartBody(t, "Jane Doe resume.pdf", []byte("%PDF-1.4 fake"))
	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", ct)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	var out struct {
		Data uploadResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Len(t, out.Data.SHA256, 64)
	assert.Equal(t, "Jane_Doe_resume.pdf", filepath.Base(out.Data.Path))
	assert.Equal(t, out.Data.SHA256, filepath.Base(filepath.Dir(out.Data.Path)))

	stored, err := os.ReadFile(out.Data.Path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(stored))
}

func TestHandleUpload_Rejects(t *testing.T) {
	app := setupLocal(t)
	for name, filename := range map[string]string{
		"missing file": "",
		"unsupported":  "resume.exe",
	} {
		t.Run(name, func(t *testing.T) {
			body, ct := multipartBody(t, filename, []byte("data"))
			req := httptest.NewRequest("POST", "/upload", body)
			req.Header.Set("Content-Type", ct)
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "resume.pdf", safeName("../../resume.pdf"))
	assert.Equal(t, "my_cv.md", safeName("my cv.md"))
	assert.Equal(t, "document.pdf", safeName(".."))
}
