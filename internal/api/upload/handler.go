package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"portfolio-rag/config"
	"portfolio-rag/pkg/apperror"
	"portfolio-rag/pkg/apperror/status"
	s3client "portfolio-rag/pkg/s3"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gofiber/fiber/v3"
)

var allowedExt = map[string]string{
	".pdf": "application/pdf",
	".txt": "text/plain",
	".md":  "text/markdown",
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type uploadResponse struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// HandleUpload stores the multipart "file" under <sha256>/<name>. The
// original base name is kept because it is the document identity chunk ids
// are derived from; the hash directory keeps versions apart.
func HandleUpload(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	fh, err := c.FormFile("file")
	if err != nil || fh == nil {
		return apperror.BadRequest(config.ModuleUpload, c, status.MissingParams, "file is required")
	}
	if fh.Size == 0 {
		return apperror.BadRequest(config.ModuleUpload, c, status.MissingParams, "empty file")
	}
	name := safeName(fh.Filename)
	contentType, ok := allowedExt[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return apperror.BadRequest(config.ModuleUpload, c, status.InvalidRequestBody, "only .pdf, .txt and .md files are accepted")
	}

	file, err := fh.Open()
	if err != nil {
		return apperror.BadRequest(config.ModuleUpload, c, status.InvalidRequestBody, "cannot open file")
	}
	defer file.Close()

	// Buffer to a temp file while hashing; the hash names the destination.
	tmp, shaHex, err := spool(file)
	if err != nil {
		return apperror.InternalError(config.ModuleUpload, c, err)
	}
	defer func() {
		tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	var storedPath string
	if strings.TrimSpace(config.Cfg.S3.Bucket) != "" {
		storedPath, err = storeToS3(c.Context(), tmp, shaHex, name, contentType)
	} else {
		storedPath, err = storeToLocal(tmp, shaHex, name)
	}
	if err != nil {
		return apperror.InternalError(config.ModuleUpload, c, err)
	}

	return apperror.Success(config.ModuleUpload, c, apperror.FiberSuccessMessage{
		Code:       status.OK,
		Message:    "File uploaded successfully",
		TrackingID: trackingID,
		Data:       uploadResponse{Path: storedPath, SHA256: shaHex, Size: fh.Size},
	})
}

func safeName(filename string) string {
	name := unsafeName.ReplaceAllString(filepath.Base(filename), "_")
	name = strings.Trim(name, ".")
	if name == "" {
		return "document.pdf"
	}
	return name
}

func spool(r io.Reader) (*os.File, string, error) {
	tmp, err := os.CreateTemp("", "upload-*.tmp")
	if err != nil {
		return nil, "", fmt.Errorf("tempfile: %w", err)
	}
	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), r); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, "", fmt.Errorf("stream copy: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, "", fmt.Errorf("seek: %w", err)
	}
	return tmp, hex.EncodeToString(hasher.Sum(nil)), nil
}

func storeToLocal(r io.Reader, shaHex, name string) (string, error) {
	dir := filepath.Join(config.Cfg.Ingest.StorageDir, shaHex)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create storage dir: %w", err)
	}
	finalPath := filepath.Join(dir, name)
	out, err := os.Create(finalPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return finalPath, nil
}

func storeToS3(ctx context.Context, body io.Reader, shaHex, name, contentType string) (string, error) {
	client, err := s3client.GetClient(ctx)
	if err != nil {
		return "", fmt.Errorf("s3 client: %w", err)
	}

	bucket := config.Cfg.S3.Bucket
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		_, crtErr := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
		if crtErr != nil {
			var owned *s3types.BucketAlreadyOwnedByYou
			if !errors.As(crtErr, &owned) {
				return "", fmt.Errorf("create bucket: %w", crtErr)
			}
		}
	}

	key := fmt.Sprintf("documents/%s/%s", shaHex, name)
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return s3client.URI(bucket, key), nil
}
