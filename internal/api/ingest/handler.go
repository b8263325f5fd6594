package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"portfolio-rag/config"
	svc "portfolio-rag/internal/services/ingest"
	"portfolio-rag/pkg/apperror"
	"portfolio-rag/pkg/apperror/status"
	s3client "portfolio-rag/pkg/s3"

	"github.com/gofiber/fiber/v3"
)

// Runner runs one ingestion. *svc.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, path, namespace string) (svc.Summary, error)
}

type ingestRequest struct {
	Path      string `json:"path"`
	Namespace string `json:"namespace"`
}

type Handler struct {
	runner Runner
}

func NewHandler(runner Runner) *Handler {
	return &Handler{runner: runner}
}

// HandleIngest runs the ingestion synchronously and answers with the run
// summary. A run that found no text is answered with 202.
func (h *Handler) HandleIngest(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	var req ingestRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return apperror.BadRequest(config.ModuleIngest, c, status.InvalidRequestBody, err.Error())
	}
	req.Path = strings.TrimSpace(req.Path)
	if req.Path == "" {
		return apperror.BadRequest(config.ModuleIngest, c, status.MissingParams, "path is required")
	}
	if err := allowedPath(req.Path); err != nil {
		return apperror.BadRequest(config.ModuleIngest, c, status.InvalidRequestBody, err.Error())
	}

	summary, err := h.runner.Run(c.Context(), req.Path, strings.TrimSpace(req.Namespace))
	switch {
	case err == nil:
		return apperror.Success(config.ModuleIngest, c, apperror.FiberSuccessMessage{
			Code:       status.OK,
			Message:    "ingest completed",
			TrackingID: trackingID,
			Data:       summary,
		})
	case errors.Is(err, apperror.ErrNoContentExtracted):
		return apperror.Success(config.ModuleIngest, c, apperror.FiberSuccessMessage{
			Code:       status.Accepted,
			Message:    "no content extracted",
			TrackingID: trackingID,
			Data:       summary,
		})
	default:
		return apperror.Fail(config.ModuleIngest, c, err, summary)
	}
}

// allowedPath accepts s3:// uris and files under the configured storage dir,
// so the endpoint cannot be used to read arbitrary local files.
func allowedPath(path string) error {
	if s3client.IsURI(path) {
		return nil
	}
	base, err := filepath.Abs(config.Cfg.Ingest.StorageDir)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path must be an s3 uri or inside %s", config.Cfg.Ingest.StorageDir)
	}
	return nil
}
