package apperror

import (
	"errors"
	"net/http"

	"portfolio-rag/config"
	"portfolio-rag/pkg/apperror/status"
)

// Ingestion error taxonomy. Stage code wraps these with fmt.Errorf("%w: ...")
// so callers can branch with errors.Is.
var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrDocumentUnreadable = errors.New("document unreadable")
	ErrNoContentExtracted = errors.New("no content extracted")
	ErrEmbeddingProvider  = errors.New("embedding provider error")
	ErrVectorStore        = errors.New("vector store error")
	ErrConfiguration      = config.ErrConfiguration
)

var codes = []struct {
	err        error
	code       status.ErrorCode
	httpStatus int
}{
	{ErrDocumentNotFound, status.DocumentNotFound, http.StatusNotFound},
	{ErrDocumentUnreadable, status.DocumentUnreadable, http.StatusUnprocessableEntity},
	{ErrNoContentExtracted, status.NoContentExtracted, http.StatusUnprocessableEntity},
	{ErrConfiguration, status.Configuration, http.StatusInternalServerError},
	{ErrEmbeddingProvider, status.EmbeddingProvider, http.StatusBadGateway},
	{ErrVectorStore, status.VectorStore, http.StatusBadGateway},
}

// CodeOf maps err to its error code and HTTP status. Unknown errors map to
// ErrorCodeInternal / 500.
func CodeOf(err error) (status.ErrorCode, int) {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code, c.httpStatus
		}
	}
	return status.ErrorCodeInternal, http.StatusInternalServerError
}

// Retryable reports whether err belongs to a collaborator failure that is safe
// to retry because upserts are keyed by content-derived ids.
func Retryable(err error) bool {
	return errors.Is(err, ErrEmbeddingProvider) || errors.Is(err, ErrVectorStore)
}
