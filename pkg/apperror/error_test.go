package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"portfolio-rag/pkg/apperror/status"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		code       status.ErrorCode
		httpStatus int
	}{
		{"not found", fmt.Errorf("%w: resume.pdf", ErrDocumentNotFound), status.DocumentNotFound, http.StatusNotFound},
		{"unreadable", fmt.Errorf("load: %w", ErrDocumentUnreadable), status.DocumentUnreadable, http.StatusUnprocessableEntity},
		{"no content", ErrNoContentExtracted, status.NoContentExtracted, http.StatusUnprocessableEntity},
		{"configuration", fmt.Errorf("%w: missing key", ErrConfiguration), status.Configuration, http.StatusInternalServerError},
		{"embedding", errors.Join(fmt.Errorf("%w: batch 2", ErrEmbeddingProvider)), status.EmbeddingProvider, http.StatusBadGateway},
		{"store", fmt.Errorf("%w: timeout", ErrVectorStore), status.VectorStore, http.StatusBadGateway},
		{"unknown", errors.New("boom"), status.ErrorCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, httpStatus := CodeOf(tt.err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.httpStatus, httpStatus)
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(fmt.Errorf("%w: 429", ErrEmbeddingProvider)))
	assert.True(t, Retryable(fmt.Errorf("%w: unavailable", ErrVectorStore)))
	assert.False(t, Retryable(ErrDocumentUnreadable))
	assert.False(t, Retryable(errors.New("boom")))
}
