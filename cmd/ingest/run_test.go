package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"portfolio-rag/config"
	svc "portfolio-rag/internal/services/ingest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintSummary_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, svc.Summary{
		RunID:          "r1",
		Document:       "resume.pdf",
		Namespace:      "resume-v1",
		Status:         svc.StatusFailed,
		PagesProcessed: 2,
		ChunksCreated:  6,
		ChunksUpserted: 4,
		ChunksFailed:   2,
		FailedIDs:      []string{"a", "b"},
		Duration:       time.Second,
	}, false))

	out := buf.String()
	assert.Contains(t, out, "run r1: FAILED")
	assert.Contains(t, out, "chunks upserted:  4")
	assert.Contains(t, out, "failed ids:       a, b")
}

func TestPrintSummary_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, svc.Summary{Status: svc.StatusCompleted, FailedIDs: []string{}}, true))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "COMPLETED", got["status"])
	assert.Equal(t, []any{}, got["failed_ids"])
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, exitConfiguration, codeOf(&exitError{code: exitConfiguration, err: errors.New("x")}))
	assert.Equal(t, exitConfiguration, codeOf(fmt.Errorf("%w: missing key", config.ErrConfiguration)))
	assert.Equal(t, exitFailed, codeOf(errors.New("boom")))
	assert.Equal(t, 0, codeOf(nil))
}
