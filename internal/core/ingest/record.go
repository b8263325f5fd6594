package ingest

import "strconv"

// Metadata travels with every vector so search results are self-describing.
type Metadata struct {
	Source     string `json:"source"`
	Filename   string `json:"filename"`
	ChunkIndex int    `json:"chunk_index"`
	// Page is 0 when the chunk could not be attributed to a page.
	Page    int    `json:"page,omitempty"`
	Text    string `json:"text"`
	Preview string `json:"preview"`
}

// Record is the external representation of a chunk, keyed by its source id.
type Record struct {
	ID       string    `json:"id"`
	Vector   []float32 `json:"vector"`
	Metadata Metadata  `json:"metadata"`
}

// NewRecord builds the upsert record for c. The vector is owned by the
// embedding provider and passed through untouched.
func NewRecord(c Chunk, vector []float32, source, filename string, previewChars int) Record {
	return Record{
		ID:     c.SourceID,
		Vector: vector,
		Metadata: Metadata{
			Source:     source,
			Filename:   filename,
			ChunkIndex: c.Index,
			Page:       c.Page,
			Text:       c.Text,
			Preview:    Preview(c.Text, previewChars),
		},
	}
}

// Map flattens metadata for stores that only accept string values. The text
// itself is stored as the document content, not as metadata.
func (m Metadata) Map() map[string]string {
	out := map[string]string{
		"source":      m.Source,
		"filename":    m.Filename,
		"chunk_index": strconv.Itoa(m.ChunkIndex),
		"preview":     m.Preview,
	}
	if m.Page > 0 {
		out["page"] = strconv.Itoa(m.Page)
	}
	return out
}

// MetadataFromMap is the inverse of Map; text is supplied separately.
func MetadataFromMap(m map[string]string, text string) Metadata {
	idx, _ := strconv.Atoi(m["chunk_index"])
	page, _ := strconv.Atoi(m["page"])
	return Metadata{
		Source:     m["source"],
		Filename:   m["filename"],
		ChunkIndex: idx,
		Page:       page,
		Text:       text,
		Preview:    m["preview"],
	}
}
