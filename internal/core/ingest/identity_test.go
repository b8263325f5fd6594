package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunkIDs(t *testing.T, doc *Document) []string {
	t.Helper()
	chunks, err := BuildChunks(doc, fixed600)
	require.NoError(t, err)
	AssignSourceIDs(doc.Identity(), chunks)
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.SourceID
	}
	return ids
}

func TestSourceID_StableAcrossRuns(t *testing.T) {
	doc := docOf(pattern(1500))
	first := chunkIDs(t, doc)
	second := chunkIDs(t, docOf(pattern(1500)))
	assert.Equal(t, first, second)
	for _, id := range first {
		assert.Len(t, id, 32)
	}
}

func TestSourceID_IgnoresWhitespaceNoise(t *testing.T) {
	a := Identity{Document: "resume", Index: 0, Text: "Go  engineer\n\nBerlin"}.SourceID()
	b := Identity{Document: "resume", Index: 0, Text: "  Go engineer Berlin\t"}.SourceID()
	assert.Equal(t, a, b)
}

func TestSourceID_DistinguishesFields(t *testing.T) {
	base := Identity{Document: "resume", Index: 0, Text: "Go engineer"}
	ids := map[string]bool{base.SourceID(): true}
	for _, id := range []Identity{
		{Document: "resume-2024", Index: 0, Text: "Go engineer"},
		{Document: "resume", Index: 1, Text: "Go engineer"},
		{Document: "resume", Index: 0, Text: "Go engineers"},
		// field boundaries are not ambiguous
		{Document: "resume0", Index: 0, Text: "Go engineer"},
	} {
		ids[id.SourceID()] = true
	}
	assert.Len(t, ids, 5)
}

func TestSourceID_ParagraphEditOnlyChangesOverlappingChunks(t *testing.T) {
	text := []rune(pattern(1200))
	before := chunkIDs(t, docOf(string(text)))

	// same-length edit inside [700, 710): covered only by the chunk at offset 500
	for i := 700; i < 710; i++ {
		text[i] = 'X'
	}
	after := chunkIDs(t, docOf(string(text)))

	require.Len(t, after, len(before))
	assert.Equal(t, before[0], after[0])
	assert.NotEqual(t, before[1], after[1])
	assert.Equal(t, before[2], after[2])
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeText("  a\n\tb   c \r\n"))
	assert.Equal(t, "", NormalizeText(" \n "))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short", 10))
	assert.Equal(t, "abc...", Preview("abcdef", 3))
	assert.Equal(t, "ééé...", Preview("éééé", 3))
	assert.Equal(t, "abcdef", Preview("abcdef", 0))
}

func TestDocumentIdentity(t *testing.T) {
	assert.Equal(t, "resume", (&Document{Filename: "resume.pdf"}).Identity())
	assert.Equal(t, "cv.2024", (&Document{Filename: "cv.2024.md"}).Identity())
}

func TestDocumentPageAt(t *testing.T) {
	doc := docOf("abc", "", "de")
	assert.Equal(t, 1, doc.PageAt(0))
	assert.Equal(t, 1, doc.PageAt(2))
	assert.Equal(t, 3, doc.PageAt(3))
	assert.Equal(t, 3, doc.PageAt(4))
	assert.Equal(t, 0, doc.PageAt(5))
	assert.Equal(t, 0, doc.PageAt(-1))
}
