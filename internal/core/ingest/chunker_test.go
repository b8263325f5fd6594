package ingest

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"portfolio-rag/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pattern returns n non-whitespace runes.
func pattern(n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(alphabet[i%len(alphabet)])
	}
	return b.String()
}

func docOf(pages ...string) *Document {
	d := &Document{Path: "/tmp/resume.pdf", Filename: "resume.pdf"}
	for i, p := range pages {
		d.Pages = append(d.Pages, Page{Number: i + 1, Text: p})
	}
	return d
}

var fixed600 = ChunkOptions{Size: 600, Overlap: 100, Strategy: config.StrategyFixed}

func TestBuildChunks_FixedWindowOffsets(t *testing.T) {
	text := pattern(1200)
	doc := docOf(text[:700], text[700:])

	chunks, err := BuildChunks(doc, fixed600)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	wantOffsets := []int{0, 500, 1000}
	wantLens := []int{600, 600, 200}
	wantPages := []int{1, 1, 2}
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, wantOffsets[i], c.Offset)
		assert.Equal(t, wantLens[i], utf8.RuneCountInString(c.Text))
		assert.Equal(t, wantPages[i], c.Page)
		assert.Equal(t, text[c.Offset:c.Offset+len(c.Text)], c.Text)
	}
}

func TestBuildChunks_CoversWholeText(t *testing.T) {
	text := pattern(2345)
	doc := docOf(text[:1000], "", text[1000:])

	chunks, err := BuildChunks(doc, fixed600)
	require.NoError(t, err)

	var rebuilt strings.Builder
	for i, c := range chunks {
		r := []rune(c.Text)
		if i > 0 {
			r = r[fixed600.Overlap:]
		}
		rebuilt.WriteString(string(r))
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestBuildChunks_ShortDocumentIsOneChunk(t *testing.T) {
	chunks, err := BuildChunks(docOf("Jane Doe, Go engineer."), fixed600)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Jane Doe, Go engineer.", chunks[0].Text)
	assert.Equal(t, 1, chunks[0].Page)
}

func TestBuildChunks_EmptyDocument(t *testing.T) {
	for name, doc := range map[string]*Document{
		"no pages":         docOf(),
		"blank pages":      docOf("", ""),
		"whitespace pages": docOf("  \n", "\t"),
	} {
		t.Run(name, func(t *testing.T) {
			chunks, err := BuildChunks(doc, fixed600)
			require.NoError(t, err)
			assert.Empty(t, chunks)
		})
	}
}

func TestBuildChunks_SkipsBlankWindowsAndKeepsIndicesContiguous(t *testing.T) {
	opts := ChunkOptions{Size: 10, Overlap: 0}
	doc := docOf(pattern(10) + strings.Repeat(" ", 10) + pattern(5))

	chunks, err := BuildChunks(doc, opts)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 1, chunks[1].Index)
	assert.Equal(t, 20, chunks[1].Offset)
}

func TestBuildChunks_Deterministic(t *testing.T) {
	doc := docOf(pattern(900), pattern(400))
	a, err := BuildChunks(doc, fixed600)
	require.NoError(t, err)
	b, err := BuildChunks(doc, fixed600)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuildChunks_MultibyteRunes(t *testing.T) {
	text := strings.Repeat("é", 15)
	chunks, err := BuildChunks(docOf(text), ChunkOptions{Size: 10, Overlap: 2})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("é", 10), chunks[0].Text)
	assert.Equal(t, 8, chunks[1].Offset)
	assert.Equal(t, strings.Repeat("é", 7), chunks[1].Text)
}

func TestBuildChunks_InvalidOptions(t *testing.T) {
	for _, opts := range []ChunkOptions{
		{Size: 0},
		{Size: 100, Overlap: 100},
		{Size: 100, Overlap: -1},
		{Size: 100, Overlap: 10, Strategy: "sentences"},
	} {
		_, err := BuildChunks(docOf("text"), opts)
		assert.Error(t, err, "%+v", opts)
	}
}

func TestBuildChunks_Recursive(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, "Role %02d: built ingestion pipelines in Go and shipped search.\n\n", i)
	}
	text := b.String()
	doc := docOf(text[:len(text)/2], text[len(text)/2:])

	chunks, err := BuildChunks(doc, ChunkOptions{Size: 200, Overlap: 40, Strategy: config.StrategyRecursive})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), 200)
		assert.NotEqual(t, -1, c.Offset)
		assert.Contains(t, []int{1, 2}, c.Page)
	}
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 2, chunks[len(chunks)-1].Page)
}

func TestBuildChunks_RecursiveRepeatedSentences(t *testing.T) {
	text := strings.Repeat("Shipped the ingestion service on time. Mentored two engineers. ", 12)
	opts := ChunkOptions{Size: 300, Overlap: 60, Strategy: config.StrategyRecursive}

	chunks, err := BuildChunks(docOf(text), opts)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, 0, chunks[0].Offset)

	runes := []rune(text)
	prevEnd := -1
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		if c.Offset == -1 {
			assert.Zero(t, c.Page)
			continue
		}
		n := utf8.RuneCountInString(c.Text)
		require.LessOrEqual(t, c.Offset+n, len(runes))
		assert.Equal(t, c.Text, string(runes[c.Offset:c.Offset+n]), "chunk %d", i)
		if prevEnd >= 0 {
			// never an earlier copy of the same sentences
			assert.GreaterOrEqual(t, c.Offset, prevEnd-opts.Overlap, "chunk %d", i)
		}
		assert.Equal(t, 1, c.Page)
		prevEnd = c.Offset + n
	}
}

func TestLocatePiece(t *testing.T) {
	text := "xyz xyz xyz"

	at, unique := locatePiece(text, "xyz", 1, 0)
	assert.Equal(t, 4, at)
	assert.True(t, unique)

	at, unique = locatePiece(text, "xyz", 1, 5)
	assert.Equal(t, 4, at)
	assert.True(t, unique)

	at, unique = locatePiece(text, "xyz", 1, 8)
	assert.Equal(t, 4, at)
	assert.False(t, unique)

	at, _ = locatePiece(text, "abc", 0, 0)
	assert.Equal(t, -1, at)
}

func TestBackRunes(t *testing.T) {
	assert.Equal(t, 3, backRunes("héllo", 6, 3))
	assert.Equal(t, 1, backRunes("héllo", 6, 4))
	assert.Equal(t, 0, backRunes("héllo", 6, 10))
}
