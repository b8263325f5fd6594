package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf8"
)

// sourceIDBytes is the digest length kept for ids: 128 bits.
const sourceIDBytes = 16

// fieldSep keeps hash inputs unambiguous ("ab"+"c" vs "a"+"bc").
const fieldSep = "\x1f"

// Identity is everything a chunk id is derived from. Any field whose change
// must trigger re-indexing (e.g. a future metadata version) has to be added
// here and written in SourceID, otherwise stale vectors are kept silently.
type Identity struct {
	Document string
	Index    int
	Text     string
}

// SourceID returns the hex-encoded truncated sha256 of the identity fields.
// The text is normalized first so incidental whitespace does not change ids.
func (id Identity) SourceID() string {
	h := sha256.New()
	h.Write([]byte(id.Document))
	h.Write([]byte(fieldSep))
	h.Write([]byte(strconv.Itoa(id.Index)))
	h.Write([]byte(fieldSep))
	h.Write([]byte(NormalizeText(id.Text)))
	return hex.EncodeToString(h.Sum(nil)[:sourceIDBytes])
}

// NormalizeText trims and collapses every whitespace run to a single space.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// AssignSourceIDs sets SourceID on every chunk in place.
func AssignSourceIDs(document string, chunks []Chunk) {
	for i := range chunks {
		chunks[i].SourceID = Identity{
			Document: document,
			Index:    chunks[i].Index,
			Text:     chunks[i].Text,
		}.SourceID()
	}
}

// Preview returns the first n runes of s, suffixed with "..." when truncated.
func Preview(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
