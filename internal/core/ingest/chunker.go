package ingest

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"portfolio-rag/config"

	"github.com/tmc/langchaingo/textsplitter"
)

// Chunk is the unit of retrieval.
type Chunk struct {
	Index int
	// Offset is the rune offset of the chunk's first rune in Document.Text(),
	// or -1 when the recursive splitter could not place the chunk.
	Offset int
	// Page is the page the chunk starts on; 0 when unknown.
	Page     int
	Text     string
	SourceID string
}

// recursiveSeparators are tried in order; the empty separator falls back to
// splitting between runes.
var recursiveSeparators = []string{"\n\n", "\n", ". ", " ", ""}

type ChunkOptions struct {
	Size     int
	Overlap  int
	Strategy string
}

func (o ChunkOptions) validate() error {
	if o.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", o.Size)
	}
	if o.Overlap < 0 || o.Overlap >= o.Size {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", o.Size, o.Overlap)
	}
	return nil
}

// BuildChunks splits the document's concatenated text into overlapping
// windows. With the fixed strategy chunk i starts at rune offset
// i*(Size-Overlap); whitespace-only windows are dropped and indices stay
// contiguous. An empty document yields no chunks and no error.
func BuildChunks(doc *Document, opts ChunkOptions) ([]Chunk, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	text := doc.Text()
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	switch opts.Strategy {
	case "", config.StrategyFixed:
		return fixedChunks(doc, text, opts), nil
	case config.StrategyRecursive:
		return recursiveChunks(doc, text, opts)
	default:
		return nil, fmt.Errorf("unknown chunk strategy %q", opts.Strategy)
	}
}

func fixedChunks(doc *Document, text string, opts ChunkOptions) []Chunk {
	runes := []rune(text)
	starts := doc.PageStarts()
	step := opts.Size - opts.Overlap

	chunks := make([]Chunk, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + opts.Size
		if end > len(runes) {
			end = len(runes)
		}
		window := string(runes[start:end])
		if strings.TrimSpace(window) != "" {
			chunks = append(chunks, Chunk{
				Index:  len(chunks),
				Offset: start,
				Page:   pageOf(doc.Pages, starts, start),
				Text:   window,
			})
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func recursiveChunks(doc *Document, text string, opts ChunkOptions) ([]Chunk, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(opts.Size),
		textsplitter.WithChunkOverlap(opts.Overlap),
		textsplitter.WithSeparators(recursiveSeparators),
		textsplitter.WithLenFunc(utf8.RuneCountInString),
	)
	pieces, err := splitter.SplitText(text)
	if err != nil {
		return nil, err
	}

	starts := doc.PageStarts()
	chunks := make([]Chunk, 0, len(pieces))
	// floor is the first byte a chunk may start at. A chunk starts at most
	// Overlap runes before the end of the previous one, so any occurrence
	// starting at or before limit competes with the first match.
	floor, limit := 0, 0
	for _, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		c := Chunk{Index: len(chunks), Offset: -1, Text: piece}
		at, unique := locatePiece(text, piece, floor, limit)
		switch {
		case at < 0:
		case unique:
			c.Offset = utf8.RuneCountInString(text[:at])
			c.Page = pageOf(doc.Pages, starts, c.Offset)
			end := at + len(piece)
			floor = max(nextRune(text, at), backRunes(text, end, opts.Overlap))
			limit = end
		default:
			// repeated text: the start is unknown, only that it is past at
			floor, limit = nextRune(text, at), len(text)
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// locatePiece finds the first occurrence of piece at or after byte floor. It
// reports unique=false when another occurrence also starts at or before limit.
func locatePiece(text, piece string, floor, limit int) (at int, unique bool) {
	idx := strings.Index(text[floor:], piece)
	if idx < 0 {
		return -1, false
	}
	at = floor + idx
	from := nextRune(text, at)
	if next := strings.Index(text[from:], piece); next >= 0 && from+next <= limit {
		return at, false
	}
	return at, true
}

func nextRune(text string, at int) int {
	_, size := utf8.DecodeRuneInString(text[at:])
	return at + size
}

// backRunes steps n runes back from byte position end.
func backRunes(text string, end, n int) int {
	for ; n > 0 && end > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(text[:end])
		end -= size
	}
	return end
}
