package ingest

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Page is one page of extracted text. Number is 1-based; Text is empty for
// pages without extractable text (e.g. scanned images).
type Page struct {
	Number int
	Text   string
}

// Document is the immutable result of loading a source file.
type Document struct {
	// Path is the location the document was loaded from (local path or s3:// uri).
	Path string
	// Filename is the base name of Path.
	Filename string
	Pages    []Page
}

// Identity is the stable name chunk ids are derived from: the file name
// without its extension.
func (d *Document) Identity() string {
	return strings.TrimSuffix(d.Filename, filepath.Ext(d.Filename))
}

// Text concatenates page texts in page order without separators, so rune
// offsets into the result map back to pages through PageStarts.
func (d *Document) Text() string {
	var b strings.Builder
	for _, p := range d.Pages {
		b.WriteString(p.Text)
	}
	return b.String()
}

// PageStarts returns the rune offset at which each page begins in Text().
func (d *Document) PageStarts() []int {
	starts := make([]int, len(d.Pages))
	offset := 0
	for i, p := range d.Pages {
		starts[i] = offset
		offset += utf8.RuneCountInString(p.Text)
	}
	return starts
}

// PageAt returns the number of the page containing rune offset off, or 0 if
// off falls outside the document.
func (d *Document) PageAt(off int) int {
	return pageOf(d.Pages, d.PageStarts(), off)
}

// pageOf resolves off against precomputed page starts. Empty pages never
// contain an offset, so the page that actually holds the rune wins.
func pageOf(pages []Page, starts []int, off int) int {
	if off < 0 {
		return 0
	}
	for i := len(pages) - 1; i >= 0; i-- {
		n := utf8.RuneCountInString(pages[i].Text)
		if n > 0 && off >= starts[i] && off < starts[i]+n {
			return pages[i].Number
		}
	}
	return 0
}
