package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"portfolio-rag/config"
	"portfolio-rag/pkg/apperror"
	"portfolio-rag/pkg/logger"

	"github.com/ledongthuc/pdf"
)

// pageBreak separates pages in plain text documents.
const pageBreak = "\f"

// LoadDocument reads the document at path (local file or s3:// uri) into
// ordered pages. It fails with ErrDocumentNotFound or ErrDocumentUnreadable.
func LoadDocument(ctx context.Context, path string) (*Document, error) {
	local, cleanup, err := FetchToLocalTemp(ctx, path)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	info, err := os.Stat(local)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apperror.ErrDocumentNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", apperror.ErrDocumentUnreadable, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", apperror.ErrDocumentUnreadable, path)
	}

	var texts []string
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		texts, err = readPDFPages(ctx, local)
	case ".txt", ".md":
		texts, err = readTextPages(local)
	default:
		err = fmt.Errorf("%w: unsupported file type %q", apperror.ErrDocumentUnreadable, ext)
	}
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Path:     path,
		Filename: filepath.Base(path),
		Pages:    make([]Page, len(texts)),
	}
	for i, t := range texts {
		doc.Pages[i] = Page{Number: i + 1, Text: sanitizeUTF8Printable(t)}
	}
	logger.For(config.ModuleLoader).WithFields(map[string]interface{}{
		"path":  path,
		"pages": len(doc.Pages),
	}).Info("document loaded")
	return doc, nil
}

// readPDFPages extracts plain text page by page. ledongthuc/pdf panics on
// some malformed inputs; those surface as ErrDocumentUnreadable.
func readPDFPages(ctx context.Context, path string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %s: %v", apperror.ErrDocumentUnreadable, path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperror.ErrDocumentUnreadable, path, err)
	}
	defer f.Close()

	total := r.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			// keep numbering stable; the page just contributes no text
			logger.For(config.ModuleLoader).WithFields(map[string]interface{}{
				"path":  path,
				"page":  i,
				"error": err.Error(),
			}).Warn("page text extraction failed")
			text = ""
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func readTextPages(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperror.ErrDocumentUnreadable, path, err)
	}
	return strings.Split(string(raw), pageBreak), nil
}

// sanitizeUTF8Printable removes BOM, replacement and non-printable runes,
// keeping common whitespace.
func sanitizeUTF8Printable(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\uFEFF', r == unicode.ReplacementChar:
			continue
		case r == '\n' || r == '\t' || r == '\r':
		case !unicode.IsPrint(r):
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
