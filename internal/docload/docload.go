// Package docload extracts page-ordered plain text from uploaded contract
// documents. PDF extraction is text-layer only — there is no OCR, so a
// scanned-image contract surfaces [ErrNoText] instead of silently producing
// an empty index downstream.
package docload

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnreadable marks a document that could not be opened or parsed.
	ErrUnreadable = errors.New("docload: document is unreadable")

	// ErrNoText marks a document with zero extractable text (e.g. a
	// scanned-image PDF with no text layer).
	ErrNoText = errors.New("docload: no extractable text")
)

// pdfMagic is the header every PDF file starts with.
const pdfMagic = "%PDF-"

// Page holds the text content of a single document page.
type Page struct {
	// Index is the 1-based page number.
	Index int
	// Text is the extracted plain text of the page.
	Text string
}

// Document is a loaded contract: its pages in order plus a stable content
// key. The key is the hex sha256 of the raw bytes, so re-uploading identical
// bytes yields the same key and a modified file cannot collide with a stale
// cache entry.
type Document struct {
	// Key identifies the document content (sha256 hex of the raw bytes).
	Key string
	// Source is the file path or upload filename, for display and logging.
	Source string
	// Pages holds the extracted pages in document order.
	Pages []Page
}

// Text returns the full document text: pages joined with a blank line.
func (d *Document) Text() string {
	parts := make([]string, len(d.Pages))
	for i, p := range d.Pages {
		parts[i] = p.Text
	}
	return strings.Join(parts, "\n\n")
}

// Open loads the document at path.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return Read(filepath.Base(path), data)
}

// Read loads a document from raw bytes. PDFs are detected by their magic
// header; anything else is treated as plain UTF-8 text with form feeds as
// page breaks.
func Read(name string, data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnreadable)
	}

	sum := sha256.Sum256(data)
	doc := &Document{
		Key:    hex.EncodeToString(sum[:]),
		Source: name,
	}

	var err error
	if bytes.HasPrefix(data, []byte(pdfMagic)) {
		doc.Pages, err = pdfPages(data)
	} else {
		doc.Pages, err = textPages(data)
	}
	if err != nil {
		return nil, err
	}

	if !hasText(doc.Pages) {
		return nil, ErrNoText
	}
	return doc, nil
}

// pdfPages extracts the text layer of each PDF page in order. Pages whose
// extraction fails are kept as empty — a single bad page must not sink the
// whole contract.
func pdfPages(data []byte) ([]Page, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	total := r.NumPage()
	if total == 0 {
		return nil, ErrNoText
	}

	pages := make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, Page{Index: i})
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			pages = append(pages, Page{Index: i})
			continue
		}
		pages = append(pages, Page{Index: i, Text: strings.TrimSpace(text)})
	}
	return pages, nil
}

// textPages splits plain text on form feeds so pre-paginated text files keep
// their page boundaries. A file without form feeds is one page.
func textPages(data []byte) ([]Page, error) {
	parts := strings.Split(string(data), "\f")
	pages := make([]Page, 0, len(parts))
	for i, part := range parts {
		pages = append(pages, Page{Index: i + 1, Text: strings.TrimSpace(part)})
	}
	return pages, nil
}

// hasText reports whether any page carries non-blank text.
func hasText(pages []Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}
