package docload

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRead_PlainText(t *testing.T) {
	t.Parallel()

	doc, err := Read("lease.txt", []byte("Tenant shall pay rent monthly."))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("want 1 page, got %d", len(doc.Pages))
	}
	if doc.Pages[0].Index != 1 {
		t.Errorf("page index: got %d, want 1", doc.Pages[0].Index)
	}
	if doc.Pages[0].Text != "Tenant shall pay rent monthly." {
		t.Errorf("unexpected page text: %q", doc.Pages[0].Text)
	}
	if doc.Source != "lease.txt" {
		t.Errorf("source: got %q", doc.Source)
	}
}

func TestRead_FormFeedSplitsPages(t *testing.T) {
	t.Parallel()

	doc, err := Read("c.txt", []byte("page one\fpage two\fpage three"))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(doc.Pages) != 3 {
		t.Fatalf("want 3 pages, got %d", len(doc.Pages))
	}
	for i, want := range []string{"page one", "page two", "page three"} {
		if doc.Pages[i].Text != want {
			t.Errorf("page %d: got %q, want %q", i+1, doc.Pages[i].Text, want)
		}
		if doc.Pages[i].Index != i+1 {
			t.Errorf("page %d index: got %d", i+1, doc.Pages[i].Index)
		}
	}
}

func TestRead_StableContentKey(t *testing.T) {
	t.Parallel()

	a, err := Read("a.txt", []byte("same bytes"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Read("b.txt", []byte("same bytes"))
	if err != nil {
		t.Fatal(err)
	}
	if a.Key != b.Key {
		t.Errorf("identical bytes must share a key: %q vs %q", a.Key, b.Key)
	}

	c, err := Read("a.txt", []byte("different bytes"))
	if err != nil {
		t.Fatal(err)
	}
	if a.Key == c.Key {
		t.Error("different bytes must not share a key")
	}
}

func TestRead_EmptyFile(t *testing.T) {
	t.Parallel()

	_, err := Read("empty.txt", nil)
	if !errors.Is(err, ErrUnreadable) {
		t.Errorf("want ErrUnreadable, got %v", err)
	}
}

func TestRead_BlankTextIsNoText(t *testing.T) {
	t.Parallel()

	_, err := Read("blank.txt", []byte("   \n\t \f   \n"))
	if !errors.Is(err, ErrNoText) {
		t.Errorf("want ErrNoText, got %v", err)
	}
}

func TestRead_CorruptPDF(t *testing.T) {
	t.Parallel()

	// Valid magic header, garbage body — the parser must fail cleanly.
	_, err := Read("broken.pdf", []byte("%PDF-1.7\nnot really a pdf"))
	if !errors.Is(err, ErrUnreadable) {
		t.Errorf("want ErrUnreadable, got %v", err)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "nope.pdf"))
	if !errors.Is(err, ErrUnreadable) {
		t.Errorf("want ErrUnreadable, got %v", err)
	}
}

func TestOpen_TextFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "agreement.txt")
	if err := os.WriteFile(path, []byte("Landlord shall maintain the premises."), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if doc.Source != "agreement.txt" {
		t.Errorf("source: got %q, want base name", doc.Source)
	}
	if !strings.Contains(doc.Text(), "Landlord shall maintain") {
		t.Errorf("full text missing content: %q", doc.Text())
	}
}

func TestDocument_TextJoinsPagesWithBlankLine(t *testing.T) {
	t.Parallel()

	doc := &Document{Pages: []Page{
		{Index: 1, Text: "first"},
		{Index: 2, Text: "second"},
	}}
	if got := doc.Text(); got != "first\n\nsecond" {
		t.Errorf("Text() = %q", got)
	}
}
