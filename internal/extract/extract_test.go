package extract

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

// TestFile_PlainText tests .txt extraction.
func TestFile_PlainText(t *testing.T) {
	path := writeFile(t, "panduan-pmb.txt", "Pendaftaran jalur mandiri dibuka bulan Juni.\n")

	doc, err := File(path)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}

	if doc.Source != "panduan-pmb.txt" {
		t.Errorf("Source: expected panduan-pmb.txt, got %q", doc.Source)
	}
	if !strings.Contains(doc.Text, "jalur mandiri") {
		t.Errorf("Text missing expected content: %q", doc.Text)
	}
	if doc.Pages != 1 {
		t.Errorf("Pages: expected 1, got %d", doc.Pages)
	}
}

// TestFile_UnsupportedFormat tests the error for unknown extensions.
func TestFile_UnsupportedFormat(t *testing.T) {
	path := writeFile(t, "panduan.docx", "isi dokumen")

	_, err := File(path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

// TestFile_Missing tests that a nonexistent path surfaces the read error.
func TestFile_Missing(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "tidak-ada.txt"))
	if err == nil {
		t.Error("Expected error for missing file")
	}
}

// TestFile_Markdown tests that markdown syntax is flattened to plain text.
func TestFile_Markdown(t *testing.T) {
	input := `# Jadwal Pendaftaran

Jalur **mandiri** dibuka *bulan Juni*.

- Gelombang 1: Juni
- Gelombang 2: Juli

` + "```" + `
biaya: 500000
` + "```" + `
`
	path := writeFile(t, "jadwal.md", input)

	doc, err := File(path)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}

	for _, want := range []string{"Jadwal Pendaftaran", "mandiri", "bulan Juni", "Gelombang 1", "biaya: 500000"} {
		if !strings.Contains(doc.Text, want) {
			t.Errorf("Text missing %q:\n%s", want, doc.Text)
		}
	}
	for _, unwanted := range []string{"#", "**", "```"} {
		if strings.Contains(doc.Text, unwanted) {
			t.Errorf("Text still contains markdown syntax %q:\n%s", unwanted, doc.Text)
		}
	}
}

// TestCheckTextLayer tests the scanned-image heuristic boundary.
func TestCheckTextLayer(t *testing.T) {
	if err := checkTextLayer(strings.Repeat("a", MinTextLen), "ok.pdf"); err != nil {
		t.Errorf("Expected nil at the floor, got %v", err)
	}

	err := checkTextLayer(strings.Repeat("a", MinTextLen-1), "scan.pdf")
	if !errors.Is(err, ErrEmptyTextLayer) {
		t.Errorf("Expected ErrEmptyTextLayer below the floor, got %v", err)
	}

	if err := checkTextLayer("", "scan.pdf"); !errors.Is(err, ErrEmptyTextLayer) {
		t.Errorf("Expected ErrEmptyTextLayer for empty text, got %v", err)
	}
}
