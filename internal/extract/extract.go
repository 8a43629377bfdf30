// Package extract pulls plain text out of source documents before chunking.
// Supported kinds: PDF (text layer), plain text, and markdown.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dslipak/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// MinTextLen is the plausibility floor for PDF extraction. A PDF yielding
// less than this is almost certainly a scanned image with no text layer.
const MinTextLen = 100

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrEmptyTextLayer    = errors.New("document has no extractable text layer")
)

// Document is the transient result of extraction. It exists only for the
// duration of an ingestion run and is never persisted as its own record.
type Document struct {
	Source string // base file name, the grouping key for the document's chunks
	Text   string
	Pages  int
}

// File extracts the text of the document at path, dispatching on extension.
// Returns ErrUnsupportedFormat for unknown kinds and ErrEmptyTextLayer for
// PDFs below the plausibility floor (the caller must supply a .txt instead).
func File(path string) (*Document, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		return pdfFile(path)
	case ".txt":
		return textFile(path)
	case ".md", ".markdown":
		return markdownFile(path)
	default:
		return nil, fmt.Errorf("%w: %q (gunakan .pdf, .txt, atau .md)", ErrUnsupportedFormat, ext)
	}
}

func textFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &Document{
		Source: filepath.Base(path),
		Text:   string(data),
		Pages:  1,
	}, nil
}

func pdfFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}

	var buf strings.Builder
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single broken page should not sink the whole document.
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}

	text := strings.TrimSpace(buf.String())
	if err := checkTextLayer(text, filepath.Base(path)); err != nil {
		return nil, err
	}

	return &Document{
		Source: filepath.Base(path),
		Text:   text,
		Pages:  numPages,
	}, nil
}

// checkTextLayer applies the scanned-image heuristic: a PDF whose text layer
// comes out under MinTextLen characters has nothing retrievable in it. The
// fix is on the operator's side (OCR the scan, re-ingest as .txt).
func checkTextLayer(text, name string) error {
	if len(text) >= MinTextLen {
		return nil
	}
	return fmt.Errorf(
		"%w: hanya %d karakter terekstrak dari %s — kemungkinan hasil scan; "+
			"konversi dengan OCR lalu ingest ulang sebagai .txt",
		ErrEmptyTextLayer, len(text), name)
}

func markdownFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &Document{
		Source: filepath.Base(path),
		Text:   markdownToPlain(data),
		Pages:  1,
	}, nil
}

// markdownToPlain flattens markdown to plain text by walking the goldmark
// AST and collecting text and code-block segments. Formatting syntax is
// dropped; the chunker normalizes whitespace afterwards anyway.
func markdownToPlain(source []byte) string {
	doc := goldmark.New().Parser().Parse(gmtext.NewReader(source))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindText:
			t := n.(*ast.Text)
			buf.Write(t.Segment.Value(source))
			buf.WriteByte(' ')
		case ast.KindCodeBlock, ast.KindFencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				buf.Write(lines.At(i).Value(source))
			}
			buf.WriteByte('\n')
		case ast.KindAutoLink:
			al := n.(*ast.AutoLink)
			buf.Write(al.URL(source))
			buf.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(buf.String())
}
