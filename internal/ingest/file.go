package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxPDFPages bounds extraction from long reports; a morning brief never
// needs more.
const maxPDFPages = 60

// FileIngester reads a local text or PDF file.
type FileIngester struct {
	Kind SourceType
}

func (f *FileIngester) Ingest(ctx context.Context, source string) (*Content, error) {
	if err := validateFile(source); err != nil {
		return nil, err
	}

	var text string
	var err error
	if f.Kind == SourcePDF {
		text, err = readPDF(ctx, source)
	} else {
		text, err = readText(source)
	}
	if err != nil {
		return nil, err
	}

	text = cleanText(text)
	if text == "" {
		if f.Kind == SourcePDF {
			return nil, fmt.Errorf("no text in PDF %s: it may be scanned or image-based", source)
		}
		return nil, fmt.Errorf("file %s is empty", source)
	}
	return &Content{
		Text:      text,
		Title:     titleFromText(text, 80),
		Source:    filepath.Base(source),
		WordCount: wordCount(text),
	}, nil
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return strings.TrimPrefix(string(data), "\ufeff"), nil
}

func readPDF(ctx context.Context, path string) (string, error) {
	fh, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("read PDF %s: %w", path, err)
	}
	defer fh.Close()

	var sb strings.Builder
	pages := min(r.NumPage(), maxPDFPages)
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// unreadable pages are common in scanned inserts
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

// cleanText normalizes line endings and squeezes runs of blank lines.
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	out := lines[:0]
	blank := false
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if l == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
