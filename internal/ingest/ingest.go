package ingest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"
)

type SourceType string

const (
	SourceURL  SourceType = "url"
	SourcePDF  SourceType = "pdf"
	SourceText SourceType = "text"
	SourceFeed SourceType = "feed"

	// maxInputSize is the maximum allowed size for input content (25 MB).
	maxInputSize = 25 * 1024 * 1024
)

func (s SourceType) String() string {
	return string(s)
}

// Content is source material for a script.
type Content struct {
	Text      string
	Title     string
	Source    string
	WordCount int
}

type Ingester interface {
	Ingest(ctx context.Context, source string) (*Content, error)
}

func DetectSource(input string) SourceType {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		path := strings.ToLower(strings.SplitN(input, "?", 2)[0])
		for _, suffix := range []string{".xml", ".rss", ".atom", "/rss", "/feed"} {
			if strings.HasSuffix(path, suffix) {
				return SourceFeed
			}
		}
		return SourceURL
	}
	if strings.HasSuffix(strings.ToLower(input), ".pdf") {
		return SourcePDF
	}
	return SourceText
}

func NewIngester(input string) Ingester {
	switch DetectSource(input) {
	case SourceFeed:
		return &FeedIngester{}
	case SourceURL:
		return &URLIngester{}
	case SourcePDF:
		return &FileIngester{Kind: SourcePDF}
	default:
		return &FileIngester{Kind: SourceText}
	}
}

// Gather ingests every input and joins the results into one body of
// material. Each input is detected independently.
func Gather(ctx context.Context, inputs []string) (*Content, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no input given")
	}
	var parts []string
	var sources []string
	var title string
	for _, in := range inputs {
		c, err := NewIngester(in).Ingest(ctx, in)
		if err != nil {
			return nil, err
		}
		if title == "" {
			title = c.Title
		}
		parts = append(parts, strings.TrimSpace(c.Text))
		sources = append(sources, c.Source)
	}
	text := strings.Join(parts, "\n\n")
	return &Content{
		Text:      text,
		Title:     title,
		Source:    strings.Join(sources, ", "),
		WordCount: wordCount(text),
	}, nil
}

func wordCount(text string) int {
	// Han characters count as one word each
	count := 0
	inWord := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			inWord = false
		case unicode.Is(unicode.Han, r):
			inWord = false
			count++
		case !inWord:
			inWord = true
			count++
		}
	}
	return count
}

func titleFromText(text string, maxLen int) string {
	line := text
	if idx := strings.IndexByte(text, '\n'); idx > 0 {
		line = text[:idx]
	}
	line = strings.TrimSpace(line)
	if r := []rune(line); len(r) > maxLen {
		line = string(r[:maxLen]) + "..."
	}
	if line == "" {
		return "Untitled"
	}
	return line
}

func validateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	if info.Size() > maxInputSize {
		return fmt.Errorf("%s is too large (%d MB, max %d MB)", path, info.Size()/(1024*1024), maxInputSize/(1024*1024))
	}
	return nil
}
