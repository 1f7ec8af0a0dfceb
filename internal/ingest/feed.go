package ingest

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

const (
	// DefaultItemsPerFeed keeps the prompt short.
	DefaultItemsPerFeed = 3
	// maxDescription is the per-item description budget in characters.
	maxDescription = 200
)

// NewsItem is one headline pulled from a feed.
type NewsItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link,omitempty"`
}

// Line renders the item the way it is fed to the script generator.
func (n NewsItem) Line() string {
	if n.Description == "" {
		return "- " + n.Title
	}
	return fmt.Sprintf("- %s: %s", n.Title, n.Description)
}

var stripPolicy = bluemonday.StrictPolicy()

// ParseFeed reads an RSS, Atom or JSON feed and returns at most limit items.
// Descriptions lose their markup and line breaks and are cut to 200
// characters.
func ParseFeed(r io.Reader, limit int) (title string, items []NewsItem, err error) {
	feed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return "", nil, fmt.Errorf("parse feed: %w", err)
	}

	for _, it := range feed.Items {
		if limit > 0 && len(items) == limit {
			break
		}
		desc := it.Description
		if desc == "" {
			desc = it.Content
		}
		items = append(items, newsItem(it.Title, desc, it.Link))
	}
	return strings.TrimSpace(feed.Title), items, nil
}

func newsItem(title, desc, link string) NewsItem {
	return NewsItem{
		Title:       collapse(stripMarkup(title)),
		Description: truncateRunes(collapse(stripMarkup(desc)), maxDescription),
		Link:        strings.TrimSpace(link),
	}
}

func stripMarkup(s string) string {
	s = strings.NewReplacer("<br>", " ", "<br/>", " ", "<br />", " ", "\n", " ").Replace(s)
	return html.UnescapeString(stripPolicy.Sanitize(s))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// FeedIngester gathers the top headlines from one or more feeds.
type FeedIngester struct {
	Feeds        []string
	ItemsPerFeed int
	Client       *http.Client
}

// Ingest fetches source plus any configured Feeds. A feed that fails is
// skipped; the call errors only when no feed yields an item.
func (f *FeedIngester) Ingest(ctx context.Context, source string) (*Content, error) {
	feeds := f.Feeds
	if source != "" {
		feeds = append([]string{source}, feeds...)
	}
	if len(feeds) == 0 {
		return nil, fmt.Errorf("no feeds configured")
	}

	limit := f.ItemsPerFeed
	if limit <= 0 {
		limit = DefaultItemsPerFeed
	}

	var sb strings.Builder
	var errs []string
	var title string
	for _, u := range feeds {
		t, items, err := f.fetch(ctx, u, limit)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		if title == "" {
			title = t
		}
		for _, it := range items {
			sb.WriteString(it.Line())
			sb.WriteString("\n")
		}
	}

	text := sb.String()
	if text == "" {
		return nil, fmt.Errorf("no headlines from %d feed(s): %s", len(feeds), strings.Join(errs, "; "))
	}
	if title == "" {
		title = "News headlines"
	}
	return &Content{
		Text:      text,
		Title:     title,
		Source:    strings.Join(feeds, ", "),
		WordCount: wordCount(text),
	}, nil
}

func (f *FeedIngester) fetch(ctx context.Context, u string, limit int) (string, []NewsItem, error) {
	body, err := get(ctx, f.client(), u)
	if err != nil {
		return "", nil, err
	}
	title, items, err := ParseFeed(bytes.NewReader(body), limit)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", u, err)
	}
	return title, items, nil
}

func (f *FeedIngester) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// looksLikeFeed sniffs the document root for a feed format.
func looksLikeFeed(body []byte) bool {
	return gofeed.DetectFeedType(bytes.NewReader(body)) != gofeed.FeedTypeUnknown
}
