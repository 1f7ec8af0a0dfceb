package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Local News</title>
<item><title>Tram fares rise</title><description>Fares go up &lt;b&gt;next&lt;/b&gt; week.&lt;br&gt;Details follow.</description><link>https://n/1</link></item>
<item><title>Typhoon signal 8</title><description>Schools closed
on Monday.</description></item>
<item><title>Harbour race</title><description>` + longDesc + `</description></item>
<item><title>Fourth story</title><description>dropped</description></item>
</channel></rss>`

var longDesc = strings.Repeat("x", 250)

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
<title>World</title>
<entry><title>Summit ends</title><summary>Leaders agree.</summary>
<link href="https://w/1"/><link rel="self" href="https://w/self"/></entry>
</feed>`

func TestParseFeedRSS(t *testing.T) {
	title, items, err := ParseFeed(strings.NewReader(rssFixture), DefaultItemsPerFeed)
	if err != nil {
		t.Fatalf("ParseFeed() error = %v", err)
	}
	if title != "Local News" {
		t.Errorf("title = %q", title)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	if got := items[0].Line(); got != "- Tram fares rise: Fares go up next week. Details follow." {
		t.Errorf("line[0] = %q", got)
	}
	if got := items[1].Description; got != "Schools closed on Monday." {
		t.Errorf("description[1] = %q", got)
	}
	if n := len([]rune(items[2].Description)); n != 200 {
		t.Errorf("description[2] has %d runes, want 200", n)
	}
}

func TestParseFeedAtom(t *testing.T) {
	title, items, err := ParseFeed(strings.NewReader(atomFixture), 0)
	if err != nil {
		t.Fatalf("ParseFeed() error = %v", err)
	}
	if title != "World" || len(items) != 1 {
		t.Fatalf("title %q, %d items", title, len(items))
	}
	if items[0].Link != "https://w/1" || items[0].Line() != "- Summit ends: Leaders agree." {
		t.Errorf("item = %+v", items[0])
	}
}

func TestFeedIngesterSkipsBrokenFeeds(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/local.xml", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(rssFixture)) })
	mux.HandleFunc("/world.xml", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(atomFixture)) })
	mux.HandleFunc("/down.xml", func(w http.ResponseWriter, r *http.Request) { http.Error(w, "no", http.StatusBadGateway) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := &FeedIngester{Feeds: []string{srv.URL + "/down.xml", srv.URL + "/world.xml"}}
	c, err := f.Ingest(context.Background(), srv.URL+"/local.xml")
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(c.Text), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), c.Text)
	}
	if !strings.HasPrefix(lines[3], "- Summit ends") {
		t.Errorf("feeds out of order: %q", lines[3])
	}
	if c.Title != "Local News" {
		t.Errorf("title = %q", c.Title)
	}

	f = &FeedIngester{}
	if _, err := f.Ingest(context.Background(), srv.URL+"/down.xml"); err == nil {
		t.Fatalf("Ingest() expected error when every feed fails")
	}
}

func TestURLIngesterDetectsFeedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssFixture))
	}))
	defer srv.Close()

	c, err := (&URLIngester{}).Ingest(context.Background(), srv.URL+"/news")
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if !strings.HasPrefix(c.Text, "- Tram fares rise") {
		t.Fatalf("text = %q", c.Text)
	}
}

func TestDetectSource(t *testing.T) {
	tests := []struct {
		in   string
		want SourceType
	}{
		{"https://example.com/article", SourceURL},
		{"https://feeds.example.com/world/rss.xml", SourceFeed},
		{"https://example.com/feed", SourceFeed},
		{"https://example.com/news.rss?x=1", SourceFeed},
		{"paper.PDF", SourcePDF},
		{"notes.txt", SourceText},
	}
	for _, tt := range tests {
		if got := DetectSource(tt.in); got != tt.want {
			t.Errorf("DetectSource(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestGatherJoinsInputs(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	os.WriteFile(a, []byte("First story here.\n"), 0o644)
	os.WriteFile(b, []byte("Second story."), 0o644)

	c, err := Gather(context.Background(), []string{a, b})
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if c.Text != "First story here.\n\nSecond story." || c.WordCount != 5 {
		t.Fatalf("Gather() = %q (%d words)", c.Text, c.WordCount)
	}
	if c.Title != "First story here." {
		t.Errorf("title = %q", c.Title)
	}

	if _, err := Gather(context.Background(), []string{filepath.Join(dir, "missing.txt")}); err == nil {
		t.Fatalf("Gather() expected error for missing file")
	}
}

func TestFileIngesterCleansText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	os.WriteFile(path, []byte("\ufeffHarbour tunnel closed  \r\n\r\n\r\n\r\nTraffic diverted.\r\n"), 0o644)

	c, err := NewIngester(path).Ingest(context.Background(), path)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if c.Text != "Harbour tunnel closed\n\nTraffic diverted." {
		t.Errorf("text = %q", c.Text)
	}
	if c.Title != "Harbour tunnel closed" || c.Source != "notes.txt" {
		t.Errorf("content = %+v", c)
	}

	empty := filepath.Join(dir, "empty.txt")
	os.WriteFile(empty, []byte(" \n\n"), 0o644)
	if _, err := NewIngester(empty).Ingest(context.Background(), empty); err == nil {
		t.Errorf("expected error for blank file")
	}
}

func TestWordCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"Rates held steady", 3},
		{"  spaced\tout\n words ", 3},
		{"港聞簡報", 4},
		{"MTR 新線 opens", 4},
	}
	for _, tt := range tests {
		if got := wordCount(tt.in); got != tt.want {
			t.Errorf("wordCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseFeedDeclaredCharset(t *testing.T) {
	doc := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n<rss version=\"2.0\"><channel><title>Caf\xe9</title>" +
		"<item><title>Cr\xe8me prices</title><description>Up 5%.</description></item></channel></rss>"
	title, items, err := ParseFeed(strings.NewReader(doc), 0)
	if err != nil {
		t.Fatalf("ParseFeed() error = %v", err)
	}
	if title != "Café" || len(items) != 1 || items[0].Title != "Crème prices" {
		t.Fatalf("ParseFeed() = %q, %+v", title, items)
	}
}

func TestLooksLikeFeed(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{rssFixture, true},
		{atomFixture, true},
		{"<!doctype html><html><body>feed me</body></html>", false},
		{"plain text", false},
	}
	for _, tt := range tests {
		if got := looksLikeFeed([]byte(tt.body)); got != tt.want {
			t.Errorf("looksLikeFeed(%.20q) = %v, want %v", tt.body, got, tt.want)
		}
	}
}
