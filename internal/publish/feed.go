package publish

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/eduncan911/podcast"
	"github.com/mmcdole/gofeed"
)

// summaryRunes is how much of the transcript the feed shows.
const summaryRunes = 200

// Channel describes the podcast itself.
type Channel struct {
	Title       string
	Description string
	Link        string
	Language    string
}

// Episode is one feed entry.
type Episode struct {
	ID        string
	Title     string
	Summary   string
	AudioURL  string
	Length    int64
	Duration  time.Duration
	Published time.Time
}

// EpisodeTitle names an episode after its date.
func EpisodeTitle(date time.Time) string {
	return "News Briefing: " + date.Format("2006-01-02")
}

// Summary is the first 200 characters of the transcript followed by "...".
func Summary(transcript string) string {
	r := []rune(strings.Join(strings.Fields(transcript), " "))
	if len(r) > summaryRunes {
		r = r[:summaryRunes]
	}
	return string(r) + "..."
}

// WriteFeed renders an RSS 2.0 feed with iTunes tags, newest episode first.
func WriteFeed(w io.Writer, ch Channel, episodes []Episode, built time.Time) error {
	p := podcast.New(ch.Title, ch.Link, ch.Description, &built, &built)
	p.AddSummary(ch.Description)
	p.Language = ch.Language
	p.IExplicit = "no"

	for _, e := range sortEpisodes(episodes) {
		desc := e.Summary
		if desc == "" {
			desc = e.Title
		}
		item := podcast.Item{
			Title:       e.Title,
			Description: desc,
			GUID:        e.ID,
		}
		item.AddPubDate(&e.Published)
		item.AddEnclosure(e.AudioURL, podcast.MP3, e.Length)
		if e.Duration > 0 {
			item.AddDuration(int64(e.Duration.Round(time.Second).Seconds()))
		}
		if _, err := p.AddItem(item); err != nil {
			return fmt.Errorf("feed item %q: %w", e.Title, err)
		}
	}

	if err := p.Encode(w); err != nil {
		return fmt.Errorf("encode feed: %w", err)
	}
	return nil
}

// ReadFeed loads the episodes of an existing feed file. A missing file has
// no episodes.
func ReadFeed(path string) ([]Episode, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	feed, err := gofeed.NewParser().Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", path, err)
	}

	out := make([]Episode, 0, len(feed.Items))
	for _, it := range feed.Items {
		ep := Episode{
			ID:      strings.TrimSpace(it.GUID),
			Title:   it.Title,
			Summary: it.Description,
		}
		if it.PublishedParsed != nil {
			ep.Published = *it.PublishedParsed
		}
		if len(it.Enclosures) > 0 {
			ep.AudioURL = it.Enclosures[0].URL
			ep.Length, _ = strconv.ParseInt(it.Enclosures[0].Length, 10, 64)
		}
		if it.ITunesExt != nil {
			ep.Duration = parseITunesDuration(it.ITunesExt.Duration)
		}
		out = append(out, ep)
	}
	return out, nil
}

// MergeEpisodes adds ep to existing. An earlier entry for the same audio URL
// (a re-run of the same day) is replaced. keep > 0 caps the result, dropping
// the oldest.
func MergeEpisodes(existing []Episode, ep Episode, keep int) []Episode {
	out := []Episode{ep}
	for _, e := range existing {
		if e.AudioURL == ep.AudioURL || (ep.ID != "" && e.ID == ep.ID) {
			continue
		}
		out = append(out, e)
	}
	out = sortEpisodes(out)
	if keep > 0 && len(out) > keep {
		out = out[:keep]
	}
	return out
}

// WriteFeedFile writes the feed atomically.
func WriteFeedFile(path string, ch Channel, episodes []Episode, built time.Time) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := WriteFeed(f, ch, episodes, built); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func sortEpisodes(eps []Episode) []Episode {
	out := append([]Episode(nil), eps...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Published.After(out[j].Published) })
	return out
}

// parseITunesDuration reads "H:MM:SS", "MM:SS" or plain seconds.
func parseITunesDuration(s string) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	var total int
	for _, part := range strings.Split(s, ":") {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second
}
