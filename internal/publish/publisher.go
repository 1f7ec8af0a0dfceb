package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apresai/briefcast/internal/observability"
)

// Request describes one rendered episode to publish.
type Request struct {
	Date           time.Time
	AudioPath      string
	TranscriptPath string
	Transcript     string
	Duration       time.Duration
	Provider       string
	Skipped        int
}

// Publisher uploads the artifacts (when Storage is set), records the
// episode (when Store is set) and rewrites the feed.
type Publisher struct {
	Channel  Channel
	Show     string
	SiteURL  string
	FeedPath string
	Keep     int

	Storage *Storage
	Store   *Store
	Logger  *slog.Logger
	Now     func() time.Time
}

// Publish returns the feed entry written for req.
func (p *Publisher) Publish(ctx context.Context, req Request) (*Episode, error) {
	ctx, span := observability.Tracer().Start(ctx, "publish.Publish")
	defer span.End()

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	published := now()

	id, err := NewEpisodeID(published)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("stat audio: %w", err)
	}

	ep := Episode{
		ID:        id,
		Title:     EpisodeTitle(req.Date),
		Summary:   Summary(req.Transcript),
		AudioURL:  p.siteURL() + "/" + filepath.Base(req.AudioPath),
		Length:    info.Size(),
		Duration:  req.Duration,
		Published: published,
	}

	var scriptURL string
	if p.Storage != nil {
		audioKey := "episodes/" + filepath.Base(req.AudioPath)
		ep.AudioURL, ep.Length, err = p.Storage.Upload(ctx, audioKey, req.AudioPath, "audio/mpeg")
		if err != nil {
			return nil, err
		}
		if req.TranscriptPath != "" {
			scriptURL, _, err = p.Storage.Upload(ctx, "episodes/"+filepath.Base(req.TranscriptPath), req.TranscriptPath, "text/plain; charset=utf-8")
			if err != nil {
				return nil, err
			}
		}
		p.logger().Info("Uploaded episode", "url", ep.AudioURL)
	}

	var episodes []Episode
	if p.Store != nil {
		err := p.Store.PutEpisode(ctx, EpisodeItem{
			EpisodeID:   id,
			Show:        p.Show,
			Title:       ep.Title,
			Summary:     ep.Summary,
			Date:        req.Date.Format("2006-01-02"),
			AudioKey:    strings.TrimPrefix(ep.AudioURL, p.siteURL()+"/"),
			AudioURL:    ep.AudioURL,
			AudioBytes:  ep.Length,
			DurationSec: req.Duration.Seconds(),
			ScriptURL:   scriptURL,
			Provider:    req.Provider,
			Skipped:     req.Skipped,
			PublishedAt: published.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return nil, err
		}
		items, _, err := p.Store.ListEpisodes(ctx, p.Show, p.keep(), "")
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			episodes = append(episodes, it.Episode())
		}
		episodes = MergeEpisodes(episodes, ep, p.Keep)
	} else {
		existing, err := ReadFeed(p.feedPath())
		if err != nil {
			p.logger().Warn("Existing feed unreadable, starting a new one", "path", p.feedPath(), "error", err)
		}
		episodes = MergeEpisodes(existing, ep, p.Keep)
	}

	ch := p.Channel
	if ch.Link == "" {
		ch.Link = p.siteURL()
	}
	if err := WriteFeedFile(p.feedPath(), ch, episodes, published); err != nil {
		return nil, fmt.Errorf("write feed: %w", err)
	}
	if p.Storage != nil {
		if _, _, err := p.Storage.Upload(ctx, filepath.Base(p.feedPath()), p.feedPath(), "application/rss+xml"); err != nil {
			return nil, err
		}
	}

	p.logger().Info("Feed updated", "path", p.feedPath(), "episodes", len(episodes))
	return &ep, nil
}

func (p *Publisher) siteURL() string {
	if p.Storage != nil {
		return p.Storage.cdnBaseURL
	}
	if p.SiteURL != "" {
		return strings.TrimRight(p.SiteURL, "/")
	}
	return "http://localhost"
}

func (p *Publisher) feedPath() string {
	if p.FeedPath != "" {
		return p.FeedPath
	}
	return "feed.xml"
}

func (p *Publisher) keep() int {
	if p.Keep > 0 {
		return p.Keep
	}
	return 100
}

func (p *Publisher) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
