package publish

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var day = time.Date(2026, 10, 19, 7, 0, 0, 0, time.FixedZone("HKT", 8*3600))

func TestSummary(t *testing.T) {
	long := strings.Repeat("新聞", 150)
	if got := Summary(long); len([]rune(got)) != 203 || !strings.HasSuffix(got, "...") {
		t.Errorf("Summary(long) = %d runes", len([]rune(got)))
	}
	if got := Summary("Short\n  brief."); got != "Short brief...." {
		t.Errorf("Summary(short) = %q", got)
	}
}

func TestFeedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.xml")
	eps := []Episode{
		{ID: "a", Title: EpisodeTitle(day.AddDate(0, 0, -1)), Summary: "older & wiser", AudioURL: "http://x/a.mp3", Length: 10, Published: day.AddDate(0, 0, -1)},
		{ID: "b", Title: EpisodeTitle(day), Summary: "<today>", AudioURL: "http://x/b.mp3", Length: 20, Duration: 185 * time.Second, Published: day},
	}
	ch := Channel{Title: "HK Daily Brief", Description: "Daily news.", Link: "http://x"}
	if err := WriteFeedFile(path, ch, eps, day); err != nil {
		t.Fatalf("WriteFeedFile() error = %v", err)
	}

	raw, _ := os.ReadFile(path)
	for _, want := range []string{
		`xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd"`,
		`<pubDate>Mon, 19 Oct 2026 07:00:00 +0800</pubDate>`,
		`url="http://x/b.mp3"`,
		`type="audio/mpeg"`,
		`<itunes:duration>3:05</itunes:duration>`,
		`<title>News Briefing: 2026-10-19</title>`,
	} {
		if !bytes.Contains(raw, []byte(want)) {
			t.Errorf("feed missing %s\n%s", want, raw)
		}
	}

	got, err := ReadFeed(path)
	if err != nil {
		t.Fatalf("ReadFeed() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("ReadFeed() order = %+v", got)
	}
	if got[0].Duration != 185*time.Second || got[0].Length != 20 || !got[0].Published.Equal(day) || got[0].Summary != "<today>" {
		t.Fatalf("ReadFeed()[0] = %+v", got[0])
	}
	if got[1].Summary != "older & wiser" || got[1].AudioURL != "http://x/a.mp3" {
		t.Fatalf("ReadFeed()[1] = %+v", got[1])
	}
}

func TestParseITunesDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"3:05", 185 * time.Second},
		{"01:02:03", time.Hour + 2*time.Minute + 3*time.Second},
		{"90", 90 * time.Second},
		{"", 0},
		{"1:xx", 0},
	}
	for _, tt := range tests {
		if got := parseITunesDuration(tt.in); got != tt.want {
			t.Errorf("parseITunesDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestReadFeedMissing(t *testing.T) {
	eps, err := ReadFeed(filepath.Join(t.TempDir(), "none.xml"))
	if err != nil || eps != nil {
		t.Fatalf("ReadFeed(missing) = %v, %v", eps, err)
	}
}

func TestMergeEpisodes(t *testing.T) {
	existing := []Episode{
		{ID: "1", AudioURL: "u/1", Published: day.AddDate(0, 0, -2)},
		{ID: "2", AudioURL: "u/2", Published: day.AddDate(0, 0, -1)},
	}
	rerun := Episode{ID: "2b", AudioURL: "u/2", Published: day}
	got := MergeEpisodes(existing, rerun, 0)
	if len(got) != 2 || got[0].ID != "2b" || got[1].ID != "1" {
		t.Fatalf("rerun merge = %+v", got)
	}

	next := Episode{ID: "3", AudioURL: "u/3", Published: day.AddDate(0, 0, 1)}
	got = MergeEpisodes(existing, next, 2)
	if len(got) != 2 || got[0].ID != "3" || got[1].ID != "2" {
		t.Fatalf("capped merge = %+v", got)
	}
}

func writeArtifacts(t *testing.T, dir string, date time.Time) (string, string) {
	t.Helper()
	name := "briefing-" + date.Format("2006-01-02")
	mp3 := filepath.Join(dir, name+".mp3")
	txt := filepath.Join(dir, name+".txt")
	os.WriteFile(mp3, bytes.Repeat([]byte{0xFF}, 1234), 0o644)
	os.WriteFile(txt, []byte("Good morning."), 0o644)
	return mp3, txt
}

func TestPublisherLocalFeed(t *testing.T) {
	dir := t.TempDir()
	p := &Publisher{
		Channel:  Channel{Title: "HK Daily Brief"},
		SiteURL:  "https://alice.github.io/hk-brief/",
		FeedPath: filepath.Join(dir, "feed.xml"),
	}

	for i, d := range []time.Time{day.AddDate(0, 0, -1), day, day} {
		mp3, txt := writeArtifacts(t, dir, d)
		now := d.Add(time.Duration(i) * time.Minute)
		p.Now = func() time.Time { return now }
		ep, err := p.Publish(context.Background(), Request{Date: d, AudioPath: mp3, TranscriptPath: txt, Transcript: "Good morning."})
		if err != nil {
			t.Fatalf("Publish(%d) error = %v", i, err)
		}
		if want := "https://alice.github.io/hk-brief/" + filepath.Base(mp3); ep.AudioURL != want {
			t.Fatalf("AudioURL = %q, want %q", ep.AudioURL, want)
		}
		if ep.Length != 1234 {
			t.Fatalf("Length = %d", ep.Length)
		}
	}

	eps, err := ReadFeed(p.FeedPath)
	if err != nil {
		t.Fatal(err)
	}
	// the same-day re-run replaced its earlier entry
	if len(eps) != 2 {
		t.Fatalf("feed has %d episodes, want 2", len(eps))
	}
	if eps[0].Title != "News Briefing: 2026-10-19" {
		t.Errorf("newest = %q", eps[0].Title)
	}
}

type stubS3 struct {
	mu   sync.Mutex
	keys map[string][]byte
}

func (s *stubS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(in.Body)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys == nil {
		s.keys = map[string][]byte{}
	}
	s.keys[aws.ToString(in.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

// stubDynamo keeps items in memory and answers GSI1 queries.
type stubDynamo struct {
	items map[string]map[string]types.AttributeValue
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (d *stubDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if d.items == nil {
		d.items = map[string]map[string]types.AttributeValue{}
	}
	d.items[str(in.Item["PK"])] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (d *stubDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: d.items[str(in.Key["PK"])]}, nil
}

func (d *stubDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	pk := str(in.ExpressionAttributeValues[":pk"])
	var out []map[string]types.AttributeValue
	for _, it := range d.items {
		if str(it["GSI1PK"]) == pk {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return str(out[i]["GSI1SK"]) > str(out[j]["GSI1SK"]) })
	return &dynamodb.QueryOutput{Items: out}, nil
}

func TestPublisherUploadsAndRecords(t *testing.T) {
	dir := t.TempDir()
	bucket := &stubS3{}
	db := &stubDynamo{}
	p := &Publisher{
		Channel:  Channel{Title: "HK Daily Brief"},
		Show:     "hk",
		FeedPath: filepath.Join(dir, "feed.xml"),
		Storage:  NewStorage(bucket, "episodes", "https://cdn.example/"),
		Store:    NewStore(db, "briefcast"),
		Now:      func() time.Time { return day },
	}
	mp3, txt := writeArtifacts(t, dir, day)
	ep, err := p.Publish(context.Background(), Request{Date: day, AudioPath: mp3, TranscriptPath: txt, Transcript: "Good morning.", Duration: time.Minute, Provider: "claude"})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if ep.AudioURL != "https://cdn.example/episodes/briefing-2026-10-19.mp3" {
		t.Errorf("AudioURL = %q", ep.AudioURL)
	}
	for _, key := range []string{"episodes/briefing-2026-10-19.mp3", "episodes/briefing-2026-10-19.txt", "feed.xml"} {
		if _, ok := bucket.keys[key]; !ok {
			t.Errorf("s3 key %s not uploaded", key)
		}
	}

	item, err := p.Store.GetEpisode(context.Background(), ep.ID)
	if err != nil || item == nil {
		t.Fatalf("GetEpisode() = %v, %v", item, err)
	}
	if item.Provider != "claude" || item.AudioBytes != 1234 || item.Date != "2026-10-19" || item.AudioKey != "episodes/briefing-2026-10-19.mp3" {
		t.Errorf("record = %+v", item)
	}
	if !strings.Contains(string(bucket.keys["feed.xml"]), ep.ID) {
		t.Errorf("uploaded feed does not list the episode")
	}
}
