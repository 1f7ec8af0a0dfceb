// Package background provides the music bed laid under every episode.
package background

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
	"go.opentelemetry.io/otel/attribute"

	"github.com/apresai/briefcast/internal/audio"
	"github.com/apresai/briefcast/internal/observability"
	"github.com/apresai/briefcast/internal/tts"
)

// Load origins, also used as metric labels.
const (
	OriginPCMCache    = "pcm_cache"
	OriginFileCache   = "file_cache"
	OriginDownload    = "download"
	OriginSynthesized = "synthesized"
	OriginNone        = "none"
)

const (
	baseName    = "background"
	sidecarName = "background.pcm.zst"

	defaultRetries    = 3
	defaultRetryDelay = time.Second
	defaultTimeout    = 2 * time.Minute
	defaultPadLength  = 8 * time.Second
	maxDownloadBytes  = 64 << 20
)

// ErrUnavailable means no bed could be found, fetched or synthesized.
var ErrUnavailable = errors.New("background unavailable")

// Source resolves the background bed and keeps the first success. Lookup order is the
// decoded sidecar, the cached original, a download from URL, and finally a
// synthesized pad when Synthesize is set.
type Source struct {
	CacheDir   string
	URL        string
	Synthesize bool
	PadLength  time.Duration
	SampleRate int

	Decoder    tts.Decoder
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *observability.Metrics

	Retries    int
	RetryDelay time.Duration
	Timeout    time.Duration

	mu     sync.Mutex
	track  *audio.Track
	origin string
}

// Load returns the bed, or nil with the reason when none is available. A
// successful load is memoized and later calls return it without touching disk
// or network. Failures are not memoized, so the next call tries again.
func (s *Source) Load(ctx context.Context) (*audio.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.track != nil {
		return s.track, nil
	}

	// The memo outlives the first caller, so its cancellation must not
	// poison it.
	lctx, cancel := context.WithTimeout(observability.DetachTraceContext(ctx), s.timeout())
	defer cancel()

	lctx, span := observability.Tracer().Start(lctx, "background.Load")
	defer span.End()

	track, origin, err := s.load(lctx)
	if err != nil {
		origin = OriginNone
		s.logger().Warn("background unavailable, rendering voice only", "error", err)
	} else {
		s.track = track
		s.logger().Info("background ready",
			"origin", origin,
			"duration", track.Duration().Round(time.Millisecond),
		)
	}
	s.origin = origin
	span.SetAttributes(attribute.String("background.origin", origin))
	s.Metrics.ObserveBackground(origin)
	return track, err
}

// Origin reports where the bed came from. Empty before the first Load.
func (s *Source) Origin() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.origin
}

func (s *Source) load(ctx context.Context) (*audio.Track, string, error) {
	var errs []error

	if s.CacheDir != "" {
		if t, err := s.readSidecar(); err == nil {
			return t, OriginPCMCache, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			s.logger().Debug("ignoring background sidecar", "error", err)
		}

		if t, err := s.decodeCached(ctx); err == nil {
			s.writeSidecar(t)
			return t, OriginFileCache, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("cached file: %w", err))
		}
	}

	if s.URL != "" {
		t, err := s.download(ctx)
		if err == nil {
			s.writeSidecar(t)
			return t, OriginDownload, nil
		}
		errs = append(errs, fmt.Errorf("download: %w", err))
	}

	if s.Synthesize {
		pad := audio.AmbientPad(s.sampleRate(), s.padLength())
		return &pad, OriginSynthesized, nil
	}

	errs = append(errs, ErrUnavailable)
	return nil, OriginNone, errors.Join(errs...)
}

// readSidecar loads the zstd-compressed PCM written by a previous run. The
// payload is a little-endian uint32 sample rate followed by s16le samples.
func (s *Source) readSidecar() (*audio.Track, error) {
	f, err := os.Open(filepath.Join(s.CacheDir, sidecarName))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var rate uint32
	if err := binary.Read(dec, binary.LittleEndian, &rate); err != nil {
		return nil, fmt.Errorf("read sidecar header: %w", err)
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("read sidecar: %w", err)
	}
	if rate == 0 || len(pcm) == 0 {
		return nil, fmt.Errorf("sidecar is empty")
	}
	t := audio.DecodePCM16(pcm, int(rate))
	return &t, nil
}

func (s *Source) writeSidecar(t *audio.Track) {
	if s.CacheDir == "" {
		return
	}
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		s.logger().Warn("background sidecar not written", "error", err)
		return
	}
	if err := encodeSidecar(enc, t); err != nil {
		enc.Close()
		s.logger().Warn("background sidecar not written", "error", err)
		return
	}
	if err := enc.Close(); err != nil {
		s.logger().Warn("background sidecar not written", "error", err)
		return
	}
	if err := writeAtomic(filepath.Join(s.CacheDir, sidecarName), buf.Bytes()); err != nil {
		s.logger().Warn("background sidecar not written", "error", err)
		return
	}
	s.logger().Debug("background sidecar written", "size", humanize.Bytes(uint64(buf.Len())))
}

func encodeSidecar(w io.Writer, t *audio.Track) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(t.SampleRate)); err != nil {
		return fmt.Errorf("write sidecar header: %w", err)
	}
	if _, err := w.Write(audio.EncodePCM16(*t)); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}

// decodeCached decodes the cached original, whatever its extension.
func (s *Source) decodeCached(ctx context.Context) (*audio.Track, error) {
	p, err := s.cachedFile()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	return s.decode(ctx, data)
}

func (s *Source) cachedFile() (string, error) {
	matches, err := filepath.Glob(filepath.Join(s.CacheDir, baseName+".*"))
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if filepath.Base(m) != sidecarName && !strings.HasSuffix(m, ".tmp") {
			return m, nil
		}
	}
	return "", os.ErrNotExist
}

func (s *Source) decode(ctx context.Context, data []byte) (*audio.Track, error) {
	t, err := s.decoder().Decode(ctx, tts.AudioResult{Data: data, Format: audio.Sniff(data)})
	if err != nil {
		return nil, err
	}
	if t.Empty() {
		return nil, fmt.Errorf("background decoded to zero samples")
	}
	return &t, nil
}

func (s *Source) download(ctx context.Context) (*audio.Track, error) {
	var data []byte
	var err error
	delay := s.retryDelay()
	for attempt := 1; attempt <= s.retries(); attempt++ {
		data, err = s.fetch(ctx)
		if err == nil {
			break
		}
		s.logger().Warn("background download failed", "attempt", attempt, "error", err)
		if attempt == s.retries() {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	t, err := s.decode(ctx, data)
	if err != nil {
		return nil, err
	}

	if s.CacheDir != "" {
		if err := s.storeOriginal(data); err != nil {
			s.logger().Warn("background not cached", "error", err)
		}
	}
	s.logger().Info("background downloaded", "url", s.URL, "size", humanize.Bytes(uint64(len(data))))
	return t, nil
}

func (s *Source) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", s.URL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("GET %s: empty body", s.URL)
	}
	return data, nil
}

// storeOriginal keeps a single background.<ext>; the newest fetch replaces
// any earlier file.
func (s *Source) storeOriginal(data []byte) error {
	if err := os.MkdirAll(s.CacheDir, 0o755); err != nil {
		return err
	}
	if old, err := s.cachedFile(); err == nil {
		os.Remove(old)
	}
	return writeAtomic(filepath.Join(s.CacheDir, baseName+"."+extensionFor(data, s.URL)), data)
}

func extensionFor(data []byte, url string) string {
	if f := audio.Sniff(data); f != audio.FormatUnknown {
		return string(f)
	}
	if ext := strings.TrimPrefix(path.Ext(strings.SplitN(url, "?", 2)[0]), "."); ext != "" {
		return strings.ToLower(ext)
	}
	return "bin"
}

func writeAtomic(name string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	tmp := name + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, name)
}

func (s *Source) decoder() tts.Decoder {
	if s.Decoder != nil {
		return s.Decoder
	}
	return tts.BuiltinDecoder{}
}

func (s *Source) httpClient() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

func (s *Source) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Source) sampleRate() int {
	if s.SampleRate > 0 {
		return s.SampleRate
	}
	return audio.DefaultSampleRate
}

func (s *Source) padLength() time.Duration {
	if s.PadLength > 0 {
		return s.PadLength
	}
	return defaultPadLength
}

func (s *Source) retries() int {
	if s.Retries > 0 {
		return s.Retries
	}
	return defaultRetries
}

func (s *Source) retryDelay() time.Duration {
	if s.RetryDelay > 0 {
		return s.RetryDelay
	}
	return defaultRetryDelay
}

func (s *Source) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return defaultTimeout
}
