package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/apresai/briefcast/internal/audio"
	"github.com/apresai/briefcast/internal/observability"
	"github.com/apresai/briefcast/internal/script"
)

// ErrNoAudio means no utterance produced usable audio.
var ErrNoAudio = errors.New("no utterance produced audio")

// Decoder turns an engine result into samples.
type Decoder interface {
	Decode(ctx context.Context, res AudioResult) (audio.Track, error)
}

// BuiltinDecoder handles raw PCM and WAV without external tools.
type BuiltinDecoder struct{}

func (BuiltinDecoder) Decode(_ context.Context, res AudioResult) (audio.Track, error) {
	switch res.Format {
	case audio.FormatPCM:
		rate := res.SampleRate
		if rate == 0 {
			rate = audio.DefaultSampleRate
		}
		return audio.DecodePCM16(res.Data, rate), nil
	case audio.FormatWAV:
		return audio.DecodeWAVBytes(res.Data)
	default:
		return audio.Track{}, fmt.Errorf("cannot decode %q audio without ffmpeg", res.Format)
	}
}

// Clip is one synthesized utterance.
type Clip struct {
	Index int
	Role  script.Role
	Text  string
	Track audio.Track
}

// Failure records an utterance that was skipped.
type Failure struct {
	Index  int         `json:"index"`
	Role   script.Role `json:"role"`
	Reason string      `json:"reason"`
}

type SynthesisReport struct {
	Clips    []Clip
	Failures []Failure
}

// Synthesizer renders utterances with per-role voice profiles. Failures of
// single utterances are recorded and skipped; only a run with no audio at
// all is an error.
type Synthesizer struct {
	Provider   Provider
	Voices     VoiceTable
	Decoder    Decoder
	SampleRate int
	Workers    int
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	OnClip     func(done, total int)
}

// Synthesize renders one text with profile. Cue profiles never reach the
// engine.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, profile VoiceProfile) (audio.Track, error) {
	rate := s.sampleRate()
	if profile.Cue {
		return audio.Chime(rate), nil
	}

	var res AudioResult
	err := WithRetry(ctx, func() error {
		var err error
		res, err = s.Provider.Synthesize(ctx, text, profile.Voice())
		return err
	})
	if err != nil {
		return audio.Track{}, err
	}
	if len(res.Data) == 0 {
		return audio.Track{}, fmt.Errorf("engine returned zero bytes")
	}

	dec := s.Decoder
	if dec == nil {
		dec = BuiltinDecoder{}
	}
	track, err := dec.Decode(ctx, res)
	if err != nil {
		return audio.Track{}, fmt.Errorf("decode %s audio: %w", res.Format, err)
	}
	if track.Empty() {
		return audio.Track{}, fmt.Errorf("decoded audio is empty")
	}
	return track.Resample(rate), nil
}

// SynthesizeAll renders every utterance and returns clips in utterance order.
// With Workers > 1 calls run concurrently, bounded by Workers.
func (s *Synthesizer) SynthesizeAll(ctx context.Context, utts []script.Utterance) (SynthesisReport, error) {
	ctx, span := observability.Tracer().Start(ctx, "tts.SynthesizeAll")
	defer span.End()
	span.SetAttributes(
		attribute.String("tts.provider", s.providerName()),
		attribute.Int("tts.utterances", len(utts)),
	)

	results := make([]result, len(utts))
	var done int
	progress := func() {
		done++
		if s.OnClip != nil {
			s.OnClip(done, len(utts))
		}
	}

	if s.Workers <= 1 {
		for i, u := range utts {
			if err := ctx.Err(); err != nil {
				return SynthesisReport{}, err
			}
			results[i] = s.one(ctx, u)
			progress()
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.Workers)
		var mu sync.Mutex
		for i, u := range utts {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				r := s.one(gctx, u)
				mu.Lock()
				results[i] = r
				progress()
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return SynthesisReport{}, err
		}
		if err := ctx.Err(); err != nil {
			return SynthesisReport{}, err
		}
	}

	var report SynthesisReport
	for i, r := range results {
		u := utts[i]
		if r.err != nil {
			report.Failures = append(report.Failures, Failure{Index: u.Index, Role: u.Role, Reason: r.err.Error()})
			continue
		}
		report.Clips = append(report.Clips, Clip{Index: u.Index, Role: u.Role, Text: u.Text, Track: r.track})
	}
	span.SetAttributes(
		attribute.Int("tts.clips", len(report.Clips)),
		attribute.Int("tts.failures", len(report.Failures)),
	)

	if len(report.Clips) == 0 {
		return report, fmt.Errorf("%w: %d of %d utterances failed", ErrNoAudio, len(report.Failures), len(utts))
	}
	return report, nil
}

type result struct {
	track audio.Track
	err   error
}

func (s *Synthesizer) one(ctx context.Context, u script.Utterance) result {
	track, err := s.Synthesize(ctx, u.Text, s.Voices.Lookup(u.Role))
	s.Metrics.ObserveUtterance(string(u.Role), err == nil)
	if err != nil {
		s.logger().WarnContext(ctx, "utterance synthesis failed, skipping",
			"index", u.Index, "role", u.Role, "error", err)
		return result{err: err}
	}
	s.logger().DebugContext(ctx, "utterance synthesized",
		"index", u.Index, "role", u.Role, "duration", track.Duration())
	return result{track: track}
}

func (s *Synthesizer) sampleRate() int {
	if s.SampleRate > 0 {
		return s.SampleRate
	}
	return audio.DefaultSampleRate
}

func (s *Synthesizer) providerName() string {
	if s.Provider == nil {
		return "none"
	}
	return s.Provider.Name()
}

func (s *Synthesizer) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
