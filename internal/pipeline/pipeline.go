// Package pipeline turns a tagged transcript into a mixed episode and runs
// the full daily briefing: gather material, write the script, render,
// encode and publish.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/apresai/briefcast/internal/assembly"
	"github.com/apresai/briefcast/internal/audio"
	"github.com/apresai/briefcast/internal/observability"
	"github.com/apresai/briefcast/internal/progress"
	"github.com/apresai/briefcast/internal/script"
	"github.com/apresai/briefcast/internal/tts"
)

// ErrEmptyTranscript is returned for a transcript with nothing to say.
var ErrEmptyTranscript = errors.New("transcript is empty")

type PipelineError struct {
	Stage   string
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// BackgroundLoader supplies the music bed. A nil track means voice only.
type BackgroundLoader interface {
	Load(ctx context.Context) (*audio.Track, error)
}

// Engine renders transcripts. Its parts are configured once and reused.
type Engine struct {
	Cast       *script.Cast
	Synth      *tts.Synthesizer
	Assembler  *assembly.Assembler
	Mixer      *assembly.Mixer
	Background BackgroundLoader
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	OnProgress progress.Callback
}

// Render is the outcome of one transcript.
type Render struct {
	Segmentation script.Segmentation `json:"segmentation"`
	Failures     []tts.Failure       `json:"failures,omitempty"`
	Layout       assembly.Layout     `json:"layout"`
	// Track is the final mix; Voice is its length without the bed.
	Track         audio.Track   `json:"-"`
	Voice         time.Duration `json:"voice"`
	Background    bool          `json:"background"`
	BackgroundErr string        `json:"background_error,omitempty"`
}

// Duration is the playing time of the mixed track.
func (r *Render) Duration() time.Duration {
	return r.Track.Duration()
}

// Render segments, synthesizes, assembles and mixes transcript. Single
// utterance failures and a missing background degrade the result; only an
// empty transcript, nothing to say after segmentation, or no audio at all
// fail the render.
func (e *Engine) Render(ctx context.Context, transcript string) (*Render, error) {
	start := time.Now()
	ctx, span := observability.Tracer().Start(ctx, "pipeline.Render")
	defer span.End()

	seg, err := e.segment(transcript)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("pipeline.utterances", len(seg.Utterances)))

	e.emit(progress.StageTTS, fmt.Sprintf("Synthesizing %d utterances...", len(seg.Utterances)), 0, 0, len(seg.Utterances))
	synth := *e.Synth
	synth.OnClip = func(done, total int) {
		e.emit(progress.StageTTS, fmt.Sprintf("Synthesizing utterance %d/%d", done, total), float64(done)/float64(total), done, total)
	}
	report, err := synth.SynthesizeAll(ctx, seg.Utterances)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &PipelineError{Stage: "tts", Message: "no audio was produced", Err: err}
	}

	e.emit(progress.StageAssembly, "Assembling voice track...", 0, 0, 0)
	voice, layout := e.Assembler.Assemble(report.Clips)

	e.emit(progress.StageBackground, "Loading background...", 0, 0, 0)
	r := &Render{
		Segmentation: seg,
		Failures:     report.Failures,
		Layout:       layout,
		Voice:        voice.Duration(),
	}
	var bed *audio.Track
	if e.Background != nil {
		var berr error
		bed, berr = e.Background.Load(ctx)
		if berr != nil {
			r.BackgroundErr = berr.Error()
		}
	}
	r.Background = bed != nil

	e.emit(progress.StageAssembly, "Mixing...", 0.5, 0, 0)
	r.Track = e.Mixer.Mix(voice, bed)

	e.Metrics.ObserveRender(time.Since(start), r.Duration())
	e.logger().InfoContext(ctx, "episode rendered",
		"utterances", len(seg.Utterances),
		"clips", len(report.Clips),
		"skipped", len(report.Failures),
		"voice", r.Voice.Round(time.Millisecond),
		"duration", r.Duration().Round(time.Millisecond),
		"background", r.Background,
	)
	return r, nil
}

// Plan is the structure of an episode without any synthesis.
type Plan struct {
	Segmentation script.Segmentation `json:"segmentation"`
	Layout       assembly.Layout     `json:"layout"`
}

// Plan segments transcript and lays it out with estimated clip lengths.
// Cues use the real chime length.
func (e *Engine) Plan(transcript string) (*Plan, error) {
	seg, err := e.segment(transcript)
	if err != nil {
		return nil, err
	}
	chime := audio.Chime(audio.DefaultSampleRate).Duration()
	infos := make([]assembly.ClipInfo, len(seg.Utterances))
	for i, u := range seg.Utterances {
		d := assembly.EstimateDuration(u.Text)
		if e.Synth != nil && e.Synth.Voices.Lookup(u.Role).Cue {
			d = chime
		}
		infos[i] = assembly.ClipInfo{Index: u.Index, Role: u.Role, Text: u.Text, Duration: d}
	}
	return &Plan{Segmentation: seg, Layout: e.Assembler.Plan(infos)}, nil
}

func (e *Engine) segment(transcript string) (script.Segmentation, error) {
	if strings.TrimSpace(transcript) == "" {
		return script.Segmentation{}, &PipelineError{Stage: "segment", Message: "nothing to render", Err: ErrEmptyTranscript}
	}
	e.emit(progress.StageSegment, "Segmenting transcript...", 0, 0, 0)
	seg := e.Cast.Segment(transcript)
	if len(seg.Utterances) == 0 {
		return seg, &PipelineError{
			Stage:   "segment",
			Message: fmt.Sprintf("no speakable utterances (%d fragments dropped)", seg.Dropped),
			Err:     ErrEmptyTranscript,
		}
	}
	e.logger().Debug("transcript segmented",
		"utterances", len(seg.Utterances),
		"matched", seg.Matched,
		"carried_forward", seg.CarriedForward,
		"dropped", seg.Dropped,
	)
	for _, issue := range script.Review(seg) {
		e.logger().Warn("transcript review", "category", issue.Category, "severity", issue.Severity, "message", issue.Message)
	}
	return seg, nil
}

func (e *Engine) emit(stage progress.Stage, msg string, within float64, n, total int) {
	if e.OnProgress == nil {
		return
	}
	e.OnProgress(progress.Event{
		Stage:        stage,
		Message:      msg,
		Percent:      progress.Overall(stage, within),
		SegmentNum:   n,
		SegmentTotal: total,
	})
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
