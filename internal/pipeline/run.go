package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/apresai/briefcast/internal/audio"
	"github.com/apresai/briefcast/internal/ingest"
	"github.com/apresai/briefcast/internal/observability"
	"github.com/apresai/briefcast/internal/progress"
	"github.com/apresai/briefcast/internal/publish"
	"github.com/apresai/briefcast/internal/script"
)

type Options struct {
	// Inputs are files, URLs or feed URLs. When empty, Feeds are read.
	Inputs       []string
	Feeds        []string
	ItemsPerFeed int
	// Transcript skips gathering and script generation.
	Transcript string

	OutputDir string
	Prefix    string
	Date      time.Time
	Topic     string
	Length    string

	ScriptOnly bool
	DryRun     bool
	Publish    bool
}

// Encoder writes the final artifact.
type Encoder interface {
	EncodeMP3(ctx context.Context, t audio.Track, output string) error
}

// Publisher distributes a finished episode.
type Publisher interface {
	Publish(ctx context.Context, req publish.Request) (*publish.Episode, error)
}

// Writer is the script stage; *script.Chain satisfies it.
type Writer interface {
	Generate(ctx context.Context, material string, opts script.GenerateOptions) (script.ChainResult, error)
}

// Runner performs the daily run around an Engine.
type Runner struct {
	Engine    *Engine
	Writer    Writer
	Encoder   Encoder
	Publisher Publisher
	// Gather overrides material collection, mainly for tests.
	Gather     func(ctx context.Context, opts Options) (*ingest.Content, error)
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	OnProgress progress.Callback
}

// Result describes what a run produced.
type Result struct {
	AudioPath      string              `json:"audio_path,omitempty"`
	TranscriptPath string              `json:"transcript_path,omitempty"`
	Transcript     string              `json:"-"`
	Script         *script.ChainResult `json:"script,omitempty"`
	Render         *Render             `json:"render,omitempty"`
	Plan           *Plan               `json:"plan,omitempty"`
	Episode        *publish.Episode    `json:"episode,omitempty"`
	SizeBytes      int64               `json:"size_bytes,omitempty"`
}

// ArtifactName is "<prefix>-YYYY-MM-DD" for the run date.
func ArtifactName(prefix string, date time.Time) string {
	return fmt.Sprintf("%s-%s", prefix, date.Format("2006-01-02"))
}

// Run executes one briefing. Earlier artifacts are left in place; a re-run
// on the same date overwrites that date's files.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	pipelineStart := time.Now()
	ctx, span := observability.Tracer().Start(ctx, "pipeline.Run")
	defer span.End()

	if opts.Date.IsZero() {
		opts.Date = time.Now()
	}
	if opts.Prefix == "" {
		opts.Prefix = "briefing"
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}

	engine := *r.Engine
	engine.OnProgress = r.OnProgress
	res := &Result{}

	transcript := opts.Transcript
	if transcript == "" {
		var err error
		transcript, err = r.writeScript(ctx, opts, res)
		if err != nil {
			return res, err
		}
	}
	res.Transcript = transcript

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return res, &PipelineError{Stage: "output", Message: "failed to create output directory", Err: err}
	}
	base := filepath.Join(opts.OutputDir, ArtifactName(opts.Prefix, opts.Date))
	res.TranscriptPath = base + ".txt"
	if err := script.SaveTranscript(transcript, res.TranscriptPath); err != nil {
		return res, &PipelineError{Stage: "script", Message: "failed to save transcript", Err: err}
	}

	if opts.ScriptOnly {
		r.emit(progress.Event{Stage: progress.StageComplete, Message: "Transcript saved to " + res.TranscriptPath})
		return res, nil
	}

	if opts.DryRun {
		plan, err := engine.Plan(transcript)
		if err != nil {
			return res, err
		}
		res.Plan = plan
		r.emit(progress.Event{
			Stage:   progress.StageComplete,
			Message: fmt.Sprintf("Dry run: %d utterances, about %s", len(plan.Segmentation.Utterances), formatDuration(plan.Layout.Total)),
		})
		return res, nil
	}

	render, err := engine.Render(ctx, transcript)
	if err != nil {
		return res, err
	}
	res.Render = render

	r.emit(progress.Event{Stage: progress.StageAssembly, Message: "Encoding MP3...", Percent: progress.Overall(progress.StageAssembly, 0.8)})
	res.AudioPath = base + ".mp3"
	if err := r.Encoder.EncodeMP3(ctx, render.Track, res.AudioPath); err != nil {
		return res, &PipelineError{Stage: "assembly", Message: "failed to encode episode", Err: err}
	}
	if info, err := os.Stat(res.AudioPath); err == nil {
		res.SizeBytes = info.Size()
	}

	if opts.Publish && r.Publisher != nil {
		r.emit(progress.Event{Stage: progress.StagePublish, Message: "Publishing...", Percent: progress.Overall(progress.StagePublish, 0)})
		req := publish.Request{
			Date:           opts.Date,
			AudioPath:      res.AudioPath,
			TranscriptPath: res.TranscriptPath,
			Transcript:     transcript,
			Duration:       render.Duration(),
			Skipped:        len(render.Failures),
		}
		if res.Script != nil {
			req.Provider = res.Script.Provider
		}
		ep, err := r.Publisher.Publish(ctx, req)
		if err != nil {
			return res, &PipelineError{Stage: "publish", Message: "failed to publish episode", Err: err}
		}
		res.Episode = ep
	}

	done := progress.Event{
		Stage:      progress.StageComplete,
		Message:    "Episode complete",
		OutputFile: res.AudioPath,
		Duration:   render.Duration(),
		SizeBytes:  res.SizeBytes,
		Failures:   len(render.Failures),
	}
	if res.Script != nil {
		done.Provider = res.Script.Provider
	}
	if render.Background {
		done.Background = "on"
	} else {
		done.Background = "off"
	}
	r.emit(done)

	r.logger().Info("Run complete",
		"audio", res.AudioPath,
		"duration", render.Duration().Round(time.Second),
		"elapsed", time.Since(pipelineStart).Round(time.Millisecond),
	)
	return res, nil
}

func (r *Runner) writeScript(ctx context.Context, opts Options, res *Result) (string, error) {
	r.emit(progress.Event{Stage: progress.StageIngest, Message: "Gathering material...", Percent: progress.Overall(progress.StageIngest, 0)})
	gather := r.Gather
	if gather == nil {
		gather = defaultGather
	}
	content, err := gather(ctx, opts)
	if err != nil {
		return "", &PipelineError{Stage: "ingest", Message: "failed to gather material", Err: err}
	}
	r.logger().Info("Material gathered", "source", content.Source, "words", content.WordCount)

	r.emit(progress.Event{Stage: progress.StageScript, Message: "Writing script...", Percent: progress.Overall(progress.StageScript, 0)})
	cr, err := r.Writer.Generate(ctx, content.Text, script.GenerateOptions{
		Date:   opts.Date.Format("Monday, January 2, 2006"),
		Topic:  opts.Topic,
		Length: opts.Length,
	})
	if err != nil {
		return "", &PipelineError{Stage: "script", Message: "script generation interrupted", Err: err}
	}
	for _, a := range cr.Attempts {
		r.Metrics.ObserveScriptAttempt(a.Provider, a.OK())
	}
	res.Script = &cr
	r.logger().Info("Script written", "provider", cr.Provider, "attempts", len(cr.Attempts), "fallback", cr.Fallback)
	return cr.Transcript, nil
}

func defaultGather(ctx context.Context, opts Options) (*ingest.Content, error) {
	if len(opts.Inputs) > 0 {
		return ingest.Gather(ctx, opts.Inputs)
	}
	f := &ingest.FeedIngester{Feeds: opts.Feeds, ItemsPerFeed: opts.ItemsPerFeed}
	return f.Ingest(ctx, "")
}

func (r *Runner) emit(e progress.Event) {
	if r.OnProgress != nil {
		r.OnProgress(e)
	}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func formatDuration(d time.Duration) string {
	s := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
