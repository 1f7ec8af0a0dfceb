package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/apresai/briefcast/internal/assembly"
	"github.com/apresai/briefcast/internal/observability"
	"github.com/apresai/briefcast/internal/pipeline"
	"github.com/apresai/briefcast/internal/script"
	"github.com/apresai/briefcast/internal/tts"
)

// ToolDefs returns the MCP tool definitions.
func ToolDefs() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "segment_transcript",
			Description: "Split a tagged transcript into speaker-attributed utterances without synthesizing anything.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"transcript": map[string]any{
						"type":        "string",
						"description": "Transcript fragments separated by the cast delimiter, each optionally starting with a speaker tag",
					},
				},
				Required: []string{"transcript"},
			},
		},
		{
			Name:        "render_episode",
			Description: "Render a tagged transcript to an MP3 with pauses and the background bed. Returns the file path, duration and any utterances that were skipped.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"transcript": map[string]any{
						"type":        "string",
						"description": "Transcript to render",
					},
					"name": map[string]any{
						"type":        "string",
						"description": "Artifact prefix; files are written as <name>-YYYY-MM-DD.mp3/.txt",
						"default":     "briefing",
					},
					"dry_run": map[string]any{
						"type":        "boolean",
						"description": "Only segment and estimate the layout",
						"default":     false,
					},
				},
				Required: []string{"transcript"},
			},
		},
		{
			Name:        "list_voices",
			Description: "List the voices a TTS provider offers.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"provider": map[string]any{
						"type":        "string",
						"description": "TTS provider: " + strings.Join(tts.ProviderNames, ", "),
					},
				},
			},
		},
	}
}

// Handlers contains tool handler implementations.
type Handlers struct {
	runner    *pipeline.Runner
	outputDir string
	provider  string
	slots     chan struct{}
	now       func() time.Time
	log       *slog.Logger

	mu       sync.Mutex
	inFlight map[string]bool // artifact base names being written
}

// NewHandlers bounds concurrent renders by cfg.MaxRenders.
func NewHandlers(runner *pipeline.Runner, cfg Config, provider string, logger *slog.Logger) *Handlers {
	n := cfg.MaxRenders
	if n <= 0 {
		n = 2
	}
	return &Handlers{
		runner:    runner,
		outputDir: cfg.OutputDir,
		provider:  provider,
		slots:     make(chan struct{}, n),
		now:       time.Now,
		log:       logger,
		inFlight:  make(map[string]bool),
	}
}

// claim reserves an artifact name so two renders never write the same files.
func (h *Handlers) claim(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.inFlight[name] {
		return false
	}
	h.inFlight[name] = true
	return true
}

func (h *Handlers) release(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.inFlight, name)
}

// HandleSegmentTranscript returns the utterances of a transcript.
func (h *Handlers) HandleSegmentTranscript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, span := observability.Tracer().Start(ctx, "tool.segment_transcript")
	defer span.End()

	transcript := mcp.ParseString(req, "transcript", "")
	if strings.TrimSpace(transcript) == "" {
		span.SetStatus(codes.Error, "missing transcript")
		return mcp.NewToolResultError("transcript is required"), nil
	}

	seg := h.runner.Engine.Cast.Segment(transcript)
	span.SetAttributes(attribute.Int("utterances", len(seg.Utterances)))
	return jsonResult(struct {
		script.Segmentation
		Issues []script.ReviewIssue `json:"issues,omitempty"`
	}{seg, script.Review(seg)})
}

// HandleRenderEpisode renders a transcript synchronously.
func (h *Handlers) HandleRenderEpisode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := observability.Tracer().Start(ctx, "tool.render_episode")
	defer span.End()

	opts := pipeline.Options{
		Transcript: mcp.ParseString(req, "transcript", ""),
		Prefix:     mcp.ParseString(req, "name", "briefing"),
		DryRun:     mcp.ParseBoolean(req, "dry_run", false),
		OutputDir:  h.outputDir,
		Date:       h.now(),
	}
	span.SetAttributes(
		attribute.String("name", opts.Prefix),
		attribute.Bool("dry_run", opts.DryRun),
	)

	if strings.TrimSpace(opts.Transcript) == "" {
		span.SetStatus(codes.Error, "missing transcript")
		return mcp.NewToolResultError("transcript is required"), nil
	}
	if opts.Prefix == "" || strings.ContainsAny(opts.Prefix, `/\`) || strings.Contains(opts.Prefix, "..") {
		span.SetStatus(codes.Error, "bad name")
		return mcp.NewToolResultError(fmt.Sprintf("name %q must be a plain file name", opts.Prefix)), nil
	}

	select {
	case h.slots <- struct{}{}:
		defer func() { <-h.slots }()
	default:
		span.SetStatus(codes.Error, "busy")
		return mcp.NewToolResultError(fmt.Sprintf("max concurrent renders reached (%d)", cap(h.slots))), nil
	}

	artifact := pipeline.ArtifactName(opts.Prefix, opts.Date)
	if !h.claim(artifact) {
		span.SetStatus(codes.Error, "name in use")
		return mcp.NewToolResultError(fmt.Sprintf("%s is already being rendered; pick another name", artifact)), nil
	}
	defer h.release(artifact)

	res, err := h.runner.Run(ctx, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		h.log.WarnContext(ctx, "Render failed", "error", err)
		var pe *pipeline.PipelineError
		if errors.As(err, &pe) {
			return mcp.NewToolResultError(fmt.Sprintf("%s stage failed: %v", pe.Stage, pe.Err)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("render failed: %v", err)), nil
	}

	if res.Plan != nil {
		return jsonResult(map[string]any{
			"dry_run":            true,
			"transcript_path":    res.TranscriptPath,
			"utterances":         len(res.Plan.Segmentation.Utterances),
			"estimated_duration": assembly.FormatDuration(res.Plan.Layout.Total),
			"layout":             res.Plan.Layout,
		})
	}

	r := res.Render
	span.SetAttributes(
		attribute.String("audio_path", res.AudioPath),
		attribute.Int("failures", len(r.Failures)),
	)
	h.log.InfoContext(ctx, "Episode rendered", "path", res.AudioPath, "duration", r.Duration().Round(time.Second))

	result := map[string]any{
		"audio_path":       res.AudioPath,
		"transcript_path":  res.TranscriptPath,
		"duration":         assembly.FormatDuration(r.Duration()),
		"duration_seconds": r.Duration().Seconds(),
		"utterances":       len(r.Segmentation.Utterances),
		"background":       r.Background,
		"file_size_bytes":  res.SizeBytes,
	}
	if len(r.Failures) > 0 {
		result["failures"] = r.Failures
	}
	if r.BackgroundErr != "" {
		result["background_error"] = r.BackgroundErr
	}
	return jsonResult(result)
}

// HandleListVoices returns a provider's voice catalog.
func (h *Handlers) HandleListVoices(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, span := observability.Tracer().Start(ctx, "tool.list_voices")
	defer span.End()

	provider := mcp.ParseString(req, "provider", h.provider)
	span.SetAttributes(attribute.String("provider", provider))

	voices, err := tts.AvailableVoices(provider)
	if err != nil {
		span.SetStatus(codes.Error, "unknown provider")
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"provider": provider,
		"voices":   voices,
		"count":    len(voices),
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
