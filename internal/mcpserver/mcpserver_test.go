package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/apresai/briefcast/internal/assembly"
	"github.com/apresai/briefcast/internal/audio"
	"github.com/apresai/briefcast/internal/observability"
	"github.com/apresai/briefcast/internal/pipeline"
	"github.com/apresai/briefcast/internal/script"
	"github.com/apresai/briefcast/internal/tts"
)

const rate = 8000

type toneTTS struct{}

func (toneTTS) Name() string { return "tone" }

func (toneTTS) Synthesize(_ context.Context, text string, _ tts.Voice) (tts.AudioResult, error) {
	t := audio.Tone(rate, 220, 400*time.Millisecond, 0.4)
	return tts.AudioResult{Data: audio.EncodePCM16(t), Format: audio.FormatPCM, SampleRate: rate}, nil
}

func (toneTTS) DefaultVoices() tts.VoiceMap {
	return tts.VoiceMap{Host: tts.Voice{ID: "h"}, Analyst: tts.Voice{ID: "a"}}
}

func (toneTTS) Close() error { return nil }

type rawEncoder struct{}

func (rawEncoder) EncodeMP3(_ context.Context, t audio.Track, output string) error {
	return os.WriteFile(output, audio.EncodePCM16(t), 0o644)
}

func newHandlers(t *testing.T, maxRenders int) (*Handlers, string) {
	t.Helper()
	dir := t.TempDir()
	engine := &pipeline.Engine{
		Cast:      script.DefaultCast(),
		Synth:     &tts.Synthesizer{Provider: toneTTS{}, Voices: tts.DefaultVoiceTable(toneTTS{}), SampleRate: rate},
		Assembler: &assembly.Assembler{Pauses: assembly.DefaultPauseRule(), SampleRate: rate},
		Mixer:     assembly.NewMixer(assembly.DefaultMixConfig()),
	}
	runner := &pipeline.Runner{Engine: engine, Encoder: rawEncoder{}}
	h := NewHandlers(runner, Config{OutputDir: dir, MaxRenders: maxRenders}, "google", nil)
	h.log = discardLogger()
	h.now = func() time.Time { return time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC) }
	return h, dir
}

func discardLogger() *slog.Logger {
	return observability.NewLogger(observability.LogOptions{Format: "json", Writer: io.Discard})
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func decode(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	if res.IsError {
		t.Fatalf("tool returned error: %+v", res.Content)
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T", res.Content[0])
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(text.Text), &out); err != nil {
		t.Fatalf("decode %q: %v", text.Text, err)
	}
	return out
}

const transcript = "Ka Yan: Good morning.|Wai Lun: Markets opened higher.|Anyway, that is all."

func TestSegmentTranscript(t *testing.T) {
	h, _ := newHandlers(t, 1)
	res, err := h.HandleSegmentTranscript(context.Background(), call("segment_transcript", map[string]any{"transcript": transcript}))
	if err != nil {
		t.Fatal(err)
	}
	out := decode(t, res)
	utts := out["utterances"].([]any)
	if len(utts) != 3 {
		t.Fatalf("utterances = %d, want 3", len(utts))
	}
	if role := utts[2].(map[string]any)["role"]; role != string(script.RoleAnalyst) {
		t.Errorf("untagged fragment role = %v, want carried-forward analyst", role)
	}
	if out["carried_forward"].(float64) != 1 {
		t.Errorf("carried_forward = %v", out["carried_forward"])
	}
}

func TestToolArgumentErrors(t *testing.T) {
	h, _ := newHandlers(t, 1)
	tests := []struct {
		name string
		fn   func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args map[string]any
	}{
		{"segment without transcript", h.HandleSegmentTranscript, map[string]any{}},
		{"render without transcript", h.HandleRenderEpisode, map[string]any{"transcript": "  "}},
		{"render with path name", h.HandleRenderEpisode, map[string]any{"transcript": transcript, "name": "../etc/x"}},
		{"render empty after segmentation", h.HandleRenderEpisode, map[string]any{"transcript": "(music)|[pause]"}},
		{"unknown voice provider", h.HandleListVoices, map[string]any{"provider": "espeak"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.fn(context.Background(), call("x", tt.args))
			if err != nil {
				t.Fatalf("handler error = %v", err)
			}
			if !res.IsError {
				t.Fatalf("expected tool error, got %+v", res.Content)
			}
		})
	}
}

func TestRenderEpisode(t *testing.T) {
	h, dir := newHandlers(t, 1)
	res, err := h.HandleRenderEpisode(context.Background(), call("render_episode", map[string]any{"transcript": transcript, "name": "hk"}))
	if err != nil {
		t.Fatal(err)
	}
	out := decode(t, res)
	if out["audio_path"] != filepath.Join(dir, "hk-2026-10-19.mp3") {
		t.Errorf("audio_path = %v", out["audio_path"])
	}
	if out["background"] != false {
		t.Errorf("background = %v", out["background"])
	}
	if secs := out["duration_seconds"].(float64); secs < 1.2 {
		t.Errorf("duration_seconds = %v", secs)
	}
	if _, err := os.Stat(filepath.Join(dir, "hk-2026-10-19.txt")); err != nil {
		t.Errorf("transcript not saved: %v", err)
	}
}

func TestRenderEpisodeDryRun(t *testing.T) {
	h, dir := newHandlers(t, 1)
	res, err := h.HandleRenderEpisode(context.Background(), call("render_episode", map[string]any{"transcript": transcript, "dry_run": true}))
	if err != nil {
		t.Fatal(err)
	}
	out := decode(t, res)
	if out["utterances"].(float64) != 3 || out["dry_run"] != true {
		t.Fatalf("dry run result = %v", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "briefing-2026-10-19.mp3")); err == nil {
		t.Fatal("dry run wrote audio")
	}
}

func TestRenderEpisodeBusy(t *testing.T) {
	h, _ := newHandlers(t, 1)
	h.slots <- struct{}{}
	res, _ := h.HandleRenderEpisode(context.Background(), call("render_episode", map[string]any{"transcript": transcript}))
	if !res.IsError {
		t.Fatal("render should be refused while the only slot is taken")
	}
}

func TestRenderEpisodeSameNameInFlight(t *testing.T) {
	h, dir := newHandlers(t, 2)
	if !h.claim("hk-2026-10-19") {
		t.Fatal("claim on an idle handler failed")
	}

	res, _ := h.HandleRenderEpisode(context.Background(), call("render_episode", map[string]any{"transcript": transcript, "name": "hk"}))
	if !res.IsError {
		t.Fatal("second render of hk-2026-10-19 should be refused")
	}
	if _, err := os.Stat(filepath.Join(dir, "hk-2026-10-19.txt")); err == nil {
		t.Fatal("refused render wrote a transcript")
	}

	// another name is independent
	res, _ = h.HandleRenderEpisode(context.Background(), call("render_episode", map[string]any{"transcript": transcript, "name": "world"}))
	if res.IsError {
		t.Fatalf("render under a free name failed: %v", res.Content)
	}

	h.release("hk-2026-10-19")
	res, _ = h.HandleRenderEpisode(context.Background(), call("render_episode", map[string]any{"transcript": transcript, "name": "hk"}))
	if res.IsError {
		t.Fatalf("render after release failed: %v", res.Content)
	}
	if !h.claim("hk-2026-10-19") {
		t.Error("finished render did not release its name")
	}
}

func TestListVoicesDefaultsToShowProvider(t *testing.T) {
	h, _ := newHandlers(t, 1)
	res, err := h.HandleListVoices(context.Background(), call("list_voices", nil))
	if err != nil {
		t.Fatal(err)
	}
	out := decode(t, res)
	if out["provider"] != "google" || out["count"].(float64) == 0 {
		t.Fatalf("list_voices = %v", out)
	}
}

func TestRouter(t *testing.T) {
	h, _ := newHandlers(t, 1)
	metrics := observability.NewMetrics("briefcast")
	metrics.ObserveBackground("synthesized")
	srv := httptest.NewServer(newRouter(NewMCPServer("test", h), metrics))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `briefcast_background_loads_total{source="synthesized"} 1`) {
		t.Fatalf("/metrics missing background counter:\n%s", body)
	}

	listTools := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/mcp", strings.NewReader(listTools))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, name := range []string{"segment_transcript", "render_episode", "list_voices"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("tools/list missing %s: %s", name, body)
		}
	}
}
