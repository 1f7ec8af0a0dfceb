package assembly

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/apresai/briefcast/internal/audio"
	"github.com/apresai/briefcast/internal/script"
	"github.com/apresai/briefcast/internal/tts"
)

const rate = 8000

func clip(i int, text string, d time.Duration) tts.Clip {
	return tts.Clip{
		Index: i,
		Role:  script.RoleHost,
		Text:  text,
		Track: audio.Tone(rate, 330, d, 0.4),
	}
}

func TestPauseRuleGap(t *testing.T) {
	r := DefaultPauseRule()
	tests := []struct {
		name string
		text string
		dur  time.Duration
		want time.Duration
	}{
		{"short mid-thought", "and then", time.Second, DefaultShortPause},
		{"full stop", "That is all.", time.Second, DefaultLongPause},
		{"question", "Why now?", time.Second, DefaultLongPause},
		{"cjk stop", "今日就講到呢度。", time.Second, DefaultLongPause},
		{"cjk exclaim", "好消息！", time.Second, DefaultLongPause},
		{"closing quote", `He said "enough."`, time.Second, DefaultLongPause},
		{"closing bracket", "(see above!)", time.Second, DefaultLongPause},
		{"trailing space", "Done.  ", time.Second, DefaultLongPause},
		{"long clip without stop", "and so on", 3 * time.Second, DefaultLongPause},
		{"exactly threshold", "and so on", DefaultLongClipThreshold, DefaultShortPause},
		{"comma", "first,", time.Second, DefaultShortPause},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Gap(tt.text, tt.dur); got != tt.want {
				t.Errorf("Gap(%q, %s) = %s, want %s", tt.text, tt.dur, got, tt.want)
			}
		})
	}
}

func TestAssembleGapAfterEveryClip(t *testing.T) {
	a := &Assembler{Pauses: DefaultPauseRule(), SampleRate: rate}
	clips := []tts.Clip{
		clip(0, "Good morning.", time.Second),
		clip(2, "and", 500*time.Millisecond),
		clip(3, "Bye!", time.Second),
	}
	track, layout := a.Assemble(clips)

	want := time.Second + DefaultLongPause +
		500*time.Millisecond + DefaultShortPause +
		time.Second + DefaultLongPause
	if track.Duration() != want {
		t.Fatalf("track duration = %s, want %s", track.Duration(), want)
	}
	if layout.Total != track.Duration() {
		t.Fatalf("layout total %s != track %s", layout.Total, track.Duration())
	}
	if len(layout.Entries) != 3 {
		t.Fatalf("entries = %d", len(layout.Entries))
	}
	if e := layout.Entries[1]; e.Index != 2 || e.Start != time.Second+DefaultLongPause || e.Gap != DefaultShortPause {
		t.Fatalf("entry[1] = %+v", e)
	}
}

func TestAssembleIsDeterministic(t *testing.T) {
	a := NewAssembler(DefaultPauseRule())
	clips := []tts.Clip{clip(0, "One.", 700*time.Millisecond), clip(1, "two", 300*time.Millisecond)}

	t1, l1 := a.Assemble(clips)
	t2, l2 := a.Assemble(clips)
	if t1.Len() != t2.Len() || l1.Total != l2.Total {
		t.Fatalf("lengths differ: %d/%d", t1.Len(), t2.Len())
	}
	for i := range t1.Samples {
		if t1.Samples[i] != t2.Samples[i] {
			t.Fatalf("sample %d differs", i)
		}
	}
	if t1.SampleRate != audio.DefaultSampleRate {
		t.Fatalf("rate = %d, want %d", t1.SampleRate, audio.DefaultSampleRate)
	}
}

func TestAssembleEmpty(t *testing.T) {
	track, layout := NewAssembler(DefaultPauseRule()).Assemble(nil)
	if !track.Empty() || layout.Total != 0 || len(layout.Entries) != 0 {
		t.Fatalf("Assemble(nil) = %d samples, %+v", track.Len(), layout)
	}
}

func TestPlanMatchesEstimate(t *testing.T) {
	a := NewAssembler(DefaultPauseRule())
	layout := a.Plan([]ClipInfo{
		{Index: 0, Role: script.RoleHost, Text: "Hello there.", Duration: EstimateDuration("Hello there.")},
	})
	want := 800*time.Millisecond + DefaultLongPause
	if layout.Total != want {
		t.Fatalf("Plan total = %s, want %s", layout.Total, want)
	}
}

func TestEstimateDuration(t *testing.T) {
	if got := EstimateDuration("one two three four five"); got != 2*time.Second {
		t.Errorf("EstimateDuration(words) = %s, want 2s", got)
	}
	if got := EstimateDuration("今日天氣"); got != time.Second {
		t.Errorf("EstimateDuration(cjk) = %s, want 1s", got)
	}
	if got := EstimateDuration(""); got != 0 {
		t.Errorf("EstimateDuration(empty) = %s", got)
	}
}

func TestMixWithoutBedKeepsVoice(t *testing.T) {
	voice := audio.Tone(rate, 220, 2*time.Second, 0.5)
	m := NewMixer(DefaultMixConfig())

	got := m.Mix(voice, nil)
	if got.Duration() != voice.Duration() {
		t.Fatalf("Mix(nil bed) = %s, want %s", got.Duration(), voice.Duration())
	}
	empty := audio.Track{SampleRate: rate}
	if got := m.Mix(voice, &empty); got.Len() != voice.Len() {
		t.Fatalf("Mix(empty bed) changed length")
	}
}

func TestMixLength(t *testing.T) {
	voice := audio.Tone(rate, 220, 5*time.Second, 0.5)
	bed := audio.AmbientPad(16000, time.Second)
	tests := []struct {
		name string
		cfg  MixConfig
		want time.Duration
	}{
		{"defaults", DefaultMixConfig(), 8 * time.Second},
		{"offset past tail", MixConfig{AttenuationDB: -24, TailPadding: time.Second, Offset: 2 * time.Second}, 7 * time.Second},
		{"no tail", MixConfig{AttenuationDB: -24}, 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewMixer(tt.cfg).Mix(voice, &bed)
			if got.SampleRate != rate {
				t.Fatalf("rate = %d, want voice rate %d", got.SampleRate, rate)
			}
			if got.Duration() != tt.want {
				t.Fatalf("duration = %s, want %s", got.Duration(), tt.want)
			}
			if got.Duration() < tt.cfg.Offset+voice.Duration() {
				t.Fatalf("mix shorter than offset plus voice")
			}
		})
	}
}

func TestMixFadesBedToSilence(t *testing.T) {
	voice := audio.Tone(rate, 220, time.Second, 0.5)
	bed := audio.Tone(rate, 110, 300*time.Millisecond, 0.9)
	got := NewMixer(DefaultMixConfig()).Mix(voice, &bed)
	if last := got.Samples[got.Len()-1]; last != 0 {
		t.Fatalf("last sample = %v, want 0", last)
	}
	// the bed is ducked well below the voice
	pre := audio.Track{SampleRate: rate, Samples: got.Samples[:audio.SamplesFor(rate, DefaultVoiceOffset)]}
	if pre.Peak() > 0.9*0.1 {
		t.Fatalf("bed peak before voice = %v, want ducked", pre.Peak())
	}
}

func TestFormatDuration(t *testing.T) {
	if got := FormatDuration(125 * time.Second); got != "2:05" {
		t.Fatalf("FormatDuration = %q", got)
	}
}

func TestFFmpegRoundTrip(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not installed")
	}
	f := NewFFmpeg()
	out := filepath.Join(t.TempDir(), "episode.mp3")
	ctx := context.Background()

	if err := f.EncodeMP3(ctx, audio.Tone(audio.DefaultSampleRate, 440, 2*time.Second, 0.5), out); err != nil {
		t.Fatalf("EncodeMP3() error = %v", err)
	}
	d, err := f.ProbeDuration(ctx, out)
	if err != nil {
		t.Fatalf("ProbeDuration() error = %v", err)
	}
	if d < 1900*time.Millisecond || d > 2200*time.Millisecond {
		t.Fatalf("duration = %s, want ~2s", d)
	}
	track, err := f.DecodeFile(ctx, out)
	if err != nil || track.Empty() {
		t.Fatalf("DecodeFile() = %d samples, %v", track.Len(), err)
	}
}
