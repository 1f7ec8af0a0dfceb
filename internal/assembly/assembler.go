// Package assembly joins synthesized clips into one voice track, mixes it
// over a background bed and encodes the result.
package assembly

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/apresai/briefcast/internal/audio"
	"github.com/apresai/briefcast/internal/script"
	"github.com/apresai/briefcast/internal/tts"
)

// Pause defaults. They were tuned by ear and are overridable in the show file.
const (
	DefaultShortPause        = 250 * time.Millisecond
	DefaultLongPause         = 450 * time.Millisecond
	DefaultLongClipThreshold = 2500 * time.Millisecond
)

// PauseRule picks the silence that follows a clip.
type PauseRule struct {
	ShortPause        time.Duration `mapstructure:"short_pause" json:"short_pause"`
	LongPause         time.Duration `mapstructure:"long_pause" json:"long_pause"`
	LongClipThreshold time.Duration `mapstructure:"long_clip_threshold" json:"long_clip_threshold"`
}

func DefaultPauseRule() PauseRule {
	return PauseRule{
		ShortPause:        DefaultShortPause,
		LongPause:         DefaultLongPause,
		LongClipThreshold: DefaultLongClipThreshold,
	}
}

// sentenceEndRe matches a full stop or question, optionally closed by quotes
// or brackets.
var sentenceEndRe = regexp.MustCompile(`[.!?。！？][\p{Pf}\p{Pe}"']*$`)

// Gap returns LongPause after a long clip or a finished sentence, ShortPause
// otherwise.
func (r PauseRule) Gap(text string, clip time.Duration) time.Duration {
	if clip > r.LongClipThreshold || EndsSentence(text) {
		return r.LongPause
	}
	return r.ShortPause
}

func EndsSentence(text string) bool {
	return sentenceEndRe.MatchString(strings.TrimRightFunc(text, unicode.IsSpace))
}

// ClipInfo is what the layout needs to know about a clip.
type ClipInfo struct {
	Index    int
	Role     script.Role
	Text     string
	Duration time.Duration
}

type LayoutEntry struct {
	Index    int           `json:"index"`
	Role     script.Role   `json:"role"`
	Start    time.Duration `json:"start"`
	Duration time.Duration `json:"duration"`
	Gap      time.Duration `json:"gap"`
}

// Layout is the reproducible structure of an assembled track.
type Layout struct {
	Entries []LayoutEntry `json:"entries"`
	Total   time.Duration `json:"total"`
}

type Assembler struct {
	Pauses     PauseRule
	SampleRate int
}

func NewAssembler(p PauseRule) *Assembler {
	return &Assembler{Pauses: p, SampleRate: audio.DefaultSampleRate}
}

// Assemble concatenates clips in the order given, each followed by its gap.
func (a *Assembler) Assemble(clips []tts.Clip) (audio.Track, Layout) {
	out := audio.Track{SampleRate: a.rate()}
	infos := make([]ClipInfo, len(clips))
	for i, c := range clips {
		out.Append(c.Track)
		// measure after conversion so the layout matches the samples
		d := c.Track.Resample(out.SampleRate).Duration()
		out.AppendSilence(a.Pauses.Gap(c.Text, d))
		infos[i] = ClipInfo{Index: c.Index, Role: c.Role, Text: c.Text, Duration: d}
	}
	return out, a.Plan(infos)
}

// Plan computes the layout without audio. Durations are quantized to whole
// samples the same way Assemble renders them.
func (a *Assembler) Plan(clips []ClipInfo) Layout {
	rate := a.rate()
	var layout Layout
	var pos int
	for _, c := range clips {
		gap := a.Pauses.Gap(c.Text, c.Duration)
		n := nearestSamples(rate, c.Duration)
		g := audio.SamplesFor(rate, gap)
		layout.Entries = append(layout.Entries, LayoutEntry{
			Index:    c.Index,
			Role:     c.Role,
			Start:    samplesToDuration(rate, pos),
			Duration: c.Duration,
			Gap:      gap,
		})
		pos += n + g
	}
	layout.Total = samplesToDuration(rate, pos)
	return layout
}

func (a *Assembler) rate() int {
	if a.SampleRate > 0 {
		return a.SampleRate
	}
	return audio.DefaultSampleRate
}

// nearestSamples inverts Track.Duration, which rounds down.
func nearestSamples(rate int, d time.Duration) int {
	return int((int64(d)*int64(rate) + int64(time.Second)/2) / int64(time.Second))
}

func samplesToDuration(rate, n int) time.Duration {
	return time.Duration(int64(n) * int64(time.Second) / int64(rate))
}

// EstimateDuration guesses speaking time for a dry run: about 2.5 words per
// second for spaced scripts and 4 characters per second for CJK text.
func EstimateDuration(text string) time.Duration {
	var words, cjk int
	inWord := false
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			cjk++
			inWord = false
		case unicode.IsSpace(r):
			inWord = false
		case !inWord:
			inWord = true
			words++
		}
	}
	secs := float64(words)/2.5 + float64(cjk)/4
	return time.Duration(secs * float64(time.Second)).Round(time.Millisecond)
}
