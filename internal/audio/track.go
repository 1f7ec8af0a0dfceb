// Package audio holds the in-memory PCM representation used by the assembler
// and the mixer, plus the small amount of sample arithmetic they need.
package audio

import (
	"math"
	"time"
)

// DefaultSampleRate matches the raw PCM returned by the Gemini TTS endpoints
// and the rate FFmpeg decodes to.
const DefaultSampleRate = 24000

// Track is mono audio as float32 samples in [-1, 1].
type Track struct {
	SampleRate int
	Samples    []float32
}

// NewSilence returns d of digital silence.
func NewSilence(rate int, d time.Duration) Track {
	return Track{SampleRate: rate, Samples: make([]float32, SamplesFor(rate, d))}
}

// SamplesFor converts a duration to a sample count, rounding down.
func SamplesFor(rate int, d time.Duration) int {
	if d <= 0 || rate <= 0 {
		return 0
	}
	return int(int64(d) * int64(rate) / int64(time.Second))
}

// Len returns the number of samples.
func (t Track) Len() int { return len(t.Samples) }

// Empty reports whether the track has no samples.
func (t Track) Empty() bool { return len(t.Samples) == 0 }

// Duration returns the playing time of the track.
func (t Track) Duration() time.Duration {
	if t.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(len(t.Samples)) * int64(time.Second) / int64(t.SampleRate))
}

// Clone returns a deep copy.
func (t Track) Clone() Track {
	out := make([]float32, len(t.Samples))
	copy(out, t.Samples)
	return Track{SampleRate: t.SampleRate, Samples: out}
}

// Append adds o to the end of t, converting o's sample rate when it differs.
func (t *Track) Append(o Track) {
	if t.SampleRate == 0 {
		t.SampleRate = o.SampleRate
	}
	if o.SampleRate != t.SampleRate {
		o = o.Resample(t.SampleRate)
	}
	t.Samples = append(t.Samples, o.Samples...)
}

// AppendSilence adds d of silence to the end of t.
func (t *Track) AppendSilence(d time.Duration) {
	t.Samples = append(t.Samples, make([]float32, SamplesFor(t.SampleRate, d))...)
}

// Gain returns a copy scaled by db decibels.
func (t Track) Gain(db float64) Track {
	factor := float32(math.Pow(10, db/20))
	out := t.Clone()
	for i := range out.Samples {
		out.Samples[i] *= factor
	}
	return out
}

// LoopTo repeats the track end to end and truncates the result to exactly n
// samples. An empty track loops to silence.
func (t Track) LoopTo(n int) Track {
	out := Track{SampleRate: t.SampleRate, Samples: make([]float32, n)}
	if len(t.Samples) == 0 {
		return out
	}
	for filled := 0; filled < n; {
		filled += copy(out.Samples[filled:], t.Samples)
	}
	return out
}

// FadeOut returns a copy whose final d ramps linearly down to zero.
func (t Track) FadeOut(d time.Duration) Track {
	out := t.Clone()
	n := SamplesFor(t.SampleRate, d)
	if n > len(out.Samples) {
		n = len(out.Samples)
	}
	if n == 0 {
		return out
	}
	start := len(out.Samples) - n
	for i := 0; i < n; i++ {
		out.Samples[start+i] *= float32(n-1-i) / float32(n)
	}
	return out
}

// Overlay mixes top into base starting at offset. The result is long enough
// to hold all of top; it is never truncated to base's length.
func Overlay(base, top Track, offset time.Duration) Track {
	if top.SampleRate != base.SampleRate && base.SampleRate != 0 {
		top = top.Resample(base.SampleRate)
	}
	rate := base.SampleRate
	if rate == 0 {
		rate = top.SampleRate
	}
	start := SamplesFor(rate, offset)
	n := len(base.Samples)
	if end := start + len(top.Samples); end > n {
		n = end
	}
	out := Track{SampleRate: rate, Samples: make([]float32, n)}
	copy(out.Samples, base.Samples)
	for i, s := range top.Samples {
		out.Samples[start+i] = clamp(out.Samples[start+i] + s)
	}
	return out
}

// Resample converts the track to rate with linear interpolation.
func (t Track) Resample(rate int) Track {
	if rate == t.SampleRate || t.SampleRate == 0 || len(t.Samples) == 0 {
		return Track{SampleRate: rate, Samples: t.Samples}
	}
	ratio := float64(t.SampleRate) / float64(rate)
	n := int(float64(len(t.Samples)) / ratio)
	out := make([]float32, n)
	last := len(t.Samples) - 1
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= last {
			out[i] = t.Samples[last]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = t.Samples[j]*(1-frac) + t.Samples[j+1]*frac
	}
	return Track{SampleRate: rate, Samples: out}
}

// Peak returns the largest absolute sample value.
func (t Track) Peak() float32 {
	var peak float32
	for _, s := range t.Samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}

func clamp(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
