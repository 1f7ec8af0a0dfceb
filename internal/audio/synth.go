package audio

import (
	"math"
	"time"
)

// Tone returns a sine wave at freq Hz with peak amplitude amp.
func Tone(rate int, freq float64, d time.Duration, amp float32) Track {
	n := SamplesFor(rate, d)
	out := make([]float32, n)
	for i := range out {
		out[i] = amp * float32(math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return Track{SampleRate: rate, Samples: out}
}

// Chime is the cue rendered for sound-effect markers: two short decaying
// notes a fifth apart.
func Chime(rate int) Track {
	var out Track
	out.SampleRate = rate
	for _, freq := range []float64{880, 1318.5} {
		note := Tone(rate, freq, 220*time.Millisecond, 0.3)
		n := float64(len(note.Samples))
		for i := range note.Samples {
			note.Samples[i] *= float32(math.Exp(-5 * float64(i) / n))
		}
		out.Append(note)
	}
	return out
}

// AmbientPad synthesizes a soft, seamlessly loopable chord bed. Every partial
// completes a whole number of cycles over d when d is a whole number of
// seconds, so looping it end to end has no click.
func AmbientPad(rate int, d time.Duration) Track {
	chord := []float64{110, 165, 220, 277, 330}
	n := SamplesFor(rate, d)
	out := make([]float32, n)
	secs := float64(n) / float64(rate)
	for i := range out {
		t := float64(i) / float64(rate)
		// one slow swell per loop
		lfo := 0.75 + 0.25*math.Sin(2*math.Pi*t/secs)
		var s float64
		for k, f := range chord {
			s += math.Sin(2*math.Pi*f*t) / float64(k+2)
		}
		out[i] = float32(0.2 * lfo * s)
	}
	return Track{SampleRate: rate, Samples: out}
}
