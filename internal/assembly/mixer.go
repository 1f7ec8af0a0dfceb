package assembly

import (
	"time"

	"github.com/apresai/briefcast/internal/audio"
)

// Mix defaults, tuned by ear.
const (
	DefaultAttenuationDB = -24.0
	DefaultTailPadding   = 3 * time.Second
	DefaultFadeOut       = 3 * time.Second
	DefaultVoiceOffset   = 800 * time.Millisecond
)

type MixConfig struct {
	AttenuationDB float64       `mapstructure:"attenuation_db" json:"attenuation_db"`
	TailPadding   time.Duration `mapstructure:"tail_padding" json:"tail_padding"`
	FadeOut       time.Duration `mapstructure:"fade_out" json:"fade_out"`
	Offset        time.Duration `mapstructure:"offset" json:"offset"`
}

func DefaultMixConfig() MixConfig {
	return MixConfig{
		AttenuationDB: DefaultAttenuationDB,
		TailPadding:   DefaultTailPadding,
		FadeOut:       DefaultFadeOut,
		Offset:        DefaultVoiceOffset,
	}
}

type Mixer struct {
	Config MixConfig
}

func NewMixer(cfg MixConfig) *Mixer {
	return &Mixer{Config: cfg}
}

// Mix lays voice over the background bed. With no bed the voice track is
// returned as is. The bed is ducked, looped to the voice length plus the
// tail, faded out, and the voice starts Offset into it. The result is never
// shorter than Offset plus the voice.
func (m *Mixer) Mix(voice audio.Track, bed *audio.Track) audio.Track {
	if bed == nil || bed.Empty() || voice.Empty() {
		return voice
	}
	cfg := m.Config
	rate := voice.SampleRate

	ducked := bed.Resample(rate).Gain(cfg.AttenuationDB)
	n := voice.Len() + audio.SamplesFor(rate, cfg.TailPadding)
	looped := ducked.LoopTo(n).FadeOut(cfg.FadeOut)

	return audio.Overlay(looped, voice, cfg.Offset)
}
