package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/apresai/briefcast/internal/assembly"
	"github.com/apresai/briefcast/internal/ingest"
	"github.com/apresai/briefcast/internal/script"
	"github.com/apresai/briefcast/internal/textnorm"
	"github.com/apresai/briefcast/internal/tts"
)

// Show is everything that describes one podcast: who speaks, how they
// sound, how the episode is timed and where it is published.
type Show struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	Prefix      string `mapstructure:"prefix"`
	OutputDir   string `mapstructure:"output_dir"`

	Feeds        []string `mapstructure:"feeds"`
	ItemsPerFeed int      `mapstructure:"items_per_feed"`
	Topic        string   `mapstructure:"topic"`
	Length       string   `mapstructure:"length"`

	Script       ScriptConfig                     `mapstructure:"script"`
	TTS          TTSConfig                        `mapstructure:"tts"`
	Cast         script.CastConfig                `mapstructure:"cast"`
	Voices       map[script.Role]tts.VoiceProfile `mapstructure:"voices"`
	Replacements []textnorm.Replacement           `mapstructure:"replacements"`
	Pauses       assembly.PauseRule               `mapstructure:"pauses"`
	Mix          assembly.MixConfig               `mapstructure:"mix"`
	Background   BackgroundConfig                 `mapstructure:"background"`
	Publish      PublishConfig                    `mapstructure:"publish"`
}

type ScriptConfig struct {
	// Providers is the generator fallback order.
	Providers []string          `mapstructure:"providers"`
	Models    map[string]string `mapstructure:"models"`
}

type TTSConfig struct {
	Provider     string `mapstructure:"provider"`
	Model        string `mapstructure:"model"`
	LanguageCode string `mapstructure:"language_code"`
	PollyEngine  string `mapstructure:"polly_engine"`
	Workers      int    `mapstructure:"workers"`
}

type BackgroundConfig struct {
	URL        string `mapstructure:"url"`
	Synthesize bool   `mapstructure:"synthesize"`
	CacheDir   string `mapstructure:"cache_dir"`
}

type PublishConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	FeedFile string `mapstructure:"feed_file"`
	// Keep caps the number of episodes listed in the feed; 0 keeps all.
	Keep int `mapstructure:"keep"`
}

// DefaultModels maps generator names to the model used when the show file
// names none.
var DefaultModels = map[string]string{
	"claude": "claude-haiku-4-5-20251001",
	"gemini": "gemini-2.5-flash",
	"nova":   "us.amazon.nova-lite-v1:0",
	"openai": "gpt-4o-mini",
}

func DefaultShow() Show {
	return Show{
		Name:         "HK Daily Brief",
		Description:  "Daily AI-generated news for Hong Kong.",
		Prefix:       "briefing",
		OutputDir:    ".",
		Feeds:        []string{"https://rthk.hk/rthk/news/rss/e_expressnews_elocal.xml", "https://feeds.bbci.co.uk/news/world/rss.xml"},
		ItemsPerFeed: ingest.DefaultItemsPerFeed,
		Length:       "short",
		Script: ScriptConfig{
			Providers: []string{"claude", "gemini", "nova", "openai"},
			Models:    map[string]string{},
		},
		TTS:          TTSConfig{Provider: "google", Workers: 1},
		Cast:         script.DefaultCastConfig(),
		Voices:       map[script.Role]tts.VoiceProfile{},
		Replacements: append([]textnorm.Replacement(nil), textnorm.DefaultReplacements...),
		Pauses:       assembly.DefaultPauseRule(),
		Mix:          assembly.DefaultMixConfig(),
		Background:   BackgroundConfig{Synthesize: true},
		Publish:      PublishConfig{FeedFile: "feed.xml"},
	}
}

// LoadShow reads a YAML show file on top of DefaultShow. An empty path
// searches ShowFileCandidates and falls back to the defaults when none exist.
func LoadShow(path string) (Show, error) {
	show := DefaultShow()

	v := viper.New()
	v.SetConfigType("yaml")
	if path == "" {
		path = firstExisting(ShowFileCandidates())
		if path == "" {
			return show, nil
		}
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Show{}, fmt.Errorf("read show file %s: %w", path, err)
	}
	if err := v.Unmarshal(&show); err != nil {
		return Show{}, fmt.Errorf("decode show file %s: %w", path, err)
	}
	if err := show.Validate(); err != nil {
		return Show{}, fmt.Errorf("show file %s: %w", path, err)
	}
	return show, nil
}

// Validate checks the settings that would otherwise fail deep inside a run.
func (s Show) Validate() error {
	var errs []error
	if strings.TrimSpace(s.Prefix) == "" || strings.ContainsAny(s.Prefix, `/\`) {
		errs = append(errs, fmt.Errorf("prefix %q must be a plain file name", s.Prefix))
	}
	if s.Pauses.ShortPause < 0 || s.Pauses.LongPause < 0 || s.Pauses.LongClipThreshold < 0 {
		errs = append(errs, errors.New("pauses must not be negative"))
	}
	if s.Mix.AttenuationDB > 0 {
		errs = append(errs, fmt.Errorf("mix attenuation %.1f dB would amplify the bed", s.Mix.AttenuationDB))
	}
	if s.Mix.TailPadding < 0 || s.Mix.FadeOut < 0 || s.Mix.Offset < 0 {
		errs = append(errs, errors.New("mix durations must not be negative"))
	}
	if s.TTS.Workers < 0 {
		errs = append(errs, errors.New("tts workers must not be negative"))
	}
	if len(s.Script.Providers) == 0 {
		errs = append(errs, errors.New("script providers must name at least one generator"))
	}
	return errors.Join(errs...)
}

// Model returns the configured model for a generator.
func (s Show) Model(provider string) string {
	if m := s.Script.Models[provider]; m != "" {
		return m
	}
	return DefaultModels[provider]
}

func firstExisting(paths []string) string {
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}
