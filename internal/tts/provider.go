package tts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/apresai/briefcast/internal/audio"
)

// Voice is a provider voice plus the prosody to apply to it.
type Voice struct {
	ID             string  // Provider-specific voice identifier
	Name           string  // Human-readable label
	RatePercent    int     // -50..+100, 0 is the engine default
	PitchSemitones float64 // ignored by engines without pitch control
}

// VoiceMap holds a provider's default voices for the two speaking roles.
type VoiceMap struct {
	Host    Voice
	Analyst Voice
}

// AudioResult is the output of a synthesis call.
type AudioResult struct {
	Data       []byte
	Format     audio.Format
	SampleRate int // set for FormatPCM
}

// Provider synthesizes speech for one piece of text.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, text string, voice Voice) (AudioResult, error)
	DefaultVoices() VoiceMap
	Close() error
}

// VoiceInfo describes an available voice for display in the registry.
type VoiceInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Gender      string `json:"gender"`
	Description string `json:"description"`
	DefaultFor  string `json:"default_for,omitempty"`
}

// ProviderNames lists the engines NewProvider accepts.
var ProviderNames = []string{"google", "polly", "elevenlabs", "gemini", "gemini-vertex", "openai"}

// AvailableVoices returns the voice catalog for the named provider.
func AvailableVoices(providerName string) ([]VoiceInfo, error) {
	switch providerName {
	case "elevenlabs":
		return elevenLabsAvailableVoices(), nil
	case "google":
		return googleAvailableVoices(), nil
	case "gemini", "gemini-vertex":
		return geminiAvailableVoices(), nil
	case "polly":
		return pollyAvailableVoices(), nil
	case "openai":
		return openAIAvailableVoices(), nil
	default:
		return nil, fmt.Errorf("unknown TTS provider %q", providerName)
	}
}

// ProviderConfig carries credentials and engine options. Empty keys fall back
// to the provider's documented environment variable at construction time.
type ProviderConfig struct {
	ElevenLabsAPIKey string
	GeminiAPIKey     string
	OpenAIAPIKey     string
	GCPProject       string
	GCPRegion        string
	Model            string
	LanguageCode     string
	PollyEngine      string
	AWS              *aws.Config
}

// Retry constants shared by all providers.
const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 1 * time.Second
	defaultBackoffMulti   = 2
	defaultMaxBackoff     = 10 * time.Second
)

// RetryableError signals that the operation can be retried.
type RetryableError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// WithRetry executes fn with exponential backoff on RetryableError. Attempts
// are bounded and sequential.
func WithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	backoff := defaultInitialBackoff

	for attempt := 1; attempt <= defaultMaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var re *RetryableError
		if !errors.As(err, &re) {
			return err
		}
		lastErr = err

		if attempt < defaultMaxAttempts {
			wait := backoff
			if re.RetryAfter > wait {
				wait = re.RetryAfter
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			backoff *= time.Duration(defaultBackoffMulti)
			if backoff > defaultMaxBackoff {
				backoff = defaultMaxBackoff
			}
		}
	}

	return lastErr
}

// NewProvider creates a TTS provider by name.
func NewProvider(ctx context.Context, name string, cfg ProviderConfig) (Provider, error) {
	switch name {
	case "elevenlabs":
		return NewElevenLabsProvider(cfg), nil
	case "google":
		return NewGoogleProvider(ctx, cfg)
	case "gemini":
		return NewGeminiProvider(cfg)
	case "gemini-vertex":
		return NewVertexProvider(ctx, cfg)
	case "polly":
		return NewPollyProvider(ctx, cfg)
	case "openai":
		return NewOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown TTS provider %q: choose one of %v", name, ProviderNames)
	}
}

// speedFactor converts a percent delta into the multiplier most engines take,
// clamped to [lo, hi].
func speedFactor(ratePercent int, lo, hi float64) float64 {
	f := 1 + float64(ratePercent)/100
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}
