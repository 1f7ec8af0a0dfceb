package tts

import (
	"context"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"

	"github.com/apresai/briefcast/internal/audio"
)

const (
	googleDefaultVoiceHost    = "en-GB-Chirp3-HD-Aoede"
	googleDefaultVoiceAnalyst = "en-GB-Chirp3-HD-Charon"
	googleDefaultLanguage     = "en-GB"
)

// GoogleProvider implements Provider using Google Cloud TTS. It returns raw
// 24 kHz LINEAR16 so clips need no transcoding.
type GoogleProvider struct {
	client   *texttospeech.Client
	language string
}

func NewGoogleProvider(ctx context.Context, cfg ProviderConfig) (*GoogleProvider, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create Google TTS client: %w", err)
	}
	lang := cfg.LanguageCode
	if lang == "" {
		lang = googleDefaultLanguage
	}
	return &GoogleProvider{client: client, language: lang}, nil
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) DefaultVoices() VoiceMap {
	return VoiceMap{
		Host:    Voice{ID: googleDefaultVoiceHost, Name: "Aoede"},
		Analyst: Voice{ID: googleDefaultVoiceAnalyst, Name: "Charon"},
	}
}

func (p *GoogleProvider) Synthesize(ctx context.Context, text string, voice Voice) (AudioResult, error) {
	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: p.language,
			Name:         voice.ID,
		},
		AudioConfig: googleAudioConfig(voice),
	}

	resp, err := p.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return AudioResult{}, fmt.Errorf("Google TTS synthesize: %w", err)
	}

	// LINEAR16 responses carry a WAV header.
	return AudioResult{Data: resp.AudioContent, Format: audio.Sniff(resp.AudioContent)}, nil
}

func googleAudioConfig(voice Voice) *texttospeechpb.AudioConfig {
	cfg := &texttospeechpb.AudioConfig{
		AudioEncoding:   texttospeechpb.AudioEncoding_LINEAR16,
		SampleRateHertz: audio.DefaultSampleRate,
	}
	if voice.RatePercent != 0 {
		cfg.SpeakingRate = speedFactor(voice.RatePercent, 0.25, 4)
	}
	if voice.PitchSemitones != 0 {
		cfg.Pitch = voice.PitchSemitones
	}
	return cfg
}

func (p *GoogleProvider) Close() error { return p.client.Close() }

func googleAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "en-GB-Chirp3-HD-Aoede", Name: "Aoede", Gender: "female", Description: "Bright, expressive female voice", DefaultFor: "host"},
		{ID: "en-GB-Chirp3-HD-Charon", Name: "Charon", Gender: "male", Description: "Informative, clear male narrator", DefaultFor: "analyst"},
		{ID: "en-GB-Chirp3-HD-Kore", Name: "Kore", Gender: "female", Description: "Firm, confident female voice"},
		{ID: "en-GB-Chirp3-HD-Leda", Name: "Leda", Gender: "female", Description: "Youthful, bright female voice"},
		{ID: "en-GB-Chirp3-HD-Fenrir", Name: "Fenrir", Gender: "male", Description: "Deep, resonant male voice"},
		{ID: "en-GB-Chirp3-HD-Orus", Name: "Orus", Gender: "male", Description: "Warm, steady male narrator"},
		{ID: "en-GB-Neural2-A", Name: "Neural2-A", Gender: "female", Description: "Neural2, supports pitch"},
		{ID: "en-GB-Neural2-B", Name: "Neural2-B", Gender: "male", Description: "Neural2, supports pitch"},
	}
}
