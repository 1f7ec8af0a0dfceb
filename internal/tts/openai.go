package tts

import (
	"context"
	"fmt"
	"io"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/apresai/briefcast/internal/audio"
)

const (
	openAIDefaultVoiceHost    = "nova"
	openAIDefaultVoiceAnalyst = "onyx"

	// PCM responses are s16le mono at 24 kHz.
	openAISampleRate = 24000
)

// OpenAIProvider implements Provider using the OpenAI speech endpoint. Rate
// maps to speed; pitch is not supported.
type OpenAIProvider struct {
	client *openai.Client
	model  openai.SpeechModel
}

func NewOpenAIProvider(cfg ProviderConfig) (*OpenAIProvider, error) {
	key := cfg.OpenAIAPIKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai TTS provider")
	}
	model := openai.TTSModel1
	if cfg.Model != "" {
		model = openai.SpeechModel(cfg.Model)
	}
	return &OpenAIProvider{client: openai.NewClient(key), model: model}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) DefaultVoices() VoiceMap {
	return VoiceMap{
		Host:    Voice{ID: openAIDefaultVoiceHost, Name: "Nova"},
		Analyst: Voice{ID: openAIDefaultVoiceAnalyst, Name: "Onyx"},
	}
}

func (p *OpenAIProvider) Synthesize(ctx context.Context, text string, voice Voice) (AudioResult, error) {
	resp, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          p.model,
		Input:          text,
		Voice:          openai.SpeechVoice(voice.ID),
		ResponseFormat: openai.SpeechResponseFormatPcm,
		Speed:          speedFactor(voice.RatePercent, 0.25, 4),
	})
	if err != nil {
		return AudioResult{}, fmt.Errorf("OpenAI speech: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return AudioResult{}, fmt.Errorf("read OpenAI audio: %w", err)
	}
	return AudioResult{Data: data, Format: audio.FormatPCM, SampleRate: openAISampleRate}, nil
}

func (p *OpenAIProvider) Close() error { return nil }

func openAIAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "nova", Name: "Nova", Gender: "female", Description: "Bright, energetic", DefaultFor: "host"},
		{ID: "onyx", Name: "Onyx", Gender: "male", Description: "Deep, authoritative", DefaultFor: "analyst"},
		{ID: "alloy", Name: "Alloy", Gender: "neutral", Description: "Balanced, versatile"},
		{ID: "echo", Name: "Echo", Gender: "male", Description: "Warm, clear"},
		{ID: "fable", Name: "Fable", Gender: "male", Description: "British, expressive"},
		{ID: "shimmer", Name: "Shimmer", Gender: "female", Description: "Soft, gentle"},
	}
}
