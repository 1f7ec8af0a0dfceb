package tts

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"

	"github.com/apresai/briefcast/internal/audio"
)

const (
	pollyDefaultVoiceHost    = "Amy"
	pollyDefaultVoiceAnalyst = "Brian"
	pollySampleRate          = 16000
)

// pollyVoiceLang maps voice IDs to their language codes.
var pollyVoiceLang = map[string]types.LanguageCode{
	"Amy":      types.LanguageCodeEnGb,
	"Brian":    types.LanguageCodeEnGb,
	"Emma":     types.LanguageCodeEnGb,
	"Arthur":   types.LanguageCodeEnGb,
	"Matthew":  types.LanguageCodeEnUs,
	"Ruth":     types.LanguageCodeEnUs,
	"Olivia":   types.LanguageCodeEnAu,
	"Kajal":    types.LanguageCodeEnIn,
	"Hiujin":   types.LanguageCodeYueCn,
	"Zhiyu":    types.LanguageCodeCmnCn,
}

// PollyAPI is the subset of the Polly client PollyProvider uses.
type PollyAPI interface {
	SynthesizeSpeech(ctx context.Context, in *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollyProvider implements Provider using AWS Polly. Prosody goes through
// SSML; neural voices honour rate but not pitch.
type PollyProvider struct {
	client PollyAPI
	engine types.Engine
}

func NewPollyProvider(ctx context.Context, cfg ProviderConfig) (*PollyProvider, error) {
	var awsCfg aws.Config
	if cfg.AWS != nil {
		awsCfg = *cfg.AWS
	} else {
		loaded, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config for Polly: %w", err)
		}
		awsCfg = loaded
	}
	engine := types.EngineNeural
	if cfg.PollyEngine != "" {
		engine = types.Engine(cfg.PollyEngine)
	}
	return &PollyProvider{client: polly.NewFromConfig(awsCfg), engine: engine}, nil
}

func (p *PollyProvider) Name() string { return "polly" }

func (p *PollyProvider) DefaultVoices() VoiceMap {
	return VoiceMap{
		Host:    Voice{ID: pollyDefaultVoiceHost, Name: pollyDefaultVoiceHost},
		Analyst: Voice{ID: pollyDefaultVoiceAnalyst, Name: pollyDefaultVoiceAnalyst},
	}
}

func (p *PollyProvider) Synthesize(ctx context.Context, text string, voice Voice) (AudioResult, error) {
	lang, ok := pollyVoiceLang[voice.ID]
	if !ok {
		lang = types.LanguageCodeEnGb
	}

	ssml, err := pollySSML(text, voice, p.engine)
	if err != nil {
		return AudioResult{}, err
	}

	input := &polly.SynthesizeSpeechInput{
		Engine:       p.engine,
		OutputFormat: types.OutputFormatPcm,
		SampleRate:   aws.String(strconv.Itoa(pollySampleRate)),
		Text:         aws.String(ssml),
		TextType:     types.TextTypeSsml,
		VoiceId:      types.VoiceId(voice.ID),
		LanguageCode: lang,
	}

	resp, err := p.client.SynthesizeSpeech(ctx, input)
	if err != nil {
		return AudioResult{}, fmt.Errorf("Polly synthesize: %w", err)
	}
	defer resp.AudioStream.Close()

	data, err := io.ReadAll(resp.AudioStream)
	if err != nil {
		return AudioResult{}, fmt.Errorf("Polly read audio: %w", err)
	}

	return AudioResult{Data: data, Format: audio.FormatPCM, SampleRate: pollySampleRate}, nil
}

// pollySSML wraps text in a prosody element. Pitch is only emitted for the
// standard engine, which is the only one that accepts it.
func pollySSML(text string, voice Voice, engine types.Engine) (string, error) {
	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(text)); err != nil {
		return "", fmt.Errorf("escape SSML text: %w", err)
	}

	attrs := ""
	if voice.RatePercent != 0 {
		attrs += fmt.Sprintf(` rate="%d%%"`, 100+voice.RatePercent)
	}
	if voice.PitchSemitones != 0 && engine == types.EngineStandard {
		attrs += fmt.Sprintf(` pitch="%+.0f%%"`, voice.PitchSemitones*6)
	}
	if attrs == "" {
		return "<speak>" + escaped.String() + "</speak>", nil
	}
	return "<speak><prosody" + attrs + ">" + escaped.String() + "</prosody></speak>", nil
}

func (p *PollyProvider) Close() error { return nil }

func pollyAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "Amy", Name: "Amy", Gender: "female", Description: "en-GB, Neural", DefaultFor: "host"},
		{ID: "Brian", Name: "Brian", Gender: "male", Description: "en-GB, Neural", DefaultFor: "analyst"},
		{ID: "Emma", Name: "Emma", Gender: "female", Description: "en-GB, Neural"},
		{ID: "Arthur", Name: "Arthur", Gender: "male", Description: "en-GB, Neural"},
		{ID: "Matthew", Name: "Matthew", Gender: "male", Description: "en-US, Neural"},
		{ID: "Olivia", Name: "Olivia", Gender: "female", Description: "en-AU, Neural"},
		{ID: "Hiujin", Name: "Hiujin", Gender: "female", Description: "yue-CN (Cantonese), Neural"},
		{ID: "Zhiyu", Name: "Zhiyu", Gender: "female", Description: "cmn-CN (Mandarin), Neural"},
	}
}
