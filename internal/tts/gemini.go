package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/apresai/briefcast/internal/audio"
)

const (
	geminiDefaultVoiceHost    = "Aoede"
	geminiDefaultVoiceAnalyst = "Charon"

	geminiDefaultModel  = "gemini-2.5-flash-preview-tts"
	geminiStudioBaseURL = "https://generativelanguage.googleapis.com/v1beta/models/"

	vertexDefaultModel  = "gemini-2.5-flash-tts"
	vertexDefaultRegion = "us-central1"
	vertexScope         = "https://www.googleapis.com/auth/cloud-platform"

	// Gemini TTS always answers with s16le mono at 24 kHz.
	geminiSampleRate = 24000
)

// geminiRequest is the top-level request to the generateContent TTS endpoint.
type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenConfig struct {
	ResponseModalities []string           `json:"responseModalities"`
	SpeechConfig       geminiSpeechConfig `json:"speechConfig"`
}

type geminiSpeechConfig struct {
	VoiceConfig *geminiVoiceConfig `json:"voiceConfig,omitempty"`
}

type geminiVoiceConfig struct {
	PrebuiltVoiceConfig geminiPrebuiltVoice `json:"prebuiltVoiceConfig"`
}

type geminiPrebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"` // base64-encoded PCM
				} `json:"inlineData,omitempty"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GeminiProvider implements Provider for Gemini TTS. The same request goes to
// AI Studio (API key) or Vertex AI (OAuth2 application default credentials).
// Gemini has no numeric prosody controls, so rate is phrased as a style
// instruction and pitch is ignored.
type GeminiProvider struct {
	name       string
	endpoint   string
	apiKey     string
	tokens     oauth2.TokenSource
	httpClient *http.Client
}

func NewGeminiProvider(cfg ProviderConfig) (*GeminiProvider, error) {
	key := cfg.GeminiAPIKey
	if key == "" {
		key = os.Getenv("GEMINI_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini TTS provider")
	}
	model := geminiDefaultModel
	if cfg.Model != "" {
		model = cfg.Model
	}
	return &GeminiProvider{
		name:       "gemini",
		endpoint:   geminiStudioBaseURL + model + ":generateContent",
		apiKey:     key,
		httpClient: geminiHTTPClient(),
	}, nil
}

// NewVertexProvider authenticates with application default credentials.
func NewVertexProvider(ctx context.Context, cfg ProviderConfig) (*GeminiProvider, error) {
	project := cfg.GCPProject
	if project == "" {
		project = os.Getenv("GCP_PROJECT")
	}
	if project == "" {
		return nil, fmt.Errorf("GCP_PROJECT is required for the gemini-vertex TTS provider")
	}
	region := cfg.GCPRegion
	if region == "" {
		region = vertexDefaultRegion
	}
	model := vertexDefaultModel
	if cfg.Model != "" {
		model = cfg.Model
	}

	ts, err := google.DefaultTokenSource(ctx, vertexScope)
	if err != nil {
		return nil, fmt.Errorf("get default token source: %w (hint: run 'gcloud auth application-default login' or set GOOGLE_APPLICATION_CREDENTIALS)", err)
	}

	return &GeminiProvider{
		name: "gemini-vertex",
		endpoint: fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
			region, project, region, model),
		tokens:     oauth2.ReuseTokenSource(nil, ts),
		httpClient: geminiHTTPClient(),
	}, nil
}

func geminiHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 90 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 70 * time.Second,
			IdleConnTimeout:       30 * time.Second,
		},
	}
}

func (p *GeminiProvider) Name() string { return p.name }

func (p *GeminiProvider) DefaultVoices() VoiceMap {
	return VoiceMap{
		Host:    Voice{ID: geminiDefaultVoiceHost, Name: geminiDefaultVoiceHost},
		Analyst: Voice{ID: geminiDefaultVoiceAnalyst, Name: geminiDefaultVoiceAnalyst},
	}
}

func (p *GeminiProvider) Synthesize(ctx context.Context, text string, voice Voice) (AudioResult, error) {
	req := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: geminiStyledText(text, voice.RatePercent)}}},
		},
		GenerationConfig: geminiGenConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: geminiSpeechConfig{
				VoiceConfig: &geminiVoiceConfig{
					PrebuiltVoiceConfig: geminiPrebuiltVoice{VoiceName: voice.ID},
				},
			},
		},
	}

	data, err := p.doRequest(ctx, req)
	if err != nil {
		return AudioResult{}, err
	}
	return AudioResult{Data: data, Format: audio.FormatPCM, SampleRate: geminiSampleRate}, nil
}

func geminiStyledText(text string, ratePercent int) string {
	switch {
	case ratePercent >= 15:
		return "Read briskly: " + text
	case ratePercent <= -15:
		return "Read slowly and clearly: " + text
	default:
		return text
	}
}

func (p *GeminiProvider) doRequest(ctx context.Context, reqBody geminiRequest) ([]byte, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal Gemini request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if p.tokens != nil {
		token, err := p.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("get access token: %w", err)
		}
		token.SetAuthHeader(req)
	} else {
		req.Header.Set("x-goog-api-key", p.apiKey)
	}

	res, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &RetryableError{StatusCode: 0, Body: fmt.Sprintf("network error: %v", err)}
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusTooManyRequests ||
		res.StatusCode >= http.StatusInternalServerError {
		errBody, _ := io.ReadAll(res.Body)
		var retryAfter time.Duration
		if ra := res.Header.Get("Retry-After"); ra != "" {
			if secs, parseErr := strconv.Atoi(ra); parseErr == nil && secs > 0 {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, &RetryableError{
			StatusCode: res.StatusCode,
			Body:       string(errBody),
			RetryAfter: retryAfter,
		}
	}

	if res.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("%s API error (status %d): %s", p.name, res.StatusCode, string(errBody))
	}

	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read Gemini response: %w", err)
	}

	var resp geminiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("parse Gemini response: %w", err)
	}

	if len(resp.Candidates) == 0 ||
		len(resp.Candidates[0].Content.Parts) == 0 ||
		resp.Candidates[0].Content.Parts[0].InlineData == nil {
		return nil, fmt.Errorf("Gemini response contained no audio data")
	}

	audioBytes, err := base64.StdEncoding.DecodeString(resp.Candidates[0].Content.Parts[0].InlineData.Data)
	if err != nil {
		return nil, fmt.Errorf("decode Gemini audio base64: %w", err)
	}
	return audioBytes, nil
}

func (p *GeminiProvider) Close() error { return nil }

func geminiAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "Aoede", Name: "Aoede", Gender: "female", Description: "Bright, expressive female voice", DefaultFor: "host"},
		{ID: "Charon", Name: "Charon", Gender: "male", Description: "Informative, clear male narrator", DefaultFor: "analyst"},
		{ID: "Kore", Name: "Kore", Gender: "female", Description: "Firm, confident female voice"},
		{ID: "Leda", Name: "Leda", Gender: "female", Description: "Youthful, bright female voice"},
		{ID: "Fenrir", Name: "Fenrir", Gender: "male", Description: "Excitable, deep male voice"},
		{ID: "Orus", Name: "Orus", Gender: "male", Description: "Firm, authoritative male narrator"},
		{ID: "Zephyr", Name: "Zephyr", Gender: "female", Description: "Breezy, relaxed female voice"},
	}
}
