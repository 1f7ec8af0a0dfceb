package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/apresai/briefcast/internal/assembly"
	"github.com/apresai/briefcast/internal/audio"
	"github.com/apresai/briefcast/internal/background"
	"github.com/apresai/briefcast/internal/config"
	"github.com/apresai/briefcast/internal/observability"
	"github.com/apresai/briefcast/internal/publish"
	"github.com/apresai/briefcast/internal/script"
	"github.com/apresai/briefcast/internal/textnorm"
	"github.com/apresai/briefcast/internal/tts"
)

// Setup is the resolved configuration a process builds its engine from.
type Setup struct {
	Env     config.Env
	Show    config.Show
	AWS     *aws.Config
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// LoadAWS returns the default AWS config for region with tracing middleware.
func LoadAWS(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	otelaws.AppendMiddlewares(&cfg.APIOptions)
	return cfg, nil
}

// NewCast builds the speaker cast with the show's normalizer rules.
func NewCast(show config.Show) (*script.Cast, error) {
	norm, err := textnorm.New(show.Replacements)
	if err != nil {
		return nil, fmt.Errorf("normalizer: %w", err)
	}
	return script.NewCast(show.Cast, norm)
}

// NewEngine wires the render path. The returned provider must be closed by
// the caller.
func NewEngine(ctx context.Context, s Setup) (*Engine, tts.Provider, error) {
	cast, err := NewCast(s.Show)
	if err != nil {
		return nil, nil, err
	}

	provider, err := tts.NewProvider(ctx, s.Show.TTS.Provider, tts.ProviderConfig{
		ElevenLabsAPIKey: s.Env.ElevenLabsAPIKey,
		GeminiAPIKey:     s.Env.GeminiAPIKey,
		OpenAIAPIKey:     s.Env.OpenAIAPIKey,
		GCPProject:       s.Env.GCPProject,
		GCPRegion:        s.Env.GCPRegion,
		Model:            s.Show.TTS.Model,
		LanguageCode:     s.Show.TTS.LanguageCode,
		PollyEngine:      s.Show.TTS.PollyEngine,
		AWS:              s.AWS,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create TTS provider: %w", err)
	}

	voices := tts.DefaultVoiceTable(provider).Merge(s.Show.Voices)
	voices.DefaultRole = cast.DefaultRole()
	if err := voices.Validate(cast.Roles()); err != nil {
		provider.Close()
		return nil, nil, err
	}

	ff := assembly.NewFFmpeg()
	cacheDir := s.Show.Background.CacheDir
	if cacheDir == "" {
		cacheDir = s.Env.CacheDir
	}
	if cacheDir == "" {
		cacheDir = config.DefaultCacheDir()
	}

	return &Engine{
		Cast: cast,
		Synth: &tts.Synthesizer{
			Provider:   provider,
			Voices:     voices,
			Decoder:    ff,
			SampleRate: audio.DefaultSampleRate,
			Workers:    s.Show.TTS.Workers,
			Logger:     s.Logger,
			Metrics:    s.Metrics,
		},
		Assembler: assembly.NewAssembler(s.Show.Pauses),
		Mixer:     assembly.NewMixer(s.Show.Mix),
		Background: &background.Source{
			CacheDir:   cacheDir,
			URL:        s.Show.Background.URL,
			Synthesize: s.Show.Background.Synthesize,
			SampleRate: audio.DefaultSampleRate,
			Decoder:    ff,
			Logger:     s.Logger,
			Metrics:    s.Metrics,
		},
		Logger:  s.Logger,
		Metrics: s.Metrics,
	}, provider, nil
}

// NewWriter builds the generator chain in the show's fallback order.
// Generators without credentials are left out.
func NewWriter(s Setup, cast *script.Cast) (*script.Chain, error) {
	prompts := script.PromptBuilder{
		Show:     s.Show.Name,
		Cast:     cast,
		Personas: script.DefaultPersonas,
		SignOff:  script.DefaultSignOff,
	}
	var gens []script.Generator
	for _, name := range s.Show.Script.Providers {
		model := s.Show.Model(name)
		switch name {
		case "claude":
			if s.Env.AnthropicAPIKey == "" {
				continue
			}
			gens = append(gens, script.NewClaudeGenerator(model, prompts))
		case "gemini":
			if s.Env.GeminiAPIKey == "" {
				continue
			}
			gens = append(gens, script.NewGeminiGenerator(model, s.Env.GeminiAPIKey, prompts))
		case "nova":
			if s.AWS == nil {
				continue
			}
			gens = append(gens, script.NewNovaGeneratorFromConfig(model, *s.AWS, prompts))
		case "openai":
			if s.Env.OpenAIAPIKey == "" {
				continue
			}
			gens = append(gens, script.NewOpenAIGenerator(model, s.Env.OpenAIAPIKey, prompts))
		default:
			return nil, fmt.Errorf("unknown script provider %q", name)
		}
	}
	if len(gens) == 0 {
		s.logger().Warn("No script provider has credentials, briefs will read the headlines only")
	}
	return script.NewChain(s.Logger, gens...), nil
}

// NewPublisher writes the feed next to the episodes. S3 and DynamoDB are
// used when their env settings are present and AWS is configured.
func NewPublisher(s Setup, outputDir string) *publish.Publisher {
	p := &publish.Publisher{
		Channel: publish.Channel{
			Title:       s.Show.Name,
			Description: s.Show.Description,
		},
		Show:     s.Show.Prefix,
		SiteURL:  s.Env.SiteURL(),
		FeedPath: filepath.Join(outputDir, s.Show.Publish.FeedFile),
		Keep:     s.Show.Publish.Keep,
		Logger:   s.Logger,
	}
	if s.AWS != nil && s.Env.S3Bucket != "" {
		p.Storage = publish.NewStorage(s3.NewFromConfig(*s.AWS), s.Env.S3Bucket, s.Env.SiteURL())
	}
	if s.AWS != nil && s.Env.TableName != "" {
		p.Store = publish.NewStore(dynamodb.NewFromConfig(*s.AWS), s.Env.TableName)
	}
	return p
}

// NewRunner assembles the daily run around engine.
func NewRunner(s Setup, engine *Engine) (*Runner, error) {
	writer, err := NewWriter(s, engine.Cast)
	if err != nil {
		return nil, err
	}
	return &Runner{
		Engine:    engine,
		Writer:    writer,
		Encoder:   assembly.NewFFmpeg(),
		Publisher: NewPublisher(s, s.Show.OutputDir),
		Logger:    s.Logger,
		Metrics:   s.Metrics,
	}, nil
}

func (s Setup) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
