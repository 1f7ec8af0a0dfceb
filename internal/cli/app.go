package cli

import (
	"context"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/apresai/briefcast/internal/config"
	"github.com/apresai/briefcast/internal/observability"
	"github.com/apresai/briefcast/internal/pipeline"
	"github.com/apresai/briefcast/internal/script"
	"github.com/apresai/briefcast/internal/tts"
)

// app is the per-invocation wiring shared by the run commands.
type app struct {
	setup    pipeline.Setup
	provider tts.Provider
	shutdown func(context.Context) error
}

func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	env, err := config.LoadEnv(flagEnvFile)
	if err != nil {
		return nil, err
	}
	show, err := loadShow()
	if err != nil {
		return nil, err
	}
	applyOverrides(&show, cmd.Flags().Changed)
	if err := show.Validate(); err != nil {
		return nil, err
	}

	logger := newLogger(env)
	slog.SetDefault(logger)

	shutdown, err := observability.InitTracer(ctx, "briefcast", Version)
	if err != nil {
		logger.Warn("Failed to init tracer, continuing without tracing", "error", err)
		shutdown = func(context.Context) error { return nil }
	}

	a := &app{
		setup:    pipeline.Setup{Env: env, Show: show, Logger: logger},
		shutdown: shutdown,
	}

	if needsAWS(env, show) {
		awsCfg, err := pipeline.LoadAWS(ctx, env.AWSRegion)
		if err != nil {
			logger.Warn("AWS unavailable, continuing without it", "error", err)
		} else {
			a.setup.AWS = &awsCfg
		}
	}

	if env.SecretPrefix != "" && a.setup.AWS != nil {
		n := config.LoadSecrets(ctx, config.NewSecretsClient(*a.setup.AWS), env.SecretPrefix, logger)
		if n > 0 {
			// pick up the exported keys
			if a.setup.Env, err = config.LoadEnv(""); err != nil {
				return nil, err
			}
		}
	}
	return a, nil
}

func (a *app) runner(ctx context.Context) (*pipeline.Runner, error) {
	engine, provider, err := pipeline.NewEngine(ctx, a.setup)
	if err != nil {
		return nil, err
	}
	a.provider = provider
	if flagNoBackground {
		engine.Background = nil
	}
	return pipeline.NewRunner(a.setup, engine)
}

func (a *app) Close() {
	if a.provider != nil {
		a.provider.Close()
	}
	a.shutdown(context.Background())
}

func loadShow() (config.Show, error) {
	path := flagShow
	if path == "" {
		if env, err := config.LoadEnv(flagEnvFile); err == nil {
			path = env.ShowFile
		}
	}
	return config.LoadShow(path)
}

// applyOverrides copies command-line flags the user set over the show.
func applyOverrides(show *config.Show, changed func(string) bool) {
	if changed("output-dir") {
		show.OutputDir = flagOutputDir
	}
	if changed("prefix") {
		show.Prefix = flagPrefix
	}
	if changed("feed") {
		show.Feeds = flagFeeds
	}
	if changed("items") {
		show.ItemsPerFeed = flagItems
	}
	if changed("topic") {
		show.Topic = flagTopic
	}
	if changed("length") {
		show.Length = flagLength
	}
	if changed("tts") {
		show.TTS.Provider = flagTTS
		// stock voices belong to the old provider
		show.Voices = keepCues(show.Voices)
	}
	if changed("tts-model") {
		show.TTS.Model = flagTTSModel
	}
	if changed("workers") {
		show.TTS.Workers = flagWorkers
	}
	if changed("background-url") {
		show.Background.URL = flagBackground
	}
}

func keepCues(voices map[script.Role]tts.VoiceProfile) map[script.Role]tts.VoiceProfile {
	out := make(map[script.Role]tts.VoiceProfile, len(voices))
	for r, p := range voices {
		if !p.Cue {
			p.VoiceID = ""
		}
		out[r] = p
	}
	return out
}

func needsAWS(env config.Env, show config.Show) bool {
	return env.SecretPrefix != "" ||
		env.S3Bucket != "" ||
		env.TableName != "" ||
		show.TTS.Provider == "polly" ||
		slices.Contains(show.Script.Providers, "nova")
}

func newLogger(env config.Env) *slog.Logger {
	level := observability.ParseLevel(env.LogLevel)
	if !flagVerbose && level < slog.LevelWarn {
		// the progress bar owns the terminal
		level = slog.LevelWarn
	}
	if flagVerbose {
		level = slog.LevelDebug
	}
	format := flagLogFormat
	if format == "" && env.LogFormat != "auto" {
		format = env.LogFormat
	}
	return observability.NewLogger(observability.LogOptions{Level: level, Format: format})
}

func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
