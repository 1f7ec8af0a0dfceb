package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/apresai/briefcast/internal/config"
	"github.com/apresai/briefcast/internal/mcpserver"
	"github.com/apresai/briefcast/internal/observability"
	"github.com/apresai/briefcast/internal/pipeline"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	env, err := config.LoadEnv(".env")
	if err != nil {
		return err
	}
	logger := observability.NewLogger(observability.LogOptions{
		Level:  observability.ParseLevel(env.LogLevel),
		Format: "json",
	})
	slog.SetDefault(logger)
	logger.Info("Briefcast MCP server starting", "version", version)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdown, err := observability.InitTracer(ctx, "briefcast-mcp", version)
	if err != nil {
		logger.Warn("Failed to init tracer, continuing without tracing", "error", err)
	} else {
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("Tracer shutdown error", "error", err)
			}
		}()
	}

	show, err := config.LoadShow(env.ShowFile)
	if err != nil {
		return err
	}

	setup := pipeline.Setup{
		Env:     env,
		Show:    show,
		Logger:  logger,
		Metrics: observability.NewMetrics("briefcast"),
	}
	if awsCfg, err := pipeline.LoadAWS(ctx, env.AWSRegion); err != nil {
		logger.Warn("AWS unavailable, continuing without it", "error", err)
	} else {
		setup.AWS = &awsCfg
		if env.SecretPrefix != "" {
			if config.LoadSecrets(ctx, config.NewSecretsClient(awsCfg), env.SecretPrefix, logger) > 0 {
				if setup.Env, err = config.LoadEnv(""); err != nil {
					return err
				}
			}
		}
	}

	srv, err := mcpserver.New(ctx, mcpserver.Config{
		Port:      setup.Env.Port,
		OutputDir: show.OutputDir,
		Version:   version,
	}, setup)
	if err != nil {
		return err
	}
	defer srv.Close()

	return srv.Start(ctx)
}
