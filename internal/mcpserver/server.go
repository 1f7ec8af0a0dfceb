package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"

	"github.com/apresai/briefcast/internal/observability"
	"github.com/apresai/briefcast/internal/pipeline"
	"github.com/apresai/briefcast/internal/tts"
)

// Config holds server configuration.
type Config struct {
	Port       int
	OutputDir  string
	MaxRenders int
	Version    string
}

// Server is the MCP server for transcript rendering.
type Server struct {
	cfg      Config
	mcp      *server.MCPServer
	handlers *Handlers
	provider tts.Provider
	metrics  *observability.Metrics
	log      *slog.Logger
}

// New builds the render engine from setup and registers the tools.
func New(ctx context.Context, cfg Config, setup pipeline.Setup) (*Server, error) {
	engine, provider, err := pipeline.NewEngine(ctx, setup)
	if err != nil {
		return nil, err
	}
	runner, err := pipeline.NewRunner(setup, engine)
	if err != nil {
		provider.Close()
		return nil, err
	}
	// tools only render given transcripts; publishing stays with the CLI
	runner.Publisher = nil

	logger := setup.Logger
	if logger == nil {
		logger = slog.Default()
	}
	handlers := NewHandlers(runner, cfg, setup.Show.TTS.Provider, logger)
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	return &Server{
		cfg:      cfg,
		mcp:      NewMCPServer(cfg.Version, handlers),
		handlers: handlers,
		provider: provider,
		metrics:  setup.Metrics,
		log:      logger,
	}, nil
}

// NewMCPServer registers every tool on a fresh MCP server.
func NewMCPServer(version string, h *Handlers) *server.MCPServer {
	s := server.NewMCPServer(
		"briefcast",
		version,
		server.WithToolCapabilities(true),
	)
	tools := ToolDefs()
	s.AddTool(tools[0], h.HandleSegmentTranscript)
	s.AddTool(tools[1], h.HandleRenderEpisode)
	s.AddTool(tools[2], h.HandleListVoices)
	return s
}

// Router serves MCP under /mcp next to health and metrics endpoints.
func (s *Server) Router() http.Handler {
	return newRouter(s.mcp, s.metrics)
}

func newRouter(mcp *server.MCPServer, metrics *observability.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}
	r.Handle("/mcp", server.NewStreamableHTTPServer(mcp,
		server.WithStateLess(true),
	))
	return r
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("Starting MCP server", "addr", addr)
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutdown signal received, waiting for active renders...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases the TTS provider.
func (s *Server) Close() error {
	return s.provider.Close()
}
