// Package config resolves runtime settings: environment variables (and a
// .env file), the YAML show file, and secrets held in AWS Secrets Manager.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	gap "github.com/muesli/go-app-paths"
)

const appName = "briefcast"

// Env holds settings that come from the process environment.
type Env struct {
	AnthropicAPIKey  string `env:"ANTHROPIC_API_KEY"`
	GeminiAPIKey     string `env:"GEMINI_API_KEY"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	ElevenLabsAPIKey string `env:"ELEVENLABS_API_KEY"`

	GCPProject string `env:"GOOGLE_CLOUD_PROJECT"`
	GCPRegion  string `env:"GOOGLE_CLOUD_LOCATION" envDefault:"us-central1"`

	AWSRegion    string `env:"AWS_REGION" envDefault:"us-east-1"`
	SecretPrefix string `env:"SECRET_PREFIX"`
	S3Bucket     string `env:"S3_BUCKET"`
	TableName    string `env:"DYNAMODB_TABLE"`
	CDNBaseURL   string `env:"CDN_BASE_URL"`

	// GitHubRepository is "owner/repo" when running in GitHub Actions.
	GitHubRepository string `env:"GITHUB_REPOSITORY"`

	ShowFile  string `env:"BRIEFCAST_SHOW"`
	CacheDir  string `env:"BRIEFCAST_CACHE_DIR"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"auto"`
	Port      int    `env:"PORT" envDefault:"8000"`
}

// LoadEnv reads dotenv (if present, never overriding variables already set)
// and parses the environment.
func LoadEnv(dotenv string) (Env, error) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Env{}, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}
	cfg, err := env.ParseAs[Env]()
	if err != nil {
		return Env{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// SiteURL is where published artifacts are served from: the CDN when set,
// else GitHub Pages for the current repository, else localhost.
func (e Env) SiteURL() string {
	if e.CDNBaseURL != "" {
		return e.CDNBaseURL
	}
	return PagesURL(e.GitHubRepository)
}

// PagesURL maps "owner/repo" to its GitHub Pages URL.
func PagesURL(repository string) string {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" {
		return "http://localhost"
	}
	return fmt.Sprintf("https://%s.github.io/%s", owner, repo)
}

// DefaultCacheDir is the per-user cache directory for the background bed.
func DefaultCacheDir() string {
	dir, err := gap.NewScope(gap.User, appName).CacheDir()
	if err != nil || dir == "" {
		return filepath.Join(os.TempDir(), appName)
	}
	return dir
}

// ShowFileCandidates lists where a show file is looked for when none is
// named explicitly.
func ShowFileCandidates() []string {
	var out []string
	out = append(out, "briefcast.yaml")
	if dirs, err := gap.NewScope(gap.User, appName).ConfigDirs(); err == nil {
		for _, d := range dirs {
			out = append(out, filepath.Join(d, "briefcast.yaml"))
		}
	}
	return out
}
