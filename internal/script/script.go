package script

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Role identifies a speaking part. The set is small and fixed per show.
type Role string

const (
	RoleHost    Role = "host"
	RoleAnalyst Role = "analyst"
	RoleSFX     Role = "sfx"
)

// Utterance is one attributed fragment of a transcript.
type Utterance struct {
	Index int    `json:"index"`
	Role  Role   `json:"role"`
	Raw   string `json:"raw"`
	Text  string `json:"text"`
}

type GenerateOptions struct {
	Date   string // spoken date line, e.g. "Monday, October 19"
	Topic  string
	Length string // short, standard, long
}

// Generator turns source material into a flat transcript that follows the
// delimiter-and-tag convention of a Cast.
type Generator interface {
	Name() string
	Generate(ctx context.Context, material string, opts GenerateOptions) (string, error)
}

func SaveTranscript(transcript, path string) error {
	if err := os.WriteFile(path, []byte(transcript), 0644); err != nil {
		return fmt.Errorf("write transcript to %s: %w", path, err)
	}
	return nil
}

func LoadTranscript(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read transcript from %s: %w", path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("transcript %s is empty", path)
	}
	return string(data), nil
}

// resolveModel maps a short alias to its model id. Anything else non-empty
// is taken as a literal model id.
func resolveModel(aliases map[string]string, model, fallback string) string {
	if id, ok := aliases[model]; ok {
		return id
	}
	if model != "" {
		return model
	}
	return fallback
}
