package script

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// FallbackOpener precedes the raw headlines when every generator fails.
const FallbackOpener = "Good morning. AI generation failed, but here are the headlines."

// Attempt is the outcome of one generator in a Chain.
type Attempt struct {
	Provider string        `json:"provider"`
	Text     string        `json:"-"`
	Err      error         `json:"-"`
	Reason   string        `json:"reason,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// OK reports whether the attempt produced a usable transcript.
func (a Attempt) OK() bool { return a.Err == nil && strings.TrimSpace(a.Text) != "" }

type ChainResult struct {
	Transcript string    `json:"transcript"`
	Provider   string    `json:"provider"`
	Attempts   []Attempt `json:"attempts"`
	Fallback   bool      `json:"fallback"`
}

// Chain asks each generator in order and keeps the first usable transcript.
// When all fail, the static headline transcript is returned instead, so a
// run always has something to read.
type Chain struct {
	Generators []Generator
	Logger     *slog.Logger
}

func NewChain(logger *slog.Logger, gens ...Generator) *Chain {
	return &Chain{Generators: gens, Logger: logger}
}

// Generate returns an error only when ctx is done.
func (c *Chain) Generate(ctx context.Context, material string, opts GenerateOptions) (ChainResult, error) {
	var res ChainResult
	for _, g := range c.Generators {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		a := runAttempt(ctx, g, material, opts)
		res.Attempts = append(res.Attempts, a)
		if a.OK() {
			res.Transcript = a.Text
			res.Provider = a.Provider
			return res, nil
		}
		c.logger().Warn("script provider failed", "provider", a.Provider, "reason", a.Reason, "elapsed", a.Elapsed)
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	c.logger().Warn("all script providers failed, reading headlines", "attempts", len(res.Attempts))
	res.Transcript = HeadlineTranscript(material)
	res.Provider = "fallback"
	res.Fallback = true
	return res, nil
}

func runAttempt(ctx context.Context, g Generator, material string, opts GenerateOptions) Attempt {
	start := time.Now()
	text, err := g.Generate(ctx, material, opts)
	a := Attempt{Provider: g.Name(), Text: text, Err: err, Elapsed: time.Since(start)}
	switch {
	case err != nil:
		a.Reason = err.Error()
	case strings.TrimSpace(text) == "":
		a.Reason = "empty transcript"
	}
	return a
}

// HeadlineTranscript is the untagged last-resort transcript. It has no
// speaker tags, so it is read by the default role.
func HeadlineTranscript(material string) string {
	return FallbackOpener + " " + material
}

func (c *Chain) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
