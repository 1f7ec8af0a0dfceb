package script

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubGenerator struct {
	name  string
	text  string
	err   error
	calls int
}

func (s *stubGenerator) Name() string { return s.name }

func (s *stubGenerator) Generate(context.Context, string, GenerateOptions) (string, error) {
	s.calls++
	return s.text, s.err
}

func TestChainFirstSuccessWins(t *testing.T) {
	first := &stubGenerator{name: "claude", err: errors.New("overloaded")}
	second := &stubGenerator{name: "gemini", text: "Ka Yan: hello"}
	third := &stubGenerator{name: "nova", text: "unused"}

	res, err := NewChain(nil, first, second, third).Generate(context.Background(), "- news", GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if res.Provider != "gemini" || res.Transcript != "Ka Yan: hello" || res.Fallback {
		t.Fatalf("result = %+v", res)
	}
	if third.calls != 0 {
		t.Fatalf("generator after success was called %d times", third.calls)
	}
	if len(res.Attempts) != 2 || res.Attempts[0].OK() || res.Attempts[0].Reason != "overloaded" {
		t.Fatalf("attempts = %+v", res.Attempts)
	}
}

func TestChainEmptyTextIsFailure(t *testing.T) {
	blank := &stubGenerator{name: "openai", text: "   "}
	good := &stubGenerator{name: "nova", text: "text"}

	res, err := NewChain(nil, blank, good).Generate(context.Background(), "", GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if res.Provider != "nova" {
		t.Fatalf("Provider = %q, want nova", res.Provider)
	}
	if res.Attempts[0].Reason != "empty transcript" {
		t.Fatalf("Reason = %q", res.Attempts[0].Reason)
	}
}

func TestChainFallsBackToHeadlines(t *testing.T) {
	material := "- Typhoon signal 8: Schools closed\n"
	res, err := NewChain(nil,
		&stubGenerator{name: "claude", err: errors.New("a")},
		&stubGenerator{name: "gemini", err: errors.New("b")},
	).Generate(context.Background(), material, GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !res.Fallback || res.Provider != "fallback" {
		t.Fatalf("result = %+v, want fallback", res)
	}
	if !strings.HasPrefix(res.Transcript, FallbackOpener) || !strings.Contains(res.Transcript, "Typhoon signal 8") {
		t.Fatalf("Transcript = %q", res.Transcript)
	}

	seg := DefaultCast().Segment(res.Transcript)
	for _, u := range seg.Utterances {
		if u.Role != RoleHost {
			t.Fatalf("fallback utterance read by %q, want host", u.Role)
		}
	}
}

func TestChainStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &stubGenerator{name: "claude", text: "x"}
	if _, err := NewChain(nil, gen).Generate(ctx, "", GenerateOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Generate() error = %v, want context.Canceled", err)
	}
	if gen.calls != 0 {
		t.Fatalf("generator called after cancel")
	}
}

func TestGenerateWithRetryCleansFences(t *testing.T) {
	got, err := generateWithRetry(context.Background(), "stub", func(context.Context) (string, error) {
		return "<scratchpad>plan</scratchpad>\n```text\nKa Yan: hi | Wai Lun: hello\n```", nil
	})
	if err != nil {
		t.Fatalf("generateWithRetry() error = %v", err)
	}
	if got != "Ka Yan: hi | Wai Lun: hello" {
		t.Fatalf("got %q", got)
	}
}

func TestPromptUsesCastConvention(t *testing.T) {
	b := PromptBuilder{Show: "HK Daily Brief", Cast: DefaultCast(), Personas: DefaultPersonas}
	sys := b.System()
	for _, want := range []string{"HK Daily Brief", "Ka Yan (Chan Ka Yan)", "Wai Lun (Leung Wai Lun)", `"|"`, "SFX: transition"} {
		if !strings.Contains(sys, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
	user := b.User("- item", GenerateOptions{Date: "Monday, October 19"})
	for _, want := range []string{"daily briefing for Monday, October 19", DefaultSignOff, "NEWS ITEMS:\n- item"} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
}
