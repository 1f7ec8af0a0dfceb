// Package textnorm cleans LLM output so a speech engine reads it naturally.
package textnorm

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

// Replacement rewrites a symbol sequence the speech engine mispronounces.
type Replacement struct {
	From string `mapstructure:"from" json:"from"`
	To   string `mapstructure:"to" json:"to"`
}

// DefaultReplacements are applied in order, leftmost match first.
var DefaultReplacements = []Replacement{
	{From: "HK$", To: "HK dollars "},
	{From: "US$", To: "US dollars "},
	{From: "%", To: " percent"},
	{From: "&", To: " and "},
	{From: "e.g.", To: "for example"},
	{From: "i.e.", To: "that is"},
	{From: "vs.", To: "versus"},
}

var (
	stageDirectionRe = regexp.MustCompile(`\([^()]*\)|\[[^\[\]]*\]`)
	lineBulletRe     = regexp.MustCompile(`(?m)^(?:[ \t]*[-•·][ \t]+)+`)
	leadingBulletRe  = regexp.MustCompile(`^(?:[-•·] )+`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
	markupStripper   = strings.NewReplacer("*", "", "`", "", "_", " ", "#", " ")
)

// Normalizer is safe for concurrent use.
type Normalizer struct {
	replacer *strings.Replacer
}

// New builds a Normalizer. Rules whose output could itself be rewritten by a
// later pass are rejected so that Normalize stays idempotent.
func New(rules []Replacement) (*Normalizer, error) {
	pairs := make([]string, 0, 2*len(rules))
	for i, r := range rules {
		if strings.TrimSpace(r.From) != r.From || r.From == "" {
			return nil, fmt.Errorf("replacement %d: source %q must be non-empty without surrounding whitespace", i, r.From)
		}
		if strings.ContainsAny(r.From, "()[]") {
			return nil, fmt.Errorf("replacement %d: source %q contains brackets", i, r.From)
		}
		if width.Fold.String(r.To) != r.To {
			return nil, fmt.Errorf("replacement %d: target %q contains full-width characters", i, r.To)
		}
		if strings.ContainsAny(r.To, "*`_#()[]•·") || strings.HasPrefix(strings.TrimSpace(r.To), "-") {
			return nil, fmt.Errorf("replacement %d: target %q contains markup characters", i, r.To)
		}
		for _, other := range rules {
			if strings.Contains(r.To, other.From) {
				return nil, fmt.Errorf("replacement %d: target %q reintroduces %q", i, r.To, other.From)
			}
		}
		pairs = append(pairs, r.From, r.To)
	}
	return &Normalizer{replacer: strings.NewReplacer(pairs...)}, nil
}

// Default returns a Normalizer with DefaultReplacements.
func Default() *Normalizer {
	n, err := New(DefaultReplacements)
	if err != nil {
		panic(err)
	}
	return n
}

// Normalize folds full-width characters, strips markdown residue and stage
// directions, rewrites mispronounced symbols and collapses whitespace. An
// empty result means there is nothing worth speaking.
//
// A replacement can expose a bullet ("-%" becomes "- percent") or join its
// output with neighbouring text into another source ("e.g..g."), so the
// cleanup pass repeats until the text stops changing. Every repeat consumes
// input, which bounds the loop by the text length.
func (n *Normalizer) Normalize(text string) string {
	for range len(text) + 1 {
		next := n.pass(text)
		if next == text {
			break
		}
		text = next
	}
	return text
}

func (n *Normalizer) pass(text string) string {
	text = width.Fold.String(text)
	text = markupStripper.Replace(text)
	for {
		stripped := stageDirectionRe.ReplaceAllString(text, " ")
		if stripped == text {
			break
		}
		text = stripped
	}
	text = lineBulletRe.ReplaceAllString(text, "")
	text = collapse(text)
	if n.replacer != nil {
		text = collapse(n.replacer.Replace(text))
	}
	return leadingBulletRe.ReplaceAllString(text, "")
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
