package script

import (
	"fmt"
	"regexp"
	"strings"
)

// PromptBuilder renders prompts that ask a model for a transcript in the
// cast's tag-and-delimiter convention.
type PromptBuilder struct {
	Show     string
	Cast     *Cast
	Personas []Persona
	SignOff  string
}

// DefaultSignOff closes every brief.
const DefaultSignOff = "That is the news for today. Have a good one."

func (b PromptBuilder) System() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are the script writer for a spoken daily news podcast called %q.\n", b.Show)
	sb.WriteString("Two anchors read the brief together.\n\nANCHORS:\n")
	for _, p := range b.Personas {
		tag := b.Cast.Tag(p.Role)
		if tag == "" {
			continue
		}
		fmt.Fprintf(&sb, "\n%s (%s)\n", tag, p.FullName)
		fmt.Fprintf(&sb, "Background: %s\n", oneLine(p.Background))
		fmt.Fprintf(&sb, "Part: %s\n", p.Part)
		fmt.Fprintf(&sb, "Style: %s\n", oneLine(p.SpeakingStyle))
		fmt.Fprintf(&sb, "Expertise: %s\n", p.Expertise)
		fmt.Fprintf(&sb, "Rules: %s\n", p.Independence)
	}

	host := b.Cast.Tag(RoleHost)
	analyst := b.Cast.Tag(RoleAnalyst)
	d := b.Cast.Delimiter()

	sb.WriteString("\nRULES:\n")
	sb.WriteString("1. Group the news: Hong Kong news first, then global news.\n")
	sb.WriteString("2. Use only facts from the news items. Do not invent figures, names or quotes.\n")
	sb.WriteString("3. Do NOT use markdown, asterisks, bold, headings, bullet points or stage directions. Plain spoken text only.\n")
	sb.WriteString("4. Each turn is one to three sentences.\n")
	if sfx := b.Cast.Tag(RoleSFX); sfx != "" {
		fmt.Fprintf(&sb, "5. Between the Hong Kong and the global section, insert exactly one turn %q.\n", sfx+": transition")
	}

	sb.WriteString("\nOUTPUT FORMAT:\n")
	fmt.Fprintf(&sb, "Start every turn with the speaker name and a colon. Separate turns with a single %q character.\n", d)
	sb.WriteString("Example:\n")
	fmt.Fprintf(&sb, "%s: Good morning. %s %s: Thanks. %s %s: Next up...\n", host, d, analyst, d, host)
	return sb.String()
}

func (b PromptBuilder) User(material string, opts GenerateOptions) string {
	var sb strings.Builder
	host := b.Cast.Tag(RoleHost)
	fmt.Fprintf(&sb, "Write the brief (%s).\n\n", lengthGuidance(opts.Length))
	if opts.Date != "" {
		fmt.Fprintf(&sb, "%s opens with: \"Good morning. Here is your daily briefing for %s.\"\n", host, opts.Date)
	}
	signOff := b.SignOff
	if signOff == "" {
		signOff = DefaultSignOff
	}
	fmt.Fprintf(&sb, "%s closes with: %q\n\n", host, signOff)
	if opts.Topic != "" {
		fmt.Fprintf(&sb, "FOCUS: Give extra time to: %s\n\n", opts.Topic)
	}
	fmt.Fprintf(&sb, "NEWS ITEMS:\n%s", material)
	return sb.String()
}

func lengthGuidance(length string) string {
	switch length {
	case "short":
		return "about 1 minute, 6 to 10 turns"
	case "long":
		return "about 5 minutes, 30 to 40 turns"
	default:
		return "about 2 to 3 minutes, 14 to 20 turns"
	}
}

func maxTokensForLength(length string) int {
	switch length {
	case "long":
		return 4096
	default:
		return 1536
	}
}

var (
	scratchpadRe = regexp.MustCompile(`(?s)<scratchpad>.*?</scratchpad>`)
	fenceRe      = regexp.MustCompile("(?s)```[a-z]*\\s*\n?(.*?)\n?```")
	spaceRunRe   = regexp.MustCompile(`\s+`)
)

// cleanTranscript strips model wrappers around the transcript body.
func cleanTranscript(text string) string {
	text = scratchpadRe.ReplaceAllString(text, "")
	if m := fenceRe.FindStringSubmatch(text); len(m) > 1 {
		text = m[1]
	}
	return strings.TrimSpace(text)
}

func oneLine(s string) string {
	return strings.TrimSpace(spaceRunRe.ReplaceAllString(s, " "))
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
