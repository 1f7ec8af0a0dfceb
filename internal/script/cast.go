package script

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/apresai/briefcast/internal/textnorm"
)

// DefaultDelimiter separates utterances in a transcript.
const DefaultDelimiter = "|"

// Member binds a role to the names the model may tag it with. The first
// alias is the one prompts ask for. A Cue member marks sound effects: its tag
// does not change who is speaking, so untagged text after a cue stays with
// the last speaker.
type Member struct {
	Role    Role     `mapstructure:"role" json:"role"`
	Aliases []string `mapstructure:"aliases" json:"aliases"`
	Cue     bool     `mapstructure:"cue" json:"cue,omitempty"`
}

type CastConfig struct {
	Delimiter   string   `mapstructure:"delimiter" json:"delimiter"`
	DefaultRole Role     `mapstructure:"default_role" json:"default_role"`
	Members     []Member `mapstructure:"members" json:"members"`
}

// DefaultCastConfig is the two-anchor Hong Kong brief plus a cue marker.
func DefaultCastConfig() CastConfig {
	return CastConfig{
		Delimiter:   DefaultDelimiter,
		DefaultRole: RoleHost,
		Members: []Member{
			{Role: RoleHost, Aliases: []string{"Ka Yan", "嘉欣"}},
			{Role: RoleAnalyst, Aliases: []string{"Wai Lun", "偉倫"}},
			{Role: RoleSFX, Aliases: []string{"SFX", "音效"}, Cue: true},
		},
	}
}

// Cast segments transcripts for one set of speakers. It holds no per-call
// state and is safe for concurrent use.
type Cast struct {
	delimiter   string
	defaultRole Role
	members     []Member
	patterns    []*regexp.Regexp
	norm        *textnorm.Normalizer
}

func NewCast(cfg CastConfig, norm *textnorm.Normalizer) (*Cast, error) {
	if cfg.Delimiter == "" {
		cfg.Delimiter = DefaultDelimiter
	}
	if norm == nil {
		norm = textnorm.Default()
	}
	if len(cfg.Members) == 0 {
		return nil, fmt.Errorf("cast has no members")
	}

	c := &Cast{delimiter: cfg.Delimiter, defaultRole: cfg.DefaultRole, norm: norm}
	seen := make(map[Role]bool)
	for _, m := range cfg.Members {
		if m.Role == "" {
			return nil, fmt.Errorf("cast member with aliases %v has no role", m.Aliases)
		}
		if seen[m.Role] {
			return nil, fmt.Errorf("role %q listed twice", m.Role)
		}
		seen[m.Role] = true
		re, err := tagPattern(m.Aliases)
		if err != nil {
			return nil, fmt.Errorf("role %q: %w", m.Role, err)
		}
		c.members = append(c.members, m)
		c.patterns = append(c.patterns, re)
	}
	if c.defaultRole == "" {
		for _, m := range cfg.Members {
			if !m.Cue {
				c.defaultRole = m.Role
				break
			}
		}
		if c.defaultRole == "" {
			return nil, fmt.Errorf("cast has no speaking member")
		}
	}
	if !seen[c.defaultRole] {
		return nil, fmt.Errorf("default role %q is not a cast member", c.defaultRole)
	}
	if c.isCue(c.defaultRole) {
		return nil, fmt.Errorf("default role %q is a cue and cannot speak", c.defaultRole)
	}
	return c, nil
}

// DefaultCast returns the cast built from DefaultCastConfig.
func DefaultCast() *Cast {
	c, err := NewCast(DefaultCastConfig(), nil)
	if err != nil {
		panic(err)
	}
	return c
}

// tagPattern matches a speaker prefix such as "Ka Yan:", "**嘉欣：**",
// "1. [Wai Lun]:" or "- **wai lun**:".
func tagPattern(aliases []string) (*regexp.Regexp, error) {
	var alts []string
	for _, a := range aliases {
		words := strings.Fields(a)
		if len(words) == 0 {
			continue
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		alts = append(alts, strings.Join(words, `\s+`))
	}
	if len(alts) == 0 {
		return nil, fmt.Errorf("no aliases")
	}
	return regexp.Compile(`(?i)^\s*(?:(?:[-*•·]+|\d+[.)、])\s*)?(?:\*\*|__)?\s*[\[［【]?\s*(?:` +
		strings.Join(alts, "|") +
		`)\s*[\]］】]?\s*(?:\*\*|__)?\s*[:：]\s*(?:\*\*|__)?`)
}

func (c *Cast) Delimiter() string { return c.delimiter }

func (c *Cast) DefaultRole() Role { return c.defaultRole }

func (c *Cast) Roles() []Role {
	roles := make([]Role, len(c.members))
	for i, m := range c.members {
		roles[i] = m.Role
	}
	return roles
}

// Tag returns the name prompts should use for role, or "" if role is not cast.
func (c *Cast) Tag(role Role) string {
	for _, m := range c.members {
		if m.Role == role && len(m.Aliases) > 0 {
			return m.Aliases[0]
		}
	}
	return ""
}

// Segmentation is the result of Segment. Matched counts fragments that
// carried a speaker tag; CarriedForward counts fragments that inherited the
// previous speaker; Dropped counts fragments with nothing left to say.
type Segmentation struct {
	Utterances     []Utterance `json:"utterances"`
	Matched        int         `json:"matched"`
	CarriedForward int         `json:"carried_forward"`
	Dropped        int         `json:"dropped"`
}

// Roles returns the role of each utterance in order.
func (s Segmentation) Roles() []Role {
	out := make([]Role, len(s.Utterances))
	for i, u := range s.Utterances {
		out[i] = u.Role
	}
	return out
}

// segmentFold is the accumulator threaded through Segment. current starts at
// the default role and follows the most recent tagged speaking fragment.
type segmentFold struct {
	current Role
	out     Segmentation
}

// Segment splits transcript on the delimiter and attributes every fragment to
// a role. Untagged fragments inherit the previous speaker, so a transcript
// without any tag is a monologue in the default role.
func (c *Cast) Segment(transcript string) Segmentation {
	acc := segmentFold{current: c.defaultRole}
	for _, fragment := range strings.Split(transcript, c.delimiter) {
		acc = c.step(acc, fragment)
	}
	return acc.out
}

func (c *Cast) step(acc segmentFold, fragment string) segmentFold {
	if strings.TrimSpace(fragment) == "" {
		return acc
	}

	role, body, tagged := c.match(fragment)
	if tagged {
		if !c.isCue(role) {
			acc.current = role
		}
		acc.out.Matched++
	} else {
		role = acc.current
		acc.out.CarriedForward++
	}

	text := c.norm.Normalize(body)
	if text == "" {
		acc.out.Dropped++
		return acc
	}
	acc.out.Utterances = append(acc.out.Utterances, Utterance{
		Index: len(acc.out.Utterances),
		Role:  role,
		Raw:   strings.TrimSpace(body),
		Text:  text,
	})
	return acc
}

func (c *Cast) isCue(role Role) bool {
	for _, m := range c.members {
		if m.Role == role {
			return m.Cue
		}
	}
	return false
}

// IsCue reports whether role marks a sound effect rather than a speaker.
func (c *Cast) IsCue(role Role) bool { return c.isCue(role) }

// match tries each member's tag pattern in cast order.
func (c *Cast) match(fragment string) (Role, string, bool) {
	for i, re := range c.patterns {
		if loc := re.FindStringIndex(fragment); loc != nil {
			return c.members[i].Role, fragment[loc[1]:], true
		}
	}
	return "", fragment, false
}
