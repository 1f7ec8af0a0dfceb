package tts

import (
	"fmt"
	"sort"

	"github.com/apresai/briefcast/internal/script"
)

// VoiceProfile is the static per-role synthesis setting. Cue profiles render
// the built-in chime instead of calling the engine.
type VoiceProfile struct {
	VoiceID        string  `mapstructure:"voice_id" json:"voice_id,omitempty"`
	RatePercent    int     `mapstructure:"rate_percent" json:"rate_percent,omitempty"`
	PitchSemitones float64 `mapstructure:"pitch_semitones" json:"pitch_semitones,omitempty"`
	Cue            bool    `mapstructure:"cue" json:"cue,omitempty"`
}

func (p VoiceProfile) Voice() Voice {
	return Voice{ID: p.VoiceID, Name: p.VoiceID, RatePercent: p.RatePercent, PitchSemitones: p.PitchSemitones}
}

// VoiceTable maps roles to profiles. Lookups for unknown roles use the
// default role's profile.
type VoiceTable struct {
	DefaultRole script.Role
	Profiles    map[script.Role]VoiceProfile
}

// DefaultVoiceTable is the stock table for a provider: the host reads a
// touch brisk, the analyst slightly lower and steadier, sfx is a cue.
func DefaultVoiceTable(p Provider) VoiceTable {
	v := p.DefaultVoices()
	return VoiceTable{
		DefaultRole: script.RoleHost,
		Profiles: map[script.Role]VoiceProfile{
			script.RoleHost:    {VoiceID: v.Host.ID, RatePercent: 5},
			script.RoleAnalyst: {VoiceID: v.Analyst.ID, PitchSemitones: -1},
			script.RoleSFX:     {Cue: true},
		},
	}
}

// Merge overlays configured profiles on t. A configured profile without a
// voice id keeps the stock voice for that role.
func (t VoiceTable) Merge(overrides map[script.Role]VoiceProfile) VoiceTable {
	out := VoiceTable{DefaultRole: t.DefaultRole, Profiles: make(map[script.Role]VoiceProfile, len(t.Profiles))}
	for r, p := range t.Profiles {
		out.Profiles[r] = p
	}
	for r, p := range overrides {
		if p.VoiceID == "" && !p.Cue {
			p.VoiceID = out.Profiles[r].VoiceID
		}
		out.Profiles[r] = p
	}
	return out
}

// Lookup returns the profile for role, falling back to the default role.
func (t VoiceTable) Lookup(role script.Role) VoiceProfile {
	if p, ok := t.Profiles[role]; ok {
		return p
	}
	return t.Profiles[t.DefaultRole]
}

// Validate checks that every role has a usable profile.
func (t VoiceTable) Validate(roles []script.Role) error {
	if _, ok := t.Profiles[t.DefaultRole]; !ok {
		return fmt.Errorf("voice table has no profile for default role %q", t.DefaultRole)
	}
	for _, r := range roles {
		p, ok := t.Profiles[r]
		if !ok {
			return fmt.Errorf("voice table has no profile for role %q", r)
		}
		if !p.Cue && p.VoiceID == "" {
			return fmt.Errorf("role %q has no voice id", r)
		}
		if p.RatePercent < -50 || p.RatePercent > 100 {
			return fmt.Errorf("role %q: rate %d%% out of range [-50, 100]", r, p.RatePercent)
		}
		if p.PitchSemitones < -20 || p.PitchSemitones > 20 {
			return fmt.Errorf("role %q: pitch %.1f st out of range [-20, 20]", r, p.PitchSemitones)
		}
	}
	return nil
}

// Roles returns the table's roles in sorted order.
func (t VoiceTable) Roles() []script.Role {
	roles := make([]script.Role, 0, len(t.Profiles))
	for r := range t.Profiles {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}
