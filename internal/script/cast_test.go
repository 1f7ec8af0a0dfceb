package script

import (
	"reflect"
	"testing"
)

func abCast(t *testing.T) *Cast {
	t.Helper()
	c, err := NewCast(CastConfig{
		DefaultRole: "a",
		Members: []Member{
			{Role: "a", Aliases: []string{"A"}},
			{Role: "b", Aliases: []string{"B"}},
		},
	}, nil)
	if err != nil {
		t.Fatalf("NewCast() error = %v", err)
	}
	return c
}

type pair struct {
	Role Role
	Text string
}

func pairs(s Segmentation) []pair {
	out := make([]pair, len(s.Utterances))
	for i, u := range s.Utterances {
		out[i] = pair{u.Role, u.Text}
	}
	return out
}

func TestSegmentCarriesSpeakerForward(t *testing.T) {
	got := abCast(t).Segment("A: x | y | B: z")
	want := []pair{{"a", "x"}, {"a", "y"}, {"b", "z"}}
	if !reflect.DeepEqual(pairs(got), want) {
		t.Fatalf("Segment() = %+v, want %+v", pairs(got), want)
	}
	if got.Matched != 2 || got.CarriedForward != 1 {
		t.Fatalf("Matched/CarriedForward = %d/%d, want 2/1", got.Matched, got.CarriedForward)
	}
}

func TestSegmentWithoutTagsIsMonologue(t *testing.T) {
	c := DefaultCast()
	in := "Good morning.\nMarkets rose 5% **today**."
	got := c.Segment(in)
	if len(got.Utterances) != 1 {
		t.Fatalf("got %d utterances, want 1", len(got.Utterances))
	}
	u := got.Utterances[0]
	if u.Role != RoleHost {
		t.Fatalf("Role = %q, want host", u.Role)
	}
	if want := c.norm.Normalize(in); u.Text != want {
		t.Fatalf("Text = %q, want %q", u.Text, want)
	}
}

func TestSegmentTagVariants(t *testing.T) {
	c := DefaultCast()
	cases := []struct {
		in   string
		role Role
		text string
	}{
		{"Ka Yan: Good morning.", RoleHost, "Good morning."},
		{"嘉欣：早晨。", RoleHost, "早晨。"},
		{"  wai lun : Thanks.", RoleAnalyst, "Thanks."},
		{"**Wai Lun:** Rates held.", RoleAnalyst, "Rates held."},
		{"**偉倫**： 利率不變。", RoleAnalyst, "利率不變。"},
		{"1. Ka Yan: First story.", RoleHost, "First story."},
		{"- [Wai Lun]: Context.", RoleAnalyst, "Context."},
		{"• KA YAN: Loud.", RoleHost, "Loud."},
		{"Ka  Yan: spaced", RoleHost, "spaced"},
		{"SFX: transition", RoleSFX, "transition"},
	}
	for _, tc := range cases {
		// seed with the analyst so a host match cannot come from the default
		got := c.Segment("Wai Lun: seed | " + tc.in)
		if len(got.Utterances) != 2 {
			t.Errorf("%q: got %d utterances, want 2", tc.in, len(got.Utterances))
			continue
		}
		u := got.Utterances[1]
		if u.Role != tc.role || u.Text != tc.text {
			t.Errorf("%q: got (%s, %q), want (%s, %q)", tc.in, u.Role, u.Text, tc.role, tc.text)
		}
	}
}

func TestSegmentPartialNameIsNotATag(t *testing.T) {
	got := abCast(t).Segment("B: one | Bravo: two")
	want := []pair{{"b", "one"}, {"b", "Bravo: two"}}
	if !reflect.DeepEqual(pairs(got), want) {
		t.Fatalf("Segment() = %+v, want %+v", pairs(got), want)
	}
}

func TestSegmentDropsEmptyFragments(t *testing.T) {
	got := abCast(t).Segment(" | A: (laughs) | | B: hi |  ")
	want := []pair{{"b", "hi"}}
	if !reflect.DeepEqual(pairs(got), want) {
		t.Fatalf("Segment() = %+v, want %+v", pairs(got), want)
	}
	if got.Dropped != 1 {
		t.Fatalf("Dropped = %d, want 1", got.Dropped)
	}
	if got.Utterances[0].Index != 0 {
		t.Fatalf("Index = %d, want 0", got.Utterances[0].Index)
	}
}

func TestSegmentEmptyTagStillSwitchesSpeaker(t *testing.T) {
	got := abCast(t).Segment("A: one | B: | two")
	want := []pair{{"a", "one"}, {"b", "two"}}
	if !reflect.DeepEqual(pairs(got), want) {
		t.Fatalf("Segment() = %+v, want %+v", pairs(got), want)
	}
}

func TestSegmentPreservesOrder(t *testing.T) {
	in := "A: 1 | B: 2 | 3 | A: 4 | 5 | 6 | B: 7"
	got := abCast(t).Segment(in)
	wantRoles := []Role{"a", "b", "b", "a", "a", "a", "b"}
	if !reflect.DeepEqual(got.Roles(), wantRoles) {
		t.Fatalf("Roles() = %v, want %v", got.Roles(), wantRoles)
	}
	for i, u := range got.Utterances {
		if u.Index != i {
			t.Fatalf("utterance %d has Index %d", i, u.Index)
		}
	}
}

func TestSegmentIsPure(t *testing.T) {
	c := abCast(t)
	first := c.Segment("B: a | b")
	second := c.Segment("c")
	if second.Utterances[0].Role != "a" {
		t.Fatalf("speaker leaked between calls: %q", second.Utterances[0].Role)
	}
	if !reflect.DeepEqual(first, c.Segment("B: a | b")) {
		t.Fatalf("Segment() not deterministic")
	}
}

func TestSegmentCustomDelimiter(t *testing.T) {
	c, err := NewCast(CastConfig{
		Delimiter: "\n\n",
		Members:   []Member{{Role: "solo", Aliases: []string{"Narrator"}}},
	}, nil)
	if err != nil {
		t.Fatalf("NewCast() error = %v", err)
	}
	got := c.Segment("Narrator: one\n\ntwo | still two")
	want := []pair{{"solo", "one"}, {"solo", "two | still two"}}
	if !reflect.DeepEqual(pairs(got), want) {
		t.Fatalf("Segment() = %+v, want %+v", pairs(got), want)
	}
}

func TestNewCastValidation(t *testing.T) {
	cases := map[string]CastConfig{
		"no members":      {},
		"unknown default": {DefaultRole: "x", Members: []Member{{Role: "a", Aliases: []string{"A"}}}},
		"duplicate role":  {Members: []Member{{Role: "a", Aliases: []string{"A"}}, {Role: "a", Aliases: []string{"B"}}}},
		"no aliases":      {Members: []Member{{Role: "a", Aliases: []string{" "}}}},
		"no role":         {Members: []Member{{Aliases: []string{"A"}}}},
		"cue default":     {DefaultRole: "fx", Members: []Member{{Role: "a", Aliases: []string{"A"}}, {Role: "fx", Aliases: []string{"FX"}, Cue: true}}},
		"only cues":       {Members: []Member{{Role: "fx", Aliases: []string{"FX"}, Cue: true}}},
	}
	for name, cfg := range cases {
		if _, err := NewCast(cfg, nil); err == nil {
			t.Errorf("%s: NewCast() expected error", name)
		}
	}
}

func TestSegmentCueKeepsSpeaker(t *testing.T) {
	c := DefaultCast()
	tests := []struct {
		name       string
		transcript string
		want       []Role
	}{
		{"untagged after cue", "Ka Yan: a | SFX: transition | b", []Role{RoleHost, RoleSFX, RoleHost}},
		{"analyst before cue", "Wai Lun: a | SFX: chime | b | Ka Yan: c", []Role{RoleAnalyst, RoleSFX, RoleAnalyst, RoleHost}},
		{"cue first", "SFX: intro | Good morning.", []Role{RoleSFX, RoleHost}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Segment(tt.transcript)
			if !reflect.DeepEqual(got.Roles(), tt.want) {
				t.Fatalf("Segment(%q) roles = %v, want %v", tt.transcript, got.Roles(), tt.want)
			}
		})
	}

	got := c.Segment("Ka Yan: Local news done. | SFX: transition | Globally, markets fell 2% today. | Wai Lun: Indeed.")
	if u := got.Utterances[2]; u.Role != RoleHost || u.Text != "Globally, markets fell 2 percent today." {
		t.Errorf("utterance after cue = (%s, %q)", u.Role, u.Text)
	}
	if !c.IsCue(RoleSFX) || c.IsCue(RoleHost) {
		t.Errorf("IsCue wrong for default cast")
	}
}
