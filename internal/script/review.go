package script

import (
	"fmt"
	"slices"
	"strings"
)

// ReviewIssue is one problem found in a segmented transcript.
type ReviewIssue struct {
	Category string `json:"category"` // balance, filler, tags
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

// Review runs cheap heuristics over a segmentation. Issues never stop a
// render; they are logged and shown by the segment tools.
func Review(seg Segmentation) []ReviewIssue {
	var issues []ReviewIssue
	issues = append(issues, checkTags(seg)...)
	issues = append(issues, checkCueText(seg)...)
	issues = append(issues, checkSpeakerBalance(seg)...)
	issues = append(issues, checkFillerPhrases(seg)...)
	return issues
}

func checkTags(seg Segmentation) []ReviewIssue {
	if len(seg.Utterances) > 1 && seg.Matched == 0 {
		return []ReviewIssue{{
			Category: "tags",
			Message:  fmt.Sprintf("No speaker tags matched; all %d utterances go to the default role", len(seg.Utterances)),
			Severity: "warning",
		}}
	}
	return nil
}

// maxCueWords is the longest cue label that still reads as a sound effect.
const maxCueWords = 6

// checkCueText flags sound-effect utterances that carry sentences. Cues are
// rendered as chimes, so that text would never be heard.
func checkCueText(seg Segmentation) []ReviewIssue {
	var issues []ReviewIssue
	for _, u := range seg.Utterances {
		if u.Role != RoleSFX {
			continue
		}
		if n := len(strings.Fields(u.Text)); n > maxCueWords {
			issues = append(issues, ReviewIssue{
				Category: "tags",
				Message:  fmt.Sprintf("Utterance %d is a sound cue but has %d words; it will not be spoken", u.Index, n),
				Severity: "error",
			})
		}
	}
	return issues
}

// checkSpeakerBalance flags a speaking role with under 20% of the spoken
// utterances. Sound cues are not counted.
func checkSpeakerBalance(seg Segmentation) []ReviewIssue {
	counts := map[Role]int{}
	total := 0
	for _, u := range seg.Utterances {
		if u.Role == RoleSFX {
			continue
		}
		counts[u.Role]++
		total++
	}
	if total < 5 || len(counts) < 2 {
		return nil
	}

	roles := make([]Role, 0, len(counts))
	for role := range counts {
		roles = append(roles, role)
	}
	slices.Sort(roles)

	const minPct = 0.20
	var issues []ReviewIssue
	for _, role := range roles {
		count := counts[role]
		pct := float64(count) / float64(total)
		if pct < minPct {
			issues = append(issues, ReviewIssue{
				Category: "balance",
				Message:  fmt.Sprintf("%s has only %.0f%% of utterances (%d/%d), minimum is %.0f%%", role, pct*100, count, total, minPct*100),
				Severity: "warning",
			})
		}
	}
	return issues
}

var bannedPhrases = []string{
	"that's a great point",
	"absolutely",
	"that's fascinating",
	"i love that",
	"so true",
	"you nailed it",
	"great question",
	"i couldn't agree more",
	"you're so right",
	"oh wow",
	"that's spot on",
	"you hit the nail on the head",
	"that's exactly right",
}

func checkFillerPhrases(seg Segmentation) []ReviewIssue {
	n := 0
	for _, u := range seg.Utterances {
		lower := strings.ToLower(u.Text)
		for _, phrase := range bannedPhrases {
			if strings.Contains(lower, phrase) {
				n++
				break
			}
		}
	}
	if n == 0 {
		return nil
	}
	severity := "warning"
	if n > 5 {
		severity = "error"
	}
	return []ReviewIssue{{
		Category: "filler",
		Message:  fmt.Sprintf("Found %d utterances with filler phrases", n),
		Severity: severity,
	}}
}
