package service

import (
	"strings"
	"unicode"

	"github.com/misolabs/miso-api/internal/ai"
)

// actionKeywords are the cooking verbs whose presence or absence marks a
// real change of activity. If the keyword set of the new guidance differs
// from the last spoken one, the change is always significant.
var actionKeywords = []string{
	"chop", "cut", "dice", "slice", "mix", "stir", "whisk", "add",
	"remove", "heat", "cool", "boil", "simmer", "flip", "turn",
	"season", "pour", "drain", "serve",
}

// GuidanceFilter decides whether newly generated guidance is novel enough
// to interrupt the cook. It exclusively owns the last-spoken trackers;
// they mutate only inside ShouldSpeak on acceptance, and reset on step
// advance.
type GuidanceFilter struct {
	similarityCutoff float64

	lastSpokenGuidance string
	lastVisionSummary  string
	lastSceneObjects   map[string]struct{}
}

// NewGuidanceFilter creates a filter. similarityCutoff is the edit-distance
// ratio above which two utterances count as the same thing said twice.
func NewGuidanceFilter(similarityCutoff float64) *GuidanceFilter {
	return &GuidanceFilter{
		similarityCutoff: similarityCutoff,
		lastSceneObjects: make(map[string]struct{}),
	}
}

// ShouldSpeak reports whether guidance should be spoken given the scene it
// was generated from. The rule: speak if the guidance is not a near-repeat
// of the last spoken guidance AND something actually changed (the scene,
// or the set of action keywords). On acceptance the trackers update to
// the new values; a rejection leaves them untouched.
func (f *GuidanceFilter) ShouldSpeak(guidance string, scene ai.SceneDescription) bool {
	sceneChanged := f.sceneChanged(scene)
	actionsChanged := !sameKeywordSet(guidance, f.lastSpokenGuidance)
	similar := f.isSimilar(guidance, f.lastSpokenGuidance)

	if similar || !(sceneChanged || actionsChanged) {
		return false
	}

	f.lastSpokenGuidance = guidance
	f.lastVisionSummary = scene.Summary
	f.lastSceneObjects = toSet(scene.Objects)
	return true
}

// Reset clears the trackers. Called when the cook advances to another step
// so the first guidance for the new step always speaks.
func (f *GuidanceFilter) Reset() {
	f.lastSpokenGuidance = ""
	f.lastVisionSummary = ""
	f.lastSceneObjects = make(map[string]struct{})
}

// LastSpoken returns the most recently accepted guidance.
func (f *GuidanceFilter) LastSpoken() string {
	return f.lastSpokenGuidance
}

func (f *GuidanceFilter) sceneChanged(scene ai.SceneDescription) bool {
	if scene.Summary != f.lastVisionSummary {
		return true
	}
	objects := toSet(scene.Objects)
	if len(objects) != len(f.lastSceneObjects) {
		return true
	}
	for o := range objects {
		if _, ok := f.lastSceneObjects[o]; !ok {
			return true
		}
	}
	return false
}

// isSimilar reports whether two utterances are close enough to count as a
// repeat: equal after normalization, one containing the other, or an edit
// distance ratio above the cutoff.
func (f *GuidanceFilter) isSimilar(a, b string) bool {
	if b == "" {
		return false
	}
	na, nb := normalizeUtterance(a), normalizeUtterance(b)
	if na == nb {
		return true
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return true
	}
	return similarityRatio(na, nb) > f.similarityCutoff
}

// normalizeUtterance lowercases, strips punctuation, and collapses
// whitespace.
func normalizeUtterance(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			sb.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// similarityRatio derives a [0,1] similarity from the Levenshtein edit
// distance: (maxLen - distance) / maxLen.
func similarityRatio(a, b string) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	return float64(maxLen-editDistance(a, b)) / float64(maxLen)
}

// editDistance computes the Levenshtein distance with a two-row table.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// sameKeywordSet reports whether two utterances mention the same set of
// cooking action keywords.
func sameKeywordSet(a, b string) bool {
	ka, kb := keywordSet(a), keywordSet(b)
	if len(ka) != len(kb) {
		return false
	}
	for k := range ka {
		if _, ok := kb[k]; !ok {
			return false
		}
	}
	return true
}

func keywordSet(s string) map[string]struct{} {
	words := toSet(strings.Fields(normalizeUtterance(s)))
	set := make(map[string]struct{})
	for _, kw := range actionKeywords {
		if _, ok := words[kw]; ok {
			set[kw] = struct{}{}
		}
	}
	return set
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
