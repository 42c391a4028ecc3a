package service

import (
	"testing"

	"github.com/misolabs/miso-api/internal/ai"
)

func testScene() ai.SceneDescription {
	return ai.SceneDescription{
		Objects:      []string{"onion", "knife"},
		Actions:      []string{"chopping"},
		CookingState: ai.StatePreparing,
		Confidence:   0.9,
		Summary:      "chopping onions",
	}
}

func TestShouldSpeakFirstTimeThenRepeatSuppressed(t *testing.T) {
	f := NewGuidanceFilter(0.8)
	scene := testScene()

	if !f.ShouldSpeak("Chop the onions into smaller pieces", scene) {
		t.Fatal("first guidance should speak")
	}
	if f.ShouldSpeak("Chop the onions into smaller pieces", scene) {
		t.Error("identical guidance with identical scene should be suppressed")
	}
}

func TestShouldSpeakActionKeywordOverride(t *testing.T) {
	f := NewGuidanceFilter(0.8)
	scene := testScene()

	if !f.ShouldSpeak("Chop the onions finely", scene) {
		t.Fatal("first guidance should speak")
	}
	// Same scene, but the action verb changed: always significant.
	if !f.ShouldSpeak("Stir the onions now", scene) {
		t.Error("guidance with a different action keyword must speak even when the scene is unchanged")
	}
}

func TestShouldSpeakNearDuplicateSuppressed(t *testing.T) {
	f := NewGuidanceFilter(0.8)
	scene := testScene()

	if !f.ShouldSpeak("Chop the onions finely now", scene) {
		t.Fatal("first guidance should speak")
	}

	changed := testScene()
	changed.Summary = "still chopping onions"
	// One character of difference; edit ratio is far above the cutoff.
	if f.ShouldSpeak("Chop the onions finely now!", changed) {
		t.Error("near-identical guidance should be suppressed despite scene change")
	}
}

func TestShouldSpeakSubstringSuppressed(t *testing.T) {
	f := NewGuidanceFilter(0.8)
	scene := testScene()

	if !f.ShouldSpeak("Chop the onions", scene) {
		t.Fatal("first guidance should speak")
	}

	changed := testScene()
	changed.Summary = "chopping continues"
	if f.ShouldSpeak("Chop the onions, nice and fine", changed) {
		t.Error("guidance containing the last utterance should be suppressed")
	}
}

func TestShouldSpeakSceneObjectChange(t *testing.T) {
	f := NewGuidanceFilter(0.8)
	scene := testScene()

	if !f.ShouldSpeak("Chop the onions finely", scene) {
		t.Fatal("first guidance should speak")
	}

	changed := testScene()
	changed.Objects = []string{"onion", "knife", "frying pan"}
	// Different utterance, different object set: speak.
	if !f.ShouldSpeak("Get the pan heating while you finish", changed) {
		t.Error("new object in scene with novel guidance should speak")
	}
}

func TestShouldSpeakNoChangeNoSpeech(t *testing.T) {
	f := NewGuidanceFilter(0.8)
	scene := testScene()

	if !f.ShouldSpeak("Chop the onions finely", scene) {
		t.Fatal("first guidance should speak")
	}
	// Different words but same action keyword and identical scene.
	if f.ShouldSpeak("Keep on and chop those pieces of onion evenly please my friend", scene) {
		t.Error("unchanged scene and unchanged action keywords should be suppressed")
	}
}

func TestResetClearsTrackers(t *testing.T) {
	f := NewGuidanceFilter(0.8)
	scene := testScene()

	if !f.ShouldSpeak("Chop the onions finely", scene) {
		t.Fatal("first guidance should speak")
	}
	f.Reset()
	if f.LastSpoken() != "" {
		t.Error("Reset should clear last spoken guidance")
	}
	if !f.ShouldSpeak("Chop the onions finely", scene) {
		t.Error("after Reset the same guidance should speak again")
	}
}

func TestNormalizeUtterance(t *testing.T) {
	got := normalizeUtterance("  Chop, the ONIONS!  finely...  ")
	want := "chop the onions finely"
	if got != want {
		t.Errorf("normalize = %q, want %q", got, want)
	}
}

func TestEditDistance(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"stir", "stir", 0},
	}
	for _, c := range cases {
		if got := editDistance(c.a, c.b); got != c.want {
			t.Errorf("editDistance(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}
