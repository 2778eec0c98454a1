package learner

import (
	"strings"
	"testing"
)

type fakeGuides struct {
	titles []string
}

func (f *fakeGuides) StoreStrategyGuide(title, _ string, _ []string) error {
	f.titles = append(f.titles, title)
	return nil
}

func newLearner(t *testing.T, dir string, opts ...Option) *Learner {
	t.Helper()
	l, err := New(dir, nil, nil, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return l
}

func TestEndBattle_PersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	l := newLearner(t, dir)

	rec := l.StartBattle("Dorter Trade City", []UnitSummary{{Slot: 1, Job: "Squire", HP: 100, MaxHP: 100}})
	l.LogAction(rec, "move 1 forward")
	l.LogDecision(rec, "focus enemy archers")
	if err := l.EndBattle(rec, true, 12, 0); err != nil {
		t.Fatalf("EndBattle failed: %v", err)
	}

	reloaded := newLearner(t, dir)
	history := reloaded.History()
	if len(history) != 1 {
		t.Fatalf("reloaded history = %d battles, want 1", len(history))
	}
	got := history[0]
	if !got.Victory || got.TurnsTaken != 12 || got.MapName != "Dorter Trade City" {
		t.Errorf("reloaded record = %+v", got)
	}
	if len(got.Actions) != 1 || got.Actions[0] != "move 1 forward" {
		t.Errorf("actions = %v", got.Actions)
	}

	insights := reloaded.Insights()
	if len(insights) != 1 {
		t.Fatalf("insights = %d, want 1", len(insights))
	}
	if insights[0].Context != "Dorter Trade City" || insights[0].SuccessRate != 1.0 {
		t.Errorf("insight = %+v", insights[0])
	}
}

func TestInsight_SuccessRateTracksOutcomes(t *testing.T) {
	l := newLearner(t, t.TempDir())

	for _, victory := range []bool{true, false, false, true} {
		rec := l.StartBattle("Zeirchele Falls", nil)
		if err := l.EndBattle(rec, victory, 10, 0); err != nil {
			t.Fatalf("EndBattle failed: %v", err)
		}
	}

	insights := l.Insights()
	if len(insights) != 1 {
		t.Fatalf("insights = %d, want 1", len(insights))
	}
	if insights[0].SuccessRate != 0.5 || insights[0].SampleSize != 4 {
		t.Errorf("insight = %+v, want rate 0.5 over 4 samples", insights[0])
	}
}

func TestAdviceForMap(t *testing.T) {
	l := newLearner(t, t.TempDir())

	if advice := l.AdviceForMap("Mandalia Plains"); advice != "" {
		t.Errorf("advice for unseen map = %q, want empty", advice)
	}

	// Two defeats make the map advice defensive.
	for _, lost := range []int{2, 3} {
		rec := l.StartBattle("Mandalia Plains", nil)
		if err := l.EndBattle(rec, false, 20, lost); err != nil {
			t.Fatalf("EndBattle failed: %v", err)
		}
	}
	advice := l.AdviceForMap("Mandalia Plains")
	if !strings.Contains(advice, "2 (0W / 2L)") {
		t.Errorf("advice missing attempt summary:\n%s", advice)
	}
	if !strings.Contains(advice, "Play defensively") {
		t.Errorf("losing record did not produce defensive advice:\n%s", advice)
	}

	// A fast win flips the advice to the best clear.
	rec := l.StartBattle("Mandalia Plains", nil)
	if err := l.EndBattle(rec, true, 8, 0); err != nil {
		t.Fatalf("EndBattle failed: %v", err)
	}
	rec = l.StartBattle("Mandalia Plains", nil)
	if err := l.EndBattle(rec, true, 15, 1); err != nil {
		t.Fatalf("EndBattle failed: %v", err)
	}
	advice = l.AdviceForMap("Mandalia Plains")
	if !strings.Contains(advice, "Best clear: 8 turns") {
		t.Errorf("winning record did not surface best clear:\n%s", advice)
	}
}

func TestEndBattle_VictoryReachesGuideStore(t *testing.T) {
	guides := &fakeGuides{}
	l := newLearner(t, t.TempDir(), WithGuideStore(guides))

	rec := l.StartBattle("Orbonne Monastery", nil)
	if err := l.EndBattle(rec, false, 9, 2); err != nil {
		t.Fatalf("EndBattle failed: %v", err)
	}
	if len(guides.titles) != 0 {
		t.Errorf("defeat stored a guide: %v", guides.titles)
	}

	rec = l.StartBattle("Orbonne Monastery", nil)
	if err := l.EndBattle(rec, true, 7, 0); err != nil {
		t.Fatalf("EndBattle failed: %v", err)
	}
	if len(guides.titles) != 1 || guides.titles[0] != "Victory at Orbonne Monastery" {
		t.Errorf("guide titles = %v", guides.titles)
	}
}
