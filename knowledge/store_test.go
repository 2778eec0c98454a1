package knowledge

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bizkut/eden-fft-agent/types"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "knowledge.db"), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreLearning_RoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	id, err := s.StoreLearning(ctx, Learning{
		Button:  "a",
		Phase:   types.PhaseBattle,
		Context: "Menu showing Move, Act, Wait options. Cursor on Move.",
		Effect:  "Blue movement tiles appeared around the character.",
	})
	if err != nil {
		t.Fatalf("StoreLearning failed: %v", err)
	}
	if id == 0 {
		t.Error("StoreLearning returned zero ID")
	}

	got, err := s.ButtonKnowledge(ctx, "a", "")
	if err != nil {
		t.Fatalf("ButtonKnowledge failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("learnings = %d, want 1", len(got))
	}
	if got[0].Phase != types.PhaseBattle || got[0].Effect == "" {
		t.Errorf("learning = %+v", got[0])
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("learning has no timestamp")
	}
}

func TestButtonKnowledge_PhaseFilter(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for _, phase := range []types.GamePhase{types.PhaseBattle, types.PhaseMainMenu} {
		if _, err := s.StoreLearning(ctx, Learning{Button: "b", Phase: phase, Context: "c", Effect: "e"}); err != nil {
			t.Fatalf("StoreLearning failed: %v", err)
		}
	}

	all, err := s.ButtonKnowledge(ctx, "b", "")
	if err != nil {
		t.Fatalf("ButtonKnowledge failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("unfiltered learnings = %d, want 2", len(all))
	}

	battle, err := s.ButtonKnowledge(ctx, "b", types.PhaseBattle)
	if err != nil {
		t.Fatalf("ButtonKnowledge failed: %v", err)
	}
	if len(battle) != 1 || battle[0].Phase != types.PhaseBattle {
		t.Errorf("filtered learnings = %+v, want one battle entry", battle)
	}
}

func TestSimilarLearnings_MatchesContextKeywords(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	seed := []Learning{
		{Button: "a", Phase: types.PhaseBattle, Context: "battle menu open with cursor on Move", Effect: "movement tiles shown"},
		{Button: "a", Phase: types.PhaseBattle, Context: "targeting an enemy knight", Effect: "attack confirmed"},
		{Button: "a", Phase: types.PhaseMainMenu, Context: "battle menu open", Effect: "wrong phase"},
	}
	for _, l := range seed {
		if _, err := s.StoreLearning(ctx, l); err != nil {
			t.Fatalf("StoreLearning failed: %v", err)
		}
	}

	got, err := s.SimilarLearnings(ctx, "a", types.PhaseBattle, "cursor visible in the battle menu", 3)
	if err != nil {
		t.Fatalf("SimilarLearnings failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("similar learnings = %d, want 1: %+v", len(got), got)
	}
	if got[0].Effect != "movement tiles shown" {
		t.Errorf("matched wrong learning: %+v", got[0])
	}
}

func TestQueryGuides(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if err := s.StoreStrategyGuide("Victory at Dorter Trade City", "Focus fire on enemy archers from high ground.", []string{"battle", "victory"}); err != nil {
		t.Fatalf("StoreStrategyGuide failed: %v", err)
	}
	if err := s.StoreStrategyGuide("Job guide: Monk", "Chakra restores HP and MP without items.", []string{"jobs"}); err != nil {
		t.Fatalf("StoreStrategyGuide failed: %v", err)
	}

	guides, err := s.QueryGuides(ctx, "Dorter archers", 3)
	if err != nil {
		t.Fatalf("QueryGuides failed: %v", err)
	}
	if len(guides) != 1 {
		t.Fatalf("guides = %d, want 1: %+v", len(guides), guides)
	}
	if guides[0].Title != "Victory at Dorter Trade City" {
		t.Errorf("guide = %+v", guides[0])
	}
	if len(guides[0].Tags) != 2 || guides[0].Tags[0] != "battle" {
		t.Errorf("tags = %v", guides[0].Tags)
	}

	none, err := s.QueryGuides(ctx, "zzzz-nothing-matches", 3)
	if err != nil {
		t.Fatalf("QueryGuides failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("unexpected matches: %+v", none)
	}
}
