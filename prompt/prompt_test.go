package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/bizkut/eden-fft-agent/types"
)

func TestBuildBattle_CarriesStateAndActions(t *testing.T) {
	snap := types.PartySnapshot{
		Seq: 7,
		Units: []types.UnitRecord{
			{Slot: 1, HP: 120, MaxHP: 150, MP: 30, MaxMP: 50, Brave: 70, MagicReady: true, Job: 0x05},
			{Slot: 2, HP: 45, MaxHP: 80},
			{Slot: 3}, // empty slot stays hidden
		},
	}

	got := BuildBattle(Battle{
		MapName:       "Dorter Trade City",
		Turn:          3,
		Snapshot:      snap,
		AdvisorPlan:   "## Advisor Strategy\nMode: **OFFENSIVE**",
		MapAdvice:     "## Historical Data for Dorter Trade City",
		GuideNotes:    "## Strategy Notes\n### Dorter opening\nHold the rooftops.",
		ValidActions:  []string{"Move", "Attack", "Item", "Wait"},
		FrameAttached: true,
	})

	for _, want := range []string{
		"## Battle: Dorter Trade City",
		"Turn: 3",
		"**VISUAL INPUT:**",
		"Unit 1 (Ramza)",
		"- HP: 120/150",
		"- Brave: 70",
		"Spell CHARGED",
		"- Job: Holy Knight",
		"### Unit 2",
		"Mode: **OFFENSIVE**",
		"## Historical Data for Dorter Trade City",
		"### Dorter opening",
		"Move, Attack, Item, Wait",
		"What action should be taken?",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "### Unit 3") {
		t.Error("empty slot rendered in prompt")
	}
}

func TestBuildBattle_DefaultsWithoutOptionalBlocks(t *testing.T) {
	got := BuildBattle(Battle{
		Turn:     1,
		Snapshot: types.PartySnapshot{Units: []types.UnitRecord{{Slot: 1, HP: 10, MaxHP: 10}}},
	})
	if !strings.Contains(got, "## Battle: Battle Map") {
		t.Error("default map name missing")
	}
	if !strings.Contains(got, "Move, Attack, Wait") {
		t.Error("default action list missing")
	}
	if strings.Contains(got, "VISUAL INPUT") {
		t.Error("visual block rendered without an attached frame")
	}
}

func TestFormatSnapshot_ReadFailureIsExplicit(t *testing.T) {
	got := FormatSnapshot(types.PartySnapshot{}, errors.New("link degraded"))
	if got != "[Memory Read Failed: link degraded]" {
		t.Errorf("got %q", got)
	}

	empty := FormatSnapshot(types.PartySnapshot{}, nil)
	if !strings.Contains(empty, "Memory Read Failed") {
		t.Errorf("empty snapshot not flagged: %q", empty)
	}
}

func TestBuildPhasePrompt_ListsAllPhases(t *testing.T) {
	got := BuildPhasePrompt()
	for _, phase := range []types.GamePhase{types.PhaseBattle, types.PhaseWorldMap, types.PhaseSaveMenu} {
		if !strings.Contains(got, string(phase)) {
			t.Errorf("phase prompt missing %q", phase)
		}
	}
}
