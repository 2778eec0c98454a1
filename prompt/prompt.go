// Package prompt renders game state, advisor plans, and learned
// history into the text handed to the language model.
package prompt

import (
	"fmt"
	"strings"

	"github.com/bizkut/eden-fft-agent/types"
)

// System is the fixed instruction block sent with every battle
// request. The response format contract is parsed by the actions
// package; keep the two in sync.
const System = `You are an expert Final Fantasy Tactics player. You make optimal tactical decisions.

CRITICAL: You are currently playing in "BLIND MODE".
- You do NOT know exact unit positions or stats.
- You MUST make a best-guess decision.
- DO NOT REFUSE TO ACT.
- Moving blindly (e.g., "Right 2") is better than doing nothing.
- Assume enemies are forward/up.

Rules:
1. Prioritize keeping your units alive
2. Focus fire on weakened enemies
3. Use terrain height advantage when possible
4. Protect your healer and mages
5. Consider enemy turn order when positioning

Always respond in this exact format:
ACTION: <action_name>
TARGET: <x,y coordinates OR relative direction>
REASON: <brief tactical explanation>`

// Battle describes one decision request.
type Battle struct {
	MapName string
	Turn    int
	// Snapshot is live memory state; zero-valued when unavailable.
	Snapshot types.PartySnapshot
	// SnapshotErr notes why memory state is missing.
	SnapshotErr error
	// AdvisorPlan is the tactical plan block, already formatted.
	AdvisorPlan string
	// MapAdvice is learned per-map history, already formatted.
	MapAdvice string
	// GuideNotes are stored strategy guides, already formatted.
	GuideNotes string
	// ValidActions lists the actions the parser will accept.
	ValidActions []string
	// FrameAttached notes that a screenshot rides along in the request.
	FrameAttached bool
}

// BuildBattle renders a battle decision prompt.
func BuildBattle(b Battle) string {
	var lines []string

	mapName := b.MapName
	if mapName == "" {
		mapName = "Battle Map"
	}
	lines = append(lines,
		fmt.Sprintf("## Battle: %s", mapName),
		fmt.Sprintf("Turn: %d", b.Turn),
		"",
	)

	if b.FrameAttached {
		lines = append(lines,
			"**VISUAL INPUT:** A screenshot of the current battle is attached.",
			"- Use the image to identify unit positions, terrain, and the highlighted cursor.",
			"- **LEGEND:** BLUE tiles = Movement range, YELLOW tiles = Attack range.",
			"- Combine visual cues with the stats below.",
			"",
		)
	}

	lines = append(lines, FormatSnapshot(b.Snapshot, b.SnapshotErr), "")

	if b.AdvisorPlan != "" {
		lines = append(lines, b.AdvisorPlan, "")
	}
	if b.MapAdvice != "" {
		lines = append(lines, b.MapAdvice, "")
	}
	if b.GuideNotes != "" {
		lines = append(lines, b.GuideNotes, "")
	}

	actions := b.ValidActions
	if len(actions) == 0 {
		actions = []string{"Move", "Attack", "Wait"}
	}
	lines = append(lines,
		"## Available Actions",
		strings.Join(actions, ", "),
		"",
		"NOTE: Exact X/Y coordinates are unavailable. You MUST use relative directions.",
		"EXAMPLE: 'ACTION: Move', 'TARGET: Right 2'",
		"",
		"What action should be taken?",
	)
	return strings.Join(lines, "\n")
}

// FormatSnapshot renders live memory state as a prompt block. A
// missing snapshot is stated explicitly so the model never reasons
// over silently absent stats.
func FormatSnapshot(snap types.PartySnapshot, snapErr error) string {
	if snapErr != nil {
		return fmt.Sprintf("[Memory Read Failed: %v]", snapErr)
	}

	var lines []string
	lines = append(lines, "## Live Game State (from memory)")

	shown := 0
	for _, u := range snap.Units {
		if u.HP == 0 && u.MaxHP == 0 {
			continue
		}
		shown++

		label := fmt.Sprintf("Unit %d", u.Slot)
		if u.Slot == 1 {
			label = "Unit 1 (Ramza)"
		}
		lines = append(lines, "", "### "+label)
		lines = append(lines, fmt.Sprintf("- HP: %d/%d", u.HP, u.MaxHP))
		lines = append(lines, fmt.Sprintf("- MP: %d/%d", u.MP, u.MaxMP))

		if u.Brave > 0 {
			lines = append(lines, fmt.Sprintf("- Brave: %d", u.Brave))
		}
		if u.Faith > 0 {
			lines = append(lines, fmt.Sprintf("- Faith: %d", u.Faith))
		}
		if u.Speed > 0 {
			lines = append(lines, fmt.Sprintf("- Speed: %d", u.Speed))
		}
		if u.Attack > 0 {
			attack := fmt.Sprintf("- Attack: %d", u.Attack)
			if u.Attack2 > 0 {
				attack += fmt.Sprintf(" / %d", u.Attack2)
			}
			lines = append(lines, attack)
		}
		if u.MoveCount > 0 || u.MaxMoves > 0 {
			lines = append(lines, fmt.Sprintf("- Movement: %d used, %d range", u.MoveCount, u.MaxMoves))
		}
		if u.MagicReady {
			lines = append(lines, "- Spell CHARGED and ready!")
		}
		if u.Slot == 1 {
			if u.Job.Known() {
				lines = append(lines, fmt.Sprintf("- Job: %s", u.Job))
			}
			if u.Ability.Known() {
				lines = append(lines, fmt.Sprintf("- Secondary: %s", u.Ability))
			}
		}
	}
	if shown == 0 {
		return "[Memory Read Failed: no unit data]"
	}
	return strings.Join(lines, "\n")
}

// BuildPhasePrompt asks the vision model to classify the current
// screen; the reply feeds types.ParseGamePhase.
func BuildPhasePrompt() string {
	phases := []string{
		string(types.PhaseTitleScreen), string(types.PhaseMainMenu),
		string(types.PhaseWorldMap), string(types.PhaseCutscene),
		string(types.PhaseBattlePrep), string(types.PhaseBattle),
		string(types.PhaseBattleResult), string(types.PhaseShop),
		string(types.PhasePartyMenu), string(types.PhaseSaveMenu),
	}
	return fmt.Sprintf(
		"Classify the attached game screenshot. Reply with exactly one of: %s. Reply with only the label.",
		strings.Join(phases, ", "))
}
