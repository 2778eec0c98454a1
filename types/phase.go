package types

import "strings"

// GamePhase classifies what the game is currently showing. Phases are
// detected from frames by the vision model and drive the per-phase
// handlers in the agent loop.
type GamePhase string

const (
	PhaseTitleScreen  GamePhase = "title_screen"
	PhaseMainMenu     GamePhase = "main_menu"
	PhaseWorldMap     GamePhase = "world_map"
	PhaseCutscene     GamePhase = "cutscene"
	PhaseBattlePrep   GamePhase = "battle_prep"
	PhaseBattle       GamePhase = "battle"
	PhaseBattleResult GamePhase = "battle_result"
	PhaseShop         GamePhase = "shop"
	PhasePartyMenu    GamePhase = "party_menu"
	PhaseSaveMenu     GamePhase = "save_menu"
	PhaseUnknown      GamePhase = "unknown"
)

// ParseGamePhase maps a model classification string onto a phase.
// Unrecognized input parses to PhaseUnknown, never an error: the
// agent treats an unreadable screen as unknown and presses on.
func ParseGamePhase(s string) GamePhase {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "_"))
	switch GamePhase(normalized) {
	case PhaseTitleScreen, PhaseMainMenu, PhaseWorldMap, PhaseCutscene,
		PhaseBattlePrep, PhaseBattle, PhaseBattleResult, PhaseShop,
		PhasePartyMenu, PhaseSaveMenu:
		return GamePhase(normalized)
	default:
		return PhaseUnknown
	}
}
