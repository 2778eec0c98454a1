package gamestate

import (
	"fmt"

	"github.com/bizkut/eden-fft-agent/types"
)

// diffFields fixes the emission order so Diff output is stable for
// identical inputs.
var diffFields = []struct {
	name string
	get  func(u types.UnitRecord) int64
}{
	{"hp", func(u types.UnitRecord) int64 { return int64(u.HP) }},
	{"max_hp", func(u types.UnitRecord) int64 { return int64(u.MaxHP) }},
	{"mp", func(u types.UnitRecord) int64 { return int64(u.MP) }},
	{"max_mp", func(u types.UnitRecord) int64 { return int64(u.MaxMP) }},
	{"brave", func(u types.UnitRecord) int64 { return int64(u.Brave) }},
	{"faith", func(u types.UnitRecord) int64 { return int64(u.Faith) }},
	{"speed", func(u types.UnitRecord) int64 { return int64(u.Speed) }},
	{"attack", func(u types.UnitRecord) int64 { return int64(u.Attack) }},
	{"attack2", func(u types.UnitRecord) int64 { return int64(u.Attack2) }},
	{"attack_power", func(u types.UnitRecord) int64 { return int64(u.AttackPower) }},
	{"move_count", func(u types.UnitRecord) int64 { return int64(u.MoveCount) }},
	{"max_moves", func(u types.UnitRecord) int64 { return int64(u.MaxMoves) }},
	{"magic_ready", func(u types.UnitRecord) int64 { return boolVal(u.MagicReady) }},
	{"skill_poaching", func(u types.UnitRecord) int64 { return boolVal(u.SkillPoaching) }},
	{"skill_xp_hp_move", func(u types.UnitRecord) int64 { return boolVal(u.SkillXPHPMove) }},
	{"skill_fly", func(u types.UnitRecord) int64 { return boolVal(u.SkillFly) }},
	{"job_id", func(u types.UnitRecord) int64 { return int64(u.Job) }},
	{"ability2_id", func(u types.UnitRecord) int64 { return int64(u.Ability) }},
}

func boolVal(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Diff compares two snapshots and returns one entry per field whose
// decoded value differs, slot by slot. Status bitmasks produce one
// entry per changed bit so a single byte flip reports which status
// actually toggled. Pure: Diff(s, s) is always empty.
func Diff(prev, cur types.PartySnapshot) []types.FieldChange {
	var changes []types.FieldChange

	slots := len(prev.Units)
	if len(cur.Units) > slots {
		slots = len(cur.Units)
	}

	for i := 0; i < slots; i++ {
		var before, after types.UnitRecord
		if i < len(prev.Units) {
			before = prev.Units[i]
		}
		if i < len(cur.Units) {
			after = cur.Units[i]
		}
		slot := after.Slot
		if slot == 0 {
			slot = before.Slot
		}

		for _, f := range diffFields {
			old, now := f.get(before), f.get(after)
			if old != now {
				changes = append(changes, types.FieldChange{
					Slot:  slot,
					Field: f.name,
					Old:   old,
					New:   now,
				})
			}
		}

		changes = append(changes, diffStatusBits(slot, before, after)...)
	}
	return changes
}

func diffStatusBits(slot int, before, after types.UnitRecord) []types.FieldChange {
	oldMask := uint32(before.StatusShield1) | uint32(before.StatusShield2)<<16
	newMask := uint32(after.StatusShield1) | uint32(after.StatusShield2)<<16
	if oldMask == newMask {
		return nil
	}

	var changes []types.FieldChange
	for bit := 0; bit < 32; bit++ {
		old := oldMask >> bit & 1
		now := newMask >> bit & 1
		if old != now {
			changes = append(changes, types.FieldChange{
				Slot:  slot,
				Field: fmt.Sprintf("status_bit_%d", bit),
				Old:   int64(old),
				New:   int64(now),
			})
		}
	}
	return changes
}
