package types

import "fmt"

// JobID identifies a unit's job class as stored in target memory.
type JobID uint8

// jobNames maps known job IDs to display names. IDs outside this table
// are valid values (the layout shifts across game versions) and render
// as Unknown rather than failing decode.
var jobNames = map[JobID]string{
	0x05: "Holy Knight",
	0x08: "Ark Knight",
	0x09: "Rune Knight",
	0x0C: "Princess",
	0x0D: "Sword Saint",
	0x0F: "Dragonkin",
	0x10: "Celebrant",
	0x11: "Fell Knight",
	0x1F: "Templar",
	0x24: "Divine Knight",
	0x48: "Holy Dragon",
}

// Known reports whether the job ID maps to a named job.
func (j JobID) Known() bool {
	_, ok := jobNames[j]
	return ok
}

// String returns the job display name, or an explicit unknown variant
// carrying the raw byte.
func (j JobID) String() string {
	if name, ok := jobNames[j]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (0x%02x)", uint8(j))
}

// AbilityID identifies a unit's secondary ability slot.
type AbilityID uint8

var abilityNames = map[AbilityID]string{
	0x29: "Limit",
	0x2B: "Dragon",
	0x30: "Holy Sword",
	0x35: "Pugilism",
	0x36: "Subdual Arts",
	0x3B: "Sword Spirit",
	0x46: "Swordsmanship",
	0x48: "Magick Arts",
}

// Known reports whether the ability ID maps to a named ability.
func (a AbilityID) Known() bool {
	_, ok := abilityNames[a]
	return ok
}

// String returns the ability display name, or an explicit unknown
// variant carrying the raw byte.
func (a AbilityID) String() string {
	if name, ok := abilityNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (0x%02x)", uint8(a))
}

// UnitRecord is the decoded stat block for one party slot.
// Records are recreated every poll cycle and never mutated in place.
type UnitRecord struct {
	Slot int // 1-based party slot

	HP     int
	MaxHP  int
	MP     int
	MaxMP  int
	Brave  int
	Faith  int
	Speed  int
	Attack int
	// Attack2 is the secondary attack stat.
	Attack2     int
	AttackPower int
	MoveCount   int
	MaxMoves    int

	// StatusShield1 and StatusShield2 are raw status-effect bitfields.
	StatusShield1 uint16
	StatusShield2 uint16

	// MagicReady is set when a charged spell is ready to cast.
	MagicReady bool

	SkillPoaching bool
	SkillXPHPMove bool
	SkillFly      bool

	// Job and Ability are populated for the lead unit only; the stub
	// exposes them at absolute addresses outside the slot stride.
	Job     JobID
	Ability AbilityID
}

// Alive reports whether the slot holds a living unit. Slots with zero
// max HP are empty roster positions, not dead units.
func (u UnitRecord) Alive() bool {
	return u.MaxHP > 0 && u.HP > 0
}

// Present reports whether the slot holds any unit at all.
func (u UnitRecord) Present() bool {
	return u.MaxHP > 0
}

// HPFraction returns current HP as a fraction of max, or 0 for empty slots.
func (u UnitRecord) HPFraction() float64 {
	if u.MaxHP <= 0 {
		return 0
	}
	return float64(u.HP) / float64(u.MaxHP)
}

// StatusBit reports whether bit n of the combined 32-bit status
// bitfield is set (shield 1 occupies the low 16 bits).
func (u UnitRecord) StatusBit(n uint) bool {
	combined := uint32(u.StatusShield1) | uint32(u.StatusShield2)<<16
	return combined&(1<<n) != 0
}
