package schema

import (
	"fmt"

	"github.com/bizkut/eden-fft-agent/types"
)

// DecodeError indicates a byte range too small for the schema entry
// mapped onto it. This is the only decode failure: out-of-range enum
// and bitfield values are valid data (the target's layout shifts
// across game versions) and decode to explicit unknown variants.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode field %q: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Value is a decoded field. Exactly one of Uint/Bool carries the
// result, selected by Kind (bool for KindBool, uint otherwise).
type Value struct {
	Kind FieldKind
	Uint uint64
	Bool bool
}

// DecodeField applies one schema entry to a unit-region byte range.
// Deterministic and free of I/O: identical bytes always yield
// identical values. Multi-byte fields are little-endian per the
// target platform's layout.
func DecodeField(f Field, raw []byte) (Value, error) {
	end := int(f.Offset) + f.Width
	if end > len(raw) {
		return Value{}, &DecodeError{
			Field: f.Name,
			Err:   fmt.Errorf("need %d bytes at offset 0x%x, region holds %d", f.Width, f.Offset, len(raw)),
		}
	}

	u := decodeLE(raw[f.Offset:end])
	v := Value{Kind: f.Kind, Uint: u}
	if f.Kind == KindBool {
		v.Bool = u != 0
		v.Uint = 0
	}
	return v, nil
}

// decodeLE reads up to 8 bytes little-endian.
func decodeLE(b []byte) uint64 {
	var u uint64
	for i := len(b) - 1; i >= 0; i-- {
		u = u<<8 | uint64(b[i])
	}
	return u
}

// DecodeUnit applies the whole per-unit table to one slot's byte
// range, producing a fresh record. Unknown field names in a loaded
// table are skipped; they address record fields this build does not
// carry.
func (s *Schema) DecodeUnit(slot int, raw []byte) (types.UnitRecord, error) {
	rec := types.UnitRecord{Slot: slot}
	for _, f := range s.Fields {
		v, err := DecodeField(f, raw)
		if err != nil {
			return types.UnitRecord{}, err
		}
		applyField(&rec, f.Name, v)
	}
	return rec, nil
}

// DecodeLead applies one absolute lead-unit entry to its byte range.
func (s *Schema) DecodeLead(rec *types.UnitRecord, f AbsoluteField, raw []byte) error {
	v, err := DecodeField(Field{Name: f.Name, Offset: 0, Width: f.Width, Kind: f.Kind}, raw)
	if err != nil {
		return err
	}
	switch f.Name {
	case "job_id":
		rec.Job = types.JobID(v.Uint)
	case "ability2_id":
		rec.Ability = types.AbilityID(v.Uint)
	}
	return nil
}

func applyField(rec *types.UnitRecord, name string, v Value) {
	switch name {
	case "hp":
		rec.HP = int(v.Uint)
	case "max_hp":
		rec.MaxHP = int(v.Uint)
	case "mp":
		rec.MP = int(v.Uint)
	case "max_mp":
		rec.MaxMP = int(v.Uint)
	case "brave":
		rec.Brave = int(v.Uint)
	case "faith":
		rec.Faith = int(v.Uint)
	case "speed":
		rec.Speed = int(v.Uint)
	case "attack":
		rec.Attack = int(v.Uint)
	case "attack2":
		rec.Attack2 = int(v.Uint)
	case "attack_power":
		rec.AttackPower = int(v.Uint)
	case "move_count":
		rec.MoveCount = int(v.Uint)
	case "max_moves":
		rec.MaxMoves = int(v.Uint)
	case "status_shield_1":
		rec.StatusShield1 = uint16(v.Uint)
	case "status_shield_2":
		rec.StatusShield2 = uint16(v.Uint)
	case "magic_ready":
		rec.MagicReady = v.Bool
	case "skill_poaching":
		rec.SkillPoaching = v.Bool
	case "skill_xp_hp_move":
		rec.SkillXPHPMove = v.Bool
	case "skill_fly":
		rec.SkillFly = v.Bool
	}
}
