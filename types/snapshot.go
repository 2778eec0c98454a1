package types

import "time"

// PartySnapshot is an immutable decoded view of the party at one poll
// cycle. Seq increases monotonically across successful polls; a failed
// poll never produces a snapshot.
type PartySnapshot struct {
	Seq        uint64
	CapturedAt time.Time
	Units      []UnitRecord
}

// Unit returns the record for a 1-based slot, or false if absent.
func (s PartySnapshot) Unit(slot int) (UnitRecord, bool) {
	for _, u := range s.Units {
		if u.Slot == slot {
			return u, true
		}
	}
	return UnitRecord{}, false
}

// ActiveUnits returns the units occupying a roster slot.
func (s PartySnapshot) ActiveUnits() []UnitRecord {
	active := make([]UnitRecord, 0, len(s.Units))
	for _, u := range s.Units {
		if u.Present() {
			active = append(active, u)
		}
	}
	return active
}

// FieldChange records one decoded field whose value differs between
// two consecutive snapshots.
type FieldChange struct {
	Slot  int
	Field string
	Old   int64
	New   int64
}
