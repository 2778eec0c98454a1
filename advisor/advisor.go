// Package advisor turns a decoded party snapshot into tactical
// guidance. The rules are deterministic and local; they run on every
// snapshot and feed both the prompt builder and the operator views.
package advisor

import (
	"fmt"
	"strings"

	"github.com/bizkut/eden-fft-agent/types"
)

// Mode is the tactical posture derived from party condition.
type Mode string

const (
	// ModeEmergency means at least one unit is down.
	ModeEmergency Mode = "EMERGENCY RECOVERY"
	// ModeDefensive means at least one living unit is below the
	// critical health fraction.
	ModeDefensive Mode = "DEFENSIVE / HEALING"
	// ModeOffensive means the party is stable.
	ModeOffensive Mode = "OFFENSIVE"
	// ModeUnknown means no usable snapshot was available.
	ModeUnknown Mode = "UNKNOWN"
)

const (
	// criticalHPFraction marks a living unit as needing healing.
	criticalHPFraction = 0.3
	// casterMPFloor is the max-MP threshold above which a unit is
	// treated as a caster for resource alerts.
	casterMPFloor = 50
	// lowMPFraction marks a caster as running dry.
	lowMPFraction = 0.2
)

// Assessment is the advisor's read of one snapshot.
type Assessment struct {
	Mode Mode
	// DeadSlots and CriticalSlots list the affected party slots.
	DeadSlots     []int
	CriticalSlots []int
	LowMPSlots    []int
	// AvgHPPercent is party health over active units, 0-100.
	AvgHPPercent float64
	// LeadMagicReady reports a charged spell on the lead unit.
	LeadMagicReady bool
	// LeadRole is "physical" or "magic", judged from the lead unit's
	// attack stat against its MP pool.
	LeadRole string
	// Notes are human-readable advice lines in priority order.
	Notes []string
}

// Advisor applies the tactical rules. Stateless; safe for concurrent
// use.
type Advisor struct{}

func New() *Advisor {
	return &Advisor{}
}

// Analyze assesses a snapshot. Snapshots with no active units yield
// ModeUnknown rather than a misleading offensive posture.
func (a *Advisor) Analyze(snap types.PartySnapshot) Assessment {
	active := snap.ActiveUnits()
	if len(active) == 0 {
		return Assessment{
			Mode:  ModeUnknown,
			Notes: []string{"Status: no active units found."},
		}
	}

	var as Assessment
	totalHP, totalMaxHP := 0, 0
	for _, u := range active {
		totalHP += u.HP
		totalMaxHP += u.MaxHP

		switch {
		case u.HP == 0:
			as.DeadSlots = append(as.DeadSlots, u.Slot)
		case u.HPFraction() < criticalHPFraction:
			as.CriticalSlots = append(as.CriticalSlots, u.Slot)
		}
		if u.MaxMP > casterMPFloor && float64(u.MP)/float64(u.MaxMP) < lowMPFraction {
			as.LowMPSlots = append(as.LowMPSlots, u.Slot)
		}
	}
	if totalMaxHP > 0 {
		as.AvgHPPercent = float64(totalHP) / float64(totalMaxHP) * 100
	}

	switch {
	case len(as.DeadSlots) > 0:
		as.Mode = ModeEmergency
	case len(as.CriticalSlots) > 0:
		as.Mode = ModeDefensive
	default:
		as.Mode = ModeOffensive
	}

	if len(as.DeadSlots) > 0 {
		as.Notes = append(as.Notes, fmt.Sprintf(
			"CRITICAL: %d unit(s) are DOWN (%s). Prioritize reviving (Phoenix Down/Raise).",
			len(as.DeadSlots), slotNames(as.DeadSlots)))
	}
	if len(as.CriticalSlots) > 0 {
		as.Notes = append(as.Notes, fmt.Sprintf(
			"WARNING: %d unit(s) in critical health (%s). Heal immediately.",
			len(as.CriticalSlots), slotNames(as.CriticalSlots)))
	}
	if len(as.DeadSlots) == 0 && len(as.CriticalSlots) == 0 {
		as.Notes = append(as.Notes, "Party status: healthy. Focus on offense.")
	}
	if len(as.LowMPSlots) > 0 {
		as.Notes = append(as.Notes, "Resource alert: casters low on MP. Consider Ether or Chakra.")
	}

	if lead, ok := snap.Unit(1); ok && lead.Present() {
		as.LeadMagicReady = lead.MagicReady
		if lead.MagicReady {
			as.Notes = append(as.Notes, "Tactical opportunity: lead unit has a spell charged and ready to cast.")
		}
		if lead.Attack > lead.MaxMP {
			as.LeadRole = "physical"
			as.Notes = append(as.Notes, fmt.Sprintf(
				"Lead role: physical attacker (ATK %d). Look for flanking opportunities.", lead.Attack))
		} else {
			as.LeadRole = "magic"
			as.Notes = append(as.Notes, fmt.Sprintf(
				"Lead role: magic/support (MP %d). Keep distance.", lead.MaxMP))
		}
	}

	return as
}

// TacticalPlan renders the assessment as the plan block handed to the
// language model.
func (a *Advisor) TacticalPlan(snap types.PartySnapshot) string {
	as := a.Analyze(snap)

	var b strings.Builder
	b.WriteString("## Advisor Strategy\n")
	for _, note := range as.Notes {
		b.WriteString(note)
		b.WriteByte('\n')
	}
	b.WriteString(fmt.Sprintf("Mode: **%s**\n", as.Mode))

	switch as.Mode {
	case ModeEmergency:
		b.WriteString("- Objective: Revive fallen allies immediately.\n")
		b.WriteString("- Tactic: Use items (Phoenix Down) or White Magic (Raise). Do not attack unless necessary.\n")
	case ModeDefensive:
		b.WriteString("- Objective: Stabilize the party.\n")
		b.WriteString("- Tactic: Cast Cure/Cura or use potions. Tank units should move to block enemies.\n")
	case ModeOffensive:
		b.WriteString("- Objective: Eliminate enemy units.\n")
		b.WriteString("- Tactic: Focus fire on the nearest or weakest enemy. Use high ground.\n")
	default:
		b.WriteString("- Objective: Re-establish state visibility before acting.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func slotNames(slots []int) string {
	names := make([]string, len(slots))
	for i, s := range slots {
		names[i] = fmt.Sprintf("Unit %d", s)
	}
	return strings.Join(names, ", ")
}
