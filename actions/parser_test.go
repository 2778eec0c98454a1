package actions

import (
	"testing"
	"time"
)

func TestParse_CoordinateTarget(t *testing.T) {
	response := `
Based on the tactical situation, I recommend:

ACTION: Move
TARGET: 5,3
REASON: Moving to high ground gives attack bonus and stays out of archer range.
`
	p := Parse(response)
	if p.Action != "move" {
		t.Errorf("Action = %q, want move", p.Action)
	}
	if !p.HasTarget || p.DX != 5 || p.DY != 3 {
		t.Errorf("target = (%d,%d) has=%v, want (5,3)", p.DX, p.DY, p.HasTarget)
	}
	if p.Reason == "" {
		t.Error("reason not captured")
	}
}

func TestParse_RelativeTargets(t *testing.T) {
	cases := []struct {
		target   string
		dx, dy   int
		hasCoord bool
	}{
		{"Right 2", 2, 0, true},
		{"up", 0, -1, true},
		{"down left", -1, 1, true},
		{"Left 3", -3, 0, true},
		{"the nearest goblin", 0, 0, false},
	}
	for _, tc := range cases {
		p := Parse("ACTION: Move\nTARGET: " + tc.target + "\nREASON: test")
		if p.HasTarget != tc.hasCoord {
			t.Errorf("%q: HasTarget = %v, want %v", tc.target, p.HasTarget, tc.hasCoord)
			continue
		}
		if p.DX != tc.dx || p.DY != tc.dy {
			t.Errorf("%q: delta = (%d,%d), want (%d,%d)", tc.target, p.DX, p.DY, tc.dx, tc.dy)
		}
	}
}

func TestParse_CaseInsensitiveLabels(t *testing.T) {
	p := Parse("action: Attack\ntarget: (2, 1)\nreason: weakest enemy")
	if p.Action != "attack" {
		t.Errorf("Action = %q, want attack", p.Action)
	}
	if p.DX != 2 || p.DY != 1 {
		t.Errorf("delta = (%d,%d), want (2,1)", p.DX, p.DY)
	}
}

func TestParse_UnparseableDefaultsToWait(t *testing.T) {
	p := Parse("I am not sure what to do here, the situation is complex.")
	if p.Action != "wait" {
		t.Errorf("Action = %q, want wait", p.Action)
	}
	if p.HasTarget {
		t.Error("phantom target parsed from free text")
	}
}

func TestPlan_Move(t *testing.T) {
	steps := Plan(Parsed{Action: "move", DX: 2, DY: -1, HasTarget: true})

	want := []Step{
		{Kind: StepSelect, Menu: "move"},
		{Kind: StepWait, Delay: 500 * time.Millisecond},
		{Kind: StepPress, Button: "a"},
		{Kind: StepWait, Delay: time.Second},
		{Kind: StepCursor, DX: 2, DY: -1},
		{Kind: StepPress, Button: "a"},
	}
	if len(steps) != len(want) {
		t.Fatalf("steps = %v, want %v", steps, want)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Errorf("step[%d] = %v, want %v", i, steps[i], want[i])
		}
	}
}

func TestPlan_WaitIsSafeFallback(t *testing.T) {
	steps := Plan(Parse("gibberish"))
	if len(steps) != 2 || steps[0].Menu != "wait" {
		t.Errorf("fallback plan = %v, want wait selection", steps)
	}
}

func TestPlan_AttackTargetsCursor(t *testing.T) {
	steps := Plan(Parsed{Action: "attack", DX: -1, DY: 0, HasTarget: true})
	var sawCursor bool
	for _, s := range steps {
		if s.Kind == StepCursor {
			sawCursor = true
			if s.DX != -1 || s.DY != 0 {
				t.Errorf("cursor delta = (%d,%d), want (-1,0)", s.DX, s.DY)
			}
		}
	}
	if !sawCursor {
		t.Error("attack plan has no cursor movement")
	}
}
