// Package actions parses the model's ACTION/TARGET/REASON replies and
// turns them into controller input steps.
package actions

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Parsed is one decoded model decision.
type Parsed struct {
	// Action is the lowercase action name; "wait" when the reply
	// carries no recognizable action.
	Action string
	// Target is the raw lowercase target text, if any.
	Target string
	// DX/DY is the cursor delta derived from coordinates or relative
	// directions. HasTarget reports whether a delta was found.
	DX, DY    int
	HasTarget bool
	Reason    string
}

var (
	actionRe = regexp.MustCompile(`(?i)ACTION:\s*(\w+)`)
	targetRe = regexp.MustCompile(`(?i)TARGET:\s*(.+)`)
	reasonRe = regexp.MustCompile(`(?i)REASON:\s*(.+)`)
	coordRe  = regexp.MustCompile(`\(?(\d+)\s*,\s*(\d+)\)?`)
	amountRe = regexp.MustCompile(`(\d+)`)
)

// Parse decodes a model reply. Free text around the expected lines is
// ignored; an unparseable reply defaults to waiting, never to an
// error, so a rambling model cannot stall the loop.
func Parse(response string) Parsed {
	p := Parsed{Action: "wait"}

	if m := actionRe.FindStringSubmatch(response); m != nil {
		p.Action = strings.ToLower(m[1])
	}
	if m := reasonRe.FindStringSubmatch(response); m != nil {
		p.Reason = strings.TrimSpace(firstLine(m[1]))
	}
	m := targetRe.FindStringSubmatch(response)
	if m == nil {
		return p
	}
	p.Target = strings.ToLower(strings.TrimSpace(firstLine(m[1])))

	if c := coordRe.FindStringSubmatch(p.Target); c != nil {
		p.DX, _ = strconv.Atoi(c[1])
		p.DY, _ = strconv.Atoi(c[2])
		p.HasTarget = true
		return p
	}

	// Relative directions: "right 2", "up", "down left".
	dx, dy := 0, 0
	if strings.Contains(p.Target, "left") {
		dx--
	}
	if strings.Contains(p.Target, "right") {
		dx++
	}
	if strings.Contains(p.Target, "up") {
		dy--
	}
	if strings.Contains(p.Target, "down") {
		dy++
	}
	if a := amountRe.FindStringSubmatch(p.Target); a != nil {
		mult, _ := strconv.Atoi(a[1])
		dx *= mult
		dy *= mult
	}
	if dx != 0 || dy != 0 {
		p.DX, p.DY = dx, dy
		p.HasTarget = true
	}
	return p
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// StepKind discriminates input steps.
type StepKind string

const (
	// StepPress taps one button (Button field).
	StepPress StepKind = "press"
	// StepSelect navigates the battle menu to a named entry and
	// confirms it.
	StepSelect StepKind = "select"
	// StepCursor moves the tile cursor by (DX, DY).
	StepCursor StepKind = "cursor"
	// StepWait pauses for Delay.
	StepWait StepKind = "wait"
)

// Step is one controller instruction.
type Step struct {
	Kind   StepKind
	Button string
	Menu   string
	DX, DY int
	Delay  time.Duration
}

func (s Step) String() string {
	switch s.Kind {
	case StepPress:
		return "press:" + s.Button
	case StepSelect:
		return "select:" + s.Menu
	case StepCursor:
		return fmt.Sprintf("cursor:%d,%d", s.DX, s.DY)
	case StepWait:
		return fmt.Sprintf("wait:%s", s.Delay)
	default:
		return string(s.Kind)
	}
}

// Plan converts a parsed decision into input steps.
func Plan(p Parsed) []Step {
	switch {
	case p.Action == "move" && p.HasTarget:
		steps := []Step{
			{Kind: StepSelect, Menu: "move"},
			{Kind: StepWait, Delay: 500 * time.Millisecond},
			{Kind: StepPress, Button: "a"},
			// Grid animation before the cursor responds.
			{Kind: StepWait, Delay: time.Second},
		}
		if p.DX != 0 || p.DY != 0 {
			steps = append(steps, Step{Kind: StepCursor, DX: p.DX, DY: p.DY})
		}
		return append(steps, Step{Kind: StepPress, Button: "a"})

	case p.Action == "attack" && p.HasTarget:
		return []Step{
			{Kind: StepPress, Button: "a"},
			{Kind: StepSelect, Menu: "attack"},
			{Kind: StepCursor, DX: p.DX, DY: p.DY},
			{Kind: StepPress, Button: "a"},
		}

	case p.Action == "wait":
		return []Step{
			{Kind: StepSelect, Menu: "wait"},
			{Kind: StepPress, Button: "a"},
		}

	default:
		steps := []Step{
			{Kind: StepPress, Button: "a"},
			{Kind: StepSelect, Menu: p.Action},
		}
		if p.HasTarget {
			steps = append(steps, Step{Kind: StepCursor, DX: p.DX, DY: p.DY})
		}
		return append(steps, Step{Kind: StepPress, Button: "a"})
	}
}
