package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bizkut/eden-fft-agent/log"
	"github.com/bizkut/eden-fft-agent/types"
)

// Controller delivers inputs to the emulator. The pad package's DSU
// server satisfies this.
type Controller interface {
	PressButton(ctx context.Context, button string) error
	MoveCursor(ctx context.Context, dx, dy int) error
}

// FeedbackLearner observes button presses to learn their effects. The
// agent wires a capture+knowledge pipeline here; nil disables it.
type FeedbackLearner interface {
	CaptureBefore(ctx context.Context, phase types.GamePhase)
	CaptureAfterAndLearn(ctx context.Context, button string)
}

// battleMenu is the battle command menu, top to bottom. Menu
// navigation resets to the top then steps down; a hint, not ground
// truth, since the model can override with explicit presses.
var battleMenu = []string{"move", "act", "wait", "status"}

// Executor runs planned input steps against a controller.
type Executor struct {
	controller Controller
	logger     *log.Logger
	learner    FeedbackLearner
	phase      types.GamePhase

	// StepDelay separates consecutive steps; defaults to 300ms.
	StepDelay time.Duration
	// MenuKeyDelay separates menu navigation key presses.
	MenuKeyDelay time.Duration
	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor builds an executor. logger may be nil.
func NewExecutor(controller Controller, logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.Nop()
	}
	return &Executor{
		controller:   controller,
		logger:       logger,
		phase:        types.PhaseUnknown,
		StepDelay:    300 * time.Millisecond,
		MenuKeyDelay: 200 * time.Millisecond,
		sleep:        sleepCtx,
	}
}

// SetLearner enables visual feedback learning on button presses.
func (e *Executor) SetLearner(l FeedbackLearner) {
	e.learner = l
}

// SetPhase records the current game phase for learning context.
func (e *Executor) SetPhase(phase types.GamePhase) {
	e.phase = phase
}

// Execute runs steps in order, stopping at the first failure or
// context cancellation.
func (e *Executor) Execute(ctx context.Context, steps []Step) error {
	for _, step := range steps {
		e.logger.Debug("executing input", map[string]any{"step": step.String()})
		if err := e.run(ctx, step); err != nil {
			return fmt.Errorf("input step %s: %w", step, err)
		}
		if err := e.sleep(ctx, e.StepDelay); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) run(ctx context.Context, step Step) error {
	switch step.Kind {
	case StepPress:
		return e.press(ctx, step.Button)

	case StepCursor:
		return e.controller.MoveCursor(ctx, step.DX, step.DY)

	case StepWait:
		return e.sleep(ctx, step.Delay)

	case StepSelect:
		return e.selectMenu(ctx, step.Menu)

	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

func (e *Executor) press(ctx context.Context, button string) error {
	if e.learner != nil {
		e.learner.CaptureBefore(ctx, e.phase)
	}
	if err := e.controller.PressButton(ctx, button); err != nil {
		return err
	}
	if e.learner != nil {
		// Let the screen settle before the after-frame.
		if err := e.sleep(ctx, 300*time.Millisecond); err != nil {
			return err
		}
		e.learner.CaptureAfterAndLearn(ctx, button)
	}
	return nil
}

// selectMenu navigates the battle command menu to a known entry:
// reset to the top, step down to the index, confirm. Unknown entries
// confirm the current selection.
func (e *Executor) selectMenu(ctx context.Context, target string) error {
	idx := -1
	for i, name := range battleMenu {
		if name == strings.ToLower(target) {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.logger.Debug("unknown menu target, confirming current selection", map[string]any{"target": target})
		return e.press(ctx, "a")
	}

	for i := 0; i < len(battleMenu); i++ {
		if err := e.controller.PressButton(ctx, "up"); err != nil {
			return err
		}
		if err := e.sleep(ctx, e.MenuKeyDelay); err != nil {
			return err
		}
	}
	for i := 0; i < idx; i++ {
		if err := e.controller.PressButton(ctx, "down"); err != nil {
			return err
		}
		if err := e.sleep(ctx, e.MenuKeyDelay); err != nil {
			return err
		}
	}
	return e.press(ctx, "a")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
