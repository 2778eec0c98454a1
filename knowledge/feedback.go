package knowledge

import (
	"context"
	"fmt"
	"sync"

	"github.com/bizkut/eden-fft-agent/capture"
	"github.com/bizkut/eden-fft-agent/log"
	"github.com/bizkut/eden-fft-agent/types"
)

// Describer summarizes what changed between two frames. *llm.Client is
// the production implementation.
type Describer interface {
	ChatWithImages(ctx context.Context, systemPrompt, prompt string, jpegFrames [][]byte) (string, error)
}

const describeSystemPrompt = "You observe before/after screenshots from Final Fantasy Tactics. " +
	"Describe only what visibly changed. One short sentence."

// Feedback learns button effects from screenshots taken around each
// press. It satisfies the executor's learner hook; every operation is
// best-effort and never blocks or fails an input sequence.
type Feedback struct {
	store  *Store
	frames capture.Source
	llm    Describer
	logger *log.Logger

	mu     sync.Mutex
	phase  types.GamePhase
	before []byte
}

// NewFeedback builds a feedback learner over a capture source and a
// knowledge store. logger may be nil.
func NewFeedback(store *Store, frames capture.Source, llm Describer, logger *log.Logger) *Feedback {
	if logger == nil {
		logger = log.Nop()
	}
	return &Feedback{store: store, frames: frames, llm: llm, logger: logger}
}

// CaptureBefore snapshots the screen ahead of a button press. A missing
// frame simply disables learning for the upcoming press.
func (f *Feedback) CaptureBefore(ctx context.Context, phase types.GamePhase) {
	frame, err := f.capture(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.phase = phase
	f.before = nil
	if err != nil {
		return
	}
	f.before = frame
}

// CaptureAfterAndLearn snapshots the screen after a press, asks the
// model to describe the effect, and records the learning.
func (f *Feedback) CaptureAfterAndLearn(ctx context.Context, button string) {
	f.mu.Lock()
	before := f.before
	phase := f.phase
	f.before = nil
	f.mu.Unlock()

	if before == nil {
		return
	}

	after, err := f.capture(ctx)
	if err != nil {
		return
	}

	prompt := fmt.Sprintf("The %q button was pressed between these two screenshots during %s. What happened?", button, phase)
	effect, err := f.llm.ChatWithImages(ctx, describeSystemPrompt, prompt, [][]byte{before, after})
	if err != nil {
		f.logger.Warn("effect description failed", map[string]any{
			"button": button, "error": err.Error(),
		})
		return
	}

	learning := Learning{
		Button:  button,
		Phase:   phase,
		Context: fmt.Sprintf("pressed %s during %s", button, phase),
		Effect:  effect,
	}
	if _, err := f.store.StoreLearning(ctx, learning); err != nil {
		f.logger.Warn("learning not stored", map[string]any{
			"button": button, "error": err.Error(),
		})
		return
	}
	f.logger.Debug("button effect learned", map[string]any{
		"button": button, "phase": string(phase), "effect": effect,
	})
}

func (f *Feedback) capture(ctx context.Context) ([]byte, error) {
	img, err := f.frames.Frame(ctx)
	if err != nil {
		return nil, err
	}
	return capture.EncodeJPEG(img)
}
