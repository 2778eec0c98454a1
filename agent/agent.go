// Package agent runs the play loop: capture a frame, classify the
// game phase, and dispatch to a per-phase handler. Battle turns
// combine live memory state, advisor analysis, and learned history
// into one model request, then execute the parsed decision through
// the virtual pad.
package agent

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/bizkut/eden-fft-agent/actions"
	"github.com/bizkut/eden-fft-agent/advisor"
	"github.com/bizkut/eden-fft-agent/capture"
	"github.com/bizkut/eden-fft-agent/gamestate"
	"github.com/bizkut/eden-fft-agent/knowledge"
	"github.com/bizkut/eden-fft-agent/learner"
	"github.com/bizkut/eden-fft-agent/log"
	"github.com/bizkut/eden-fft-agent/metrics"
	"github.com/bizkut/eden-fft-agent/prompt"
	"github.com/bizkut/eden-fft-agent/types"
)

// ChatClient is the model surface the agent needs.
type ChatClient interface {
	Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	ChatWithImages(ctx context.Context, systemPrompt, userPrompt string, jpegFrames [][]byte) (string, error)
}

// StateSource supplies decoded party snapshots.
type StateSource interface {
	Poll(ctx context.Context) (types.PartySnapshot, error)
	Latest() (types.PartySnapshot, bool)
}

// InputExecutor runs planned input steps.
type InputExecutor interface {
	Execute(ctx context.Context, steps []actions.Step) error
	SetPhase(phase types.GamePhase)
}

// PowerManager is the emergency buff surface; nil disables it.
type PowerManager interface {
	HealUnit(ctx context.Context, slot, amount int) error
	Remaining() int
	ResetBattle()
}

// GuideSource retrieves stored strategy guides for prompt enrichment;
// nil disables it. *knowledge.Store is the production implementation.
type GuideSource interface {
	QueryGuides(ctx context.Context, query string, limit int) ([]knowledge.Guide, error)
}

// Config tunes the loop.
type Config struct {
	// PollInterval paces loop iterations.
	PollInterval time.Duration
	// MapName labels battle records; screens carry no readable name.
	MapName string
	// Difficulty picks the new-game difficulty on the title screen:
	// "easy", "normal", or "hard".
	Difficulty string
}

func (c Config) withDefaults() Config {
	if c.PollInterval == 0 {
		c.PollInterval = time.Second
	}
	if c.MapName == "" {
		c.MapName = "Unknown Battle"
	}
	if c.Difficulty == "" {
		c.Difficulty = "normal"
	}
	return c
}

// Agent owns the play loop.
type Agent struct {
	cfg      Config
	frames   capture.Source
	chat     ChatClient
	state    StateSource
	advisor  *advisor.Advisor
	learner  *learner.Learner
	power    PowerManager
	guides   GuideSource
	executor InputExecutor
	pad      actions.Controller
	logger   *log.Logger
	metrics  *metrics.Collector

	phase       types.GamePhase
	battleCount int
	battleRec   *learner.BattleRecord

	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures optional subsystems.
type Option func(*Agent)

// WithLearner enables battle outcome tracking.
func WithLearner(l *learner.Learner) Option {
	return func(a *Agent) { a.learner = l }
}

// WithPower enables emergency memory buffs.
func WithPower(p PowerManager) Option {
	return func(a *Agent) { a.power = p }
}

// WithKnowledge enriches battle prompts with stored strategy guides.
func WithKnowledge(gs GuideSource) Option {
	return func(a *Agent) { a.guides = gs }
}

// New wires the loop. frames, chat, state, executor, and pad are
// required; logger and collector may be nil.
func New(cfg Config, frames capture.Source, chat ChatClient, state StateSource, executor InputExecutor, pad actions.Controller, logger *log.Logger, collector *metrics.Collector, opts ...Option) *Agent {
	if logger == nil {
		logger = log.Nop()
	}
	a := &Agent{
		cfg:      cfg.withDefaults(),
		frames:   frames,
		chat:     chat,
		state:    state,
		advisor:  advisor.New(),
		executor: executor,
		pad:      pad,
		logger:   logger,
		metrics:  collector,
		phase:    types.PhaseUnknown,
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Phase returns the most recently detected game phase.
func (a *Agent) Phase() types.GamePhase {
	return a.phase
}

// Run iterates the play loop until ctx is done.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("agent loop starting", map[string]any{"poll_interval": a.cfg.PollInterval.String()})
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.Step(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			a.logger.Warn("loop step failed", map[string]any{"error": err.Error()})
		}
		if err := a.sleep(ctx, a.cfg.PollInterval); err != nil {
			return err
		}
	}
}

// Step performs one loop iteration: frame, phase, handler.
func (a *Agent) Step(ctx context.Context) error {
	frame, frameErr := a.frames.Frame(ctx)
	if frameErr != nil && !errors.Is(frameErr, capture.ErrNoFrame) {
		a.logger.Warn("frame capture failed", map[string]any{"error": frameErr.Error()})
	}

	a.phase = a.detectPhase(ctx, frame)
	a.executor.SetPhase(a.phase)

	switch a.phase {
	case types.PhaseTitleScreen:
		return a.handleTitleScreen(ctx)
	case types.PhaseCutscene:
		return a.pressToAdvance(ctx, "a")
	case types.PhaseWorldMap:
		return a.handleWorldMap(ctx)
	case types.PhaseBattle:
		return a.handleBattle(ctx, frame)
	case types.PhaseBattleResult:
		return a.handleBattleResult(ctx)
	case types.PhasePartyMenu, types.PhaseShop:
		return a.handleMenu(ctx)
	default:
		// Unknown screen: a single confirm usually advances dialogue
		// or dismisses a popup.
		return a.pressToAdvance(ctx, "a")
	}
}

// detectPhase classifies the screen with the vision model. Without a
// frame the agent runs blind: a readable memory snapshot means a
// battle is in progress, anything else is unknown.
func (a *Agent) detectPhase(ctx context.Context, frame image.Image) types.GamePhase {
	if frame == nil {
		if _, err := a.state.Poll(ctx); err == nil {
			return types.PhaseBattle
		}
		return types.PhaseUnknown
	}

	jpeg, err := capture.EncodeJPEG(frame)
	if err != nil {
		a.logger.Warn("frame encode failed", map[string]any{"error": err.Error()})
		return types.PhaseUnknown
	}
	reply, err := a.chat.ChatWithImages(ctx, "", prompt.BuildPhasePrompt(), [][]byte{jpeg})
	if err != nil {
		a.logger.Warn("phase detection failed", map[string]any{"error": err.Error()})
		return types.PhaseUnknown
	}
	phase := types.ParseGamePhase(reply)
	a.logger.Debug("phase detected", map[string]any{"phase": string(phase)})
	return phase
}

func (a *Agent) handleTitleScreen(ctx context.Context) error {
	a.logger.Info("at title screen, starting game", map[string]any{"difficulty": a.cfg.Difficulty})
	if err := a.pad.PressButton(ctx, "a"); err != nil {
		return err
	}

	// Difficulty menu: easy on top, then normal, then hard.
	downs := 0
	switch strings.ToLower(a.cfg.Difficulty) {
	case "hard", "tactician":
		downs = 2
	case "normal", "knight":
		downs = 1
	}
	for i := 0; i < downs; i++ {
		if err := a.pad.PressButton(ctx, "down"); err != nil {
			return err
		}
	}
	return a.pad.PressButton(ctx, "a")
}

func (a *Agent) handleWorldMap(ctx context.Context) error {
	reply, err := a.chat.Chat(ctx, prompt.System,
		"You are on the world map. Choose: move to the next story location, visit a shop, or train at a random battle.\n"+
			"Respond with:\nACTION: <move_to_story | shop | train>\nTARGET: <location if known>\nREASON: <why>")
	if err != nil {
		return fmt.Errorf("world map decision: %w", err)
	}
	parsed := actions.Parse(reply)
	a.logger.Info("world map decision", map[string]any{"action": parsed.Action, "reason": parsed.Reason})

	// Entering the highlighted location covers every choice for now;
	// route selection needs cursor-visible coordinates.
	return a.pad.PressButton(ctx, "a")
}

func (a *Agent) handleBattle(ctx context.Context, frame image.Image) error {
	snapshot, snapErr := a.state.Poll(ctx)
	if errors.Is(snapErr, gamestate.ErrMemoryUnavailable) {
		// The turn still runs; the prompt flags the missing state.
		a.logger.Warn("battle turn without memory state", map[string]any{"error": snapErr.Error()})
	}

	if a.learner != nil && a.battleRec == nil {
		a.battleRec = a.learner.StartBattle(a.battleName(), partySummary(snapshot))
		if a.power != nil {
			a.power.ResetBattle()
		}
	}

	assessment := a.advisor.Analyze(snapshot)
	if snapErr == nil && a.power != nil && assessment.Mode == advisor.ModeEmergency && a.power.Remaining() > 0 {
		a.emergencyHeal(ctx, snapshot)
	}

	battle := prompt.Battle{
		MapName:       a.battleName(),
		Turn:          a.turnNumber(),
		Snapshot:      snapshot,
		SnapshotErr:   snapErr,
		AdvisorPlan:   a.advisor.TacticalPlan(snapshot),
		ValidActions:  []string{"Move", "Attack", "Item", "Wait"},
		FrameAttached: frame != nil,
	}
	if a.learner != nil {
		battle.MapAdvice = a.learner.AdviceForMap(a.battleName())
	}
	if a.guides != nil {
		battle.GuideNotes = a.guideNotes(ctx)
	}
	userPrompt := prompt.BuildBattle(battle)

	var reply string
	var err error
	if frame != nil {
		var jpeg []byte
		if jpeg, err = capture.EncodeJPEG(frame); err == nil {
			reply, err = a.chat.ChatWithImages(ctx, prompt.System, userPrompt, [][]byte{jpeg})
		}
	} else {
		reply, err = a.chat.Chat(ctx, prompt.System, userPrompt)
	}
	if err != nil {
		return fmt.Errorf("battle decision: %w", err)
	}

	parsed := actions.Parse(reply)
	a.logger.Info("battle decision", map[string]any{
		"action": parsed.Action, "target": parsed.Target, "reason": parsed.Reason,
	})

	if err := a.executor.Execute(ctx, actions.Plan(parsed)); err != nil {
		return fmt.Errorf("executing %s: %w", parsed.Action, err)
	}
	if a.learner != nil && a.battleRec != nil {
		a.learner.LogAction(a.battleRec, fmt.Sprintf("%s -> %s", parsed.Action, parsed.Target))
		if parsed.Reason != "" {
			a.learner.LogDecision(a.battleRec, parsed.Reason)
		}
	}
	return nil
}

// emergencyHeal restores the worst-off living unit. Downed units need
// in-game revival; raw HP writes do not stand them back up.
func (a *Agent) emergencyHeal(ctx context.Context, snapshot types.PartySnapshot) {
	worst := 0
	worstFrac := 1.0
	for _, u := range snapshot.ActiveUnits() {
		if u.HP == 0 {
			continue
		}
		if f := u.HPFraction(); f < worstFrac {
			worst = u.Slot
			worstFrac = f
		}
	}
	if worst == 0 {
		return
	}
	if err := a.power.HealUnit(ctx, worst, 0); err != nil {
		a.logger.Warn("emergency heal failed", map[string]any{"slot": worst, "error": err.Error()})
		return
	}
	a.logger.Info("emergency heal applied", map[string]any{"slot": worst})
	if a.learner != nil && a.battleRec != nil {
		a.learner.LogDecision(a.battleRec, fmt.Sprintf("emergency heal on unit %d", worst))
	}
}

func (a *Agent) handleBattleResult(ctx context.Context) error {
	a.battleCount++
	a.logger.Info("battle ended", map[string]any{"battles": a.battleCount})

	if a.learner != nil && a.battleRec != nil {
		victory, unitsLost := a.outcomeFromMemory()
		if err := a.learner.EndBattle(a.battleRec, victory, len(a.battleRec.Actions), unitsLost); err != nil {
			a.logger.Warn("cannot record battle outcome", map[string]any{"error": err.Error()})
		}
		a.battleRec = nil
	}

	// Advance through the result screens.
	for i := 0; i < 5; i++ {
		if err := a.pressToAdvance(ctx, "a"); err != nil {
			return err
		}
	}
	return nil
}

// outcomeFromMemory judges victory by the party's state: reaching the
// result screen with living units means a win.
func (a *Agent) outcomeFromMemory() (victory bool, unitsLost int) {
	snapshot, ok := a.state.Latest()
	if !ok {
		return true, 0
	}
	alive := 0
	for _, u := range snapshot.ActiveUnits() {
		if u.Alive() {
			alive++
		} else {
			unitsLost++
		}
	}
	return alive > 0, unitsLost
}

func (a *Agent) handleMenu(ctx context.Context) error {
	// Party and shop management is not automated; back out.
	return a.pressToAdvance(ctx, "b")
}

func (a *Agent) pressToAdvance(ctx context.Context, button string) error {
	if err := a.pad.PressButton(ctx, button); err != nil {
		return err
	}
	return a.sleep(ctx, 300*time.Millisecond)
}

func (a *Agent) battleName() string {
	if a.battleRec != nil {
		return a.battleRec.MapName
	}
	if a.cfg.MapName != "Unknown Battle" {
		return a.cfg.MapName
	}
	return fmt.Sprintf("Battle %d", a.battleCount+1)
}

// guideNotes renders stored strategy guides matching the current
// battle into a prompt block. Missing or failing lookups degrade to an
// empty block; the decision loop never stalls on the knowledge store.
func (a *Agent) guideNotes(ctx context.Context) string {
	guides, err := a.guides.QueryGuides(ctx, a.battleName(), 3)
	if err != nil {
		a.logger.Warn("guide lookup failed", map[string]any{"error": err.Error()})
		return ""
	}
	if len(guides) == 0 {
		return ""
	}
	lines := []string{"## Strategy Notes"}
	for _, g := range guides {
		content := g.Content
		if len(content) > 500 {
			content = content[:500] + "..."
		}
		lines = append(lines, fmt.Sprintf("### %s", g.Title), content)
	}
	return strings.Join(lines, "\n")
}

func (a *Agent) turnNumber() int {
	if a.battleRec == nil {
		return 1
	}
	return len(a.battleRec.Actions) + 1
}

func partySummary(snapshot types.PartySnapshot) []learner.UnitSummary {
	var party []learner.UnitSummary
	for _, u := range snapshot.ActiveUnits() {
		party = append(party, learner.UnitSummary{
			Slot:  u.Slot,
			Job:   u.Job.String(),
			HP:    u.HP,
			MaxHP: u.MaxHP,
			MP:    u.MP,
			MaxMP: u.MaxMP,
		})
	}
	return party
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
