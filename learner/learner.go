// Package learner tracks battle outcomes and distills them into
// per-map insights. History and insights persist under a data
// directory as MessagePack files, loaded at startup and rewritten
// after every completed battle.
package learner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/bizkut/eden-fft-agent/log"
	"github.com/bizkut/eden-fft-agent/metrics"
)

const (
	battlesFile  = "battle_history.msgpack"
	insightsFile = "strategy_insights.msgpack"
)

// UnitSummary captures a unit's loadout at battle start.
type UnitSummary struct {
	Slot  int    `msgpack:"slot"`
	Job   string `msgpack:"job"`
	HP    int    `msgpack:"hp"`
	MaxHP int    `msgpack:"max_hp"`
	MP    int    `msgpack:"mp"`
	MaxMP int    `msgpack:"max_mp"`
}

// BattleRecord is one battle attempt from start to outcome.
type BattleRecord struct {
	BattleID  string        `msgpack:"battle_id"`
	MapName   string        `msgpack:"map_name"`
	StartedAt time.Time     `msgpack:"started_at"`
	Party     []UnitSummary `msgpack:"party"`

	Actions      []string `msgpack:"actions"`
	KeyDecisions []string `msgpack:"key_decisions"`
	StrategyMode string   `msgpack:"strategy_mode"`

	Victory    bool `msgpack:"victory"`
	TurnsTaken int  `msgpack:"turns_taken"`
	UnitsLost  int  `msgpack:"units_lost"`
}

// Insight is a learned per-map statistic.
type Insight struct {
	Context     string    `msgpack:"context"`
	Strategy    string    `msgpack:"strategy"`
	SuccessRate float64   `msgpack:"success_rate"`
	SampleSize  int       `msgpack:"sample_size"`
	UpdatedAt   time.Time `msgpack:"updated_at"`
}

// GuideStore receives successful strategies for later retrieval. The
// knowledge package provides the production implementation.
type GuideStore interface {
	StoreStrategyGuide(title, content string, tags []string) error
}

// Learner accumulates battle outcomes. Not safe for concurrent use;
// the agent loop owns it.
type Learner struct {
	dataDir string
	logger  *log.Logger
	metrics *metrics.Collector
	guides  GuideStore
	now     func() time.Time

	history  []BattleRecord
	insights []Insight
}

// Option configures a Learner.
type Option func(*Learner)

// WithGuideStore forwards victorious strategies to a knowledge store.
func WithGuideStore(gs GuideStore) Option {
	return func(l *Learner) { l.guides = gs }
}

// New opens (or creates) the learning data directory and loads any
// existing history.
func New(dataDir string, logger *log.Logger, collector *metrics.Collector, opts ...Option) (*Learner, error) {
	if logger == nil {
		logger = log.Nop()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create learning data dir %q: %w", dataDir, err)
	}

	l := &Learner{
		dataDir: dataDir,
		logger:  logger,
		metrics: collector,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := loadMsgpack(filepath.Join(dataDir, battlesFile), &l.history); err != nil {
		return nil, err
	}
	if err := loadMsgpack(filepath.Join(dataDir, insightsFile), &l.insights); err != nil {
		return nil, err
	}

	logger.Info("learning data loaded", map[string]any{
		"battles":  len(l.history),
		"insights": len(l.insights),
	})
	return l, nil
}

func loadMsgpack(path string, out any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	if err := msgpack.Unmarshal(data, out); err != nil {
		return fmt.Errorf("corrupt learning data in %s: %w", path, err)
	}
	return nil
}

func (l *Learner) save() error {
	if err := saveMsgpack(filepath.Join(l.dataDir, battlesFile), l.history); err != nil {
		return err
	}
	return saveMsgpack(filepath.Join(l.dataDir, insightsFile), l.insights)
}

func saveMsgpack(path string, in any) error {
	data, err := msgpack.Marshal(in)
	if err != nil {
		return fmt.Errorf("cannot encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}

// StartBattle begins tracking a battle. The returned record is
// updated by the caller and handed back to EndBattle.
func (l *Learner) StartBattle(mapName string, party []UnitSummary) *BattleRecord {
	now := l.now()
	id := fmt.Sprintf("%s_%d", strings.ReplaceAll(strings.ToLower(mapName), " ", "_"), now.Unix())
	l.logger.Info("tracking battle", map[string]any{"battle_id": id})
	return &BattleRecord{
		BattleID:  id,
		MapName:   mapName,
		StartedAt: now,
		Party:     party,
	}
}

// LogAction appends one executed action to the record.
func (l *Learner) LogAction(rec *BattleRecord, action string) {
	rec.Actions = append(rec.Actions, action)
}

// LogDecision appends one strategic decision to the record.
func (l *Learner) LogDecision(rec *BattleRecord, decision string) {
	rec.KeyDecisions = append(rec.KeyDecisions, decision)
}

// EndBattle records the outcome, persists, and refreshes the per-map
// insight. Victories are also forwarded to the guide store.
func (l *Learner) EndBattle(rec *BattleRecord, victory bool, turns, unitsLost int) error {
	rec.Victory = victory
	rec.TurnsTaken = turns
	rec.UnitsLost = unitsLost
	l.history = append(l.history, *rec)

	if victory {
		l.metrics.IncBattleWon()
	} else {
		l.metrics.IncBattleLost()
	}

	l.refreshInsight(rec.MapName)
	if err := l.save(); err != nil {
		return err
	}

	if victory && l.guides != nil {
		if err := l.guides.StoreStrategyGuide(
			fmt.Sprintf("Victory at %s", rec.MapName),
			formatGuide(rec),
			[]string{"battle", "victory", rec.MapName},
		); err != nil {
			// Retrieval is best effort; the battle record itself is
			// already persisted.
			l.logger.Warn("cannot store strategy guide", map[string]any{"error": err.Error()})
		}
	}
	return nil
}

func (l *Learner) refreshInsight(mapName string) {
	attempts, wins := 0, 0
	for _, b := range l.history {
		if b.MapName != mapName {
			continue
		}
		attempts++
		if b.Victory {
			wins++
		}
	}
	rate := 0.0
	if attempts > 0 {
		rate = float64(wins) / float64(attempts)
	}

	for i := range l.insights {
		if l.insights[i].Context == mapName {
			l.insights[i].SuccessRate = rate
			l.insights[i].SampleSize = attempts
			l.insights[i].UpdatedAt = l.now()
			return
		}
	}
	l.insights = append(l.insights, Insight{
		Context:     mapName,
		Strategy:    fmt.Sprintf("Historical success rate on %s", mapName),
		SuccessRate: rate,
		SampleSize:  attempts,
		UpdatedAt:   l.now(),
	})
}

// AdviceForMap formats learned history for the prompt. Empty when the
// map has never been attempted.
func (l *Learner) AdviceForMap(mapName string) string {
	var battles []BattleRecord
	for _, b := range l.history {
		if b.MapName == mapName {
			battles = append(battles, b)
		}
	}
	if len(battles) == 0 {
		return ""
	}

	wins := 0
	for _, b := range battles {
		if b.Victory {
			wins++
		}
	}
	losses := len(battles) - wins

	var lines []string
	lines = append(lines, fmt.Sprintf("## Historical Data for %s", mapName))
	lines = append(lines, fmt.Sprintf("- Previous attempts: %d (%dW / %dL)", len(battles), wins, losses))

	if losses > wins {
		lostUnits := 0
		for _, b := range battles {
			if !b.Victory {
				lostUnits += b.UnitsLost
			}
		}
		lines = append(lines, fmt.Sprintf("- Average units lost in defeats: %.1f", float64(lostUnits)/float64(losses)))
		lines = append(lines, "- CAUTION: This is a difficult battle. Play defensively.")
	} else if wins > 0 {
		best := BattleRecord{TurnsTaken: int(^uint(0) >> 1)}
		for _, b := range battles {
			if b.Victory && b.TurnsTaken < best.TurnsTaken {
				best = b
			}
		}
		lines = append(lines, fmt.Sprintf("- Best clear: %d turns, %d units lost", best.TurnsTaken, best.UnitsLost))
	}
	return strings.Join(lines, "\n")
}

// Insights returns a copy of the learned insights, most recently
// updated first.
func (l *Learner) Insights() []Insight {
	out := append([]Insight(nil), l.insights...)
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// History returns a copy of the recorded battles in insertion order.
func (l *Learner) History() []BattleRecord {
	return append([]BattleRecord(nil), l.history...)
}

func formatGuide(rec *BattleRecord) string {
	actions := rec.Actions
	if len(actions) > 10 {
		actions = actions[len(actions)-10:]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Battle: %s\n", rec.MapName)
	fmt.Fprintf(&b, "Result: VICTORY in %d turns\n", rec.TurnsTaken)
	fmt.Fprintf(&b, "Units Lost: %d\n", rec.UnitsLost)
	fmt.Fprintf(&b, "Strategy Mode: %s\n\nKey Decisions:\n", rec.StrategyMode)
	for _, d := range rec.KeyDecisions {
		fmt.Fprintf(&b, "- %s\n", d)
	}
	b.WriteString("\nActions Summary:\n")
	for _, a := range actions {
		fmt.Fprintf(&b, "- %s\n", a)
	}
	return b.String()
}
