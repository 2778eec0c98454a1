// Package power applies emergency buffs by writing unit stats back
// into target memory. It is a rescue mechanism, deliberately bounded:
// the session must have writes enabled and each battle gets a small
// budget of power-ups.
package power

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/bizkut/eden-fft-agent/log"
	"github.com/bizkut/eden-fft-agent/schema"
	"github.com/bizkut/eden-fft-agent/types"
)

// ErrBudgetExhausted means this battle's power-up allowance is spent.
var ErrBudgetExhausted = errors.New("power-up budget exhausted")

// ErrDisabled means the manager was configured off.
var ErrDisabled = errors.New("power manager disabled")

// MemoryAccess is the session surface the manager needs.
type MemoryAccess interface {
	Read(ctx context.Context, region types.MemoryRegion) ([]byte, error)
	Write(ctx context.Context, region types.MemoryRegion, data []byte) error
}

// Config bounds the manager.
type Config struct {
	Enabled bool `yaml:"enabled"`
	// MaxPerBattle caps power-ups per battle; defaults to 3.
	MaxPerBattle int `yaml:"max_per_battle"`
}

// Manager performs bounded stat writes.
type Manager struct {
	session MemoryAccess
	table   *schema.Schema
	logger  *log.Logger

	enabled      bool
	maxPerBattle int
	used         int
}

// New builds a manager over a write-capable session.
func New(session MemoryAccess, table *schema.Schema, cfg Config, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Nop()
	}
	maxPer := cfg.MaxPerBattle
	if maxPer == 0 {
		maxPer = 3
	}
	return &Manager{
		session:      session,
		table:        table,
		logger:       logger,
		enabled:      cfg.Enabled,
		maxPerBattle: maxPer,
	}
}

// ResetBattle restores the per-battle budget.
func (m *Manager) ResetBattle() {
	m.used = 0
}

// Remaining reports how many power-ups are left this battle.
func (m *Manager) Remaining() int {
	if !m.enabled {
		return 0
	}
	return m.maxPerBattle - m.used
}

func (m *Manager) spend() error {
	if !m.enabled {
		return ErrDisabled
	}
	if m.used >= m.maxPerBattle {
		return ErrBudgetExhausted
	}
	m.used++
	return nil
}

// HealUnit raises a unit's HP by amount, clamped to max HP. A zero
// amount is a full heal.
func (m *Manager) HealUnit(ctx context.Context, slot, amount int) error {
	return m.restore(ctx, slot, amount, "hp", "max_hp")
}

// RestoreMP raises a unit's MP by amount, clamped to max MP. A zero
// amount is a full restore.
func (m *Manager) RestoreMP(ctx context.Context, slot, amount int) error {
	return m.restore(ctx, slot, amount, "mp", "max_mp")
}

func (m *Manager) restore(ctx context.Context, slot, amount int, curField, maxField string) error {
	if err := m.checkSlot(slot); err != nil {
		return err
	}

	current, err := m.readField(ctx, slot, curField)
	if err != nil {
		return err
	}
	limit, err := m.readField(ctx, slot, maxField)
	if err != nil {
		return err
	}

	target := limit
	if amount > 0 {
		target = current + amount
		if target > limit {
			target = limit
		}
	}
	if target == current {
		return nil
	}

	if err := m.spend(); err != nil {
		return err
	}
	if err := m.writeField(ctx, slot, curField, target); err != nil {
		return err
	}
	m.logger.Info("unit restored", map[string]any{
		"slot": slot, "field": curField, "from": current, "to": target,
	})
	return nil
}

// BoostBrave writes a unit's Brave stat, clamped to 100.
func (m *Manager) BoostBrave(ctx context.Context, slot, target int) error {
	return m.boost(ctx, slot, "brave", target)
}

// BoostFaith writes a unit's Faith stat, clamped to 100.
func (m *Manager) BoostFaith(ctx context.Context, slot, target int) error {
	return m.boost(ctx, slot, "faith", target)
}

func (m *Manager) boost(ctx context.Context, slot int, field string, target int) error {
	if err := m.checkSlot(slot); err != nil {
		return err
	}
	if target > 100 {
		target = 100
	}
	if err := m.spend(); err != nil {
		return err
	}
	if err := m.writeField(ctx, slot, field, target); err != nil {
		return err
	}
	m.logger.Info("unit boosted", map[string]any{"slot": slot, "field": field, "to": target})
	return nil
}

func (m *Manager) checkSlot(slot int) error {
	if slot < 1 || slot > m.table.UnitCount {
		return fmt.Errorf("no unit slot %d", slot)
	}
	return nil
}

func (m *Manager) fieldRegion(slot int, name string) (types.MemoryRegion, schema.Field, error) {
	for _, f := range m.table.Fields {
		if f.Name == name {
			base := m.table.UnitRegion(slot).Addr
			return types.MemoryRegion{Addr: base + types.Address(f.Offset), Length: f.Width}, f, nil
		}
	}
	return types.MemoryRegion{}, schema.Field{}, fmt.Errorf("schema has no field %q", name)
}

func (m *Manager) readField(ctx context.Context, slot int, name string) (int, error) {
	region, f, err := m.fieldRegion(slot, name)
	if err != nil {
		return 0, err
	}
	raw, err := m.session.Read(ctx, region)
	if err != nil {
		return 0, err
	}
	v, err := schema.DecodeField(schema.Field{Name: f.Name, Offset: 0, Width: f.Width, Kind: f.Kind}, raw)
	if err != nil {
		return 0, err
	}
	return int(v.Uint), nil
}

func (m *Manager) writeField(ctx context.Context, slot int, name string, value int) error {
	region, f, err := m.fieldRegion(slot, name)
	if err != nil {
		return err
	}
	data := make([]byte, f.Width)
	switch f.Width {
	case 1:
		data[0] = byte(value)
	case 2:
		binary.LittleEndian.PutUint16(data, uint16(value))
	case 4:
		binary.LittleEndian.PutUint32(data, uint32(value))
	default:
		return fmt.Errorf("cannot write field %q of width %d", name, f.Width)
	}
	return m.session.Write(ctx, region, data)
}
