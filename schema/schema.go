// Package schema maps named game-state fields onto byte ranges of
// target memory. The table (offsets, widths, decode rules) is data,
// not code: the decoder is a pure function over a schema entry and a
// byte slice, so it is testable against literal fixtures without a
// live connection.
//
// The table is versioned and immutable at runtime. A compiled-in
// default covers the supported game build; an alternative table can be
// loaded from YAML at startup for other builds.
package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bizkut/eden-fft-agent/types"
)

// FieldKind selects the decode rule for a field.
type FieldKind string

const (
	// KindUint decodes a little-endian unsigned integer.
	KindUint FieldKind = "uint"
	// KindBool decodes nonzero as true.
	KindBool FieldKind = "bool"
	// KindBitfield decodes a raw little-endian bit set.
	KindBitfield FieldKind = "bitfield"
	// KindEnum decodes an identifier whose unknown values are valid.
	KindEnum FieldKind = "enum"
)

func (k FieldKind) valid() bool {
	switch k {
	case KindUint, KindBool, KindBitfield, KindEnum:
		return true
	default:
		return false
	}
}

// Field is one named entry relative to a unit's base address.
type Field struct {
	Name   string    `yaml:"name"`
	Offset uint32    `yaml:"offset"`
	Width  int       `yaml:"width"`
	Kind   FieldKind `yaml:"kind"`
}

// AbsoluteField is a named entry at a fixed target address, outside
// the per-slot stride. The lead unit's job and ability live here.
type AbsoluteField struct {
	Name  string    `yaml:"name"`
	Addr  uint64    `yaml:"addr"`
	Width int       `yaml:"width"`
	Kind  FieldKind `yaml:"kind"`
}

// Schema is the versioned game-state table.
type Schema struct {
	Version string `yaml:"version"`
	// PartyBase is the address of the first unit's stat block.
	PartyBase uint64 `yaml:"party_base"`
	// UnitStride is the byte distance between consecutive unit slots.
	UnitStride uint32 `yaml:"unit_stride"`
	// UnitCount is the number of party slots.
	UnitCount int `yaml:"unit_count"`
	// Fields are the per-unit entries, offsets relative to slot base.
	Fields []Field `yaml:"fields"`
	// Lead holds the lead-unit absolute entries.
	Lead []AbsoluteField `yaml:"lead"`
}

// Default returns the compiled-in table for the supported game build.
// Offsets come from the build's published cheat tables.
func Default() *Schema {
	return &Schema{
		Version:    "ivalice-1",
		PartyBase:  0x01047400,
		UnitStride: 0x200,
		UnitCount:  5,
		Fields: []Field{
			{Name: "brave", Offset: 0x7A, Width: 1, Kind: KindUint},
			{Name: "faith", Offset: 0x7C, Width: 1, Kind: KindUint},
			{Name: "hp", Offset: 0x80, Width: 2, Kind: KindUint},
			{Name: "mp", Offset: 0x84, Width: 2, Kind: KindUint},
			{Name: "attack_power", Offset: 0x88, Width: 2, Kind: KindUint},
			{Name: "move_count", Offset: 0x91, Width: 1, Kind: KindUint},
			{Name: "max_moves", Offset: 0x92, Width: 2, Kind: KindUint},
			{Name: "status_shield_1", Offset: 0xB2, Width: 2, Kind: KindBitfield},
			{Name: "status_shield_2", Offset: 0xB4, Width: 2, Kind: KindBitfield},
			{Name: "max_hp", Offset: 0xCC, Width: 2, Kind: KindUint},
			{Name: "max_mp", Offset: 0xD0, Width: 2, Kind: KindUint},
			{Name: "speed", Offset: 0xD2, Width: 1, Kind: KindUint},
			{Name: "attack", Offset: 0xD6, Width: 2, Kind: KindUint},
			{Name: "attack2", Offset: 0xD8, Width: 2, Kind: KindUint},
			{Name: "skill_poaching", Offset: 0xEA, Width: 2, Kind: KindBool},
			{Name: "skill_xp_hp_move", Offset: 0xEC, Width: 2, Kind: KindBool},
			{Name: "skill_fly", Offset: 0xEE, Width: 2, Kind: KindBool},
			{Name: "magic_ready", Offset: 0x1DD, Width: 1, Kind: KindBool},
		},
		Lead: []AbsoluteField{
			{Name: "job_id", Addr: 0x0104C4BA, Width: 1, Kind: KindEnum},
			{Name: "ability2_id", Addr: 0x0104C4BF, Width: 1, Kind: KindEnum},
		},
	}
}

// Load reads a schema table from a YAML file and validates it.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read schema file %q: %w", path, err)
	}
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return &s, nil
}

// Validate checks table invariants: these must hold or game-state
// interpretation silently corrupts.
func (s *Schema) Validate() error {
	if s.Version == "" {
		return fmt.Errorf("schema has no version")
	}
	if s.UnitCount <= 0 {
		return fmt.Errorf("unit_count must be positive, got %d", s.UnitCount)
	}
	if s.UnitStride == 0 {
		return fmt.Errorf("unit_stride must be positive")
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema has no fields")
	}
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("field with empty name at offset 0x%x", f.Offset)
		}
		if f.Width < 1 || f.Width > 8 {
			return fmt.Errorf("field %q has unsupported width %d", f.Name, f.Width)
		}
		if !f.Kind.valid() {
			return fmt.Errorf("field %q has unknown kind %q", f.Name, f.Kind)
		}
		if f.Offset+uint32(f.Width) > s.UnitStride {
			return fmt.Errorf("field %q (offset 0x%x, width %d) exceeds unit stride 0x%x", f.Name, f.Offset, f.Width, s.UnitStride)
		}
	}
	for _, f := range s.Lead {
		if f.Width < 1 || f.Width > 8 {
			return fmt.Errorf("lead field %q has unsupported width %d", f.Name, f.Width)
		}
		if !f.Kind.valid() {
			return fmt.Errorf("lead field %q has unknown kind %q", f.Name, f.Kind)
		}
	}
	return nil
}

// UnitSpan returns the byte length needed to cover every per-unit
// field from the slot base.
func (s *Schema) UnitSpan() int {
	span := 0
	for _, f := range s.Fields {
		if end := int(f.Offset) + f.Width; end > span {
			span = end
		}
	}
	return span
}

// UnitRegion returns the memory region backing a 1-based party slot.
func (s *Schema) UnitRegion(slot int) types.MemoryRegion {
	base := types.Address(s.PartyBase) + types.Address(uint32(slot-1)*s.UnitStride)
	return types.MemoryRegion{Addr: base, Length: s.UnitSpan()}
}

// LeadRegion returns the memory region backing an absolute lead field.
func (s *Schema) LeadRegion(f AbsoluteField) types.MemoryRegion {
	return types.MemoryRegion{Addr: types.Address(f.Addr), Length: f.Width}
}
