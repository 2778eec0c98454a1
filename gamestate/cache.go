// Package gamestate holds the most recently decoded party snapshot
// and exposes change detection against the previous one, so decision
// logic reacts to meaningful transitions instead of polling noise.
//
// Snapshot history is bounded to exactly the current and immediately
// prior snapshot. When the memory path cannot produce a fresh
// snapshot, Poll surfaces ErrMemoryUnavailable; a stale or zeroed
// snapshot is never silently presented as current.
package gamestate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bizkut/eden-fft-agent/log"
	"github.com/bizkut/eden-fft-agent/metrics"
	"github.com/bizkut/eden-fft-agent/schema"
	"github.com/bizkut/eden-fft-agent/types"
)

// ErrMemoryUnavailable signals that no fresh snapshot could be
// obtained. Upstream decision logic must treat this explicitly rather
// than reusing old state.
var ErrMemoryUnavailable = errors.New("game memory unavailable")

// MemoryReader is the read-side of the memory session.
type MemoryReader interface {
	Read(ctx context.Context, region types.MemoryRegion) ([]byte, error)
}

// Cache performs the full read+decode cycle and retains the last two
// snapshots.
type Cache struct {
	session MemoryReader
	table   *schema.Schema
	logger  *log.Logger
	metrics *metrics.Collector
	now     func() time.Time

	mu   sync.Mutex
	seq  uint64
	prev *types.PartySnapshot
	cur  *types.PartySnapshot
}

// NewCache creates a cache over a memory session and schema table.
// logger and collector may be nil.
func NewCache(session MemoryReader, table *schema.Schema, logger *log.Logger, collector *metrics.Collector) *Cache {
	if logger == nil {
		logger = log.Nop()
	}
	return &Cache{
		session: session,
		table:   table,
		logger:  logger,
		metrics: collector,
		now:     time.Now,
	}
}

// Poll reads and decodes every party slot, assigns the next sequence
// number, stores the snapshot, and returns it. Any failure yields
// ErrMemoryUnavailable and leaves the stored snapshots untouched.
func (c *Cache) Poll(ctx context.Context) (types.PartySnapshot, error) {
	units := make([]types.UnitRecord, 0, c.table.UnitCount)
	for slot := 1; slot <= c.table.UnitCount; slot++ {
		raw, err := c.session.Read(ctx, c.table.UnitRegion(slot))
		if err != nil {
			c.metrics.IncPollFailed()
			return types.PartySnapshot{}, fmt.Errorf("%w: slot %d: %v", ErrMemoryUnavailable, slot, err)
		}
		rec, err := c.table.DecodeUnit(slot, raw)
		if err != nil {
			c.metrics.IncPollFailed()
			return types.PartySnapshot{}, fmt.Errorf("%w: slot %d: %v", ErrMemoryUnavailable, slot, err)
		}
		units = append(units, rec)
	}

	// Lead-unit fields live at absolute addresses outside the stride.
	if len(units) > 0 {
		for _, f := range c.table.Lead {
			raw, err := c.session.Read(ctx, c.table.LeadRegion(f))
			if err != nil {
				c.metrics.IncPollFailed()
				return types.PartySnapshot{}, fmt.Errorf("%w: lead field %s: %v", ErrMemoryUnavailable, f.Name, err)
			}
			if err := c.table.DecodeLead(&units[0], f, raw); err != nil {
				c.metrics.IncPollFailed()
				return types.PartySnapshot{}, fmt.Errorf("%w: lead field %s: %v", ErrMemoryUnavailable, f.Name, err)
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	snapshot := types.PartySnapshot{
		Seq:        c.seq,
		CapturedAt: c.now(),
		Units:      units,
	}
	c.prev = c.cur
	c.cur = &snapshot
	c.metrics.IncPollCompleted()
	return snapshot, nil
}

// Latest returns the current snapshot, if any poll has succeeded.
func (c *Cache) Latest() (types.PartySnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return types.PartySnapshot{}, false
	}
	return *c.cur, true
}

// LastChanges diffs the previous snapshot against the current one.
// Empty until two polls have succeeded.
func (c *Cache) LastChanges() []types.FieldChange {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prev == nil || c.cur == nil {
		return nil
	}
	return Diff(*c.prev, *c.cur)
}

// Run polls at a fixed interval until ctx is done. The loop is
// cooperative: each tick performs one poll, failures are logged and
// counted, and onSnapshot (optional) is invoked only with fresh
// snapshots. Decision logic consuming snapshots never blocks this
// loop; it reads immutable copies through Latest.
func (c *Cache) Run(ctx context.Context, interval time.Duration, onSnapshot func(types.PartySnapshot, []types.FieldChange)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			snapshot, err := c.Poll(ctx)
			if err != nil {
				c.logger.Warn("poll failed", map[string]any{"error": err.Error()})
				continue
			}
			if onSnapshot != nil {
				onSnapshot(snapshot, c.LastChanges())
			}
		}
	}
}
