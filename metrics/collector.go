// Package metrics provides agent-session metrics collection.
//
// The Collector accumulates counters during a single agent session. It
// is a leaf package with no internal dependencies. Counters cover the
// memory path (reads, retransmits, reconnects), the decision path (LLM
// calls), and game bookkeeping (battles won/lost).
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all session counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after
// creation.
type Snapshot struct {
	// Memory path
	ReadsCompleted int64
	ReadsFailed    int64
	WritesCompleted int64
	WritesFailed    int64
	Retransmits    int64
	Reconnects     int64
	ChecksumErrors int64
	StubErrors     int64
	PollsCompleted int64
	PollsFailed    int64

	// Decision path
	LLMCalls    int64
	LLMFailures int64

	// Game bookkeeping
	BattlesWon  int64
	BattlesLost int64

	// Dimensions (informational, set at construction)
	StubAddr      string
	SchemaVersion string
}

// Collector accumulates metrics during a single agent session.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver
// safe so components can run without a collector wired in.
type Collector struct {
	mu sync.Mutex

	readsCompleted  int64
	readsFailed     int64
	writesCompleted int64
	writesFailed    int64
	retransmits     int64
	reconnects      int64
	checksumErrors  int64
	stubErrors      int64
	pollsCompleted  int64
	pollsFailed     int64

	llmCalls    int64
	llmFailures int64

	battlesWon  int64
	battlesLost int64

	stubAddr      string
	schemaVersion string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(stubAddr, schemaVersion string) *Collector {
	return &Collector{stubAddr: stubAddr, schemaVersion: schemaVersion}
}

// inc must only be called on a non-nil receiver; the exported methods
// guard the nil case before taking field addresses.
func (c *Collector) inc(field *int64) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// IncReadCompleted records a fully reassembled memory read.
func (c *Collector) IncReadCompleted() {
	if c == nil {
		return
	}
	c.inc(&c.readsCompleted)
}

// IncReadFailed records a read surfaced to the caller as failed.
func (c *Collector) IncReadFailed() {
	if c == nil {
		return
	}
	c.inc(&c.readsFailed)
}

// IncWriteCompleted records a completed memory write.
func (c *Collector) IncWriteCompleted() {
	if c == nil {
		return
	}
	c.inc(&c.writesCompleted)
}

// IncWriteFailed records a failed memory write.
func (c *Collector) IncWriteFailed() {
	if c == nil {
		return
	}
	c.inc(&c.writesFailed)
}

// IncRetransmit records a packet retransmission after a NAK.
func (c *Collector) IncRetransmit() {
	if c == nil {
		return
	}
	c.inc(&c.retransmits)
}

// IncReconnect records a link reconnect attempt.
func (c *Collector) IncReconnect() {
	if c == nil {
		return
	}
	c.inc(&c.reconnects)
}

// IncChecksumError records a corrupt inbound packet.
func (c *Collector) IncChecksumError() {
	if c == nil {
		return
	}
	c.inc(&c.checksumErrors)
}

// IncStubError records an Exx reply from the remote stub.
func (c *Collector) IncStubError() {
	if c == nil {
		return
	}
	c.inc(&c.stubErrors)
}

// IncPollCompleted records a successful snapshot poll.
func (c *Collector) IncPollCompleted() {
	if c == nil {
		return
	}
	c.inc(&c.pollsCompleted)
}

// IncPollFailed records a poll that could not obtain a fresh snapshot.
func (c *Collector) IncPollFailed() {
	if c == nil {
		return
	}
	c.inc(&c.pollsFailed)
}

// IncLLMCall records a chat completion request.
func (c *Collector) IncLLMCall() {
	if c == nil {
		return
	}
	c.inc(&c.llmCalls)
}

// IncLLMFailure records a chat completion request that failed after
// internal retries.
func (c *Collector) IncLLMFailure() {
	if c == nil {
		return
	}
	c.inc(&c.llmFailures)
}

// IncBattleWon records a battle ending in victory.
func (c *Collector) IncBattleWon() {
	if c == nil {
		return
	}
	c.inc(&c.battlesWon)
}

// IncBattleLost records a battle ending in defeat.
func (c *Collector) IncBattleLost() {
	if c == nil {
		return
	}
	c.inc(&c.battlesLost)
}

// Snapshot returns an immutable point-in-time view of all counters.
// The Collector can continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		ReadsCompleted:  c.readsCompleted,
		ReadsFailed:     c.readsFailed,
		WritesCompleted: c.writesCompleted,
		WritesFailed:    c.writesFailed,
		Retransmits:     c.retransmits,
		Reconnects:      c.reconnects,
		ChecksumErrors:  c.checksumErrors,
		StubErrors:      c.stubErrors,
		PollsCompleted:  c.pollsCompleted,
		PollsFailed:     c.pollsFailed,

		LLMCalls:    c.llmCalls,
		LLMFailures: c.llmFailures,

		BattlesWon:  c.battlesWon,
		BattlesLost: c.battlesLost,

		StubAddr:      c.stubAddr,
		SchemaVersion: c.schemaVersion,
	}
}
