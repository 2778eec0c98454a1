// Package types defines the shared domain types for the agent:
// memory regions, decoded unit records, party snapshots, and the
// connection state machine of the debug-stub link.
package types

import "fmt"

// Address is an offset into the target process's address space.
// Validity is not enforced here; the remote stub may reject it.
type Address uint64

// String formats the address as hex, matching the wire convention.
func (a Address) String() string {
	return fmt.Sprintf("0x%08x", uint64(a))
}

// MemoryRegion describes a contiguous byte range in target memory.
type MemoryRegion struct {
	Addr   Address
	Length int
}

// Validate checks the region invariants. Length must be positive;
// reads larger than the session's chunk size are split, not rejected.
func (r MemoryRegion) Validate() error {
	if r.Length <= 0 {
		return fmt.Errorf("memory region at %s has non-positive length %d", r.Addr, r.Length)
	}
	return nil
}

// End returns the first address past the region.
func (r MemoryRegion) End() Address {
	return r.Addr + Address(r.Length)
}

// ConnectionState models the lifecycle of the debug-stub link.
//
// Transitions: Disconnected -> Connecting -> Ready <-> Degraded.
// Degraded means the link is alive but the last exchange failed and a
// retry or reconnect is pending.
type ConnectionState int

const (
	// Disconnected means no connection is open.
	Disconnected ConnectionState = iota
	// Connecting means a dial is in progress.
	Connecting
	// Ready means the link accepts requests.
	Ready
	// Degraded means the last exchange failed; reconnect pending.
	Degraded
)

// String returns the lowercase state name for logs and status output.
func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Degraded:
		return "degraded"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}
