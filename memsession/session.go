// Package memsession sequences typed memory read/write requests over
// the transport link. The debug-stub protocol is strictly half-duplex
// request/response on one connection, so the session enforces
// at-most-one-outstanding-request discipline: concurrent callers are
// serialized and no two requests interleave on the wire.
//
// Reads larger than the configured chunk size are split into wire
// requests and reassembled in request order; a failure on any chunk
// fails the whole read rather than returning a partial result.
package memsession

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bizkut/eden-fft-agent/link"
	"github.com/bizkut/eden-fft-agent/log"
	"github.com/bizkut/eden-fft-agent/metrics"
	"github.com/bizkut/eden-fft-agent/rsp"
	"github.com/bizkut/eden-fft-agent/types"
)

// ErrWritesDisabled is returned by Write on a session built without
// the mutation capability. Reads never implicitly enable writes.
var ErrWritesDisabled = errors.New("memory writes are disabled for this session")

// Exchanger performs one framed request/response round trip.
// *link.Link is the production implementation.
type Exchanger interface {
	Exchange(ctx context.Context, payload []byte) ([]byte, error)
}

// Config holds the session's request parameters. Loaded once at
// startup and immutable thereafter.
type Config struct {
	// MaxChunkSize bounds a single wire read/write in bytes.
	MaxChunkSize int
	// Attempts bounds how many times a whole read or write is tried
	// when the link reports transient failures.
	Attempts int
	// AllowWrites is the mutation capability flag. It is threaded into
	// the constructor explicitly so read-only safety is structural:
	// a session built without it can never mutate target memory.
	AllowWrites bool
}

func (c Config) withDefaults() Config {
	if c.MaxChunkSize <= 0 {
		c.MaxChunkSize = 512
	}
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	return c
}

// ReadError is surfaced to the caller after internal retries are
// exhausted or a non-retryable failure occurs.
type ReadError struct {
	Region types.MemoryRegion
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("memory read of %d bytes at %s failed: %v", e.Region.Length, e.Region.Addr, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// WriteError is the write-path counterpart of ReadError.
type WriteError struct {
	Region types.MemoryRegion
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("memory write of %d bytes at %s failed: %v", e.Region.Length, e.Region.Addr, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Session is the typed request/response API over the link.
type Session struct {
	link    Exchanger
	cfg     Config
	logger  *log.Logger
	metrics *metrics.Collector

	// mu serializes callers: exactly one request in flight.
	mu sync.Mutex
}

// New creates a session over an exchanger. logger and collector may be
// nil.
func New(l Exchanger, cfg Config, logger *log.Logger, collector *metrics.Collector) *Session {
	if logger == nil {
		logger = log.Nop()
	}
	return &Session{link: l, cfg: cfg.withDefaults(), logger: logger, metrics: collector}
}

// AllowsWrites reports whether the session carries the mutation
// capability.
func (s *Session) AllowsWrites() bool {
	return s.cfg.AllowWrites
}

// Read fetches the exact bytes of region. The returned slice length
// always equals region.Length; any shortfall fails the read. Transient
// link failures are retried up to the configured attempt bound, then a
// ReadError surfaces.
func (s *Session) Read(ctx context.Context, region types.MemoryRegion) ([]byte, error) {
	if err := region.Validate(); err != nil {
		return nil, &ReadError{Region: region, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= s.cfg.Attempts; attempt++ {
		buf, err := s.readOnce(ctx, region)
		if err == nil {
			s.metrics.IncReadCompleted()
			return buf, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
		s.logger.Warn("memory read attempt failed", map[string]any{
			"addr": region.Addr.String(), "length": region.Length,
			"attempt": attempt, "error": err.Error(),
		})
	}

	s.metrics.IncReadFailed()
	return nil, &ReadError{Region: region, Err: lastErr}
}

// Write stores data at region.Addr. Requires the mutation capability.
func (s *Session) Write(ctx context.Context, region types.MemoryRegion, data []byte) error {
	if !s.cfg.AllowWrites {
		return &WriteError{Region: region, Err: ErrWritesDisabled}
	}
	if err := region.Validate(); err != nil {
		return &WriteError{Region: region, Err: err}
	}
	if len(data) != region.Length {
		return &WriteError{Region: region, Err: fmt.Errorf("data length %d does not match region length %d", len(data), region.Length)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= s.cfg.Attempts; attempt++ {
		err := s.writeOnce(ctx, region, data)
		if err == nil {
			s.metrics.IncWriteCompleted()
			return nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
		s.logger.Warn("memory write attempt failed", map[string]any{
			"addr": region.Addr.String(), "attempt": attempt, "error": err.Error(),
		})
	}

	s.metrics.IncWriteFailed()
	return &WriteError{Region: region, Err: lastErr}
}

// retryable reports whether the whole operation should be retried.
// Only transient link failures qualify; stub rejections and protocol
// corruption are deterministic and retried at lower layers if at all.
func retryable(err error) bool {
	var linkErr *link.LinkError
	if errors.As(err, &linkErr) {
		return !linkErr.Fatal
	}
	return false
}

// readOnce performs one chunked pass over the region.
func (s *Session) readOnce(ctx context.Context, region types.MemoryRegion) ([]byte, error) {
	buf := make([]byte, 0, region.Length)

	addr := region.Addr
	remaining := region.Length
	for remaining > 0 {
		n := remaining
		if n > s.cfg.MaxChunkSize {
			n = s.cfg.MaxChunkSize
		}

		resp, err := s.link.Exchange(ctx, rsp.ReadMemory(addr, n))
		if err != nil {
			return nil, err
		}
		reply, err := rsp.ParseReply(resp)
		if err != nil {
			return nil, err
		}
		switch reply.Kind {
		case rsp.ReplyError:
			s.metrics.IncStubError()
			return nil, &rsp.StubError{Code: reply.Code}
		case rsp.ReplyData:
			// Exact-length invariant: a short chunk poisons the whole
			// read, never a truncated result.
			if len(reply.Data) != n {
				return nil, fmt.Errorf("short read at %s: got %d bytes, want %d", addr, len(reply.Data), n)
			}
			buf = append(buf, reply.Data...)
		default:
			return nil, fmt.Errorf("unexpected reply kind %d to read command", reply.Kind)
		}

		addr += types.Address(n)
		remaining -= n
	}

	return buf, nil
}

// writeOnce performs one chunked pass writing data over the region.
func (s *Session) writeOnce(ctx context.Context, region types.MemoryRegion, data []byte) error {
	addr := region.Addr
	for len(data) > 0 {
		n := len(data)
		if n > s.cfg.MaxChunkSize {
			n = s.cfg.MaxChunkSize
		}

		resp, err := s.link.Exchange(ctx, rsp.WriteMemory(addr, data[:n]))
		if err != nil {
			return err
		}
		reply, err := rsp.ParseReply(resp)
		if err != nil {
			return err
		}
		switch reply.Kind {
		case rsp.ReplyOK:
		case rsp.ReplyError:
			s.metrics.IncStubError()
			return &rsp.StubError{Code: reply.Code}
		default:
			return fmt.Errorf("unexpected reply kind %d to write command", reply.Kind)
		}

		addr += types.Address(n)
		data = data[n:]
	}
	return nil
}
