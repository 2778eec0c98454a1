// Package link owns the single persistent stream connection to the
// remote debug stub. It sends framed request packets and receives
// framed response packets reliably, reconnecting with exponential
// backoff when the peer disconnects or stalls.
//
// The link is modeled as an explicit connection state machine
// (Disconnected -> Connecting -> Ready <-> Degraded) rather than
// scattering reconnect logic across callers. After a failed or
// abandoned exchange the stream may hold a stale response, so the link
// forces a reconnect before accepting the next request; a stale reply
// must never be attributed to a new request.
package link

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/bizkut/eden-fft-agent/log"
	"github.com/bizkut/eden-fft-agent/metrics"
	"github.com/bizkut/eden-fft-agent/rsp"
	"github.com/bizkut/eden-fft-agent/types"
)

// Config holds the link's connection and retry parameters.
// All values are loaded once at startup and immutable thereafter.
type Config struct {
	// Addr is the debug stub's host:port.
	Addr string
	// DialTimeout bounds a single connect attempt.
	DialTimeout time.Duration
	// ExchangeTimeout bounds one full request/response round trip.
	ExchangeTimeout time.Duration
	// MaxReconnects bounds reconnect attempts per recovery cycle
	// before an exchange surfaces a fatal error.
	MaxReconnects uint
	// MaxRetransmits bounds NAK-triggered retransmissions of a single
	// packet in either direction.
	MaxRetransmits int
	// BackoffInitial is the first reconnect delay.
	BackoffInitial time.Duration
	// BackoffMax caps the reconnect delay.
	BackoffMax time.Duration
}

func (c Config) withDefaults() Config {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 2 * time.Second
	}
	if c.ExchangeTimeout <= 0 {
		c.ExchangeTimeout = 2 * time.Second
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 3
	}
	if c.MaxRetransmits <= 0 {
		c.MaxRetransmits = 3
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = 200 * time.Millisecond
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 5 * time.Second
	}
	return c
}

// dialFunc opens the stream connection. Swappable in tests.
type dialFunc func(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error)

func netDial(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	return d.DialContext(ctx, "tcp", addr)
}

// Link is the transport to the debug stub. Exactly one logical
// connection; concurrent callers are serialized. All socket operations
// carry explicit deadlines so a stalled peer cannot hang a caller.
type Link struct {
	cfg     Config
	logger  *log.Logger
	metrics *metrics.Collector
	dial    dialFunc

	mu     sync.Mutex
	conn   net.Conn
	reader *rsp.Reader
	state  types.ConnectionState
	reason string
	// resync forces a reconnect before the next exchange. Set after a
	// failed or abandoned exchange that may have left a response in
	// flight on the old stream.
	resync bool
}

// New creates a Link in the Disconnected state. logger and collector
// may be nil.
func New(cfg Config, logger *log.Logger, collector *metrics.Collector) *Link {
	if logger == nil {
		logger = log.Nop()
	}
	return &Link{
		cfg:     cfg.withDefaults(),
		logger:  logger,
		metrics: collector,
		dial:    netDial,
		state:   types.Disconnected,
	}
}

// Status returns the current connection state and, when Degraded, the
// reason the last exchange failed.
func (l *Link) Status() (types.ConnectionState, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state, l.reason
}

// Connect establishes the connection. Fatal to session start on
// failure; once connected, later failures degrade and reconnect
// instead.
func (l *Link) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connectLocked(ctx)
}

func (l *Link) connectLocked(ctx context.Context) error {
	l.setStateLocked(types.Connecting, "")

	conn, err := l.dial(ctx, l.cfg.Addr, l.cfg.DialTimeout)
	if err != nil {
		l.setStateLocked(types.Disconnected, "")
		return &ConnectError{Addr: l.cfg.Addr, Err: err}
	}

	l.conn = conn
	l.reader = rsp.NewReader(conn)
	l.resync = false
	l.setStateLocked(types.Ready, "")
	l.logger.Info("connected to debug stub", map[string]any{"addr": l.cfg.Addr})
	return nil
}

// Close releases the connection. Safe to call in any state; the
// connection is never leaked across retries because every failure path
// funnels through dropLocked.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.dropLocked()
	l.setStateLocked(types.Disconnected, "")
	return err
}

func (l *Link) dropLocked() error {
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	l.reader = nil
	return err
}

func (l *Link) setStateLocked(s types.ConnectionState, reason string) {
	if l.state != s {
		l.logger.Debug("link state transition", map[string]any{
			"from": l.state.String(), "to": s.String(), "reason": reason,
		})
	}
	l.state = s
	l.reason = reason
}

// Exchange sends one command payload and returns the response payload.
// It performs a full protocol round trip: frame, send, await ACK
// (retransmitting on NAK up to the configured bound), read the
// response packet, validate, and acknowledge it.
//
// A socket error or timeout degrades the link and returns a transient
// LinkError; the next Exchange reconnects with exponential backoff
// before touching the wire, and surfaces a fatal LinkError once the
// reconnect budget is exhausted.
func (l *Link) Exchange(ctx context.Context, payload []byte) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureReadyLocked(ctx); err != nil {
		return nil, err
	}

	resp, err := l.exchangeLocked(ctx, payload)
	if err != nil {
		// The stream may hold a partial or stale response. Degrade and
		// force a resync so the next request starts on a clean stream.
		l.resync = true
		l.setStateLocked(types.Degraded, err.Error())
		return nil, &LinkError{Op: "exchange", Err: err}
	}

	l.setStateLocked(types.Ready, "")
	return resp, nil
}

// ensureReadyLocked reconnects when the link is degraded, down, or
// flagged for resync. Reconnect attempts back off exponentially up to
// the configured bound.
func (l *Link) ensureReadyLocked(ctx context.Context) error {
	if l.conn != nil && !l.resync && l.state == types.Ready {
		return nil
	}

	_ = l.dropLocked()

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = l.cfg.BackoffInitial
	expo.MaxInterval = l.cfg.BackoffMax

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		l.metrics.IncReconnect()
		if err := l.connectLocked(ctx); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(expo), backoff.WithMaxTries(l.cfg.MaxReconnects))
	if err != nil {
		l.setStateLocked(types.Degraded, fmt.Sprintf("reconnect failed: %v", err))
		return &LinkError{Op: "reconnect", Err: err, Fatal: true}
	}
	return nil
}

// exchangeLocked performs the wire round trip on the live connection.
func (l *Link) exchangeLocked(ctx context.Context, payload []byte) ([]byte, error) {
	deadline := time.Now().Add(l.cfg.ExchangeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := l.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	packet := rsp.Encode(payload)

	// Send, awaiting ACK. A NAK means resend the identical packet.
	acked := false
	for attempt := 0; attempt <= l.cfg.MaxRetransmits; attempt++ {
		if attempt > 0 {
			l.metrics.IncRetransmit()
			l.logger.Debug("retransmitting after nak", map[string]any{"attempt": attempt})
		}
		if _, err := l.conn.Write(packet); err != nil {
			return nil, fmt.Errorf("write packet: %w", err)
		}
		ok, err := l.reader.ReadAck()
		if err != nil {
			return nil, fmt.Errorf("read ack: %w", err)
		}
		if ok {
			acked = true
			break
		}
	}
	if !acked {
		return nil, fmt.Errorf("peer rejected packet %d times", l.cfg.MaxRetransmits+1)
	}

	// Receive the response. A corrupt packet is NAKed so the stub
	// retransmits, up to the same bound.
	for attempt := 0; ; attempt++ {
		resp, err := l.reader.ReadPacket()
		if err == nil {
			if _, err := l.conn.Write([]byte{rsp.Ack}); err != nil {
				return nil, fmt.Errorf("write ack: %w", err)
			}
			return resp, nil
		}

		var codecErr *rsp.CodecError
		if errors.As(err, &codecErr) && codecErr.Kind == rsp.CodecCorrupt && attempt < l.cfg.MaxRetransmits {
			l.metrics.IncChecksumError()
			l.logger.Warn("corrupt response packet, requesting retransmit", map[string]any{
				"attempt": attempt, "error": err.Error(),
			})
			if _, werr := l.conn.Write([]byte{rsp.Nak}); werr != nil {
				return nil, fmt.Errorf("write nak: %w", werr)
			}
			continue
		}
		return nil, fmt.Errorf("read response: %w", err)
	}
}
