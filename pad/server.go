package pad

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/bizkut/eden-fft-agent/log"
)

// Config tunes the DSU server.
type Config struct {
	// Addr is the UDP listen address; emulators look for DSU servers
	// on port 26760 by default.
	Addr string `yaml:"addr"`
	// ServerID identifies this server to clients.
	ServerID uint32 `yaml:"server_id"`
	// ReportInterval is the unsolicited pad-data cadence once a
	// client has registered.
	ReportInterval time.Duration `yaml:"report_interval"`
	// PressDuration is how long a button bit stays held.
	PressDuration time.Duration `yaml:"press_duration"`
	// CursorKeyDelay separates the d-pad taps of a cursor move.
	CursorKeyDelay time.Duration `yaml:"cursor_key_delay"`
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:26760"
	}
	if c.ServerID == 0 {
		c.ServerID = 0x12345678
	}
	if c.ReportInterval == 0 {
		c.ReportInterval = 16 * time.Millisecond // ~60 Hz
	}
	if c.PressDuration == 0 {
		c.PressDuration = 250 * time.Millisecond
	}
	if c.CursorKeyDelay == 0 {
		c.CursorKeyDelay = 50 * time.Millisecond
	}
	return c
}

// Server is a virtual DSU pad. It answers handshake requests and
// streams pad reports to the registered client while exposing
// press-level methods for the action executor.
type Server struct {
	cfg    Config
	logger *log.Logger

	conn *net.UDPConn

	mu     sync.Mutex
	state  padState
	client *net.UDPAddr
}

// NewServer binds the UDP socket. Call Run to start serving.
func NewServer(cfg Config, logger *log.Logger) (*Server, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.Nop()
	}

	addr, err := net.ResolveUDPAddr("udp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("invalid pad listen address %q: %w", cfg.Addr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("cannot bind pad server on %s: %w", cfg.Addr, err)
	}

	logger.Info("pad server listening", map[string]any{"addr": conn.LocalAddr().String()})
	return &Server{
		cfg:    cfg,
		logger: logger,
		conn:   conn,
		state:  neutralState(),
	}, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Run serves handshake requests and streams pad reports until ctx is
// done. It closes the socket on return.
func (s *Server) Run(ctx context.Context) error {
	defer s.conn.Close()

	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	ticker := time.NewTicker(s.cfg.ReportInterval)
	defer ticker.Stop()

	buf := make([]byte, 128)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sendReport()
		default:
		}

		s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReportInterval))
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return fmt.Errorf("pad server read: %w", err)
		}
		s.handle(buf[:n], addr)
	}
}

func (s *Server) handle(data []byte, addr *net.UDPAddr) {
	msgType, ok := parseRequest(data)
	if !ok {
		return
	}

	s.mu.Lock()
	s.client = addr
	s.mu.Unlock()

	switch msgType {
	case msgVersion:
		s.logger.Debug("pad handshake: version request", map[string]any{"client": addr.String()})
		s.conn.WriteToUDP(buildVersionResponse(s.cfg.ServerID), addr)
	case msgPortInfo:
		s.logger.Debug("pad handshake: port info request", map[string]any{"client": addr.String()})
		s.conn.WriteToUDP(buildPortInfoResponse(s.cfg.ServerID), addr)
	case msgPadData:
		s.conn.WriteToUDP(s.nextReport(), addr)
	}
}

func (s *Server) sendReport() {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return
	}
	s.conn.WriteToUDP(s.nextReport(), client)
}

func (s *Server) nextReport() []byte {
	s.mu.Lock()
	s.state.counter++
	st := s.state
	s.mu.Unlock()
	return buildPadData(s.cfg.ServerID, st, uint64(time.Now().UnixMicro()))
}

// PressButton holds a button bit for the configured press duration
// and releases it. Satisfies the action executor's controller
// interface.
func (s *Server) PressButton(ctx context.Context, button string) error {
	bit, err := ButtonBit(button)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.state.buttons |= bit
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state.buttons &^= bit
		s.mu.Unlock()
	}()

	t := time.NewTimer(s.cfg.PressDuration)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// MoveCursor taps the d-pad to move the tile cursor by (dx, dy).
// Positive deltas move right and down.
func (s *Server) MoveCursor(ctx context.Context, dx, dy int) error {
	press := func(dir string, n int) error {
		for i := 0; i < n; i++ {
			if err := s.PressButton(ctx, dir); err != nil {
				return err
			}
			t := time.NewTimer(s.cfg.CursorKeyDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		return nil
	}

	if dx > 0 {
		if err := press("right", dx); err != nil {
			return err
		}
	} else if dx < 0 {
		if err := press("left", -dx); err != nil {
			return err
		}
	}
	if dy > 0 {
		return press("down", dy)
	}
	if dy < 0 {
		return press("up", -dy)
	}
	return nil
}

// Buttons returns the currently held button bits.
func (s *Server) Buttons() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.buttons
}
