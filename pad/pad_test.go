package pad

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"
)

func TestBuildPadData_Layout(t *testing.T) {
	st := neutralState()
	st.counter = 7
	st.buttons = ButtonCircle | ButtonUp

	msg := buildPadData(0x12345678, st, 123456789)

	if len(msg) != 100 {
		t.Fatalf("message length = %d, want 100", len(msg))
	}
	if got := binary.LittleEndian.Uint32(msg[0:]); got != serverMagic {
		t.Errorf("magic = 0x%08x, want DSUS", got)
	}
	if got := binary.LittleEndian.Uint16(msg[4:]); got != protocolVersion {
		t.Errorf("version = %d, want %d", got, protocolVersion)
	}
	// Length counts payload plus the 4-byte message type.
	if got := binary.LittleEndian.Uint16(msg[6:]); got != padPayloadSize+4 {
		t.Errorf("length field = %d, want %d", got, padPayloadSize+4)
	}
	if got := binary.LittleEndian.Uint32(msg[16:]); got != msgPadData {
		t.Errorf("message type = 0x%08x, want pad data", got)
	}
	if !verifyMessage(msg) {
		t.Error("CRC does not verify")
	}

	// PortInfo block: connected, generic, USB, full battery, active.
	info := msg[headerSize : headerSize+portInfoSize]
	if info[1] != 2 || info[2] != 3 || info[3] != 1 || info[10] != 5 || info[11] != 1 {
		t.Errorf("port info = %v", info)
	}

	p := msg[headerSize+portInfoSize:]
	if got := binary.LittleEndian.Uint32(p[0:]); got != 7 {
		t.Errorf("packet counter = %d, want 7", got)
	}
	if got := binary.LittleEndian.Uint16(p[4:]); got != st.buttons {
		t.Errorf("buttons = 0x%04x, want 0x%04x", got, st.buttons)
	}
	if p[8] != 128 || p[9] != 128 || p[10] != 128 || p[11] != 128 {
		t.Errorf("sticks not centered: %v", p[8:12])
	}
	if got := binary.LittleEndian.Uint64(p[36:]); got != 123456789 {
		t.Errorf("motion timestamp = %d", got)
	}
}

func TestSealMessage_CRCDetectsCorruption(t *testing.T) {
	msg := buildVersionResponse(1)
	if !verifyMessage(msg) {
		t.Fatal("fresh message fails CRC")
	}
	msg[headerSize] ^= 0xFF
	if verifyMessage(msg) {
		t.Error("corrupted message passes CRC")
	}
}

func TestButtonBit_SwitchMapping(t *testing.T) {
	cases := map[string]uint16{
		"a":     ButtonCircle,
		"b":     ButtonCross,
		"x":     ButtonTriangle,
		"y":     ButtonSquare,
		"up":    ButtonUp,
		"start": ButtonOptions,
	}
	for name, want := range cases {
		got, err := ButtonBit(name)
		if err != nil {
			t.Errorf("ButtonBit(%q) failed: %v", name, err)
			continue
		}
		if got != want {
			t.Errorf("ButtonBit(%q) = 0x%04x, want 0x%04x", name, got, want)
		}
	}
	if _, err := ButtonBit("turbo"); err == nil {
		t.Error("unknown button accepted")
	}
}

func TestParseRequest_RejectsForeignTraffic(t *testing.T) {
	if _, ok := parseRequest([]byte("short")); ok {
		t.Error("undersized datagram accepted")
	}

	msg := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(msg[0:], 0xDEADBEEF)
	if _, ok := parseRequest(msg); ok {
		t.Error("wrong magic accepted")
	}

	binary.LittleEndian.PutUint32(msg[0:], clientMagic)
	binary.LittleEndian.PutUint32(msg[16:], msgPadData)
	msgType, ok := parseRequest(msg)
	if !ok || msgType != msgPadData {
		t.Errorf("parseRequest = (0x%08x, %v)", msgType, ok)
	}
}

func startServer(t *testing.T) (*Server, context.CancelFunc) {
	t.Helper()
	s, err := NewServer(Config{
		Addr:          "127.0.0.1:0",
		PressDuration: 30 * time.Millisecond,
	}, nil)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(cancel)
	return s, cancel
}

func clientRequest(t *testing.T, serverAddr net.Addr, msgType uint32) []byte {
	t.Helper()
	conn, err := net.Dial("udp", serverAddr.String())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	req := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(req[0:], clientMagic)
	binary.LittleEndian.PutUint16(req[4:], protocolVersion)
	binary.LittleEndian.PutUint32(req[16:], msgType)
	if _, err := conn.Write(req); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("no response: %v", err)
	}
	return buf[:n]
}

func TestServer_Handshake(t *testing.T) {
	s, _ := startServer(t)

	resp := clientRequest(t, s.Addr(), msgVersion)
	if len(resp) != headerSize+2 {
		t.Fatalf("version response length = %d, want %d", len(resp), headerSize+2)
	}
	if !verifyMessage(resp) {
		t.Error("version response fails CRC")
	}
	if got := binary.LittleEndian.Uint16(resp[headerSize:]); got != protocolVersion {
		t.Errorf("reported version = %d, want %d", got, protocolVersion)
	}

	report := clientRequest(t, s.Addr(), msgPadData)
	if len(report) != 100 {
		t.Fatalf("pad report length = %d, want 100", len(report))
	}
	if !verifyMessage(report) {
		t.Error("pad report fails CRC")
	}
}

func TestPressButton_HoldsAndReleases(t *testing.T) {
	s, _ := startServer(t)

	done := make(chan error, 1)
	go func() { done <- s.PressButton(context.Background(), "a") }()

	deadline := time.Now().Add(2 * time.Second)
	for s.Buttons()&ButtonCircle == 0 {
		if time.Now().After(deadline) {
			t.Fatal("button bit never held")
		}
		time.Sleep(time.Millisecond)
	}

	if err := <-done; err != nil {
		t.Fatalf("PressButton failed: %v", err)
	}
	if s.Buttons() != 0 {
		t.Errorf("buttons = 0x%04x after release, want 0", s.Buttons())
	}
}
