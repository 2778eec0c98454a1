package memsession

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/bizkut/eden-fft-agent/link"
	"github.com/bizkut/eden-fft-agent/types"
)

// fakeStub serves read/write commands from an in-memory image, with
// optional scripted failures injected before real replies.
type fakeStub struct {
	base types.Address
	mem  []byte

	// failures are consumed one per Exchange call before the image is
	// consulted.
	failures []error

	requests []string
	writes   int
}

func (f *fakeStub) Exchange(_ context.Context, payload []byte) ([]byte, error) {
	f.requests = append(f.requests, string(payload))

	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		if err != nil {
			return nil, err
		}
	}

	cmd := string(payload)
	switch {
	case strings.HasPrefix(cmd, "m"):
		addr, length, err := parseRegion(cmd[1:])
		if err != nil {
			return []byte("E01"), nil
		}
		off := int(addr - f.base)
		if off < 0 || off+length > len(f.mem) {
			return []byte("E0e"), nil
		}
		return []byte(hex.EncodeToString(f.mem[off : off+length])), nil

	case strings.HasPrefix(cmd, "M"):
		f.writes++
		head, dataHex, ok := strings.Cut(cmd[1:], ":")
		if !ok {
			return []byte("E01"), nil
		}
		addr, length, err := parseRegion(head)
		if err != nil {
			return []byte("E01"), nil
		}
		data, err := hex.DecodeString(dataHex)
		if err != nil || len(data) != length {
			return []byte("E01"), nil
		}
		off := int(addr - f.base)
		if off < 0 || off+length > len(f.mem) {
			return []byte("E0e"), nil
		}
		copy(f.mem[off:], data)
		return []byte("OK"), nil

	default:
		return []byte("E01"), nil
	}
}

func parseRegion(s string) (types.Address, int, error) {
	addrHex, lenHex, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("no comma in %q", s)
	}
	addr, err := strconv.ParseUint(addrHex, 16, 64)
	if err != nil {
		return 0, 0, err
	}
	length, err := strconv.ParseUint(lenHex, 16, 32)
	if err != nil {
		return 0, 0, err
	}
	return types.Address(addr), int(length), nil
}

func newImage(n int) []byte {
	img := make([]byte, n)
	for i := range img {
		img[i] = byte(i * 7)
	}
	return img
}

func TestRead_SingleChunk(t *testing.T) {
	stub := &fakeStub{base: 0x1000, mem: newImage(64)}
	s := New(stub, Config{MaxChunkSize: 512}, nil, nil)

	got, err := s.Read(context.Background(), types.MemoryRegion{Addr: 0x1000, Length: 64})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, stub.mem) {
		t.Errorf("Read returned wrong bytes")
	}
	if len(stub.requests) != 1 {
		t.Errorf("wire requests = %d, want 1", len(stub.requests))
	}
}

func TestRead_ChunkedMatchesUnchunked(t *testing.T) {
	image := newImage(1200)

	whole := &fakeStub{base: 0x2000, mem: append([]byte(nil), image...)}
	unchunked := New(whole, Config{MaxChunkSize: 4096}, nil, nil)
	want, err := unchunked.Read(context.Background(), types.MemoryRegion{Addr: 0x2000, Length: 1200})
	if err != nil {
		t.Fatalf("unchunked Read failed: %v", err)
	}

	chunkedStub := &fakeStub{base: 0x2000, mem: append([]byte(nil), image...)}
	chunked := New(chunkedStub, Config{MaxChunkSize: 512}, nil, nil)
	got, err := chunked.Read(context.Background(), types.MemoryRegion{Addr: 0x2000, Length: 1200})
	if err != nil {
		t.Fatalf("chunked Read failed: %v", err)
	}

	if !bytes.Equal(got, want) {
		t.Error("chunked read differs from unchunked read of the same region")
	}
	// 1200 bytes at 512 per chunk: 512 + 512 + 176, in address order.
	wantReqs := []string{"m2000,200", "m2200,200", "m2400,b0"}
	if len(chunkedStub.requests) != len(wantReqs) {
		t.Fatalf("wire requests = %v, want %v", chunkedStub.requests, wantReqs)
	}
	for i, req := range wantReqs {
		if chunkedStub.requests[i] != req {
			t.Errorf("request[%d] = %q, want %q", i, chunkedStub.requests[i], req)
		}
	}
}

func TestRead_ChunkFailureFailsWholeRead(t *testing.T) {
	stub := &fakeStub{base: 0x2000, mem: newImage(1024)}
	// First chunk succeeds, second chunk dies on the wire.
	stub.failures = []error{nil, &link.LinkError{Op: "exchange", Err: errors.New("broken pipe"), Fatal: true}}

	s := New(stub, Config{MaxChunkSize: 512, Attempts: 1}, nil, nil)
	got, err := s.Read(context.Background(), types.MemoryRegion{Addr: 0x2000, Length: 1024})
	if err == nil {
		t.Fatal("Read succeeded despite a failed chunk")
	}
	if got != nil {
		t.Error("failed read returned partial bytes")
	}

	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("error type = %T, want *ReadError", err)
	}
}

func TestRead_TransientFailureRetriedOnce(t *testing.T) {
	stub := &fakeStub{base: 0x1000, mem: newImage(32)}
	stub.failures = []error{&link.LinkError{Op: "exchange", Err: errors.New("timeout")}}

	s := New(stub, Config{Attempts: 3}, nil, nil)
	got, err := s.Read(context.Background(), types.MemoryRegion{Addr: 0x1000, Length: 32})
	if err != nil {
		t.Fatalf("Read failed despite retry budget: %v", err)
	}
	if !bytes.Equal(got, stub.mem) {
		t.Error("retried read returned wrong bytes")
	}
	if len(stub.requests) != 2 {
		t.Errorf("wire requests = %d, want 2 (one failed, one retried)", len(stub.requests))
	}
}

func TestRead_ThreeTimeoutsSurfaceFatalReadError(t *testing.T) {
	timeout := &link.LinkError{Op: "exchange", Err: errors.New("i/o timeout")}
	stub := &fakeStub{base: 0x1000, mem: newImage(32)}
	stub.failures = []error{timeout, timeout, timeout}

	s := New(stub, Config{Attempts: 3}, nil, nil)
	_, err := s.Read(context.Background(), types.MemoryRegion{Addr: 0x1000, Length: 32})
	if err == nil {
		t.Fatal("Read succeeded after three consecutive timeouts")
	}

	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("error type = %T, want *ReadError", err)
	}
	if len(stub.requests) != 3 {
		t.Errorf("attempts = %d, want exactly 3", len(stub.requests))
	}
}

func TestRead_StubErrorNotRetried(t *testing.T) {
	stub := &fakeStub{base: 0x1000, mem: newImage(8)}
	s := New(stub, Config{Attempts: 3}, nil, nil)

	// Address outside the stub's image yields an Exx reply.
	_, err := s.Read(context.Background(), types.MemoryRegion{Addr: 0x9000, Length: 8})
	if err == nil {
		t.Fatal("Read of rejected address succeeded")
	}
	if len(stub.requests) != 1 {
		t.Errorf("stub rejection was retried %d times; deterministic errors should not retry", len(stub.requests)-1)
	}
}

func TestWrite_DisabledByDefault(t *testing.T) {
	stub := &fakeStub{base: 0x1000, mem: newImage(8)}
	s := New(stub, Config{}, nil, nil)

	err := s.Write(context.Background(), types.MemoryRegion{Addr: 0x1000, Length: 2}, []byte{0x32, 0x00})
	if !errors.Is(err, ErrWritesDisabled) {
		t.Fatalf("Write without capability = %v, want ErrWritesDisabled", err)
	}
	if stub.writes != 0 {
		t.Error("gated write still reached the wire")
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	stub := &fakeStub{base: 0x1000, mem: newImage(16)}
	s := New(stub, Config{AllowWrites: true}, nil, nil)

	region := types.MemoryRegion{Addr: 0x1004, Length: 2}
	if err := s.Write(context.Background(), region, []byte{0x32, 0x00}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := s.Read(context.Background(), region)
	if err != nil {
		t.Fatalf("Read-back failed: %v", err)
	}
	if !bytes.Equal(got, []byte{0x32, 0x00}) {
		t.Errorf("read-back = %x, want 3200", got)
	}
}

func TestRead_InvalidRegion(t *testing.T) {
	s := New(&fakeStub{}, Config{}, nil, nil)
	_, err := s.Read(context.Background(), types.MemoryRegion{Addr: 0x1000, Length: 0})
	if err == nil {
		t.Fatal("Read accepted a zero-length region")
	}
}
