package rsp

import (
	"bytes"
	"errors"
	"testing"

	"github.com/bizkut/eden-fft-agent/types"
)

func TestReadMemory_Format(t *testing.T) {
	got := ReadMemory(types.Address(0x01047480), 2)
	want := []byte("m1047480,2")
	if !bytes.Equal(got, want) {
		t.Errorf("ReadMemory = %q, want %q", got, want)
	}
}

func TestWriteMemory_Format(t *testing.T) {
	got := WriteMemory(types.Address(0x01047480), []byte{0x32, 0x00})
	want := []byte("M1047480,2:3200")
	if !bytes.Equal(got, want) {
		t.Errorf("WriteMemory = %q, want %q", got, want)
	}
}

func TestParseReply_OK(t *testing.T) {
	reply, err := ParseReply([]byte("OK"))
	if err != nil {
		t.Fatalf("ParseReply(OK) failed: %v", err)
	}
	if reply.Kind != ReplyOK {
		t.Errorf("Kind = %v, want ReplyOK", reply.Kind)
	}
}

func TestParseReply_StubError(t *testing.T) {
	reply, err := ParseReply([]byte("E0e"))
	if err != nil {
		t.Fatalf("ParseReply(E0e) failed: %v", err)
	}
	if reply.Kind != ReplyError {
		t.Fatalf("Kind = %v, want ReplyError", reply.Kind)
	}
	if reply.Code != 0x0e {
		t.Errorf("Code = 0x%02x, want 0x0e", reply.Code)
	}
}

func TestParseReply_HexData(t *testing.T) {
	reply, err := ParseReply([]byte("3200ff01"))
	if err != nil {
		t.Fatalf("ParseReply failed: %v", err)
	}
	if reply.Kind != ReplyData {
		t.Fatalf("Kind = %v, want ReplyData", reply.Kind)
	}
	want := []byte{0x32, 0x00, 0xff, 0x01}
	if !bytes.Equal(reply.Data, want) {
		t.Errorf("Data = %x, want %x", reply.Data, want)
	}
}

func TestParseReply_MalformedHex(t *testing.T) {
	for _, payload := range []string{"3g", "320"} {
		_, err := ParseReply([]byte(payload))
		if err == nil {
			t.Errorf("ParseReply(%q) accepted malformed hex", payload)
			continue
		}
		var codecErr *CodecError
		if !errors.As(err, &codecErr) {
			t.Errorf("ParseReply(%q) error type = %T, want *CodecError", payload, err)
		}
	}
}

func TestReader_PacketAfterAck(t *testing.T) {
	// Typical stub reply stream: "+" then the framed data packet.
	var stream bytes.Buffer
	stream.WriteByte(Ack)
	stream.Write(Encode([]byte("3200")))

	r := NewReader(&stream)
	ok, err := r.ReadAck()
	if err != nil {
		t.Fatalf("ReadAck failed: %v", err)
	}
	if !ok {
		t.Fatal("ReadAck returned NAK for an ACK byte")
	}

	payload, err := r.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket failed: %v", err)
	}
	if string(payload) != "3200" {
		t.Errorf("payload = %q, want %q", payload, "3200")
	}
}

func TestReader_Nak(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{Nak}))
	ok, err := r.ReadAck()
	if err != nil {
		t.Fatalf("ReadAck failed on NAK: %v", err)
	}
	if ok {
		t.Error("ReadAck returned ACK for a NAK byte")
	}
}

func TestReader_GarbageBeforePacket(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("x$OK#9a")))
	if _, err := r.ReadPacket(); err == nil {
		t.Error("ReadPacket accepted garbage before the start marker")
	}
}
