package rsp

import (
	"bufio"
	"fmt"
	"io"
)

// maxPacketSize bounds a single inbound packet. A well-behaved stub
// never sends more than a few KiB per reply; anything larger means the
// stream has lost framing.
const maxPacketSize = 16 * 1024

// Reader scans framed packets and bare acknowledgement bytes off a
// stream. It owns no socket state; the transport link layers deadlines
// and reconnects around it.
type Reader struct {
	br *bufio.Reader
}

// NewReader creates a Reader over r. An existing *bufio.Reader is
// reused rather than double-buffered, so callers can interleave their
// own reads with packet scans.
func NewReader(r io.Reader) *Reader {
	if br, ok := r.(*bufio.Reader); ok {
		return &Reader{br: br}
	}
	return &Reader{br: bufio.NewReader(r)}
}

// ReadAck consumes the next acknowledgement byte. It returns true for
// an ACK, false for a NAK (a signal to retransmit, not an error), and
// a CodecCorrupt error for anything else.
func (r *Reader) ReadAck() (bool, error) {
	b, err := r.br.ReadByte()
	if err != nil {
		return false, err
	}
	switch b {
	case Ack:
		return true, nil
	case Nak:
		return false, nil
	default:
		return false, &CodecError{Kind: CodecCorrupt, Msg: fmt.Sprintf("expected ack or nak, got 0x%02x", b)}
	}
}

// ReadPacket consumes one framed packet from the stream, validates its
// checksum, and returns the unstuffed payload. Stray acknowledgement
// bytes before the start marker are skipped; some stubs re-ack under
// retransmission.
func (r *Reader) ReadPacket() ([]byte, error) {
	// Seek the start marker.
	for {
		b, err := r.br.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == PacketStart {
			break
		}
		if b == Ack || b == Nak {
			continue
		}
		return nil, &CodecError{Kind: CodecCorrupt, Msg: fmt.Sprintf("unexpected byte 0x%02x before packet start", b)}
	}

	raw := make([]byte, 0, 256)
	raw = append(raw, PacketStart)
	for {
		b, err := r.br.ReadByte()
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
		if b == ChecksumMark {
			break
		}
		if len(raw) > maxPacketSize {
			return nil, &CodecError{Kind: CodecCorrupt, Msg: fmt.Sprintf("packet exceeds %d bytes without checksum marker", maxPacketSize)}
		}
	}

	var digits [2]byte
	if _, err := io.ReadFull(r.br, digits[:]); err != nil {
		return nil, &CodecError{Kind: CodecTruncated, Msg: "stream ended inside checksum digits", Err: err}
	}
	raw = append(raw, digits[:]...)

	return Decode(raw)
}
