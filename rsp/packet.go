// Package rsp implements the GDB Remote Serial Protocol packet layer:
// framing, checksums, byte-stuffing, and the memory command grammar.
//
// A packet on the wire is "$" + payload + "#" + two lowercase hex
// digits of the payload checksum (sum of transmitted payload bytes mod
// 256). Reserved bytes inside a payload are escaped as "}" followed by
// the byte XOR 0x20. Acknowledgement ("+") and negative
// acknowledgement ("-") are single bytes outside the framed structure.
//
// Encode and Decode are pure functions over byte slices; stream
// handling lives in Reader.
package rsp

import (
	"encoding/hex"
	"fmt"
)

// Protocol byte values.
const (
	// PacketStart opens a framed packet.
	PacketStart = '$'
	// ChecksumMark separates the payload from its checksum digits.
	ChecksumMark = '#'
	// Escape prefixes a stuffed byte; the following byte is XOR 0x20.
	Escape = '}'
	// RunLength is reserved by the protocol's run-length encoding and
	// must be escaped inside payloads.
	RunLength = '*'
	// Ack acknowledges a well-formed packet.
	Ack = '+'
	// Nak requests retransmission of the last packet unchanged.
	Nak = '-'

	// escapeMask is XORed with a byte when stuffing or unstuffing.
	escapeMask = 0x20
)

// CodecErrorKind classifies packet codec errors.
type CodecErrorKind int

const (
	// CodecCorrupt indicates a checksum mismatch or malformed framing.
	// The caller should NAK and await retransmission.
	CodecCorrupt CodecErrorKind = iota
	// CodecTruncated indicates the input ended before the frame did.
	CodecTruncated
)

// CodecError represents a packet encode/decode failure.
type CodecError struct {
	Kind CodecErrorKind
	Msg  string
	Err  error
}

func (e *CodecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// needsEscape reports whether b must be stuffed inside a payload.
func needsEscape(b byte) bool {
	return b == PacketStart || b == ChecksumMark || b == Escape || b == RunLength
}

// Checksum computes the RSP checksum: the sum of the transmitted
// (post-escaping) payload bytes modulo 256.
func Checksum(transmitted []byte) byte {
	var sum byte
	for _, b := range transmitted {
		sum += b
	}
	return sum
}

// escape returns the byte-stuffed form of payload. Payloads here carry
// raw memory contents, so every reserved value must be stuffed exactly.
func escape(payload []byte) []byte {
	out := make([]byte, 0, len(payload))
	for _, b := range payload {
		if needsEscape(b) {
			out = append(out, Escape, b^escapeMask)
			continue
		}
		out = append(out, b)
	}
	return out
}

// unescape reverses byte-stuffing. A dangling escape at the end of the
// input is corrupt framing.
func unescape(transmitted []byte) ([]byte, error) {
	out := make([]byte, 0, len(transmitted))
	for i := 0; i < len(transmitted); i++ {
		b := transmitted[i]
		if b != Escape {
			out = append(out, b)
			continue
		}
		i++
		if i >= len(transmitted) {
			return nil, &CodecError{Kind: CodecCorrupt, Msg: "dangling escape at end of payload"}
		}
		out = append(out, transmitted[i]^escapeMask)
	}
	return out, nil
}

// Encode wraps a command payload in the packet framing: start marker,
// stuffed payload, checksum trailer. Encode then Decode recovers the
// payload bit-for-bit.
func Encode(payload []byte) []byte {
	transmitted := escape(payload)
	out := make([]byte, 0, len(transmitted)+4)
	out = append(out, PacketStart)
	out = append(out, transmitted...)
	out = append(out, ChecksumMark)
	out = append(out, []byte(fmt.Sprintf("%02x", Checksum(transmitted)))...)
	return out
}

// Decode validates the framing and checksum of a complete raw packet
// and returns the unstuffed payload. Checksum mismatch and malformed
// framing both yield a CodecCorrupt error and never a partial payload.
func Decode(raw []byte) ([]byte, error) {
	if len(raw) < 4 {
		return nil, &CodecError{Kind: CodecTruncated, Msg: fmt.Sprintf("packet too short: %d bytes", len(raw))}
	}
	if raw[0] != PacketStart {
		return nil, &CodecError{Kind: CodecCorrupt, Msg: fmt.Sprintf("packet does not start with %q", PacketStart)}
	}
	mark := len(raw) - 3
	if raw[mark] != ChecksumMark {
		return nil, &CodecError{Kind: CodecCorrupt, Msg: "checksum marker not found where expected"}
	}
	transmitted := raw[1:mark]

	var want [1]byte
	if _, err := hex.Decode(want[:], raw[mark+1:]); err != nil {
		return nil, &CodecError{Kind: CodecCorrupt, Msg: "checksum digits are not hex", Err: err}
	}
	if got := Checksum(transmitted); got != want[0] {
		return nil, &CodecError{
			Kind: CodecCorrupt,
			Msg:  fmt.Sprintf("checksum mismatch: computed 0x%02x, packet says 0x%02x", got, want[0]),
		}
	}

	return unescape(transmitted)
}
