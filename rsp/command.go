package rsp

import (
	"encoding/hex"
	"fmt"

	"github.com/bizkut/eden-fft-agent/types"
)

// ReadMemory builds the payload of a memory-read command:
// m<addr>,<len>, both ASCII-hex per the protocol's textual convention.
func ReadMemory(addr types.Address, length int) []byte {
	return fmt.Appendf(nil, "m%x,%x", uint64(addr), length)
}

// WriteMemory builds the payload of a memory-write command:
// M<addr>,<len>:<data>, with the data hex-encoded.
func WriteMemory(addr types.Address, data []byte) []byte {
	return fmt.Appendf(nil, "M%x,%x:%s", uint64(addr), len(data), hex.EncodeToString(data))
}

// Continue builds the payload of a continue-execution command.
func Continue() []byte {
	return []byte{'c'}
}

// ReplyKind classifies a decoded reply payload.
type ReplyKind int

const (
	// ReplyOK is the bare "OK" reply to a write or control command.
	ReplyOK ReplyKind = iota
	// ReplyError is an "Exx" stub error reply.
	ReplyError
	// ReplyData is a hex-encoded data reply to a read command.
	ReplyData
)

// Reply is a parsed response payload.
type Reply struct {
	Kind ReplyKind
	// Data holds the decoded raw bytes for ReplyData.
	Data []byte
	// Code holds the stub error code for ReplyError.
	Code uint8
}

// StubError is a protocol-level error reported by the remote stub
// (e.g. an address the target rejects). It is not a transport fault.
type StubError struct {
	Code uint8
}

func (e *StubError) Error() string {
	return fmt.Sprintf("stub reported error E%02x", e.Code)
}

// ParseReply classifies a decoded response payload. "OK" acknowledges
// a write, "Exx" carries a stub error code, and anything else must be
// an even-length hex string of memory contents.
func ParseReply(payload []byte) (Reply, error) {
	if len(payload) == 2 && payload[0] == 'O' && payload[1] == 'K' {
		return Reply{Kind: ReplyOK}, nil
	}
	if len(payload) == 3 && payload[0] == 'E' && isHexDigit(payload[1]) && isHexDigit(payload[2]) {
		var code [1]byte
		if _, err := hex.Decode(code[:], payload[1:]); err != nil {
			return Reply{}, &CodecError{Kind: CodecCorrupt, Msg: "malformed stub error code", Err: err}
		}
		return Reply{Kind: ReplyError, Code: code[0]}, nil
	}

	data := make([]byte, hex.DecodedLen(len(payload)))
	if _, err := hex.Decode(data, payload); err != nil {
		return Reply{}, &CodecError{Kind: CodecCorrupt, Msg: "reply payload is not hex data", Err: err}
	}
	return Reply{Kind: ReplyData, Data: data}, nil
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
