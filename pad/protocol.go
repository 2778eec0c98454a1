// Package pad injects controller input into the emulator over the
// cemuhook DSU UDP protocol (version 1001). The emulator polls this
// server as if it were a physical pad; button presses are made by
// holding bits in the reported state for a short duration.
package pad

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

const (
	serverMagic = 0x53555344 // "DSUS"
	clientMagic = 0x43555344 // "DSUC"

	protocolVersion = 1001

	msgVersion  = 0x00100000
	msgPortInfo = 0x00100001
	msgPadData  = 0x00100002

	headerSize   = 20
	portInfoSize = 12
	// padPayloadSize covers PortInfo plus the pad state block.
	padPayloadSize = 80
)

// DSU digital button bits.
const (
	ButtonShare    uint16 = 0x0001
	ButtonL3       uint16 = 0x0002
	ButtonR3       uint16 = 0x0004
	ButtonOptions  uint16 = 0x0008
	ButtonUp       uint16 = 0x0010
	ButtonRight    uint16 = 0x0020
	ButtonDown     uint16 = 0x0040
	ButtonLeft     uint16 = 0x0080
	ButtonL2       uint16 = 0x0100
	ButtonR2       uint16 = 0x0200
	ButtonL1       uint16 = 0x0400
	ButtonR1       uint16 = 0x0800
	ButtonTriangle uint16 = 0x1000
	ButtonCircle   uint16 = 0x2000
	ButtonCross    uint16 = 0x4000
	ButtonSquare   uint16 = 0x8000
)

// switchButtons maps Switch button names onto DS4 bits the way the
// emulator expects them.
var switchButtons = map[string]uint16{
	"a":      ButtonCircle,
	"b":      ButtonCross,
	"x":      ButtonTriangle,
	"y":      ButtonSquare,
	"l":      ButtonL1,
	"r":      ButtonR1,
	"zl":     ButtonL2,
	"zr":     ButtonR2,
	"plus":   ButtonOptions,
	"minus":  ButtonShare,
	"start":  ButtonOptions,
	"select": ButtonShare,
	"up":     ButtonUp,
	"down":   ButtonDown,
	"left":   ButtonLeft,
	"right":  ButtonRight,
}

// ButtonBit resolves a button name to its DSU bit.
func ButtonBit(name string) (uint16, error) {
	bit, ok := switchButtons[name]
	if !ok {
		return 0, fmt.Errorf("unknown button %q", name)
	}
	return bit, nil
}

// padState is the reported controller state.
type padState struct {
	buttons uint16
	// Stick axes, 0-255 with 128 centered.
	leftX, leftY, rightX, rightY uint8
	counter                      uint32
}

func neutralState() padState {
	return padState{leftX: 128, leftY: 128, rightX: 128, rightY: 128}
}

// buildHeader writes the 20-byte DSU header with a zeroed CRC field.
// Per the protocol, the length field counts the payload plus the
// 4-byte message type.
func buildHeader(buf []byte, serverID, msgType uint32, payloadLen int) {
	binary.LittleEndian.PutUint32(buf[0:], serverMagic)
	binary.LittleEndian.PutUint16(buf[4:], protocolVersion)
	binary.LittleEndian.PutUint16(buf[6:], uint16(payloadLen+4))
	binary.LittleEndian.PutUint32(buf[8:], 0) // CRC placeholder
	binary.LittleEndian.PutUint32(buf[12:], serverID)
	binary.LittleEndian.PutUint32(buf[16:], msgType)
}

// sealMessage stamps the CRC32, computed over the whole message with
// the CRC field zeroed.
func sealMessage(msg []byte) {
	binary.LittleEndian.PutUint32(msg[8:], 0)
	crc := crc32.ChecksumIEEE(msg)
	binary.LittleEndian.PutUint32(msg[8:], crc)
}

// verifyMessage checks a sealed message's CRC without mutating it.
func verifyMessage(msg []byte) bool {
	if len(msg) < headerSize {
		return false
	}
	want := binary.LittleEndian.Uint32(msg[8:])
	scratch := make([]byte, len(msg))
	copy(scratch, msg)
	binary.LittleEndian.PutUint32(scratch[8:], 0)
	return crc32.ChecksumIEEE(scratch) == want
}

// buildPortInfo writes the 12-byte slot block: one generic, connected,
// USB-attached pad with a full battery.
func buildPortInfo(buf []byte) {
	buf[0] = 0 // pad slot
	buf[1] = 2 // state: connected
	buf[2] = 3 // model: generic
	buf[3] = 1 // connection: USB
	// bytes 4-9: MAC, zeroed
	buf[10] = 5 // battery: full
	buf[11] = 1 // active
}

// buildVersionResponse renders the handshake version reply.
func buildVersionResponse(serverID uint32) []byte {
	msg := make([]byte, headerSize+2)
	buildHeader(msg, serverID, msgVersion, 2)
	binary.LittleEndian.PutUint16(msg[headerSize:], protocolVersion)
	sealMessage(msg)
	return msg
}

// buildPortInfoResponse renders a standalone slot report.
func buildPortInfoResponse(serverID uint32) []byte {
	msg := make([]byte, headerSize+portInfoSize)
	buildHeader(msg, serverID, msgPortInfo, portInfoSize)
	buildPortInfo(msg[headerSize:])
	sealMessage(msg)
	return msg
}

// buildPadData renders the 100-byte controller report: header,
// PortInfo, then packet counter, digital buttons, sticks, and zeroed
// analog/touch/motion blocks.
func buildPadData(serverID uint32, st padState, motionTimestamp uint64) []byte {
	msg := make([]byte, headerSize+padPayloadSize)
	buildHeader(msg, serverID, msgPadData, padPayloadSize)
	buildPortInfo(msg[headerSize:])

	p := msg[headerSize+portInfoSize:]
	binary.LittleEndian.PutUint32(p[0:], st.counter)
	binary.LittleEndian.PutUint16(p[4:], st.buttons)
	p[6] = 0 // home
	p[7] = 0 // touch hard press
	p[8] = st.leftX
	p[9] = st.leftY
	p[10] = st.rightX
	p[11] = st.rightY
	// p[12:24] analog buttons, p[24:36] touch pads: zeroed
	binary.LittleEndian.PutUint64(p[36:], motionTimestamp)
	// p[44:56] accelerometer, p[56:68] gyroscope: zeroed floats

	sealMessage(msg)
	return msg
}

// parseRequest validates a client datagram and returns its message
// type. Anything that is not a well-formed DSUC message is ignored.
func parseRequest(data []byte) (uint32, bool) {
	if len(data) < headerSize {
		return 0, false
	}
	if binary.LittleEndian.Uint32(data[0:]) != clientMagic {
		return 0, false
	}
	return binary.LittleEndian.Uint32(data[16:]), true
}
