// Package protocol implements the VEX CDC2 command/reply protocol
package protocol

// Version represents the v5link protocol library version
const Version = "0.1.0"

// Frame header bytes. Requests and replies use asymmetric framing.
var (
	requestHeader = [4]byte{0xC9, 0x36, 0xB8, 0x47}
	replyHeader   = [2]byte{0xAA, 0x55}
)

// RequestHeader returns a copy of the host-to-device frame header
func RequestHeader() [4]byte {
	return requestHeader
}

// ReplyHeader returns a copy of the device-to-host frame header
func ReplyHeader() [2]byte {
	return replyHeader
}

// Protocol constants
const (
	RequestHeaderSize = len(requestHeader)
	ReplyHeaderSize   = len(replyHeader)

	// Extended command prefixes (themselves Basic opcodes)
	PrefixUserCDC = 0x56
	PrefixConCDC  = 0x58

	// AckOpcode is the Basic opcode of a bare acknowledgement frame
	AckOpcode = 0x33

	// MaxPayload is the largest payload a 2-byte varint length can carry
	MaxPayload = 0x7FFF

	// unboundedReply is the on-wire table sentinel for LengthPrefixed
	unboundedReply = 0xFFFF
)

// HeaderStyle tells which of the two framings a decoded frame used
type HeaderStyle uint8

const (
	StyleRequest HeaderStyle = iota
	StyleReply
)

func (s HeaderStyle) String() string {
	if s == StyleRequest {
		return "request"
	}
	return "reply"
}
