package protocol

import (
	"bytes"
	"fmt"
)

// State is a FrameDecoder's position within one exchange
type State uint8

const (
	AwaitingHeader State = iota
	AwaitingCommand
	AwaitingLength
	AwaitingPayload
	AwaitingChecksum
	Complete
	Rejected
)

var stateNames = [...]string{
	"awaiting header",
	"awaiting command",
	"awaiting length",
	"awaiting payload",
	"awaiting checksum",
	"complete",
	"rejected",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// FrameDecoder assembles one frame from bytes that may arrive in pieces.
// Garbage ahead of a header is discarded. Any validation failure moves
// the decoder to Rejected and the error sticks until Reset.
type FrameDecoder struct {
	codec  *Codec
	family Family

	state  State
	style  HeaderStyle
	window []byte // candidate header bytes
	frame  []byte // header onward

	cmdFamily    Family
	cmdEnd       int
	payloadStart int
	payloadLen   int

	spec     CommandSpec
	resolved bool

	seen  int
	reply Reply
	err   error
}

// NewFrameDecoder creates a decoder for a reply to a family request
func (c *Codec) NewFrameDecoder(family Family) *FrameDecoder {
	return &FrameDecoder{codec: c, family: family, cmdFamily: family}
}

// Reset prepares the decoder for the next frame
func (d *FrameDecoder) Reset() {
	*d = FrameDecoder{codec: d.codec, family: d.family, cmdFamily: d.family}
}

// State returns the current state
func (d *FrameDecoder) State() State {
	return d.state
}

// Done reports whether a complete frame has been decoded
func (d *FrameDecoder) Done() bool {
	return d.state == Complete
}

// Err returns the rejection reason, if any
func (d *FrameDecoder) Err() error {
	return d.err
}

// Reply returns the decoded frame; only meaningful once Done
func (d *FrameDecoder) Reply() Reply {
	return d.reply
}

// Write feeds bytes into the decoder. It stops consuming at the end of a
// frame and returns how many bytes of p were used.
func (d *FrameDecoder) Write(p []byte) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	for i, b := range p {
		if d.state == Complete {
			return i, nil
		}
		d.seen++
		if err := d.step(b); err != nil {
			d.state = Rejected
			d.err = err
			return i + 1, err
		}
	}
	return len(p), nil
}

func (d *FrameDecoder) step(b byte) error {
	switch d.state {
	case AwaitingHeader:
		d.window = append(d.window, b)
		for len(d.window) > 0 && !isHeaderPrefix(d.window) {
			d.window = d.window[1:]
		}
		switch {
		case bytes.Equal(d.window, requestHeader[:]):
			d.begin(StyleRequest)
		case bytes.Equal(d.window, replyHeader[:]):
			d.begin(StyleReply)
		}

	case AwaitingCommand:
		if len(d.frame) == d.headerSize() && d.style == StyleReply && b == AckOpcode {
			// A bare acknowledgement may answer a request of any family
			d.cmdFamily = FamilyBasic
		}
		d.frame = append(d.frame, b)
		if len(d.frame)-d.headerSize() < d.cmdFamily.commandSize() {
			return nil
		}
		d.cmdEnd = len(d.frame)
		if d.style == StyleRequest {
			// Request frames are self-delimiting; the command is
			// resolved only after the checksum has been verified.
			d.state = AwaitingLength
			return nil
		}
		if err := d.resolve(); err != nil {
			return err
		}
		if n, fixed := d.spec.Reply.Size(); fixed {
			d.expectPayload(int(n))
			return nil
		}
		d.state = AwaitingLength

	case AwaitingLength:
		d.frame = append(d.frame, b)
		field := d.frame[d.cmdEnd:]
		if len(field) == 1 && b&varintWide != 0 {
			return nil
		}
		n, _, err := NewBuffer(field).Varint(0)
		if err != nil {
			return err
		}
		d.expectPayload(int(n))

	case AwaitingPayload:
		d.frame = append(d.frame, b)
		if len(d.frame)-d.payloadStart == d.payloadLen {
			d.state = AwaitingChecksum
		}

	case AwaitingChecksum:
		d.frame = append(d.frame, b)
		body := d.payloadStart + d.payloadLen
		if len(d.frame)-body < d.codec.checksum.Size() {
			return nil
		}
		return d.finish(body)

	default:
		return fmt.Errorf("cdc2: decoder %s", d.state)
	}
	return nil
}

func (d *FrameDecoder) begin(style HeaderStyle) {
	d.style = style
	d.frame = append(d.frame, d.window...)
	d.window = nil
	d.state = AwaitingCommand
}

func (d *FrameDecoder) headerSize() int {
	if d.style == StyleRequest {
		return RequestHeaderSize
	}
	return ReplyHeaderSize
}

func (d *FrameDecoder) expectPayload(n int) {
	d.payloadStart = len(d.frame)
	d.payloadLen = n
	if n == 0 {
		d.state = AwaitingChecksum
	} else {
		d.state = AwaitingPayload
	}
}

// resolve maps the command bytes to a CommandSpec in the frame's family
func (d *FrameDecoder) resolve() error {
	cmd := d.frame[d.headerSize():d.cmdEnd]
	reg := RegistryFor(d.cmdFamily)
	if reg == nil {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, d.cmdFamily)
	}
	if prefix, ok := d.cmdFamily.Prefix(); ok {
		if cmd[0] != prefix {
			return fmt.Errorf("%w: %s expects prefix 0x%02X, got 0x%02X", ErrUnknownCommand, d.cmdFamily, prefix, cmd[0])
		}
		cmd = cmd[1:]
	}
	spec, err := reg.ByOpcode(cmd[0])
	if err != nil {
		return err
	}
	d.spec = spec
	d.resolved = true
	return nil
}

func (d *FrameDecoder) finish(body int) error {
	want := d.codec.checksum.Sum(d.frame[:body])
	got := readChecksum(d.frame[body:])
	if got != want {
		return fmt.Errorf("%w: %s got 0x%04X want 0x%04X", ErrChecksum, d.codec.checksum.Name(), got, want)
	}
	if !d.resolved {
		if err := d.resolve(); err != nil {
			return err
		}
	}

	r := Reply{
		Style:    d.style,
		Command:  d.spec,
		Payload:  d.frame[d.payloadStart:body],
		Kind:     KindPayload,
		Consumed: d.seen,
	}
	if d.spec.Family == FamilyBasic && d.spec.Opcode == AckOpcode {
		if len(r.Payload) < 1 {
			return fmt.Errorf("%w: acknowledgement without status", ErrTruncated)
		}
		r.Kind = KindAck
		r.Status = AckStatus(r.Payload[0])
	}
	d.reply = r
	d.state = Complete
	return nil
}

func isHeaderPrefix(w []byte) bool {
	return bytes.HasPrefix(requestHeader[:], w) || bytes.HasPrefix(replyHeader[:], w)
}
