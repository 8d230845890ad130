package protocol

import "fmt"

// ReplyKind classifies a decoded frame
type ReplyKind uint8

const (
	// KindPayload is a typed payload of the length the command dictates
	KindPayload ReplyKind = iota
	// KindAck is an acknowledgement carrying an AckStatus
	KindAck
)

func (k ReplyKind) String() string {
	if k == KindAck {
		return "ack"
	}
	return "payload"
}

// Reply is one decoded frame. Payload aliases the decoder's frame buffer
// and must not be modified.
type Reply struct {
	Style    HeaderStyle
	Command  CommandSpec
	Payload  []byte
	Kind     ReplyKind
	Status   AckStatus
	Consumed int // input bytes up to and including the checksum
}

// Err returns a *NackError when an acknowledgement reports failure
func (r Reply) Err() error {
	if r.Kind == KindAck && !r.Status.IsAck() {
		return &NackError{Command: r.Command, Status: r.Status}
	}
	return nil
}

// Buffer returns a reader over the payload
func (r Reply) Buffer() Buffer {
	return NewBuffer(r.Payload)
}

// Codec builds and parses CDC2 frames. A Codec is immutable and safe for
// concurrent use.
type Codec struct {
	checksum Checksum
}

// Option configures a Codec
type Option func(*Codec)

// WithChecksum selects the frame trailer algorithm
func WithChecksum(c Checksum) Option {
	return func(codec *Codec) {
		if c != nil {
			codec.checksum = c
		}
	}
}

// NewCodec creates a codec; CRC-16 is the default checksum
func NewCodec(opts ...Option) *Codec {
	c := &Codec{checksum: crc16Checksum{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var defaultCodec = NewCodec()

// DefaultCodec returns the shared CRC-16 codec
func DefaultCodec() *Codec {
	return defaultCodec
}

// Checksum returns the codec's trailer algorithm
func (c *Codec) Checksum() Checksum {
	return c.checksum
}

// EncodeRequest builds a host-to-device frame:
// header | [prefix] | opcode | varint length | payload | checksum
func (c *Codec) EncodeRequest(spec CommandSpec, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayload)
	}

	out := NewScratchOutputSize(RequestHeaderSize + 4 + len(payload) + c.checksum.Size())
	out.Output(requestHeader[:])
	encodeCommand(out, spec)
	if err := EncodeVarint(out, uint16(len(payload))); err != nil {
		return nil, err
	}
	out.Output(payload)
	c.appendChecksum(out)
	return out.Result(), nil
}

// EncodeReply builds a device-to-host frame. Fixed-length commands carry
// no length field and must be given exactly their declared payload size.
func (c *Codec) EncodeReply(spec CommandSpec, payload []byte) ([]byte, error) {
	out := NewScratchOutputSize(ReplyHeaderSize + 4 + len(payload) + c.checksum.Size())
	out.Output(replyHeader[:])
	encodeCommand(out, spec)

	if n, fixed := spec.Reply.Size(); fixed {
		if len(payload) != int(n) {
			return nil, fmt.Errorf("%w: %s expects %d bytes, got %d", ErrPayloadLength, spec.Name, n, len(payload))
		}
	} else {
		if len(payload) > MaxPayload {
			return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayload)
		}
		if err := EncodeVarint(out, uint16(len(payload))); err != nil {
			return nil, err
		}
	}
	out.Output(payload)
	c.appendChecksum(out)
	return out.Result(), nil
}

// EncodeAck builds a bare acknowledgement frame carrying status
func (c *Codec) EncodeAck(status AckStatus) []byte {
	ack, _ := basicCommands.ByOpcode(AckOpcode)
	frame, _ := c.EncodeReply(ack, []byte{uint8(status)})
	return frame
}

// Decode parses one frame from data. family is the opcode space of the
// request this frame answers. Bytes before the first header are skipped
// and bytes after the frame are ignored; Reply.Consumed tells where the
// frame ended.
func (c *Codec) Decode(family Family, data []byte) (Reply, error) {
	d := c.NewFrameDecoder(family)
	if _, err := d.Write(data); err != nil {
		return Reply{}, err
	}
	if !d.Done() {
		if d.State() == AwaitingHeader {
			return Reply{}, fmt.Errorf("%w in %d bytes", ErrFraming, len(data))
		}
		return Reply{}, fmt.Errorf("%w: %d bytes end while %s", ErrTruncated, len(data), d.State())
	}
	return d.Reply(), nil
}

func (c *Codec) appendChecksum(out *ScratchOutput) {
	putChecksum(out, c.checksum.Sum(out.Result()), c.checksum.Size())
}

func encodeCommand(out OutputBuffer, spec CommandSpec) {
	if prefix, ok := spec.Family.Prefix(); ok {
		out.Output([]byte{prefix})
	}
	out.Output([]byte{spec.Opcode})
}

// EncodeRequest looks up name in every registry and frames payload with
// the default codec
func EncodeRequest(name string, payload []byte) ([]byte, error) {
	spec, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return defaultCodec.EncodeRequest(spec, payload)
}

// DecodeReply parses one frame with the default codec
func DecodeReply(family Family, data []byte) (Reply, error) {
	return defaultCodec.Decode(family, data)
}
