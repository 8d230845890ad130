package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allCommands() []CommandSpec {
	var out []CommandSpec
	for _, f := range []Family{FamilyBasic, FamilyFile, FamilyController, FamilyFactory} {
		out = append(out, RegistryFor(f).Commands()...)
	}
	return out
}

func payloadFor(spec CommandSpec) []byte {
	n, fixed := spec.Reply.Size()
	size := int(n)
	if !fixed {
		size = 300
	}
	p := make([]byte, size)
	for i := range p {
		p[i] = byte(i*7 + 1)
	}
	return p
}

func TestRequestRoundTrip(t *testing.T) {
	for _, codec := range []*Codec{NewCodec(), NewCodec(WithChecksum(ChecksumSum8()))} {
		for _, spec := range allCommands() {
			payload := payloadFor(spec)
			frame, err := codec.EncodeRequest(spec, payload)
			require.NoError(t, err, spec.Name)

			reply, err := codec.Decode(spec.Family, frame)
			require.NoError(t, err, spec.Name)
			assert.Equal(t, spec, reply.Command, spec.Name)
			assert.Equal(t, payload, reply.Payload, spec.Name)
			assert.Equal(t, StyleRequest, reply.Style)
			assert.Equal(t, len(frame), reply.Consumed)
		}
	}
}

func TestReplyRoundTrip(t *testing.T) {
	for _, spec := range allCommands() {
		payload := payloadFor(spec)
		frame, err := DefaultCodec().EncodeReply(spec, payload)
		require.NoError(t, err, spec.Name)

		reply, err := DecodeReply(spec.Family, frame)
		require.NoError(t, err, spec.Name)
		assert.Equal(t, spec, reply.Command, spec.Name)
		assert.Equal(t, payload, reply.Payload, spec.Name)
		assert.Equal(t, StyleReply, reply.Style)
	}
}

func TestEncodeRequestLayout(t *testing.T) {
	frame, err := EncodeRequest("FILE_GET_INFO", []byte{0x01, 0x02})
	require.NoError(t, err)

	want := []byte{0xC9, 0x36, 0xB8, 0x47, 0x56, 0x19, 0x02, 0x01, 0x02}
	require.Len(t, frame, len(want)+2)
	assert.Equal(t, want, frame[:len(want)])

	crc := CRC16(want)
	assert.Equal(t, []byte{byte(crc >> 8), byte(crc)}, frame[len(want):])
}

func TestEncodeRequestLongPayloadUsesWideLength(t *testing.T) {
	payload := make([]byte, 300)
	frame, err := EncodeRequest("USER_CDC", payload)
	require.NoError(t, err)
	// basic command: header(4) opcode(1) then the 2-byte length 0x812C
	assert.Equal(t, []byte{0x81, 0x2C}, frame[5:7])
}

func TestEncodeRequestErrors(t *testing.T) {
	_, err := EncodeRequest("NOPE", nil)
	assert.ErrorIs(t, err, ErrUnknownCommand)

	spec, err := Lookup("FILE_WRITE")
	require.NoError(t, err)
	_, err = DefaultCodec().EncodeRequest(spec, make([]byte, MaxPayload+1))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestEncodeReplyFixedLengthMismatch(t *testing.T) {
	spec, err := Lookup("SYSTEM_VERSION")
	require.NoError(t, err)
	_, err = DefaultCodec().EncodeReply(spec, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrPayloadLength)
}

func TestChecksumSensitivity(t *testing.T) {
	spec, err := Lookup("FILE_INIT")
	require.NoError(t, err)
	frame, err := DefaultCodec().EncodeRequest(spec, payloadFor(spec))
	require.NoError(t, err)

	// Skip the header (framing) and the length field (shifts the frame end)
	lengthAt := RequestHeaderSize + 2
	for i := RequestHeaderSize; i < len(frame); i++ {
		if i == lengthAt {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			corrupt := bytes.Clone(frame)
			corrupt[i] ^= 1 << bit
			_, err := DecodeReply(FamilyFile, corrupt)
			assert.ErrorIs(t, err, ErrChecksum, "byte %d bit %d", i, bit)
		}
	}
}

func TestDecodeFramingError(t *testing.T) {
	_, err := DecodeReply(FamilyBasic, nil)
	assert.ErrorIs(t, err, ErrFraming)

	_, err = DecodeReply(FamilyBasic, []byte{0x01, 0x02, 0x03, 0xAA})
	assert.ErrorIs(t, err, ErrFraming)
}

func TestDecodeTruncated(t *testing.T) {
	frame, err := EncodeRequest("FILE_READ", []byte{1, 2, 3, 4})
	require.NoError(t, err)

	for n := RequestHeaderSize; n < len(frame); n++ {
		_, err := DecodeReply(FamilyFile, frame[:n])
		assert.ErrorIs(t, err, ErrTruncated, "cut at %d", n)
	}
}

func TestDecodeUnknownOpcode(t *testing.T) {
	bogus := CommandSpec{Name: "BOGUS", Family: FamilyBasic, Opcode: 0x01, Reply: Fixed(0)}

	frame, err := DefaultCodec().EncodeReply(bogus, nil)
	require.NoError(t, err)
	_, err = DecodeReply(FamilyBasic, frame)
	assert.ErrorIs(t, err, ErrUnknownCommand)

	frame, err = DefaultCodec().EncodeRequest(bogus, []byte{9})
	require.NoError(t, err)
	_, err = DecodeReply(FamilyBasic, frame)
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestDecodeWrongFamilyPrefix(t *testing.T) {
	spec, err := Lookup("CON_RADIO_MODE")
	require.NoError(t, err)
	frame, err := DefaultCodec().EncodeReply(spec, []byte{byte(StatusAck)})
	require.NoError(t, err)

	_, err = DecodeReply(FamilyFile, frame)
	assert.ErrorIs(t, err, ErrUnknownCommand)

	reply, err := DecodeReply(FamilyController, frame)
	require.NoError(t, err)
	assert.Equal(t, "CON_RADIO_MODE", reply.Command.Name)
}

func TestDecodeAck(t *testing.T) {
	sum8 := NewCodec(WithChecksum(ChecksumSum8()))

	reply, err := sum8.Decode(FamilyBasic, []byte{0xAA, 0x55, 0x33, 0x76, 0xA8})
	require.NoError(t, err)
	assert.Equal(t, KindAck, reply.Kind)
	assert.Equal(t, StatusAck, reply.Status)
	assert.NoError(t, reply.Err())

	reply, err = sum8.Decode(FamilyBasic, []byte{0xAA, 0x55, 0x33, 0xD2, 0x04})
	require.NoError(t, err)
	assert.Equal(t, KindAck, reply.Kind)
	assert.Equal(t, StatusNackCRC, reply.Status)

	nackErr := reply.Err()
	require.Error(t, nackErr)
	assert.ErrorIs(t, nackErr, ErrNack)
	var nack *NackError
	require.True(t, errors.As(nackErr, &nack))
	assert.Equal(t, StatusNackCRC, nack.Status)
	assert.Equal(t, "ACK", nack.Command.Name)
}

func TestDecodeAckAnswersAnyFamily(t *testing.T) {
	frame := DefaultCodec().EncodeAck(StatusNackFileSysFull)

	reply, err := DecodeReply(FamilyFile, frame)
	require.NoError(t, err)
	assert.Equal(t, KindAck, reply.Kind)
	assert.Equal(t, StatusNackFileSysFull, reply.Status)
	assert.ErrorIs(t, reply.Err(), ErrNack)
}

func TestDecodeLengthPrefixedReply(t *testing.T) {
	spec, err := Lookup("FILE_READ")
	require.NoError(t, err)
	payload := bytes.Repeat([]byte{0x5A}, 200)

	frame, err := DefaultCodec().EncodeReply(spec, payload)
	require.NoError(t, err)
	// AA 55 | 56 14 | 80 C8 | payload | crc
	assert.Equal(t, []byte{0x56, 0x14, 0x80, 0xC8}, frame[2:6])

	reply, err := DecodeReply(FamilyFile, frame)
	require.NoError(t, err)
	assert.Len(t, reply.Payload, 200)
	assert.Equal(t, KindPayload, reply.Kind)
	assert.NoError(t, reply.Err())
}

func TestDecodeSkipsGarbageAndIgnoresTrailer(t *testing.T) {
	spec, err := Lookup("SYSTEM_VERSION")
	require.NoError(t, err)
	frame, err := DefaultCodec().EncodeReply(spec, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)

	input := append([]byte{0x00, 0xAA, 0xC9, 0x36}, frame...)
	input = append(input, 0xEE, 0xEE)

	reply, err := DecodeReply(FamilyBasic, input)
	require.NoError(t, err)
	assert.Equal(t, "SYSTEM_VERSION", reply.Command.Name)
	assert.Equal(t, 4+len(frame), reply.Consumed)
}

func TestHeadersCannotBeModified(t *testing.T) {
	req := RequestHeader()
	req[0] = 0
	rep := ReplyHeader()
	rep[0] = 0

	frame, err := EncodeRequest("QUERY1", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xC9, 0x36, 0xB8, 0x47}, frame[:RequestHeaderSize])

	ack := DefaultCodec().EncodeAck(StatusAck)
	assert.Equal(t, []byte{0xAA, 0x55}, ack[:ReplyHeaderSize])

	reply, err := DecodeReply(FamilyBasic, ack)
	require.NoError(t, err)
	assert.True(t, reply.Status.IsAck())
	assert.Equal(t, [4]byte{0xC9, 0x36, 0xB8, 0x47}, RequestHeader())
}
