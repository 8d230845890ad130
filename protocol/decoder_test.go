package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameDecoderByteAtATime(t *testing.T) {
	spec, err := Lookup("FILE_DIR_ENTRY")
	require.NoError(t, err)
	payload := []byte("slot_1.bin\x00")
	frame, err := DefaultCodec().EncodeReply(spec, payload)
	require.NoError(t, err)

	want, err := DecodeReply(FamilyFile, frame)
	require.NoError(t, err)

	d := DefaultCodec().NewFrameDecoder(FamilyFile)
	states := []State{d.State()}
	for i := range frame {
		n, err := d.Write(frame[i : i+1])
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		if s := d.State(); s != states[len(states)-1] {
			states = append(states, s)
		}
	}
	require.True(t, d.Done())
	assert.Equal(t, want, d.Reply())
	assert.Equal(t, []State{
		AwaitingHeader,
		AwaitingCommand,
		AwaitingLength,
		AwaitingPayload,
		AwaitingChecksum,
		Complete,
	}, states)
}

func TestFrameDecoderStopsAtFrameEnd(t *testing.T) {
	first := DefaultCodec().EncodeAck(StatusAck)
	second := DefaultCodec().EncodeAck(StatusNackInit)
	stream := append(append([]byte{}, first...), second...)

	d := DefaultCodec().NewFrameDecoder(FamilyBasic)
	n, err := d.Write(stream)
	require.NoError(t, err)
	require.True(t, d.Done())
	assert.Equal(t, len(first), n)
	assert.Equal(t, StatusAck, d.Reply().Status)

	// Further writes consume nothing until Reset
	n, err = d.Write(stream[n:])
	require.NoError(t, err)
	assert.Zero(t, n)

	d.Reset()
	assert.Equal(t, AwaitingHeader, d.State())
	n, err = d.Write(stream[len(first):])
	require.NoError(t, err)
	assert.Equal(t, len(second), n)
	assert.Equal(t, StatusNackInit, d.Reply().Status)
}

func TestFrameDecoderRejectionIsSticky(t *testing.T) {
	frame := DefaultCodec().EncodeAck(StatusAck)
	frame[len(frame)-1] ^= 0xFF

	d := DefaultCodec().NewFrameDecoder(FamilyBasic)
	_, err := d.Write(frame)
	assert.ErrorIs(t, err, ErrChecksum)
	assert.Equal(t, Rejected, d.State())
	assert.ErrorIs(t, d.Err(), ErrChecksum)

	n, err := d.Write(DefaultCodec().EncodeAck(StatusAck))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, ErrChecksum)

	d.Reset()
	assert.NoError(t, d.Err())
}

func TestFrameDecoderFixedZeroReply(t *testing.T) {
	spec, err := Lookup("USER_PLAY")
	require.NoError(t, err)
	frame, err := DefaultCodec().EncodeReply(spec, nil)
	require.NoError(t, err)
	assert.Len(t, frame, ReplyHeaderSize+1+2)

	reply, err := DecodeReply(FamilyBasic, frame)
	require.NoError(t, err)
	assert.Empty(t, reply.Payload)
	assert.Equal(t, "USER_PLAY", reply.Command.Name)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting payload", AwaitingPayload.String())
	assert.Equal(t, "state(42)", State(42).String())
}
