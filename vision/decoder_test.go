package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"v5link/protocol"
)

// unit square tag, corners on the wire as (0,1) (1,1) (1,0) (0,0)
var unitSquareTag = []byte{
	0xC5,
	0x00, 0x01,
	0x01, 0x01,
	0x01, 0x00,
	0x00, 0x00,
	0x81, 0x6B, // angle 363 -> 36.3
}

// AI object id 1, origin (16,32), size 256x48, score 200
var bluePinRecord = []byte{0x81, 0x10, 0x20, 0x81, 0x00, 0x30, 0xC8}

func TestDecodeAprilTagGeometry(t *testing.T) {
	var d Decoder
	o, next, err := d.DecodeOne(unitSquareTag, 0)
	require.NoError(t, err)

	assert.Equal(t, len(unitSquareTag), next)
	assert.Equal(t, len(unitSquareTag), o.ByteLength)
	assert.Equal(t, TypeAprilTag, o.Type)
	assert.Equal(t, uint8(5), o.ID)
	assert.Equal(t, "AprilTag(5)", o.Name)
	require.NotNil(t, o.Tag)

	assert.Equal(t, [4]Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}}, o.Tag.Quad)
	assert.InDelta(t, 36.3, o.Tag.Angle, 1e-9)
	assert.InDelta(t, 0.5, o.CenterX, 1e-9)
	assert.InDelta(t, 0.5, o.CenterY, 1e-9)

	for i, p := range o.Tag.Quad {
		q := o.Tag.Quad9[i]
		assert.InDelta(t, 0.5+(p.X-0.5)*1.8, q.X, 1e-9)
		assert.InDelta(t, 0.5+(p.Y-0.5)*1.8, q.Y, 1e-9)
	}
	assert.InDelta(t, -0.4, o.Tag.Quad9[0].X, 1e-9)
	assert.InDelta(t, 1.4, o.Tag.Quad9[2].Y, 1e-9)

	assert.Equal(t, 0, o.OriginX)
	assert.Equal(t, 0, o.OriginY)
	assert.Equal(t, 1, o.Width)
	assert.Equal(t, 1, o.Height)
	assert.Zero(t, o.Score)
}

func TestDecodeAIObject(t *testing.T) {
	d := Decoder{Vocabulary: GameElements}
	o, next, err := d.DecodeOne(bluePinRecord, 0)
	require.NoError(t, err)

	assert.Equal(t, 7, next)
	assert.Equal(t, TypeAIClassified, o.Type)
	assert.Equal(t, uint8(1), o.ID)
	assert.Equal(t, "Blue Pin", o.Name)
	assert.Nil(t, o.Tag)
	assert.Equal(t, 16, o.OriginX)
	assert.Equal(t, 32, o.OriginY)
	assert.Equal(t, 256, o.Width)
	assert.Equal(t, 48, o.Height)
	assert.Equal(t, uint8(200), o.Score)
	assert.InDelta(t, 144.0, o.CenterX, 1e-9)
	assert.InDelta(t, 56.0, o.CenterY, 1e-9)
}

func TestDecoderNames(t *testing.T) {
	d := Decoder{
		Vocabulary: ClassroomElements,
		ColorNames: map[uint8]string{1: "RED_BLOB"},
		CodeNames:  map[uint8]string{2: "GOAL"},
	}
	tests := []struct {
		typ  ObjectType
		id   uint8
		want string
	}{
		{TypeColor, 1, "RED_BLOB"},
		{TypeColor, 7, "Color(7)"},
		{TypeCode, 2, "GOAL"},
		{TypeCode, 3, "Code(3)"},
		{TypeAIClassified, 1, "Green Ball"},
		{TypeAIClassified, 40, "AIObject(40)"},
		{TypeAprilTag, 63, "AprilTag(63)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, d.Name(tt.typ, tt.id), "%s %d", tt.typ, tt.id)
	}

	var game Decoder
	assert.Equal(t, "Color(1)", game.Name(TypeColor, 1))
	assert.Equal(t, "Blue Pin", game.Name(TypeAIClassified, 1))
}

func TestDecodeSequence(t *testing.T) {
	colour := []byte{0x02, 0x05, 0x06, 0x07, 0x08, 0x40}
	buf := append(append([]byte{}, colour...), bluePinRecord...)

	var d Decoder
	var (
		objects []Object
		off     int
	)
	for off < len(buf) {
		o, next, err := d.DecodeOne(buf, off)
		require.NoError(t, err)
		objects = append(objects, o)
		off = next
	}
	require.Len(t, objects, 2)
	assert.Equal(t, len(buf), objects[0].ByteLength+objects[1].ByteLength)
	assert.Equal(t, "Color(2)", objects[0].Name)
	assert.Equal(t, uint8(0x40), objects[0].Score)

	all, err := d.DecodeAll(buf)
	require.NoError(t, err)
	assert.Equal(t, objects, all)

	// restartable
	again, err := d.DecodeAll(buf)
	require.NoError(t, err)
	assert.Equal(t, all, again)
}

func TestDecodeEmpty(t *testing.T) {
	var d Decoder
	objects, err := d.DecodeAll(nil)
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestDecodeTruncatedRecord(t *testing.T) {
	buf := append(append([]byte{}, bluePinRecord...), unitSquareTag[:6]...)

	var d Decoder
	objects, err := d.DecodeAll(buf)
	assert.ErrorIs(t, err, protocol.ErrOutOfBounds)
	require.Len(t, objects, 1)
	assert.Equal(t, "Blue Pin", objects[0].Name)

	_, next, err := d.DecodeOne(buf, len(bluePinRecord))
	assert.ErrorIs(t, err, protocol.ErrOutOfBounds)
	assert.Equal(t, len(bluePinRecord), next)
}

func TestAllStopsWhenConsumerBreaks(t *testing.T) {
	buf := append(append([]byte{}, bluePinRecord...), bluePinRecord...)
	n := 0
	for o, err := range Decode(buf) {
		require.NoError(t, err)
		assert.Equal(t, "Blue Pin", o.Name)
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestVocabularyByName(t *testing.T) {
	v, err := VocabularyByName("Classroom")
	require.NoError(t, err)
	assert.Equal(t, ClassroomElements, v)

	v, err = VocabularyByName("")
	require.NoError(t, err)
	assert.Equal(t, GameElements, v)

	_, err = VocabularyByName("arena")
	assert.Error(t, err)
}
