package vision

import (
	"fmt"
	"iter"

	"v5link/protocol"
)

const (
	idMask    = 0x3F
	typeShift = 6

	// quad9Scale expands tag corners for display overlays
	quad9Scale = 9.0 / 5.0
)

// Decoder turns a VISION_OBJECTS payload into objects. The zero value
// uses the game element vocabulary and synthesized color/code names.
type Decoder struct {
	Vocabulary Vocabulary

	// ColorNames and CodeNames come from the sensor configuration
	ColorNames map[uint8]string
	CodeNames  map[uint8]string
}

// Name resolves the display name of a record
func (d *Decoder) Name(t ObjectType, id uint8) string {
	switch t {
	case TypeColor:
		if n, ok := d.ColorNames[id]; ok {
			return n
		}
		return fmt.Sprintf("Color(%d)", id)
	case TypeCode:
		if n, ok := d.CodeNames[id]; ok {
			return n
		}
		return fmt.Sprintf("Code(%d)", id)
	case TypeAIClassified:
		if int(d.Vocabulary) < len(vocabularies) {
			if n, ok := vocabularies[d.Vocabulary][id]; ok {
				return n
			}
		}
		return fmt.Sprintf("AIObject(%d)", id)
	}
	return fmt.Sprintf("AprilTag(%d)", id)
}

// DecodeOne decodes the record starting at off and returns the offset of
// the next record. Running off the end of buf yields
// protocol.ErrOutOfBounds.
func (d *Decoder) DecodeOne(buf []byte, off int) (Object, int, error) {
	b := protocol.NewBuffer(buf)
	lead, pos, err := b.Uint8(off)
	if err != nil {
		return Object{}, off, fmt.Errorf("vision record at %d: %w", off, err)
	}

	o := Object{
		ID:   lead & idMask,
		Type: ObjectType(lead >> typeShift),
	}
	o.Name = d.Name(o.Type, o.ID)

	if o.Type == TypeAprilTag {
		pos, err = decodeTag(b, pos, &o)
	} else {
		pos, err = decodeBlob(b, pos, &o)
	}
	if err != nil {
		return Object{}, off, fmt.Errorf("vision %s record at %d: %w", o.Type, off, err)
	}
	o.ByteLength = pos - off
	return o, pos, nil
}

// All lazily decodes every record in buf. It stops at the end of the
// buffer or after yielding the first error.
func (d *Decoder) All(buf []byte) iter.Seq2[Object, error] {
	return func(yield func(Object, error) bool) {
		for off := 0; off < len(buf); {
			o, next, err := d.DecodeOne(buf, off)
			if err != nil {
				yield(Object{}, err)
				return
			}
			if !yield(o, nil) {
				return
			}
			off = next
		}
	}
}

// DecodeAll collects every record in buf
func (d *Decoder) DecodeAll(buf []byte) ([]Object, error) {
	var out []Object
	for o, err := range d.All(buf) {
		if err != nil {
			return out, err
		}
		out = append(out, o)
	}
	return out, nil
}

// Decode walks buf with the default game element decoder
func Decode(buf []byte) iter.Seq2[Object, error] {
	var d Decoder
	return d.All(buf)
}

func decodeBlob(b protocol.Buffer, pos int, o *Object) (int, error) {
	var (
		x, w uint16
		y, h uint8
		err  error
	)
	if x, pos, err = b.Varint(pos); err != nil {
		return pos, err
	}
	if y, pos, err = b.Uint8(pos); err != nil {
		return pos, err
	}
	if w, pos, err = b.Varint(pos); err != nil {
		return pos, err
	}
	if h, pos, err = b.Uint8(pos); err != nil {
		return pos, err
	}
	if o.Score, pos, err = b.Uint8(pos); err != nil {
		return pos, err
	}

	o.OriginX, o.OriginY = int(x), int(y)
	o.Width, o.Height = int(w), int(h)
	o.CenterX = float64(o.OriginX) + float64(o.Width)/2
	o.CenterY = float64(o.OriginY) + float64(o.Height)/2
	return pos, nil
}

func decodeTag(b protocol.Buffer, pos int, o *Object) (int, error) {
	var (
		tag AprilTag
		err error
	)
	for i := range tag.Quad {
		var x uint16
		var y uint8
		if x, pos, err = b.Varint(pos); err != nil {
			return pos, err
		}
		if y, pos, err = b.Uint8(pos); err != nil {
			return pos, err
		}
		// Corners arrive in the opposite winding order
		tag.Quad[len(tag.Quad)-1-i] = Point{X: float64(x), Y: float64(y)}
	}
	angle, pos, err := b.Varint(pos)
	if err != nil {
		return pos, err
	}
	tag.Angle = float64(angle) / 10

	var c Point
	minX, minY := tag.Quad[0].X, tag.Quad[0].Y
	maxX, maxY := minX, minY
	for _, p := range tag.Quad {
		c.X += p.X
		c.Y += p.Y
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	c.X /= float64(len(tag.Quad))
	c.Y /= float64(len(tag.Quad))

	for i, p := range tag.Quad {
		tag.Quad9[i] = Point{
			X: c.X + (p.X-c.X)*quad9Scale,
			Y: c.Y + (p.Y-c.Y)*quad9Scale,
		}
	}

	o.Tag = &tag
	o.CenterX, o.CenterY = c.X, c.Y
	o.OriginX, o.OriginY = int(minX), int(minY)
	o.Width, o.Height = int(maxX-minX), int(maxY-minY)
	return pos, nil
}
