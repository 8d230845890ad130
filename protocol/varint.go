package protocol

// The domain varint is one byte for values below 0x80. Larger values take
// two bytes, big-endian, with the top bit of the first byte set as the
// width marker. This is not LEB128: there is no per-byte continuation.
const (
	varintWide = 0x80
	varintMask = 0x7FFF

	// MaxVarint is the largest value the 2-byte form can carry
	MaxVarint = varintMask
)

// VarintSize returns how many bytes EncodeVarint emits for v
func VarintSize(v uint16) int {
	if v < varintWide {
		return 1
	}
	return 2
}

// EncodeVarint writes v in the 1-or-2 byte domain varint form
func EncodeVarint(output OutputBuffer, v uint16) error {
	if v > MaxVarint {
		return ErrPayloadTooLarge
	}
	if v < varintWide {
		output.Output([]byte{byte(v)})
		return nil
	}
	output.Output([]byte{byte(v>>8) | varintWide, byte(v)})
	return nil
}

// AppendVarint is EncodeVarint for callers holding a plain slice
func AppendVarint(dst []byte, v uint16) ([]byte, error) {
	out := NewScratchOutput()
	if err := EncodeVarint(out, v); err != nil {
		return dst, err
	}
	return append(dst, out.Result()...), nil
}
