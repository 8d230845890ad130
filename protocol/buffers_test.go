package protocol

import (
	"bytes"
	"testing"
)

func TestScratchOutput(t *testing.T) {
	scratch := NewScratchOutput()

	scratch.Output([]byte{1, 2, 3})
	if result := scratch.Result(); len(result) != 3 {
		t.Errorf("Expected 3 bytes in result, got %d", len(result))
	}

	scratch.Output([]byte{4, 5})
	if !bytes.Equal(scratch.Result(), []byte{1, 2, 3, 4, 5}) {
		t.Errorf("Result = %v, expected [1 2 3 4 5]", scratch.Result())
	}
}

func TestScratchOutputGrows(t *testing.T) {
	scratch := NewScratchOutputSize(4)
	scratch.Output(make([]byte, 1000))
	if len(scratch.Result()) != 1000 {
		t.Errorf("Expected 1000 bytes, got %d", len(scratch.Result()))
	}
}

func TestScratchOutputAsVarintSink(t *testing.T) {
	var out OutputBuffer = NewScratchOutput()
	if err := EncodeVarint(out, 0x0123); err != nil {
		t.Fatalf("EncodeVarint: %v", err)
	}
	if got := out.(*ScratchOutput).Result(); !bytes.Equal(got, []byte{0x81, 0x23}) {
		t.Errorf("Result = % X, expected 81 23", got)
	}
}
