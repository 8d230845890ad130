package protocol

// OutputBuffer provides an abstraction for writing outgoing protocol data
type OutputBuffer interface {
	// Output writes data to the buffer
	Output(data []byte)
}

// ScratchOutput implements OutputBuffer over a growable slice
type ScratchOutput struct {
	buf []byte
}

// NewScratchOutput creates a new ScratchOutput
func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{buf: make([]byte, 0, 64)}
}

// NewScratchOutputSize creates a ScratchOutput with room for n bytes
func NewScratchOutputSize(n int) *ScratchOutput {
	return &ScratchOutput{buf: make([]byte, 0, n)}
}

func (s *ScratchOutput) Output(data []byte) {
	s.buf = append(s.buf, data...)
}

// Result returns the accumulated output data
func (s *ScratchOutput) Result() []byte {
	return s.buf
}
