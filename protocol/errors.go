package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrFraming         = errors.New("cdc2: frame header not found")
	ErrTruncated       = errors.New("cdc2: truncated frame")
	ErrChecksum        = errors.New("cdc2: checksum mismatch")
	ErrUnknownCommand  = errors.New("cdc2: unknown command")
	ErrOutOfBounds     = errors.New("cdc2: read past end of buffer")
	ErrNack            = errors.New("cdc2: command not acknowledged")
	ErrPayloadTooLarge = errors.New("cdc2: payload too large")
	ErrPayloadLength   = errors.New("cdc2: payload length does not match command")
)

// NackError is a structurally valid frame that reports a device-side failure
type NackError struct {
	Command CommandSpec
	Status  AckStatus
}

func (e *NackError) Error() string {
	return fmt.Sprintf("cdc2: %s rejected: %s (0x%02X)", e.Command.Name, e.Status, uint8(e.Status))
}

// Is lets errors.Is(err, ErrNack) match any NACK
func (e *NackError) Is(target error) bool {
	return target == ErrNack
}
