package protocol

import (
	"fmt"
	"strings"
)

// Checksum is the integrity trailer appended to every CDC2 frame
type Checksum interface {
	// Name identifies the algorithm in configuration
	Name() string

	// Size is the trailer width in bytes
	Size() int

	// Sum computes the trailer value over data
	Sum(data []byte) uint16
}

// CRC16 calculates the CRC-16/XMODEM checksum used by CDC2 frames
// (polynomial 0x1021, initial value 0, no reflection, no final xor)
func CRC16(data []byte) uint16 {
	crc := uint16(0)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Sum8 calculates an 8-bit additive checksum (sum modulo 256)
func Sum8(data []byte) uint8 {
	var sum uint8
	for _, b := range data {
		sum += b
	}
	return sum
}

type crc16Checksum struct{}

func (crc16Checksum) Name() string           { return "crc16" }
func (crc16Checksum) Size() int              { return 2 }
func (crc16Checksum) Sum(data []byte) uint16 { return CRC16(data) }

type sum8Checksum struct{}

func (sum8Checksum) Name() string           { return "sum8" }
func (sum8Checksum) Size() int              { return 1 }
func (sum8Checksum) Sum(data []byte) uint16 { return uint16(Sum8(data)) }

// ChecksumCRC16 is the default frame checksum
func ChecksumCRC16() Checksum {
	return crc16Checksum{}
}

// ChecksumSum8 is the single-byte additive trailer
func ChecksumSum8() Checksum {
	return sum8Checksum{}
}

// ChecksumByName resolves a configured checksum name
func ChecksumByName(name string) (Checksum, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "crc16", "crc-16", "xmodem":
		return ChecksumCRC16(), nil
	case "sum8", "sum":
		return ChecksumSum8(), nil
	}
	return nil, fmt.Errorf("unknown checksum %q", name)
}

// putChecksum writes sum big-endian into size bytes
func putChecksum(output OutputBuffer, sum uint16, size int) {
	if size == 1 {
		output.Output([]byte{uint8(sum)})
		return
	}
	output.Output([]byte{
		uint8((sum & 0xFF00) >> 8),
		uint8(sum & 0xFF),
	})
}

// readChecksum is the inverse of putChecksum
func readChecksum(b []byte) uint16 {
	if len(b) == 1 {
		return uint16(b[0])
	}
	return uint16(b[0])<<8 | uint16(b[1])
}
