package protocol

import (
	"fmt"
	"time"
)

// Extended splits an extended-family payload into its leading status
// byte and the remaining data. A NACK status is returned as *NackError.
func (r Reply) Extended() (AckStatus, []byte, error) {
	if r.Command.Family == FamilyBasic {
		return StatusAck, r.Payload, nil
	}
	b, next, err := r.Buffer().Uint8(0)
	if err != nil {
		return 0, nil, fmt.Errorf("%s status: %w", r.Command.Name, err)
	}
	status := AckStatus(b)
	if !status.IsAck() {
		return status, nil, &NackError{Command: r.Command, Status: status}
	}
	return status, r.Payload[next:], nil
}

// SystemVersion is the SYSTEM_VERSION reply
type SystemVersion struct {
	Major        uint8
	Minor        uint8
	Build        uint8
	Hardware     uint8
	Beta         uint8
	Product      uint8
	ProductFlags uint8
}

func (v SystemVersion) String() string {
	return fmt.Sprintf("%d.%d.%d-b%d", v.Major, v.Minor, v.Build, v.Beta)
}

// DecodeSystemVersion parses the 8-byte SYSTEM_VERSION payload
func DecodeSystemVersion(payload []byte) (SystemVersion, error) {
	b := NewBuffer(payload)
	raw, _, err := b.Bytes(0, 8)
	if err != nil {
		return SystemVersion{}, fmt.Errorf("system version: %w", err)
	}
	return SystemVersion{
		Major:        raw[0],
		Minor:        raw[1],
		Build:        raw[2],
		Hardware:     raw[3],
		Beta:         raw[4],
		Product:      raw[5],
		ProductFlags: raw[6],
	}, nil
}

// Query1 is the QUERY1 reply
type Query1 struct {
	Joystick   uint32
	Brain      uint32
	BootSource uint8
	Iteration  uint8
}

// DecodeQuery1 parses the 10-byte QUERY1 payload
func DecodeQuery1(payload []byte) (Query1, error) {
	var q Query1
	b := NewBuffer(payload)
	pos := 0
	var err error
	if q.Joystick, pos, err = b.Uint32(pos); err != nil {
		return q, fmt.Errorf("query1: %w", err)
	}
	if q.Brain, pos, err = b.Uint32(pos); err != nil {
		return q, fmt.Errorf("query1: %w", err)
	}
	if q.BootSource, pos, err = b.Uint8(pos); err != nil {
		return q, fmt.Errorf("query1: %w", err)
	}
	if q.Iteration, _, err = b.Uint8(pos); err != nil {
		return q, fmt.Errorf("query1: %w", err)
	}
	return q, nil
}

// FileInfo is the FILE_GET_INFO reply
type FileInfo struct {
	Size     uint32
	LoadAddr uint32
	CRC32    uint32
	Type     string
	Modified time.Time
	Version  uint32
	Name     string
}

// DecodeFileInfo parses a FILE_GET_INFO reply, status byte included
func DecodeFileInfo(r Reply) (FileInfo, error) {
	var fi FileInfo
	_, data, err := r.Extended()
	if err != nil {
		return fi, err
	}

	b := NewBuffer(data)
	pos := 0
	var ts uint32
	if fi.Size, pos, err = b.Uint32(pos); err != nil {
		return fi, fmt.Errorf("file info: %w", err)
	}
	if fi.LoadAddr, pos, err = b.Uint32(pos); err != nil {
		return fi, fmt.Errorf("file info: %w", err)
	}
	if fi.CRC32, pos, err = b.Uint32(pos); err != nil {
		return fi, fmt.Errorf("file info: %w", err)
	}
	if fi.Type, pos, err = b.CString(pos, 4); err != nil {
		return fi, fmt.Errorf("file info: %w", err)
	}
	if ts, pos, err = b.Uint32(pos); err != nil {
		return fi, fmt.Errorf("file info: %w", err)
	}
	fi.Modified = TimeFromDevice(ts)
	if fi.Version, pos, err = b.Uint32(pos); err != nil {
		return fi, fmt.Errorf("file info: %w", err)
	}
	if fi.Name, _, err = b.CString(pos, b.Remaining(pos)); err != nil {
		return fi, fmt.Errorf("file info: %w", err)
	}
	return fi, nil
}

// DecodeUserStat parses FILE_USER_STAT: status then the user file count
func DecodeUserStat(r Reply) (uint16, error) {
	_, data, err := r.Extended()
	if err != nil {
		return 0, err
	}
	n, _, err := NewBuffer(data).Uint16(0)
	if err != nil {
		return 0, fmt.Errorf("user stat: %w", err)
	}
	return n, nil
}
