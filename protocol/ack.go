package protocol

import "fmt"

// AckStatus is the status byte of an acknowledgement
type AckStatus uint8

const (
	StatusAck             AckStatus = 0x76
	StatusNack            AckStatus = 0xFF
	StatusNackPacketCRC   AckStatus = 0xCE
	StatusNackCmdLength   AckStatus = 0xD0
	StatusNackSize        AckStatus = 0xD1
	StatusNackCRC         AckStatus = 0xD2
	StatusNackFile        AckStatus = 0xD3
	StatusNackInit        AckStatus = 0xD4
	StatusNackFunc        AckStatus = 0xD5
	StatusNackAlign       AckStatus = 0xD6
	StatusNackAddr        AckStatus = 0xD7
	StatusNackIncomplete  AckStatus = 0xD8
	StatusNackDirIndex    AckStatus = 0xD9
	StatusNackMaxUserFile AckStatus = 0xDA
	StatusNackFileExists  AckStatus = 0xDB
	StatusNackFileSysFull AckStatus = 0xDC
)

var ackNames = map[AckStatus]string{
	StatusAck:             "CDC2_ACK",
	StatusNack:            "CDC2_NACK",
	StatusNackPacketCRC:   "CDC2_NACK_PACKET_CRC",
	StatusNackCmdLength:   "CDC2_NACK_CMD_LENGTH",
	StatusNackSize:        "CDC2_NACK_SIZE",
	StatusNackCRC:         "CDC2_NACK_CRC",
	StatusNackFile:        "CDC2_NACK_FILE",
	StatusNackInit:        "CDC2_NACK_INIT",
	StatusNackFunc:        "CDC2_NACK_FUNC",
	StatusNackAlign:       "CDC2_NACK_ALIGN",
	StatusNackAddr:        "CDC2_NACK_ADDR",
	StatusNackIncomplete:  "CDC2_NACK_INCOMPLETE",
	StatusNackDirIndex:    "CDC2_NACK_DIR_INDEX",
	StatusNackMaxUserFile: "CDC2_NACK_MAX_USER_FILES",
	StatusNackFileExists:  "CDC2_NACK_FILE_EXISTS",
	StatusNackFileSysFull: "CDC2_NACK_FILE_SYS_FULL",
}

var ackDescriptions = map[AckStatus]string{
	StatusAck:             "acknowledged",
	StatusNack:            "general failure",
	StatusNackPacketCRC:   "packet checksum mismatch",
	StatusNackCmdLength:   "bad command length",
	StatusNackSize:        "bad transfer size",
	StatusNackCRC:         "bad file crc",
	StatusNackFile:        "file missing or locked",
	StatusNackInit:        "transfer not initialized",
	StatusNackFunc:        "bad function for transfer",
	StatusNackAlign:       "data misaligned",
	StatusNackAddr:        "bad packet address",
	StatusNackIncomplete:  "transfer incomplete",
	StatusNackDirIndex:    "bad directory index",
	StatusNackMaxUserFile: "too many user files",
	StatusNackFileExists:  "file already exists",
	StatusNackFileSysFull: "file system full",
}

// LookupAck translates a raw status byte. ok is false for bytes outside
// the table; such statuses are still failures.
func LookupAck(b uint8) (AckStatus, bool) {
	s := AckStatus(b)
	_, ok := ackNames[s]
	return s, ok
}

// IsAck reports whether the device accepted the command
func (s AckStatus) IsAck() bool {
	return s == StatusAck
}

// Known reports whether s is in the ACK/NACK table
func (s AckStatus) Known() bool {
	_, ok := ackNames[s]
	return ok
}

func (s AckStatus) String() string {
	if name, ok := ackNames[s]; ok {
		return name
	}
	return fmt.Sprintf("CDC2_NACK_UNKNOWN(0x%02X)", uint8(s))
}

// Description is a human readable reason
func (s AckStatus) Description() string {
	if d, ok := ackDescriptions[s]; ok {
		return d
	}
	return "unrecognized status"
}
