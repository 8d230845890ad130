package protocol

import "time"

// epochOffset is 2000-01-01T00:00:00Z as Unix seconds
const epochOffset = 946684800

// Epoch returns the zero point of device timestamps, 2000-01-01T00:00:00Z
func Epoch() time.Time {
	return time.Unix(epochOffset, 0).UTC()
}

// TimeFromDevice converts a device timestamp (seconds since Epoch)
func TimeFromDevice(ts uint32) time.Time {
	return time.Unix(int64(ts)+epochOffset, 0).UTC()
}

// DeviceTime converts t to seconds since Epoch, clamped to the uint32 range
func DeviceTime(t time.Time) uint32 {
	s := t.Unix() - epochOffset
	switch {
	case s < 0:
		return 0
	case s > int64(^uint32(0)):
		return ^uint32(0)
	}
	return uint32(s)
}
