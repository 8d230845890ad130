package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEpoch(t *testing.T) {
	assert.Equal(t, int64(946684800), Epoch().Unix())
	assert.True(t, Epoch().Equal(TimeFromDevice(0)))
	assert.True(t, Epoch().Equal(time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func TestDeviceTimeRoundTrip(t *testing.T) {
	when := time.Date(2024, time.March, 9, 17, 30, 5, 0, time.UTC)
	ts := DeviceTime(when)
	assert.Equal(t, uint32(when.Unix()-946684800), ts)
	assert.True(t, when.Equal(TimeFromDevice(ts)))
}

func TestDeviceTimeClamps(t *testing.T) {
	assert.Zero(t, DeviceTime(time.Date(1999, time.December, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, ^uint32(0), DeviceTime(time.Date(2200, time.January, 1, 0, 0, 0, 0, time.UTC)))
}
