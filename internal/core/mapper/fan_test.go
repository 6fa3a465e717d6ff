package mapper

import (
	"testing"

	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestSpeedPercentRoundTrip(t *testing.T) {

	assert := assert.New(t)

	for speed := 0; speed <= MaxFanSpeed; speed++ {
		percent, ok := PercentFromSpeed(speed)
		assert.True(ok)
		assert.Equal(speed, SpeedFromPercent(percent), "speed %d", speed)
	}
}

func TestSpeedFromPercent(t *testing.T) {

	tests := []struct {
		percent int
		speed   int
	}{
		{-10, 0},
		{0, 0},
		{1, 1},
		{33, 1},
		{34, 2},
		{66, 2},
		{67, 3},
		{100, 3},
		{101, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.speed, SpeedFromPercent(tt.percent), "percent %d", tt.percent)
	}
}

func TestPercentFromUnknownSpeed(t *testing.T) {

	assert := assert.New(t)

	percent, ok := PercentFromSpeed(7)
	assert.False(ok)
	assert.Equal(0, percent)
}

func TestPresets(t *testing.T) {

	assert := assert.New(t)

	assert.Equal(1, SpeedFromPreset("low"))
	assert.Equal(2, SpeedFromPreset("medium"))
	assert.Equal(3, SpeedFromPreset("high"))
	assert.Equal(3, SpeedFromPreset("turbo"), "unknown preset is full speed")
	assert.Equal("medium", PresetFromSpeed(2))
	assert.Equal("", PresetFromSpeed(0))
}

func TestTurnOnSpeed(t *testing.T) {

	assert := assert.New(t)

	pct := 40
	preset := "low"
	assert.Equal(3, TurnOnSpeed(nil, nil), "on means full")
	assert.Equal(2, TurnOnSpeed(&pct, nil))
	assert.Equal(1, TurnOnSpeed(nil, &preset))
	assert.Equal(2, TurnOnSpeed(&pct, &preset), "percentage wins over preset")
}

func TestFanSpeedRaw(t *testing.T) {

	assert := assert.New(t)

	assert.Equal(0, FanSpeed(nil))
	assert.Equal(2, FanSpeed(2))
	assert.Equal(2, FanSpeed(2.0))
	assert.Equal(1, FanSpeed("1"))
	assert.Equal(0, FanSpeed("fast"))
	assert.Equal(domain.Props{"fan": 3}, FanSpeedProps("fan", 3))
}
