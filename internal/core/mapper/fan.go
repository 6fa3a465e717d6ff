package mapper

import (
	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
)

const (
	MaxFanSpeed = 3

	PRESET_LOW    = "low"
	PRESET_MEDIUM = "medium"
	PRESET_HIGH   = "high"
)

// speedPercent maps the four discrete fan speeds to percentage buckets.
var speedPercent = map[int]int{0: 0, 1: 33, 2: 66, 3: 100}

// percentThresholds is walked in ascending order for the reverse mapping:
// the first speed whose upper bound is >= the requested percentage wins.
var percentThresholds = []struct {
	speed     int
	threshold int
}{
	{0, 0},
	{1, 33},
	{2, 66},
	{3, 100},
}

var presetSpeed = map[string]int{
	PRESET_LOW:    1,
	PRESET_MEDIUM: 2,
	PRESET_HIGH:   3,
}

var FanPresets = []string{PRESET_LOW, PRESET_MEDIUM, PRESET_HIGH}

// PercentFromSpeed returns the percentage bucket of a speed. Unknown speeds
// map to 0 and ok=false.
func PercentFromSpeed(speed int) (percent int, ok bool) {
	percent, ok = speedPercent[speed]
	return percent, ok
}

// SpeedFromPercent maps a percentage to a discrete speed. Anything <= 0 is
// speed 0 whatever the table says; anything above the last threshold falls
// back to the maximum speed.
func SpeedFromPercent(percent int) int {
	if percent <= 0 {
		return 0
	}
	for _, t := range percentThresholds {
		if percent <= t.threshold {
			return t.speed
		}
	}
	return MaxFanSpeed
}

// SpeedFromPreset maps a named preset. Unknown presets mean full speed.
func SpeedFromPreset(preset string) int {
	if speed, ok := presetSpeed[preset]; ok {
		return speed
	}
	return MaxFanSpeed
}

// PresetFromSpeed is the inverse of SpeedFromPreset for reporting, empty for
// speed 0 or unknown speeds.
func PresetFromSpeed(speed int) string {
	for preset, s := range presetSpeed {
		if s == speed {
			return preset
		}
	}
	return ""
}

// FanSpeed reads a raw speed property, nil and garbage count as 0.
func FanSpeed(raw any) int {
	speed, ok := Int(raw)
	if !ok {
		return 0
	}
	return speed
}

// TurnOnSpeed resolves the speed for a turn on request. A percentage wins
// over a preset; with neither, on means full speed.
func TurnOnSpeed(percent *int, preset *string) int {
	switch {
	case percent != nil:
		return SpeedFromPercent(*percent)
	case preset != nil:
		return SpeedFromPreset(*preset)
	default:
		return MaxFanSpeed
	}
}

// FanSpeedProps writes speed under the entity's own property name.
func FanSpeedProps(name string, speed int) domain.Props {
	return domain.Props{name: speed}
}
