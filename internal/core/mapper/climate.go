package mapper

import (
	"fmt"
	"slices"

	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
)

const (
	PROP_IS_ON               = "is_on"
	PROP_MODE                = "mode"
	PROP_FAN_MODE            = "fan_mode"
	PROP_CURRENT_TEMPERATURE = "current_temperature"
	PROP_TARGET_TEMPERATURE  = "target_temperature"
	PROP_CURRENT_HUMIDITY    = "current_humidity"
	PROP_BATH_HEATER_MODE    = "bath_heater_mode"
)

type HVACMode string

const (
	HVACOff     HVACMode = "off"
	HVACHeat    HVACMode = "heat"
	HVACCool    HVACMode = "cool"
	HVACDry     HVACMode = "dry"
	HVACFanOnly HVACMode = "fan_only"
)

const (
	FAN_LOW    = "low"
	FAN_MEDIUM = "medium"
	FAN_HIGH   = "high"
)

var (
	StandardHVACModes   = []HVACMode{HVACOff, HVACHeat, HVACCool, HVACDry, HVACFanOnly}
	BathHeaterHVACModes = []HVACMode{HVACOff, HVACHeat}
	StandardFanModes    = []string{FAN_LOW, FAN_MEDIUM, FAN_HIGH}
)

const (
	BathHeaterMinTemp = 16
	BathHeaterMaxTemp = 40
	TemperatureStep   = 1
)

// EffectiveHVACMode is the mode the host should display. The last selected
// mode is remembered while the unit is off, so turning it back on resumes it.
func EffectiveHVACMode(isOn bool, mode HVACMode) HVACMode {
	if !isOn {
		return HVACOff
	}
	return mode
}

// BathHeaterHVACMode: a bath heater that is on is heating.
func BathHeaterHVACMode(isOn bool) HVACMode {
	if isOn {
		return HVACHeat
	}
	return HVACOff
}

func ParseHVACMode(s string, allowed []HVACMode) (HVACMode, error) {
	if mode := HVACMode(s); slices.Contains(allowed, mode) {
		return mode, nil
	}
	return "", fmt.Errorf("%w: hvac mode %q", domain.ErrUnsupportedCommand, s)
}

func HVACModeStrings(modes []HVACMode) []string {
	out := make([]string, len(modes))
	for i, m := range modes {
		out[i] = string(m)
	}
	return out
}

func PowerProps(on bool) domain.Props {
	return domain.Props{PROP_IS_ON: on}
}

// StandardHVACModeProps: off only powers down and leaves the stored mode
// alone, any other mode powers on and selects it.
func StandardHVACModeProps(mode HVACMode) (domain.Props, error) {
	if _, err := ParseHVACMode(string(mode), StandardHVACModes); err != nil {
		return nil, err
	}
	if mode == HVACOff {
		return PowerProps(false), nil
	}
	return domain.Props{PROP_IS_ON: true, PROP_MODE: string(mode)}, nil
}

// BathHeaterHVACModeProps only knows off and heat; anything else is an
// ErrUnsupportedCommand and nothing must be sent.
func BathHeaterHVACModeProps(mode HVACMode) (domain.Props, error) {
	switch mode {
	case HVACOff:
		return PowerProps(false), nil
	case HVACHeat:
		return PowerProps(true), nil
	default:
		return nil, fmt.Errorf("%w: bath heater does not support mode %q", domain.ErrUnsupportedCommand, mode)
	}
}

func FanModeProps(fanMode string) (domain.Props, error) {
	if !slices.Contains(StandardFanModes, fanMode) {
		return nil, fmt.Errorf("%w: fan mode %q", domain.ErrInvalidCommandValue, fanMode)
	}
	return domain.Props{PROP_FAN_MODE: fanMode}, nil
}

// TemperatureProps maps a setpoint 1:1, the host owns unit conversion.
func TemperatureProps(temperature float64) domain.Props {
	return domain.Props{PROP_TARGET_TEMPERATURE: temperature}
}
