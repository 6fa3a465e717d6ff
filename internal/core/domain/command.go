package domain

import "fmt"

// CommandKind is a normalized user intent addressed to one entity.
type CommandKind string

const (
	CommandTurnOn          CommandKind = "turn_on"
	CommandTurnOff         CommandKind = "turn_off"
	CommandOpen            CommandKind = "open"
	CommandClose           CommandKind = "close"
	CommandStop            CommandKind = "stop"
	CommandSetPosition     CommandKind = "set_position"
	CommandOpenTilt        CommandKind = "open_tilt"
	CommandCloseTilt       CommandKind = "close_tilt"
	CommandStopTilt        CommandKind = "stop_tilt"
	CommandSetTiltPosition CommandKind = "set_tilt_position"
	CommandSetPercentage   CommandKind = "set_percentage"
	CommandSetPresetMode   CommandKind = "set_preset_mode"
	CommandSetHVACMode     CommandKind = "set_hvac_mode"
	CommandSetFanMode      CommandKind = "set_fan_mode"
	CommandSetTemperature  CommandKind = "set_temperature"
	CommandSelectOption    CommandKind = "select_option"
)

var commandKinds = []CommandKind{
	CommandTurnOn, CommandTurnOff, CommandOpen, CommandClose, CommandStop,
	CommandSetPosition, CommandOpenTilt, CommandCloseTilt, CommandStopTilt,
	CommandSetTiltPosition, CommandSetPercentage, CommandSetPresetMode,
	CommandSetHVACMode, CommandSetFanMode, CommandSetTemperature, CommandSelectOption,
}

func ParseCommandKind(s string) (CommandKind, error) {
	for _, k := range commandKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedCommand, s)
}

// EntityCommand is transient: produced by a single host call and consumed
// right away by the addressed entity.
type EntityCommand struct {
	DeviceId string
	Attr     string
	Kind     CommandKind
	// Value is the raw argument as received from the host, empty when the
	// command takes none.
	Value string
}

func (c EntityCommand) String() string {
	if c.Value == "" {
		return fmt.Sprintf("%s/%s %s", c.DeviceId, c.Attr, c.Kind)
	}
	return fmt.Sprintf("%s/%s %s(%s)", c.DeviceId, c.Attr, c.Kind, c.Value)
}
