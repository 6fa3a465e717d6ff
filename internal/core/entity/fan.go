package entity

import (
	"context"

	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/mapper"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/port"

	"go.uber.org/zap"
)

const (
	FAN_STATE_ON  = "ON"
	FAN_STATE_OFF = "OFF"
)

const fanFeatures = domain.FeatureTurnOn | domain.FeatureTurnOff | domain.FeatureSetSpeed | domain.FeaturePresetMode

// Fan maps a discrete 0-3 speed property, stored under the entity attr or
// its single configured prop, to a percentage. isOn and percentage stay nil
// until the first report.
type Fan struct {
	base
	key        string
	isOn       *bool
	percentage *int
	speed      int
}

func NewFan(cfg Config, sender port.Sender, logger *zap.Logger) *Fan {
	key := valueKey(cfg)
	f := &Fan{
		base: newBase(cfg, []string{key}, sender, logger),
		key:  key,
	}
	f.features = fanFeatures
	return f
}

func (f *Fan) Apply(props domain.Props) {
	v, ok := props[f.key]
	if !ok {
		return
	}
	speed := mapper.FanSpeed(v)
	percentage, known := mapper.PercentFromSpeed(speed)
	if !known {
		f.logger.Debug("fan: unknown speed", zap.Any("value", v))
		speed = 0
	}
	isOn := speed > 0
	f.speed = speed
	f.isOn = &isOn
	f.percentage = &percentage
}

func (f *Fan) IsOn() *bool {
	return f.isOn
}

func (f *Fan) Percentage() *int {
	return f.percentage
}

func (f *Fan) Snapshot() domain.EntitySnapshot {
	values := map[string]any{
		domain.VALUE_IS_ON:      nil,
		domain.VALUE_PERCENTAGE: nil,
		domain.VALUE_STATE:      nil,
		"preset_mode":           nil,
	}
	if f.isOn != nil {
		values[domain.VALUE_IS_ON] = *f.isOn
		if *f.isOn {
			values[domain.VALUE_STATE] = FAN_STATE_ON
			values["preset_mode"] = mapper.PresetFromSpeed(f.speed)
		} else {
			values[domain.VALUE_STATE] = FAN_STATE_OFF
		}
	}
	if f.percentage != nil {
		values[domain.VALUE_PERCENTAGE] = *f.percentage
	}
	return f.snapshot(values, domain.EntityDescriptor{
		PresetModes: mapper.FanPresets,
		SpeedCount:  mapper.MaxFanSpeed,
	})
}

func (f *Fan) Execute(ctx context.Context, cmd domain.EntityCommand) error {
	switch cmd.Kind {
	case domain.CommandTurnOn:
		if cmd.Value == "" {
			return f.TurnOn(ctx, nil, nil)
		}
		if percentage, ok := mapper.Int(cmd.Value); ok {
			return f.TurnOn(ctx, &percentage, nil)
		}
		return f.TurnOn(ctx, nil, &cmd.Value)
	case domain.CommandTurnOff:
		return f.TurnOff(ctx)
	case domain.CommandSetPercentage:
		percentage, err := intValue(cmd)
		if err != nil {
			return err
		}
		return f.SetPercentage(ctx, percentage)
	case domain.CommandSetPresetMode:
		return f.TurnOn(ctx, nil, &cmd.Value)
	default:
		return unsupported(cmd)
	}
}

// TurnOn with no arguments runs at full speed.
func (f *Fan) TurnOn(ctx context.Context, percentage *int, preset *string) error {
	return f.setSpeed(ctx, mapper.TurnOnSpeed(percentage, preset))
}

func (f *Fan) TurnOff(ctx context.Context) error {
	return f.setSpeed(ctx, 0)
}

func (f *Fan) SetPercentage(ctx context.Context, percentage int) error {
	return f.setSpeed(ctx, mapper.SpeedFromPercent(percentage))
}

func (f *Fan) setSpeed(ctx context.Context, speed int) error {
	props := mapper.FanSpeedProps(f.key, speed)
	apply, err := f.send(ctx, props)
	if apply {
		f.Apply(props)
	}
	return err
}
