package entity

import (
	"context"
	"errors"

	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/mapper"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/port"

	"go.uber.org/zap"
)

var defaultClimateProps = []string{
	mapper.PROP_IS_ON,
	mapper.PROP_MODE,
	mapper.PROP_FAN_MODE,
	mapper.PROP_CURRENT_TEMPERATURE,
	mapper.PROP_TARGET_TEMPERATURE,
	mapper.PROP_CURRENT_HUMIDITY,
}

const climateFeatures = domain.FeatureTargetTemperature | domain.FeatureFanMode | domain.FeatureTurnOn | domain.FeatureTurnOff

// climateState is shared by both climate variants.
type climateState struct {
	isOn               bool
	currentTemperature *float64
	targetTemperature  *float64
}

func (s *climateState) apply(props domain.Props) {
	if v, ok := props[mapper.PROP_IS_ON]; ok {
		s.isOn = mapper.Bool(v)
	}
	if v, ok := props[mapper.PROP_CURRENT_TEMPERATURE]; ok {
		s.currentTemperature = optionalFloat(v)
	}
	if v, ok := props[mapper.PROP_TARGET_TEMPERATURE]; ok {
		s.targetTemperature = optionalFloat(v)
	}
}

func (s *climateState) values(hvacMode mapper.HVACMode) map[string]any {
	values := map[string]any{
		domain.VALUE_HVAC_MODE:           string(hvacMode),
		domain.VALUE_IS_ON:               s.isOn,
		domain.VALUE_CURRENT_TEMPERATURE: nil,
		domain.VALUE_TARGET_TEMPERATURE:  nil,
	}
	if s.currentTemperature != nil {
		values[domain.VALUE_CURRENT_TEMPERATURE] = *s.currentTemperature
	}
	if s.targetTemperature != nil {
		values[domain.VALUE_TARGET_TEMPERATURE] = *s.targetTemperature
	}
	return values
}

// Climate is the standard air conditioner variant.
type Climate struct {
	base
	climateState
	mode            mapper.HVACMode
	fanMode         *string
	currentHumidity *float64
	unit            string
}

func NewClimate(cfg Config, sender port.Sender, logger *zap.Logger) *Climate {
	c := &Climate{
		base: newBase(cfg, defaultClimateProps, sender, logger),
		unit: cfg.TemperatureUnit,
	}
	c.features = climateFeatures
	return c
}

func (c *Climate) Apply(props domain.Props) {
	c.climateState.apply(props)
	if v, ok := props[mapper.PROP_MODE]; ok && v != nil {
		c.mode = mapper.HVACMode(mapper.String(v))
	}
	if v, ok := props[mapper.PROP_FAN_MODE]; ok {
		if v == nil {
			c.fanMode = nil
		} else {
			fanMode := mapper.String(v)
			c.fanMode = &fanMode
		}
	}
	if v, ok := props[mapper.PROP_CURRENT_HUMIDITY]; ok {
		c.currentHumidity = optionalFloat(v)
	}
}

// HVACMode is the effective mode: the stored mode while on, off otherwise.
func (c *Climate) HVACMode() mapper.HVACMode {
	return mapper.EffectiveHVACMode(c.isOn, c.mode)
}

// Mode is the last selected mode, remembered while off.
func (c *Climate) Mode() mapper.HVACMode {
	return c.mode
}

func (c *Climate) Snapshot() domain.EntitySnapshot {
	values := c.climateState.values(c.HVACMode())
	values[domain.VALUE_MODE] = string(c.mode)
	values[domain.VALUE_FAN_MODE] = nil
	values[domain.VALUE_CURRENT_HUMIDITY] = nil
	if c.fanMode != nil {
		values[domain.VALUE_FAN_MODE] = *c.fanMode
	}
	if c.currentHumidity != nil {
		values[domain.VALUE_CURRENT_HUMIDITY] = *c.currentHumidity
	}
	return c.snapshot(values, domain.EntityDescriptor{
		HVACModes:       mapper.HVACModeStrings(mapper.StandardHVACModes),
		FanModes:        mapper.StandardFanModes,
		TemperatureStep: mapper.TemperatureStep,
		TemperatureUnit: c.unit,
	})
}

func (c *Climate) Execute(ctx context.Context, cmd domain.EntityCommand) error {
	var props domain.Props
	switch cmd.Kind {
	case domain.CommandSetTemperature:
		t, err := floatValue(cmd)
		if err != nil {
			return err
		}
		props = mapper.TemperatureProps(t)
	case domain.CommandSetHVACMode:
		p, err := mapper.StandardHVACModeProps(mapper.HVACMode(cmd.Value))
		if err != nil {
			c.reject(cmd, err.Error())
			return err
		}
		props = p
	case domain.CommandSetFanMode:
		p, err := mapper.FanModeProps(cmd.Value)
		if err != nil {
			c.reject(cmd, err.Error())
			return err
		}
		props = p
	case domain.CommandTurnOn:
		props = mapper.PowerProps(true)
	case domain.CommandTurnOff:
		props = mapper.PowerProps(false)
	default:
		return unsupported(cmd)
	}
	apply, err := c.send(ctx, props)
	if apply {
		c.Apply(props)
	}
	return err
}

// BathHeater only heats. Ventilation, drying and heating are separate
// switches on the unit; this entity reflects the heating function only.
type BathHeater struct {
	base
	climateState
	bathHeaterMode int
	unit           string
}

var defaultBathHeaterProps = []string{
	mapper.PROP_IS_ON,
	mapper.PROP_CURRENT_TEMPERATURE,
	mapper.PROP_TARGET_TEMPERATURE,
}

const bathHeaterFeatures = domain.FeatureTargetTemperature | domain.FeatureTurnOn | domain.FeatureTurnOff

func NewBathHeater(cfg Config, sender port.Sender, logger *zap.Logger) *BathHeater {
	b := &BathHeater{
		base: newBase(cfg, defaultBathHeaterProps, sender, logger),
		unit: cfg.TemperatureUnit,
	}
	b.variant = VARIANT_BATH_HEATER
	b.features = bathHeaterFeatures
	b.subscribe(mapper.PROP_BATH_HEATER_MODE)
	b.attributes[mapper.PROP_BATH_HEATER_MODE] = 0
	return b
}

func (b *BathHeater) Apply(props domain.Props) {
	b.climateState.apply(props)
	// diagnostic only, no effect on the hvac mode
	if v, ok := props[mapper.PROP_BATH_HEATER_MODE]; ok {
		if mode, ok := mapper.Int(v); ok {
			b.bathHeaterMode = mode
		}
		b.attributes[mapper.PROP_BATH_HEATER_MODE] = v
	}
}

func (b *BathHeater) HVACMode() mapper.HVACMode {
	return mapper.BathHeaterHVACMode(b.isOn)
}

func (b *BathHeater) BathHeaterMode() int {
	return b.bathHeaterMode
}

func (b *BathHeater) Snapshot() domain.EntitySnapshot {
	return b.snapshot(b.climateState.values(b.HVACMode()), domain.EntityDescriptor{
		HVACModes:       mapper.HVACModeStrings(mapper.BathHeaterHVACModes),
		MinTemp:         mapper.BathHeaterMinTemp,
		MaxTemp:         mapper.BathHeaterMaxTemp,
		TemperatureStep: mapper.TemperatureStep,
		TemperatureUnit: b.unit,
	})
}

// Execute rejects modes other than off and heat with a warning: nothing is
// sent and no error is returned.
func (b *BathHeater) Execute(ctx context.Context, cmd domain.EntityCommand) error {
	var props domain.Props
	switch cmd.Kind {
	case domain.CommandSetTemperature:
		t, err := floatValue(cmd)
		if err != nil {
			return err
		}
		props = mapper.TemperatureProps(t)
	case domain.CommandSetHVACMode:
		p, err := mapper.BathHeaterHVACModeProps(mapper.HVACMode(cmd.Value))
		if errors.Is(err, domain.ErrUnsupportedCommand) {
			b.reject(cmd, err.Error())
			return nil
		}
		props = p
	case domain.CommandTurnOn:
		props = mapper.PowerProps(true)
	case domain.CommandTurnOff:
		props = mapper.PowerProps(false)
	default:
		return unsupported(cmd)
	}
	apply, err := b.send(ctx, props)
	if apply {
		b.Apply(props)
	}
	return err
}

func optionalFloat(v any) *float64 {
	f, ok := mapper.Float(v)
	if !ok {
		return nil
	}
	return &f
}
