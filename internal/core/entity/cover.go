package entity

import (
	"context"

	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/mapper"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/port"

	"go.uber.org/zap"
)

const (
	COVER_STATE_OPEN    = "open"
	COVER_STATE_CLOSED  = "closed"
	COVER_STATE_OPENING = "opening"
	COVER_STATE_CLOSING = "closing"

	COVER_DEVICE_CLASS = "curtain"
)

var defaultCoverProps = []string{
	mapper.PROP_CURRENT_POSITION,
	mapper.PROP_POSITION,
	mapper.PROP_RUN_STATE,
	mapper.PROP_ROUTE_CALIBRATED,
	mapper.PROP_TILT_ROUTE_CALIBRATED,
}

const coverFeatures = domain.FeatureOpen | domain.FeatureClose | domain.FeatureStop | domain.FeatureSetPosition

// Cover drives a curtain or blind motor. The same product line ships with
// and without a tilt motor, so tilt support is discovered at runtime.
type Cover struct {
	base
	position int
	tilt     *int
	closed   bool
	motion   mapper.CoverMotion
	// anyAngle takes angle keys without subscribing to them.
	anyAngle bool
}

func NewCover(cfg Config, sender port.Sender, logger *zap.Logger) *Cover {
	c := &Cover{
		base:     newBase(cfg, defaultCoverProps, sender, logger),
		closed:   true,
		anyAngle: cfg.SoleCover,
	}
	c.features = coverFeatures
	if c.subscribedTo(mapper.PROP_CURRENT_ANGLE, mapper.PROP_TARGET_ANGLE) ||
		cfg.Device.ProductType == mapper.ProductTypeTiltCurtain {
		c.features = c.features.With(domain.FeaturesTilt)
	}
	return c
}

// Accepts angle keys even when not subscribed if this is the device's only
// cover: seeing one enables tilt.
func (c *Cover) Accepts(key string) bool {
	if c.base.Accepts(key) {
		return true
	}
	return c.anyAngle && (key == mapper.PROP_CURRENT_ANGLE || key == mapper.PROP_TARGET_ANGLE)
}

func (c *Cover) Apply(props domain.Props) {
	if v, ok := props[mapper.PROP_ROUTE_CALIBRATED]; ok {
		c.attributes[mapper.PROP_ROUTE_CALIBRATED] = mapper.Bool(v)
	}
	if v, ok := props[mapper.PROP_TILT_ROUTE_CALIBRATED]; ok {
		c.attributes[mapper.PROP_TILT_ROUTE_CALIBRATED] = mapper.Bool(v)
	}
	if v, ok := props[mapper.PROP_CURRENT_POSITION]; ok {
		if position, closed, ok := mapper.CoverPosition(v); ok {
			c.position = position
			c.closed = closed
		} else {
			c.logger.Debug("cover: malformed position", zap.Any("value", v))
		}
	}
	if v, ok := props[mapper.PROP_POSITION]; ok {
		c.attributes["target_position"] = v
	}
	if v, ok := props[mapper.PROP_CURRENT_ANGLE]; ok && c.Accepts(mapper.PROP_CURRENT_ANGLE) {
		c.attributes[mapper.PROP_CURRENT_ANGLE] = v
		c.tilt = mapper.TiltPosition(v)
	}
	if v, ok := props[mapper.PROP_TARGET_ANGLE]; ok && c.Accepts(mapper.PROP_TARGET_ANGLE) {
		c.attributes[mapper.PROP_TARGET_ANGLE] = v
	}
	if v, ok := props[mapper.PROP_RUN_STATE]; ok {
		c.motion = mapper.CoverMotionFromRunState(v)
	}
	if c.acceptsAngle(props) {
		c.features = c.features.With(domain.FeaturesTilt)
	}
}

func (c *Cover) acceptsAngle(props domain.Props) bool {
	for _, key := range []string{mapper.PROP_CURRENT_ANGLE, mapper.PROP_TARGET_ANGLE} {
		if props.Has(key) && c.Accepts(key) {
			return true
		}
	}
	return false
}

func (c *Cover) Position() int {
	return c.position
}

func (c *Cover) TiltPosition() *int {
	return c.tilt
}

func (c *Cover) IsClosed() bool {
	return c.closed
}

func (c *Cover) IsOpening() bool {
	return c.motion == mapper.CoverOpening
}

func (c *Cover) IsClosing() bool {
	return c.motion == mapper.CoverClosing
}

func (c *Cover) state() string {
	switch {
	case c.IsOpening():
		return COVER_STATE_OPENING
	case c.IsClosing():
		return COVER_STATE_CLOSING
	case c.closed:
		return COVER_STATE_CLOSED
	default:
		return COVER_STATE_OPEN
	}
}

func (c *Cover) Snapshot() domain.EntitySnapshot {
	values := map[string]any{
		domain.VALUE_POSITION:   c.position,
		domain.VALUE_STATE:      c.state(),
		domain.VALUE_IS_CLOSED:  c.closed,
		domain.VALUE_IS_OPENING: c.IsOpening(),
		domain.VALUE_IS_CLOSING: c.IsClosing(),
	}
	if c.tilt != nil {
		values[domain.VALUE_TILT_POSITION] = *c.tilt
	} else {
		values[domain.VALUE_TILT_POSITION] = nil
	}
	return c.snapshot(values, domain.EntityDescriptor{DeviceClass: COVER_DEVICE_CLASS})
}

func (c *Cover) Execute(ctx context.Context, cmd domain.EntityCommand) error {
	switch cmd.Kind {
	case domain.CommandOpen:
		return c.command(ctx, mapper.CoverOpenProps())
	case domain.CommandClose:
		return c.command(ctx, mapper.CoverCloseProps())
	case domain.CommandStop:
		return c.command(ctx, mapper.CoverStopProps())
	case domain.CommandSetPosition:
		position, err := intValue(cmd)
		if err != nil {
			return err
		}
		return c.command(ctx, mapper.CoverPositionProps(position))
	case domain.CommandOpenTilt, domain.CommandCloseTilt, domain.CommandStopTilt, domain.CommandSetTiltPosition:
		if !c.features.Has(domain.FeatureSetTiltPosition) {
			return unsupported(cmd)
		}
		return c.executeTilt(ctx, cmd)
	default:
		return unsupported(cmd)
	}
}

func (c *Cover) executeTilt(ctx context.Context, cmd domain.EntityCommand) error {
	switch cmd.Kind {
	case domain.CommandOpenTilt:
		return c.command(ctx, mapper.CoverOpenTiltProps())
	case domain.CommandCloseTilt:
		return c.command(ctx, mapper.CoverCloseTiltProps())
	case domain.CommandStopTilt:
		return c.command(ctx, mapper.CoverStopProps())
	default:
		tilt, err := intValue(cmd)
		if err != nil {
			return err
		}
		return c.command(ctx, mapper.CoverTiltProps(tilt))
	}
}

func (c *Cover) command(ctx context.Context, props domain.Props) error {
	apply, err := c.send(ctx, props)
	if apply {
		c.Apply(props)
	}
	return err
}
