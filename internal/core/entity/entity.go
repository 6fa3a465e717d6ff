// Package entity implements the per-capability adapters between raw device
// properties and host entity state. Each adapter owns its snapshot; the
// caller guarantees a single in-flight handler per device.
package entity

import (
	"context"
	"fmt"
	"maps"

	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/mapper"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/port"

	"go.uber.org/zap"
)

const VARIANT_BATH_HEATER = "bath_heater"

type Entity interface {
	Attr() string
	Kind() domain.EntityKind
	// Accepts reports whether a raw property key is of interest.
	Accepts(key string) bool
	// Apply folds an inbound update into the snapshot. Keys the entity does
	// not know are ignored, malformed values never fail.
	Apply(props domain.Props)
	Features() domain.FeatureSet
	Snapshot() domain.EntitySnapshot
	Execute(ctx context.Context, cmd domain.EntityCommand) error
}

// RejectHook is told about commands refused without a device write.
type RejectHook func(cmd domain.EntityCommand, reason string)

type Config struct {
	Device domain.Device
	Attr   string
	Kind   domain.EntityKind
	Name   string
	// Props are the raw properties the entity subscribes to, kind defaults
	// apply when empty.
	Props      []string
	Policy     OptimisticPolicy
	BathHeater bool
	// SoleCover marks the only cover of its device, which then also takes
	// angle keys it does not subscribe to.
	SoleCover bool
	// Enum maps raw select values to labels.
	Enum            map[string]string
	Placeholder     string
	TemperatureUnit string
	OnReject        RejectHook
}

func New(cfg Config, sender port.Sender, logger *zap.Logger) (Entity, error) {
	if cfg.Attr == "" {
		return nil, fmt.Errorf("entity of device %s has no attr", cfg.Device.Id)
	}
	switch cfg.Kind {
	case domain.KindCover:
		return NewCover(cfg, sender, logger), nil
	case domain.KindFan:
		return NewFan(cfg, sender, logger), nil
	case domain.KindSelect:
		return NewSelect(cfg, sender, logger), nil
	case domain.KindClimate:
		if cfg.BathHeater {
			return NewBathHeater(cfg, sender, logger), nil
		}
		return NewClimate(cfg, sender, logger), nil
	default:
		return nil, fmt.Errorf("entity %s/%s: unknown kind %q", cfg.Device.Id, cfg.Attr, cfg.Kind)
	}
}

// valueKey is the raw property of single-valued entities: the configured
// prop when there is one, the attr otherwise.
func valueKey(cfg Config) string {
	if len(cfg.Props) > 0 {
		return cfg.Props[0]
	}
	return cfg.Attr
}

type base struct {
	device     domain.Device
	attr       string
	name       string
	kind       domain.EntityKind
	variant    string
	subscribed map[string]struct{}
	sender     port.Sender
	policy     OptimisticPolicy
	features   domain.FeatureSet
	attributes map[string]any
	onReject   RejectHook
	logger     *zap.Logger
}

func newBase(cfg Config, defaultProps []string, sender port.Sender, logger *zap.Logger) base {
	props := cfg.Props
	if len(props) == 0 {
		props = defaultProps
	}
	policy := cfg.Policy
	if policy == "" {
		policy = DefaultPolicy(cfg.Kind)
	}
	name := cfg.Name
	if name == "" {
		name = cfg.Attr
	}
	b := base{
		device:     cfg.Device,
		attr:       cfg.Attr,
		name:       name,
		kind:       cfg.Kind,
		subscribed: map[string]struct{}{},
		sender:     sender,
		policy:     policy,
		attributes: map[string]any{},
		onReject:   cfg.OnReject,
		logger:     logger.With(zap.String("device", cfg.Device.Id), zap.String("entity", cfg.Attr)),
	}
	b.subscribe(props...)
	return b
}

func (b *base) subscribe(keys ...string) {
	for _, k := range keys {
		b.subscribed[k] = struct{}{}
	}
}

func (b *base) subscribedTo(keys ...string) bool {
	for _, k := range keys {
		if _, ok := b.subscribed[k]; ok {
			return true
		}
	}
	return false
}

func (b *base) Attr() string {
	return b.attr
}

func (b *base) Kind() domain.EntityKind {
	return b.kind
}

func (b *base) Accepts(key string) bool {
	return b.subscribedTo(key)
}

func (b *base) Features() domain.FeatureSet {
	return b.features
}

// send writes props and reports whether local state should follow under the
// entity policy. A transport error or an explicit failure is returned
// wrapped in ErrSendFailed.
func (b *base) send(ctx context.Context, props domain.Props) (bool, error) {
	outcome, err := b.sender.SendProps(ctx, props)
	if err != nil {
		outcome = domain.SendFailed
		err = fmt.Errorf("%w: %w", domain.ErrSendFailed, err)
	} else if outcome == domain.SendFailed {
		err = domain.ErrSendFailed
	}
	b.logger.Debug("entity send", zap.Any("props", props), zap.Stringer("outcome", outcome))
	return b.policy.ShouldApply(outcome), err
}

func (b *base) reject(cmd domain.EntityCommand, reason string) {
	b.logger.Warn("entity command rejected", zap.Stringer("command", cmd), zap.String("reason", reason))
	if b.onReject != nil {
		b.onReject(cmd, reason)
	}
}

func (b *base) snapshot(values map[string]any, descriptor domain.EntityDescriptor) domain.EntitySnapshot {
	return domain.EntitySnapshot{
		DeviceId:   b.device.Id,
		Attr:       b.attr,
		Kind:       b.kind,
		Name:       b.name,
		Variant:    b.variant,
		Values:     values,
		Attributes: maps.Clone(b.attributes),
		Features:   b.features,
		Descriptor: descriptor,
	}
}

func unsupported(cmd domain.EntityCommand) error {
	return fmt.Errorf("%w: %s", domain.ErrUnsupportedCommand, cmd)
}

func intValue(cmd domain.EntityCommand) (int, error) {
	v, ok := mapper.Int(cmd.Value)
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrInvalidCommandValue, cmd)
	}
	return v, nil
}

func floatValue(cmd domain.EntityCommand) (float64, error) {
	v, ok := mapper.Float(cmd.Value)
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrInvalidCommandValue, cmd)
	}
	return v, nil
}
