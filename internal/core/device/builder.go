package device

import (
	"fmt"

	"github.com/berfenger/yeelightpro2mqtt/internal/config"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/entity"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/port"

	"go.uber.org/zap"
)

const DEFAULT_MANUFACTURER = "Yeelight"

func DeviceFromConfig(cfg config.DeviceConfig) domain.Device {
	manufacturer := cfg.Manufacturer
	if manufacturer == "" {
		manufacturer = DEFAULT_MANUFACTURER
	}
	name := cfg.Name
	if name == "" {
		name = cfg.Id
	}
	return domain.Device{
		Id:           cfg.Id,
		Name:         name,
		Model:        cfg.Model,
		Manufacturer: manufacturer,
		ProductType:  cfg.ProductType,
	}
}

// NewSessionFromConfig builds a session with one entity per configured
// capability, all writing through sender.
func NewSessionFromConfig(cfg config.DeviceConfig, defaults config.EntitiesConfig, sender port.Sender,
	onReject entity.RejectHook, logger *zap.Logger) (*Session, error) {
	dev := DeviceFromConfig(cfg)
	session := NewSession(dev, logger)
	covers := 0
	for _, ec := range cfg.Entities {
		if domain.EntityKind(ec.Kind) == domain.KindCover {
			covers++
		}
	}
	for _, ec := range cfg.Entities {
		var policy entity.OptimisticPolicy
		if ec.Optimistic != "" {
			p, err := entity.ParseOptimisticPolicy(ec.Optimistic)
			if err != nil {
				return nil, fmt.Errorf("device %s entity %s: %w", cfg.Id, ec.Attr, err)
			}
			policy = p
		}
		e, err := entity.New(entity.Config{
			Device:          dev,
			Attr:            ec.Attr,
			Kind:            domain.EntityKind(ec.Kind),
			Name:            ec.Name,
			Props:           ec.Props,
			Policy:          policy,
			BathHeater:      ec.BathHeater,
			SoleCover:       covers == 1,
			Enum:            ec.Options,
			Placeholder:     defaults.SelectPlaceholder,
			TemperatureUnit: defaults.TemperatureUnit,
			OnReject:        onReject,
		}, sender, logger)
		if err != nil {
			return nil, err
		}
		if err := session.Add(e); err != nil {
			return nil, err
		}
	}
	return session, nil
}
