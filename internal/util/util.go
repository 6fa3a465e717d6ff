package util

import (
	"github.com/berfenger/yeelightpro2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "yeelightpro",
			HADiscoveryTopic: "homeassistant",
		},
		Modbus: config.ModbusConfig{
			Host:               "-.-.-.-",
			Port:               502,
			PollIntervalMillis: 0,
			TimeoutMillis:      1000,
		},
		Entities: config.EntitiesConfig{
			TemperatureUnit: "°C",
		},
		Devices: []config.DeviceConfig{
			{
				Id:        "living_room",
				Name:      "Living room",
				Transport: config.TRANSPORT_MQTT,
				Entities: []config.EntityConfig{
					{Attr: "curtain", Kind: "cover", Optimistic: "always"},
					{Attr: "ceiling_fan", Kind: "fan"},
				},
			},
			{
				Id:        "bathroom",
				Name:      "Bathroom",
				Transport: config.TRANSPORT_MQTT,
				Entities: []config.EntityConfig{
					{Attr: "heater", Kind: "climate", BathHeater: true},
				},
			},
		},
		Port: 8080,
	}
}
