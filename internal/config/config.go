package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

const (
	TRANSPORT_MQTT   = "mqtt"
	TRANSPORT_MODBUS = "modbus"
)

type Config struct {
	LogLevel zapcore.Level
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Modbus   ModbusConfig   `mapstructure:"modbus"`
	Entities EntitiesConfig `mapstructure:"entities"`
	Devices  []DeviceConfig `mapstructure:"devices"`
	Port     uint           `mapstructure:"port"`
	HttpLog  bool           `mapstructure:"http_log"`
}

type MQTTConfig struct {
	Host                     string
	Port                     int
	Username                 string
	Password                 string
	BaseTopic                string `mapstructure:"base_topic"`
	HADiscoveryEnable        bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic         string `mapstructure:"ha_discovery_topic"`
	RepublishIntervalSeconds uint32 `mapstructure:"republish_interval_seconds"`
}

type ModbusConfig struct {
	Host                       string
	Port                       uint
	PollIntervalMillis         uint32 `mapstructure:"poll_interval_millis"`
	TimeoutMillis              uint32 `mapstructure:"timeout_millis"`
	ReadDelayAfterChangeMillis uint32 `mapstructure:"read_delay_after_change_millis"`
}

type EntitiesConfig struct {
	// SelectPlaceholder is offered by selects configured without options.
	SelectPlaceholder string `mapstructure:"select_placeholder"`
	TemperatureUnit   string `mapstructure:"temperature_unit"`
}

type DeviceConfig struct {
	Id                string
	Name              string
	Model             string
	Manufacturer      string
	ProductType       int              `mapstructure:"pt"`
	Transport         string           `mapstructure:"transport"`
	SendTimeoutMillis uint32           `mapstructure:"send_timeout_millis"`
	UnitId            uint8            `mapstructure:"unit_id"`
	Registers         []RegisterConfig `mapstructure:"registers"`
	Entities          []EntityConfig   `mapstructure:"entities"`
}

type EntityConfig struct {
	Attr       string
	Kind       string
	Name       string
	Props      []string
	Optimistic string            `mapstructure:"optimistic"`
	BathHeater bool              `mapstructure:"bath_heater"`
	Options    map[string]string `mapstructure:"options"`
}

type RegisterConfig struct {
	Prop     string
	Address  uint16
	Type     string
	Scale    float64
	Signed   bool
	Writable bool
	// Enum maps register values to the string the device property carries.
	Enum map[string]string
}

var deviceIdRegexp = regexp.MustCompile("^[a-z0-9_]+$")

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// CheckDevices validates the device list: unique lowercase ids, a known
// transport, unique entity attrs of a known kind.
func CheckDevices(devices []DeviceConfig) error {
	if len(devices) == 0 {
		return errors.New("no devices configured")
	}
	seen := map[string]bool{}
	for i := range devices {
		dev := &devices[i]
		dev.Id = strings.ToLower(dev.Id)
		if !deviceIdRegexp.MatchString(dev.Id) {
			return fmt.Errorf("device %q: id can only contain letters, numbers and underscores", dev.Id)
		}
		if seen[dev.Id] {
			return fmt.Errorf("device %q: duplicated id", dev.Id)
		}
		seen[dev.Id] = true
		if dev.Transport == "" {
			dev.Transport = TRANSPORT_MQTT
		}
		if dev.Transport != TRANSPORT_MQTT && dev.Transport != TRANSPORT_MODBUS {
			return fmt.Errorf("device %q: unknown transport %q", dev.Id, dev.Transport)
		}
		if dev.Transport == TRANSPORT_MODBUS && len(dev.Registers) == 0 {
			return fmt.Errorf("device %q: modbus transport needs registers", dev.Id)
		}
		if len(dev.Entities) == 0 {
			return fmt.Errorf("device %q: no entities", dev.Id)
		}
		attrs := map[string]bool{}
		for _, ent := range dev.Entities {
			if !deviceIdRegexp.MatchString(ent.Attr) {
				return fmt.Errorf("device %q: invalid entity attr %q", dev.Id, ent.Attr)
			}
			if attrs[ent.Attr] {
				return fmt.Errorf("device %q: duplicated entity %q", dev.Id, ent.Attr)
			}
			attrs[ent.Attr] = true
			switch ent.Kind {
			case "climate", "cover":
			case "fan", "select":
				if len(ent.Props) > 1 {
					return fmt.Errorf("device %q: %s entity %q takes a single prop", dev.Id, ent.Kind, ent.Attr)
				}
			default:
				return fmt.Errorf("device %q: entity %q has unknown kind %q", dev.Id, ent.Attr, ent.Kind)
			}
		}
	}
	return nil
}

func (c Config) HasModbusDevices() bool {
	for _, d := range c.Devices {
		if d.Transport == TRANSPORT_MODBUS {
			return true
		}
	}
	return false
}
