package mqtt

import (
	"fmt"

	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
)

const (
	HA_COMPONENT_BINARY_SENSOR = "binary_sensor"
	HA_PLATFORM                = "mqtt"
)

// HADiscoveryConfig is the discovery payload of every component this bridge
// announces. Fields unused by a component are omitted.
type HADiscoveryConfig struct {
	Device              HADiscoveryDevice `json:"device"`
	Name                string            `json:"name"`
	UniqueId            string            `json:"unique_id"`
	Platform            string            `json:"platform"`
	AvTopic             string            `json:"availability_topic,omitempty"`
	DeviceClass         string            `json:"device_class,omitempty"`
	EntityCategory      string            `json:"entity_category,omitempty"`
	Icon                string            `json:"icon,omitempty"`
	StateTopic          string            `json:"state_topic,omitempty"`
	ValueTemplate       string            `json:"value_template,omitempty"`
	JsonAttributesTopic string            `json:"json_attributes_topic,omitempty"`
	CommandTopic        string            `json:"command_topic,omitempty"`
	PayloadOn           string            `json:"payload_on,omitempty"`
	PayloadOff          string            `json:"payload_off,omitempty"`

	// cover
	PayloadOpen        string `json:"payload_open,omitempty"`
	PayloadClose       string `json:"payload_close,omitempty"`
	PayloadStop        string `json:"payload_stop,omitempty"`
	PositionTopic      string `json:"position_topic,omitempty"`
	PositionTemplate   string `json:"position_template,omitempty"`
	SetPositionTopic   string `json:"set_position_topic,omitempty"`
	TiltStatusTopic    string `json:"tilt_status_topic,omitempty"`
	TiltStatusTemplate string `json:"tilt_status_template,omitempty"`
	TiltCommandTopic   string `json:"tilt_command_topic,omitempty"`

	// fan
	PercentageStateTopic    string   `json:"percentage_state_topic,omitempty"`
	PercentageValueTemplate string   `json:"percentage_value_template,omitempty"`
	PercentageCommandTopic  string   `json:"percentage_command_topic,omitempty"`
	PresetModeStateTopic    string   `json:"preset_mode_state_topic,omitempty"`
	PresetModeValueTemplate string   `json:"preset_mode_value_template,omitempty"`
	PresetModeCommandTopic  string   `json:"preset_mode_command_topic,omitempty"`
	PresetModes             []string `json:"preset_modes,omitempty"`

	// climate
	ModeStateTopic             string   `json:"mode_state_topic,omitempty"`
	ModeStateTemplate          string   `json:"mode_state_template,omitempty"`
	ModeCommandTopic           string   `json:"mode_command_topic,omitempty"`
	Modes                      []string `json:"modes,omitempty"`
	TemperatureStateTopic      string   `json:"temperature_state_topic,omitempty"`
	TemperatureStateTemplate   string   `json:"temperature_state_template,omitempty"`
	TemperatureCommandTopic    string   `json:"temperature_command_topic,omitempty"`
	CurrentTemperatureTopic    string   `json:"current_temperature_topic,omitempty"`
	CurrentTemperatureTemplate string   `json:"current_temperature_template,omitempty"`
	CurrentHumidityTopic       string   `json:"current_humidity_topic,omitempty"`
	CurrentHumidityTemplate    string   `json:"current_humidity_template,omitempty"`
	FanModeStateTopic          string   `json:"fan_mode_state_topic,omitempty"`
	FanModeStateTemplate       string   `json:"fan_mode_state_template,omitempty"`
	FanModeCommandTopic        string   `json:"fan_mode_command_topic,omitempty"`
	FanModes                   []string `json:"fan_modes,omitempty"`
	PowerCommandTopic          string   `json:"power_command_topic,omitempty"`
	MinTemp                    float64  `json:"min_temp,omitempty"`
	MaxTemp                    float64  `json:"max_temp,omitempty"`
	TempStep                   float64  `json:"temp_step,omitempty"`
	TemperatureUnit            string   `json:"temperature_unit,omitempty"`

	// select
	Options []string `json:"options,omitempty"`
}

type HADiscoveryDevice struct {
	Id           []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Version      string   `json:"sw_version,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

func HADiscoveryEntityTopic(prefix string, snapshot domain.EntitySnapshot) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", prefix, snapshot.Kind, snapshot.DeviceId, snapshot.Attr)
}

func HADiscoveryBridgeTopic(prefix string, bridge domain.Device) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", prefix, HA_COMPONENT_BINARY_SENSOR, bridge.Id, domain.BRIDGE_STATE_ID)
}

func BridgeToHADiscoveryMessage(client *MQTTClient, bridge domain.Device) HADiscoveryConfig {
	return HADiscoveryConfig{
		Device:         device(bridge),
		Name:           "Connection state",
		UniqueId:       domain.UniqueId(bridge.Id, domain.BRIDGE_STATE_ID),
		Platform:       HA_PLATFORM,
		StateTopic:     client.BridgeStateTopic(),
		DeviceClass:    domain.DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: domain.ENTITY_CLASS_DIAGNOSTIC,
		PayloadOn:      MQTT_PAYLOAD_ONLINE,
		PayloadOff:     MQTT_PAYLOAD_OFFLINE,
	}
}

// EntityToHADiscoveryMessage announces an entity. Command topics are only
// advertised for the features the snapshot currently has.
func EntityToHADiscoveryMessage(client *MQTTClient, dev domain.Device, snapshot domain.EntitySnapshot) HADiscoveryConfig {
	stateTopic := client.EntityStateTopic(snapshot.Kind, snapshot.DeviceId, snapshot.Attr)
	cmdTopic := func(command string) string {
		return client.EntityCommandTopic(snapshot.Kind, snapshot.DeviceId, snapshot.Attr, command)
	}
	features := snapshot.Features
	desc := snapshot.Descriptor

	disConfig := HADiscoveryConfig{
		Device:              device(dev),
		Name:                snapshot.Name,
		UniqueId:            domain.UniqueId(snapshot.DeviceId, snapshot.Attr),
		Platform:            HA_PLATFORM,
		AvTopic:             client.BridgeStateTopic(),
		DeviceClass:         desc.DeviceClass,
		JsonAttributesTopic: client.EntityAttributesTopic(snapshot.Kind, snapshot.DeviceId, snapshot.Attr),
	}

	switch snapshot.Kind {
	case domain.KindCover:
		disConfig.StateTopic = stateTopic
		disConfig.ValueTemplate = valueTemplate(domain.VALUE_STATE)
		disConfig.CommandTopic = cmdTopic(MQTT_COMMAND_GENERIC)
		disConfig.PayloadOpen = string(domain.CommandOpen)
		disConfig.PayloadClose = string(domain.CommandClose)
		disConfig.PayloadStop = string(domain.CommandStop)
		if features.Has(domain.FeatureSetPosition) {
			disConfig.PositionTopic = stateTopic
			disConfig.PositionTemplate = valueTemplate(domain.VALUE_POSITION)
			disConfig.SetPositionTopic = cmdTopic(string(domain.CommandSetPosition))
		}
		if features.Has(domain.FeatureSetTiltPosition) {
			disConfig.TiltStatusTopic = stateTopic
			disConfig.TiltStatusTemplate = valueTemplate(domain.VALUE_TILT_POSITION)
			disConfig.TiltCommandTopic = cmdTopic(string(domain.CommandSetTiltPosition))
		}
	case domain.KindFan:
		disConfig.StateTopic = stateTopic
		disConfig.ValueTemplate = fmt.Sprintf("{{ '%s' if value_json.%s else '%s' }}", MQTT_PAYLOAD_ON, domain.VALUE_IS_ON, MQTT_PAYLOAD_OFF)
		disConfig.CommandTopic = cmdTopic(MQTT_COMMAND_GENERIC)
		disConfig.PayloadOn = MQTT_PAYLOAD_ON
		disConfig.PayloadOff = MQTT_PAYLOAD_OFF
		if features.Has(domain.FeatureSetSpeed) {
			disConfig.PercentageStateTopic = stateTopic
			disConfig.PercentageValueTemplate = valueTemplate(domain.VALUE_PERCENTAGE)
			disConfig.PercentageCommandTopic = cmdTopic(string(domain.CommandSetPercentage))
		}
		if features.Has(domain.FeaturePresetMode) {
			disConfig.PresetModeStateTopic = stateTopic
			disConfig.PresetModeValueTemplate = valueTemplate("preset_mode")
			disConfig.PresetModeCommandTopic = cmdTopic(string(domain.CommandSetPresetMode))
			disConfig.PresetModes = desc.PresetModes
		}
	case domain.KindClimate:
		disConfig.ModeStateTopic = stateTopic
		disConfig.ModeStateTemplate = valueTemplate(domain.VALUE_HVAC_MODE)
		disConfig.ModeCommandTopic = cmdTopic(string(domain.CommandSetHVACMode))
		disConfig.Modes = desc.HVACModes
		disConfig.CurrentTemperatureTopic = stateTopic
		disConfig.CurrentTemperatureTemplate = valueTemplate(domain.VALUE_CURRENT_TEMPERATURE)
		if features.Has(domain.FeatureTargetTemperature) {
			disConfig.TemperatureStateTopic = stateTopic
			disConfig.TemperatureStateTemplate = valueTemplate(domain.VALUE_TARGET_TEMPERATURE)
			disConfig.TemperatureCommandTopic = cmdTopic(string(domain.CommandSetTemperature))
		}
		if features.Has(domain.FeatureFanMode) {
			disConfig.FanModeStateTopic = stateTopic
			disConfig.FanModeStateTemplate = valueTemplate(domain.VALUE_FAN_MODE)
			disConfig.FanModeCommandTopic = cmdTopic(string(domain.CommandSetFanMode))
			disConfig.FanModes = desc.FanModes
		}
		if features.Has(domain.FeatureTurnOn) {
			disConfig.PowerCommandTopic = cmdTopic(MQTT_COMMAND_GENERIC)
			disConfig.PayloadOn = MQTT_PAYLOAD_ON
			disConfig.PayloadOff = MQTT_PAYLOAD_OFF
		}
		if snapshot.Variant == "" {
			disConfig.CurrentHumidityTopic = stateTopic
			disConfig.CurrentHumidityTemplate = valueTemplate(domain.VALUE_CURRENT_HUMIDITY)
		}
		disConfig.MinTemp = desc.MinTemp
		disConfig.MaxTemp = desc.MaxTemp
		disConfig.TempStep = desc.TemperatureStep
		disConfig.TemperatureUnit = desc.TemperatureUnit
	case domain.KindSelect:
		disConfig.StateTopic = stateTopic
		disConfig.ValueTemplate = valueTemplate(domain.VALUE_OPTION)
		disConfig.CommandTopic = cmdTopic(string(domain.CommandSelectOption))
		disConfig.Options = desc.Options
	}
	return disConfig
}

func valueTemplate(key string) string {
	return fmt.Sprintf("{{ value_json.%s }}", key)
}

func device(d domain.Device) HADiscoveryDevice {
	return HADiscoveryDevice{
		Id:           []string{d.Id},
		Manufacturer: d.Manufacturer,
		Version:      d.Version,
		Model:        d.Model,
		Name:         d.Name,
		ViaDevice:    d.ViaDevice,
	}
}
