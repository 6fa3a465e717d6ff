package domain

import "encoding/json"

type Device struct {
	Id           string `json:"id"`
	Name         string `json:"name"`
	Version      string `json:"version,omitempty"`
	Model        string `json:"model,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	ViaDevice    string `json:"via_device,omitempty"`
	// ProductType is the vendor "pt" marker, 0 when unknown.
	ProductType int `json:"pt,omitempty"`
}

// EntityKind is the host platform component an entity is exposed as.
type EntityKind string

const (
	KindClimate EntityKind = "climate"
	KindCover   EntityKind = "cover"
	KindFan     EntityKind = "fan"
	KindSelect  EntityKind = "select"
)

func (k EntityKind) Valid() bool {
	switch k {
	case KindClimate, KindCover, KindFan, KindSelect:
		return true
	}
	return false
}

// Normalized value keys shared by entity snapshots and host state payloads.
const (
	VALUE_POSITION            = "position"
	VALUE_TILT_POSITION       = "tilt_position"
	VALUE_STATE               = "state"
	VALUE_IS_CLOSED           = "is_closed"
	VALUE_IS_OPENING          = "is_opening"
	VALUE_IS_CLOSING          = "is_closing"
	VALUE_IS_ON               = "is_on"
	VALUE_PERCENTAGE          = "percentage"
	VALUE_HVAC_MODE           = "hvac_mode"
	VALUE_MODE                = "mode"
	VALUE_FAN_MODE            = "fan_mode"
	VALUE_CURRENT_TEMPERATURE = "current_temperature"
	VALUE_TARGET_TEMPERATURE  = "target_temperature"
	VALUE_CURRENT_HUMIDITY    = "current_humidity"
	VALUE_OPTION              = "option"
)

// EntitySnapshot is the host-facing view of one entity after the last update.
type EntitySnapshot struct {
	DeviceId   string         `json:"device_id"`
	Attr       string         `json:"attr"`
	Kind       EntityKind     `json:"kind"`
	Name       string         `json:"name"`
	Variant    string         `json:"variant,omitempty"`
	Values     map[string]any `json:"values"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Features   FeatureSet     `json:"-"`
	// Descriptor carries the static host metadata (mode lists, option lists,
	// bounds) that discovery needs.
	Descriptor EntityDescriptor `json:"-"`
}

// MarshalJSON serializes the feature bit set as its names.
func (s EntitySnapshot) MarshalJSON() ([]byte, error) {
	type snapshot EntitySnapshot
	return json.Marshal(struct {
		snapshot
		Features []string `json:"features"`
	}{snapshot(s), s.Features.Names()})
}

type EntityDescriptor struct {
	DeviceClass     string
	HVACModes       []string
	FanModes        []string
	PresetModes     []string
	Options         []string
	MinTemp         float64
	MaxTemp         float64
	TemperatureStep float64
	TemperatureUnit string
	SpeedCount      int
}
