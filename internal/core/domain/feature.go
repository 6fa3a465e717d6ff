package domain

// FeatureSet is the capability set an entity advertises to the host.
// Bits are shared across entity kinds; each kind only uses its own subset.
type FeatureSet uint32

const (
	FeatureOpen FeatureSet = 1 << iota
	FeatureClose
	FeatureStop
	FeatureSetPosition
	FeatureOpenTilt
	FeatureCloseTilt
	FeatureStopTilt
	FeatureSetTiltPosition
	FeatureTargetTemperature
	FeatureFanMode
	FeatureTurnOn
	FeatureTurnOff
	FeatureSetSpeed
	FeaturePresetMode
)

const FeaturesTilt = FeatureOpenTilt | FeatureCloseTilt | FeatureStopTilt | FeatureSetTiltPosition

var featureNames = []struct {
	feature FeatureSet
	name    string
}{
	{FeatureOpen, "open"},
	{FeatureClose, "close"},
	{FeatureStop, "stop"},
	{FeatureSetPosition, "set_position"},
	{FeatureOpenTilt, "open_tilt"},
	{FeatureCloseTilt, "close_tilt"},
	{FeatureStopTilt, "stop_tilt"},
	{FeatureSetTiltPosition, "set_tilt_position"},
	{FeatureTargetTemperature, "target_temperature"},
	{FeatureFanMode, "fan_mode"},
	{FeatureTurnOn, "turn_on"},
	{FeatureTurnOff, "turn_off"},
	{FeatureSetSpeed, "set_speed"},
	{FeaturePresetMode, "preset_mode"},
}

// Has reports whether every bit of f is present.
func (s FeatureSet) Has(f FeatureSet) bool {
	return s&f == f
}

func (s FeatureSet) With(f FeatureSet) FeatureSet {
	return s | f
}

func (s FeatureSet) Without(f FeatureSet) FeatureSet {
	return s &^ f
}

// Diff returns the features present in next but not in s, and the ones
// present in s but gone from next.
func (s FeatureSet) Diff(next FeatureSet) (added, removed FeatureSet) {
	return next &^ s, s &^ next
}

func (s FeatureSet) Names() []string {
	names := []string{}
	for _, fn := range featureNames {
		if s.Has(fn.feature) {
			names = append(names, fn.name)
		}
	}
	return names
}
