package domain

import "fmt"

type DeviceEventMixIn struct {
	DeviceId string
}

type DeviceEvent interface {
	DeviceEvent() string
	EventDeviceId() string
}

func (e DeviceEventMixIn) DeviceEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e DeviceEventMixIn) EventDeviceId() string {
	return e.DeviceId
}

// DevicePropsEvent carries an inbound raw property update from a transport.
type DevicePropsEvent struct {
	DeviceEventMixIn
	Props Props
}

// EntityStateEvent is published on the event stream every time an entity
// snapshot may have changed.
type EntityStateEvent struct {
	DeviceEventMixIn
	Snapshot EntitySnapshot
}

// EntityFeaturesEvent is published when an entity capability set changed
// after construction, so the host can refresh what it offers.
type EntityFeaturesEvent struct {
	DeviceEventMixIn
	Snapshot EntitySnapshot
	Added    FeatureSet
	Removed  FeatureSet
}

// CommandRejectedEvent is published when an entity refused a command without
// contacting the device.
type CommandRejectedEvent struct {
	DeviceEventMixIn
	Command EntityCommand
	Reason  string
}

type BridgeStateUpdateEvent struct {
	Online bool
}
