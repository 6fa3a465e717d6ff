package domain

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_MODBUS       = "modbus"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
	ACTOR_ID_DEVICE       = "device"
)

func DeviceActorId(deviceId string) string {
	return ACTOR_ID_DEVICE + "_" + deviceId
}

// SendDevicePropsRequest asks a transport actor to write raw properties.
type SendDevicePropsRequest struct {
	ActorRequestMixIn
	DeviceId string
	Props    Props
}

type SendDevicePropsResponse struct {
	ActorResponseMixIn
	Outcome SendOutcome
}

type EntityCommandRequest struct {
	ActorRequestMixIn
	Command EntityCommand
}

type EntityCommandResponse struct {
	ActorResponseMixIn
	Snapshot *EntitySnapshot
}

type GetDeviceStateRequest struct {
	ActorRequestMixIn
	DeviceId string
}

type GetDeviceStateResponse struct {
	ActorResponseMixIn
	Device    Device
	Entities  []EntitySnapshot
	Transport string
}

type GetDevicesRequest struct {
	ActorRequestMixIn
}

type GetDevicesResponse struct {
	ActorResponseMixIn
	Devices []Device
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishEntityStateRequest struct {
	ActorRequestMixIn
	Snapshot EntitySnapshot
}

type PublishEntityStateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Bridge   Device
	Entities []DiscoveryEntity
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

// DiscoveryEntity pairs a snapshot with the device it belongs to.
type DiscoveryEntity struct {
	Device   Device
	Snapshot EntitySnapshot
}

// RepublishDiscoveryRequest forces a full discovery + state refresh.
type RepublishDiscoveryRequest struct {
	ActorRequestMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}

// RepublishStateRequest asks a device actor to publish every entity snapshot
// again, regardless of changes.
type RepublishStateRequest struct {
	ActorRequestMixIn
}

type RepublishStateResponse struct {
	ActorResponseMixIn
}

type RepublishDiscoveryResponse struct {
	ActorResponseMixIn
}
