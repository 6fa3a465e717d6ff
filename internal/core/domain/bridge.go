package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	BRIDGE_STATE_ID           = "bridge"
	DEVICE_CLASS_CONNECTIVITY = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC   = "diagnostic"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("yeelightpro_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "Yeelight Pro bridge",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Yeelight Pro %s", md5HashShort(baseTopic)),
	}
}

// IdDevice keeps only what HA needs to link an entity to a device that is
// already announced.
func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func UniqueId(deviceId, attr string) string {
	return fmt.Sprintf("uid_%s_%s", deviceId, attr)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}
