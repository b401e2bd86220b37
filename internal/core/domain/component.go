package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE    = "bridge"
	STATE_CLASS_MEASUREMENT   = "measurement"
	DEVICE_CLASS_TEMPERATURE  = "temperature"
	DEVICE_CLASS_VOLTAGE      = "voltage"
	DEVICE_CLASS_CONNECTIVITY = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC   = "diagnostic"
	SENSOR_TYPE_SENSOR        = "sensor"
	SENSOR_TYPE_BINARY        = "binary_sensor"
)

type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	ViaDevice    string
}

type GenericSensor struct {
	Device            Device
	Id                string
	SensorType        string
	Element           ElementKind
	Name              string
	UniqueId          string
	UnitOfMeasurement string
	StateClass        string // measurement
	DeviceClass       string // temperature, voltage, connectivity
	EntityCategory    string // diagnostic, nil
	EnabledByDefault  *bool
	Icon              string
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("fanning_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "tuupertunut",
		Model:        "Fanning",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Fanning %s", md5HashShort(baseTopic)),
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Element:        ElementKindHardware,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	}}
}

func HardwareDevice(hw HardwareView, viaDevice string) Device {
	return Device{
		Id:        fmt.Sprintf("fanning_hw_%s", md5HashShort(hw.ID)),
		Name:      hw.Name,
		ViaDevice: viaDevice,
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

// HardwareSensors lists one entity per sensor and one per controller of a
// single hardware item, children excluded.
func HardwareSensors(device Device, hw HardwareView) []GenericSensor {
	var sensors []GenericSensor

	for _, s := range hw.Sensors {
		sensors = append(sensors, GenericSensor{
			Device:            device,
			Id:                s.ID,
			SensorType:        SENSOR_TYPE_SENSOR,
			Element:           ElementKindSensor,
			Name:              s.Name,
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       deviceClass(s.Type),
			UnitOfMeasurement: s.Unit,
			Icon:              icon(s.Type),
			UniqueId:          uniqueId(device.Id, s.ID),
		})
	}

	for _, c := range hw.Controllers {
		sensors = append(sensors, GenericSensor{
			Device:            device,
			Id:                c.ID,
			SensorType:        SENSOR_TYPE_SENSOR,
			Element:           ElementKindController,
			Name:              fmt.Sprintf("%s control", c.Name),
			StateClass:        STATE_CLASS_MEASUREMENT,
			UnitOfMeasurement: c.Unit,
			Icon:              "mdi:tune-vertical",
			UniqueId:          uniqueId(device.Id, "controller_"+c.ID),
		})
	}

	return sensors
}

func deviceClass(sensorType string) string {
	switch strings.ToLower(sensorType) {
	case "temperature":
		return DEVICE_CLASS_TEMPERATURE
	case "voltage":
		return DEVICE_CLASS_VOLTAGE
	}
	return ""
}

func icon(sensorType string) string {
	if strings.EqualFold(sensorType, "fan speed") {
		return "mdi:fan"
	}
	return ""
}

func uniqueId(deviceId string, sensorId string) string {
	return fmt.Sprintf("%s_%s", deviceId, sensorId)
}

func md5HashShort(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])[0:6]
}
