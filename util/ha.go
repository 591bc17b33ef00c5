package util

import (
	"encoding/json"
	"fmt"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

type HAAvdvertisementAvailability struct {
	Topic               string `json:"topic"`                 // : "pjlink/online"
	PayloadAvailable    string `json:"payload_available"`     // : "online"
	PayloadNotAvailable string `json:"payload_not_available"` // : "offline"
}

type HADeviceSpec struct {
	Name         string   `json:"name"` // : "Hall Projector"
	Identifiers  []string `json:"ids"`  // : ["pjlink_controller_hall"]
	Manufacturer string   `json:"mf,omitempty"`
	Model        string   `json:"mdl,omitempty"`
}

type HAAdvertisement struct { //nolint:govet // struct layout optimized for JSON field order
	HAAvdvertisementAvailability []HAAvdvertisementAvailability `json:"availability"`
	Device                       HADeviceSpec                   `json:"device"`
	UniqueID                     string                         `json:"uniq_id"`
	Name                         string                         `json:"name"`
	StateTopic                   string                         `json:"state_topic"`
	CommandTopic                 string                         `json:"command_topic,omitempty"`
	PayloadOn                    string                         `json:"payload_on,omitempty"`
	PayloadOff                   string                         `json:"payload_off,omitempty"`
	StateOn                      string                         `json:"state_on,omitempty"`
	StateOff                     string                         `json:"state_off,omitempty"`
	DeviceClass                  string                         `json:"device_class,omitempty"`
	UnitOfMeasurement            string                         `json:"unit_of_measurement,omitempty"`
	Icon                         string                         `json:"icon,omitempty"`
	Platform                     string                         `json:"platform"`
	Object                       string                         `json:"-"`
	Qos                          int                            `json:"qos"`
}

func (ha HAAdvertisement) ToJson() string {
	data, err := json.Marshal(ha)
	if err != nil {
		Logger.Error().Msgf("Error marshalling HAAdvertisement: %v", err)
		return ""
	}
	return string(data)
}

// DiscoveryTopic is where Home Assistant expects this entity's config.
func (ha HAAdvertisement) DiscoveryTopic() string {
	return fmt.Sprintf("homeassistant/%s/%s/%s/config", ha.Platform, ha.Device.Identifiers[0], ha.Object)
}

func haBase(p ProjectorConfig, object, platform string) HAAdvertisement {
	deviceID := Config.GetString("id_base") + "_" + p.Name
	return HAAdvertisement{
		Object:   object,
		Platform: platform,
		UniqueID: deviceID + "-" + object,
		HAAvdvertisementAvailability: []HAAvdvertisementAvailability{
			{
				Topic:               AvailabilityTopic(),
				PayloadAvailable:    "online",
				PayloadNotAvailable: "offline",
			},
		},
		Qos: 0,
		Device: HADeviceSpec{
			Name:        p.DisplayLabel(),
			Identifiers: []string{deviceID},
			Model:       "PJLink projector",
		},
	}
}

// ConstructHAAdvertisements returns the discovery entities for one projector:
// a power switch, input and lamp hour sensors, and a connectivity sensor.
func ConstructHAAdvertisements(p ProjectorConfig) []HAAdvertisement {
	power := haBase(p, "power", "switch")
	power.Name = "Power"
	power.StateTopic = ProjectorTopic(p.Name, LEAF_POWER)
	power.CommandTopic = ProjectorTopic(p.Name, "power/set")
	power.PayloadOn = "ON"
	power.PayloadOff = "OFF"
	power.StateOn = "on"
	power.StateOff = "off"
	power.Icon = "mdi:projector"

	input := haBase(p, "input", "sensor")
	input.Name = "Input"
	input.StateTopic = ProjectorTopic(p.Name, LEAF_INPUT)
	input.Icon = "mdi:video-input-hdmi"

	lamp := haBase(p, "lamp_hours", "sensor")
	lamp.Name = "Lamp hours"
	lamp.StateTopic = ProjectorTopic(p.Name, LEAF_LAMP_HOURS)
	lamp.DeviceClass = "duration"
	lamp.UnitOfMeasurement = "h"

	connected := haBase(p, "connected", "binary_sensor")
	connected.Name = "Connected"
	connected.StateTopic = ProjectorTopic(p.Name, LEAF_CONNECTED)
	connected.PayloadOn = "true"
	connected.PayloadOff = "false"
	connected.DeviceClass = "connectivity"

	return []HAAdvertisement{power, input, lamp, connected}
}

func AdvertiseHA(projectors []ProjectorConfig, client MQTT.Client) {
	for _, p := range projectors {
		for _, ha := range ConstructHAAdvertisements(p) {
			if token := client.Publish(ha.DiscoveryTopic(), 0, true, ha.ToJson()); token.Wait() && token.Error() != nil {
				Logger.Error().Msgf("Error Publishing: %v", fmt.Errorf("%v", token.Error()))
			}
		}
	}
}
