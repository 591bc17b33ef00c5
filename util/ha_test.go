package util

import (
	"encoding/json"
	"strings"
	"testing"
)

func testProjector() ProjectorConfig {
	return ProjectorConfig{Name: "hall", Address: "10.0.0.5", Label: "Hall Projector"}
}

func TestConstructHAAdvertisements(t *testing.T) {
	Config.Set("id_base", "pjlink_controller")
	ads := ConstructHAAdvertisements(testProjector())

	if len(ads) != 4 {
		t.Fatalf("Expected 4 entities, got %d", len(ads))
	}

	tests := []struct {
		object     string
		platform   string
		stateTopic string
	}{
		{"power", "switch", "pjlink/hall/power"},
		{"input", "sensor", "pjlink/hall/input"},
		{"lamp_hours", "sensor", "pjlink/hall/lamp_hours"},
		{"connected", "binary_sensor", "pjlink/hall/connected"},
	}

	for i, tt := range tests {
		t.Run(tt.object, func(t *testing.T) {
			ad := ads[i]
			if ad.Object != tt.object {
				t.Errorf("Object = %s, expected %s", ad.Object, tt.object)
			}
			if ad.Platform != tt.platform {
				t.Errorf("Platform = %s, expected %s", ad.Platform, tt.platform)
			}
			if ad.StateTopic != tt.stateTopic {
				t.Errorf("StateTopic = %s, expected %s", ad.StateTopic, tt.stateTopic)
			}
			if ad.UniqueID != "pjlink_controller_hall-"+tt.object {
				t.Errorf("UniqueID = %s, expected pjlink_controller_hall-%s", ad.UniqueID, tt.object)
			}
			if ad.Device.Name != "Hall Projector" {
				t.Errorf("Device name = %s, expected 'Hall Projector'", ad.Device.Name)
			}
			if len(ad.HAAvdvertisementAvailability) != 1 || ad.HAAvdvertisementAvailability[0].Topic != "pjlink/online" {
				t.Errorf("Availability = %+v, expected pjlink/online", ad.HAAvdvertisementAvailability)
			}
		})
	}

	power := ads[0]
	if power.CommandTopic != "pjlink/hall/power/set" {
		t.Errorf("power CommandTopic = %s, expected pjlink/hall/power/set", power.CommandTopic)
	}
	if power.PayloadOn != "ON" || power.StateOn != "on" || power.StateOff != "off" {
		t.Errorf("power payloads = %s/%s/%s", power.PayloadOn, power.StateOn, power.StateOff)
	}
	if ads[2].UnitOfMeasurement != "h" {
		t.Errorf("lamp unit = %s, expected h", ads[2].UnitOfMeasurement)
	}
	if ads[3].DeviceClass != "connectivity" {
		t.Errorf("connected DeviceClass = %s, expected connectivity", ads[3].DeviceClass)
	}
}

func TestHAAdvertisement_DiscoveryTopic(t *testing.T) {
	Config.Set("id_base", "pjlink_controller")
	ads := ConstructHAAdvertisements(testProjector())

	expected := "homeassistant/switch/pjlink_controller_hall/power/config"
	if ads[0].DiscoveryTopic() != expected {
		t.Errorf("DiscoveryTopic() = %s, expected %s", ads[0].DiscoveryTopic(), expected)
	}
}

func TestHAAdvertisement_ToJson(t *testing.T) {
	Config.Set("id_base", "pjlink_controller")
	ads := ConstructHAAdvertisements(testProjector())

	jsonStr := ads[1].ToJson()
	if jsonStr == "" {
		t.Fatal("ToJson() returned empty string")
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		t.Fatalf("ToJson() produced invalid JSON: %v", err)
	}

	if parsed["state_topic"] != "pjlink/hall/input" {
		t.Errorf("state_topic = %v, expected pjlink/hall/input", parsed["state_topic"])
	}
	// input is read only
	for _, key := range []string{"command_topic", "payload_on", "unit_of_measurement"} {
		if _, ok := parsed[key]; ok {
			t.Errorf("key %s should be omitted for the input sensor", key)
		}
	}
	if strings.Contains(jsonStr, "\"Object\"") {
		t.Error("Object is internal and must not be serialized")
	}
}

func TestAdvertiseHA(t *testing.T) {
	Config.Set("id_base", "pjlink_controller")
	mockClient := &MockMQTTClient{connected: true}

	projectors := []ProjectorConfig{
		testProjector(),
		{Name: "booth", Address: "10.0.0.6"},
	}
	AdvertiseHA(projectors, mockClient)

	calls := mockClient.Published()
	if len(calls) != 8 {
		t.Fatalf("Expected 8 discovery messages, got %d", len(calls))
	}
	for _, call := range calls {
		if !strings.HasPrefix(call.Topic, "homeassistant/") || !strings.HasSuffix(call.Topic, "/config") {
			t.Errorf("unexpected discovery topic %s", call.Topic)
		}
		if !call.Retained {
			t.Errorf("discovery message on %s should be retained", call.Topic)
		}
	}

	booth, ok := mockClient.PublishedTo("homeassistant/binary_sensor/pjlink_controller_booth/connected/config")
	if !ok {
		t.Fatal("booth connectivity entity not advertised")
	}
	var parsed HAAdvertisement
	if err := json.Unmarshal([]byte(booth.Payload.(string)), &parsed); err != nil {
		t.Fatalf("invalid discovery payload: %v", err)
	}
	if parsed.Device.Name != "booth" {
		t.Errorf("Device name = %s, expected the projector name when no label is set", parsed.Device.Name)
	}
}
