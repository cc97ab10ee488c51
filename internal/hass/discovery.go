package hass

import "encoding/json"

// DeviceInfo holds the Home Assistant device registry fields shared by every
// entity of a device. All entities reference the same block so the hub
// groups them under a single device page.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// EntityConfig is the discovery payload for one entity. Field order is
// fixed by the struct, so marshalling the same value twice yields identical
// bytes.
type EntityConfig struct {
	Name              string     `json:"name"`
	UniqueID          string     `json:"unique_id"`
	Device            DeviceInfo `json:"device"`
	StateTopic        string     `json:"state_topic"`
	CommandTopic      string     `json:"command_topic,omitempty"`
	AvailabilityTopic string     `json:"availability_topic,omitempty"`
	UnitOfMeasurement string     `json:"unit_of_measurement,omitempty"`
	DeviceClass       string     `json:"device_class,omitempty"`
	StateClass        string     `json:"state_class,omitempty"`

	// number only
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
	Step *float64 `json:"step,omitempty"`
	Mode string   `json:"mode,omitempty"`
}

// Marshal encodes the payload as published on the config topic.
func (c EntityConfig) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// ParseEntityConfig decodes a discovery payload.
func ParseEntityConfig(data []byte) (EntityConfig, error) {
	var cfg EntityConfig
	err := json.Unmarshal(data, &cfg)
	return cfg, err
}
