package hass

import (
	"fmt"
	"strings"
)

// DefaultDiscoveryPrefix is the discovery prefix Home Assistant listens on
// unless reconfigured.
const DefaultDiscoveryPrefix = "homeassistant"

// Topic suffixes.
const (
	suffixConfig       = "config"
	suffixState        = "state"
	suffixCommand      = "set"
	suffixAvailability = "availability"
)

// Availability payloads published on the availability topic.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Topics builds the MQTT topics for one device.
// Using these helpers keeps the topic scheme in a single place.
//
//	topics := hass.Topics{Prefix: "homeassistant", DeviceID: "greenhouse"}
//	topics.State("air-temp")
//	// Returns: "greenhouse/air-temp/state"
type Topics struct {
	Prefix   string
	DeviceID string
}

// =============================================================================
// Entity Topics
// =============================================================================

// Config returns the discovery config topic for an entity.
//
// Example: homeassistant/sensor/greenhouse/air-temp/config
func (t Topics) Config(domain Domain, entityID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", t.prefix(), domain, t.DeviceID, entityID, suffixConfig)
}

// State returns the state topic for an entity.
//
// Example: greenhouse/air-temp/state
func (t Topics) State(entityID string) string {
	return fmt.Sprintf("%s/%s/%s", t.DeviceID, entityID, suffixState)
}

// Command returns the command topic for an entity.
//
// Example: greenhouse/vent-position/set
func (t Topics) Command(entityID string) string {
	return fmt.Sprintf("%s/%s/%s", t.DeviceID, entityID, suffixCommand)
}

// =============================================================================
// Device Topics
// =============================================================================

// Availability returns the device availability topic.
//
// Example: greenhouse/availability
func (t Topics) Availability() string {
	return fmt.Sprintf("%s/%s", t.DeviceID, suffixAvailability)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// CommandFilter returns a pattern matching every command topic of the device.
//
// Pattern: greenhouse/+/set
func (t Topics) CommandFilter() string {
	return fmt.Sprintf("%s/+/%s", t.DeviceID, suffixCommand)
}

// AllConfigs returns a pattern matching every discovery config of the device.
//
// Pattern: homeassistant/+/greenhouse/+/config
func (t Topics) AllConfigs() string {
	return fmt.Sprintf("%s/+/%s/+/%s", t.prefix(), t.DeviceID, suffixConfig)
}

// AllStates returns a pattern matching every state topic of the device.
//
// Pattern: greenhouse/+/state
func (t Topics) AllStates() string {
	return fmt.Sprintf("%s/+/%s", t.DeviceID, suffixState)
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultDiscoveryPrefix
	}
	return t.Prefix
}

// EntityFromTopic extracts the entity ID from a state or command topic
// built by these helpers. ok is false if the topic does not belong to the
// device.
func (t Topics) EntityFromTopic(topic string) (entityID string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.DeviceID+"/")
	if !found {
		return "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		return "", false
	}
	if parts[1] != suffixState && parts[1] != suffixCommand {
		return "", false
	}
	return parts[0], true
}

// ValidSegment reports whether s can be used as a single topic level:
// non-empty and free of the separator and wildcard characters.
func ValidSegment(s string) bool {
	if s == "" {
		return false
	}
	return !strings.ContainsAny(s, "/+#\x00")
}
