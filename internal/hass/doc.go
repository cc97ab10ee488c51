// Package hass describes the Home Assistant side of the MQTT discovery
// contract: entity domains, device and state classes, measurement units,
// the topic scheme and the discovery payload.
//
// Everything here is a pure value type. The string tokens returned by the
// String methods are written verbatim into discovery payloads, so they must
// match the tokens Home Assistant expects.
//
// # Topic scheme
//
//	{prefix}/{domain}/{device_id}/{entity_id}/config   discovery config (retained)
//	{device_id}/{entity_id}/state                      entity state (retained)
//	{device_id}/{entity_id}/set                        inbound commands
//	{device_id}/availability                           online / offline
//
// # Usage
//
//	topics := hass.Topics{Prefix: hass.DefaultDiscoveryPrefix, DeviceID: "greenhouse"}
//	topics.Config(hass.DomainSensor, "air-temp")
//	// Returns: "homeassistant/sensor/greenhouse/air-temp/config"
package hass
