package device

import (
	"io"
	"time"

	"github.com/nerrad567/graylogic-ha/internal/hass"
)

// Config is the hub-facing identity of the device. It is supplied once to
// New and never changes afterwards.
type Config struct {
	// DeviceID is the stable identifier used in every topic and unique_id.
	DeviceID string

	DeviceName   string
	Manufacturer string
	Model        string

	// SoftwareVersion is shown on the device page when set.
	SoftwareVersion string

	// DiscoveryPrefix defaults to hass.DefaultDiscoveryPrefix.
	DiscoveryPrefix string
}

// Transport is the live byte stream to the broker. The MQTT session must
// already be established when it is handed to Run.
type Transport interface {
	io.Reader
	io.Writer
}

// RunState is the position of the device in its run loop state machine.
type RunState int

// Run states. A device is Connecting whenever Run is not executing: before
// the first call and after every return.
const (
	StateConnecting RunState = iota
	StateAnnouncing
	StateSteady
)

// String returns the lowercase state name used in logs and the status API.
func (s RunState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAnnouncing:
		return "announcing"
	case StateSteady:
		return "steady"
	default:
		return "unknown"
	}
}

// SensorConfig describes a read-only numeric sensor.
type SensorConfig struct {
	ID          string
	Name        string
	DeviceClass hass.DeviceClass
	StateClass  hass.StateClass

	// Unit is the exact unit_of_measurement token. Empty omits it.
	Unit string
}

// NumberConfig describes a settable number. Zero values take Home
// Assistant's defaults (min 0, max 100, step 1, mode auto).
type NumberConfig struct {
	Min  *float64
	Max  *float64
	Step *float64
	Mode hass.NumberMode
	Unit string
}

// Number defaults, matching Home Assistant's own.
const (
	defaultNumberMin  = 0
	defaultNumberMax  = 100
	defaultNumberStep = 1
)

// bounds returns the effective accepted command range.
func (c NumberConfig) bounds() (lo, hi float64) {
	lo, hi = defaultNumberMin, defaultNumberMax
	if c.Min != nil {
		lo = *c.Min
	}
	if c.Max != nil {
		hi = *c.Max
	}
	return lo, hi
}

// EntitySnapshot is a point-in-time copy of one entity for reporting.
type EntitySnapshot struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Domain      hass.Domain `json:"domain"`
	DeviceClass string      `json:"device_class,omitempty"`
	StateClass  string      `json:"state_class,omitempty"`
	Unit        string      `json:"unit,omitempty"`

	StateTopic   string `json:"state_topic"`
	CommandTopic string `json:"command_topic,omitempty"`

	// HasValue is false until the first Publish or ValueSet.
	HasValue  bool      `json:"has_value"`
	Value     float32   `json:"value"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`

	// PublishPending is true while a changed value waits in the queue.
	PublishPending bool `json:"publish_pending"`

	// CommandPending is true while an inbound command has not been
	// collected by ValueWait (numbers only).
	CommandPending bool `json:"command_pending,omitempty"`
}
