package hass

// Domain is the Home Assistant entity platform an entity is announced under.
type Domain string

// Domain constants.
const (
	DomainSensor       Domain = "sensor"
	DomainNumber       Domain = "number"
	DomainBinarySensor Domain = "binary_sensor"
	DomainSwitch       Domain = "switch"
)

// AllDomains returns all known domain values.
func AllDomains() []Domain {
	return []Domain{DomainSensor, DomainNumber, DomainBinarySensor, DomainSwitch}
}

// String returns the discovery token for the domain.
func (d Domain) String() string {
	return string(d)
}

// IsValid reports whether d is a known domain.
func (d Domain) IsValid() bool {
	for _, known := range AllDomains() {
		if d == known {
			return true
		}
	}
	return false
}

// DeviceClass is a rendering hint for the hub (icon, unit conversion).
// The zero value means "no device class" and is omitted from payloads.
type DeviceClass string

// Device class constants for the sensor kinds this device exposes.
const (
	DeviceClassNone        DeviceClass = ""
	DeviceClassTemperature DeviceClass = "temperature"
	DeviceClassHumidity    DeviceClass = "humidity"
	DeviceClassPressure    DeviceClass = "pressure"
	DeviceClassEnergy      DeviceClass = "energy"
	DeviceClassBattery     DeviceClass = "battery"
	DeviceClassIlluminance DeviceClass = "illuminance"
)

// OtherDeviceClass passes a device class not in the enumerated set through verbatim.
func OtherDeviceClass(token string) DeviceClass {
	return DeviceClass(token)
}

// String returns the discovery token for the device class.
func (c DeviceClass) String() string {
	return string(c)
}

// StateClass tells the hub how to aggregate long-term statistics.
// The zero value means "no state class" and is omitted from payloads.
type StateClass string

// State class constants.
const (
	StateClassNone            StateClass = ""
	StateClassMeasurement     StateClass = "measurement"
	StateClassTotal           StateClass = "total"
	StateClassTotalIncreasing StateClass = "total_increasing"
)

// String returns the discovery token for the state class.
func (c StateClass) String() string {
	return string(c)
}

// NumberMode controls how the hub renders a number entity.
type NumberMode string

// Number mode constants.
const (
	NumberModeAuto   NumberMode = "auto"
	NumberModeBox    NumberMode = "box"
	NumberModeSlider NumberMode = "slider"
)

// String returns the discovery token for the mode.
func (m NumberMode) String() string {
	return string(m)
}
