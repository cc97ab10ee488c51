package hass

// Units of measurement. Each unit family is a distinct string type so a
// temperature sensor cannot be created with a pressure unit by accident.
// Every family has an Other constructor for tokens outside the enumerated set;
// those are passed through to the hub verbatim.

// TemperatureUnit is a unit for temperature sensors.
type TemperatureUnit string

// Temperature units.
const (
	TemperatureCelsius    TemperatureUnit = "°C"
	TemperatureKelvin     TemperatureUnit = "K"
	TemperatureFahrenheit TemperatureUnit = "°F"
)

// OtherTemperatureUnit returns a custom temperature unit token.
func OtherTemperatureUnit(token string) TemperatureUnit { return TemperatureUnit(token) }

// String returns the unit token.
func (u TemperatureUnit) String() string { return string(u) }

// HumidityUnit is a unit for humidity sensors.
type HumidityUnit string

// HumidityPercent is relative humidity in percent.
const HumidityPercent HumidityUnit = "%"

// OtherHumidityUnit returns a custom humidity unit token.
func OtherHumidityUnit(token string) HumidityUnit { return HumidityUnit(token) }

// String returns the unit token.
func (u HumidityUnit) String() string { return string(u) }

// BatteryUnit is a unit for battery level sensors.
type BatteryUnit string

// BatteryPercent is remaining charge in percent.
const BatteryPercent BatteryUnit = "%"

// OtherBatteryUnit returns a custom battery unit token.
func OtherBatteryUnit(token string) BatteryUnit { return BatteryUnit(token) }

// String returns the unit token.
func (u BatteryUnit) String() string { return string(u) }

// LightUnit is a unit for illuminance sensors.
type LightUnit string

// LightLux is illuminance in lux.
const LightLux LightUnit = "lx"

// OtherLightUnit returns a custom light unit token.
func OtherLightUnit(token string) LightUnit { return LightUnit(token) }

// String returns the unit token.
func (u LightUnit) String() string { return string(u) }

// PressureUnit is a unit for pressure sensors.
type PressureUnit string

// PressureHectoPascal is pressure in hectopascal.
const PressureHectoPascal PressureUnit = "hPa"

// OtherPressureUnit returns a custom pressure unit token.
func OtherPressureUnit(token string) PressureUnit { return PressureUnit(token) }

// String returns the unit token.
func (u PressureUnit) String() string { return string(u) }

// EnergyUnit is a unit for energy meters.
type EnergyUnit string

// EnergyKiloWattHour is energy in kilowatt hours.
const EnergyKiloWattHour EnergyUnit = "kWh"

// OtherEnergyUnit returns a custom energy unit token.
func OtherEnergyUnit(token string) EnergyUnit { return EnergyUnit(token) }

// String returns the unit token.
func (u EnergyUnit) String() string { return string(u) }
