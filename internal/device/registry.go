package device

import (
	"fmt"

	"github.com/nerrad567/graylogic-ha/internal/hass"
)

// CreateTemperatureSensor adds a temperature sensor with state class
// measurement.
//
// Parameters:
//   - id: Entity ID, unique within the device and a valid topic segment
//   - name: Display name shown by the hub
//   - unit: Temperature unit announced as unit_of_measurement
//
// Returns:
//   - *Sensor: Handle used to publish readings
//   - error: ErrInvalidEntityID, ErrEntityExists, ErrCapacityExceeded or ErrDeviceStarted
func (d *Device) CreateTemperatureSensor(id, name string, unit hass.TemperatureUnit) (*Sensor, error) {
	return d.CreateSensor(SensorConfig{
		ID:          id,
		Name:        name,
		DeviceClass: hass.DeviceClassTemperature,
		StateClass:  hass.StateClassMeasurement,
		Unit:        unit.String(),
	})
}

// CreateHumiditySensor adds a relative humidity sensor.
func (d *Device) CreateHumiditySensor(id, name string, unit hass.HumidityUnit) (*Sensor, error) {
	return d.CreateSensor(SensorConfig{
		ID:          id,
		Name:        name,
		DeviceClass: hass.DeviceClassHumidity,
		StateClass:  hass.StateClassMeasurement,
		Unit:        unit.String(),
	})
}

// CreatePressureSensor adds an atmospheric pressure sensor.
func (d *Device) CreatePressureSensor(id, name string, unit hass.PressureUnit) (*Sensor, error) {
	return d.CreateSensor(SensorConfig{
		ID:          id,
		Name:        name,
		DeviceClass: hass.DeviceClassPressure,
		StateClass:  hass.StateClassMeasurement,
		Unit:        unit.String(),
	})
}

// CreateBatterySensor adds a battery level sensor.
func (d *Device) CreateBatterySensor(id, name string, unit hass.BatteryUnit) (*Sensor, error) {
	return d.CreateSensor(SensorConfig{
		ID:          id,
		Name:        name,
		DeviceClass: hass.DeviceClassBattery,
		StateClass:  hass.StateClassMeasurement,
		Unit:        unit.String(),
	})
}

// CreateIlluminanceSensor adds a light level sensor.
func (d *Device) CreateIlluminanceSensor(id, name string, unit hass.LightUnit) (*Sensor, error) {
	return d.CreateSensor(SensorConfig{
		ID:          id,
		Name:        name,
		DeviceClass: hass.DeviceClassIlluminance,
		StateClass:  hass.StateClassMeasurement,
		Unit:        unit.String(),
	})
}

// CreateEnergySensor adds a cumulative energy meter. Its state class is
// total_increasing so the hub treats a drop as a meter reset.
func (d *Device) CreateEnergySensor(id, name string, unit hass.EnergyUnit) (*Sensor, error) {
	return d.CreateSensor(SensorConfig{
		ID:          id,
		Name:        name,
		DeviceClass: hass.DeviceClassEnergy,
		StateClass:  hass.StateClassTotalIncreasing,
		Unit:        unit.String(),
	})
}

// CreateSensor adds a read-only numeric sensor described by cfg.
func (d *Device) CreateSensor(cfg SensorConfig) (*Sensor, error) {
	idx, err := d.create(entity{
		id:          cfg.ID,
		name:        cfg.Name,
		domain:      hass.DomainSensor,
		deviceClass: cfg.DeviceClass,
		stateClass:  cfg.StateClass,
		unit:        cfg.Unit,
		storage:     newSensorStorage(),
	})
	if err != nil {
		return nil, err
	}
	return &Sensor{device: d, idx: idx}, nil
}

// CreateNumber adds a settable number with Home Assistant's default range
// (0 to 100, step 1).
func (d *Device) CreateNumber(id, name string) (*Number, error) {
	return d.CreateNumberWithConfig(id, name, NumberConfig{})
}

// CreateNumberWithConfig adds a settable number.
//
// Parameters:
//   - id: Entity ID, unique within the device and a valid topic segment
//   - name: Display name shown by the hub
//   - cfg: Range, step, mode and unit; zero fields take the hub defaults
//
// Returns:
//   - *Number: Handle used to wait for commands and report values
//   - error: ErrInvalidConfig if Min > Max or Step <= 0, otherwise as CreateSensor
func (d *Device) CreateNumberWithConfig(id, name string, cfg NumberConfig) (*Number, error) {
	lo, hi := cfg.bounds()
	if lo > hi {
		return nil, fmt.Errorf("%w: number %q min %v greater than max %v", ErrInvalidConfig, id, lo, hi)
	}
	if cfg.Step != nil && *cfg.Step <= 0 {
		return nil, fmt.Errorf("%w: number %q step must be positive", ErrInvalidConfig, id)
	}
	if cfg.Mode == "" {
		cfg.Mode = hass.NumberModeAuto
	}

	idx, err := d.create(entity{
		id:           id,
		name:         name,
		domain:       hass.DomainNumber,
		unit:         cfg.Unit,
		number:       cfg,
		commandTopic: d.topics.Command(id),
		storage:      newNumberStorage(),
	})
	if err != nil {
		return nil, err
	}
	return &Number{device: d, idx: idx}, nil
}

// create validates e and appends it to the arena.
func (d *Device) create(e entity) (int, error) {
	if !hass.ValidSegment(e.id) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidEntityID, e.id)
	}
	if e.name == "" {
		e.name = e.id
	}
	e.stateTopic = d.topics.State(e.id)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return 0, ErrDeviceStarted
	}
	if _, exists := d.byID[e.id]; exists {
		return 0, fmt.Errorf("%w: %q", ErrEntityExists, e.id)
	}
	if len(d.res.entities) == cap(d.res.entities) {
		return 0, fmt.Errorf("%w: capacity %d", ErrCapacityExceeded, cap(d.res.entities))
	}

	idx := len(d.res.entities)
	d.res.entities = append(d.res.entities, e)
	d.byID[e.id] = idx
	if e.commandTopic != "" {
		d.byCommand[e.commandTopic] = idx
	}

	d.logger.Debug("entity created", "entity_id", e.id, "domain", e.domain, "index", idx)
	return idx, nil
}

// Lookup returns the domain of the entity with the given ID.
func (d *Device) Lookup(id string) (hass.Domain, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx, ok := d.byID[id]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrEntityNotFound, id)
	}
	return d.res.entities[idx].domain, nil
}
