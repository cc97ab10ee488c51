package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/nerrad567/graylogic-ha/internal/device"
	"github.com/nerrad567/graylogic-ha/internal/hass"
	"github.com/nerrad567/graylogic-ha/internal/infrastructure/config"
	"github.com/nerrad567/graylogic-ha/internal/infrastructure/logging"
)

// producer feeds one entity until ctx is cancelled.
type producer struct {
	entityID string
	run      func(ctx context.Context)
}

// buildEntities creates every configured entity on dev and returns the
// producers that drive them. Entities without a source get no producer.
//
// Parameters:
//   - dev: Device that has not been run yet
//   - entities: The entities section of the configuration
//   - log: Logger for producer diagnostics
//
// Returns:
//   - []producer: One per entity with a source, in configuration order
//   - error: The first entity that could not be created
func buildEntities(dev *device.Device, entities []config.EntityConfig, log *logging.Logger) ([]producer, error) {
	var producers []producer

	for _, e := range entities {
		name := e.Name
		if name == "" {
			name = e.ID
		}

		if e.Kind == config.KindNumber {
			num, err := dev.CreateNumberWithConfig(e.ID, name, device.NumberConfig{
				Min:  e.Min,
				Max:  e.Max,
				Step: e.Step,
				Mode: hass.NumberMode(e.Mode),
				Unit: e.Unit,
			})
			if err != nil {
				return nil, fmt.Errorf("creating number %q: %w", e.ID, err)
			}
			if e.Source == config.SourceEcho {
				producers = append(producers, producer{entityID: e.ID, run: echoProducer(num, log)})
			}
			continue
		}

		sensor, err := createSensor(dev, e.ID, name, e.Kind, e.Unit)
		if err != nil {
			return nil, fmt.Errorf("creating %s sensor %q: %w", e.Kind, e.ID, err)
		}

		switch e.Source {
		case config.SourceConstant:
			producers = append(producers, producer{
				entityID: e.ID,
				run:      constantProducer(sensor, float32(e.Value), e.GetInterval()),
			})
		case config.SourceRandom:
			producers = append(producers, producer{
				entityID: e.ID,
				run:      randomProducer(sensor, *e.Min, *e.Max, e.GetInterval()),
			})
		}
	}

	return producers, nil
}

// createSensor maps a configured kind to its constructor. An empty unit
// takes the kind's usual unit; anything else is passed through verbatim.
func createSensor(dev *device.Device, id, name, kind, unit string) (*device.Sensor, error) {
	switch kind {
	case config.KindTemperature:
		u := hass.TemperatureCelsius
		if unit != "" {
			u = hass.OtherTemperatureUnit(unit)
		}
		return dev.CreateTemperatureSensor(id, name, u)
	case config.KindHumidity:
		u := hass.HumidityPercent
		if unit != "" {
			u = hass.OtherHumidityUnit(unit)
		}
		return dev.CreateHumiditySensor(id, name, u)
	case config.KindPressure:
		u := hass.PressureHectoPascal
		if unit != "" {
			u = hass.OtherPressureUnit(unit)
		}
		return dev.CreatePressureSensor(id, name, u)
	case config.KindBattery:
		u := hass.BatteryPercent
		if unit != "" {
			u = hass.OtherBatteryUnit(unit)
		}
		return dev.CreateBatterySensor(id, name, u)
	case config.KindIlluminance:
		u := hass.LightLux
		if unit != "" {
			u = hass.OtherLightUnit(unit)
		}
		return dev.CreateIlluminanceSensor(id, name, u)
	case config.KindEnergy:
		u := hass.EnergyKiloWattHour
		if unit != "" {
			u = hass.OtherEnergyUnit(unit)
		}
		return dev.CreateEnergySensor(id, name, u)
	default:
		return nil, fmt.Errorf("unsupported kind %q", kind)
	}
}

// constantProducer publishes the same reading every interval. Only the
// first one reaches the broker; the rest are suppressed as unchanged.
func constantProducer(s *device.Sensor, v float32, interval time.Duration) func(context.Context) {
	return func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			s.Publish(v)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
}

// randomProducer publishes a uniformly distributed reading in [lo, hi]
// every interval.
func randomProducer(s *device.Sensor, lo, hi float64, interval time.Duration) func(context.Context) {
	return func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			s.Publish(float32(lo + rand.Float64()*(hi-lo)))
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
}

// echoProducer reports every commanded value back as the number's state.
func echoProducer(n *device.Number, log *logging.Logger) func(context.Context) {
	return func(ctx context.Context) {
		for {
			v, err := n.ValueWait(ctx)
			if err != nil {
				return
			}
			log.Debug("echoing command", "entity_id", n.ID(), "value", v)
			n.ValueSet(v)
		}
	}
}
