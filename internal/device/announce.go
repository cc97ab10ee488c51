package device

import (
	"fmt"
	"io"

	"github.com/nerrad567/graylogic-ha/internal/hass"
	"github.com/nerrad567/graylogic-ha/internal/infrastructure/mqtt"
)

// Announcement is one retained discovery message.
type Announcement struct {
	Topic   string
	Payload []byte
}

// Announcements builds the discovery messages for every entity in creation
// order. The output is byte-identical for the same set of entities.
func (d *Device) Announcements() ([]Announcement, error) {
	d.mu.Lock()
	configs := make([]hass.EntityConfig, 0, len(d.res.entities))
	topics := make([]string, 0, len(d.res.entities))
	for i := range d.res.entities {
		e := &d.res.entities[i]
		configs = append(configs, d.discoveryConfig(e))
		topics = append(topics, d.topics.Config(e.domain, e.id))
	}
	d.mu.Unlock()

	out := make([]Announcement, 0, len(configs))
	for i, cfg := range configs {
		payload, err := cfg.Marshal()
		if err != nil {
			return nil, fmt.Errorf("encoding discovery for %q: %w", cfg.UniqueID, err)
		}
		out = append(out, Announcement{Topic: topics[i], Payload: payload})
	}
	return out, nil
}

// discoveryConfig builds the discovery payload for e.
func (d *Device) discoveryConfig(e *entity) hass.EntityConfig {
	cfg := hass.EntityConfig{
		Name:              e.name,
		UniqueID:          d.cfg.DeviceID + "_" + e.id,
		Device:            d.deviceInfo,
		StateTopic:        e.stateTopic,
		CommandTopic:      e.commandTopic,
		AvailabilityTopic: d.topics.Availability(),
		UnitOfMeasurement: e.unit,
		DeviceClass:       e.deviceClass.String(),
		StateClass:        e.stateClass.String(),
	}

	if e.domain == hass.DomainNumber {
		lo, hi := e.number.bounds()
		step := float64(defaultNumberStep)
		if e.number.Step != nil {
			step = *e.number.Step
		}
		cfg.Min = &lo
		cfg.Max = &hi
		cfg.Step = &step
		cfg.Mode = e.number.Mode.String()
	}

	return cfg
}

// announce writes every discovery message followed by the online
// availability payload, all retained.
func (d *Device) announce(w io.Writer) error {
	announcements, err := d.Announcements()
	if err != nil {
		return err
	}

	for _, a := range announcements {
		if err := mqtt.WritePublish(w, a.Topic, a.Payload, true); err != nil {
			return fmt.Errorf("%w: announcing %s: %w", ErrTransportWrite, a.Topic, err)
		}
		d.metrics.incAnnouncements()
	}

	if err := mqtt.WritePublish(w, d.topics.Availability(), []byte(hass.PayloadOnline), true); err != nil {
		return fmt.Errorf("%w: publishing availability: %w", ErrTransportWrite, err)
	}

	d.logger.Info("discovery announced", "entities", len(announcements))
	return nil
}
