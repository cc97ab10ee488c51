package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// entityStateMeasurement is the measurement every entity state is written to.
const entityStateMeasurement = "entity_state"

// EntityState is one published entity value.
//
// It is written to the entity_state measurement with tags device_id,
// entity_id, domain, and unit (when set); the single field is "value".
type EntityState struct {
	DeviceID string
	EntityID string
	Domain   string
	Unit     string
	Value    float64
	At       time.Time
}

// entityStatePoint builds the line-protocol point for an entity state.
func entityStatePoint(s EntityState) *write.Point {
	tags := map[string]string{
		"device_id": s.DeviceID,
		"entity_id": s.EntityID,
		"domain":    s.Domain,
	}
	if s.Unit != "" {
		tags["unit"] = s.Unit
	}

	at := s.At
	if at.IsZero() {
		at = time.Now()
	}

	return write.NewPoint(
		entityStateMeasurement,
		tags,
		map[string]interface{}{
			"value": s.Value,
		},
		at,
	)
}
