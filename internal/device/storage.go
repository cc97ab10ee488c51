package device

import (
	"fmt"
	"time"
)

// storageKind tags which member of storage is live.
type storageKind uint8

const (
	storageNone storageKind = iota
	storageSensor
	storageNumber
)

func (k storageKind) String() string {
	switch k {
	case storageSensor:
		return "sensor"
	case storageNumber:
		return "number"
	default:
		return "none"
	}
}

// reading is the last value stored for an entity.
type reading struct {
	value     float32
	hasValue  bool
	updatedAt time.Time
}

// set overwrites the reading and reports whether the value differs from
// the previous one. Comparison is exact; a first value is always a change.
func (r *reading) set(v float32, at time.Time) bool {
	changed := !r.hasValue || r.value != v
	r.value = v
	r.hasValue = true
	r.updatedAt = at
	return changed
}

type sensorStorage struct {
	reading
}

type numberStorage struct {
	reading

	command        float32
	commandPending bool

	// waiter is closed by the router when a command arrives and cleared by
	// the waiting goroutine once it has taken the command.
	waiter chan struct{}
}

// storage is the per-entity state. Exactly one member is live, selected by
// kind. The accessors panic when asked for the wrong member.
type storage struct {
	kind   storageKind
	sensor sensorStorage
	number numberStorage
}

func newSensorStorage() storage {
	return storage{kind: storageSensor}
}

func newNumberStorage() storage {
	return storage{kind: storageNumber}
}

func (s *storage) asSensor() *sensorStorage {
	if s.kind != storageSensor {
		panic(fmt.Sprintf("device: storage holds %s, not sensor", s.kind))
	}
	return &s.sensor
}

func (s *storage) asNumber() *numberStorage {
	if s.kind != storageNumber {
		panic(fmt.Sprintf("device: storage holds %s, not number", s.kind))
	}
	return &s.number
}

// current returns the value reading of whichever member is live.
func (s *storage) current() *reading {
	switch s.kind {
	case storageSensor:
		return &s.sensor.reading
	case storageNumber:
		return &s.number.reading
	default:
		panic(fmt.Sprintf("device: storage holds %s", s.kind))
	}
}
