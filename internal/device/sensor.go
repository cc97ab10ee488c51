package device

// Sensor is the handle to a read-only numeric entity.
type Sensor struct {
	device *Device
	idx    int
}

// Publish stores a new reading. If it differs from the previous reading,
// or is the first one, the entity is queued for publishing; a queued entity
// is sent once with whatever value is current when the run loop reaches it.
// NaN and infinite readings are ignored.
//
// Publish never blocks on the network and is safe to call before Run or
// while disconnected.
func (s *Sensor) Publish(v float32) {
	s.device.store(s.idx, v)
}

// Value returns the last published reading. ok is false before the first
// Publish.
func (s *Sensor) Value() (v float32, ok bool) {
	return s.device.value(s.idx)
}

// ID returns the entity ID.
func (s *Sensor) ID() string {
	return s.device.entityID(s.idx)
}
