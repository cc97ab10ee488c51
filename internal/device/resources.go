package device

import (
	"fmt"
	"sync/atomic"
)

// Resources is the pre-allocated backing store for one Device: the entity
// arena and the publish queue. Its capacity is the hard ceiling on the
// number of entities the device can create.
//
// A Resources value can back exactly one Device.
type Resources struct {
	entities []entity
	queue    publishQueue
	claimed  atomic.Bool
}

// NewResources allocates storage for up to capacity entities.
// It panics if capacity is negative.
func NewResources(capacity int) *Resources {
	if capacity < 0 {
		panic(fmt.Sprintf("device: negative capacity %d", capacity))
	}
	return &Resources{
		entities: make([]entity, 0, capacity),
		queue:    newPublishQueue(capacity),
	}
}

// Capacity returns the maximum number of entities.
func (r *Resources) Capacity() int {
	return cap(r.entities)
}
