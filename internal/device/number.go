package device

import (
	"context"
	"fmt"
)

// Number is the handle to a settable numeric entity. Commands from the hub
// arrive through ValueWait; the entity's reported state only changes when
// the owner calls ValueSet.
type Number struct {
	device *Device
	idx    int
}

// ValueSet stores the value the device now reports and queues a publish if
// it changed. NaN and infinite values are ignored.
func (n *Number) ValueSet(v float32) {
	n.device.store(n.idx, v)
}

// Value returns the last reported value. ok is false before the first
// ValueSet.
func (n *Number) Value() (v float32, ok bool) {
	return n.device.value(n.idx)
}

// ID returns the entity ID.
func (n *Number) ID() string {
	return n.device.entityID(n.idx)
}

// ValueWait blocks until the hub sends a command and returns the commanded
// value. A command that arrived while nobody was waiting is returned
// immediately; if several arrived, only the latest is kept.
//
// At most one goroutine may wait on a number at a time. A second
// concurrent call panics.
//
// Parameters:
//   - ctx: Cancelling it abandons the wait
//
// Returns:
//   - float32: The commanded value
//   - error: ctx.Err() if the wait was abandoned
func (n *Number) ValueWait(ctx context.Context) (float32, error) {
	d := n.device

	d.mu.Lock()
	s := d.entityAt(n.idx).storage.asNumber()
	if s.waiter != nil {
		id := d.res.entities[n.idx].id
		d.mu.Unlock()
		panic(fmt.Sprintf("device: concurrent ValueWait on number %q", id))
	}
	if s.commandPending {
		v := takeCommand(s)
		d.mu.Unlock()
		return v, nil
	}
	wake := make(chan struct{})
	s.waiter = wake
	d.mu.Unlock()

	select {
	case <-wake:
	case <-ctx.Done():
	}

	// Only the waiter clears its slot; until then the slot stays taken.
	d.mu.Lock()
	defer d.mu.Unlock()
	s.waiter = nil
	if closed(wake) {
		return takeCommand(s), nil
	}
	return 0, ctx.Err()
}

// takeCommand consumes the pending command. Caller must hold the device lock.
func takeCommand(s *numberStorage) float32 {
	s.commandPending = false
	return s.command
}

// deliverCommand records an inbound command for idx and wakes its waiter.
func (d *Device) deliverCommand(idx int, v float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.entityAt(idx).storage.asNumber()
	s.command = v
	s.commandPending = true
	if s.waiter != nil && !closed(s.waiter) {
		close(s.waiter)
	}
}

// closed reports whether the router has already woken ch.
func closed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// entityID returns the ID of idx.
func (d *Device) entityID(idx int) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.entityAt(idx).id
}
