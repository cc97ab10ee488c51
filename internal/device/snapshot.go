package device

// Snapshot returns a copy of every entity in creation order.
func (d *Device) Snapshot() []EntitySnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]EntitySnapshot, 0, len(d.res.entities))
	for i := range d.res.entities {
		e := &d.res.entities[i]
		cur := e.storage.current()
		snap := EntitySnapshot{
			ID:             e.id,
			Name:           e.name,
			Domain:         e.domain,
			DeviceClass:    e.deviceClass.String(),
			StateClass:     e.stateClass.String(),
			Unit:           e.unit,
			StateTopic:     e.stateTopic,
			CommandTopic:   e.commandTopic,
			HasValue:       cur.hasValue,
			Value:          cur.value,
			UpdatedAt:      cur.updatedAt,
			PublishPending: e.publishPending,
		}
		if e.storage.kind == storageNumber {
			snap.CommandPending = e.storage.number.commandPending
		}
		out = append(out, snap)
	}
	return out
}
