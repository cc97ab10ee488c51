// Package device implements a Home Assistant MQTT discovery device.
//
// A Device owns a fixed set of entities (sensors and numbers), announces
// them to the hub through retained discovery messages, publishes their
// state when it changes, and routes commands from the hub back to numbers.
//
// # Architecture
//
//	 producers (goroutines)                     run loop (Run)
//	┌──────────────────────┐                ┌──────────────────────────┐
//	│ Sensor.Publish       │──┐             │ Connecting               │
//	│ Number.ValueSet      │  │  dirty      │   │                      │
//	└──────────────────────┘  ├─ check ──▶  │ Announcing: config +     │
//	                          │  + queue    │   online (retained)      │
//	┌──────────────────────┐  │             │   │                      │
//	│ Number.ValueWait     │◀─┘             │ Steady: drain queue,     │──▶ transport
//	└──────────────────────┘   wake slot    │   route commands, ping   │◀── reader
//	                                        └──────────────────────────┘
//
// Entity storage lives in a Resources value allocated up front; its
// capacity is the maximum number of entities. Entities are created before
// the first Run and never removed.
//
// A changed value marks its entity pending and appends it to a FIFO queue
// at most once, so a burst of updates results in a single publish of the
// latest value. Unchanged values are never re-published.
//
// # Usage
//
//	dev, err := device.New(device.NewResources(8), device.Config{
//	    DeviceID:   "greenhouse",
//	    DeviceName: "Greenhouse",
//	})
//	temp, _ := dev.CreateTemperatureSensor("air-temp", "Air temperature", hass.TemperatureCelsius)
//	vent, _ := dev.CreateNumber("vent", "Vent position")
//
//	go func() { temp.Publish(21.5) }()
//	go func() {
//	    for {
//	        v, err := vent.ValueWait(ctx)
//	        if err != nil {
//	            return
//	        }
//	        vent.ValueSet(v)
//	    }
//	}()
//
//	err = dev.Run(ctx, conn) // conn: established MQTT session
//
// # Thread Safety
//
// Handles are safe for concurrent use. A single mutex guards entity state
// and the queue; it is never held during network I/O.
package device
