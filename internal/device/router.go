package device

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/nerrad567/graylogic-ha/internal/infrastructure/mqtt"
)

// Reasons an inbound message is discarded, used as a metric label.
const (
	discardUnknownTopic = "unknown_topic"
	discardMalformed    = "malformed_payload"
	discardOutOfRange   = "out_of_range"
	discardQoS          = "unsupported_qos"
)

// route handles one inbound PUBLISH. Only a failed acknowledgement is an
// error; anything the device cannot use is logged and dropped.
func (d *Device) route(w io.Writer, msg mqtt.Message) error {
	switch msg.QoS {
	case 0:
	case 1:
		if err := mqtt.WritePuback(w, msg.MessageID); err != nil {
			return fmt.Errorf("%w: puback: %w", ErrTransportWrite, err)
		}
	default:
		d.discard(msg, discardQoS)
		return nil
	}

	d.mu.Lock()
	idx, ok := d.byCommand[msg.Topic]
	var lo, hi float64
	var id string
	if ok {
		e := d.entityAt(idx)
		lo, hi = e.number.bounds()
		id = e.id
	}
	d.mu.Unlock()

	if !ok {
		d.discard(msg, discardUnknownTopic)
		return nil
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(string(msg.Payload)), 32)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		d.discard(msg, discardMalformed)
		return nil
	}
	if v < lo || v > hi {
		d.discard(msg, discardOutOfRange)
		return nil
	}

	d.deliverCommand(idx, float32(v))
	d.metrics.incCommandRouted(id)
	d.logger.Debug("command routed", "entity_id", id, "value", v)
	return nil
}

func (d *Device) discard(msg mqtt.Message, reason string) {
	d.metrics.incDiscarded(reason)
	d.logger.Debug("inbound message discarded", "topic", msg.Topic, "reason", reason, "payload_bytes", len(msg.Payload))
}
