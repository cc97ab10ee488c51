package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nerrad567/graylogic-ha/internal/infrastructure/mqtt"
)

// Run drives the device over an established MQTT session until the context
// is cancelled or the transport fails.
//
// Each call announces every entity (Announcing), publishes online, then
// enters Steady: queued state changes are published as retained messages,
// inbound commands are routed to their numbers, and a PINGREQ is sent every
// keep-alive interval. When Run returns the device is back in Connecting and
// Run may be called again with a fresh transport.
//
// Run does not close t. The caller closes it after Run returns, which also
// ends the background reader.
//
// Parameters:
//   - ctx: Cancelling it stops the loop
//   - t: Byte stream of a connected and subscribed MQTT session
//
// Returns:
//   - error: ctx.Err() on cancellation, ErrAlreadyRunning, or a transport
//     error wrapping ErrTransportClosed, ErrTransportWrite or ErrTransportRead
func (d *Device) Run(ctx context.Context, t Transport) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrAlreadyRunning
	}
	d.running = true
	d.started = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
		d.setState(StateConnecting)
	}()

	records := startRecordWorker(ctx, d.recorders, d.logger, d.metrics)
	defer records.stop()

	d.setState(StateAnnouncing)
	if err := d.announce(t); err != nil {
		d.logger.Error("announcement failed", "error", err)
		return err
	}

	d.setState(StateSteady)
	err := d.steady(ctx, t, records)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		d.logger.Error("run loop stopped", "error", err)
	}
	return err
}

// inbound is what the reader goroutine hands to the loop.
type inbound struct {
	msg mqtt.Message
	err error
}

// steady is the Steady state loop.
func (d *Device) steady(ctx context.Context, t Transport, records *recordWorker) error {
	done := make(chan struct{})
	defer close(done)
	messages := make(chan inbound)
	go readLoop(t, messages, done)

	var tick <-chan time.Time
	if d.keepAlive > 0 {
		ticker := time.NewTicker(d.keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	d.logger.Info("device steady", "device_id", d.cfg.DeviceID)

	for {
		if err := d.drain(t, records); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-d.notify:

		case in := <-messages:
			if in.err != nil {
				return readError(in.err)
			}
			if err := d.route(t, in.msg); err != nil {
				return err
			}

		case <-tick:
			if err := mqtt.WritePingreq(t); err != nil {
				return fmt.Errorf("%w: ping: %w", ErrTransportWrite, err)
			}
		}
	}
}

// readLoop decodes messages from r until a read fails or done is closed.
func readLoop(r io.Reader, out chan<- inbound, done <-chan struct{}) {
	for {
		msg, err := mqtt.ReadMessage(r)
		select {
		case out <- inbound{msg: msg, err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

// readError classifies a reader failure.
func readError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", ErrTransportClosed, err)
	}
	return fmt.Errorf("%w: %w", ErrTransportRead, err)
}

// drain publishes every queued entity. The pending flag is cleared before
// the write so a change made during the write queues a fresh publish; a
// failed write re-queues the entity for the next Run.
func (d *Device) drain(t Transport, records *recordWorker) error {
	for {
		d.mu.Lock()
		idx, ok := d.res.queue.pop()
		if !ok {
			d.mu.Unlock()
			d.metrics.setQueueDepth(0)
			return nil
		}
		e := d.entityAt(idx)
		e.publishPending = false
		cur := *e.storage.current()
		rec := StateRecord{
			DeviceID: d.cfg.DeviceID,
			EntityID: e.id,
			Domain:   e.domain,
			Unit:     e.unit,
			Value:    cur.value,
			At:       cur.updatedAt,
		}
		topic := e.stateTopic
		d.mu.Unlock()

		if err := mqtt.WritePublish(t, topic, FormatValue(cur.value), true); err != nil {
			d.mu.Lock()
			d.markPendingLocked(idx)
			d.mu.Unlock()
			return fmt.Errorf("%w: publishing %s: %w", ErrTransportWrite, topic, err)
		}

		d.metrics.incStatePublished(rec.EntityID)
		d.logger.Debug("state published", "entity_id", rec.EntityID, "value", cur.value)
		records.submit(rec)
	}
}

// FormatValue renders a state value as published: the shortest decimal
// that round-trips to the same float32.
func FormatValue(v float32) []byte {
	return strconv.AppendFloat(nil, float64(v), 'f', -1, 32)
}

func (d *Device) setState(s RunState) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
	d.metrics.setRunState(s)
}
