package device

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/nerrad567/graylogic-ha/internal/hass"
)

const testTimeout = 2 * time.Second

func testConfig() Config {
	return Config{
		DeviceID:     "greenhouse",
		DeviceName:   "Greenhouse",
		Manufacturer: "Gray Logic",
		Model:        "GH-1",
	}
}

// newTestDevice creates a device with room for capacity entities.
func newTestDevice(t *testing.T, capacity int, opts ...Option) *Device {
	t.Helper()

	d, err := New(NewResources(capacity), testConfig(), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return d
}

// mustSensor creates a Celsius temperature sensor.
func mustSensor(t *testing.T, d *Device, id string) *Sensor {
	t.Helper()

	s, err := d.CreateTemperatureSensor(id, id, hass.TemperatureCelsius)
	if err != nil {
		t.Fatalf("CreateTemperatureSensor(%q) error = %v", id, err)
	}
	return s
}

func mustNumber(t *testing.T, d *Device, id string) *Number {
	t.Helper()

	n, err := d.CreateNumber(id, id)
	if err != nil {
		t.Fatalf("CreateNumber(%q) error = %v", id, err)
	}
	return n
}

// broker is the far end of a net.Pipe standing in for an MQTT broker.
// Every packet the device writes is decoded and queued on packets.
type broker struct {
	t       *testing.T
	conn    net.Conn
	packets chan packets.ControlPacket
	runErr  chan error
	cancel  context.CancelFunc
}

// runDevice starts d.Run against a fresh pipe and returns the broker end.
// The run is cancelled and the pipe closed when the test ends.
func runDevice(t *testing.T, d *Device) *broker {
	t.Helper()

	deviceEnd, brokerEnd := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())

	b := &broker{
		t:       t,
		conn:    brokerEnd,
		packets: make(chan packets.ControlPacket, 256),
		runErr:  make(chan error, 1),
		cancel:  cancel,
	}

	go func() {
		defer close(b.packets)
		for {
			cp, err := packets.ReadPacket(brokerEnd)
			if err != nil {
				return
			}
			b.packets <- cp
		}
	}()

	go func() {
		b.runErr <- d.Run(ctx, deviceEnd)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-b.runErr:
		case <-time.After(testTimeout):
			t.Error("Run did not return after cancel")
		}
		deviceEnd.Close()
		brokerEnd.Close()
	})

	return b
}

// next returns the next packet written by the device.
func (b *broker) next() packets.ControlPacket {
	b.t.Helper()

	select {
	case cp, ok := <-b.packets:
		if !ok {
			b.t.Fatal("transport closed while waiting for packet")
		}
		return cp
	case <-time.After(testTimeout):
		b.t.Fatal("timed out waiting for packet")
	}
	return nil
}

// nextPublish returns the next packet, which must be a PUBLISH.
func (b *broker) nextPublish() *packets.PublishPacket {
	b.t.Helper()

	cp := b.next()
	pub, ok := cp.(*packets.PublishPacket)
	if !ok {
		b.t.Fatalf("got %T, want *packets.PublishPacket", cp)
	}
	return pub
}

// skipAnnouncement consumes n discovery configs and the online payload.
func (b *broker) skipAnnouncement(n int) {
	b.t.Helper()

	for range n + 1 {
		b.nextPublish()
	}
}

// expectQuiet fails if the device writes anything within d.
func (b *broker) expectQuiet(d time.Duration) {
	b.t.Helper()

	select {
	case cp, ok := <-b.packets:
		if ok {
			b.t.Fatalf("unexpected packet %v", cp)
		}
	case <-time.After(d):
	}
}

// send delivers a PUBLISH from the broker to the device.
func (b *broker) send(topic, payload string, qos byte, id uint16) {
	b.t.Helper()

	pub := packets.NewControlPacket(packets.Publish).(*packets.PublishPacket)
	pub.TopicName = topic
	pub.Payload = []byte(payload)
	pub.Qos = qos
	pub.MessageID = id

	if err := b.conn.SetWriteDeadline(time.Now().Add(testTimeout)); err != nil {
		b.t.Fatalf("SetWriteDeadline() error = %v", err)
	}
	if err := pub.Write(b.conn); err != nil {
		b.t.Fatalf("writing publish to device: %v", err)
	}
}

// wait returns the error Run exited with.
func (b *broker) wait() error {
	b.t.Helper()

	select {
	case err := <-b.runErr:
		// Put it back so Cleanup does not block.
		b.runErr <- err
		return err
	case <-time.After(testTimeout):
		b.t.Fatal("timed out waiting for Run to return")
	}
	return nil
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(testTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// valueWait runs n.ValueWait in a goroutine.
func valueWait(ctx context.Context, n *Number) <-chan waitResult {
	out := make(chan waitResult, 1)
	go func() {
		v, err := n.ValueWait(ctx)
		out <- waitResult{v: v, err: err}
	}()
	return out
}

type waitResult struct {
	v   float32
	err error
}

func recvWait(t *testing.T, ch <-chan waitResult) waitResult {
	t.Helper()

	select {
	case r := <-ch:
		return r
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for ValueWait")
	}
	return waitResult{}
}

// expectPanic fails unless fn panics.
func expectPanic(t *testing.T, what string, fn func()) {
	t.Helper()

	defer func() {
		if recover() == nil {
			t.Errorf("%s did not panic", what)
		}
	}()
	fn()
}

var errInjected = errors.New("injected failure")
