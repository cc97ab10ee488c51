package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/nerrad567/graylogic-ha/internal/device"
	"github.com/nerrad567/graylogic-ha/internal/infrastructure/mqtt"
)

const testTimeout = 2 * time.Second

type disconnectPacket = packets.DisconnectPacket

func newTestDevice(t *testing.T, capacity int) *device.Device {
	t.Helper()

	dev, err := device.New(device.NewResources(capacity), device.Config{
		DeviceID:   "greenhouse",
		DeviceName: "Greenhouse",
	})
	if err != nil {
		t.Fatalf("device.New() error = %v", err)
	}
	return dev
}

func mqttOptions() mqtt.SessionOptions {
	return mqtt.SessionOptions{ClientID: "test-client", KeepAlive: time.Minute}
}

// newTestSupervisor retries quickly and never gives up.
func newTestSupervisor(dev *device.Device, dial func(ctx context.Context) (conn, error)) *supervisor {
	return &supervisor{
		device:  dev,
		dial:    dial,
		session: sessionOptions(mqttOptions(), dev),
		logger:  testLogger(),
	}
}

// fakeBroker accepts one session over a net.Pipe: it answers CONNECT and
// SUBSCRIBE, then queues every packet the device writes.
type fakeBroker struct {
	t        *testing.T
	conn     net.Conn
	connectC chan *packets.ConnectPacket
	packets  chan packets.ControlPacket
}

// newFakeBroker returns the device end of the pipe and the broker.
func newFakeBroker(t *testing.T) (net.Conn, *fakeBroker) {
	t.Helper()

	deviceEnd, brokerEnd := net.Pipe()
	b := &fakeBroker{
		t:        t,
		conn:     brokerEnd,
		connectC: make(chan *packets.ConnectPacket, 1),
		packets:  make(chan packets.ControlPacket, 64),
	}
	go b.serve()

	t.Cleanup(func() {
		deviceEnd.Close()
		brokerEnd.Close()
	})
	return deviceEnd, b
}

func (b *fakeBroker) serve() {
	defer close(b.packets)

	for {
		cp, err := packets.ReadPacket(b.conn)
		if err != nil {
			return
		}

		switch p := cp.(type) {
		case *packets.ConnectPacket:
			b.connectC <- p
			ack := packets.NewControlPacket(packets.Connack).(*packets.ConnackPacket)
			if ack.Write(b.conn) != nil {
				return
			}
		case *packets.SubscribePacket:
			ack := packets.NewControlPacket(packets.Suback).(*packets.SubackPacket)
			ack.MessageID = p.MessageID
			ack.ReturnCodes = make([]byte, len(p.Topics))
			if ack.Write(b.conn) != nil {
				return
			}
		default:
			b.packets <- cp
		}
	}
}

// connect returns the CONNECT packet of the session.
func (b *fakeBroker) connect() *packets.ConnectPacket {
	b.t.Helper()

	select {
	case cp := <-b.connectC:
		return cp
	case <-time.After(testTimeout):
		b.t.Fatal("timed out waiting for CONNECT")
	}
	return nil
}

// next returns the next packet written after the handshake.
func (b *fakeBroker) next() packets.ControlPacket {
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

func (b *fakeBroker) nextPublish() *packets.PublishPacket {
	b.t.Helper()

	cp := b.next()
	pub, ok := cp.(*packets.PublishPacket)
	if !ok {
		b.t.Fatalf("got %T, want *packets.PublishPacket", cp)
	}
	return pub
}

// send delivers a QoS 0 PUBLISH to the device.
func (b *fakeBroker) send(topic, payload string) {
	b.t.Helper()

	pub := packets.NewControlPacket(packets.Publish).(*packets.PublishPacket)
	pub.TopicName = topic
	pub.Payload = []byte(payload)

	if err := b.conn.SetWriteDeadline(time.Now().Add(testTimeout)); err != nil {
		b.t.Fatalf("SetWriteDeadline() error = %v", err)
	}
	if err := pub.Write(b.conn); err != nil {
		b.t.Fatalf("writing publish to device: %v", err)
	}
}

// close drops the connection from the broker side.
func (b *fakeBroker) close() {
	b.conn.Close()
}

func recvBroker(t *testing.T, ch <-chan *fakeBroker) *fakeBroker {
	t.Helper()

	select {
	case b := <-ch:
		return b
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for dial")
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
