package mqtt

import (
	"bytes"
	"fmt"
	"io"

	"github.com/eclipse/paho.mqtt.golang/packets"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Message is an application message received from the broker.
type Message struct {
	Topic     string
	Payload   []byte
	QoS       byte
	MessageID uint16
	Retained  bool
}

// EncodePublish serialises a QoS 0 PUBLISH packet.
//
// The whole packet is assembled in memory so it can be handed to the
// transport in a single Write; a concurrent writer can never interleave
// with a half-written packet.
//
// Parameters:
//   - topic: Destination topic (must not be empty)
//   - payload: Message payload (max 1MB)
//   - retained: Whether the broker should retain the message
//
// Returns:
//   - []byte: The encoded packet
//   - error: ErrInvalidTopic or ErrPublishFailed
func EncodePublish(topic string, payload []byte, retained bool) ([]byte, error) {
	if topic == "" {
		return nil, ErrInvalidTopic
	}
	if len(payload) > maxPayloadSize {
		return nil, fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	pub := packets.NewControlPacket(packets.Publish).(*packets.PublishPacket)
	pub.TopicName = topic
	pub.Payload = payload
	pub.Retain = retained
	pub.Qos = 0

	return encode(pub)
}

// WritePublish encodes a QoS 0 PUBLISH and writes it to w in one call.
func WritePublish(w io.Writer, topic string, payload []byte, retained bool) error {
	frame, err := EncodePublish(topic, payload, retained)
	if err != nil {
		return err
	}
	return writeFrame(w, frame)
}

// WritePuback acknowledges an inbound QoS 1 PUBLISH.
func WritePuback(w io.Writer, messageID uint16) error {
	ack := packets.NewControlPacket(packets.Puback).(*packets.PubackPacket)
	ack.MessageID = messageID

	frame, err := encode(ack)
	if err != nil {
		return err
	}
	return writeFrame(w, frame)
}

// WritePingreq writes a keepalive PINGREQ.
func WritePingreq(w io.Writer) error {
	frame, err := encode(packets.NewControlPacket(packets.Pingreq))
	if err != nil {
		return err
	}
	return writeFrame(w, frame)
}

// WriteDisconnect writes a DISCONNECT, telling the broker not to publish
// the last will.
func WriteDisconnect(w io.Writer) error {
	frame, err := encode(packets.NewControlPacket(packets.Disconnect))
	if err != nil {
		return err
	}
	return writeFrame(w, frame)
}

// ReadMessage blocks until the next PUBLISH arrives on r and returns it.
//
// Control packets that carry no application message (PINGRESP, PUBACK,
// SUBACK, ...) are consumed and skipped. Any read or decode error is
// returned unchanged; io.EOF means the remote end closed the stream.
func ReadMessage(r io.Reader) (Message, error) {
	for {
		cp, err := packets.ReadPacket(r)
		if err != nil {
			return Message{}, err
		}

		pub, ok := cp.(*packets.PublishPacket)
		if !ok {
			continue
		}

		return Message{
			Topic:     pub.TopicName,
			Payload:   pub.Payload,
			QoS:       pub.Qos,
			MessageID: pub.MessageID,
			Retained:  pub.Retain,
		}, nil
	}
}

// encode serialises any control packet into a single buffer.
func encode(cp packets.ControlPacket) ([]byte, error) {
	var buf bytes.Buffer
	if err := cp.Write(&buf); err != nil {
		return nil, fmt.Errorf("encoding %T: %w", cp, err)
	}
	return buf.Bytes(), nil
}

// writeFrame hands an encoded packet to the transport.
func writeFrame(w io.Writer, frame []byte) error {
	n, err := w.Write(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrShortWrite, n, len(frame))
	}
	return nil
}
