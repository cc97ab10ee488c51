package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/nerrad567/graylogic-ha/internal/infrastructure/config"
)

// Session handshake constants.
const (
	// protocolName and protocolVersion select MQTT 3.1.1.
	protocolName    = "MQTT"
	protocolVersion = 4

	// connackAccepted is the CONNACK return code for an accepted connection.
	connackAccepted = 0x00

	// subackFailure is the SUBACK return code for a rejected subscription.
	subackFailure = 0x80

	// subscribeMessageID is the packet identifier used for the handshake SUBSCRIBE.
	subscribeMessageID = 1
)

// SessionOptions describes the CONNECT and SUBSCRIBE exchange performed on a
// freshly dialled transport before it is handed to the device run loop.
type SessionOptions struct {
	ClientID string
	Username string
	Password string

	// KeepAlive is announced to the broker. The device run loop must send
	// a PINGREQ at least this often.
	KeepAlive time.Duration

	// Will is published by the broker if the transport drops without a
	// DISCONNECT. Empty WillTopic disables it.
	WillTopic   string
	WillPayload []byte
	WillRetain  bool

	// Subscriptions are topic filters subscribed at QoS 0 once connected.
	Subscriptions []string

	// Timeout bounds the whole handshake when the transport supports
	// deadlines. Zero uses the default connect timeout.
	Timeout time.Duration
}

// SessionOptionsFromConfig fills the connection fields of SessionOptions
// from configuration. Will and subscriptions are left to the caller.
func SessionOptionsFromConfig(cfg config.MQTTConfig) SessionOptions {
	return SessionOptions{
		ClientID:  cfg.Broker.ClientID,
		Username:  cfg.Auth.Username,
		Password:  cfg.Auth.Password,
		KeepAlive: keepAlive(cfg),
	}
}

// Dial opens the raw byte stream to the broker (TCP, or TLS when enabled).
//
// Parameters:
//   - ctx: Context for cancellation of the dial
//   - cfg: MQTT configuration from config.yaml
//
// Returns:
//   - net.Conn: Connected transport, not yet speaking MQTT
//   - error: ErrConnectionFailed wrapping the dial error
func Dial(ctx context.Context, cfg config.MQTTConfig) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: defaultConnectTimeout}
	addr := brokerAddress(cfg)

	var (
		conn net.Conn
		err  error
	)
	if tc := tlsConfig(cfg); tc != nil {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: tc}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return conn, nil
}

// Handshake performs CONNECT/CONNACK followed by SUBSCRIBE/SUBACK on rw.
//
// Any PUBLISH that the broker delivers before the SUBACK is dropped; the
// broker resends retained messages after the SUBACK so nothing retained is
// lost.
//
// Parameters:
//   - rw: Freshly dialled transport
//   - opts: Connection identity, will and subscriptions
//
// Returns:
//   - error: ErrConnectionRefused, ErrSubscribeFailed, ErrUnexpectedPacket,
//     or the transport error
func Handshake(rw io.ReadWriter, opts SessionOptions) error {
	if dl, ok := rw.(interface{ SetDeadline(time.Time) error }); ok {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultConnectTimeout
		}
		if err := dl.SetDeadline(time.Now().Add(timeout)); err != nil {
			return fmt.Errorf("setting handshake deadline: %w", err)
		}
		defer dl.SetDeadline(time.Time{}) //nolint:errcheck // Best effort reset
	}

	if err := writeConnect(rw, opts); err != nil {
		return fmt.Errorf("%w: writing CONNECT: %w", ErrConnectionFailed, err)
	}

	cp, err := packets.ReadPacket(rw)
	if err != nil {
		return fmt.Errorf("%w: reading CONNACK: %w", ErrConnectionFailed, err)
	}
	connack, ok := cp.(*packets.ConnackPacket)
	if !ok {
		return fmt.Errorf("%w: expected CONNACK, got %T", ErrUnexpectedPacket, cp)
	}
	if connack.ReturnCode != connackAccepted {
		return fmt.Errorf("%w: return code %d", ErrConnectionRefused, connack.ReturnCode)
	}

	if len(opts.Subscriptions) == 0 {
		return nil
	}

	if err := writeSubscribe(rw, opts.Subscriptions); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	for {
		cp, err := packets.ReadPacket(rw)
		if err != nil {
			return fmt.Errorf("%w: reading SUBACK: %w", ErrSubscribeFailed, err)
		}

		switch p := cp.(type) {
		case *packets.SubackPacket:
			if p.MessageID != subscribeMessageID {
				return fmt.Errorf("%w: SUBACK for message %d", ErrUnexpectedPacket, p.MessageID)
			}
			for i, code := range p.ReturnCodes {
				if code == subackFailure && i < len(opts.Subscriptions) {
					return fmt.Errorf("%w: broker rejected %q", ErrSubscribeFailed, opts.Subscriptions[i])
				}
			}
			return nil
		case *packets.PublishPacket:
			continue
		default:
			return fmt.Errorf("%w: expected SUBACK, got %T", ErrUnexpectedPacket, cp)
		}
	}
}

func writeConnect(w io.Writer, opts SessionOptions) error {
	conn := packets.NewControlPacket(packets.Connect).(*packets.ConnectPacket)
	conn.ProtocolName = protocolName
	conn.ProtocolVersion = protocolVersion
	conn.CleanSession = true
	conn.ClientIdentifier = opts.ClientID
	conn.Keepalive = uint16(opts.KeepAlive / time.Second)

	if opts.Username != "" {
		conn.UsernameFlag = true
		conn.Username = opts.Username
		conn.PasswordFlag = opts.Password != ""
		conn.Password = []byte(opts.Password)
	}

	if opts.WillTopic != "" {
		conn.WillFlag = true
		conn.WillTopic = opts.WillTopic
		conn.WillMessage = opts.WillPayload
		conn.WillRetain = opts.WillRetain
		conn.WillQos = 1
	}

	frame, err := encode(conn)
	if err != nil {
		return err
	}
	return writeFrame(w, frame)
}

func writeSubscribe(w io.Writer, filters []string) error {
	sub := packets.NewControlPacket(packets.Subscribe).(*packets.SubscribePacket)
	sub.MessageID = subscribeMessageID
	sub.Topics = filters
	sub.Qoss = make([]byte, len(filters))

	frame, err := encode(sub)
	if err != nil {
		return err
	}
	return writeFrame(w, frame)
}
