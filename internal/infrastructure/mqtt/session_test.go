package mqtt

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/nerrad567/graylogic-ha/internal/infrastructure/config"
)

// brokerScript is a minimal broker side of the handshake. It records the
// CONNECT and SUBSCRIBE it receives and answers with the configured codes.
type brokerScript struct {
	connackCode   byte
	subackCodes   []byte
	subackID      uint16
	publishBefore bool

	connect   *packets.ConnectPacket
	subscribe *packets.SubscribePacket
}

func (b *brokerScript) serve(conn net.Conn) error {
	cp, err := packets.ReadPacket(conn)
	if err != nil {
		return err
	}
	b.connect = cp.(*packets.ConnectPacket)

	ack := packets.NewControlPacket(packets.Connack).(*packets.ConnackPacket)
	ack.ReturnCode = b.connackCode
	if err := ack.Write(conn); err != nil {
		return err
	}
	if b.connackCode != connackAccepted || b.subackCodes == nil {
		return nil
	}

	cp, err = packets.ReadPacket(conn)
	if err != nil {
		return err
	}
	b.subscribe = cp.(*packets.SubscribePacket)

	if b.publishBefore {
		pub := packets.NewControlPacket(packets.Publish).(*packets.PublishPacket)
		pub.TopicName = "kitchen/setpoint/set"
		pub.Payload = []byte("1")
		if err := pub.Write(conn); err != nil {
			return err
		}
	}

	suback := packets.NewControlPacket(packets.Suback).(*packets.SubackPacket)
	suback.MessageID = b.subackID
	suback.ReturnCodes = b.subackCodes
	return suback.Write(conn)
}

func runHandshake(t *testing.T, script *brokerScript, opts SessionOptions) error {
	t.Helper()

	client, broker := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		broker.Close()
	})

	done := make(chan error, 1)
	go func() { done <- script.serve(broker) }()

	err := Handshake(client, opts)

	select {
	case serr := <-done:
		if serr != nil && err == nil {
			t.Fatalf("broker script error = %v", serr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("broker script did not finish")
	}
	return err
}

func TestHandshake_Success(t *testing.T) {
	script := &brokerScript{subackID: subscribeMessageID, subackCodes: []byte{0}, publishBefore: true}
	opts := SessionOptions{
		ClientID:      "kitchen-node",
		Username:      "device",
		Password:      "secret",
		KeepAlive:     30 * time.Second,
		WillTopic:     "kitchen/availability",
		WillPayload:   []byte("offline"),
		WillRetain:    true,
		Subscriptions: []string{"kitchen/+/set"},
	}

	if err := runHandshake(t, script, opts); err != nil {
		t.Fatalf("Handshake() error = %v", err)
	}

	c := script.connect
	if c.ProtocolName != "MQTT" || c.ProtocolVersion != 4 {
		t.Errorf("protocol = %s/%d, want MQTT/4", c.ProtocolName, c.ProtocolVersion)
	}
	if !c.CleanSession {
		t.Error("CleanSession = false, want true")
	}
	if c.ClientIdentifier != "kitchen-node" {
		t.Errorf("ClientIdentifier = %q, want kitchen-node", c.ClientIdentifier)
	}
	if c.Keepalive != 30 {
		t.Errorf("Keepalive = %d, want 30", c.Keepalive)
	}
	if !c.UsernameFlag || c.Username != "device" || !c.PasswordFlag || string(c.Password) != "secret" {
		t.Errorf("credentials = %v %q %v %q", c.UsernameFlag, c.Username, c.PasswordFlag, c.Password)
	}
	if !c.WillFlag || c.WillTopic != "kitchen/availability" || string(c.WillMessage) != "offline" || !c.WillRetain {
		t.Errorf("will = %v %q %q retain=%v", c.WillFlag, c.WillTopic, c.WillMessage, c.WillRetain)
	}

	s := script.subscribe
	if len(s.Topics) != 1 || s.Topics[0] != "kitchen/+/set" {
		t.Errorf("subscribed topics = %v, want [kitchen/+/set]", s.Topics)
	}
	if len(s.Qoss) != 1 || s.Qoss[0] != 0 {
		t.Errorf("subscribed qos = %v, want [0]", s.Qoss)
	}
}

func TestHandshake_NoSubscriptions(t *testing.T) {
	script := &brokerScript{}
	if err := runHandshake(t, script, SessionOptions{ClientID: "bare"}); err != nil {
		t.Fatalf("Handshake() error = %v", err)
	}
	if script.connect.UsernameFlag || script.connect.WillFlag {
		t.Error("username or will flag set without being configured")
	}
	if script.subscribe != nil {
		t.Error("SUBSCRIBE sent without subscriptions")
	}
}

func TestHandshake_Failures(t *testing.T) {
	tests := []struct {
		name    string
		script  *brokerScript
		wantErr error
	}{
		{
			name:    "connection refused",
			script:  &brokerScript{connackCode: 0x05},
			wantErr: ErrConnectionRefused,
		},
		{
			name:    "subscription rejected",
			script:  &brokerScript{subackID: subscribeMessageID, subackCodes: []byte{subackFailure}},
			wantErr: ErrSubscribeFailed,
		},
		{
			name:    "suback for wrong message",
			script:  &brokerScript{subackID: 9, subackCodes: []byte{0}},
			wantErr: ErrUnexpectedPacket,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runHandshake(t, tt.script, SessionOptions{
				ClientID:      "c",
				Subscriptions: []string{"kitchen/+/set"},
			})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Handshake() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHandshake_ClosedTransport(t *testing.T) {
	client, broker := net.Pipe()
	broker.Close()
	defer client.Close()

	err := Handshake(client, SessionOptions{ClientID: "c", Timeout: time.Second})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Handshake() error = %v, want ErrConnectionFailed", err)
	}
}

func TestSessionOptionsFromConfig(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker:    config.MQTTBrokerConfig{ClientID: "kitchen-node"},
		Auth:      config.MQTTAuthConfig{Username: "u", Password: "p"},
		KeepAlive: 15,
	}

	opts := SessionOptionsFromConfig(cfg)
	if opts.ClientID != "kitchen-node" || opts.Username != "u" || opts.Password != "p" {
		t.Errorf("identity = %q %q %q", opts.ClientID, opts.Username, opts.Password)
	}
	if opts.KeepAlive != 15*time.Second {
		t.Errorf("KeepAlive = %v, want 15s", opts.KeepAlive)
	}

	cfg.KeepAlive = 0
	if got := SessionOptionsFromConfig(cfg).KeepAlive; got != defaultKeepAlive {
		t.Errorf("default KeepAlive = %v, want %v", got, defaultKeepAlive)
	}
}

func TestBrokerURL(t *testing.T) {
	tests := []struct {
		tls  bool
		want string
	}{
		{false, "tcp://broker.local:1883"},
		{true, "ssl://broker.local:1883"},
	}

	for _, tt := range tests {
		cfg := config.MQTTConfig{Broker: config.MQTTBrokerConfig{Host: "broker.local", Port: 1883, TLS: tt.tls}}
		if got := BrokerURL(cfg); got != tt.want {
			t.Errorf("BrokerURL(tls=%v) = %q, want %q", tt.tls, got, tt.want)
		}
		if got := tlsConfig(cfg) != nil; got != tt.tls {
			t.Errorf("tlsConfig(tls=%v) != nil is %v", tt.tls, got)
		}
	}
}
