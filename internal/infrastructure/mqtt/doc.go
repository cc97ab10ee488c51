// Package mqtt provides MQTT 3.1.1 connectivity for hadevice.
//
// It has two halves:
//   - A wire codec and session handshake over any io.ReadWriter, built on
//     paho's packets package. The device run loop owns its transport and
//     uses these directly: Dial, Handshake, WritePublish, ReadMessage.
//   - Client, a wrapper around the paho client with auto-reconnect, used by
//     operator tooling (hactl) to watch discovery traffic and send commands.
//
// # Session
//
// Handshake sends CONNECT (clean session, optional credentials, optional
// last will) and waits for CONNACK, then subscribes to the requested
// filters at QoS 0 and waits for SUBACK. A refused CONNACK or a rejected
// filter is an error; the caller decides whether to retry.
//
// # Codec
//
// Every outbound packet is encoded into one buffer and handed to the
// transport in a single Write. ReadMessage skips control packets and
// returns only application messages.
//
// # Security Considerations
//
//   - TLS is used when cfg.Broker.TLS is set (minimum TLS 1.2)
//   - Credentials are sent in CONNECT; never log them
//
// # Usage
//
//	conn, err := mqtt.Dial(ctx, cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	opts := mqtt.SessionOptionsFromConfig(cfg.MQTT)
//	opts.Subscriptions = []string{"kitchen/+/set"}
//	if err := mqtt.Handshake(conn, opts); err != nil {
//	    return err
//	}
//	err = mqtt.WritePublish(conn, "kitchen/temp", []byte("21.5"), true)
package mqtt
