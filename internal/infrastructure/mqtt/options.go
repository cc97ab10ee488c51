package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/graylogic-ha/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultOperationTimeout bounds a client publish or subscribe.
	defaultOperationTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is used when the configuration leaves keepalive unset.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// BrokerURL returns the broker address in the scheme://host:port form used
// by the paho client (tcp:// or ssl:// depending on the TLS setting).
func BrokerURL(cfg config.MQTTConfig) string {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
}

// brokerAddress returns host:port for dialling the raw transport.
func brokerAddress(cfg config.MQTTConfig) string {
	return fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port)
}

// keepAlive returns the configured keepalive or the default.
func keepAlive(cfg config.MQTTConfig) time.Duration {
	if cfg.KeepAlive <= 0 {
		return defaultKeepAlive
	}
	return time.Duration(cfg.KeepAlive) * time.Second
}

// tlsConfig returns the client TLS configuration, or nil when TLS is off.
func tlsConfig(cfg config.MQTTConfig) *tls.Config {
	if !cfg.Broker.TLS {
		return nil
	}
	return &tls.Config{
		MinVersion: tlsMinVersion,
		ServerName: cfg.Broker.Host,
	}
}

// buildClientOptions maps configuration onto paho options: broker URL,
// credentials, clean session, keepalive, TLS, and automatic reconnect
// capped at the configured maximum delay.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker(BrokerURL(cfg)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(defaultConnectTimeout).
		SetKeepAlive(keepAlive(cfg))

	if cfg.Reconnect.MaxDelay > 0 {
		opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	}
	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username).SetPassword(cfg.Auth.Password)
	}
	if tc := tlsConfig(cfg); tc != nil {
		opts.SetTLSConfig(tc)
	}
	return opts
}
