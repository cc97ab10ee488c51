package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/graylogic-ha/internal/hass"
)

// Config is the root configuration structure for an MQTT discovery device.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Logging   LoggingConfig   `yaml:"logging"`
	History   HistoryConfig   `yaml:"history"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Status    StatusConfig    `yaml:"status"`
	Entities  []EntityConfig  `yaml:"entities"`
}

// DeviceConfig describes the physical device as Home Assistant shows it.
type DeviceConfig struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Manufacturer string `yaml:"manufacturer"`
	Model        string `yaml:"model"`

	// Capacity is the maximum number of entities the device can hold.
	// Zero means "exactly as many as configured".
	Capacity int `yaml:"capacity"`
}

// DiscoveryConfig contains Home Assistant discovery settings.
type DiscoveryConfig struct {
	Prefix string `yaml:"prefix"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	KeepAlive int                 `yaml:"keepalive"` // seconds
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// HistoryConfig contains the SQLite state-history settings.
type HistoryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// RetentionDays bounds how long recorded states are kept. Zero keeps
	// everything.
	RetentionDays int `yaml:"retention_days"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

// StatusConfig contains the HTTP status server settings.
type StatusConfig struct {
	Enabled  bool                `yaml:"enabled"`
	Host     string              `yaml:"host"`
	Port     int                 `yaml:"port"`
	Timeouts StatusTimeoutConfig `yaml:"timeouts"`
}

// StatusTimeoutConfig contains HTTP timeout settings.
type StatusTimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// Entity kinds accepted in the entities section.
const (
	KindTemperature = "temperature"
	KindHumidity    = "humidity"
	KindPressure    = "pressure"
	KindBattery     = "battery"
	KindIlluminance = "illuminance"
	KindEnergy      = "energy"
	KindNumber      = "number"
)

// Producer sources that drive an entity's value.
const (
	SourceNone     = ""
	SourceConstant = "constant"
	SourceRandom   = "random"
	SourceEcho     = "echo"
)

// EntityConfig defines one entity and the producer feeding it.
type EntityConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`

	// Unit overrides the kind's default unit token.
	Unit string `yaml:"unit"`

	Source string `yaml:"source"`

	// Value is the reading published by the constant source.
	Value float64 `yaml:"value"`

	// Min and Max bound the random source, and the accepted command range
	// of a number.
	Min *float64 `yaml:"min"`
	Max *float64 `yaml:"max"`

	// Step and Mode only apply to numbers.
	Step *float64 `yaml:"step"`
	Mode string   `yaml:"mode"`

	// Interval is the producer period in seconds.
	Interval int `yaml:"interval"`
}

// GetInterval returns the producer period as a Duration.
func (e EntityConfig) GetInterval() time.Duration {
	return time.Duration(e.Interval) * time.Second
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HADEVICE_SECTION_KEY
// For example: HADEVICE_MQTT_HOST, HADEVICE_DEVICE_ID
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// A broker rejects a second session with the same client ID, so every
	// instance without an explicit one gets its own.
	if cfg.MQTT.Broker.ClientID == "" {
		cfg.MQTT.Broker.ClientID = "hadevice-" + uuid.NewString()
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:           "hadevice",
			Name:         "HA Device",
			Manufacturer: "Gray Logic",
			Model:        "hadevice",
		},
		Discovery: DiscoveryConfig{
			Prefix: "homeassistant",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS:       1,
			KeepAlive: 60,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		History: HistoryConfig{
			Path:          "./data/hadevice.db",
			WALMode:       true,
			BusyTimeout:   5,
			RetentionDays: 30,
		},
		Status: StatusConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: StatusTimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HADEVICE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("HADEVICE_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}
	if v := os.Getenv("HADEVICE_DEVICE_NAME"); v != "" {
		cfg.Device.Name = v
	}

	// Discovery
	if v := os.Getenv("HADEVICE_DISCOVERY_PREFIX"); v != "" {
		cfg.Discovery.Prefix = v
	}

	// MQTT
	if v := os.Getenv("HADEVICE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HADEVICE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("HADEVICE_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}
	if v := os.Getenv("HADEVICE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HADEVICE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Logging
	if v := os.Getenv("HADEVICE_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// History
	if v := os.Getenv("HADEVICE_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}

	// InfluxDB
	if v := os.Getenv("HADEVICE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// All problems are collected so an operator can fix the file in one pass.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Device validation
	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	} else if !hass.ValidSegment(c.Device.ID) {
		errs = append(errs, "device.id must not contain '/', '+', '#' or NUL")
	}
	if c.Device.Capacity < 0 {
		errs = append(errs, "device.capacity must not be negative")
	} else if c.Device.Capacity > 0 && len(c.Entities) > c.Device.Capacity {
		errs = append(errs, fmt.Sprintf("device.capacity %d is smaller than the %d configured entities",
			c.Device.Capacity, len(c.Entities)))
	}

	// Discovery validation
	if c.Discovery.Prefix == "" {
		errs = append(errs, "discovery.prefix is required")
	}

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.KeepAlive < 0 || c.MQTT.KeepAlive > 65535 {
		errs = append(errs, "mqtt.keepalive must be between 0 and 65535 seconds")
	}
	if c.MQTT.Reconnect.InitialDelay < 0 || c.MQTT.Reconnect.MaxDelay < c.MQTT.Reconnect.InitialDelay {
		errs = append(errs, "mqtt.reconnect delays must satisfy 0 <= initial_delay <= max_delay")
	}

	// History validation
	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, "history.path is required when history is enabled")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	// Status validation
	if c.Status.Enabled && (c.Status.Port < 1 || c.Status.Port > 65535) {
		errs = append(errs, "status.port must be between 1 and 65535")
	}

	// Entity validation
	seen := make(map[string]bool, len(c.Entities))
	for i, e := range c.Entities {
		errs = append(errs, validateEntity(i, e, seen)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateEntity checks one entry of the entities section.
func validateEntity(i int, e EntityConfig, seen map[string]bool) []string {
	var errs []string
	prefix := fmt.Sprintf("entities[%d]", i)

	switch {
	case e.ID == "":
		errs = append(errs, prefix+".id is required")
	case !hass.ValidSegment(e.ID):
		errs = append(errs, prefix+".id must not contain '/', '+', '#' or NUL")
	case seen[e.ID]:
		errs = append(errs, fmt.Sprintf("%s.id %q is duplicated", prefix, e.ID))
	default:
		seen[e.ID] = true
	}

	switch e.Kind {
	case KindNumber:
		if e.Source != SourceNone && e.Source != SourceEcho {
			errs = append(errs, prefix+".source must be empty or echo for a number")
		}
		switch e.Mode {
		case "", "auto", "box", "slider":
		default:
			errs = append(errs, prefix+".mode must be auto, box, or slider")
		}
		if e.Step != nil && *e.Step <= 0 {
			errs = append(errs, prefix+".step must be positive")
		}
	case KindTemperature, KindHumidity, KindPressure, KindBattery, KindIlluminance, KindEnergy:
		switch e.Source {
		case SourceNone, SourceConstant:
		case SourceRandom:
			if e.Min == nil || e.Max == nil {
				errs = append(errs, prefix+" random source needs min and max")
			}
		default:
			errs = append(errs, prefix+".source must be empty, constant, or random for a sensor")
		}
		if e.Source != SourceNone && e.Interval <= 0 {
			errs = append(errs, prefix+".interval must be positive for a producer")
		}
	default:
		errs = append(errs, fmt.Sprintf("%s.kind %q is not supported", prefix, e.Kind))
	}

	if e.Min != nil && e.Max != nil && *e.Min > *e.Max {
		errs = append(errs, prefix+".min must not exceed max")
	}

	return errs
}

// EntityCapacity returns the registry capacity the device should be built with.
func (c *Config) EntityCapacity() int {
	if c.Device.Capacity > 0 {
		return c.Device.Capacity
	}
	return len(c.Entities)
}

// GetKeepAlive returns the MQTT keepalive as a Duration.
func (c *Config) GetKeepAlive() time.Duration {
	return time.Duration(c.MQTT.KeepAlive) * time.Second
}

// GetReconnectDelays returns the initial and maximum reconnect backoff.
func (c *Config) GetReconnectDelays() (initial, maxDelay time.Duration) {
	return time.Duration(c.MQTT.Reconnect.InitialDelay) * time.Second,
		time.Duration(c.MQTT.Reconnect.MaxDelay) * time.Second
}

// GetReadTimeout returns the status server read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Status.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the status server write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Status.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the status server idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.Status.Timeouts.Idle) * time.Second
}
