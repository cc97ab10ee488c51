package device

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/nerrad567/graylogic-ha/internal/hass"
)

// Logger defines the logging interface used by the Device.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// entity is one slot of the registry arena. Everything but storage and
// publishPending is fixed at creation.
type entity struct {
	id          string
	name        string
	domain      hass.Domain
	deviceClass hass.DeviceClass
	stateClass  hass.StateClass
	unit        string
	number      NumberConfig

	stateTopic   string
	commandTopic string

	storage        storage
	publishPending bool
}

// Device is a Home Assistant MQTT discovery device: a fixed set of
// entities, the queue of state changes not yet published, and the run loop
// that talks to the broker.
//
// Handles returned by the Create methods may be used from any goroutine.
// Run must be driven by a single goroutine at a time.
type Device struct {
	cfg        Config
	topics     hass.Topics
	deviceInfo hass.DeviceInfo

	logger    Logger
	metrics   *Metrics
	recorders []StateRecorder
	keepAlive time.Duration
	now       func() time.Time

	// mu protects everything below. It is never held across transport I/O.
	mu        sync.Mutex
	res       *Resources
	byID      map[string]int
	byCommand map[string]int
	started   bool
	running   bool
	state     RunState

	// notify wakes the run loop when the publish queue gains an entry.
	notify chan struct{}
}

// Option configures optional Device behaviour.
type Option func(*Device)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger Logger) Option {
	return func(d *Device) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus collectors. A nil value disables metrics.
func WithMetrics(m *Metrics) Option {
	return func(d *Device) {
		d.metrics = m
	}
}

// WithRecorder adds a sink that receives every published state.
// May be given more than once.
func WithRecorder(r StateRecorder) Option {
	return func(d *Device) {
		if r != nil {
			d.recorders = append(d.recorders, r)
		}
	}
}

// WithKeepAlive makes Run send a PINGREQ every interval while Steady.
// Zero disables pings.
func WithKeepAlive(interval time.Duration) Option {
	return func(d *Device) {
		d.keepAlive = interval
	}
}

// WithClock overrides the time source used to stamp stored values.
func WithClock(now func() time.Time) Option {
	return func(d *Device) {
		if now != nil {
			d.now = now
		}
	}
}

// New creates a device backed by res.
//
// Parameters:
//   - res: Pre-allocated entity storage from NewResources, not shared with another Device
//   - cfg: Device identity; DeviceID must be a valid topic segment
//   - opts: Optional behaviour (logger, metrics, recorders, keep-alive)
//
// Returns:
//   - *Device: Device in the Connecting state with no entities
//   - error: ErrInvalidConfig if the identity is unusable or res is already in use
func New(res *Resources, cfg Config, opts ...Option) (*Device, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: resources are required", ErrInvalidConfig)
	}
	if !hass.ValidSegment(cfg.DeviceID) {
		return nil, fmt.Errorf("%w: device id %q", ErrInvalidConfig, cfg.DeviceID)
	}
	if cfg.DiscoveryPrefix == "" {
		cfg.DiscoveryPrefix = hass.DefaultDiscoveryPrefix
	}
	if !res.claimed.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: resources already back another device", ErrInvalidConfig)
	}

	d := &Device{
		cfg:    cfg,
		topics: hass.Topics{Prefix: cfg.DiscoveryPrefix, DeviceID: cfg.DeviceID},
		deviceInfo: hass.DeviceInfo{
			Identifiers:  []string{cfg.DeviceID},
			Name:         cfg.DeviceName,
			Manufacturer: cfg.Manufacturer,
			Model:        cfg.Model,
			SWVersion:    cfg.SoftwareVersion,
		},
		logger:    noopLogger{},
		now:       time.Now,
		res:       res,
		byID:      make(map[string]int, res.Capacity()),
		byCommand: make(map[string]int),
		state:     StateConnecting,
		notify:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.metrics.setRunState(StateConnecting)

	return d, nil
}

// Config returns the device identity.
func (d *Device) Config() Config {
	return d.cfg
}

// State returns the current run loop state.
func (d *Device) State() RunState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// CommandFilter returns the subscription filter covering every command
// topic of the device.
func (d *Device) CommandFilter() string {
	return d.topics.CommandFilter()
}

// AvailabilityTopic returns the topic carrying the online/offline payloads.
func (d *Device) AvailabilityTopic() string {
	return d.topics.Availability()
}

// Len returns the number of entities created so far.
func (d *Device) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.res.entities)
}

// =============================================================================
// Internal helpers (caller must hold d.mu)
// =============================================================================

// entityAt returns the arena slot for idx. An index outside the arena means
// a handle outlived or escaped its device and panics.
func (d *Device) entityAt(idx int) *entity {
	if idx < 0 || idx >= len(d.res.entities) {
		panic(fmt.Sprintf("device: entity index %d out of range [0,%d)", idx, len(d.res.entities)))
	}
	return &d.res.entities[idx]
}

// markPendingLocked queues idx for publishing unless it is already queued.
// It reports whether an entry was added.
func (d *Device) markPendingLocked(idx int) bool {
	e := d.entityAt(idx)
	if e.publishPending {
		return false
	}
	e.publishPending = true
	d.res.queue.push(idx)
	return true
}

// wake nudges the run loop without blocking.
func (d *Device) wake() {
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// store writes v into the entity and queues a publish if it changed.
// NaN and infinities have no state payload the hub accepts and are dropped.
func (d *Device) store(idx int, v float32) {
	if f := float64(v); math.IsNaN(f) || math.IsInf(f, 0) {
		d.logger.Debug("dropping non-finite value", "entity", d.entityID(idx), "value", f)
		return
	}

	d.mu.Lock()
	e := d.entityAt(idx)
	changed := e.storage.current().set(v, d.now())
	queued := false
	if changed {
		queued = d.markPendingLocked(idx)
	}
	depth := d.res.queue.len()
	d.mu.Unlock()

	if queued {
		d.metrics.setQueueDepth(depth)
		d.wake()
	}
}

// value returns the last stored value of idx.
func (d *Device) value(idx int) (float32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.entityAt(idx).storage.current()
	return r.value, r.hasValue
}
