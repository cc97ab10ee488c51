package device

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the device's Prometheus collectors. All methods are safe on
// a nil *Metrics, which records nothing.
type Metrics struct {
	statesPublished   *prometheus.CounterVec
	announcements     prometheus.Counter
	commandsRouted    *prometheus.CounterVec
	messagesDiscarded *prometheus.CounterVec
	recordErrors      prometheus.Counter
	recordsDropped    prometheus.Counter
	runState          *prometheus.GaugeVec
	queueDepth        prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// It panics if registration fails, as prometheus.MustRegister does.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		statesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hadevice_state_publishes_total",
			Help: "State messages handed to the broker, by entity",
		}, []string{"entity_id"}),
		announcements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hadevice_discovery_announcements_total",
			Help: "Discovery config messages published",
		}),
		commandsRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hadevice_commands_routed_total",
			Help: "Inbound commands delivered to a number, by entity",
		}, []string{"entity_id"}),
		messagesDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hadevice_inbound_discarded_total",
			Help: "Inbound messages dropped, by reason",
		}, []string{"reason"}),
		recordErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hadevice_state_record_errors_total",
			Help: "State history writes that failed",
		}),
		recordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hadevice_state_records_dropped_total",
			Help: "State history records dropped because the buffer was full",
		}),
		runState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hadevice_run_state",
			Help: "1 for the current run loop state, 0 otherwise",
		}, []string{"state"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hadevice_publish_queue_depth",
			Help: "Entities waiting to have their state published",
		}),
	}

	reg.MustRegister(
		m.statesPublished,
		m.announcements,
		m.commandsRouted,
		m.messagesDiscarded,
		m.recordErrors,
		m.recordsDropped,
		m.runState,
		m.queueDepth,
	)
	return m
}

func (m *Metrics) incStatePublished(entityID string) {
	if m == nil {
		return
	}
	m.statesPublished.WithLabelValues(entityID).Inc()
}

func (m *Metrics) incAnnouncements() {
	if m == nil {
		return
	}
	m.announcements.Inc()
}

func (m *Metrics) incCommandRouted(entityID string) {
	if m == nil {
		return
	}
	m.commandsRouted.WithLabelValues(entityID).Inc()
}

func (m *Metrics) incDiscarded(reason string) {
	if m == nil {
		return
	}
	m.messagesDiscarded.WithLabelValues(reason).Inc()
}

func (m *Metrics) incRecordErrors() {
	if m == nil {
		return
	}
	m.recordErrors.Inc()
}

func (m *Metrics) incRecordsDropped() {
	if m == nil {
		return
	}
	m.recordsDropped.Inc()
}

func (m *Metrics) setRunState(s RunState) {
	if m == nil {
		return
	}
	for _, known := range []RunState{StateConnecting, StateAnnouncing, StateSteady} {
		v := 0.0
		if known == s {
			v = 1
		}
		m.runState.WithLabelValues(known.String()).Set(v)
	}
}

func (m *Metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
