// Package metrics exposes the TNC/reflector-client's counters and
// gauges as real Prometheus collectors (github.com/prometheus/client_golang),
// registered against a private registry so tests never touch the
// process-global default registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "m17"

// Metrics holds every collector the TNC core and reflector client
// report against. Construct one per process with New and pass it down
// to the components that produce these events.
type Metrics struct {
	registry *prometheus.Registry

	PacketsReceived  prometheus.Counter
	PacketsSent      prometheus.Counter
	BytesReceived    prometheus.Counter
	BytesSent        prometheus.Counter
	StreamsActive    prometheus.Gauge
	StreamsStarted   prometheus.Counter
	CSMADeferrals    prometheus.Counter
	PTTKeyups        prometheus.Counter
	ReflectorStatus  prometheus.Gauge
	ReflectorRetries prometheus.Counter
}

// New constructs and registers a Metrics set against a fresh private
// registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		PacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "packets_received_total",
			Help: "Total M17 packets and stream frames received from the TNC.",
		}),
		PacketsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "packets_sent_total",
			Help: "Total M17 packet-mode frames transmitted.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_received_total",
			Help: "Total payload bytes received across all modes.",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_sent_total",
			Help: "Total payload bytes transmitted across all modes.",
		}),
		StreamsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "streams_active",
			Help: "Number of voice streams currently open (RX or TX).",
		}),
		StreamsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "streams_started_total",
			Help: "Total voice streams opened.",
		}),
		CSMADeferrals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "csma_deferrals_total",
			Help: "Total times transmission was deferred by the CSMA/p-persistence gate.",
		}),
		PTTKeyups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ptt_keyups_total",
			Help: "Total times the PTT line was asserted.",
		}),
		ReflectorStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "reflector_connected",
			Help: "1 if the reflector client currently holds a connected session, else 0.",
		}),
		ReflectorRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reflector_reconnects_total",
			Help: "Total reflector reconnect attempts after a timeout or rejection.",
		}),
	}
	reg.MustRegister(
		m.PacketsReceived, m.PacketsSent, m.BytesReceived, m.BytesSent,
		m.StreamsActive, m.StreamsStarted, m.CSMADeferrals, m.PTTKeyups,
		m.ReflectorStatus, m.ReflectorRetries,
	)
	return m
}

// Registry returns the private registry these collectors are
// registered against, for wiring into an HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// StreamOpened records a new stream and bumps the active gauge.
func (m *Metrics) StreamOpened() {
	m.StreamsStarted.Inc()
	m.StreamsActive.Inc()
}

// StreamClosed decrements the active-stream gauge.
func (m *Metrics) StreamClosed() {
	m.StreamsActive.Dec()
}

// SetReflectorConnected reflects the reflector client's outer status
// as a 0/1 gauge.
func (m *Metrics) SetReflectorConnected(connected bool) {
	if connected {
		m.ReflectorStatus.Set(1)
	} else {
		m.ReflectorStatus.Set(0)
	}
}
