package rodt

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the protocol-level counters exposed by a session, in the
// pack's own idiom for instrumenting a binary protocol engine (mirrored
// from open-source-firmware-go-tcg-storage's drive-operation counters and
// runZeroInc-sockstats's TCP-info exporter).
type Metrics struct {
	PacketsSent          prometheus.Counter
	PacketsRetransmitted prometheus.Counter
	AcksReceived         prometheus.Counter
	AcksSent             prometheus.Counter
	HandshakesCompleted  prometheus.Counter
	HandshakesFailed     prometheus.Counter
	BytesReassembled     prometheus.Counter
	SessionsCompleted    *prometheus.CounterVec
	SessionsFailed       *prometheus.CounterVec
}

// NewMetrics registers a fresh set of RODT counters against reg. Pass
// prometheus.NewRegistry() in tests to avoid collisions with the default
// global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PacketsSent: f.NewCounter(prometheus.CounterOpts{
			Name: "rodt_packets_sent_total",
			Help: "Data and terminator packets written to the wire.",
		}),
		PacketsRetransmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "rodt_packets_retransmitted_total",
			Help: "Packets re-sent after a Go-Back-N timeout.",
		}),
		AcksReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "rodt_acks_received_total",
			Help: "Ack packets that advanced the sender's cumulative ack; duplicate and stale acks are not counted.",
		}),
		AcksSent: f.NewCounter(prometheus.CounterOpts{
			Name: "rodt_acks_sent_total",
			Help: "Cumulative ack packets emitted by the receiver.",
		}),
		HandshakesCompleted: f.NewCounter(prometheus.CounterOpts{
			Name: "rodt_handshakes_completed_total",
			Help: "Handshakes that negotiated a non-zero maximum payload size.",
		}),
		HandshakesFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "rodt_handshakes_failed_total",
			Help: "Handshakes that failed to parse or negotiated a zero size.",
		}),
		BytesReassembled: f.NewCounter(prometheus.CounterOpts{
			Name: "rodt_bytes_reassembled_total",
			Help: "Payload bytes concatenated by the receiver on session completion.",
		}),
		SessionsCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rodt_sessions_completed_total",
			Help: "Sessions that reached their terminal state successfully, by role.",
		}, []string{"role"}),
		SessionsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rodt_sessions_failed_total",
			Help: "Sessions that ended in an error, by role and error kind.",
		}, []string{"role", "kind"}),
	}
}

// noopMetrics is used where a caller does not want to wire a registry —
// every field is non-nil so engine code never needs a nil check.
func noopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
