// Package metrics exposes Prometheus collectors for the outcomes the TCP
// and UDP channels produce, so an operator can graph routing-activation
// health and request latency across conversations without reading logs.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors bundles every metric this client registers. Callers mount
// promhttp.Handler() themselves (see internal/monitor); this package only
// owns the collector definitions and update helpers.
type Collectors struct {
	RoutingActivationTotal *prometheus.CounterVec
	AckTimeoutTotal        *prometheus.CounterVec
	ResponseTimeoutTotal   *prometheus.CounterVec
	ResponsePendingTotal   *prometheus.CounterVec
	NegativeAckTotal       *prometheus.CounterVec
	RequestDuration        *prometheus.HistogramVec
	InFlightRequests       *prometheus.GaugeVec
}

// New constructs and registers every collector against reg.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		RoutingActivationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "doip",
			Name:      "routing_activation_total",
			Help:      "Routing activation attempts by outcome.",
		}, []string{"conversation", "outcome"}),
		AckTimeoutTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "doip",
			Name:      "ack_timeout_total",
			Help:      "Diagnostic requests that timed out waiting for an ack.",
		}, []string{"conversation"}),
		ResponseTimeoutTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "doip",
			Name:      "response_timeout_total",
			Help:      "Diagnostic requests that timed out waiting for a final response.",
		}, []string{"conversation"}),
		ResponsePendingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "doip",
			Name:      "response_pending_total",
			Help:      "Response-pending (0x7F ... 0x78) frames observed, by conversation.",
		}, []string{"conversation"}),
		NegativeAckTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "doip",
			Name:      "negative_ack_total",
			Help:      "Diagnostic negative acks received, by conversation and code.",
		}, []string{"conversation", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "doip",
			Name:      "request_duration_seconds",
			Help:      "End-to-end SendDiagnosticRequest duration by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"conversation", "outcome"}),
		InFlightRequests: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "doip",
			Name:      "in_flight_requests",
			Help:      "Diagnostic requests currently awaiting ack or response.",
		}, []string{"conversation"}),
	}
	reg.MustRegister(
		c.RoutingActivationTotal,
		c.AckTimeoutTotal,
		c.ResponseTimeoutTotal,
		c.ResponsePendingTotal,
		c.NegativeAckTotal,
		c.RequestDuration,
		c.InFlightRequests,
	)
	return c
}
