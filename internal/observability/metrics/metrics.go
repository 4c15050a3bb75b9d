package metrics

import "github.com/prometheus/client_golang/prometheus"

// DeliveryMetrics exposes counters/histograms for the prescription email
// pipeline. A nil receiver is safe and records nothing.
type DeliveryMetrics struct {
	sendsTotal     *prometheus.CounterVec
	refreshesTotal *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
}

func NewDeliveryMetrics(reg prometheus.Registerer) *DeliveryMetrics {
	m := &DeliveryMetrics{
		sendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "veldmed",
			Subsystem: "delivery",
			Name:      "sends_total",
			Help:      "Total provider send attempts",
		}, []string{"provider", "outcome", "retried"}),
		refreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "veldmed",
			Subsystem: "delivery",
			Name:      "token_refreshes_total",
			Help:      "Total OAuth refresh-token exchanges",
		}, []string{"provider", "outcome"}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "veldmed",
			Subsystem: "delivery",
			Name:      "render_duration_seconds",
			Help:      "Time spent rendering prescription PDFs",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.sendsTotal, m.refreshesTotal, m.renderDuration)
	return m
}

func (m *DeliveryMetrics) ObserveSend(provider, outcome string, retried bool) {
	if m == nil {
		return
	}
	label := "false"
	if retried {
		label = "true"
	}
	m.sendsTotal.WithLabelValues(provider, outcome, label).Inc()
}

func (m *DeliveryMetrics) ObserveRefresh(provider, outcome string) {
	if m == nil {
		return
	}
	m.refreshesTotal.WithLabelValues(provider, outcome).Inc()
}

func (m *DeliveryMetrics) ObserveRenderDuration(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.renderDuration.WithLabelValues(outcome).Observe(seconds)
}
