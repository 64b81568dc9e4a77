package realtime

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts broadcasts per area and event. A nil *Metrics records nothing.
type Metrics struct {
	broadcasts *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "broadcasts_total",
			Help:      "Socket broadcasts by area, event and result.",
		}, []string{"area", "event", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.broadcasts)
	}
	return m
}

func (m *Metrics) inc(area Area, event, result string) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(string(area), event, result).Inc()
}
