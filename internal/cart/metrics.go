package cart

import "github.com/prometheus/client_golang/prometheus"

const (
	opAdd    = "add"
	opRemove = "remove"
	opUpdate = "update"

	outcomeOK   = "ok"
	outcomeNoop = "noop"
)

type Metrics struct {
	Operations *prometheus.CounterVec
	Lines      prometheus.Gauge
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cart_operations_total",
				Help: "Cart operations by outcome",
			},
			[]string{"op", "outcome"},
		),
		Lines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cart_lines",
			Help: "Distinct products in the committed cart",
		}),
	}

	reg.MustRegister(m.Operations, m.Lines)
	return m
}

func (m *Metrics) observe(op, outcome string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) setLines(n int) {
	if m == nil {
		return
	}
	m.Lines.Set(float64(n))
}
