package lttbplot

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors of the service. A nil *Metrics disables them.
type Metrics struct {
	rebuilds        prometheus.Counter
	liveCharts      prometheus.Gauge
	decimatedPoints *prometheus.GaugeVec
	subscribers     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lttbplot",
			Name:      "chart_rebuilds_total",
			Help:      "The total number of charts built.",
		}),
		liveCharts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lttbplot",
			Name:      "live_charts",
			Help:      "The number of charts that are not destroyed yet.",
		}),
		decimatedPoints: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "lttbplot",
			Name:      "decimated_points",
			Help:      "The number of points of each series of the last built chart.",
		}, []string{"series"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lttbplot",
			Name:      "ws_subscribers",
			Help:      "The number of open websocket subscribers.",
		}),
	}

	reg.MustRegister(m.rebuilds, m.liveCharts, m.decimatedPoints, m.subscribers)

	return m
}

func (m *Metrics) chartBuilt(datasets []Series) {
	m.rebuilds.Inc()
	m.liveCharts.Inc()

	// Series of the previous chart may be gone.
	m.decimatedPoints.Reset()
	for _, series := range datasets {
		m.decimatedPoints.WithLabelValues(series.Label).Set(float64(len(series.Data)))
	}
}

func (m *Metrics) chartDestroyed() {
	m.liveCharts.Dec()
}
