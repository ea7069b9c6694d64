package inspector

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is an optional Prometheus sink (-M) that supplements the console
// reports of §4.F/§4.G with a scrape surface; the console reports remain
// the default and the metrics here never gate correctness.
type Metrics struct {
	ccErrors    *prometheus.CounterVec
	ptsDriftMs  *prometheus.GaugeVec
	dtsDriftMs  *prometheus.GaugeVec
	trendSlope  *prometheus.GaugeVec
	trendRSq    *prometheus.GaugeVec
}

// NewMetrics registers this inspector's metric families on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ccErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tsclock",
			Name:      "cc_errors_total",
			Help:      "Continuity counter errors observed per PID.",
		}, []string{"pid"}),
		ptsDriftMs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tsclock",
			Name:      "pts_drift_ms",
			Help:      "Most recent PTS clock tracker drift, in milliseconds.",
		}, []string{"pid"}),
		dtsDriftMs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tsclock",
			Name:      "dts_drift_ms",
			Help:      "Most recent DTS clock tracker drift, in milliseconds.",
		}, []string{"pid"}),
		trendSlope: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tsclock",
			Name:      "trend_slope",
			Help:      "Most recent linear-trend slope (presentation-seconds per wallclock-second).",
		}, []string{"pid", "domain"}),
		trendRSq: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tsclock",
			Name:      "trend_r_squared",
			Help:      "Most recent linear-trend r-squared.",
		}, []string{"pid", "domain"}),
	}
	reg.MustRegister(m.ccErrors, m.ptsDriftMs, m.dtsDriftMs, m.trendSlope, m.trendRSq)
	return m
}

func (m *Metrics) observeCCError(pid string) {
	if m == nil {
		return
	}
	m.ccErrors.WithLabelValues(pid).Inc()
}

func (m *Metrics) observeDrift(pid, domain string, ms float64) {
	if m == nil {
		return
	}
	switch domain {
	case "pts":
		m.ptsDriftMs.WithLabelValues(pid).Set(ms)
	case "dts":
		m.dtsDriftMs.WithLabelValues(pid).Set(ms)
	}
}

func (m *Metrics) observeTrend(pid, domain string, slope, rSquared float64) {
	if m == nil {
		return
	}
	m.trendSlope.WithLabelValues(pid, domain).Set(slope)
	m.trendRSq.WithLabelValues(pid, domain).Set(rSquared)
}
