package fomo

import "github.com/prometheus/client_golang/prometheus"

// Metrics is shared by every simulator registered against the same registry.
type Metrics struct {
	Surges       prometheus.Counter
	CappedSurges prometheus.Counter
	ViewerTicks  prometheus.Counter
	Replacements prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Surges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fomo_surges_total",
			Help: "Price surge ticks applied",
		}),
		CappedSurges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fomo_surges_capped_total",
			Help: "Price surge ticks that hit the price cap",
		}),
		ViewerTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fomo_viewer_ticks_total",
			Help: "Viewer drift ticks applied",
		}),
		Replacements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fomo_snapshot_replacements_total",
			Help: "Catalog snapshot replacements",
		}),
	}

	reg.MustRegister(m.Surges, m.CappedSurges, m.ViewerTicks, m.Replacements)
	return m
}
