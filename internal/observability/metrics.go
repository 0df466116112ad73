package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "era5_sounding"

// Metrics holds the Prometheus counters, histograms, and gauges for the pipeline stages.
type Metrics struct {
	Retrievals        *prometheus.CounterVec   // labels: stage={point,grid}, outcome={success,error}
	RetrievalDuration *prometheus.HistogramVec // labels: stage={point,grid}
	FilesSkipped      prometheus.Counter
	FilesLoaded       *prometheus.CounterVec // labels: collection={tornado,random}
	ProfileRows       *prometheus.CounterVec // labels: collection={tornado,random}
	StageRunning      *prometheus.GaugeVec   // labels: stage={point,grid,reshape}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := NewMetricsForTesting()
	prometheus.MustRegister(m.Collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		Retrievals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrievals_total",
			Help:      "Archive retrievals by stage and outcome.",
		}, []string{"stage", "outcome"}),
		RetrievalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Wall time of one archive retrieval, including queueing at the archive.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"stage"}),
		FilesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_skipped_total",
			Help:      "Grid retrievals skipped because the output file already existed.",
		}),
		FilesLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_loaded_total",
			Help:      "Point files loaded by the reshaper.",
		}, []string{"collection"}),
		ProfileRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_rows_total",
			Help:      "Sounding table rows written.",
		}, []string{"collection"}),
		StageRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_running",
			Help:      "1 while a stage is running, 0 otherwise.",
		}, []string{"stage"}),
	}
}

// Collectors returns every collector, for registration or pushing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Retrievals,
		m.RetrievalDuration,
		m.FilesSkipped,
		m.FilesLoaded,
		m.ProfileRows,
		m.StageRunning,
	}
}
