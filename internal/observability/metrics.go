package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storm_windloss"

// Metrics holds the Prometheus counters, histograms, and gauges for the wind-loss pipeline.
type Metrics struct {
	PipelineRunning prometheus.Gauge
	StageDuration   *prometheus.HistogramVec // labels: stage={windfield,spatial,characterize,loss,aggregate}

	// Characterization metrics.
	BuildingsCharacterized prometheus.Counter
	CharacterizationErrors *prometheus.CounterVec // labels: kind={configuration,mapping,...}
	CheckpointLoads        *prometheus.CounterVec // labels: outcome={hit,miss,invalid}

	// Loss metrics.
	LossesComputed       *prometheus.CounterVec // labels: scenario
	BuildingsWithoutWind *prometheus.CounterVec // labels: scenario
	DataQuality          *prometheus.CounterVec // labels: field={roughness,wind_speed,structure_value,contents_value}
	ScenarioLoss         *prometheus.GaugeVec   // labels: scenario, component={structure,contents,total}

	// Publishing metrics.
	RecordsPublished prometheus.Counter
	PublishErrors    prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PipelineRunning,
		m.StageDuration,
		m.BuildingsCharacterized,
		m.CharacterizationErrors,
		m.CheckpointLoads,
		m.LossesComputed,
		m.BuildingsWithoutWind,
		m.DataQuality,
		m.ScenarioLoss,
		m.RecordsPublished,
		m.PublishErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 3600},
		}, []string{"stage"}),
		BuildingsCharacterized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buildings_characterized_total",
			Help:      "Buildings assigned a wind building type and terrain class.",
		}),
		CharacterizationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "characterization_errors_total",
			Help:      "Fatal characterization failures by error kind.",
		}, []string{"kind"}),
		CheckpointLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoint_loads_total",
			Help:      "Checkpoint lookups by outcome.",
		}, []string{"outcome"}),
		LossesComputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "losses_computed_total",
			Help:      "Per-building loss records computed by scenario.",
		}, []string{"scenario"}),
		BuildingsWithoutWind: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buildings_without_wind_total",
			Help:      "Buildings skipped because the scenario assigned them no wind speed.",
		}, []string{"scenario"}),
		DataQuality: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_quality_adjustments_total",
			Help:      "Out-of-range inputs clamped to a documented boundary.",
		}, []string{"field"}),
		ScenarioLoss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scenario_loss_dollars",
			Help:      "Aggregated scenario loss in dollars.",
		}, []string{"scenario", "component"}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loss_records_published_total",
			Help:      "Loss records written to Kafka.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed Kafka write batches.",
		}),
	}
}
