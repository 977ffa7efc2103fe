package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sdtechevents/eventhub/internal/models"
)

// IngestionCollector records per-source sync outcomes. It satisfies the
// pipeline's run observer.
type IngestionCollector struct {
	records  *prometheus.CounterVec
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewIngestionCollector registers sync metrics on reg.
func NewIngestionCollector(reg prometheus.Registerer) (*IngestionCollector, error) {
	records := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "records_total",
		Help:      "Records seen by source adapters, by outcome.",
	}, []string{"source", "outcome"})

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Adapter runs, by final status.",
	}, []string{"source", "status"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "run_duration_seconds",
		Help:      "Wall time of one adapter run.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"source"})

	for _, c := range []prometheus.Collector{records, runs, duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return &IngestionCollector{records: records, runs: runs, duration: duration}, nil
}

// ObserveRun records one finished adapter run.
func (c *IngestionCollector) ObserveRun(_ context.Context, run models.SyncRun) error {
	c.records.WithLabelValues(run.Source, "fetched").Add(float64(run.Fetched))
	c.records.WithLabelValues(run.Source, "upserted").Add(float64(run.Upserted))
	c.records.WithLabelValues(run.Source, "skipped").Add(float64(run.Skipped))
	c.records.WithLabelValues(run.Source, "failed").Add(float64(run.Failed))

	status := "success"
	if !run.Succeeded() {
		status = "error"
	}
	c.runs.WithLabelValues(run.Source, status).Inc()
	c.duration.WithLabelValues(run.Source).Observe((time.Duration(run.DurationMs) * time.Millisecond).Seconds())
	return nil
}
