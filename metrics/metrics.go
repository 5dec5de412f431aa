// Package metrics records Prometheus metrics for onion pipelines.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/Keksclan/onion"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds the collectors shared by every pipeline layer created from it.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New creates the pipeline collectors and registers them with reg. When reg
// is nil prometheus.DefaultRegisterer is used. Collectors that are already
// registered under the same name are reused, so New may be called more than
// once for the same registry.
func New(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_runs_total",
		Help:      "Pipeline runs by outcome.",
	}, []string{"pipeline", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pipeline_duration_seconds",
		Help:      "Time spent in the pipeline below the metrics layer.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"pipeline"})

	if err := register(reg, &runs); err != nil {
		return nil, err
	}
	if err := register(reg, &duration); err != nil {
		return nil, err
	}
	return &Metrics{runs: runs, duration: duration}, nil
}

// register registers *c with reg, replacing *c with the existing collector
// when an identical one is already registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c *C) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			*c = existing
			return nil
		}
	}
	return err
}

// Middleware returns a layer that counts runs of the pipeline named pipeline
// and observes how long everything downstream took.
func Middleware[T any](m *Metrics, pipeline string) onion.Middleware[T] {
	ok := m.runs.WithLabelValues(pipeline, OutcomeOK)
	failed := m.runs.WithLabelValues(pipeline, OutcomeError)
	hist := m.duration.WithLabelValues(pipeline)

	return func(ctx context.Context, _ T, next onion.Next) error {
		start := time.Now()
		err := next(ctx)
		hist.Observe(time.Since(start).Seconds())
		if err != nil {
			failed.Inc()
		} else {
			ok.Inc()
		}
		return err
	}
}
