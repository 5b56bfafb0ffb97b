// Package metrics exposes Prometheus metrics describing a training
// run. Each Training holds its own registry, so that independent runs
// in the same process do not share collectors.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Training collects the metrics of a single training run
type Training struct {
	registry *prometheus.Registry

	EpisodesTotal      prometheus.Counter
	EnvStepsTotal      prometheus.Counter
	GradientStepsTotal prometheus.Counter
	EpisodeReturn      prometheus.Gauge
	EpisodeLength      prometheus.Gauge
	Epsilon            prometheus.Gauge
	Loss               prometheus.Histogram
}

// NewTraining returns a new Training whose metrics are labelled with
// a run identifier
func NewTraining(runID string) *Training {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"run_id": runID}

	return &Training{
		registry: reg,

		EpisodesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "irrigate_episodes_total",
			Help:        "Total training episodes completed",
			ConstLabels: labels,
		}),
		EnvStepsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "irrigate_env_steps_total",
			Help:        "Total simulated days stepped during training",
			ConstLabels: labels,
		}),
		GradientStepsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "irrigate_gradient_steps_total",
			Help:        "Total optimizer steps performed",
			ConstLabels: labels,
		}),
		EpisodeReturn: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "irrigate_episode_return",
			Help:        "Return of the most recent training episode",
			ConstLabels: labels,
		}),
		EpisodeLength: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "irrigate_episode_length_days",
			Help:        "Length in days of the most recent training episode",
			ConstLabels: labels,
		}),
		Epsilon: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "irrigate_epsilon",
			Help:        "Exploration rate of the behaviour policy",
			ConstLabels: labels,
		}),
		Loss: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "irrigate_training_loss",
			Help:        "Huber loss of each optimizer step",
			Buckets:     prometheus.ExponentialBuckets(1e-4, 4, 12),
			ConstLabels: labels,
		}),
	}
}

// ObserveEnvStep records a simulated day
func (t *Training) ObserveEnvStep() {
	t.EnvStepsTotal.Inc()
}

// ObserveGradientStep records an optimizer step and its loss
func (t *Training) ObserveGradientStep(loss float64) {
	t.GradientStepsTotal.Inc()
	t.Loss.Observe(loss)
}

// ObserveEpisode records a completed episode
func (t *Training) ObserveEpisode(ret float64, length int, epsilon float64) {
	t.EpisodesTotal.Inc()
	t.EpisodeReturn.Set(ret)
	t.EpisodeLength.Set(float64(length))
	t.Epsilon.Set(epsilon)
}

// Gatherer returns the registry holding the run's metrics
func (t *Training) Gatherer() prometheus.Gatherer {
	return t.registry
}

// WriteTextfile writes the run's metrics to a file in the Prometheus
// text exposition format, for collection by a node exporter
func (t *Training) WriteTextfile(filename string) error {
	if err := prometheus.WriteToTextfile(filename, t.registry); err != nil {
		return fmt.Errorf("writetextfile: %w", err)
	}
	return nil
}
