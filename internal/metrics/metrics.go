// Package metrics exposes Prometheus collectors for pricing lookups and estimates.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cloudcost"

// Recorder wraps the service collectors. A nil *Recorder is valid and records nothing.
type Recorder struct {
	lookups          *prometheus.CounterVec
	upstreamFailures *prometheus.CounterVec
	estimates        *prometheus.CounterVec
}

// NewRecorder registers the collectors on reg
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_lookups_total",
			Help:      "Unit price resolutions by provider, resource kind and price mode (live, cached, fallback).",
		}, []string{"provider", "kind", "mode"}),
		upstreamFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_failures_total",
			Help:      "Live price fetches that returned no usable price.",
		}, []string{"provider", "kind"}),
		estimates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimates_total",
			Help:      "Estimates built per provider.",
		}, []string{"provider"}),
	}
}

func (r *Recorder) ObserveLookup(provider, kind, mode string) {
	if r == nil {
		return
	}
	r.lookups.WithLabelValues(provider, kind, mode).Inc()
}

func (r *Recorder) ObserveUpstreamFailure(provider, kind string) {
	if r == nil {
		return
	}
	r.upstreamFailures.WithLabelValues(provider, kind).Inc()
}

func (r *Recorder) ObserveEstimate(provider string) {
	if r == nil {
		return
	}
	r.estimates.WithLabelValues(provider).Inc()
}

// Lookups exposes the lookup counter for tests and dashboards
func (r *Recorder) Lookups() *prometheus.CounterVec {
	return r.lookups
}

func (r *Recorder) UpstreamFailures() *prometheus.CounterVec {
	return r.upstreamFailures
}

func (r *Recorder) Estimates() *prometheus.CounterVec {
	return r.estimates
}
