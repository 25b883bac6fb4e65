// Package metrics exposes license server counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "silo_license"

// Validation outcomes used as the "result" label.
const (
	ResultValid            = "valid"
	ResultNotFound         = "not_found"
	ResultInactive         = "inactive"
	ResultExpired          = "expired"
	ResultHardwareMismatch = "hardware_mismatch"
	ResultError            = "error"
)

type Recorder struct {
	registry    *prometheus.Registry
	created     prometheus.Counter
	validations *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "licenses_created_total",
			Help:      "Number of licenses issued.",
		}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Number of validation requests by result.",
		}, []string{"result"}),
	}
	r.registry.MustRegister(
		r.created,
		r.validations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) LicenseCreated() {
	r.created.Inc()
}

func (r *Recorder) Validation(result string) {
	r.validations.WithLabelValues(result).Inc()
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
