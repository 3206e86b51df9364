package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "action"
	subsystem = "queue"
)

// Prometheus records queue activity per owner. It satisfies
// queue.Recorder.
type Prometheus struct {
	enqueued  *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	started   *prometheus.CounterVec
	completed *prometheus.CounterVec
	depth     *prometheus.GaugeVec
	running   prometheus.Gauge
	duration  *prometheus.HistogramVec
}

// NewPrometheus registers the queue collectors on reg. A nil reg uses
// the default registerer.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Prometheus{
		enqueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "enqueued_total",
				Help:      "Total number of handles accepted by the queue manager",
			},
			[]string{"owner"},
		),
		rejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "rejected_total",
				Help:      "Total number of handles refused after dispose",
			},
			[]string{"owner"},
		),
		started: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "started_total",
				Help:      "Total number of handles that started running",
			},
			[]string{"owner"},
		),
		completed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "completed_total",
				Help:      "Total number of handles that finished by outcome",
			},
			[]string{"owner", "status"},
		),
		depth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "depth",
				Help:      "Handles waiting behind the running one",
			},
			[]string{"owner"},
		),
		running: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "running",
				Help:      "Handles currently running across all owners",
			},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "handle_duration_seconds",
				Help:      "Time from start to completion of a handle",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"owner", "status"},
		),
	}
}

func (p *Prometheus) RecordEnqueued(owner string, depth int) {
	p.enqueued.WithLabelValues(owner).Inc()
	p.depth.WithLabelValues(owner).Set(float64(depth))
}

func (p *Prometheus) RecordRejected(owner string) {
	p.rejected.WithLabelValues(owner).Inc()
}

func (p *Prometheus) RecordStarted(owner string) {
	p.started.WithLabelValues(owner).Inc()
	p.running.Inc()
	p.depth.WithLabelValues(owner).Dec()
}

func (p *Prometheus) RecordCompleted(owner string, duration time.Duration, success, drained bool) {
	status := statusLabel(success, drained)
	p.running.Dec()
	p.completed.WithLabelValues(owner, status).Inc()
	p.duration.WithLabelValues(owner, status).Observe(duration.Seconds())
}

func statusLabel(success, drained bool) string {
	switch {
	case drained:
		return "drained"
	case success:
		return "success"
	default:
		return "failure"
	}
}

// Handler serves the metrics in g, or the default gatherer when g is nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
