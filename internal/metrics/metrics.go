// Package metrics holds the Prometheus collectors exposed at /metrics.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

var (
	once sync.Once

	Applications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hiretrack_applications_total",
		Help: "Applications received, by resume source",
	}, []string{"source"})
	Evaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hiretrack_evaluations_total",
		Help: "Oracle evaluations, by outcome",
	}, []string{"outcome"})
	Transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hiretrack_stage_transitions_total",
		Help: "Candidate stage transitions, by actor",
	}, []string{"actor"})
	Tasks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hiretrack_tasks_total",
		Help: "Background tasks processed, by kind and outcome",
	}, []string{"kind", "outcome"})
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hiretrack_task_queue_depth",
		Help: "Tasks waiting in the queue",
	})
	RateLimitRejects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hiretrack_rate_limit_rejects_total",
		Help: "Requests rejected by the rate limiter",
	})
)

// Register adds the collectors to the default registry. Safe to call more than once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			Applications,
			Evaluations,
			Transitions,
			Tasks,
			QueueDepth,
			RateLimitRejects,
		)
	})
}

// Handler registers the collectors and returns the /metrics handler.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}
