package metrics

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fault-triage/backend/internal/util"
)

// Collector holds the prometheus metrics exposed by the triage server.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	Predictions        *prometheus.CounterVec
	PredictionDuration prometheus.Histogram
	ModelState         *prometheus.GaugeVec

	FaultsCreated *prometheus.CounterVec
	StatusChanges *prometheus.CounterVec
	Assignments   *prometheus.CounterVec
	Comments      prometheus.Counter
	StreamClients prometheus.Gauge
}

// NewCollector creates a collector on its own registry, so several servers can coexist
// in one process.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "predictions_total",
				Help:      "Total number of triage predictions by outcome",
			},
			[]string{"outcome"},
		),
		PredictionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "prediction_duration_seconds",
				Help:      "Time spent classifying one description",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
			},
		),
		ModelState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "model_loaded",
				Help:      "1 when the pipeline for the target is loaded",
			},
			[]string{"target"},
		),
		FaultsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "faults_created_total",
				Help:      "Total number of faults reported by predicted category",
			},
			[]string{"category", "priority"},
		),
		StatusChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fault_status_changes_total",
				Help:      "Total number of fault status updates by new status",
			},
			[]string{"status"},
		),
		Assignments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fault_assignments_total",
				Help:      "Total number of assignment attempts by category and outcome",
			},
			[]string{"category", "outcome"},
		),
		Comments: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fault_comments_total",
				Help:      "Total number of comments added to faults",
			},
		),
		StreamClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stream_clients",
				Help:      "Connected fault stream websocket clients",
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Predictions,
		c.PredictionDuration,
		c.ModelState,
		c.FaultsCreated,
		c.StatusChanges,
		c.Assignments,
		c.Comments,
		c.StreamClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// RecordPrediction counts one prediction and its latency in seconds.
func (c *Collector) RecordPrediction(fallback bool, seconds float64) {
	outcome := "model"
	if fallback {
		outcome = "fallback"
	}
	c.Predictions.WithLabelValues(outcome).Inc()
	c.PredictionDuration.Observe(seconds)
}

// SetModelLoaded sets the loaded gauge for one target.
func (c *Collector) SetModelLoaded(target string, loaded bool) {
	v := 0.0
	if loaded {
		v = 1
	}
	c.ModelState.WithLabelValues(target).Set(v)
}

// Middleware records request counts and durations keyed by the matched route.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		timer := util.StartTimer()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := ctx.Request.Method
		c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.HTTPDuration.WithLabelValues(method, route).Observe(timer.ElapsedSeconds())
	}
}
