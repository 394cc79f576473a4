// Package metrics exposes engine counters on a private Prometheus registry.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/healsync/healsync/internal/bus"
	"github.com/healsync/healsync/internal/models"
)

const namespace = "healsync"

// Metrics implements the observer interfaces of the store, bus, scheduler,
// scoring client and actors.
type Metrics struct {
	registry *prometheus.Registry

	writeConflicts  *prometheus.CounterVec
	writesAbandoned *prometheus.CounterVec
	published       *prometheus.CounterVec
	handlerPanics   *prometheus.CounterVec
	ticks           *prometheus.CounterVec
	tickDuration    *prometheus.HistogramVec
	tickPanics      *prometheus.CounterVec
	scoringCalls    *prometheus.CounterVec
	scoringLatency  *prometheus.HistogramVec
	scoringFallback *prometheus.CounterVec
	outbreaks       *prometheus.CounterVec
	orderOutcomes   *prometheus.CounterVec
	alerts          *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		writeConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "store", Name: "write_conflicts_total",
			Help: "Version conflicts seen while writing entity state.",
		}, []string{"entity_type"}),
		writesAbandoned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "store", Name: "writes_abandoned_total",
			Help: "Entity writes abandoned after a retried version conflict.",
		}, []string{"entity_type"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bus", Name: "events_published_total",
			Help: "Events published per topic.",
		}, []string{"topic"}),
		handlerPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bus", Name: "handler_panics_total",
			Help: "Recovered event handler panics per topic.",
		}, []string{"topic"}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "ticks_total",
			Help: "Completed ticks per task and result.",
		}, []string{"task", "result"}),
		tickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "tick_duration_seconds",
			Help:    "Tick duration per task.",
			Buckets: prometheus.DefBuckets,
		}, []string{"task"}),
		tickPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scheduler", Name: "tick_panics_total",
			Help: "Recovered tick panics per task.",
		}, []string{"task"}),
		scoringCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scoring", Name: "calls_total",
			Help: "Prediction service calls per endpoint and result.",
		}, []string{"endpoint", "result"}),
		scoringLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "scoring", Name: "call_duration_seconds",
			Help:    "Prediction service latency per endpoint.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2, 5},
		}, []string{"endpoint"}),
		scoringFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scoring", Name: "fallbacks_total",
			Help: "Decisions made by local fallback rules per endpoint.",
		}, []string{"endpoint"}),
		outbreaks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "engine", Name: "outbreaks_total",
			Help: "Outbreaks published per disease and decision path.",
		}, []string{"disease", "path"}),
		orderOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "engine", Name: "order_outcomes_total",
			Help: "Supply order outcomes.",
		}, []string{"outcome"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "engine", Name: "alerts_total",
			Help: "City alerts raised per type.",
		}, []string{"type"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.writeConflicts, m.writesAbandoned,
		m.published, m.handlerPanics,
		m.ticks, m.tickDuration, m.tickPanics,
		m.scoringCalls, m.scoringLatency, m.scoringFallback,
		m.outbreaks, m.orderOutcomes, m.alerts,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) WriteConflict(t models.EntityType) {
	m.writeConflicts.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) WriteAbandoned(t models.EntityType) {
	m.writesAbandoned.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) Published(topic bus.Topic) {
	m.published.WithLabelValues(string(topic)).Inc()
}

func (m *Metrics) HandlerPanicked(topic bus.Topic) {
	m.handlerPanics.WithLabelValues(string(topic)).Inc()
}

func (m *Metrics) TickFinished(task string, took time.Duration, err error) {
	m.ticks.WithLabelValues(task, result(err)).Inc()
	m.tickDuration.WithLabelValues(task).Observe(took.Seconds())
}

func (m *Metrics) TickPanicked(task string) {
	m.tickPanics.WithLabelValues(task).Inc()
}

func (m *Metrics) ScoringCall(endpoint string, took time.Duration, err error) {
	m.scoringCalls.WithLabelValues(endpoint, result(err)).Inc()
	m.scoringLatency.WithLabelValues(endpoint).Observe(took.Seconds())
}

func (m *Metrics) ScoringFallback(endpoint string) {
	m.scoringFallback.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) OutbreakPublished(d models.Disease, fallback bool) {
	path := "service"
	if fallback {
		path = "fallback"
	}
	m.outbreaks.WithLabelValues(string(d), path).Inc()
}

func (m *Metrics) OrderOutcome(outcome string) {
	m.orderOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AlertRaised(kind string) {
	m.alerts.WithLabelValues(kind).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics endpoint listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
