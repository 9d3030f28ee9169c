// Copyright 2025 Certen Protocol
//
// Package metrics exposes the relayer and validator's Prometheus counters
// and gauges, and the two small HTTP servers (metrics, health) both
// processes run alongside their main loop.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns every metric this process reports.
type Registry struct {
	reg *prometheus.Registry

	StepsTotal    *prometheus.CounterVec
	DropsTotal    *prometheus.CounterVec
	QueueDepth    prometheus.Gauge
	NonceGaps     prometheus.Counter
	CursorPolls   prometheus.Counter
	CheckpointLag prometheus.Gauge
}

// New builds a Registry with every metric registered under namespace.
func New(namespace string) *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		StepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_steps_total",
			Help:      "Pending operation lifecycle steps, by stage and outcome.",
		}, []string{"stage", "outcome"}),
		DropsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_drops_total",
			Help:      "Pending operations dropped permanently, by reason.",
		}, []string{"reason"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of pending operations currently queued.",
		}),
		NonceGaps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nonce_gaps_total",
			Help:      "Nonce gaps detected by the submission pipeline's nonce manager.",
		}),
		CursorPolls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cursor_polls_total",
			Help:      "Block range cursor polls against the origin chain.",
		}),
		CheckpointLag: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "checkpoint_lag_leaves",
			Help:      "Leaves in the merkle tree not yet covered by the latest signed checkpoint.",
		}),
	}
}

// StepSucceeded implements opqueue.Recorder.
func (r *Registry) StepSucceeded(stage, outcome string) {
	r.StepsTotal.WithLabelValues(stage, outcome).Inc()
}

// StepFailed implements opqueue.Recorder.
func (r *Registry) StepFailed(stage string) {
	r.StepsTotal.WithLabelValues(stage, "error").Inc()
}

// Dropped implements opqueue.Recorder.
func (r *Registry) Dropped(reason string) {
	r.DropsTotal.WithLabelValues(reason).Inc()
}

// ServeMetrics runs a Prometheus scrape endpoint on addr until ctx is done.
func (r *Registry) ServeMetrics(ctx context.Context, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}

// ServeHealth runs a liveness endpoint on addr until ctx is done.
func ServeHealth(ctx context.Context, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
