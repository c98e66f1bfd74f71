package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the campaign counters. Every method is safe on a nil
// receiver so components can run without a registry.
type Metrics struct {
	registry *prometheus.Registry

	transactions      *prometheus.CounterVec
	approvalsSkipped  prometheus.Counter
	iterations        *prometheus.CounterVec
	iterationDuration prometheus.Histogram
	receiptWait       prometheus.Histogram
	currentRound      prometheus.Gauge
}

// New registers the collectors in a dedicated registry so tests can build
// as many instances as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "satsuma",
			Name:      "transactions_total",
			Help:      "Submitted transactions by kind and result.",
		}, []string{"kind", "result"}),
		approvalsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "satsuma",
			Name:      "approvals_skipped_total",
			Help:      "Approval checks satisfied by the existing allowance.",
		}),
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "satsuma",
			Name:      "automation_iterations_total",
			Help:      "Automation iterations by result.",
		}, []string{"result"}),
		iterationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "satsuma",
			Name:      "automation_iteration_duration_seconds",
			Help:      "Wall time of one automation iteration, excluding the pacing delay.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
		}),
		receiptWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "satsuma",
			Name:      "receipt_wait_seconds",
			Help:      "Time between broadcast and receipt.",
			Buckets:   prometheus.DefBuckets,
		}),
		currentRound: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "satsuma",
			Name:      "automation_current_round",
			Help:      "Index of the iteration being worked on.",
		}),
	}
	reg.MustRegister(m.transactions, m.approvalsSkipped, m.iterations, m.iterationDuration, m.receiptWait, m.currentRound)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordTransaction(kind string, success bool) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(kind, resultLabel(success)).Inc()
}

func (m *Metrics) RecordApprovalSkipped() {
	if m == nil {
		return
	}
	m.approvalsSkipped.Inc()
}

func (m *Metrics) RecordReceiptWait(d time.Duration) {
	if m == nil {
		return
	}
	m.receiptWait.Observe(d.Seconds())
}

func (m *Metrics) RecordIteration(round int, success bool, d time.Duration) {
	if m == nil {
		return
	}
	m.currentRound.Set(float64(round))
	m.iterations.WithLabelValues(resultLabel(success)).Inc()
	m.iterationDuration.Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
