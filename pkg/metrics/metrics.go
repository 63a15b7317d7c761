// Package metrics exposes run counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the counters of one run.
type Recorder struct {
	registry *prometheus.Registry

	items       *prometheus.CounterVec
	dialogs     *prometheus.CounterVec
	logins      *prometheus.CounterVec
	checkpoints *prometheus.CounterVec
	itemSeconds prometheus.Histogram
}

// New creates a recorder on its own registry. workflow is attached as a
// constant label.
func New(workflow string) *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	labels := prometheus.Labels{"workflow": workflow}

	return &Recorder{
		registry: reg,
		items: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "portalrunner",
			Name:        "items_total",
			Help:        "Work items processed, by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		dialogs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "portalrunner",
			Name:        "dialogs_total",
			Help:        "Portal dialogs resolved, by kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "portalrunner",
			Name:        "logins_total",
			Help:        "Session establishment results.",
			ConstLabels: labels,
		}, []string{"result"}),
		checkpoints: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "portalrunner",
			Name:        "checkpoints_total",
			Help:        "Result workbook writes.",
			ConstLabels: labels,
		}, []string{"result"}),
		itemSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "portalrunner",
			Name:        "item_duration_seconds",
			Help:        "Time spent on one work item.",
			ConstLabels: labels,
			Buckets:     []float64{1, 2, 5, 10, 20, 30, 60, 120},
		}),
	}
}

// Item counts an item outcome ("succeeded", "failed", "skipped").
func (r *Recorder) Item(outcome string, took time.Duration) {
	r.items.WithLabelValues(outcome).Inc()
	r.itemSeconds.Observe(took.Seconds())
}

// Dialog counts a resolved dialog kind.
func (r *Recorder) Dialog(kind string) {
	r.dialogs.WithLabelValues(kind).Inc()
}

// Login counts a login result ("ok" or "failed").
func (r *Recorder) Login(ok bool) {
	r.logins.WithLabelValues(result(ok)).Inc()
}

// Checkpoint counts a workbook write.
func (r *Recorder) Checkpoint(ok bool) {
	r.checkpoints.WithLabelValues(result(ok)).Inc()
}

// Handler serves the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
