package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the daemon's Prometheus collectors. They are safe to read from
// the HTTP goroutine while the event loop updates them.
type Metrics struct {
	Events    *prometheus.CounterVec
	Commands  *prometheus.CounterVec
	Publishes *prometheus.CounterVec
	Windows   prometheus.Gauge
}

// NewMetrics registers the daemon collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "list_windows_toplevel_events_total",
				Help: "Toplevel events received from the compositor",
			},
			[]string{"kind"},
		),
		Commands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "list_windows_commands_total",
				Help: "Control commands handled, by action and result",
			},
			[]string{"action", "result"},
		),
		Publishes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "list_windows_snapshot_publishes_total",
				Help: "Snapshot publish attempts by result",
			},
			[]string{"result"},
		),
		Windows: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "list_windows_windows",
				Help: "Complete windows in the last published snapshot",
			},
		),
	}
}

// ServeMetrics exposes g on addr under /metrics until ctx is done.
func ServeMetrics(ctx context.Context, addr string, g prometheus.Gatherer, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{EnableOpenMetrics: true}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
