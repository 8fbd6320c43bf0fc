// Package metrics exposes Prometheus instrumentation for the trading apps.
// The engine core stays metric-free; the app loops observe outcomes and
// count them here.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors the app loops update.
type Metrics struct {
	registry *prometheus.Registry

	MarketEvents  prometheus.Counter
	Decisions     prometheus.Counter
	IntentsFinal  prometheus.Counter
	IntentsVetoed prometheus.Counter
	Fills         prometheus.Counter
	Overrides     prometheus.Counter
	RiskEvents    *prometheus.CounterVec
}

// New creates and registers all collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		MarketEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "algotrader_market_events_total",
			Help: "Market events processed by the engine.",
		}),
		Decisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "algotrader_decisions_total",
			Help: "Decisions journaled (ticks with at least one final intent).",
		}),
		IntentsFinal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "algotrader_intents_final_total",
			Help: "Final intents approved by the risk pipeline.",
		}),
		IntentsVetoed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "algotrader_intents_vetoed_total",
			Help: "Intents vetoed by the risk pipeline.",
		}),
		Fills: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "algotrader_fills_total",
			Help: "Fills applied to the portfolio.",
		}),
		Overrides: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "algotrader_overrides_total",
			Help: "Operator override commands processed.",
		}),
		RiskEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "algotrader_risk_events_total",
			Help: "Risk events surfaced in decision audits, by type.",
		}, []string{"type"}),
	}

	reg.MustRegister(
		m.MarketEvents, m.Decisions, m.IntentsFinal,
		m.IntentsVetoed, m.Fills, m.Overrides, m.RiskEvents,
	)
	return m
}

// Serve runs an HTTP server exposing /metrics until the context is
// cancelled. It returns nil on graceful shutdown.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
