// Package metrics holds the Prometheus collectors for the rebalancer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all rebalancer metrics on a private prometheus registry.
// All recording methods are safe on a nil *Registry.
type Registry struct {
	registry *prometheus.Registry

	CycleDuration   prometheus.Histogram
	CyclesTotal     *prometheus.CounterVec
	Deviation       prometheus.Gauge
	NeedsRebalance  prometheus.Gauge
	PortfolioValue  prometheus.Gauge
	BatchesTotal    *prometheus.CounterVec
	TradesTotal     *prometheus.CounterVec
	AlertsTotal     *prometheus.CounterVec
	PriceFetchTotal *prometheus.CounterVec
	Connected       prometheus.Gauge
	Executing       prometheus.Gauge
	HostCPU         prometheus.Gauge
	HostMemory      prometheus.Gauge
}

// NewRegistry creates and registers every collector
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rebalancer_cycle_duration_seconds",
			Help:    "Duration of one market cycle (fetch, evaluate, orchestrate)",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rebalancer_cycles_total",
			Help: "Market cycles by outcome",
		}, []string{"outcome"}),
		Deviation: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rebalancer_max_deviation_percent",
			Help: "Worst single-asset drift from target in percentage points",
		}),
		NeedsRebalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rebalancer_needs_rebalance",
			Help: "1 when the last evaluation crossed the drift threshold",
		}),
		PortfolioValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rebalancer_portfolio_value_usd",
			Help: "Total portfolio value in USD",
		}),
		BatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rebalancer_batches_total",
			Help: "Execution batches by result",
		}, []string{"result"}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rebalancer_trades_total",
			Help: "Trade receipts by venue and status",
		}, []string{"venue", "status"}),
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rebalancer_alerts_total",
			Help: "Notifications by kind and delivery result",
		}, []string{"kind", "delivered"}),
		PriceFetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rebalancer_price_fetch_total",
			Help: "Price provider calls by provider and result",
		}, []string{"provider", "result"}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rebalancer_price_feed_connected",
			Help: "1 when the last price fetch returned at least one usable price",
		}),
		Executing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rebalancer_batch_executing",
			Help: "1 while a batch is in flight",
		}),
		HostCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rebalancer_host_cpu_percent",
			Help: "Host CPU usage sampled by the status monitor",
		}),
		HostMemory: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rebalancer_host_memory_percent",
			Help: "Host memory usage sampled by the status monitor",
		}),
	}

	r.registry.MustRegister(
		r.CycleDuration,
		r.CyclesTotal,
		r.Deviation,
		r.NeedsRebalance,
		r.PortfolioValue,
		r.BatchesTotal,
		r.TradesTotal,
		r.AlertsTotal,
		r.PriceFetchTotal,
		r.Connected,
		r.Executing,
		r.HostCPU,
		r.HostMemory,
	)
	return r
}

// Handler exposes the registry for scraping
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer returns the underlying gatherer (tests)
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// ObserveCycle records one market cycle
func (r *Registry) ObserveCycle(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.CyclesTotal.WithLabelValues(outcome).Inc()
	r.CycleDuration.Observe(elapsed.Seconds())
}

// ObserveEvaluation records the latest engine output
func (r *Registry) ObserveEvaluation(deviation float64, needsRebalance bool, totalValue float64) {
	if r == nil {
		return
	}
	r.Deviation.Set(deviation)
	r.NeedsRebalance.Set(boolToFloat(needsRebalance))
	r.PortfolioValue.Set(totalValue)
}

// ObserveBatch records a finished batch
func (r *Registry) ObserveBatch(success bool) {
	if r == nil {
		return
	}
	result := "success"
	if !success {
		result = "failed"
	}
	r.BatchesTotal.WithLabelValues(result).Inc()
}

// ObserveTrade records one trade receipt
func (r *Registry) ObserveTrade(venue, status string) {
	if r == nil {
		return
	}
	r.TradesTotal.WithLabelValues(venue, status).Inc()
}

// ObserveAlert records a notification attempt
func (r *Registry) ObserveAlert(kind string, delivered bool) {
	if r == nil {
		return
	}
	r.AlertsTotal.WithLabelValues(kind, boolLabel(delivered)).Inc()
}

// ObservePriceFetch records one provider call
func (r *Registry) ObservePriceFetch(provider string, ok bool) {
	if r == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	r.PriceFetchTotal.WithLabelValues(provider, result).Inc()
}

// SetConnected records price feed health
func (r *Registry) SetConnected(connected bool) {
	if r == nil {
		return
	}
	r.Connected.Set(boolToFloat(connected))
}

// SetExecuting records orchestrator state
func (r *Registry) SetExecuting(executing bool) {
	if r == nil {
		return
	}
	r.Executing.Set(boolToFloat(executing))
}

// SetHostStats records host resource usage
func (r *Registry) SetHostStats(cpuPercent, memoryPercent float64) {
	if r == nil {
		return
	}
	r.HostCPU.Set(cpuPercent)
	r.HostMemory.Set(memoryPercent)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
