package service

import (
	"net/http"
	"time"

	"signal_bot/internal/apperr"
	"signal_bot/internal/models"
	position "signal_bot/internal/modules/position/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "signal_bot"

type Metrics struct {
	registry *prometheus.Registry

	cycleSeconds *prometheus.HistogramVec
	instruments  prometheus.Gauge
	signals      *prometheus.CounterVec
	exits        *prometheus.CounterVec
	errors       *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	open         *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycleSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_cycle_seconds",
			Help:      "Duration of one scan over the instrument set",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"mode"}),
		instruments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scan_instruments",
			Help:      "Instruments in the last scan",
		}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Entry signals detected",
		}, []string{"variant", "side"}),
		exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exits_total",
			Help:      "Positions closed",
		}, []string{"kind"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Tick errors by kind",
		}, []string{"kind"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "position_transitions_total",
			Help:      "Position state changes",
		}, []string{"from", "to"}),
		open: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "positions_open",
			Help:      "Open positions by variant",
		}, []string{"variant"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cycleSeconds, m.instruments, m.signals, m.exits, m.errors, m.transitions, m.open,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Cycle(mode string, instruments int, took time.Duration) {
	m.cycleSeconds.WithLabelValues(mode).Observe(took.Seconds())
	m.instruments.Set(float64(instruments))
}

func (m *Metrics) Signal(sig models.Signal) {
	m.signals.WithLabelValues(string(sig.Variant), string(sig.Side)).Inc()
}

func (m *Metrics) Exit(_ string, kind models.ExitKind) {
	m.exits.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) Error(kind apperr.Kind) {
	m.errors.WithLabelValues(string(kind)).Inc()
}

// Transition is registered as a position store observer.
func (m *Metrics) Transition(t position.Transition) {
	m.transitions.WithLabelValues(string(t.From), string(t.To)).Inc()
	switch {
	case t.To == models.StateOpen && t.From == models.StatePendingEntry:
		m.open.WithLabelValues(string(t.Position.Variant)).Inc()
	case t.To == models.StateFlat && t.From == models.StatePendingExit:
		m.open.WithLabelValues(string(t.Previous.Variant)).Dec()
	}
}
