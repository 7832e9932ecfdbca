// Package metrics expone las métricas del motor de inventario en formato Prometheus.
package metrics

import (
	"net/http"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ inventory.Recorder = (*Recorder)(nil)

// Recorder implementa inventory.Recorder con contadores en un registro propio.
type Recorder struct {
	registry *prometheus.Registry

	reservations *prometheus.CounterVec
	completions  *prometheus.CounterVec
	negatives    prometheus.Counter
	reconciled   prometheus.Counter
	ambiguous    prometheus.Counter
	fallbacks    prometheus.Counter
}

// NewRecorder registra los colectores bajo namespace (ej. "stock_ledger").
func NewRecorder(namespace string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Intentos de reserva por resultado (assigned, partial, none).",
		}, []string{"status"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "movements_completed_total",
			Help:      "Movimientos completados por tipo.",
		}, []string{"kind"}),
		negatives: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "negative_quants_created_total",
			Help:      "Quants negativos creados al consumir sin existencias.",
		}),
		reconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "negative_quantity_reconciled_total",
			Help:      "Cantidad negativa compensada por conciliación.",
		}),
		ambiguous: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliation_ambiguous_total",
			Help:      "Quants negativos sin positivo de procedencia conocida.",
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cost_fallback_total",
			Help:      "Costos promedio con denominador no positivo.",
		}),
	}
	r.registry.MustRegister(
		r.reservations, r.completions, r.negatives, r.reconciled, r.ambiguous, r.fallbacks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) ReservationResult(status string) { r.reservations.WithLabelValues(status).Inc() }
func (r *Recorder) MovementCompleted(kind string)   { r.completions.WithLabelValues(kind).Inc() }
func (r *Recorder) NegativeQuantCreated()           { r.negatives.Inc() }
func (r *Recorder) NegativeReconciled(qty float64)  { r.reconciled.Add(qty) }
func (r *Recorder) ReconciliationAmbiguous(count int) {
	r.ambiguous.Add(float64(count))
}
func (r *Recorder) CostFallback() { r.fallbacks.Inc() }

// Handler expone el registro para /metrics.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
