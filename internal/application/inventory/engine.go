package inventory

import "github.com/jhoicas/stock-ledger/internal/domain/repository"

// Engine agrupa los servicios del motor de inventario sobre un mismo almacenamiento.
type Engine struct {
	Quants       *QuantStore
	Selector     *Selector
	Valuation    *ValuationEngine
	Reconciler   *NegativeReconciler
	Reservations *ReservationEngine
	Adjustments  *AdjustmentReconciler
}

// NewEngine conecta los servicios entre sí.
func NewEngine(tx TxRunner, catalog repository.ProductCatalog, opts Options) *Engine {
	opts = opts.normalized()
	store := NewQuantStore(tx, catalog, opts)
	selector := NewSelector(tx, catalog)
	valuation := NewValuationEngine(tx, catalog, opts)
	reconciler := NewNegativeReconciler(tx, store, valuation, opts)
	reservations := NewReservationEngine(tx, catalog, store, selector, valuation, reconciler, opts)
	return &Engine{
		Quants:       store,
		Selector:     selector,
		Valuation:    valuation,
		Reconciler:   reconciler,
		Reservations: reservations,
		Adjustments:  NewAdjustmentReconciler(tx, reservations, opts),
	}
}
