package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Pairing cantidad compensada entre un quant negativo y uno positivo de procedencia conocida.
type Pairing struct {
	NegativeQuantID  string
	PositiveQuantID  string
	LocationID       string
	Quantity         decimal.Decimal
	CostReattributed bool
}

// UnresolvedNegative quant negativo sin contraparte; se informa, no es un error.
type UnresolvedNegative struct {
	QuantID    string
	LocationID string
	MovementID string
	Quantity   decimal.Decimal
}

// ReconcileReport resultado de una pasada de conciliación.
type ReconcileReport struct {
	CompanyID  string
	LocationID string
	ProductID  string
	Pairings   []Pairing
	Unresolved []UnresolvedNegative
}

// NegativeReconciler compensa quants negativos con los positivos que llegan para cubrirlos.
// La cantidad neta por ubicación nunca cambia: solo se reasigna a qué lote pertenece cada unidad.
type NegativeReconciler struct {
	tx        TxRunner
	store     *QuantStore
	valuation *ValuationEngine
	opts      Options
}

// NewNegativeReconciler construye el conciliador.
func NewNegativeReconciler(tx TxRunner, store *QuantStore, valuation *ValuationEngine, opts Options) *NegativeReconciler {
	return &NegativeReconciler{tx: tx, store: store, valuation: valuation, opts: opts.normalized()}
}

// Reconcile ejecuta una pasada para el producto en el subárbol de la ubicación. Es repetible.
// Devuelve domain.ErrConflict si otra pasada tiene tomado el candado.
func (r *NegativeReconciler) Reconcile(ctx context.Context, companyID, locationID, productID string) (*ReconcileReport, error) {
	if companyID == "" || locationID == "" || productID == "" {
		return nil, domain.ErrInvalidInput
	}
	release, err := r.opts.Locker.Obtain(ctx, reconcileLockKey(locationID, productID), r.opts.ReconcileLockTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			r.opts.Logger.Warn().Err(err).Str("location_id", locationID).Str("product_id", productID).Msg("no se pudo liberar el candado de conciliación")
		}
	}()

	var report *ReconcileReport
	err = r.tx.Run(ctx, func(repos repository.Repositories) error {
		var err error
		report, err = r.reconcileTx(ctx, repos, companyID, locationID, productID)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.opts.Logger.Info().
		Str("location_id", locationID).
		Str("product_id", productID).
		Int("pairings", len(report.Pairings)).
		Int("unresolved", len(report.Unresolved)).
		Msg("conciliación de negativos")
	return report, nil
}

// ReconcileLocation concilia todos los productos con negativos en el subárbol, con pasadas concurrentes
// limitadas por ReconcileWorkers. Los productos con una pasada en curso se omiten.
func (r *NegativeReconciler) ReconcileLocation(ctx context.Context, companyID, locationID string) ([]*ReconcileReport, error) {
	var products []string
	err := r.tx.Run(ctx, func(repos repository.Repositories) error {
		tree, err := repos.Locations.Tree(ctx)
		if err != nil {
			return err
		}
		interval, ok := tree.Interval(locationID)
		if !ok {
			return fmt.Errorf("ubicación %s: %w", locationID, domain.ErrNotFound)
		}
		products, err = repos.Quants.ProductsWithNegatives(ctx, companyID, interval)
		return err
	})
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	reports := make([]*ReconcileReport, 0, len(products))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.ReconcileWorkers)
	for _, productID := range products {
		productID := productID
		g.Go(func() error {
			rep, err := r.Reconcile(gctx, companyID, locationID, productID)
			if errors.Is(err, domain.ErrConflict) {
				r.opts.Logger.Debug().Str("product_id", productID).Msg("conciliación en curso, se omite")
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			reports = append(reports, rep)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].ProductID < reports[j].ProductID })
	return reports, nil
}

func (r *NegativeReconciler) reconcileTx(ctx context.Context, repos repository.Repositories, companyID, locationID, productID string) (*ReconcileReport, error) {
	report := &ReconcileReport{CompanyID: companyID, LocationID: locationID, ProductID: productID}
	tree, err := repos.Locations.Tree(ctx)
	if err != nil {
		return nil, err
	}
	interval, ok := tree.Interval(locationID)
	if !ok {
		return nil, fmt.Errorf("ubicación %s: %w", locationID, domain.ErrNotFound)
	}
	negatives, err := repos.Quants.Find(ctx, repository.QuantQuery{
		ProductID: productID,
		CompanyID: companyID,
		Subtree:   &interval,
		Sign:      repository.SignNegative,
	})
	if err != nil {
		return nil, err
	}
	if len(negatives) == 0 {
		return report, nil
	}
	sort.SliceStable(negatives, func(i, j int) bool {
		if !negatives[i].InDate.Equal(negatives[j].InDate) {
			return negatives[i].InDate.Before(negatives[j].InDate)
		}
		return negatives[i].ID < negatives[j].ID
	})

	product, err := r.valuation.product(ctx, productID)
	if err != nil {
		return nil, err
	}

	for _, n := range negatives {
		open := n.Quantity.Neg()
		origins, err := r.originsOf(ctx, repos, n)
		if err != nil {
			return nil, err
		}
		positives, err := r.matchingPositives(ctx, repos, n, origins)
		if err != nil {
			return nil, err
		}
		for _, p := range positives {
			if !open.IsPositive() {
				break
			}
			pairing, err := r.pair(ctx, repos, product, n, p, open)
			if err != nil {
				return nil, err
			}
			if pairing == nil {
				continue
			}
			open = open.Sub(pairing.Quantity)
			report.Pairings = append(report.Pairings, *pairing)
		}
		if open.IsPositive() {
			report.Unresolved = append(report.Unresolved, UnresolvedNegative{
				QuantID:    n.ID,
				LocationID: n.LocationID,
				MovementID: n.NegativeFromMovementID,
				Quantity:   open.Neg(),
			})
		}
	}
	if len(report.Unresolved) > 0 {
		r.opts.Metrics.ReconciliationAmbiguous(len(report.Unresolved))
	}
	return report, nil
}

// originsOf movimientos de los que dependía el movimiento que generó el negativo.
// pair compensa hasta limit unidades del negativo n con la parte libre del positivo p.
// Devuelve nil si p no tiene nada libre: lo reservado por otros movimientos no se toca.
func (r *NegativeReconciler) pair(ctx context.Context, repos repository.Repositories, product *entity.Product, n, p *entity.Quant, limit decimal.Decimal) (*Pairing, error) {
	current, err := repos.Quants.GetForUpdate(ctx, p.ID)
	if err != nil || current == nil {
		return nil, err
	}
	reserved, err := repos.Reservations.ReservedByQuants(ctx, []string{p.ID})
	if err != nil {
		return nil, err
	}
	qty := decimal.Min(limit, current.Quantity.Sub(reserved[p.ID]))
	if !qty.IsPositive() {
		return nil, nil
	}
	if _, err := r.store.Withdraw(ctx, repos, p.ID, qty, false); err != nil {
		return nil, err
	}
	if _, err := r.store.Offset(ctx, repos, n.ID, qty); err != nil {
		return nil, err
	}
	pairing := &Pairing{NegativeQuantID: n.ID, PositiveQuantID: p.ID, LocationID: n.LocationID, Quantity: qty}
	if product.CostMethod == entity.CostMethodReal && n.NegativeFromMovementID != "" && !p.Cost.Equal(n.Cost) {
		if err := r.valuation.reattribute(ctx, repos, n.NegativeFromMovementID, qty, n.Cost, p.Cost); err != nil {
			return nil, err
		}
		pairing.CostReattributed = true
	}
	r.opts.Metrics.NegativeReconciled(qty.InexactFloat64())
	return pairing, nil
}

// settleKey compensa los negativos de una clave exacta con cualquier positivo libre de la misma
// clave, sin exigir procedencia. Solo lo usa el conteo físico, que fija el total real de la clave.
func (r *NegativeReconciler) settleKey(ctx context.Context, repos repository.Repositories, key entity.QuantKey) ([]Pairing, error) {
	negatives, err := repos.Quants.Find(ctx, exactKeyQuery(key, repository.SignNegative))
	if err != nil || len(negatives) == 0 {
		return nil, err
	}
	positives, err := repos.Quants.Find(ctx, exactKeyQuery(key, repository.SignPositive))
	if err != nil || len(positives) == 0 {
		return nil, err
	}
	product, err := r.valuation.product(ctx, key.ProductID)
	if err != nil {
		return nil, err
	}
	var out []Pairing
	for _, n := range negatives {
		open := n.Quantity.Neg()
		for _, p := range positives {
			if !open.IsPositive() {
				break
			}
			pairing, err := r.pair(ctx, repos, product, n, p, open)
			if err != nil {
				return nil, err
			}
			if pairing == nil {
				continue
			}
			open = open.Sub(pairing.Quantity)
			out = append(out, *pairing)
		}
	}
	return out, nil
}

func (r *NegativeReconciler) originsOf(ctx context.Context, repos repository.Repositories, n *entity.Quant) (map[string]bool, error) {
	out := map[string]bool{}
	if n.NegativeFromMovementID == "" {
		return out, nil
	}
	m, err := repos.Movements.GetByID(ctx, n.NegativeFromMovementID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return out, nil
	}
	for _, id := range m.OriginMovementIDs {
		out[id] = true
	}
	return out, nil
}

// matchingPositives quants positivos en la misma ubicación con referencia explícita al negativo
// (primero) o producidos por uno de sus movimientos origen, en orden FIFO.
func (r *NegativeReconciler) matchingPositives(ctx context.Context, repos repository.Repositories, n *entity.Quant, origins map[string]bool) ([]*entity.Quant, error) {
	quants, err := repos.Quants.Find(ctx, repository.QuantQuery{
		ProductID:  n.ProductID,
		CompanyID:  n.CompanyID,
		LocationID: n.LocationID,
		Sign:       repository.SignPositive,
	})
	if err != nil {
		return nil, err
	}
	var direct, byOrigin []*entity.Quant
	for _, p := range quants {
		switch {
		case p.ReconcilesWith == n.ID:
			direct = append(direct, p)
		case p.ProducedByMovementID != "" && origins[p.ProducedByMovementID]:
			byOrigin = append(byOrigin, p)
		}
	}
	fifo := func(qs []*entity.Quant) {
		sort.SliceStable(qs, func(i, j int) bool {
			if !qs[i].InDate.Equal(qs[j].InDate) {
				return qs[i].InDate.Before(qs[j].InDate)
			}
			return qs[i].ID < qs[j].ID
		})
	}
	fifo(direct)
	fifo(byOrigin)
	return append(direct, byOrigin...), nil
}
