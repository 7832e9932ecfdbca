package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/shopspring/decimal"
)

// TheoreticalLine cantidad registrada para una clave de quant.
type TheoreticalLine struct {
	Key      entity.QuantKey
	Quantity decimal.Decimal
}

// CountedLine cantidad contada físicamente para una clave (unidad del producto).
type CountedLine struct {
	Key     entity.QuantKey
	Counted decimal.Decimal
}

// ApplyCountRequest entrada de ApplyCount. LossLocationID vacío = el de Options.
type ApplyCountRequest struct {
	CompanyID      string
	UserID         string
	LossLocationID string
	Lines          []CountedLine
	Date           time.Time
}

// AdjustmentReconciler compara lo contado con lo registrado y genera los movimientos de ajuste
// contra la ubicación de pérdidas de inventario.
type AdjustmentReconciler struct {
	tx           TxRunner
	reservations *ReservationEngine
	opts         Options
}

// NewAdjustmentReconciler construye el conciliador de conteos.
func NewAdjustmentReconciler(tx TxRunner, reservations *ReservationEngine, opts Options) *AdjustmentReconciler {
	return &AdjustmentReconciler{tx: tx, reservations: reservations, opts: opts.normalized()}
}

// ComputeTheoretical cantidad registrada por clave en el subárbol. productID vacío = todos los productos.
func (a *AdjustmentReconciler) ComputeTheoretical(ctx context.Context, companyID, locationID, productID string, filters Filters) ([]TheoreticalLine, error) {
	if companyID == "" || locationID == "" {
		return nil, domain.ErrInvalidInput
	}
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	var out []TheoreticalLine
	err := a.tx.Run(ctx, func(repos repository.Repositories) error {
		tree, err := repos.Locations.Tree(ctx)
		if err != nil {
			return err
		}
		interval, ok := tree.Interval(locationID)
		if !ok {
			return fmt.Errorf("ubicación %s: %w", locationID, domain.ErrNotFound)
		}
		query := repository.QuantQuery{ProductID: productID, Subtree: &interval, InternalOnly: true}
		filters.apply(&query)
		query.CompanyID = companyID
		quants, err := repos.Quants.Find(ctx, query)
		if err != nil {
			return err
		}
		byKey := map[entity.QuantKey]decimal.Decimal{}
		for _, q := range quants {
			byKey[q.QuantKey] = byKey[q.QuantKey].Add(q.Quantity)
		}
		for k, qty := range byKey {
			out = append(out, TheoreticalLine{Key: k, Quantity: qty})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return keyLess(out[i].Key, out[j].Key) })
	return out, err
}

// ApplyCount aplica el conteo en una sola transacción. diff = teórico - contado:
// diff > 0 envía la diferencia a pérdidas, diff < 0 la trae desde pérdidas al costo vigente.
func (a *AdjustmentReconciler) ApplyCount(ctx context.Context, req ApplyCountRequest) (*entity.Adjustment, error) {
	if req.CompanyID == "" || len(req.Lines) == 0 {
		return nil, domain.ErrInvalidInput
	}
	for _, l := range req.Lines {
		if l.Counted.IsNegative() {
			return nil, fmt.Errorf("conteo negativo %s: %w", l.Counted, domain.ErrInvalidInput)
		}
		if l.Key.ProductID == "" || l.Key.LocationID == "" {
			return nil, domain.ErrInvalidInput
		}
	}
	lossID := req.LossLocationID
	if lossID == "" {
		lossID = a.opts.LossLocationID
	}
	if lossID == "" {
		return nil, fmt.Errorf("sin ubicación de pérdidas: %w", domain.ErrInvalidInput)
	}
	date := req.Date
	if date.IsZero() {
		date = a.opts.Clock()
	}

	adj := &entity.Adjustment{
		ID:             uuid.New().String(),
		CompanyID:      req.CompanyID,
		LossLocationID: lossID,
		Date:           date,
		CreatedBy:      req.UserID,
	}
	keys := make([]string, 0, len(req.Lines))
	for _, l := range req.Lines {
		keys = append(keys, reconcileLockKey(l.Key.LocationID, l.Key.ProductID))
	}
	release, err := obtainLocks(ctx, a.opts, keys)
	if err != nil {
		return nil, err
	}
	defer release()

	err = a.tx.Run(ctx, func(repos repository.Repositories) error {
		adj.Lines = adj.Lines[:0]
		loss, err := repos.Locations.GetByID(ctx, lossID)
		if err != nil {
			return err
		}
		if loss == nil || loss.Usage != entity.LocationUsageInventory {
			return fmt.Errorf("ubicación de pérdidas %s: %w", lossID, domain.ErrInvalidInput)
		}
		for _, l := range req.Lines {
			key := l.Key
			key.CompanyID = req.CompanyID
			line, err := a.applyLine(ctx, repos, adj, key, l.Counted, loss.ID)
			if err != nil {
				return err
			}
			adj.Lines = append(adj.Lines, line)
		}
		return repos.Adjustments.Create(ctx, adj)
	})
	if err != nil {
		return nil, err
	}
	a.opts.Logger.Info().
		Str("adjustment_id", adj.ID).
		Str("company_id", adj.CompanyID).
		Int("lines", len(adj.Lines)).
		Msg("ajuste de inventario aplicado")
	return adj, nil
}

func (a *AdjustmentReconciler) applyLine(ctx context.Context, repos repository.Repositories, adj *entity.Adjustment, key entity.QuantKey, counted decimal.Decimal, lossID string) (entity.AdjustmentLine, error) {
	theoretical, err := repos.Quants.Sum(ctx, exactKeyQuery(key, repository.SignAny))
	if err != nil {
		return entity.AdjustmentLine{}, err
	}
	line := entity.AdjustmentLine{QuantKey: key, Theoretical: theoretical, Counted: counted, Diff: theoretical.Sub(counted)}
	if line.Diff.IsZero() {
		return line, a.settle(ctx, repos, adj, key)
	}

	in := CreateMovementInput{
		CompanyID: key.CompanyID,
		UserID:    adj.CreatedBy,
		ProductID: key.ProductID,
		Quantity:  line.Diff.Abs(),
		LotID:     key.LotID,
		PackageID: key.PackageID,
		OwnerID:   key.OwnerID,
		Strict:    true,
		Reference: "ajuste " + adj.ID,
		Date:      adj.Date,
	}
	if line.Diff.IsPositive() {
		in.SourceLocationID, in.DestLocationID = key.LocationID, lossID
	} else {
		in.SourceLocationID, in.DestLocationID = lossID, key.LocationID
		if in.PriceUnit, err = a.reservations.valuation.standingCost(ctx, repos, key.CompanyID, key.ProductID); err != nil {
			return line, err
		}
	}

	m, err := a.reservations.createTx(ctx, repos, in)
	if err != nil {
		return line, err
	}
	if _, err := a.reservations.confirmTx(ctx, repos, key.CompanyID, m.ID); err != nil {
		return line, err
	}
	res, err := a.reservations.reserveTx(ctx, repos, key.CompanyID, m.ID)
	if err != nil {
		return line, err
	}
	if res.Status != AssignmentAssigned {
		return line, fmt.Errorf("ajuste de %s en %s: reservado %s de %s: %w",
			key.ProductID, key.LocationID, res.Reserved, m.ProductQty, domain.ErrInsufficientStock)
	}
	if _, err := a.reservations.completeTx(ctx, repos, CompleteRequest{CompanyID: key.CompanyID, MovementID: m.ID, UserID: adj.CreatedBy}); err != nil {
		return line, err
	}
	line.MovementID = m.ID
	return line, a.settle(ctx, repos, adj, key)
}

// settle deja la clave contada sin negativos: lo contado es el total real, así que los negativos
// pendientes se compensan con los positivos libres de la misma clave.
func (a *AdjustmentReconciler) settle(ctx context.Context, repos repository.Repositories, adj *entity.Adjustment, key entity.QuantKey) error {
	pairings, err := a.reservations.reconciler.settleKey(ctx, repos, key)
	if err != nil {
		return err
	}
	if len(pairings) > 0 {
		a.opts.Logger.Debug().
			Str("adjustment_id", adj.ID).
			Str("product_id", key.ProductID).
			Str("location_id", key.LocationID).
			Int("pairings", len(pairings)).
			Msg("negativos compensados por conteo")
	}
	return nil
}

// Get devuelve un ajuste de la empresa.
func (a *AdjustmentReconciler) Get(ctx context.Context, companyID, adjustmentID string) (*entity.Adjustment, error) {
	var adj *entity.Adjustment
	err := a.tx.Run(ctx, func(repos repository.Repositories) error {
		found, err := repos.Adjustments.GetByID(ctx, adjustmentID)
		if err != nil {
			return err
		}
		if found == nil || found.CompanyID != companyID {
			return fmt.Errorf("ajuste %s: %w", adjustmentID, domain.ErrNotFound)
		}
		adj = found
		return nil
	})
	return adj, err
}

func keyLess(a, b entity.QuantKey) bool {
	switch {
	case a.ProductID != b.ProductID:
		return a.ProductID < b.ProductID
	case a.LocationID != b.LocationID:
		return a.LocationID < b.LocationID
	case a.LotID != b.LotID:
		return a.LotID < b.LotID
	case a.PackageID != b.PackageID:
		return a.PackageID < b.PackageID
	}
	return a.OwnerID < b.OwnerID
}
