package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	invdomain "github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/shopspring/decimal"
)

// ValuationEngine mantiene el costo unitario vigente (estándar, promedio o real) por producto y empresa.
type ValuationEngine struct {
	tx      TxRunner
	catalog repository.ProductCatalog
	opts    Options
}

// NewValuationEngine construye el motor de valorización.
func NewValuationEngine(tx TxRunner, catalog repository.ProductCatalog, opts Options) *ValuationEngine {
	return &ValuationEngine{tx: tx, catalog: catalog, opts: opts.normalized()}
}

// CurrentCost costo vigente según el método activo del producto.
func (v *ValuationEngine) CurrentCost(ctx context.Context, companyID, productID string) (decimal.Decimal, error) {
	cost := decimal.Zero
	err := v.tx.Run(ctx, func(repos repository.Repositories) error {
		product, err := v.product(ctx, productID)
		if err != nil {
			return err
		}
		cost, err = v.currentCost(ctx, repos, companyID, product)
		return err
	})
	return cost, err
}

// SetStandardCost fija manualmente el costo vigente (redondeado a la precisión de la moneda).
func (v *ValuationEngine) SetStandardCost(ctx context.Context, companyID, productID string, cost decimal.Decimal) error {
	if companyID == "" || productID == "" || cost.IsNegative() {
		return domain.ErrInvalidInput
	}
	return v.tx.Run(ctx, func(repos repository.Repositories) error {
		product, err := v.product(ctx, productID)
		if err != nil {
			return err
		}
		return repos.Costs.Upsert(ctx, &entity.CostValuation{
			CompanyID: companyID,
			ProductID: productID,
			Method:    product.CostMethod,
			Cost:      invdomain.RoundCost(cost, v.opts.CostPrecision),
			UpdatedAt: v.opts.Clock(),
		})
	})
}

// Valuation reporte por producto de cantidad y valor (Σ cantidad × costo del quant) en el subárbol.
func (v *ValuationEngine) Valuation(ctx context.Context, companyID, locationID string) ([]entity.ProductValuation, error) {
	var out []entity.ProductValuation
	err := v.tx.Run(ctx, func(repos repository.Repositories) error {
		tree, err := repos.Locations.Tree(ctx)
		if err != nil {
			return err
		}
		interval, ok := tree.Interval(locationID)
		if !ok {
			return fmt.Errorf("ubicación %s: %w", locationID, domain.ErrNotFound)
		}
		quants, err := repos.Quants.Find(ctx, repository.QuantQuery{
			CompanyID:    companyID,
			Subtree:      &interval,
			InternalOnly: true,
		})
		if err != nil {
			return err
		}
		byProduct := map[string]*entity.ProductValuation{}
		for _, q := range quants {
			pv, ok := byProduct[q.ProductID]
			if !ok {
				pv = &entity.ProductValuation{ProductID: q.ProductID, Quantity: decimal.Zero, Value: decimal.Zero}
				byProduct[q.ProductID] = pv
			}
			pv.Quantity = pv.Quantity.Add(q.Quantity)
			pv.Value = pv.Value.Add(q.Value())
		}
		for _, pv := range byProduct {
			product, err := v.product(ctx, pv.ProductID)
			if err != nil {
				return err
			}
			pv.Method = product.CostMethod
			if pv.UnitCost, err = v.currentCost(ctx, repos, companyID, product); err != nil {
				return err
			}
			pv.Value = invdomain.RoundCost(pv.Value, v.opts.CostPrecision)
			out = append(out, *pv)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, err
}

func (v *ValuationEngine) product(ctx context.Context, productID string) (*entity.Product, error) {
	product, err := v.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("producto %s: %w", productID, domain.ErrNotFound)
	}
	return product, nil
}

// standingCost costo registrado; cero si no existe registro.
func (v *ValuationEngine) standingCost(ctx context.Context, repos repository.Repositories, companyID, productID string) (decimal.Decimal, error) {
	rec, err := repos.Costs.Get(ctx, companyID, productID)
	if err != nil {
		return decimal.Zero, err
	}
	if rec == nil {
		return decimal.Zero, nil
	}
	return rec.Cost, nil
}

func (v *ValuationEngine) currentCost(ctx context.Context, repos repository.Repositories, companyID string, product *entity.Product) (decimal.Decimal, error) {
	if product.CostMethod != entity.CostMethodReal {
		return v.standingCost(ctx, repos, companyID, product.ID)
	}
	// Costo real: promedio de los lotes positivos en ubicaciones internas.
	quants, err := repos.Quants.Find(ctx, repository.QuantQuery{
		ProductID:    product.ID,
		CompanyID:    companyID,
		Sign:         repository.SignPositive,
		InternalOnly: true,
	})
	if err != nil {
		return decimal.Zero, err
	}
	slices := make([]invdomain.CostSlice, 0, len(quants))
	for _, q := range quants {
		slices = append(slices, invdomain.CostSlice{Quantity: q.Quantity, Cost: q.Cost})
	}
	if cost, ok := invdomain.WeightedCost(slices); ok {
		return invdomain.RoundCost(cost, v.opts.CostPrecision), nil
	}
	return v.standingCost(ctx, repos, companyID, product.ID)
}

// incomingCost costo de los quants depositados por una entrada desde una ubicación virtual.
// En promedio recalcula y guarda el costo vigente con el stock interno previo a la entrada.
func (v *ValuationEngine) incomingCost(ctx context.Context, repos repository.Repositories, m *entity.Movement, product *entity.Product, qty decimal.Decimal) (decimal.Decimal, error) {
	standing, err := v.standingCost(ctx, repos, m.CompanyID, product.ID)
	if err != nil {
		return decimal.Zero, err
	}
	price := m.PriceUnit
	if price.IsZero() {
		price = standing
	}

	switch product.CostMethod {
	case entity.CostMethodAverage:
		onHand, err := repos.Quants.Sum(ctx, repository.QuantQuery{
			ProductID:    product.ID,
			CompanyID:    m.CompanyID,
			InternalOnly: true,
		})
		if err != nil {
			return decimal.Zero, err
		}
		newCost, degenerate := invdomain.AverageCost(onHand, standing, qty, price)
		if degenerate {
			v.opts.Metrics.CostFallback()
			v.opts.Logger.Warn().
				Str("product_id", product.ID).
				Str("company_id", m.CompanyID).
				Str("on_hand", onHand.String()).
				Str("incoming_qty", qty.String()).
				Msg("costo promedio con denominador no positivo, se usa el precio de entrada")
		}
		newCost = invdomain.RoundCost(newCost, v.opts.CostPrecision)
		if err := v.saveCost(ctx, repos, m.CompanyID, product, newCost); err != nil {
			return decimal.Zero, err
		}
		return newCost, nil
	case entity.CostMethodReal:
		price = invdomain.RoundCost(price, v.opts.CostPrecision)
		// El último precio de entrada queda como respaldo cuando no hay lotes.
		if err := v.saveCost(ctx, repos, m.CompanyID, product, price); err != nil {
			return decimal.Zero, err
		}
		return price, nil
	default:
		return invdomain.RoundCost(price, v.opts.CostPrecision), nil
	}
}

// outgoingPrice precio unitario de un movimiento que consumió las porciones indicadas.
// Real: promedio ponderado de lo consumido. Estándar/promedio: costo vigente.
func (v *ValuationEngine) outgoingPrice(ctx context.Context, repos repository.Repositories, m *entity.Movement, product *entity.Product, consumed []invdomain.CostSlice) (decimal.Decimal, error) {
	if product.CostMethod == entity.CostMethodReal {
		if cost, ok := invdomain.WeightedCost(consumed); ok {
			return invdomain.RoundCost(cost, v.opts.CostPrecision), nil
		}
	}
	standing, err := v.standingCost(ctx, repos, m.CompanyID, product.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return invdomain.RoundCost(standing, v.opts.CostPrecision), nil
}

// reattribute corrige el precio de un movimiento hecho cuando qty unidades que consumió a oldCost
// resultan pertenecer a un lote de costo newCost.
func (v *ValuationEngine) reattribute(ctx context.Context, repos repository.Repositories, movementID string, qty, oldCost, newCost decimal.Decimal) error {
	m, err := repos.Movements.GetForUpdate(ctx, movementID)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("movimiento %s: %w", movementID, domain.ErrNotFound)
	}
	price := invdomain.ReattributePrice(m.PriceUnit, m.QuantityDone, qty, oldCost, newCost)
	m.PriceUnit = invdomain.RoundCost(price, v.opts.CostPrecision)
	m.UpdatedAt = v.opts.Clock()
	return repos.Movements.Update(ctx, m)
}

func (v *ValuationEngine) saveCost(ctx context.Context, repos repository.Repositories, companyID string, product *entity.Product, cost decimal.Decimal) error {
	return repos.Costs.Upsert(ctx, &entity.CostValuation{
		CompanyID: companyID,
		ProductID: product.ID,
		Method:    product.CostMethod,
		Cost:      cost,
		UpdatedAt: v.opts.Clock(),
	})
}
