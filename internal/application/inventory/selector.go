package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	invdomain "github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/location"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/shopspring/decimal"
)

// SelectRequest entrada del selector. Strategy vacío = resolver por producto/ubicación.
// MovementID se usa en el nivel TierSameReservation. ExactLocation excluye las ubicaciones hijas.
type SelectRequest struct {
	ProductID     string
	LocationID    string
	Quantity      decimal.Decimal
	Filters       Filters
	Strategy      entity.RemovalStrategy
	Tiers         []invdomain.PriorityTier
	MovementID    string
	ExactLocation bool
}

// Candidate quant a consumir y cuánto. FromReservation es la parte que ya estaba reservada
// para el movimiento del request.
type Candidate struct {
	QuantID         string
	LocationID      string
	LotID           string
	PackageID       string
	OwnerID         string
	Available       decimal.Decimal
	FromReservation decimal.Decimal
	Cost            decimal.Decimal
	InDate          time.Time
	ExpirationDate  *time.Time
}

// Selector ordena los quants candidatos según la estrategia de remoción.
type Selector struct {
	tx      TxRunner
	catalog repository.ProductCatalog
}

// NewSelector construye el selector.
func NewSelector(tx TxRunner, catalog repository.ProductCatalog) *Selector {
	return &Selector{tx: tx, catalog: catalog}
}

// SelectCandidates versión con transacción propia (lectura).
func (s *Selector) SelectCandidates(ctx context.Context, req SelectRequest) ([]Candidate, error) {
	var out []Candidate
	err := s.tx.Run(ctx, func(repos repository.Repositories) error {
		var err error
		out, err = s.Select(ctx, repos, req)
		return err
	})
	return out, err
}

// Select recolecta candidatos nivel por nivel hasta cubrir la cantidad o agotar los niveles.
// La lista queda recortada a la cantidad pedida; si no alcanza, devuelve todo lo disponible.
func (s *Selector) Select(ctx context.Context, repos repository.Repositories, req SelectRequest) ([]Candidate, error) {
	if err := req.Filters.Validate(); err != nil {
		return nil, err
	}
	if !req.Quantity.IsPositive() {
		return nil, nil
	}
	tree, err := repos.Locations.Tree(ctx)
	if err != nil {
		return nil, err
	}
	loc, ok := tree.Get(req.LocationID)
	if !ok {
		return nil, fmt.Errorf("ubicación %s: %w", req.LocationID, domain.ErrNotFound)
	}
	if req.Filters.CompanyID != "" && loc.CompanyID != "" && loc.CompanyID != req.Filters.CompanyID {
		return nil, fmt.Errorf("empresa %s sobre ubicación de %s: %w", req.Filters.CompanyID, loc.CompanyID, domain.ErrInvalidFilterCombination)
	}

	strategy := req.Strategy
	if strategy == "" {
		product, err := s.catalog.GetProduct(ctx, req.ProductID)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, fmt.Errorf("producto %s: %w", req.ProductID, domain.ErrNotFound)
		}
		strategy = invdomain.ResolveStrategy(product.RemovalStrategy, tree.RemovalStrategy(loc.ID))
	}

	interval := location.Interval{Left: loc.Left, Right: loc.Right}
	query := repository.QuantQuery{
		ProductID:    req.ProductID,
		Subtree:      &interval,
		Sign:         repository.SignPositive,
		InternalOnly: true,
	}
	if req.ExactLocation {
		query.Subtree = nil
		query.LocationID = loc.ID
	}
	req.Filters.apply(&query)
	quants, err := repos.Quants.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(quants) == 0 {
		return nil, nil
	}
	invdomain.OrderQuants(quants, strategy, func(id string) (int, int) {
		if l, ok := tree.Get(id); ok {
			return l.Sequence, l.Left
		}
		return 0, 0
	})

	ids := make([]string, len(quants))
	for i, q := range quants {
		ids[i] = q.ID
	}
	reserved, err := repos.Reservations.ReservedByQuants(ctx, ids)
	if err != nil {
		return nil, err
	}
	own := map[string]decimal.Decimal{}
	if req.MovementID != "" {
		links, err := repos.Reservations.ListByMovement(ctx, req.MovementID)
		if err != nil {
			return nil, err
		}
		for _, l := range links {
			own[l.QuantID] = own[l.QuantID].Add(l.Quantity)
		}
	}

	remaining := req.Quantity
	takenOwn := map[string]decimal.Decimal{}
	takenFree := map[string]decimal.Decimal{}
	index := map[string]int{}
	var out []Candidate

	for _, tier := range invdomain.WithFallback(req.Tiers) {
		for _, q := range quants {
			if !remaining.IsPositive() {
				return out, nil
			}
			free := q.Quantity.Sub(reserved[q.ID])
			var amount decimal.Decimal
			fromOwn := false
			switch tier {
			case invdomain.TierSameReservation:
				amount = decimal.Min(own[q.ID], q.Quantity).Sub(takenOwn[q.ID])
				fromOwn = true
			case invdomain.TierUnreserved:
				if reserved[q.ID].IsPositive() {
					continue
				}
				amount = free.Sub(takenFree[q.ID])
			case invdomain.TierOtherReservation:
				if !reserved[q.ID].Sub(own[q.ID]).IsPositive() {
					continue
				}
				amount = free.Sub(takenFree[q.ID])
			default:
				amount = free.Sub(takenFree[q.ID])
			}
			if !amount.IsPositive() {
				continue
			}
			take := decimal.Min(amount, remaining)
			remaining = remaining.Sub(take)
			if fromOwn {
				takenOwn[q.ID] = takenOwn[q.ID].Add(take)
			} else {
				takenFree[q.ID] = takenFree[q.ID].Add(take)
			}

			i, seen := index[q.ID]
			if !seen {
				index[q.ID] = len(out)
				out = append(out, Candidate{
					QuantID:        q.ID,
					LocationID:     q.LocationID,
					LotID:          q.LotID,
					PackageID:      q.PackageID,
					OwnerID:        q.OwnerID,
					Available:      decimal.Zero,
					Cost:           q.Cost,
					InDate:         q.InDate,
					ExpirationDate: q.ExpirationDate,
				})
				i = len(out) - 1
			}
			out[i].Available = out[i].Available.Add(take)
			if fromOwn {
				out[i].FromReservation = out[i].FromReservation.Add(take)
			}
		}
	}
	return out, nil
}
