package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	invdomain "github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/shopspring/decimal"
)

// QuantStore es el único dueño de la verdad de cantidades: toda mutación de quants pasa por aquí.
// Las operaciones corren dentro de la transacción del llamador (repos atados a la tx).
type QuantStore struct {
	tx      TxRunner
	catalog repository.ProductCatalog
	opts    Options
}

// NewQuantStore construye el almacén de quants.
func NewQuantStore(tx TxRunner, catalog repository.ProductCatalog, opts Options) *QuantStore {
	return &QuantStore{tx: tx, catalog: catalog, opts: opts.normalized()}
}

// DepositRequest entrada de Deposit. InDate cero = ahora.
type DepositRequest struct {
	Key                  entity.QuantKey
	Quantity             decimal.Decimal
	Cost                 decimal.Decimal
	InDate               time.Time
	ExpirationDate       *time.Time
	ProducedByMovementID string
	ReconcilesWith       string
}

// Deposit crea o aumenta un quant en la clave. Se fusiona con un quant positivo existente solo si
// coinciden costo, vencimiento y procedencia; costos distintos quedan en filas separadas.
func (s *QuantStore) Deposit(ctx context.Context, repos repository.Repositories, req DepositRequest) (string, error) {
	k := req.Key
	if k.ProductID == "" || k.LocationID == "" || k.CompanyID == "" {
		return "", domain.ErrInvalidInput
	}
	if !req.Quantity.IsPositive() || req.Cost.IsNegative() {
		return "", domain.ErrInvalidInput
	}
	if err := s.checkRounding(ctx, k.ProductID, req.Quantity); err != nil {
		return "", err
	}
	loc, err := repos.Locations.GetByID(ctx, k.LocationID)
	if err != nil {
		return "", err
	}
	if loc == nil {
		return "", fmt.Errorf("ubicación %s: %w", k.LocationID, domain.ErrNotFound)
	}
	if !loc.HoldsStock() {
		return "", fmt.Errorf("ubicación %s (%s) no guarda stock: %w", loc.ID, loc.Usage, domain.ErrInvalidInput)
	}

	now := s.opts.Clock()
	if req.ReconcilesWith == "" {
		existing, err := repos.Quants.Find(ctx, exactKeyQuery(k, repository.SignPositive))
		if err != nil {
			return "", err
		}
		for _, q := range existing {
			if !q.Cost.Equal(req.Cost) || !sameExpiration(q.ExpirationDate, req.ExpirationDate) ||
				q.ReconcilesWith != "" || q.ProducedByMovementID != req.ProducedByMovementID {
				continue
			}
			locked, err := repos.Quants.GetForUpdate(ctx, q.ID)
			if err != nil {
				return "", err
			}
			if locked == nil || !locked.Quantity.IsPositive() {
				continue
			}
			locked.Quantity = locked.Quantity.Add(req.Quantity)
			locked.UpdatedAt = now
			if err := repos.Quants.Update(ctx, locked); err != nil {
				return "", err
			}
			return locked.ID, nil
		}
	}

	inDate := req.InDate
	if inDate.IsZero() {
		inDate = now
	}
	q := &entity.Quant{
		ID:                   uuid.New().String(),
		QuantKey:             k,
		Quantity:             req.Quantity,
		Cost:                 req.Cost,
		InDate:               inDate,
		ExpirationDate:       req.ExpirationDate,
		ProducedByMovementID: req.ProducedByMovementID,
		ReconcilesWith:       req.ReconcilesWith,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := repos.Quants.Create(ctx, q); err != nil {
		return "", err
	}
	return q.ID, nil
}

// Withdraw resta qty del quant con un decremento condicional atómico. Sin allowNegative falla con
// ErrInsufficientStock si qty supera la cantidad actual. Los quants que quedan en cero se eliminan.
func (s *QuantStore) Withdraw(ctx context.Context, repos repository.Repositories, quantID string, qty decimal.Decimal, allowNegative bool) (*entity.Quant, error) {
	if !qty.IsPositive() {
		return nil, domain.ErrInvalidInput
	}
	current, err := repos.Quants.GetByID(ctx, quantID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("quant %s: %w", quantID, domain.ErrNotFound)
	}
	if err := s.checkRounding(ctx, current.ProductID, qty); err != nil {
		return nil, err
	}
	updated, err := repos.Quants.Decrement(ctx, quantID, qty, allowNegative)
	if err != nil {
		return nil, err
	}
	if updated.Quantity.IsZero() {
		if err := repos.Quants.Delete(ctx, quantID); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// Overdraw registra qty consumida sin existencias como quant negativo en la clave, con el movimiento
// que lo provocó como procedencia. Se acumula sobre un negativo previo del mismo movimiento y costo.
func (s *QuantStore) Overdraw(ctx context.Context, repos repository.Repositories, key entity.QuantKey, qty, cost decimal.Decimal, movementID string) (string, error) {
	if !qty.IsPositive() || movementID == "" {
		return "", domain.ErrInvalidInput
	}
	if err := s.checkRounding(ctx, key.ProductID, qty); err != nil {
		return "", err
	}
	now := s.opts.Clock()
	negatives, err := repos.Quants.Find(ctx, exactKeyQuery(key, repository.SignNegative))
	if err != nil {
		return "", err
	}
	for _, n := range negatives {
		if n.NegativeFromMovementID != movementID || !n.Cost.Equal(cost) {
			continue
		}
		if _, err := repos.Quants.Decrement(ctx, n.ID, qty, true); err != nil {
			return "", err
		}
		return n.ID, nil
	}
	q := &entity.Quant{
		ID:                     uuid.New().String(),
		QuantKey:               key,
		Quantity:               qty.Neg(),
		Cost:                   cost,
		InDate:                 now,
		NegativeFromMovementID: movementID,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := repos.Quants.Create(ctx, q); err != nil {
		return "", err
	}
	s.opts.Metrics.NegativeQuantCreated()
	s.opts.Logger.Info().
		Str("quant_id", q.ID).
		Str("product_id", key.ProductID).
		Str("location_id", key.LocationID).
		Str("movement_id", movementID).
		Str("quantity", q.Quantity.String()).
		Msg("quant negativo creado")
	return q.ID, nil
}

// Offset acerca un quant negativo a cero en qty (conciliación). Nunca lo deja positivo.
func (s *QuantStore) Offset(ctx context.Context, repos repository.Repositories, negativeQuantID string, qty decimal.Decimal) (*entity.Quant, error) {
	if !qty.IsPositive() {
		return nil, domain.ErrInvalidInput
	}
	n, err := repos.Quants.GetForUpdate(ctx, negativeQuantID)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("quant %s: %w", negativeQuantID, domain.ErrNotFound)
	}
	if !n.IsNegative() || qty.GreaterThan(n.Quantity.Neg()) {
		return nil, fmt.Errorf("offset %s sobre quant %s (%s): %w", qty, n.ID, n.Quantity, domain.ErrInvalidInput)
	}
	n.Quantity = n.Quantity.Add(qty)
	n.UpdatedAt = s.opts.Clock()
	if n.Quantity.IsZero() {
		return n, repos.Quants.Delete(ctx, n.ID)
	}
	return n, repos.Quants.Update(ctx, n)
}

// QuantityAt suma los quants del producto en el subárbol de la ubicación que pasan los filtros.
func (s *QuantStore) QuantityAt(ctx context.Context, productID, locationID string, filters Filters) (decimal.Decimal, error) {
	total := decimal.Zero
	err := s.tx.Run(ctx, func(repos repository.Repositories) error {
		var err error
		total, err = s.quantityAt(ctx, repos, productID, locationID, filters)
		return err
	})
	return total, err
}

// ListQuants quants del producto en el subárbol (para reportes).
func (s *QuantStore) ListQuants(ctx context.Context, productID, locationID string, filters Filters) ([]*entity.Quant, error) {
	var out []*entity.Quant
	err := s.tx.Run(ctx, func(repos repository.Repositories) error {
		q, err := subtreeQuery(ctx, repos, productID, locationID, filters)
		if err != nil {
			return err
		}
		out, err = repos.Quants.Find(ctx, q)
		return err
	})
	return out, err
}

func (s *QuantStore) quantityAt(ctx context.Context, repos repository.Repositories, productID, locationID string, filters Filters) (decimal.Decimal, error) {
	q, err := subtreeQuery(ctx, repos, productID, locationID, filters)
	if err != nil {
		return decimal.Zero, err
	}
	return repos.Quants.Sum(ctx, q)
}

func (s *QuantStore) checkRounding(ctx context.Context, productID string, qty decimal.Decimal) error {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if product == nil {
		return fmt.Errorf("producto %s: %w", productID, domain.ErrNotFound)
	}
	return invdomain.CheckRounding(qty, product.Rounding)
}

func subtreeQuery(ctx context.Context, repos repository.Repositories, productID, locationID string, filters Filters) (repository.QuantQuery, error) {
	if productID == "" || locationID == "" {
		return repository.QuantQuery{}, domain.ErrInvalidInput
	}
	if err := filters.Validate(); err != nil {
		return repository.QuantQuery{}, err
	}
	tree, err := repos.Locations.Tree(ctx)
	if err != nil {
		return repository.QuantQuery{}, err
	}
	interval, ok := tree.Interval(locationID)
	if !ok {
		return repository.QuantQuery{}, fmt.Errorf("ubicación %s: %w", locationID, domain.ErrNotFound)
	}
	q := repository.QuantQuery{ProductID: productID, Subtree: &interval}
	filters.apply(&q)
	return q, nil
}

func exactKeyQuery(k entity.QuantKey, sign repository.QuantSign) repository.QuantQuery {
	lot, pkg, owner := k.LotID, k.PackageID, k.OwnerID
	return repository.QuantQuery{
		ProductID:  k.ProductID,
		CompanyID:  k.CompanyID,
		LocationID: k.LocationID,
		LotID:      &lot,
		PackageID:  &pkg,
		OwnerID:    &owner,
		Sign:       sign,
	}
}

func sameExpiration(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
