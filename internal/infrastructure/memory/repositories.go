package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/location"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/shopspring/decimal"
)

type quantRepo struct{ s *state }

func (r *quantRepo) Create(_ context.Context, q *entity.Quant) error {
	if _, dup := r.s.quants[q.ID]; dup {
		return fmt.Errorf("quant %s: %w", q.ID, domain.ErrConflict)
	}
	r.s.putQuant(q.Clone())
	return nil
}

func (r *quantRepo) GetByID(_ context.Context, id string) (*entity.Quant, error) {
	q, ok := r.s.quants[id]
	if !ok {
		return nil, nil
	}
	return q.Clone(), nil
}

// GetForUpdate no necesita bloquear: la transacción ya tiene el mutex del store.
func (r *quantRepo) GetForUpdate(ctx context.Context, id string) (*entity.Quant, error) {
	return r.GetByID(ctx, id)
}

func (r *quantRepo) Update(_ context.Context, q *entity.Quant) error {
	old, ok := r.s.quants[q.ID]
	if !ok {
		return fmt.Errorf("quant %s: %w", q.ID, domain.ErrNotFound)
	}
	if old.QuantKey != q.QuantKey {
		r.s.dropQuant(old)
	}
	r.s.putQuant(q.Clone())
	return nil
}

func (r *quantRepo) Delete(_ context.Context, id string) error {
	if q, ok := r.s.quants[id]; ok {
		r.s.dropQuant(q)
	}
	return nil
}

func (r *quantRepo) Find(_ context.Context, query repository.QuantQuery) ([]*entity.Quant, error) {
	matched, err := r.match(query)
	if err != nil {
		return nil, err
	}
	out := make([]*entity.Quant, 0, len(matched))
	for _, q := range matched {
		out = append(out, q.Clone())
	}
	return out, nil
}

func (r *quantRepo) Sum(_ context.Context, query repository.QuantQuery) (decimal.Decimal, error) {
	matched, err := r.match(query)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, q := range matched {
		total = total.Add(q.Quantity)
	}
	return total, nil
}

func (r *quantRepo) Decrement(_ context.Context, id string, qty decimal.Decimal, allowNegative bool) (*entity.Quant, error) {
	q, ok := r.s.quants[id]
	if !ok {
		return nil, fmt.Errorf("quant %s: %w", id, domain.ErrNotFound)
	}
	next := q.Quantity.Sub(qty)
	if next.IsNegative() && !allowNegative {
		return nil, fmt.Errorf("quant %s tiene %s, se piden %s: %w", id, q.Quantity, qty, domain.ErrInsufficientStock)
	}
	q.Quantity = next
	return q.Clone(), nil
}

func (r *quantRepo) ProductsWithNegatives(_ context.Context, companyID string, subtree location.Interval) ([]string, error) {
	tree, err := r.s.locationTree()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, q := range r.s.quants {
		if !q.IsNegative() || (companyID != "" && q.CompanyID != companyID) || seen[q.ProductID] {
			continue
		}
		iv, ok := tree.Interval(q.LocationID)
		if !ok || !subtree.Contains(iv) {
			continue
		}
		seen[q.ProductID] = true
		out = append(out, q.ProductID)
	}
	sort.Strings(out)
	return out, nil
}

// match resuelve la consulta con el índice por clave cuando la clave está completa,
// o con el índice por producto en los demás casos.
func (r *quantRepo) match(query repository.QuantQuery) ([]*entity.Quant, error) {
	var ids map[string]struct{}
	switch {
	case query.Subtree == nil && query.LocationID != "" && query.ProductID != "" && query.CompanyID != "" &&
		query.LotID != nil && query.PackageID != nil && query.OwnerID != nil:
		ids = r.s.byKey[entity.QuantKey{
			ProductID:  query.ProductID,
			LocationID: query.LocationID,
			LotID:      *query.LotID,
			PackageID:  *query.PackageID,
			OwnerID:    *query.OwnerID,
			CompanyID:  query.CompanyID,
		}]
	case query.ProductID != "":
		ids = r.s.byProduct[query.ProductID]
	default:
		ids = make(map[string]struct{}, len(r.s.quants))
		for id := range r.s.quants {
			ids[id] = struct{}{}
		}
	}

	var tree *location.Tree
	if query.Subtree != nil || query.InternalOnly {
		t, err := r.s.locationTree()
		if err != nil {
			return nil, err
		}
		tree = t
	}

	var out []*entity.Quant
	for id := range ids {
		q := r.s.quants[id]
		if q == nil || !quantMatches(q, query) {
			continue
		}
		if tree != nil {
			loc, ok := tree.Get(q.LocationID)
			if !ok {
				continue
			}
			if query.InternalOnly && !loc.HoldsStock() {
				continue
			}
			if query.Subtree != nil && !query.Subtree.Contains(location.Interval{Left: loc.Left, Right: loc.Right}) {
				continue
			}
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].InDate.Equal(out[j].InDate) {
			return out[i].InDate.Before(out[j].InDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func quantMatches(q *entity.Quant, query repository.QuantQuery) bool {
	switch {
	case query.ProductID != "" && q.ProductID != query.ProductID:
		return false
	case query.CompanyID != "" && q.CompanyID != query.CompanyID:
		return false
	case query.Subtree == nil && query.LocationID != "" && q.LocationID != query.LocationID:
		return false
	case query.LotID != nil && q.LotID != *query.LotID:
		return false
	case query.PackageID != nil && q.PackageID != *query.PackageID:
		return false
	case query.OwnerID != nil && q.OwnerID != *query.OwnerID:
		return false
	case query.Sign == repository.SignPositive && !q.Quantity.IsPositive():
		return false
	case query.Sign == repository.SignNegative && !q.Quantity.IsNegative():
		return false
	}
	return true
}

type reservationRepo struct{ s *state }

func (r *reservationRepo) Add(_ context.Context, link *entity.ReservationLink) error {
	if _, ok := r.s.quants[link.QuantID]; !ok {
		return fmt.Errorf("quant %s: %w", link.QuantID, domain.ErrNotFound)
	}
	k := linkKey{movementID: link.MovementID, quantID: link.QuantID}
	if existing, ok := r.s.links[k]; ok {
		existing.Quantity = existing.Quantity.Add(link.Quantity)
		return nil
	}
	cp := *link
	r.s.links[k] = &cp
	return nil
}

func (r *reservationRepo) ListByMovement(_ context.Context, movementID string) ([]*entity.ReservationLink, error) {
	var out []*entity.ReservationLink
	for k, l := range r.s.links {
		if k.movementID == movementID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuantID < out[j].QuantID })
	return out, nil
}

func (r *reservationRepo) ReservedByQuants(_ context.Context, quantIDs []string) (map[string]decimal.Decimal, error) {
	want := make(map[string]bool, len(quantIDs))
	for _, id := range quantIDs {
		want[id] = true
	}
	out := map[string]decimal.Decimal{}
	for k, l := range r.s.links {
		if want[k.quantID] {
			out[k.quantID] = out[k.quantID].Add(l.Quantity)
		}
	}
	return out, nil
}

func (r *reservationRepo) DeleteByMovement(_ context.Context, movementID string) error {
	for k := range r.s.links {
		if k.movementID == movementID {
			delete(r.s.links, k)
		}
	}
	return nil
}

type movementRepo struct{ s *state }

func (r *movementRepo) Create(_ context.Context, m *entity.Movement) error {
	if _, dup := r.s.movements[m.ID]; dup {
		return fmt.Errorf("movimiento %s: %w", m.ID, domain.ErrConflict)
	}
	r.s.movements[m.ID] = m.Clone()
	return nil
}

func (r *movementRepo) GetByID(_ context.Context, id string) (*entity.Movement, error) {
	m, ok := r.s.movements[id]
	if !ok {
		return nil, nil
	}
	return m.Clone(), nil
}

func (r *movementRepo) GetForUpdate(ctx context.Context, id string) (*entity.Movement, error) {
	return r.GetByID(ctx, id)
}

func (r *movementRepo) Update(_ context.Context, m *entity.Movement) error {
	if _, ok := r.s.movements[m.ID]; !ok {
		return fmt.Errorf("movimiento %s: %w", m.ID, domain.ErrNotFound)
	}
	r.s.movements[m.ID] = m.Clone()
	return nil
}

func (r *movementRepo) ListByProduct(_ context.Context, companyID, productID string, states []entity.MovementState) ([]*entity.Movement, error) {
	allowed := map[entity.MovementState]bool{}
	for _, st := range states {
		allowed[st] = true
	}
	var out []*entity.Movement
	for _, m := range r.s.movements {
		if m.CompanyID != companyID || m.ProductID != productID {
			continue
		}
		if len(allowed) > 0 && !allowed[m.State] {
			continue
		}
		out = append(out, m.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type locationRepo struct{ s *state }

func (r *locationRepo) Create(_ context.Context, loc *entity.Location) error {
	if loc.ID == "" || !loc.Usage.IsValid() {
		return domain.ErrInvalidInput
	}
	if loc.RemovalStrategy != "" && !loc.RemovalStrategy.IsValid() {
		return domain.ErrInvalidInput
	}
	if _, dup := r.s.locations[loc.ID]; dup {
		return fmt.Errorf("ubicación %s: %w", loc.ID, domain.ErrConflict)
	}
	cp := *loc
	r.s.locations[loc.ID] = &cp
	r.s.tree = nil
	if _, err := r.s.locationTree(); err != nil {
		delete(r.s.locations, loc.ID)
		r.s.tree = nil
		return err
	}
	loc.Left, loc.Right = cp.Left, cp.Right
	return nil
}

func (r *locationRepo) GetByID(_ context.Context, id string) (*entity.Location, error) {
	l, ok := r.s.locations[id]
	if !ok {
		return nil, nil
	}
	if _, err := r.s.locationTree(); err != nil {
		return nil, err
	}
	cp := *l
	return &cp, nil
}

func (r *locationRepo) Tree(_ context.Context) (*location.Tree, error) {
	return r.s.locationTree()
}

type costRepo struct{ s *state }

func (r *costRepo) Get(_ context.Context, companyID, productID string) (*entity.CostValuation, error) {
	c, ok := r.s.costs[costKey{companyID: companyID, productID: productID}]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *costRepo) Upsert(_ context.Context, c *entity.CostValuation) error {
	cp := *c
	r.s.costs[costKey{companyID: c.CompanyID, productID: c.ProductID}] = &cp
	return nil
}

type adjustmentRepo struct{ s *state }

func (r *adjustmentRepo) Create(_ context.Context, a *entity.Adjustment) error {
	if _, dup := r.s.adjustments[a.ID]; dup {
		return fmt.Errorf("ajuste %s: %w", a.ID, domain.ErrConflict)
	}
	r.s.adjustments[a.ID] = cloneAdjustment(a)
	return nil
}

func (r *adjustmentRepo) GetByID(_ context.Context, id string) (*entity.Adjustment, error) {
	a, ok := r.s.adjustments[id]
	if !ok {
		return nil, nil
	}
	return cloneAdjustment(a), nil
}
