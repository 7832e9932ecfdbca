// Package memory implementa los puertos del motor de inventario en memoria. Cada transacción trabaja
// sobre una copia del estado bajo un mutex y la publica solo si fn termina sin error.
package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/location"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ inventory.TxRunner = (*Store)(nil)

// Store almacenamiento transaccional en memoria (pruebas, uso embebido).
type Store struct {
	mu    sync.Mutex
	state *state
}

// NewStore crea un almacenamiento vacío.
func NewStore() *Store {
	return &Store{state: newState()}
}

// Run serializa las transacciones: fn trabaja sobre una copia que reemplaza al estado solo si no hay error.
func (s *Store) Run(ctx context.Context, fn func(repos repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(work.repositories()); err != nil {
		return err
	}
	s.state = work
	return nil
}

type linkKey struct {
	movementID string
	quantID    string
}

type costKey struct {
	companyID string
	productID string
}

type state struct {
	quants      map[string]*entity.Quant
	byKey       map[entity.QuantKey]map[string]struct{}
	byProduct   map[string]map[string]struct{}
	links       map[linkKey]*entity.ReservationLink
	movements   map[string]*entity.Movement
	locations   map[string]*entity.Location
	tree        *location.Tree
	costs       map[costKey]*entity.CostValuation
	adjustments map[string]*entity.Adjustment
}

func newState() *state {
	return &state{
		quants:      map[string]*entity.Quant{},
		byKey:       map[entity.QuantKey]map[string]struct{}{},
		byProduct:   map[string]map[string]struct{}{},
		links:       map[linkKey]*entity.ReservationLink{},
		movements:   map[string]*entity.Movement{},
		locations:   map[string]*entity.Location{},
		costs:       map[costKey]*entity.CostValuation{},
		adjustments: map[string]*entity.Adjustment{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for _, q := range s.quants {
		c.putQuant(q.Clone())
	}
	for k, l := range s.links {
		cp := *l
		c.links[k] = &cp
	}
	for id, m := range s.movements {
		c.movements[id] = m.Clone()
	}
	for id, l := range s.locations {
		cp := *l
		c.locations[id] = &cp
	}
	for k, v := range s.costs {
		cp := *v
		c.costs[k] = &cp
	}
	for id, a := range s.adjustments {
		c.adjustments[id] = cloneAdjustment(a)
	}
	return c
}

func (s *state) repositories() repository.Repositories {
	return repository.Repositories{
		Quants:       &quantRepo{s: s},
		Reservations: &reservationRepo{s: s},
		Movements:    &movementRepo{s: s},
		Locations:    &locationRepo{s: s},
		Costs:        &costRepo{s: s},
		Adjustments:  &adjustmentRepo{s: s},
	}
}

func (s *state) putQuant(q *entity.Quant) {
	s.quants[q.ID] = q
	if s.byKey[q.QuantKey] == nil {
		s.byKey[q.QuantKey] = map[string]struct{}{}
	}
	s.byKey[q.QuantKey][q.ID] = struct{}{}
	if s.byProduct[q.ProductID] == nil {
		s.byProduct[q.ProductID] = map[string]struct{}{}
	}
	s.byProduct[q.ProductID][q.ID] = struct{}{}
}

func (s *state) dropQuant(q *entity.Quant) {
	delete(s.quants, q.ID)
	delete(s.byKey[q.QuantKey], q.ID)
	if len(s.byKey[q.QuantKey]) == 0 {
		delete(s.byKey, q.QuantKey)
	}
	delete(s.byProduct[q.ProductID], q.ID)
	for k := range s.links {
		if k.quantID == q.ID {
			delete(s.links, k)
		}
	}
}

// locationTree árbol con intervalos vigentes; se reconstruye tras cada alta de ubicación.
func (s *state) locationTree() (*location.Tree, error) {
	if s.tree != nil {
		return s.tree, nil
	}
	locs := make([]*entity.Location, 0, len(s.locations))
	for _, l := range s.locations {
		locs = append(locs, l)
	}
	t, err := location.NewTree(locs)
	if err != nil {
		return nil, err
	}
	s.tree = t
	return t, nil
}

func cloneAdjustment(a *entity.Adjustment) *entity.Adjustment {
	c := *a
	c.Lines = append([]entity.AdjustmentLine(nil), a.Lines...)
	return &c
}
