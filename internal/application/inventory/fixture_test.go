package inventory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	company = "C1"

	locWH        = "WH"
	locStock     = "STOCK"
	locShelf1    = "SHELF1"
	locShelf2    = "SHELF2"
	locSuppliers = "SUPPLIERS"
	locCustomers = "CUSTOMERS"
	locLoss      = "LOSS"

	prodStd  = "P-STD"
	prodAvg  = "P-AVG"
	prodReal = "P-REAL"
	prodUnit = "P-UNIT"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// tickClock avanza un segundo en cada lectura para que las fechas de entrada sean estrictamente crecientes.
type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type countingRecorder struct {
	mu          sync.Mutex
	results     map[string]int
	negatives   int
	reconciled  float64
	ambiguous   int
	fallbacks   int
	completions map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{results: map[string]int{}, completions: map[string]int{}}
}

func (r *countingRecorder) ReservationResult(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[status]++
}

func (r *countingRecorder) MovementCompleted(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completions[kind]++
}

func (r *countingRecorder) NegativeQuantCreated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.negatives++
}

func (r *countingRecorder) NegativeReconciled(qty float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconciled += qty
}

func (r *countingRecorder) ReconciliationAmbiguous(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ambiguous += count
}

func (r *countingRecorder) CostFallback() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks++
}

type fixture struct {
	ctx     context.Context
	store   *memory.Store
	catalog *memory.Catalog
	engine  *inventory.Engine
	metrics *countingRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	catalog := memory.NewCatalog()

	require.NoError(t, catalog.AddUoM(entity.UoM{ID: "unit", CategoryID: "u", Name: "Unidad", Factor: d("1"), Rounding: d("0.01")}))
	require.NoError(t, catalog.AddUoM(entity.UoM{ID: "dozen", CategoryID: "u", Name: "Docena", Factor: d("12"), Rounding: d("0.01")}))
	require.NoError(t, catalog.AddUoM(entity.UoM{ID: "kg", CategoryID: "w", Name: "Kilogramo", Factor: d("1"), Rounding: d("0.001")}))
	for _, p := range []entity.Product{
		{ID: prodStd, CompanyID: company, SKU: "STD", UoMID: "unit", Rounding: d("0.01"), CostMethod: entity.CostMethodStandard},
		{ID: prodAvg, CompanyID: company, SKU: "AVG", UoMID: "unit", Rounding: d("0.01"), CostMethod: entity.CostMethodAverage},
		{ID: prodReal, CompanyID: company, SKU: "REAL", UoMID: "unit", Rounding: d("0.01"), CostMethod: entity.CostMethodReal},
		{ID: prodUnit, CompanyID: company, SKU: "UNIT", UoMID: "unit", Rounding: d("1"), CostMethod: entity.CostMethodStandard},
	} {
		require.NoError(t, catalog.AddProduct(p))
	}

	locs := []*entity.Location{
		{ID: locWH, CompanyID: company, Name: "WH", Usage: entity.LocationUsageView},
		{ID: locStock, ParentID: locWH, CompanyID: company, Name: "Stock", Usage: entity.LocationUsageInternal},
		{ID: locShelf1, ParentID: locStock, CompanyID: company, Name: "Shelf 1", Usage: entity.LocationUsageInternal, Sequence: 1},
		{ID: locShelf2, ParentID: locStock, CompanyID: company, Name: "Shelf 2", Usage: entity.LocationUsageInternal, Sequence: 2},
		{ID: locSuppliers, Name: "Suppliers", Usage: entity.LocationUsageSupplier},
		{ID: locCustomers, Name: "Customers", Usage: entity.LocationUsageCustomer},
		{ID: locLoss, Name: "Inventory loss", Usage: entity.LocationUsageInventory},
	}
	require.NoError(t, store.Run(ctx, func(repos repository.Repositories) error {
		for _, l := range locs {
			if err := repos.Locations.Create(ctx, l); err != nil {
				return err
			}
		}
		return nil
	}))

	clock := &tickClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	metrics := newCountingRecorder()
	opts := inventory.DefaultOptions()
	opts.Clock = clock.Now
	opts.Metrics = metrics
	opts.LossLocationID = locLoss

	return &fixture{
		ctx:     ctx,
		store:   store,
		catalog: catalog,
		engine:  inventory.NewEngine(store, catalog, opts),
		metrics: metrics,
	}
}

// move crea y confirma un movimiento.
func (f *fixture) move(t *testing.T, in inventory.CreateMovementInput) *entity.Movement {
	t.Helper()
	if in.CompanyID == "" {
		in.CompanyID = company
	}
	m, err := f.engine.Reservations.Create(f.ctx, in)
	require.NoError(t, err)
	m, err = f.engine.Reservations.Confirm(f.ctx, company, m.ID)
	require.NoError(t, err)
	return m
}

// receive entrada desde proveedores, reservada y completada.
func (f *fixture) receive(t *testing.T, product, dest, qty, price string) *inventory.CompletionResult {
	t.Helper()
	m := f.move(t, inventory.CreateMovementInput{
		ProductID: product, Quantity: d(qty), PriceUnit: d(price),
		SourceLocationID: locSuppliers, DestLocationID: dest,
	})
	return f.reserveAndComplete(t, m)
}

func (f *fixture) reserveAndComplete(t *testing.T, m *entity.Movement) *inventory.CompletionResult {
	t.Helper()
	res, err := f.engine.Reservations.Reserve(f.ctx, company, m.ID)
	require.NoError(t, err)
	require.Equal(t, inventory.AssignmentAssigned, res.Status)
	done, err := f.engine.Reservations.Complete(f.ctx, inventory.CompleteRequest{CompanyID: company, MovementID: m.ID})
	require.NoError(t, err)
	return done
}

// deposit deposita directamente en el QuantStore.
func (f *fixture) deposit(t *testing.T, product, loc, qty, cost string, in time.Time) string {
	t.Helper()
	var id string
	require.NoError(t, f.store.Run(f.ctx, func(repos repository.Repositories) error {
		var err error
		id, err = f.engine.Quants.Deposit(f.ctx, repos, inventory.DepositRequest{
			Key:      entity.QuantKey{ProductID: product, LocationID: loc, CompanyID: company},
			Quantity: d(qty),
			Cost:     d(cost),
			InDate:   in,
		})
		return err
	}))
	return id
}

func (f *fixture) qtyAt(t *testing.T, product, loc string) decimal.Decimal {
	t.Helper()
	q, err := f.engine.Quants.QuantityAt(f.ctx, product, loc, inventory.Filters{CompanyID: company})
	require.NoError(t, err)
	return q
}

func (f *fixture) reservedOn(t *testing.T, quantIDs ...string) map[string]decimal.Decimal {
	t.Helper()
	var out map[string]decimal.Decimal
	require.NoError(t, f.store.Run(f.ctx, func(repos repository.Repositories) error {
		var err error
		out, err = repos.Reservations.ReservedByQuants(f.ctx, quantIDs)
		return err
	}))
	return out
}

func (f *fixture) quants(t *testing.T, product, loc string) []*entity.Quant {
	t.Helper()
	qs, err := f.engine.Quants.ListQuants(f.ctx, product, loc, inventory.Filters{CompanyID: company})
	require.NoError(t, err)
	return qs
}

func day(n int) time.Time {
	return time.Date(2023, 6, n, 0, 0, 0, 0, time.UTC)
}
