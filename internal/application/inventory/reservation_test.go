package inventory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shipment(qty string) inventory.CreateMovementInput {
	return inventory.CreateMovementInput{
		ProductID: prodStd, Quantity: d(qty), SourceLocationID: locStock, DestLocationID: locCustomers,
	}
}

func TestCreate_Validaciones(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Reservations.Create(f.ctx, inventory.CreateMovementInput{
		CompanyID: company, ProductID: prodStd, Quantity: d("1.005"),
		SourceLocationID: locStock, DestLocationID: locCustomers,
	})
	assert.True(t, errors.Is(err, domain.ErrRoundingViolation))

	_, err = f.engine.Reservations.Create(f.ctx, inventory.CreateMovementInput{
		CompanyID: company, ProductID: prodStd, Quantity: d("1"),
		SourceLocationID: locStock, DestLocationID: locStock,
	})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = f.engine.Reservations.Create(f.ctx, inventory.CreateMovementInput{
		CompanyID: "C2", ProductID: prodStd, Quantity: d("1"),
		SourceLocationID: locSuppliers, DestLocationID: locCustomers,
	})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput), "producto de otra empresa")

	_, err = f.engine.Reservations.Create(f.ctx, inventory.CreateMovementInput{
		CompanyID: company, ProductID: "NOPE", Quantity: d("1"),
		SourceLocationID: locStock, DestLocationID: locCustomers,
	})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCreate_ConvierteUnidad(t *testing.T) {
	f := newFixture(t)
	m, err := f.engine.Reservations.Create(f.ctx, inventory.CreateMovementInput{
		CompanyID: company, ProductID: prodStd, UoMID: "dozen", Quantity: d("2"),
		SourceLocationID: locSuppliers, DestLocationID: locStock,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.MovementStateDraft, m.State)
	assert.True(t, m.ProductQty.Equal(d("24")))

	_, err = f.engine.Reservations.Create(f.ctx, inventory.CreateMovementInput{
		CompanyID: company, ProductID: prodStd, UoMID: "kg", Quantity: d("2"),
		SourceLocationID: locSuppliers, DestLocationID: locStock,
	})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput), "categorías distintas")
}

func TestReserve_Idempotente(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, prodStd, locStock, "10", "1", day(1))
	m := f.move(t, shipment("6"))

	first, err := f.engine.Reservations.Reserve(f.ctx, company, m.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.AssignmentAssigned, first.Status)
	assert.True(t, first.Reserved.Equal(d("6")))

	second, err := f.engine.Reservations.Reserve(f.ctx, company, m.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.AssignmentAssigned, second.Status)
	assert.True(t, second.Reserved.Equal(d("6")))
	require.Len(t, second.Links, 1)
	assert.True(t, second.Links[0].Quantity.Equal(d("6")), "no se vuelve a reservar lo ya vinculado")

	got, err := f.engine.Reservations.Get(f.ctx, company, m.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.MovementStateAssigned, got.State)
	assert.Equal(t, 2, f.metrics.results[inventory.AssignmentAssigned])
}

func TestReserve_LimitePorQuantYParcial(t *testing.T) {
	f := newFixture(t)
	q := f.deposit(t, prodStd, locStock, "10", "1", day(1))
	m1 := f.move(t, shipment("6"))
	m2 := f.move(t, shipment("6"))

	_, err := f.engine.Reservations.Reserve(f.ctx, company, m1.ID)
	require.NoError(t, err)
	res, err := f.engine.Reservations.Reserve(f.ctx, company, m2.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.AssignmentPartial, res.Status)
	assert.True(t, res.Reserved.Equal(d("4")))
	assert.True(t, res.Remaining.Equal(d("2")))

	reserved := f.reservedOn(t, q)
	assert.True(t, reserved[q].LessThanOrEqual(d("10")))
	assert.True(t, reserved[q].Equal(d("10")))

	got, err := f.engine.Reservations.Get(f.ctx, company, m2.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.MovementStatePartiallyAssigned, got.State)

	// Llega más stock: una nueva reserva completa solo lo pendiente.
	f.deposit(t, prodStd, locStock, "5", "3", day(2))
	res, err = f.engine.Reservations.Reserve(f.ctx, company, m2.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.AssignmentAssigned, res.Status)
	assert.True(t, res.Reserved.Equal(d("6")))
}

func TestReserve_SinStock(t *testing.T) {
	f := newFixture(t)
	m := f.move(t, shipment("3"))
	res, err := f.engine.Reservations.Reserve(f.ctx, company, m.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.AssignmentNone, res.Status)
	assert.True(t, res.Remaining.Equal(d("3")))

	got, err := f.engine.Reservations.Get(f.ctx, company, m.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.MovementStateWaiting, got.State)
}

func TestReserve_EstadoInvalido(t *testing.T) {
	f := newFixture(t)
	m, err := f.engine.Reservations.Create(f.ctx, inventory.CreateMovementInput{
		CompanyID: company, ProductID: prodStd, Quantity: d("1"), SourceLocationID: locStock, DestLocationID: locCustomers,
	})
	require.NoError(t, err)
	_, err = f.engine.Reservations.Reserve(f.ctx, company, m.ID)
	assert.True(t, errors.Is(err, domain.ErrInvalidState), "un borrador no se reserva")

	_, err = f.engine.Reservations.Reserve(f.ctx, "C2", m.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "otra empresa no ve el movimiento")
}

func TestUnreserveYCancel(t *testing.T) {
	f := newFixture(t)
	q := f.deposit(t, prodStd, locStock, "10", "1", day(1))
	m := f.move(t, shipment("4"))
	_, err := f.engine.Reservations.Reserve(f.ctx, company, m.ID)
	require.NoError(t, err)

	got, err := f.engine.Reservations.Unreserve(f.ctx, company, m.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.MovementStateConfirmed, got.State)
	links, err := f.engine.Reservations.Links(f.ctx, company, m.ID)
	require.NoError(t, err)
	assert.Empty(t, links)
	assert.Empty(t, f.reservedOn(t, q))

	_, err = f.engine.Reservations.Reserve(f.ctx, company, m.ID)
	require.NoError(t, err)
	got, err = f.engine.Reservations.Cancel(f.ctx, company, m.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.MovementStateCancel, got.State)
	assert.Empty(t, f.reservedOn(t, q))
	assert.True(t, f.qtyAt(t, prodStd, locStock).Equal(d("10")), "cancelar no toca quants")

	_, err = f.engine.Reservations.Reserve(f.ctx, company, m.ID)
	assert.True(t, errors.Is(err, domain.ErrInvalidState))
}

func TestCancel_HechoRechazado(t *testing.T) {
	f := newFixture(t)
	done := f.receive(t, prodStd, locStock, "3", "1")
	_, err := f.engine.Reservations.Cancel(f.ctx, company, done.Movement.ID)
	assert.True(t, errors.Is(err, domain.ErrInvalidState))
}

func TestComplete_Salida(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, prodStd, locStock, "10", "2", day(1))
	m := f.move(t, shipment("4"))
	res := f.reserveAndComplete(t, m)

	assert.Equal(t, entity.MovementStateDone, res.Movement.State)
	assert.True(t, res.Movement.QuantityDone.Equal(d("4")))
	require.Len(t, res.Consumed, 1)
	assert.True(t, res.Consumed[0].Quantity.Equal(d("4")))
	assert.Empty(t, res.Produced, "destino virtual no guarda quants")
	assert.True(t, f.qtyAt(t, prodStd, locStock).Equal(d("6")))

	links, err := f.engine.Reservations.Links(f.ctx, company, m.ID)
	require.NoError(t, err)
	assert.Empty(t, links)
	assert.Equal(t, 1, f.metrics.completions["outgoing"])
}

func TestComplete_EstadoNoAsignado(t *testing.T) {
	f := newFixture(t)
	m := f.move(t, shipment("4"))
	_, err := f.engine.Reservations.Complete(f.ctx, inventory.CompleteRequest{CompanyID: company, MovementID: m.ID})
	assert.True(t, errors.Is(err, domain.ErrInvalidState))
}

func TestComplete_StockInsuficiente(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, prodStd, locStock, "2", "1", day(1))
	m := f.move(t, shipment("5"))
	res, err := f.engine.Reservations.Reserve(f.ctx, company, m.ID)
	require.NoError(t, err)
	require.Equal(t, inventory.AssignmentPartial, res.Status)

	_, err = f.engine.Reservations.Complete(f.ctx, inventory.CompleteRequest{CompanyID: company, MovementID: m.ID})
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))
	assert.True(t, f.qtyAt(t, prodStd, locStock).Equal(d("2")), "rollback completo")

	got, err := f.engine.Reservations.Get(f.ctx, company, m.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.MovementStatePartiallyAssigned, got.State)
}

func TestComplete_ParcialConBackorder(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, prodStd, locStock, "10", "1", day(1))
	m := f.move(t, shipment("10"))
	_, err := f.engine.Reservations.Reserve(f.ctx, company, m.ID)
	require.NoError(t, err)

	res, err := f.engine.Reservations.Complete(f.ctx, inventory.CompleteRequest{
		CompanyID: company, MovementID: m.ID, QuantityDone: d("6"), CreateBackorder: true,
	})
	require.NoError(t, err)
	assert.True(t, res.Movement.QuantityDone.Equal(d("6")))
	require.NotNil(t, res.Backorder)
	assert.Equal(t, m.ID, res.Backorder.BackorderOfID)
	assert.Equal(t, entity.MovementStateConfirmed, res.Backorder.State)
	assert.True(t, res.Backorder.ProductQty.Equal(d("4")))
	assert.True(t, f.qtyAt(t, prodStd, locStock).Equal(d("4")))

	// Las reservas sobrantes se liberaron: el backorder puede reservar lo que queda.
	bo, err := f.engine.Reservations.Reserve(f.ctx, company, res.Backorder.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.AssignmentAssigned, bo.Status)
}

func TestComplete_TransferenciaConservaCostoYFecha(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, prodStd, locShelf1, "5", "2", day(1))
	m := f.move(t, inventory.CreateMovementInput{
		ProductID: prodStd, Quantity: d("3"), SourceLocationID: locShelf1, DestLocationID: locShelf2,
	})
	res := f.reserveAndComplete(t, m)
	require.Len(t, res.Produced, 1)
	assert.True(t, res.Produced[0].Cost.Equal(d("2")))

	moved := f.quants(t, prodStd, locShelf2)
	require.Len(t, moved, 1)
	assert.True(t, moved[0].InDate.Equal(day(1)), "la fecha de entrada viaja con el quant")
	assert.Equal(t, m.ID, moved[0].ProducedByMovementID)
	assert.True(t, f.qtyAt(t, prodStd, locShelf1).Equal(d("2")))
	assert.True(t, f.qtyAt(t, prodStd, locStock).Equal(d("5")))
}

func TestComplete_AsignacionDeLotes(t *testing.T) {
	f := newFixture(t)
	m := f.move(t, inventory.CreateMovementInput{
		ProductID: prodStd, Quantity: d("5"), PriceUnit: d("1"), SourceLocationID: locSuppliers, DestLocationID: locStock,
	})
	_, err := f.engine.Reservations.Reserve(f.ctx, company, m.ID)
	require.NoError(t, err)

	_, err = f.engine.Reservations.Complete(f.ctx, inventory.CompleteRequest{
		CompanyID: company, MovementID: m.ID,
		LotAssignments: []inventory.LotAssignment{{LotID: "L1", Quantity: d("3")}},
	})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput), "los lotes deben sumar lo hecho")

	exp := day(30)
	res, err := f.engine.Reservations.Complete(f.ctx, inventory.CompleteRequest{
		CompanyID: company, MovementID: m.ID,
		LotAssignments: []inventory.LotAssignment{
			{LotID: "L1", Quantity: d("3"), ExpirationDate: &exp},
			{LotID: "L2", Quantity: d("2")},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Produced, 2)

	l1, err := f.engine.Quants.QuantityAt(f.ctx, prodStd, locStock, inventory.Filters{LotID: "L1"})
	require.NoError(t, err)
	assert.True(t, l1.Equal(d("3")))
	noLot, err := f.engine.Quants.QuantityAt(f.ctx, prodStd, locStock, inventory.Filters{WithoutLot: true})
	require.NoError(t, err)
	assert.True(t, noLot.IsZero())
}

// Conservación: el stock por ubicación coincide con la reproducción de los movimientos.
func TestConservacion(t *testing.T) {
	f := newFixture(t)
	expected := map[string]decimal.Decimal{locShelf1: decimal.Zero, locShelf2: decimal.Zero}
	apply := func(src, dst, qty string) {
		m := f.move(t, inventory.CreateMovementInput{
			ProductID: prodStd, Quantity: d(qty), PriceUnit: d("1"), SourceLocationID: src, DestLocationID: dst,
		})
		f.reserveAndComplete(t, m)
		if v, ok := expected[src]; ok {
			expected[src] = v.Sub(d(qty))
		}
		if v, ok := expected[dst]; ok {
			expected[dst] = v.Add(d(qty))
		}
	}

	apply(locSuppliers, locShelf1, "10")
	apply(locShelf1, locShelf2, "4")
	apply(locShelf2, locCustomers, "3")
	apply(locSuppliers, locShelf2, "2")
	apply(locShelf1, locCustomers, "1.5")

	for loc, want := range expected {
		assert.True(t, f.qtyAt(t, prodStd, loc).Equal(want), "%s: want %s got %s", loc, want, f.qtyAt(t, prodStd, loc))
	}
	assert.True(t, f.qtyAt(t, prodStd, locStock).Equal(expected[locShelf1].Add(expected[locShelf2])))
}

// reserveOnLock agrega la reserva de otro movimiento justo cuando se bloquea el quant,
// como si una reserva concurrente hubiera confirmado después de la selección.
type reserveOnLock struct {
	repository.QuantRepository
	reservations repository.ReservationRepository
	link         *entity.ReservationLink
	done         bool
}

func (r *reserveOnLock) GetForUpdate(ctx context.Context, id string) (*entity.Quant, error) {
	if !r.done && id == r.link.QuantID {
		r.done = true
		if err := r.reservations.Add(ctx, r.link); err != nil {
			return nil, err
		}
	}
	return r.QuantRepository.GetForUpdate(ctx, id)
}

type interleavedTx struct {
	store *memory.Store
	link  *entity.ReservationLink
}

func (tx interleavedTx) Run(ctx context.Context, fn func(repository.Repositories) error) error {
	return tx.store.Run(ctx, func(repos repository.Repositories) error {
		repos.Quants = &reserveOnLock{QuantRepository: repos.Quants, reservations: repos.Reservations, link: tx.link}
		return fn(repos)
	})
}

func TestComplete_RespetaReservaAjenaTardia(t *testing.T) {
	f := newFixture(t)
	quantID := f.deposit(t, prodStd, locStock, "5", "1", day(1))
	other := f.move(t, shipment("5"))
	m := f.move(t, shipment("5"))
	_, err := f.engine.Reservations.ForceAssign(f.ctx, company, m.ID)
	require.NoError(t, err)

	engine := inventory.NewEngine(interleavedTx{
		store: f.store,
		link:  &entity.ReservationLink{MovementID: other.ID, QuantID: quantID, Quantity: d("5"), CreatedAt: day(2)},
	}, f.catalog, inventory.DefaultOptions())

	_, err = engine.Reservations.Complete(f.ctx, inventory.CompleteRequest{CompanyID: company, MovementID: m.ID})
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock), "got %v", err)
	assert.True(t, f.qtyAt(t, prodStd, locStock).Equal(d("5")))
}
