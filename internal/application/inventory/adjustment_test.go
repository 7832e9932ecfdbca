package inventory_test

import (
	"errors"
	"testing"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countLine(product, loc, counted string) inventory.CountedLine {
	return inventory.CountedLine{
		Key:     entity.QuantKey{ProductID: product, LocationID: loc},
		Counted: d(counted),
	}
}

func TestApplyCount_FaltanteVaAPerdidas(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, prodStd, locStock, "12", "1", day(1))

	adj, err := f.engine.Adjustments.ApplyCount(f.ctx, inventory.ApplyCountRequest{
		CompanyID: company,
		UserID:    "U1",
		Lines:     []inventory.CountedLine{countLine(prodStd, locStock, "10")},
	})
	require.NoError(t, err)
	require.Len(t, adj.Lines, 1)
	line := adj.Lines[0]
	assert.True(t, line.Theoretical.Equal(d("12")))
	assert.True(t, line.Diff.Equal(d("2")))
	require.NotEmpty(t, line.MovementID)

	m, err := f.engine.Reservations.Get(f.ctx, company, line.MovementID)
	require.NoError(t, err)
	assert.Equal(t, locStock, m.SourceLocationID)
	assert.Equal(t, locLoss, m.DestLocationID)
	assert.True(t, m.ProductQty.Equal(d("2")))
	assert.Equal(t, entity.MovementStateDone, m.State)
	assert.True(t, f.qtyAt(t, prodStd, locStock).Equal(d("10")))

	stored, err := f.engine.Adjustments.Get(f.ctx, company, adj.ID)
	require.NoError(t, err)
	assert.Equal(t, locLoss, stored.LossLocationID)
	assert.Len(t, stored.Lines, 1)

	_, err = f.engine.Adjustments.Get(f.ctx, "C2", adj.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestApplyCount_SobranteVieneDePerdidas(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Valuation.SetStandardCost(f.ctx, company, prodStd, d("2")))
	f.deposit(t, prodStd, locStock, "10", "2", day(1))

	adj, err := f.engine.Adjustments.ApplyCount(f.ctx, inventory.ApplyCountRequest{
		CompanyID: company,
		Lines:     []inventory.CountedLine{countLine(prodStd, locStock, "15")},
	})
	require.NoError(t, err)
	line := adj.Lines[0]
	assert.True(t, line.Diff.Equal(d("-5")))

	m, err := f.engine.Reservations.Get(f.ctx, company, line.MovementID)
	require.NoError(t, err)
	assert.Equal(t, locLoss, m.SourceLocationID)
	assert.Equal(t, locStock, m.DestLocationID)
	assert.True(t, m.PriceUnit.Equal(d("2")), "entra al costo vigente")
	assert.True(t, f.qtyAt(t, prodStd, locStock).Equal(d("15")))
}

func TestApplyCount_SinDiferenciaNoGeneraMovimiento(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, prodStd, locStock, "4", "1", day(1))

	adj, err := f.engine.Adjustments.ApplyCount(f.ctx, inventory.ApplyCountRequest{
		CompanyID: company,
		Lines:     []inventory.CountedLine{countLine(prodStd, locStock, "4")},
	})
	require.NoError(t, err)
	assert.True(t, adj.Lines[0].Diff.IsZero())
	assert.Empty(t, adj.Lines[0].MovementID)
}

func TestApplyCount_SoloTocaLaClaveExacta(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, prodStd, locStock, "3", "1", day(1))
	f.deposit(t, prodStd, locShelf1, "7", "1", day(1))
	require.NoError(t, f.store.Run(f.ctx, func(repos repository.Repositories) error {
		_, err := f.engine.Quants.Deposit(f.ctx, repos, inventory.DepositRequest{
			Key:      entity.QuantKey{ProductID: prodStd, LocationID: locStock, LotID: "L1", CompanyID: company},
			Quantity: d("5"),
			Cost:     d("1"),
			InDate:   day(2),
		})
		return err
	}))

	_, err := f.engine.Adjustments.ApplyCount(f.ctx, inventory.ApplyCountRequest{
		CompanyID: company,
		Lines:     []inventory.CountedLine{countLine(prodStd, locStock, "0")},
	})
	require.NoError(t, err)

	// Solo desaparece el quant sin lote de STOCK; el lote y el hijo quedan intactos.
	assert.True(t, f.qtyAt(t, prodStd, locShelf1).Equal(d("7")))
	assert.True(t, f.qtyAt(t, prodStd, locStock).Equal(d("12")))
	qs := f.quants(t, prodStd, locStock)
	for _, q := range qs {
		if q.LocationID == locStock {
			assert.Equal(t, "L1", q.LotID)
		}
	}
}

func TestApplyCount_Errores(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, prodStd, locStock, "5", "1", day(1))

	_, err := f.engine.Adjustments.ApplyCount(f.ctx, inventory.ApplyCountRequest{
		CompanyID: company,
		Lines:     []inventory.CountedLine{countLine(prodStd, locStock, "-1")},
	})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput), "conteo negativo")

	_, err = f.engine.Adjustments.ApplyCount(f.ctx, inventory.ApplyCountRequest{
		CompanyID:      company,
		LossLocationID: locCustomers,
		Lines:          []inventory.CountedLine{countLine(prodStd, locStock, "1")},
	})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput), "pérdidas debe ser de uso inventario")

	_, err = f.engine.Adjustments.ApplyCount(f.ctx, inventory.ApplyCountRequest{CompanyID: company})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput), "sin líneas")

	assert.True(t, f.qtyAt(t, prodStd, locStock).Equal(d("5")))
}

func TestApplyCount_NoConsumeReservasAjenas(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, prodStd, locStock, "5", "1", day(1))
	m := f.move(t, inventory.CreateMovementInput{
		ProductID: prodStd, Quantity: d("4"), SourceLocationID: locStock, DestLocationID: locCustomers,
	})
	_, err := f.engine.Reservations.Reserve(f.ctx, company, m.ID)
	require.NoError(t, err)

	_, err = f.engine.Adjustments.ApplyCount(f.ctx, inventory.ApplyCountRequest{
		CompanyID: company,
		Lines:     []inventory.CountedLine{countLine(prodStd, locStock, "2")},
	})
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))
	assert.True(t, f.qtyAt(t, prodStd, locStock).Equal(d("5")), "el ajuste completo se revierte")

	links, err := f.engine.Reservations.Links(f.ctx, company, m.ID)
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestComputeTheoretical(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, prodStd, locShelf1, "4", "1", day(1))
	f.deposit(t, prodStd, locShelf1, "1", "2", day(2))
	f.deposit(t, prodAvg, locShelf2, "6", "1", day(1))

	lines, err := f.engine.Adjustments.ComputeTheoretical(f.ctx, company, locStock, "", inventory.Filters{})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, prodAvg, lines[0].Key.ProductID)
	assert.True(t, lines[0].Quantity.Equal(d("6")))
	assert.Equal(t, prodStd, lines[1].Key.ProductID)
	assert.Equal(t, locShelf1, lines[1].Key.LocationID)
	assert.True(t, lines[1].Quantity.Equal(d("5")), "quants de igual clave se agrupan")

	lines, err = f.engine.Adjustments.ComputeTheoretical(f.ctx, company, locShelf2, prodStd, inventory.Filters{})
	require.NoError(t, err)
	assert.Empty(t, lines)

	_, err = f.engine.Adjustments.ComputeTheoretical(f.ctx, company, "NOPE", "", inventory.Filters{})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestApplyCount_ConteoCompensaNegativos(t *testing.T) {
	f := newFixture(t)
	overdrawShipment(t, f, prodStd, "5")
	require.True(t, f.qtyAt(t, prodStd, locStock).Equal(d("-5")))

	adj, err := f.engine.Adjustments.ApplyCount(f.ctx, inventory.ApplyCountRequest{
		CompanyID: company,
		Lines:     []inventory.CountedLine{countLine(prodStd, locStock, "0")},
	})
	require.NoError(t, err)
	assert.True(t, adj.Lines[0].Diff.Equal(d("-5")))
	assert.True(t, f.qtyAt(t, prodStd, locStock).IsZero())
	assert.Empty(t, f.quants(t, prodStd, locStock), "ni el negativo ni un positivo suelto")

	// Nada físico que reservar: la salida sin permiso de negativos falla.
	m := f.move(t, shipment("5"))
	res, err := f.engine.Reservations.Reserve(f.ctx, company, m.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.AssignmentNone, res.Status)

	_, err = f.engine.Reservations.ForceAssign(f.ctx, company, m.ID)
	require.NoError(t, err)
	_, err = f.engine.Reservations.Complete(f.ctx, inventory.CompleteRequest{CompanyID: company, MovementID: m.ID})
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))
	assert.True(t, f.qtyAt(t, prodStd, locStock).IsZero())
}

func TestApplyCount_SinDiferenciaCompensaNegativos(t *testing.T) {
	f := newFixture(t)
	overdrawShipment(t, f, prodStd, "5")
	f.deposit(t, prodStd, locStock, "5", "1", day(1))
	require.Len(t, f.quants(t, prodStd, locStock), 2)

	adj, err := f.engine.Adjustments.ApplyCount(f.ctx, inventory.ApplyCountRequest{
		CompanyID: company,
		Lines:     []inventory.CountedLine{countLine(prodStd, locStock, "0")},
	})
	require.NoError(t, err)
	assert.True(t, adj.Lines[0].Diff.IsZero())
	assert.Empty(t, adj.Lines[0].MovementID)
	assert.Empty(t, f.quants(t, prodStd, locStock))
}

func TestApplyCount_SalidaConNegativoPendiente(t *testing.T) {
	f := newFixture(t)
	overdrawShipment(t, f, prodStd, "2")
	f.deposit(t, prodStd, locStock, "10", "1", day(1))

	// teórico 8, contado 3: salen 5 y el negativo se compensa con lo que queda.
	_, err := f.engine.Adjustments.ApplyCount(f.ctx, inventory.ApplyCountRequest{
		CompanyID: company,
		Lines:     []inventory.CountedLine{countLine(prodStd, locStock, "3")},
	})
	require.NoError(t, err)
	qs := f.quants(t, prodStd, locStock)
	require.Len(t, qs, 1)
	assert.True(t, qs[0].Quantity.Equal(d("3")))
}
