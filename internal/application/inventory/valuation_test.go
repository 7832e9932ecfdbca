package inventory_test

import (
	"errors"
	"testing"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValuation_Promedio(t *testing.T) {
	f := newFixture(t)

	f.receive(t, prodAvg, locStock, "10", "2.00")
	f.receive(t, prodAvg, locStock, "10", "4.00")
	cost, err := f.engine.Valuation.CurrentCost(f.ctx, company, prodAvg)
	require.NoError(t, err)
	assert.True(t, cost.Equal(d("3.00")), "got %s", cost)

	res := f.receive(t, prodAvg, locStock, "5", "1.00")
	cost, err = f.engine.Valuation.CurrentCost(f.ctx, company, prodAvg)
	require.NoError(t, err)
	assert.True(t, cost.Equal(d("2.60")), "got %s", cost)
	assert.True(t, res.PriceUnit.Equal(d("2.60")))
	require.Len(t, res.Produced, 1)
	assert.True(t, res.Produced[0].Cost.Equal(d("2.60")), "el costo recalculado se escribe en el quant depositado")
}

func TestValuation_PromedioDenominadorDegenerado(t *testing.T) {
	f := newFixture(t)
	out := f.move(t, inventory.CreateMovementInput{
		ProductID: prodAvg, Quantity: d("10"), SourceLocationID: locStock, DestLocationID: locCustomers,
	})
	_, err := f.engine.Reservations.ForceAssign(f.ctx, company, out.ID)
	require.NoError(t, err)
	_, err = f.engine.Reservations.Complete(f.ctx, inventory.CompleteRequest{CompanyID: company, MovementID: out.ID, AllowNegative: true})
	require.NoError(t, err)

	// -10 en mano + 5 entrantes: denominador negativo, se usa el precio de entrada.
	f.receive(t, prodAvg, locStock, "5", "7")
	cost, err := f.engine.Valuation.CurrentCost(f.ctx, company, prodAvg)
	require.NoError(t, err)
	assert.True(t, cost.Equal(d("7")))
	assert.Equal(t, 1, f.metrics.fallbacks)
}

func TestValuation_Estandar(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Valuation.SetStandardCost(f.ctx, company, prodStd, d("1.234")))
	cost, err := f.engine.Valuation.CurrentCost(f.ctx, company, prodStd)
	require.NoError(t, err)
	assert.True(t, cost.Equal(d("1.23")), "redondeo a la precisión de la moneda")

	// Entrada con precio: el quant guarda el precio pero el costo vigente no cambia.
	res := f.receive(t, prodStd, locStock, "4", "5")
	assert.True(t, res.Produced[0].Cost.Equal(d("5")))
	cost, err = f.engine.Valuation.CurrentCost(f.ctx, company, prodStd)
	require.NoError(t, err)
	assert.True(t, cost.Equal(d("1.23")))

	// Entrada sin precio: usa el costo vigente.
	res = f.receive(t, prodStd, locStock, "1", "0")
	assert.True(t, res.Produced[0].Cost.Equal(d("1.23")))

	err = f.engine.Valuation.SetStandardCost(f.ctx, company, prodStd, d("-1"))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestValuation_RealPrecioDeSalida(t *testing.T) {
	f := newFixture(t)
	f.receive(t, prodReal, locStock, "5", "2")
	f.receive(t, prodReal, locStock, "5", "4")

	cost, err := f.engine.Valuation.CurrentCost(f.ctx, company, prodReal)
	require.NoError(t, err)
	assert.True(t, cost.Equal(d("3")), "promedio de los lotes en mano")

	m := f.move(t, inventory.CreateMovementInput{
		ProductID: prodReal, Quantity: d("7"), SourceLocationID: locStock, DestLocationID: locCustomers,
	})
	res := f.reserveAndComplete(t, m)
	// (5*2 + 2*4) / 7 = 2.5714...
	assert.True(t, res.PriceUnit.Equal(d("2.57")), "got %s", res.PriceUnit)
	assert.True(t, res.Movement.PriceUnit.Equal(d("2.57")))

	cost, err = f.engine.Valuation.CurrentCost(f.ctx, company, prodReal)
	require.NoError(t, err)
	assert.True(t, cost.Equal(d("4")), "solo queda el lote de 4")
}

func TestValuation_Reporte(t *testing.T) {
	f := newFixture(t)
	f.receive(t, prodReal, locShelf1, "5", "2")
	f.receive(t, prodReal, locShelf2, "5", "4")
	f.receive(t, prodStd, locShelf1, "2", "1.5")

	report, err := f.engine.Valuation.Valuation(f.ctx, company, locStock)
	require.NoError(t, err)
	require.Len(t, report, 2)

	byProduct := map[string]entity.ProductValuation{}
	for _, pv := range report {
		byProduct[pv.ProductID] = pv
	}
	assert.True(t, byProduct[prodReal].Quantity.Equal(d("10")))
	assert.True(t, byProduct[prodReal].Value.Equal(d("30")))
	assert.Equal(t, entity.CostMethodReal, byProduct[prodReal].Method)
	assert.True(t, byProduct[prodStd].Value.Equal(d("3")))

	shelf, err := f.engine.Valuation.Valuation(f.ctx, company, locShelf2)
	require.NoError(t, err)
	require.Len(t, shelf, 1)
	assert.True(t, shelf[0].Value.Equal(d("20")))
}

func TestValuation_RealTransferenciaInternaConservaPrecio(t *testing.T) {
	f := newFixture(t)
	f.receive(t, prodReal, locShelf1, "5", "2")
	f.receive(t, prodReal, locShelf1, "5", "4")

	m := f.move(t, inventory.CreateMovementInput{
		ProductID: prodReal, Quantity: d("3"), SourceLocationID: locShelf1, DestLocationID: locShelf2,
	})
	res := f.reserveAndComplete(t, m)
	require.Len(t, res.Produced, 1)
	assert.True(t, res.Produced[0].Cost.Equal(d("2")), "el lote viaja con su costo")
	// Entre ubicaciones internas el precio es el vigente, no el de lo consumido.
	assert.True(t, res.PriceUnit.Equal(d("4")), "got %s", res.PriceUnit)

	out := f.move(t, inventory.CreateMovementInput{
		ProductID: prodReal, Quantity: d("3"), SourceLocationID: locShelf2, DestLocationID: locCustomers,
	})
	res = f.reserveAndComplete(t, out)
	assert.True(t, res.PriceUnit.Equal(d("2")), "la salida usa el costo de los lotes: got %s", res.PriceUnit)
}
