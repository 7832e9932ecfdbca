package seed_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/application/seed"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureYAML = `
loss_location: LOSS
uoms:
  - {id: unit, category: u, name: Unidad, factor: 1, rounding: 0.01}
  - {id: dozen, category: u, name: Docena, factor: 12, rounding: 0.01}
products:
  - id: P1
    sku: TORN-01
    name: Tornillo
    uom: unit
    rounding: 0.01
    cost_method: standard
    standard_cost: "2.50"
  - {id: P2, sku: TUER-01, name: Tuerca, uom: unit, rounding: 1, cost_method: average}
locations:
  - {id: WH, name: Bodega, usage: view}
  - {id: STOCK, parent: WH, name: Stock, usage: internal}
  - {id: SHELF1, parent: STOCK, name: Estante 1, usage: internal, sequence: 1}
  - {id: LOSS, name: Pérdidas, usage: inventory, shared: true}
stock:
  - {product: P1, location: SHELF1, quantity: 10}
  - {product: P1, location: STOCK, lot: L1, quantity: 4}
`

func newLoader(t *testing.T) (*seed.Loader, *inventory.Engine) {
	t.Helper()
	store := memory.NewStore()
	catalog := memory.NewCatalog()
	engine := inventory.NewEngine(store, catalog, inventory.DefaultOptions())
	return seed.NewLoader(store, catalog, engine, zerolog.Nop()), engine
}

func TestDecode_UTF8(t *testing.T) {
	f, err := seed.Decode(strings.NewReader(fixtureYAML), "")
	require.NoError(t, err)
	assert.Equal(t, "LOSS", f.LossLocation)
	require.Len(t, f.Products, 2)
	require.NotNil(t, f.Products[0].StandardCost)
	assert.True(t, f.Products[0].StandardCost.Equal(decimal.RequireFromString("2.5")))
	assert.True(t, f.UoMs[1].Factor.Equal(decimal.NewFromInt(12)))
	assert.True(t, f.Locations[3].Shared)
}

func TestDecode_Latin1(t *testing.T) {
	// "Pérdidas" con é en ISO-8859-1 (0xE9).
	raw := []byte("locations:\n  - {id: LOSS, name: P\xe9rdidas, usage: inventory}\n")
	f, err := seed.Decode(bytes.NewReader(raw), "latin1")
	require.NoError(t, err)
	assert.Equal(t, "Pérdidas", f.Locations[0].Name)
}

func TestDecode_Errores(t *testing.T) {
	_, err := seed.Decode(strings.NewReader(fixtureYAML), "ebcdic")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = seed.Decode(strings.NewReader("productos: []\n"), "")
	assert.Error(t, err, "campos desconocidos se rechazan")
}

func TestLoad_EsRepetible(t *testing.T) {
	ctx := context.Background()
	loader, engine := newLoader(t)
	f, err := seed.Decode(strings.NewReader(fixtureYAML), "")
	require.NoError(t, err)

	sum, err := loader.Load(ctx, "C1", "U1", f)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.UoMs)
	assert.Equal(t, 2, sum.Products)
	assert.Equal(t, 4, sum.LocationsCreated)
	assert.NotEmpty(t, sum.AdjustmentID)

	qty, err := engine.Quants.QuantityAt(ctx, "P1", "WH", inventory.Filters{CompanyID: "C1"})
	require.NoError(t, err)
	assert.True(t, qty.Equal(decimal.NewFromInt(14)), "got %s", qty)

	cost, err := engine.Valuation.CurrentCost(ctx, "C1", "P1")
	require.NoError(t, err)
	assert.True(t, cost.Equal(decimal.RequireFromString("2.5")), "got %s", cost)

	// Segunda carga: ubicaciones omitidas y stock sin duplicar.
	sum, err = loader.Load(ctx, "C1", "U1", f)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.LocationsCreated)
	assert.Equal(t, 4, sum.LocationsSkipped)

	qty, err = engine.Quants.QuantityAt(ctx, "P1", "WH", inventory.Filters{CompanyID: "C1"})
	require.NoError(t, err)
	assert.True(t, qty.Equal(decimal.NewFromInt(14)), "got %s", qty)

	adj, err := engine.Adjustments.Get(ctx, "C1", sum.AdjustmentID)
	require.NoError(t, err)
	for _, l := range adj.Lines {
		assert.True(t, l.Diff.IsZero())
	}
}

func TestLoad_SinEmpresa(t *testing.T) {
	loader, _ := newLoader(t)
	_, err := loader.Load(context.Background(), "", "U1", &seed.Fixture{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
