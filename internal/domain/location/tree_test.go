package location_test

import (
	"errors"
	"testing"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/location"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildLocations árbol de prueba:
//
//	WH ─┬─ STOCK ─┬─ A (seq 2)
//	    │         └─ B (seq 1)
//	    └─ OUT
//	CUSTOMERS
func buildLocations() []*entity.Location {
	return []*entity.Location{
		{ID: "WH", Name: "WH", Usage: entity.LocationUsageView, RemovalStrategy: entity.RemovalLIFO},
		{ID: "STOCK", ParentID: "WH", Name: "Stock", Usage: entity.LocationUsageInternal},
		{ID: "A", ParentID: "STOCK", Name: "A", Usage: entity.LocationUsageInternal, Sequence: 2},
		{ID: "B", ParentID: "STOCK", Name: "B", Usage: entity.LocationUsageInternal, Sequence: 1, RemovalStrategy: entity.RemovalFIFO},
		{ID: "OUT", ParentID: "WH", Name: "Out", Usage: entity.LocationUsageInternal, Sequence: 5},
		{ID: "CUSTOMERS", Name: "Customers", Usage: entity.LocationUsageCustomer},
	}
}

func TestNewTree_Intervalos(t *testing.T) {
	tree, err := location.NewTree(buildLocations())
	require.NoError(t, err)
	assert.Equal(t, 6, tree.Len())

	assert.True(t, tree.IsDescendant("A", "WH"))
	assert.True(t, tree.IsDescendant("A", "STOCK"))
	assert.True(t, tree.IsDescendant("STOCK", "STOCK"), "el subárbol incluye la raíz")
	assert.False(t, tree.IsDescendant("OUT", "STOCK"))
	assert.False(t, tree.IsDescendant("CUSTOMERS", "WH"))
	assert.False(t, tree.IsDescendant("X", "WH"))

	wh, _ := tree.Interval("WH")
	a, _ := tree.Interval("A")
	assert.True(t, wh.Contains(a))
	assert.Less(t, a.Left, a.Right)
}

func TestNewTree_DescendientesEnOrdenDeSecuencia(t *testing.T) {
	tree, err := location.NewTree(buildLocations())
	require.NoError(t, err)

	assert.Equal(t, []string{"STOCK", "B", "A"}, tree.Descendants("STOCK"))
	assert.Equal(t, []string{"WH", "STOCK", "B", "A", "OUT"}, tree.Descendants("WH"))
	assert.Nil(t, tree.Descendants("NOPE"))
}

func TestNewTree_EstrategiaHeredada(t *testing.T) {
	tree, err := location.NewTree(buildLocations())
	require.NoError(t, err)

	assert.Equal(t, entity.RemovalFIFO, tree.RemovalStrategy("B"))
	assert.Equal(t, entity.RemovalLIFO, tree.RemovalStrategy("A"), "A hereda de WH")
	assert.Equal(t, entity.RemovalStrategy(""), tree.RemovalStrategy("CUSTOMERS"))
}

func TestNewTree_Errores(t *testing.T) {
	cases := map[string][]*entity.Location{
		"padre inexistente": {{ID: "A", ParentID: "Z"}},
		"duplicado":         {{ID: "A"}, {ID: "A"}},
		"sin id":            {{ID: ""}},
		"ciclo":             {{ID: "A", ParentID: "B"}, {ID: "B", ParentID: "A"}},
	}
	for name, locs := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := location.NewTree(locs)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		})
	}
}
