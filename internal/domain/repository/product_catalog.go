package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// ProductCatalog colaborador externo de productos y unidades de medida (solo lectura).
// El motor nunca convierte unidades por su cuenta.
type ProductCatalog interface {
	GetProduct(ctx context.Context, productID string) (*entity.Product, error)
	// ToProductUoM convierte qty expresada en uomID a la unidad del producto.
	ToProductUoM(ctx context.Context, productID string, qty decimal.Decimal, uomID string) (decimal.Decimal, error)
}
