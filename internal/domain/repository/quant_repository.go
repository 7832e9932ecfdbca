package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/location"
	"github.com/shopspring/decimal"
)

// QuantSign filtra quants por signo de la cantidad.
type QuantSign int

const (
	SignAny QuantSign = iota
	SignPositive
	SignNegative
)

// QuantQuery consulta tipada sobre el índice de quants.
// Lot/Package/Owner: nil = cualquiera; puntero a "" = sin lote/paquete/propietario.
// Subtree tiene prioridad sobre LocationID.
type QuantQuery struct {
	ProductID    string
	CompanyID    string
	LocationID   string
	Subtree      *location.Interval
	LotID        *string
	PackageID    *string
	OwnerID      *string
	Sign         QuantSign
	InternalOnly bool // solo ubicaciones que guardan stock
}

// QuantRepository puerto de persistencia de quants. Solo el QuantStore de la aplicación lo muta.
type QuantRepository interface {
	Create(ctx context.Context, q *entity.Quant) error
	GetByID(ctx context.Context, id string) (*entity.Quant, error)
	// GetForUpdate bloquea la fila (SELECT FOR UPDATE).
	GetForUpdate(ctx context.Context, id string) (*entity.Quant, error)
	Update(ctx context.Context, q *entity.Quant) error
	Delete(ctx context.Context, id string) error
	Find(ctx context.Context, q QuantQuery) ([]*entity.Quant, error)
	Sum(ctx context.Context, q QuantQuery) (decimal.Decimal, error)
	// Decrement resta qty de forma atómica; sin allowNegative falla con ErrInsufficientStock
	// si el resultado quedaría negativo. Devuelve el quant actualizado.
	Decrement(ctx context.Context, id string, qty decimal.Decimal, allowNegative bool) (*entity.Quant, error)
	// ProductsWithNegatives productos con algún quant negativo dentro del subárbol.
	ProductsWithNegatives(ctx context.Context, companyID string, subtree location.Interval) ([]string, error)
}
