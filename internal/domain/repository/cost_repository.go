package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// CostRepository costo vigente por producto y empresa.
type CostRepository interface {
	// Get devuelve nil si el producto aún no tiene costo registrado.
	Get(ctx context.Context, companyID, productID string) (*entity.CostValuation, error)
	Upsert(ctx context.Context, c *entity.CostValuation) error
}
