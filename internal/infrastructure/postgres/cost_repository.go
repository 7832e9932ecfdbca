package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.CostRepository = (*CostRepo)(nil)

// CostRepo costo vigente por empresa y producto.
type CostRepo struct {
	q Querier
}

// NewCostRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCostRepository(q Querier) *CostRepo {
	return &CostRepo{q: q}
}

// Get devuelve nil si no hay costo registrado.
func (r *CostRepo) Get(ctx context.Context, companyID, productID string) (*entity.CostValuation, error) {
	query := `
		SELECT company_id, product_id, method, cost, updated_at
		FROM cost_valuations WHERE company_id = $1 AND product_id = $2`
	var c entity.CostValuation
	err := r.q.QueryRow(ctx, query, companyID, productID).Scan(&c.CompanyID, &c.ProductID, &c.Method, &c.Cost, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cost: %w", err)
	}
	return &c, nil
}

// Upsert inserta o reemplaza el costo vigente.
func (r *CostRepo) Upsert(ctx context.Context, c *entity.CostValuation) error {
	query := `
		INSERT INTO cost_valuations (company_id, product_id, method, cost, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (company_id, product_id)
		DO UPDATE SET method = EXCLUDED.method, cost = EXCLUDED.cost, updated_at = EXCLUDED.updated_at`
	if _, err := r.q.Exec(ctx, query, c.CompanyID, c.ProductID, c.Method, c.Cost, c.UpdatedAt); err != nil {
		return fmt.Errorf("upsert cost: %w", err)
	}
	return nil
}
