package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/shopspring/decimal"
)

var _ repository.ProductCatalog = (*ProductCatalog)(nil)

// ProductCatalog productos y unidades de medida. El motor solo lee; el seed escribe con los Upsert.
type ProductCatalog struct {
	q Querier
}

// NewProductCatalog construye el catálogo. Pasar pool o tx (Querier).
func NewProductCatalog(q Querier) *ProductCatalog {
	return &ProductCatalog{q: q}
}

// GetProduct obtiene un producto; nil si no existe.
func (c *ProductCatalog) GetProduct(ctx context.Context, productID string) (*entity.Product, error) {
	query := `
		SELECT id, company_id, sku, name, uom_id, rounding, cost_method, removal_strategy, tracking, created_at, updated_at
		FROM products WHERE id = $1`
	var p entity.Product
	err := c.q.QueryRow(ctx, query, productID).Scan(
		&p.ID, &p.CompanyID, &p.SKU, &p.Name, &p.UoMID, &p.Rounding, &p.CostMethod,
		&p.RemovalStrategy, &p.Tracking, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// ToProductUoM convierte qty de uomID a la unidad del producto.
func (c *ProductCatalog) ToProductUoM(ctx context.Context, productID string, qty decimal.Decimal, uomID string) (decimal.Decimal, error) {
	p, err := c.GetProduct(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	if p == nil {
		return decimal.Zero, fmt.Errorf("producto %s: %w", productID, domain.ErrNotFound)
	}
	if uomID == "" || uomID == p.UoMID {
		return qty, nil
	}
	from, err := c.uom(ctx, uomID)
	if err != nil {
		return decimal.Zero, err
	}
	to, err := c.uom(ctx, p.UoMID)
	if err != nil {
		return decimal.Zero, err
	}
	return from.Convert(qty, to)
}

func (c *ProductCatalog) uom(ctx context.Context, id string) (*entity.UoM, error) {
	var u entity.UoM
	err := c.q.QueryRow(ctx, `SELECT id, category_id, name, factor, rounding FROM uoms WHERE id = $1`, id).
		Scan(&u.ID, &u.CategoryID, &u.Name, &u.Factor, &u.Rounding)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("unidad %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get uom: %w", err)
	}
	return &u, nil
}

// UpsertUoM inserta o actualiza una unidad de medida.
func (c *ProductCatalog) UpsertUoM(ctx context.Context, u *entity.UoM) error {
	if u.ID == "" || !u.Factor.IsPositive() {
		return domain.ErrInvalidInput
	}
	query := `
		INSERT INTO uoms (id, category_id, name, factor, rounding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET category_id = EXCLUDED.category_id, name = EXCLUDED.name,
			factor = EXCLUDED.factor, rounding = EXCLUDED.rounding`
	if _, err := c.q.Exec(ctx, query, u.ID, u.CategoryID, u.Name, u.Factor, u.Rounding); err != nil {
		return fmt.Errorf("upsert uom: %w", err)
	}
	return nil
}

// UpsertProduct inserta o actualiza un producto. Sin método de costeo se usa estándar.
func (c *ProductCatalog) UpsertProduct(ctx context.Context, p *entity.Product) error {
	if p.ID == "" || p.UoMID == "" {
		return domain.ErrInvalidInput
	}
	if p.CostMethod == "" {
		p.CostMethod = entity.CostMethodStandard
	}
	if !p.CostMethod.IsValid() || (p.RemovalStrategy != "" && !p.RemovalStrategy.IsValid()) {
		return domain.ErrInvalidInput
	}
	if p.Tracking == "" {
		p.Tracking = entity.TrackingNone
	}
	query := `
		INSERT INTO products (id, company_id, sku, name, uom_id, rounding, cost_method, removal_strategy, tracking, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		ON CONFLICT (id) DO UPDATE SET company_id = EXCLUDED.company_id, sku = EXCLUDED.sku, name = EXCLUDED.name,
			uom_id = EXCLUDED.uom_id, rounding = EXCLUDED.rounding, cost_method = EXCLUDED.cost_method,
			removal_strategy = EXCLUDED.removal_strategy, tracking = EXCLUDED.tracking, updated_at = now()`
	_, err := c.q.Exec(ctx, query, p.ID, p.CompanyID, p.SKU, p.Name, p.UoMID, p.Rounding,
		p.CostMethod, p.RemovalStrategy, p.Tracking)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("producto %s: unidad %s: %w", p.ID, p.UoMID, domain.ErrInvalidInput)
		}
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}
