package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.AdjustmentRepository = (*AdjustmentRepo)(nil)

// AdjustmentRepo ajustes de inventario y sus líneas.
type AdjustmentRepo struct {
	q Querier
}

// NewAdjustmentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAdjustmentRepository(q Querier) *AdjustmentRepo {
	return &AdjustmentRepo{q: q}
}

// Create persiste cabecera y líneas; debe llamarse dentro de una tx.
func (r *AdjustmentRepo) Create(ctx context.Context, a *entity.Adjustment) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO adjustments (id, company_id, loss_location_id, date, created_by)
		VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.CompanyID, a.LossLocationID, a.Date, a.CreatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("ajuste %s: %w", a.ID, domain.ErrConflict)
		}
		return fmt.Errorf("create adjustment: %w", err)
	}
	for i, l := range a.Lines {
		_, err := r.q.Exec(ctx, `
			INSERT INTO adjustment_lines (adjustment_id, line_no, product_id, location_id, lot_id, package_id, owner_id,
				theoretical, counted, diff, movement_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			a.ID, i+1, l.ProductID, l.LocationID, l.LotID, l.PackageID, l.OwnerID,
			l.Theoretical, l.Counted, l.Diff, nullString(l.MovementID),
		)
		if err != nil {
			return fmt.Errorf("create adjustment line: %w", err)
		}
	}
	return nil
}

// GetByID obtiene el ajuste con sus líneas en orden; nil si no existe.
func (r *AdjustmentRepo) GetByID(ctx context.Context, id string) (*entity.Adjustment, error) {
	var a entity.Adjustment
	err := r.q.QueryRow(ctx, `
		SELECT id, company_id, loss_location_id, date, created_by
		FROM adjustments WHERE id = $1`, id,
	).Scan(&a.ID, &a.CompanyID, &a.LossLocationID, &a.Date, &a.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get adjustment: %w", err)
	}

	rows, err := r.q.Query(ctx, `
		SELECT product_id, location_id, lot_id, package_id, owner_id, theoretical, counted, diff, movement_id
		FROM adjustment_lines WHERE adjustment_id = $1 ORDER BY line_no`, id)
	if err != nil {
		return nil, fmt.Errorf("list adjustment lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		l := entity.AdjustmentLine{QuantKey: entity.QuantKey{CompanyID: a.CompanyID}}
		var movementID *string
		if err := rows.Scan(&l.ProductID, &l.LocationID, &l.LotID, &l.PackageID, &l.OwnerID,
			&l.Theoretical, &l.Counted, &l.Diff, &movementID); err != nil {
			return nil, fmt.Errorf("scan adjustment line: %w", err)
		}
		l.MovementID = derefString(movementID)
		a.Lines = append(a.Lines, l)
	}
	return &a, rows.Err()
}
