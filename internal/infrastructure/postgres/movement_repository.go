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

var _ repository.MovementRepository = (*MovementRepo)(nil)

const movementColumns = `id, company_id, product_id, uom_id, quantity, product_qty,
	source_location_id, dest_location_id, lot_id, package_id, owner_id, strict, state,
	price_unit, origin_movement_ids, reconciles_quant_id, quantity_done, backorder_of_id,
	reference, date, done_at, created_at, updated_at, created_by`

// MovementRepo implementación de MovementRepository sobre PostgreSQL (usable con pool o tx).
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

// Create persiste un movimiento.
func (r *MovementRepo) Create(ctx context.Context, m *entity.Movement) error {
	query := `
		INSERT INTO movements (` + movementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.CompanyID, m.ProductID, m.UoMID, m.Quantity, m.ProductQty,
		m.SourceLocationID, m.DestLocationID, m.LotID, m.PackageID, m.OwnerID, m.Strict, m.State,
		m.PriceUnit, origins(m.OriginMovementIDs), m.ReconcilesQuantID, m.QuantityDone, m.BackorderOfID,
		m.Reference, m.Date, m.DoneAt, m.CreatedAt, m.UpdatedAt, m.CreatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("movimiento %s: %w", m.ID, domain.ErrConflict)
		}
		return fmt.Errorf("create movement: %w", err)
	}
	return nil
}

// GetByID obtiene un movimiento; nil si no existe.
func (r *MovementRepo) GetByID(ctx context.Context, id string) (*entity.Movement, error) {
	return r.getOne(ctx, `SELECT `+movementColumns+` FROM movements WHERE id = $1`, id)
}

// GetForUpdate obtiene el movimiento y bloquea la fila (SELECT FOR UPDATE).
func (r *MovementRepo) GetForUpdate(ctx context.Context, id string) (*entity.Movement, error) {
	return r.getOne(ctx, `SELECT `+movementColumns+` FROM movements WHERE id = $1 FOR UPDATE`, id)
}

func (r *MovementRepo) getOne(ctx context.Context, query, id string) (*entity.Movement, error) {
	m, err := scanMovement(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get movement: %w", err)
	}
	return m, nil
}

// Update reescribe estado, cantidades, precio y trazas de cierre.
func (r *MovementRepo) Update(ctx context.Context, m *entity.Movement) error {
	query := `
		UPDATE movements SET quantity = $2, product_qty = $3, state = $4, price_unit = $5,
			quantity_done = $6, reference = $7, done_at = $8, updated_at = $9
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		m.ID, m.Quantity, m.ProductQty, m.State, m.PriceUnit, m.QuantityDone, m.Reference, m.DoneAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update movement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("movimiento %s: %w", m.ID, domain.ErrNotFound)
	}
	return nil
}

// ListByProduct movimientos del producto por fecha; states vacío = todos.
func (r *MovementRepo) ListByProduct(ctx context.Context, companyID, productID string, states []entity.MovementState) ([]*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements WHERE company_id = $1 AND product_id = $2`
	args := []any{companyID, productID}
	if len(states) > 0 {
		names := make([]string, len(states))
		for i, s := range states {
			names[i] = string(s)
		}
		query += ` AND state = ANY($3)`
		args = append(args, names)
	}
	query += ` ORDER BY date, id`

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()
	var list []*entity.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func scanMovement(row pgx.Row) (*entity.Movement, error) {
	var m entity.Movement
	err := row.Scan(
		&m.ID, &m.CompanyID, &m.ProductID, &m.UoMID, &m.Quantity, &m.ProductQty,
		&m.SourceLocationID, &m.DestLocationID, &m.LotID, &m.PackageID, &m.OwnerID, &m.Strict, &m.State,
		&m.PriceUnit, &m.OriginMovementIDs, &m.ReconcilesQuantID, &m.QuantityDone, &m.BackorderOfID,
		&m.Reference, &m.Date, &m.DoneAt, &m.CreatedAt, &m.UpdatedAt, &m.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// origins evita NULL en la columna text[].
func origins(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
