package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/location"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/shopspring/decimal"
)

var _ repository.QuantRepository = (*QuantRepo)(nil)

const quantColumns = `q.id, q.product_id, q.location_id, q.lot_id, q.package_id, q.owner_id, q.company_id,
	q.quantity, q.cost, q.in_date, q.expiration_date,
	q.produced_by_movement_id, q.negative_from_movement_id, q.reconciles_with, q.created_at, q.updated_at`

// QuantRepo implementación de QuantRepository sobre PostgreSQL (usable con pool o tx).
type QuantRepo struct {
	q Querier
}

// NewQuantRepository construye el adaptador de quants. Pasar pool o tx (Querier).
func NewQuantRepository(q Querier) *QuantRepo {
	return &QuantRepo{q: q}
}

// Create persiste un quant nuevo.
func (r *QuantRepo) Create(ctx context.Context, q *entity.Quant) error {
	query := `
		INSERT INTO quants (id, product_id, location_id, lot_id, package_id, owner_id, company_id,
			quantity, cost, in_date, expiration_date,
			produced_by_movement_id, negative_from_movement_id, reconciles_with, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.q.Exec(ctx, query,
		q.ID, q.ProductID, q.LocationID, q.LotID, q.PackageID, q.OwnerID, q.CompanyID,
		q.Quantity, q.Cost, q.InDate, q.ExpirationDate,
		q.ProducedByMovementID, q.NegativeFromMovementID, q.ReconcilesWith, q.CreatedAt, q.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("quant %s: %w", q.ID, domain.ErrConflict)
		}
		return fmt.Errorf("create quant: %w", err)
	}
	return nil
}

// GetByID obtiene un quant; nil si no existe.
func (r *QuantRepo) GetByID(ctx context.Context, id string) (*entity.Quant, error) {
	return r.getOne(ctx, `SELECT `+quantColumns+` FROM quants q WHERE q.id = $1`, id)
}

// GetForUpdate obtiene el quant y bloquea la fila hasta el fin de la transacción.
func (r *QuantRepo) GetForUpdate(ctx context.Context, id string) (*entity.Quant, error) {
	return r.getOne(ctx, `SELECT `+quantColumns+` FROM quants q WHERE q.id = $1 FOR UPDATE`, id)
}

func (r *QuantRepo) getOne(ctx context.Context, query, id string) (*entity.Quant, error) {
	q, err := scanQuant(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get quant: %w", err)
	}
	return q, nil
}

// Update reescribe todos los campos mutables del quant.
func (r *QuantRepo) Update(ctx context.Context, q *entity.Quant) error {
	query := `
		UPDATE quants SET location_id = $2, lot_id = $3, package_id = $4, owner_id = $5,
			quantity = $6, cost = $7, in_date = $8, expiration_date = $9,
			produced_by_movement_id = $10, negative_from_movement_id = $11, reconciles_with = $12, updated_at = $13
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		q.ID, q.LocationID, q.LotID, q.PackageID, q.OwnerID,
		q.Quantity, q.Cost, q.InDate, q.ExpirationDate,
		q.ProducedByMovementID, q.NegativeFromMovementID, q.ReconcilesWith, q.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update quant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("quant %s: %w", q.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete elimina el quant; los vínculos de reserva caen por ON DELETE CASCADE.
func (r *QuantRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM quants WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete quant: %w", err)
	}
	return nil
}

// Find quants que cumplen la consulta, en orden de entrada (in_date, id).
func (r *QuantRepo) Find(ctx context.Context, query repository.QuantQuery) ([]*entity.Quant, error) {
	where, args := quantWhere(query)
	sql := `SELECT ` + quantColumns + ` FROM quants q JOIN locations l ON l.id = q.location_id` + where +
		` ORDER BY q.in_date, q.id`
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("find quants: %w", err)
	}
	defer rows.Close()
	var list []*entity.Quant
	for rows.Next() {
		q, err := scanQuant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quant: %w", err)
		}
		list = append(list, q)
	}
	return list, rows.Err()
}

// Sum suma de cantidades que cumplen la consulta (cero si no hay filas).
func (r *QuantRepo) Sum(ctx context.Context, query repository.QuantQuery) (decimal.Decimal, error) {
	where, args := quantWhere(query)
	sql := `SELECT COALESCE(SUM(q.quantity), 0) FROM quants q JOIN locations l ON l.id = q.location_id` + where
	var total decimal.Decimal
	if err := r.q.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum quants: %w", err)
	}
	return total, nil
}

// Decrement resta de forma condicional en una sola sentencia; sin filas afectadas distingue
// entre quant inexistente y stock insuficiente.
func (r *QuantRepo) Decrement(ctx context.Context, id string, qty decimal.Decimal, allowNegative bool) (*entity.Quant, error) {
	query := `
		UPDATE quants q SET quantity = q.quantity - $2, updated_at = now()
		WHERE q.id = $1 AND (q.quantity - $2 >= 0 OR $3)
		RETURNING ` + quantColumns
	q, err := scanQuant(r.q.QueryRow(ctx, query, id, qty, allowNegative))
	if err == nil {
		return q, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("decrement quant: %w", err)
	}
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("quant %s: %w", id, domain.ErrNotFound)
	}
	return nil, fmt.Errorf("quant %s tiene %s, se piden %s: %w", id, current.Quantity, qty, domain.ErrInsufficientStock)
}

// ProductsWithNegatives productos con algún quant negativo dentro del subárbol.
func (r *QuantRepo) ProductsWithNegatives(ctx context.Context, companyID string, subtree location.Interval) ([]string, error) {
	query := `
		SELECT DISTINCT q.product_id
		FROM quants q JOIN locations l ON l.id = q.location_id
		WHERE q.quantity < 0 AND l.lft >= $1 AND l.rgt <= $2 AND ($3 = '' OR q.company_id = $3)
		ORDER BY q.product_id`
	rows, err := r.q.Query(ctx, query, subtree.Left, subtree.Right, companyID)
	if err != nil {
		return nil, fmt.Errorf("products with negatives: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// quantWhere traduce la consulta tipada a condiciones SQL con parámetros posicionales.
func quantWhere(query repository.QuantQuery) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if query.ProductID != "" {
		add("q.product_id = $%d", query.ProductID)
	}
	if query.CompanyID != "" {
		add("q.company_id = $%d", query.CompanyID)
	}
	if query.Subtree != nil {
		add("l.lft >= $%d", query.Subtree.Left)
		add("l.rgt <= $%d", query.Subtree.Right)
	} else if query.LocationID != "" {
		add("q.location_id = $%d", query.LocationID)
	}
	if query.LotID != nil {
		add("q.lot_id = $%d", *query.LotID)
	}
	if query.PackageID != nil {
		add("q.package_id = $%d", *query.PackageID)
	}
	if query.OwnerID != nil {
		add("q.owner_id = $%d", *query.OwnerID)
	}
	switch query.Sign {
	case repository.SignPositive:
		conds = append(conds, "q.quantity > 0")
	case repository.SignNegative:
		conds = append(conds, "q.quantity < 0")
	}
	if query.InternalOnly {
		conds = append(conds, "l.usage IN ('internal', 'transit')")
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanQuant(row pgx.Row) (*entity.Quant, error) {
	var q entity.Quant
	err := row.Scan(
		&q.ID, &q.ProductID, &q.LocationID, &q.LotID, &q.PackageID, &q.OwnerID, &q.CompanyID,
		&q.Quantity, &q.Cost, &q.InDate, &q.ExpirationDate,
		&q.ProducedByMovementID, &q.NegativeFromMovementID, &q.ReconcilesWith, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &q, nil
}
