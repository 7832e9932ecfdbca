package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/shopspring/decimal"
)

var _ repository.ReservationRepository = (*ReservationRepo)(nil)

// ReservationRepo vínculos movimiento ↔ quant sobre PostgreSQL.
type ReservationRepo struct {
	q Querier
}

// NewReservationRepository construye el adaptador. Pasar pool o tx (Querier).
func NewReservationRepository(q Querier) *ReservationRepo {
	return &ReservationRepo{q: q}
}

// Add inserta el vínculo o acumula la cantidad sobre el existente.
func (r *ReservationRepo) Add(ctx context.Context, link *entity.ReservationLink) error {
	query := `
		INSERT INTO reservation_links (movement_id, quant_id, quantity, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (movement_id, quant_id)
		DO UPDATE SET quantity = reservation_links.quantity + EXCLUDED.quantity`
	_, err := r.q.Exec(ctx, query, link.MovementID, link.QuantID, link.Quantity, link.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("vínculo %s/%s: %w", link.MovementID, link.QuantID, domain.ErrNotFound)
		}
		return fmt.Errorf("add reservation link: %w", err)
	}
	return nil
}

// ListByMovement vínculos de un movimiento ordenados por quant.
func (r *ReservationRepo) ListByMovement(ctx context.Context, movementID string) ([]*entity.ReservationLink, error) {
	query := `
		SELECT movement_id, quant_id, quantity, created_at
		FROM reservation_links WHERE movement_id = $1 ORDER BY quant_id`
	rows, err := r.q.Query(ctx, query, movementID)
	if err != nil {
		return nil, fmt.Errorf("list reservation links: %w", err)
	}
	defer rows.Close()
	var list []*entity.ReservationLink
	for rows.Next() {
		var l entity.ReservationLink
		if err := rows.Scan(&l.MovementID, &l.QuantID, &l.Quantity, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reservation link: %w", err)
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}

// ReservedByQuants total reservado por quant; los quants sin vínculos no aparecen.
func (r *ReservationRepo) ReservedByQuants(ctx context.Context, quantIDs []string) (map[string]decimal.Decimal, error) {
	out := map[string]decimal.Decimal{}
	if len(quantIDs) == 0 {
		return out, nil
	}
	query := `
		SELECT quant_id, SUM(quantity)
		FROM reservation_links WHERE quant_id = ANY($1)
		GROUP BY quant_id`
	rows, err := r.q.Query(ctx, query, quantIDs)
	if err != nil {
		return nil, fmt.Errorf("reserved by quants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var qty decimal.Decimal
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, fmt.Errorf("scan reserved: %w", err)
		}
		out[id] = qty
	}
	return out, rows.Err()
}

// DeleteByMovement elimina todos los vínculos del movimiento.
func (r *ReservationRepo) DeleteByMovement(ctx context.Context, movementID string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM reservation_links WHERE movement_id = $1`, movementID); err != nil {
		return fmt.Errorf("delete reservation links: %w", err)
	}
	return nil
}
