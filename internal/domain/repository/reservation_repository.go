package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// ReservationRepository puerto de persistencia de vínculos movimiento ↔ quant.
type ReservationRepository interface {
	// Add crea el vínculo o suma la cantidad si ya existe para (movimiento, quant).
	Add(ctx context.Context, link *entity.ReservationLink) error
	ListByMovement(ctx context.Context, movementID string) ([]*entity.ReservationLink, error)
	// ReservedByQuants suma de vínculos por quant; solo incluye quants con reservas.
	ReservedByQuants(ctx context.Context, quantIDs []string) (map[string]decimal.Decimal, error)
	DeleteByMovement(ctx context.Context, movementID string) error
}
