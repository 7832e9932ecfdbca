package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReservationLink reclamo no físico de un movimiento sobre un quant.
type ReservationLink struct {
	MovementID string
	QuantID    string
	Quantity   decimal.Decimal
	CreatedAt  time.Time
}
