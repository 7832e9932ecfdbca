package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Adjustment ajuste de inventario resultado de un conteo físico.
type Adjustment struct {
	ID             string
	CompanyID      string
	LossLocationID string
	Date           time.Time
	Lines          []AdjustmentLine
	CreatedBy      string
}

// AdjustmentLine teórico vs. contado para una clave. Diff = Theoretical - Counted.
// MovementID vacío cuando no hubo diferencia.
type AdjustmentLine struct {
	QuantKey
	Theoretical decimal.Decimal
	Counted     decimal.Decimal
	Diff        decimal.Decimal
	MovementID  string
}
