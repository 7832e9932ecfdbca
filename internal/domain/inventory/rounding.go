package inventory

import (
	"fmt"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// CheckRounding falla con ErrRoundingViolation si qty no es múltiplo de la precisión de la unidad.
// Una precisión cero o negativa no impone restricción. Nunca trunca.
func CheckRounding(qty, precision decimal.Decimal) error {
	if !precision.IsPositive() {
		return nil
	}
	if !qty.Mod(precision).IsZero() {
		return fmt.Errorf("%s no es múltiplo de %s: %w", qty.String(), precision.String(), domain.ErrRoundingViolation)
	}
	return nil
}

// RoundQuantity redondea qty al múltiplo más cercano de la precisión (mitad hacia arriba).
func RoundQuantity(qty, precision decimal.Decimal) decimal.Decimal {
	if !precision.IsPositive() {
		return qty
	}
	return qty.Div(precision).Round(0).Mul(precision)
}

// RoundCost redondea un costo unitario a los decimales de la moneda.
func RoundCost(cost decimal.Decimal, places int32) decimal.Decimal {
	return cost.Round(places)
}
