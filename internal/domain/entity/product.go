package entity

import (
	"fmt"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// CostMethod método de costeo del producto.
type CostMethod string

const (
	CostMethodStandard CostMethod = "standard"
	CostMethodAverage  CostMethod = "average"
	CostMethodReal     CostMethod = "real" // FIFO / costo real por lote
)

// IsValid verifica el método de costeo.
func (m CostMethod) IsValid() bool {
	switch m {
	case CostMethodStandard, CostMethodAverage, CostMethodReal:
		return true
	}
	return false
}

// String devuelve el nombre del método.
func (m CostMethod) String() string {
	return string(m)
}

// Tipos de trazabilidad.
const (
	TrackingNone   = "none"
	TrackingLot    = "lot"
	TrackingSerial = "serial"
)

// Product datos del catálogo que el motor necesita (solo lectura).
// Rounding es la precisión de redondeo de la unidad del producto (ej. 0.01).
type Product struct {
	ID              string
	CompanyID       string
	SKU             string
	Name            string
	UoMID           string
	Rounding        decimal.Decimal
	CostMethod      CostMethod
	RemovalStrategy RemovalStrategy // vacío = la de la ubicación
	Tracking        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// UoM unidad de medida. Factor: cuántas unidades de referencia hay en una unidad (1 para la referencia).
type UoM struct {
	ID         string
	CategoryID string
	Name       string
	Factor     decimal.Decimal
	Rounding   decimal.Decimal
}

// Convert expresa qty (en u) en la unidad to, pasando por la unidad de referencia de la categoría.
func (u *UoM) Convert(qty decimal.Decimal, to *UoM) (decimal.Decimal, error) {
	if u.CategoryID != to.CategoryID {
		return decimal.Zero, fmt.Errorf("unidades %s y %s de distinta categoría: %w", u.ID, to.ID, domain.ErrInvalidInput)
	}
	return qty.Mul(u.Factor).Div(to.Factor), nil
}
