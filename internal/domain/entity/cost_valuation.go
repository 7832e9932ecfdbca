package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostValuation costo unitario vigente de un producto en una empresa.
type CostValuation struct {
	CompanyID string
	ProductID string
	Method    CostMethod
	Cost      decimal.Decimal
	UpdatedAt time.Time
}

// ProductValuation línea del reporte de valorización.
type ProductValuation struct {
	ProductID string
	Quantity  decimal.Decimal
	Value     decimal.Decimal
	UnitCost  decimal.Decimal // costo vigente según el método activo
	Method    CostMethod
}
