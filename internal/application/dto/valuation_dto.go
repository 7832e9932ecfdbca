package dto

import (
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// CostResponse costo vigente de un producto.
type CostResponse struct {
	ProductID string          `json:"product_id"`
	Cost      decimal.Decimal `json:"cost"`
}

// SetStandardCostRequest body para PUT /api/valuation/cost/:product_id.
type SetStandardCostRequest struct {
	Cost decimal.Decimal `json:"cost"`
}

// ProductValuationResponse línea del reporte de valorización.
type ProductValuationResponse struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Value     decimal.Decimal `json:"value"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Method    string          `json:"method"`
}

// ValuationResponse reporte completo con el total.
type ValuationResponse struct {
	LocationID string                     `json:"location_id"`
	Lines      []ProductValuationResponse `json:"lines"`
	Total      decimal.Decimal            `json:"total"`
}

// NewValuationResponse convierte el reporte y suma el total.
func NewValuationResponse(locationID string, lines []entity.ProductValuation) ValuationResponse {
	resp := ValuationResponse{LocationID: locationID, Lines: make([]ProductValuationResponse, 0, len(lines)), Total: decimal.Zero}
	for _, l := range lines {
		resp.Lines = append(resp.Lines, ProductValuationResponse{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Value:     l.Value,
			UnitCost:  l.UnitCost,
			Method:    l.Method.String(),
		})
		resp.Total = resp.Total.Add(l.Value)
	}
	return resp
}
