package dto

import (
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// QuantResponse representación pública de un quant.
type QuantResponse struct {
	ID             string          `json:"id"`
	ProductID      string          `json:"product_id"`
	LocationID     string          `json:"location_id"`
	LotID          string          `json:"lot_id,omitempty"`
	PackageID      string          `json:"package_id,omitempty"`
	OwnerID        string          `json:"owner_id,omitempty"`
	Quantity       decimal.Decimal `json:"quantity"`
	Cost           decimal.Decimal `json:"cost"`
	InDate         time.Time       `json:"in_date"`
	ExpirationDate *time.Time      `json:"expiration_date,omitempty"`
}

// NewQuantResponses convierte quants.
func NewQuantResponses(qs []*entity.Quant) []QuantResponse {
	out := make([]QuantResponse, 0, len(qs))
	for _, q := range qs {
		out = append(out, QuantResponse{
			ID:             q.ID,
			ProductID:      q.ProductID,
			LocationID:     q.LocationID,
			LotID:          q.LotID,
			PackageID:      q.PackageID,
			OwnerID:        q.OwnerID,
			Quantity:       q.Quantity,
			Cost:           q.Cost,
			InDate:         q.InDate,
			ExpirationDate: q.ExpirationDate,
		})
	}
	return out
}

// QuantityResponse cantidad en mano en el subárbol.
type QuantityResponse struct {
	ProductID  string          `json:"product_id"`
	LocationID string          `json:"location_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// ReconcileRequest body para POST /api/quants/reconcile. ProductID vacío = todos los productos.
type ReconcileRequest struct {
	LocationID string `json:"location_id"`
	ProductID  string `json:"product_id,omitempty"`
}

// PairingResponse compensación entre un negativo y un positivo.
type PairingResponse struct {
	NegativeQuantID  string          `json:"negative_quant_id"`
	PositiveQuantID  string          `json:"positive_quant_id"`
	LocationID       string          `json:"location_id"`
	Quantity         decimal.Decimal `json:"quantity"`
	CostReattributed bool            `json:"cost_reattributed"`
}

// UnresolvedResponse negativo sin positivo de procedencia conocida.
type UnresolvedResponse struct {
	QuantID    string          `json:"quant_id"`
	LocationID string          `json:"location_id"`
	MovementID string          `json:"movement_id,omitempty"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// ReconcileResponse reporte de una pasada de conciliación.
type ReconcileResponse struct {
	LocationID string               `json:"location_id"`
	ProductID  string               `json:"product_id"`
	Pairings   []PairingResponse    `json:"pairings"`
	Unresolved []UnresolvedResponse `json:"unresolved"`
}
