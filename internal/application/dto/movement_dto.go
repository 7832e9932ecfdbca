package dto

import (
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// CreateMovementRequest body para POST /api/movements.
type CreateMovementRequest struct {
	ProductID         string          `json:"product_id"`
	UoMID             string          `json:"uom_id,omitempty"`
	Quantity          decimal.Decimal `json:"quantity"`
	SourceLocationID  string          `json:"source_location_id"`
	DestLocationID    string          `json:"dest_location_id"`
	LotID             string          `json:"lot_id,omitempty"`
	PackageID         string          `json:"package_id,omitempty"`
	OwnerID           string          `json:"owner_id,omitempty"`
	PriceUnit         decimal.Decimal `json:"price_unit"`
	OriginMovementIDs []string        `json:"origin_movement_ids,omitempty"`
	ReconcilesQuantID string          `json:"reconciles_quant_id,omitempty"`
	Reference         string          `json:"reference,omitempty"`
	Date              *time.Time      `json:"date,omitempty"`
	Confirm           bool            `json:"confirm"` // confirmar en la misma llamada
}

// LotAssignmentRequest cantidad hecha de un lote.
type LotAssignmentRequest struct {
	LotID          string          `json:"lot_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	ExpirationDate *time.Time      `json:"expiration_date,omitempty"`
}

// CompleteMovementRequest body para POST /api/movements/:id/complete.
type CompleteMovementRequest struct {
	QuantityDone    decimal.Decimal        `json:"quantity_done"`
	LotAssignments  []LotAssignmentRequest `json:"lot_assignments,omitempty"`
	AllowNegative   bool                   `json:"allow_negative"` // solo admin
	CreateBackorder bool                   `json:"create_backorder"`
}

// MovementResponse representación pública de un movimiento.
type MovementResponse struct {
	ID                string          `json:"id"`
	ProductID         string          `json:"product_id"`
	UoMID             string          `json:"uom_id,omitempty"`
	Quantity          decimal.Decimal `json:"quantity"`
	ProductQty        decimal.Decimal `json:"product_qty"`
	SourceLocationID  string          `json:"source_location_id"`
	DestLocationID    string          `json:"dest_location_id"`
	LotID             string          `json:"lot_id,omitempty"`
	PackageID         string          `json:"package_id,omitempty"`
	OwnerID           string          `json:"owner_id,omitempty"`
	State             string          `json:"state"`
	PriceUnit         decimal.Decimal `json:"price_unit"`
	QuantityDone      decimal.Decimal `json:"quantity_done"`
	OriginMovementIDs []string        `json:"origin_movement_ids,omitempty"`
	ReconcilesQuantID string          `json:"reconciles_quant_id,omitempty"`
	BackorderOfID     string          `json:"backorder_of_id,omitempty"`
	Reference         string          `json:"reference,omitempty"`
	Date              time.Time       `json:"date"`
	DoneAt            *time.Time      `json:"done_at,omitempty"`
}

// NewMovementResponse convierte la entidad.
func NewMovementResponse(m *entity.Movement) *MovementResponse {
	if m == nil {
		return nil
	}
	return &MovementResponse{
		ID:                m.ID,
		ProductID:         m.ProductID,
		UoMID:             m.UoMID,
		Quantity:          m.Quantity,
		ProductQty:        m.ProductQty,
		SourceLocationID:  m.SourceLocationID,
		DestLocationID:    m.DestLocationID,
		LotID:             m.LotID,
		PackageID:         m.PackageID,
		OwnerID:           m.OwnerID,
		State:             string(m.State),
		PriceUnit:         m.PriceUnit,
		QuantityDone:      m.QuantityDone,
		OriginMovementIDs: m.OriginMovementIDs,
		ReconcilesQuantID: m.ReconcilesQuantID,
		BackorderOfID:     m.BackorderOfID,
		Reference:         m.Reference,
		Date:              m.Date,
		DoneAt:            m.DoneAt,
	}
}

// ReservationLinkResponse vínculo movimiento ↔ quant.
type ReservationLinkResponse struct {
	QuantID  string          `json:"quant_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

// AssignmentResponse resultado de reservar.
type AssignmentResponse struct {
	MovementID string                    `json:"movement_id"`
	Status     string                    `json:"status"`
	Reserved   decimal.Decimal           `json:"reserved"`
	Remaining  decimal.Decimal           `json:"remaining"`
	Links      []ReservationLinkResponse `json:"links"`
}

// NewLinkResponses convierte vínculos.
func NewLinkResponses(links []*entity.ReservationLink) []ReservationLinkResponse {
	out := make([]ReservationLinkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, ReservationLinkResponse{QuantID: l.QuantID, Quantity: l.Quantity})
	}
	return out
}

// QuantMoveResponse cantidad retirada o depositada en un quant.
type QuantMoveResponse struct {
	QuantID    string          `json:"quant_id"`
	LocationID string          `json:"location_id"`
	LotID      string          `json:"lot_id,omitempty"`
	Quantity   decimal.Decimal `json:"quantity"`
	Cost       decimal.Decimal `json:"cost"`
}

// CompletionResponse resultado de completar un movimiento.
type CompletionResponse struct {
	Movement         *MovementResponse   `json:"movement"`
	Consumed         []QuantMoveResponse `json:"consumed"`
	Produced         []QuantMoveResponse `json:"produced"`
	NegativeQuantIDs []string            `json:"negative_quant_ids,omitempty"`
	PriceUnit        decimal.Decimal     `json:"price_unit"`
	Backorder        *MovementResponse   `json:"backorder,omitempty"`
	Reconciliation   *ReconcileResponse  `json:"reconciliation,omitempty"`
}
