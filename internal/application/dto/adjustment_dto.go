package dto

import (
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// QuantKeyDTO clave de quant sin empresa (la empresa sale del token).
type QuantKeyDTO struct {
	ProductID  string `json:"product_id"`
	LocationID string `json:"location_id"`
	LotID      string `json:"lot_id,omitempty"`
	PackageID  string `json:"package_id,omitempty"`
	OwnerID    string `json:"owner_id,omitempty"`
}

// ToEntity arma la clave con la empresa dada.
func (k QuantKeyDTO) ToEntity(companyID string) entity.QuantKey {
	return entity.QuantKey{
		ProductID:  k.ProductID,
		LocationID: k.LocationID,
		LotID:      k.LotID,
		PackageID:  k.PackageID,
		OwnerID:    k.OwnerID,
		CompanyID:  companyID,
	}
}

func newQuantKeyDTO(k entity.QuantKey) QuantKeyDTO {
	return QuantKeyDTO{ProductID: k.ProductID, LocationID: k.LocationID, LotID: k.LotID, PackageID: k.PackageID, OwnerID: k.OwnerID}
}

// TheoreticalLineResponse cantidad registrada por clave.
type TheoreticalLineResponse struct {
	QuantKeyDTO
	Quantity decimal.Decimal `json:"quantity"`
}

// NewTheoreticalLine convierte una línea teórica.
func NewTheoreticalLine(k entity.QuantKey, qty decimal.Decimal) TheoreticalLineResponse {
	return TheoreticalLineResponse{QuantKeyDTO: newQuantKeyDTO(k), Quantity: qty}
}

// CountedLineRequest cantidad contada para una clave.
type CountedLineRequest struct {
	QuantKeyDTO
	Counted decimal.Decimal `json:"counted"`
}

// ApplyCountRequest body para POST /api/adjustments.
type ApplyCountRequest struct {
	LossLocationID string               `json:"loss_location_id,omitempty"`
	Date           *time.Time           `json:"date,omitempty"`
	Lines          []CountedLineRequest `json:"lines"`
}

// AdjustmentLineResponse teórico vs. contado.
type AdjustmentLineResponse struct {
	QuantKeyDTO
	Theoretical decimal.Decimal `json:"theoretical"`
	Counted     decimal.Decimal `json:"counted"`
	Diff        decimal.Decimal `json:"diff"`
	MovementID  string          `json:"movement_id,omitempty"`
}

// AdjustmentResponse ajuste aplicado.
type AdjustmentResponse struct {
	ID             string                   `json:"id"`
	LossLocationID string                   `json:"loss_location_id"`
	Date           time.Time                `json:"date"`
	Lines          []AdjustmentLineResponse `json:"lines"`
}

// NewAdjustmentResponse convierte la entidad.
func NewAdjustmentResponse(a *entity.Adjustment) AdjustmentResponse {
	resp := AdjustmentResponse{ID: a.ID, LossLocationID: a.LossLocationID, Date: a.Date, Lines: make([]AdjustmentLineResponse, 0, len(a.Lines))}
	for _, l := range a.Lines {
		resp.Lines = append(resp.Lines, AdjustmentLineResponse{
			QuantKeyDTO: newQuantKeyDTO(l.QuantKey),
			Theoretical: l.Theoretical,
			Counted:     l.Counted,
			Diff:        l.Diff,
			MovementID:  l.MovementID,
		})
	}
	return resp
}
