package http

import (
	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
)

func filtersFromQuery(q dto.FiltersQuery, companyID string) inventory.Filters {
	return inventory.Filters{
		LotID:          q.LotID,
		WithoutLot:     q.WithoutLot,
		PackageID:      q.PackageID,
		WithoutPackage: q.WithoutPackage,
		OwnerID:        q.OwnerID,
		WithoutOwner:   q.WithoutOwner,
		CompanyID:      companyID,
	}
}

func reconcileResponse(r *inventory.ReconcileReport) *dto.ReconcileResponse {
	if r == nil {
		return nil
	}
	resp := &dto.ReconcileResponse{
		LocationID: r.LocationID,
		ProductID:  r.ProductID,
		Pairings:   make([]dto.PairingResponse, 0, len(r.Pairings)),
		Unresolved: make([]dto.UnresolvedResponse, 0, len(r.Unresolved)),
	}
	for _, p := range r.Pairings {
		resp.Pairings = append(resp.Pairings, dto.PairingResponse{
			NegativeQuantID:  p.NegativeQuantID,
			PositiveQuantID:  p.PositiveQuantID,
			LocationID:       p.LocationID,
			Quantity:         p.Quantity,
			CostReattributed: p.CostReattributed,
		})
	}
	for _, u := range r.Unresolved {
		resp.Unresolved = append(resp.Unresolved, dto.UnresolvedResponse{
			QuantID: u.QuantID, LocationID: u.LocationID, MovementID: u.MovementID, Quantity: u.Quantity,
		})
	}
	return resp
}
