package inventory

import (
	"fmt"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// Filters restricciones opcionales de lote, paquete, propietario y empresa.
// LotID con WithoutLot a la vez es contradictorio (igual para paquete y propietario).
type Filters struct {
	LotID          string
	WithoutLot     bool
	PackageID      string
	WithoutPackage bool
	OwnerID        string
	WithoutOwner   bool
	CompanyID      string
}

// Validate rechaza combinaciones contradictorias.
func (f Filters) Validate() error {
	if f.LotID != "" && f.WithoutLot {
		return fmt.Errorf("lote %s y sin lote: %w", f.LotID, domain.ErrInvalidFilterCombination)
	}
	if f.PackageID != "" && f.WithoutPackage {
		return fmt.Errorf("paquete %s y sin paquete: %w", f.PackageID, domain.ErrInvalidFilterCombination)
	}
	if f.OwnerID != "" && f.WithoutOwner {
		return fmt.Errorf("propietario %s y sin propietario: %w", f.OwnerID, domain.ErrInvalidFilterCombination)
	}
	return nil
}

func (f Filters) apply(q *repository.QuantQuery) {
	q.CompanyID = f.CompanyID
	q.LotID = optional(f.LotID, f.WithoutLot)
	q.PackageID = optional(f.PackageID, f.WithoutPackage)
	q.OwnerID = optional(f.OwnerID, f.WithoutOwner)
}

func optional(id string, without bool) *string {
	switch {
	case id != "":
		return &id
	case without:
		empty := ""
		return &empty
	}
	return nil
}
