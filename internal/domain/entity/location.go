package entity

import "time"

// LocationUsage tipo de ubicación.
type LocationUsage string

const (
	LocationUsageInternal   LocationUsage = "internal"
	LocationUsageView       LocationUsage = "view"
	LocationUsageSupplier   LocationUsage = "supplier"
	LocationUsageCustomer   LocationUsage = "customer"
	LocationUsageInventory  LocationUsage = "inventory" // pérdidas de inventario
	LocationUsageProduction LocationUsage = "production"
	LocationUsageTransit    LocationUsage = "transit"
)

// IsValid verifica el tipo de ubicación.
func (u LocationUsage) IsValid() bool {
	switch u {
	case LocationUsageInternal, LocationUsageView, LocationUsageSupplier, LocationUsageCustomer,
		LocationUsageInventory, LocationUsageProduction, LocationUsageTransit:
		return true
	}
	return false
}

// RemovalStrategy política de orden de consumo de quants.
type RemovalStrategy string

const (
	RemovalFIFO          RemovalStrategy = "fifo"
	RemovalLIFO          RemovalStrategy = "lifo"
	RemovalNearestExpiry RemovalStrategy = "nearest_expiry"
	RemovalClosest       RemovalStrategy = "closest"
)

// IsValid verifica la estrategia; vacío no es válido.
func (s RemovalStrategy) IsValid() bool {
	switch s {
	case RemovalFIFO, RemovalLIFO, RemovalNearestExpiry, RemovalClosest:
		return true
	}
	return false
}

// Location nodo del árbol de ubicaciones (bodegas, estantes, ubicaciones virtuales).
// Left/Right son el intervalo anidado precalculado del subárbol.
type Location struct {
	ID              string
	ParentID        string
	CompanyID       string
	Name            string
	Usage           LocationUsage
	RemovalStrategy RemovalStrategy // vacío = heredar del padre
	Sequence        int
	Left            int
	Right           int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HoldsStock indica si la ubicación guarda quants reales. El resto son orígenes/destinos infinitos.
func (l *Location) HoldsStock() bool {
	return l.Usage == LocationUsageInternal || l.Usage == LocationUsageTransit
}
