package inventory

import (
	"sort"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// LocationRank posición de una ubicación para la estrategia "closest": secuencia y luego orden de árbol.
type LocationRank func(locationID string) (sequence int, left int)

// OrderQuants ordena los quants candidatos según la estrategia de remoción.
// Desempates: fecha de entrada y luego ID, para que el orden sea determinista.
func OrderQuants(quants []*entity.Quant, strategy entity.RemovalStrategy, rank LocationRank) {
	byInDate := func(a, b *entity.Quant) bool {
		if !a.InDate.Equal(b.InDate) {
			return a.InDate.Before(b.InDate)
		}
		return a.ID < b.ID
	}
	var less func(a, b *entity.Quant) bool
	switch strategy {
	case entity.RemovalLIFO:
		less = func(a, b *entity.Quant) bool {
			if !a.InDate.Equal(b.InDate) {
				return a.InDate.After(b.InDate)
			}
			return a.ID < b.ID
		}
	case entity.RemovalNearestExpiry:
		less = func(a, b *entity.Quant) bool {
			switch {
			case a.ExpirationDate == nil && b.ExpirationDate == nil:
				return byInDate(a, b)
			case a.ExpirationDate == nil:
				return false
			case b.ExpirationDate == nil:
				return true
			case !a.ExpirationDate.Equal(*b.ExpirationDate):
				return a.ExpirationDate.Before(*b.ExpirationDate)
			}
			return byInDate(a, b)
		}
	case entity.RemovalClosest:
		less = func(a, b *entity.Quant) bool {
			if rank != nil && a.LocationID != b.LocationID {
				sa, la := rank(a.LocationID)
				sb, lb := rank(b.LocationID)
				if sa != sb {
					return sa < sb
				}
				if la != lb {
					return la < lb
				}
			}
			return byInDate(a, b)
		}
	default:
		less = byInDate
	}
	sort.SliceStable(quants, func(i, j int) bool { return less(quants[i], quants[j]) })
}

// ResolveStrategy: estrategia del producto, si no la de la ubicación (heredada), si no FIFO.
func ResolveStrategy(product, location entity.RemovalStrategy) entity.RemovalStrategy {
	if product.IsValid() {
		return product
	}
	if location.IsValid() {
		return location
	}
	return entity.RemovalFIFO
}
