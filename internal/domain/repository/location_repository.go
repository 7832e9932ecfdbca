package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/location"
)

// LocationRepository define el puerto de persistencia para el árbol de ubicaciones (DIP).
type LocationRepository interface {
	// Create persiste la ubicación y recalcula los intervalos del árbol.
	Create(ctx context.Context, loc *entity.Location) error
	GetByID(ctx context.Context, id string) (*entity.Location, error)
	Tree(ctx context.Context) (*location.Tree, error)
}
