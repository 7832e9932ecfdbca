package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// LocationUseCase alta y consulta de ubicaciones del árbol.
type LocationUseCase struct {
	tx  inventory.TxRunner
	now func() time.Time
}

// NewLocationUseCase construye el caso de uso.
func NewLocationUseCase(tx inventory.TxRunner) *LocationUseCase {
	return &LocationUseCase{tx: tx, now: time.Now}
}

// Create crea una ubicación de la empresa. El padre debe existir y ser visible para la empresa;
// los intervalos del árbol se recalculan en el repositorio.
func (uc *LocationUseCase) Create(ctx context.Context, companyID string, in dto.CreateLocationRequest) (*dto.LocationResponse, error) {
	usage := entity.LocationUsage(in.Usage)
	if in.Name == "" || !usage.IsValid() {
		return nil, fmt.Errorf("nombre y uso válidos requeridos: %w", domain.ErrInvalidInput)
	}
	strategy := entity.RemovalStrategy(in.RemovalStrategy)
	if strategy != "" && !strategy.IsValid() {
		return nil, fmt.Errorf("estrategia %q: %w", in.RemovalStrategy, domain.ErrInvalidInput)
	}
	now := uc.now()
	loc := &entity.Location{
		ID:              in.ID,
		ParentID:        in.ParentID,
		CompanyID:       companyID,
		Name:            in.Name,
		Usage:           usage,
		RemovalStrategy: strategy,
		Sequence:        in.Sequence,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if loc.ID == "" {
		loc.ID = uuid.New().String()
	}
	err := uc.tx.Run(ctx, func(repos repository.Repositories) error {
		if loc.ParentID != "" {
			parent, err := repos.Locations.GetByID(ctx, loc.ParentID)
			if err != nil {
				return err
			}
			if !visible(parent, companyID) {
				return fmt.Errorf("ubicación padre %s: %w", loc.ParentID, domain.ErrNotFound)
			}
		}
		return repos.Locations.Create(ctx, loc)
	})
	if err != nil {
		return nil, err
	}
	return toLocationResponse(loc), nil
}

// GetByID obtiene una ubicación propia o compartida; ErrNotFound si es de otra empresa.
func (uc *LocationUseCase) GetByID(ctx context.Context, companyID, id string) (*dto.LocationResponse, error) {
	var loc *entity.Location
	err := uc.tx.Run(ctx, func(repos repository.Repositories) error {
		var err error
		loc, err = repos.Locations.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !visible(loc, companyID) {
		return nil, fmt.Errorf("ubicación %s: %w", id, domain.ErrNotFound)
	}
	return toLocationResponse(loc), nil
}

// visible ubicaciones sin empresa (proveedores, clientes, pérdidas) son compartidas.
func visible(loc *entity.Location, companyID string) bool {
	return loc != nil && (loc.CompanyID == "" || loc.CompanyID == companyID)
}

func toLocationResponse(l *entity.Location) *dto.LocationResponse {
	return &dto.LocationResponse{
		ID:              l.ID,
		ParentID:        l.ParentID,
		CompanyID:       l.CompanyID,
		Name:            l.Name,
		Usage:           string(l.Usage),
		RemovalStrategy: string(l.RemovalStrategy),
		Sequence:        l.Sequence,
		Left:            l.Left,
		Right:           l.Right,
	}
}
