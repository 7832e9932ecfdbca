package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/shopspring/decimal"
)

var _ repository.ProductCatalog = (*Catalog)(nil)

// Catalog catálogo de productos y unidades en memoria.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]*entity.Product
	uoms     map[string]*entity.UoM
}

// NewCatalog crea un catálogo vacío.
func NewCatalog() *Catalog {
	return &Catalog{products: map[string]*entity.Product{}, uoms: map[string]*entity.UoM{}}
}

// AddUoM registra una unidad. Factor debe ser positivo.
func (c *Catalog) AddUoM(u entity.UoM) error {
	if u.ID == "" || !u.Factor.IsPositive() {
		return domain.ErrInvalidInput
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uoms[u.ID] = &u
	return nil
}

// AddProduct registra o reemplaza un producto.
func (c *Catalog) AddProduct(p entity.Product) error {
	if p.ID == "" || (p.CostMethod != "" && !p.CostMethod.IsValid()) {
		return domain.ErrInvalidInput
	}
	if p.CostMethod == "" {
		p.CostMethod = entity.CostMethodStandard
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = &p
	return nil
}

func (c *Catalog) GetProduct(_ context.Context, productID string) (*entity.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[productID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// ToProductUoM convierte pasando por la unidad de referencia de la categoría.
func (c *Catalog) ToProductUoM(_ context.Context, productID string, qty decimal.Decimal, uomID string) (decimal.Decimal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[productID]
	if !ok {
		return decimal.Zero, fmt.Errorf("producto %s: %w", productID, domain.ErrNotFound)
	}
	if uomID == "" || uomID == p.UoMID {
		return qty, nil
	}
	from, ok := c.uoms[uomID]
	if !ok {
		return decimal.Zero, fmt.Errorf("unidad %s: %w", uomID, domain.ErrNotFound)
	}
	to, ok := c.uoms[p.UoMID]
	if !ok {
		return decimal.Zero, fmt.Errorf("unidad %s: %w", p.UoMID, domain.ErrNotFound)
	}
	return from.Convert(qty, to)
}

// UpsertUoM igual que AddUoM con la firma del catálogo persistente.
func (c *Catalog) UpsertUoM(_ context.Context, u *entity.UoM) error {
	return c.AddUoM(*u)
}

// UpsertProduct igual que AddProduct con la firma del catálogo persistente.
func (c *Catalog) UpsertProduct(_ context.Context, p *entity.Product) error {
	return c.AddProduct(*p)
}
