// Package seed carga datos iniciales (unidades, productos, ubicaciones y stock de apertura)
// desde un archivo YAML.
package seed

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
	"gopkg.in/yaml.v3"
)

// Fixture contenido del archivo de datos iniciales.
type Fixture struct {
	LossLocation string            `yaml:"loss_location"`
	UoMs         []UoMFixture      `yaml:"uoms"`
	Products     []ProductFixture  `yaml:"products"`
	Locations    []LocationFixture `yaml:"locations"`
	Stock        []StockFixture    `yaml:"stock"`
}

type UoMFixture struct {
	ID       string          `yaml:"id"`
	Category string          `yaml:"category"`
	Name     string          `yaml:"name"`
	Factor   decimal.Decimal `yaml:"factor"`
	Rounding decimal.Decimal `yaml:"rounding"`
}

type ProductFixture struct {
	ID              string           `yaml:"id"`
	SKU             string           `yaml:"sku"`
	Name            string           `yaml:"name"`
	UoM             string           `yaml:"uom"`
	Rounding        decimal.Decimal  `yaml:"rounding"`
	CostMethod      string           `yaml:"cost_method"`
	RemovalStrategy string           `yaml:"removal_strategy"`
	Tracking        string           `yaml:"tracking"`
	StandardCost    *decimal.Decimal `yaml:"standard_cost"`
}

// LocationFixture ubicación; Shared = ubicación virtual sin empresa (proveedores, clientes).
// Los padres deben aparecer antes que los hijos.
type LocationFixture struct {
	ID              string `yaml:"id"`
	Parent          string `yaml:"parent"`
	Name            string `yaml:"name"`
	Usage           string `yaml:"usage"`
	RemovalStrategy string `yaml:"removal_strategy"`
	Sequence        int    `yaml:"sequence"`
	Shared          bool   `yaml:"shared"`
}

// StockFixture cantidad de apertura: se aplica como conteo, así que recargar el archivo no duplica stock.
type StockFixture struct {
	Product  string          `yaml:"product"`
	Location string          `yaml:"location"`
	Lot      string          `yaml:"lot"`
	Package  string          `yaml:"package"`
	Owner    string          `yaml:"owner"`
	Quantity decimal.Decimal `yaml:"quantity"`
}

// Decode lee el YAML. charset "iso-8859-1"/"latin1" para exportaciones de sistemas antiguos; vacío = UTF-8.
func Decode(r io.Reader, charset string) (*Fixture, error) {
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8":
	case "iso-8859-1", "iso8859-1", "latin1":
		r = transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	default:
		return nil, fmt.Errorf("charset %q no soportado: %w", charset, domain.ErrInvalidInput)
	}
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decodificar fixture: %w", err)
	}
	return &f, nil
}

// CatalogWriter escritura del catálogo (postgres.ProductCatalog o memory.Catalog).
type CatalogWriter interface {
	UpsertUoM(ctx context.Context, u *entity.UoM) error
	UpsertProduct(ctx context.Context, p *entity.Product) error
}

// Summary conteo de lo cargado.
type Summary struct {
	UoMs             int
	Products         int
	LocationsCreated int
	LocationsSkipped int
	AdjustmentID     string
}

// Loader aplica un Fixture sobre el motor.
type Loader struct {
	tx      inventory.TxRunner
	catalog CatalogWriter
	engine  *inventory.Engine
	log     zerolog.Logger
}

// NewLoader construye el cargador.
func NewLoader(tx inventory.TxRunner, catalog CatalogWriter, engine *inventory.Engine, log zerolog.Logger) *Loader {
	return &Loader{tx: tx, catalog: catalog, engine: engine, log: log}
}

// Load carga el fixture para la empresa. Es repetible: ubicaciones existentes se omiten
// y el stock se lleva a la cantidad indicada.
func (l *Loader) Load(ctx context.Context, companyID, userID string, f *Fixture) (*Summary, error) {
	if companyID == "" {
		return nil, fmt.Errorf("empresa requerida: %w", domain.ErrInvalidInput)
	}
	sum := &Summary{}

	for _, u := range f.UoMs {
		if err := l.catalog.UpsertUoM(ctx, &entity.UoM{
			ID: u.ID, CategoryID: u.Category, Name: u.Name, Factor: u.Factor, Rounding: u.Rounding,
		}); err != nil {
			return nil, fmt.Errorf("unidad %s: %w", u.ID, err)
		}
		sum.UoMs++
	}

	for _, p := range f.Products {
		if err := l.catalog.UpsertProduct(ctx, &entity.Product{
			ID:              p.ID,
			CompanyID:       companyID,
			SKU:             p.SKU,
			Name:            p.Name,
			UoMID:           p.UoM,
			Rounding:        p.Rounding,
			CostMethod:      entity.CostMethod(p.CostMethod),
			RemovalStrategy: entity.RemovalStrategy(p.RemovalStrategy),
			Tracking:        p.Tracking,
		}); err != nil {
			return nil, fmt.Errorf("producto %s: %w", p.ID, err)
		}
		sum.Products++
	}

	err := l.tx.Run(ctx, func(repos repository.Repositories) error {
		for _, lf := range f.Locations {
			existing, err := repos.Locations.GetByID(ctx, lf.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				sum.LocationsSkipped++
				continue
			}
			loc := &entity.Location{
				ID:              lf.ID,
				ParentID:        lf.Parent,
				Name:            lf.Name,
				Usage:           entity.LocationUsage(lf.Usage),
				RemovalStrategy: entity.RemovalStrategy(lf.RemovalStrategy),
				Sequence:        lf.Sequence,
			}
			if !lf.Shared {
				loc.CompanyID = companyID
			}
			if err := repos.Locations.Create(ctx, loc); err != nil {
				return fmt.Errorf("ubicación %s: %w", lf.ID, err)
			}
			sum.LocationsCreated++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// El costo estándar va antes del stock: las entradas por ajuste toman el costo vigente.
	for _, p := range f.Products {
		if p.StandardCost == nil {
			continue
		}
		if err := l.engine.Valuation.SetStandardCost(ctx, companyID, p.ID, *p.StandardCost); err != nil {
			return nil, fmt.Errorf("costo de %s: %w", p.ID, err)
		}
	}

	if len(f.Stock) > 0 {
		req := inventory.ApplyCountRequest{
			CompanyID:      companyID,
			UserID:         userID,
			LossLocationID: f.LossLocation,
			Lines:          make([]inventory.CountedLine, 0, len(f.Stock)),
		}
		for _, s := range f.Stock {
			req.Lines = append(req.Lines, inventory.CountedLine{
				Key: entity.QuantKey{
					ProductID:  s.Product,
					LocationID: s.Location,
					LotID:      s.Lot,
					PackageID:  s.Package,
					OwnerID:    s.Owner,
					CompanyID:  companyID,
				},
				Counted: s.Quantity,
			})
		}
		adj, err := l.engine.Adjustments.ApplyCount(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("stock de apertura: %w", err)
		}
		sum.AdjustmentID = adj.ID
	}

	l.log.Info().
		Int("uoms", sum.UoMs).
		Int("products", sum.Products).
		Int("locations_created", sum.LocationsCreated).
		Int("locations_skipped", sum.LocationsSkipped).
		Str("adjustment_id", sum.AdjustmentID).
		Msg("fixture cargado")
	return sum, nil
}
