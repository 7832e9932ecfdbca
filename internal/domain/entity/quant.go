package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuantKey identifica la combinación producto × ubicación × lote × paquete × propietario × empresa.
// Cadena vacía significa "sin lote", "sin paquete", etc.
type QuantKey struct {
	ProductID  string
	LocationID string
	LotID      string
	PackageID  string
	OwnerID    string
	CompanyID  string
}

// Quant es una cantidad (positiva o negativa) de un producto en una clave, con su costo unitario.
// Varias filas pueden compartir la misma clave (lotes con distinto costo); la suma es el stock de la clave.
type Quant struct {
	ID string
	QuantKey
	Quantity       decimal.Decimal
	Cost           decimal.Decimal
	InDate         time.Time
	ExpirationDate *time.Time

	// Procedencia explícita.
	ProducedByMovementID   string // movimiento que depositó el quant
	NegativeFromMovementID string // en quants negativos: movimiento que consumió sin existencias
	ReconcilesWith         string // en quants positivos: quant negativo que debe compensar

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsNegative indica si el quant representa stock consumido antes de registrar su entrada.
func (q *Quant) IsNegative() bool {
	return q.Quantity.IsNegative()
}

// Value devuelve cantidad × costo.
func (q *Quant) Value() decimal.Decimal {
	return q.Quantity.Mul(q.Cost)
}

// Clone devuelve una copia independiente.
func (q *Quant) Clone() *Quant {
	c := *q
	if q.ExpirationDate != nil {
		exp := *q.ExpirationDate
		c.ExpirationDate = &exp
	}
	return &c
}
