package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementState estado del ciclo de vida de un movimiento.
type MovementState string

const (
	MovementStateDraft             MovementState = "draft"
	MovementStateConfirmed         MovementState = "confirmed"
	MovementStateWaiting           MovementState = "waiting"
	MovementStatePartiallyAssigned MovementState = "partially_assigned"
	MovementStateAssigned          MovementState = "assigned"
	MovementStateDone              MovementState = "done"
	MovementStateCancel            MovementState = "cancel"
)

// IsValid verifica que el estado sea uno de los conocidos.
func (s MovementState) IsValid() bool {
	switch s {
	case MovementStateDraft, MovementStateConfirmed, MovementStateWaiting,
		MovementStatePartiallyAssigned, MovementStateAssigned, MovementStateDone, MovementStateCancel:
		return true
	}
	return false
}

// IsTerminal indica done o cancel.
func (s MovementState) IsTerminal() bool {
	return s == MovementStateDone || s == MovementStateCancel
}

// CanReserve: confirmado o esperando disponibilidad (total o parcial).
func (s MovementState) CanReserve() bool {
	switch s {
	case MovementStateConfirmed, MovementStateWaiting, MovementStatePartiallyAssigned, MovementStateAssigned:
		return true
	}
	return false
}

// CanComplete: solo movimientos con reserva total o parcial.
func (s MovementState) CanComplete() bool {
	return s == MovementStateAssigned || s == MovementStatePartiallyAssigned
}

// Movement es la intención de llevar una cantidad de un producto desde una ubicación origen a una destino.
// Quantity está en la unidad del movimiento (UoMID); ProductQty en la unidad del producto.
type Movement struct {
	ID               string
	CompanyID        string
	ProductID        string
	UoMID            string
	Quantity         decimal.Decimal
	ProductQty       decimal.Decimal
	SourceLocationID string
	DestLocationID   string
	LotID            string
	PackageID        string
	OwnerID          string
	// Strict: lote/paquete/propietario vacíos significan "sin" en vez de "cualquiera" (ajustes).
	Strict bool
	State  MovementState

	// PriceUnit: costo unitario de entrada (recepciones) o costo de salida calculado al completar.
	PriceUnit decimal.Decimal

	// OriginMovementIDs movimientos encadenados de los que depende este movimiento.
	OriginMovementIDs []string
	// ReconcilesQuantID quant negativo que los quants producidos deben compensar.
	ReconcilesQuantID string

	QuantityDone  decimal.Decimal // en unidad del producto
	BackorderOfID string
	Reference     string
	Date          time.Time
	DoneAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CreatedBy     string
}

// Clone devuelve una copia independiente.
func (m *Movement) Clone() *Movement {
	c := *m
	c.OriginMovementIDs = append([]string(nil), m.OriginMovementIDs...)
	if m.DoneAt != nil {
		d := *m.DoneAt
		c.DoneAt = &d
	}
	return &c
}

// HasOrigin indica si movementID es uno de los movimientos origen.
func (m *Movement) HasOrigin(movementID string) bool {
	for _, id := range m.OriginMovementIDs {
		if id == movementID {
			return true
		}
	}
	return false
}
