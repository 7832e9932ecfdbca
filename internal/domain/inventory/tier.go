package inventory

// PriorityTier nivel de preferencia al recolectar candidatos; se consumen en orden.
type PriorityTier int

const (
	// TierSameReservation cantidad ya reservada para el mismo movimiento.
	TierSameReservation PriorityTier = iota + 1
	// TierUnreserved quants sin ninguna reserva.
	TierUnreserved
	// TierOtherReservation parte libre de quants parcialmente reservados por otros movimientos.
	TierOtherReservation
	// TierAny cualquier cantidad libre; se agrega siempre al final.
	TierAny
)

// String nombre del nivel.
func (t PriorityTier) String() string {
	switch t {
	case TierSameReservation:
		return "same_reservation"
	case TierUnreserved:
		return "unreserved"
	case TierOtherReservation:
		return "other_reservation"
	case TierAny:
		return "any"
	default:
		return "unknown"
	}
}

// WithFallback devuelve los niveles con TierAny al final si no estaba.
func WithFallback(tiers []PriorityTier) []PriorityTier {
	out := make([]PriorityTier, 0, len(tiers)+1)
	for _, t := range tiers {
		if t == TierAny {
			continue
		}
		out = append(out, t)
	}
	return append(out, TierAny)
}
