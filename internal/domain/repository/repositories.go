package repository

// Repositories agrupa los repositorios atados a una misma transacción.
type Repositories struct {
	Quants       QuantRepository
	Reservations ReservationRepository
	Movements    MovementRepository
	Locations    LocationRepository
	Costs        CostRepository
	Adjustments  AdjustmentRepository
}
