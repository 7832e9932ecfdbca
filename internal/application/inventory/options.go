package inventory

import (
	"time"

	"github.com/rs/zerolog"
)

// Options configuración del motor.
type Options struct {
	// AllowNegativeStock permite completar movimientos sin existencias creando quants negativos.
	AllowNegativeStock bool
	// CostPrecision decimales de la moneda para costos unitarios.
	CostPrecision int32
	// LossLocationID ubicación virtual de pérdidas de inventario por defecto para ajustes.
	LossLocationID string
	// ReconcileWorkers conciliaciones concurrentes en ReconcileLocation.
	ReconcileWorkers int
	ReconcileLockTTL time.Duration

	Logger  zerolog.Logger
	Metrics Recorder
	Locker  Locker
	Clock   func() time.Time
}

// DefaultOptions valores por defecto: sin stock negativo, 2 decimales, 4 workers.
func DefaultOptions() Options {
	return Options{
		CostPrecision:    2,
		ReconcileWorkers: 4,
		ReconcileLockTTL: 30 * time.Second,
		Logger:           zerolog.Nop(),
	}
}

func (o Options) normalized() Options {
	if o.CostPrecision < 0 {
		o.CostPrecision = 2
	}
	if o.ReconcileWorkers <= 0 {
		o.ReconcileWorkers = 1
	}
	if o.ReconcileLockTTL <= 0 {
		o.ReconcileLockTTL = 30 * time.Second
	}
	if o.Metrics == nil {
		o.Metrics = nopRecorder{}
	}
	if o.Locker == nil {
		o.Locker = nopLocker{}
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}
