package inventory

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Garantiza atomicidad para el motor de inventario: si fn devuelve error se hace Rollback.
type TxRunner interface {
	Run(ctx context.Context, fn func(repos repository.Repositories) error) error
}

// Locker candado exclusivo entre procesos (ej. una pasada de conciliación por ubicación+producto).
// Obtain devuelve domain.ErrConflict si la clave ya está tomada.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// Recorder métricas del motor.
type Recorder interface {
	ReservationResult(status string)
	MovementCompleted(kind string)
	NegativeQuantCreated()
	NegativeReconciled(qty float64)
	ReconciliationAmbiguous(count int)
	CostFallback()
}

type nopLocker struct{}

func (nopLocker) Obtain(context.Context, string, time.Duration) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

type nopRecorder struct{}

func (nopRecorder) ReservationResult(string)    {}
func (nopRecorder) MovementCompleted(string)    {}
func (nopRecorder) NegativeQuantCreated()       {}
func (nopRecorder) NegativeReconciled(float64)  {}
func (nopRecorder) ReconciliationAmbiguous(int) {}
func (nopRecorder) CostFallback()               {}

// lockRetryInterval espera entre intentos cuando la clave está tomada.
const lockRetryInterval = 20 * time.Millisecond

func reconcileLockKey(locationID, productID string) string {
	return "reconcile:" + locationID + ":" + productID
}

// obtainLocks toma las claves en orden, esperando hasta ReconcileLockTTL por cada una.
// Si alguna no se obtiene libera las ya tomadas y devuelve domain.ErrConflict.
func obtainLocks(ctx context.Context, opts Options, keys []string) (func(), error) {
	keys = slices.Clone(keys)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	var releases []func(context.Context) error
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			if err := releases[i](context.WithoutCancel(ctx)); err != nil {
				opts.Logger.Warn().Err(err).Msg("no se pudo liberar el candado de conciliación")
			}
		}
	}
	for _, key := range keys {
		release, err := obtainWaiting(ctx, opts.Locker, key, opts.ReconcileLockTTL)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

func obtainWaiting(ctx context.Context, l Locker, key string, ttl time.Duration) (func(context.Context) error, error) {
	deadline := time.Now().Add(ttl)
	for {
		release, err := l.Obtain(ctx, key, ttl)
		if err == nil || !errors.Is(err, domain.ErrConflict) || !time.Now().Before(deadline) {
			return release, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}
