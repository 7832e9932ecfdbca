package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
)

var _ inventory.Locker = (*LocalLocker)(nil)

// LocalLocker candado en proceso con vencimiento, para una sola instancia del servicio.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]uint64
	until map[string]time.Time
	seq   uint64
	now   func() time.Time
}

// NewLocalLocker crea un locker vacío.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]uint64{}, until: map[string]time.Time{}, now: time.Now}
}

// Obtain toma la clave si está libre o vencida.
func (l *LocalLocker) Obtain(_ context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok && l.now().Before(l.until[key]) {
		return nil, fmt.Errorf("candado %s ocupado: %w", key, domain.ErrConflict)
	}
	l.seq++
	token := l.seq
	l.held[key] = token
	l.until[key] = l.now().Add(ttl)
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		// Un candado vencido y retomado por otro no se libera con el token viejo.
		if l.held[key] == token {
			delete(l.held, key)
			delete(l.until, key)
		}
		return nil
	}, nil
}
