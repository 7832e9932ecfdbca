// Package lock implementa el puerto Locker del motor: candados exclusivos por clave
// con Redis (varias instancias) o en proceso (una sola instancia, pruebas).
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/redis/go-redis/v9"
)

var _ inventory.Locker = (*RedisLocker)(nil)

// RedisLocker candado distribuido sobre redislock. Obtain no espera: si la clave está tomada
// devuelve domain.ErrConflict de inmediato.
type RedisLocker struct {
	client *redislock.Client
	prefix string
}

// NewRedisLocker construye el locker sobre un cliente go-redis ya conectado.
func NewRedisLocker(rdb redis.UniversalClient, prefix string) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb), prefix: prefix}
}

// Obtain toma la clave por ttl. La función devuelta libera el candado; liberar uno vencido no es error.
func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lk, err := l.client.Obtain(ctx, l.prefix+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("candado %s ocupado: %w", key, domain.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("obtener candado %s: %w", key, err)
	}
	return func(ctx context.Context) error {
		if err := lk.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return fmt.Errorf("liberar candado %s: %w", key, err)
		}
		return nil
	}, nil
}

// Connect abre el cliente Redis y verifica la conexión.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}
